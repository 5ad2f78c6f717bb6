package notesync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"notely/notely/utils/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultMinSummaryLength = 50

type SummaryState int

const (
	SummaryIdle SummaryState = iota
	SummaryRequesting
	SummarySummarized
	SummarySaving
	SummaryDone
)

func (s SummaryState) String() string {
	switch s {
	case SummaryRequesting:
		return "requesting"
	case SummarySummarized:
		return "summarized"
	case SummarySaving:
		return "saving"
	case SummaryDone:
		return "done"
	default:
		return "idle"
	}
}

func (s SummaryState) inFlight() bool {
	return s == SummaryRequesting || s == SummarySummarized || s == SummarySaving
}

// SummaryResult is a saved summary. Reveal tells the caller to make the new summary
// visible (for instance expand a truncated summary view).
type SummaryResult struct {
	Note    Note
	Summary string
	Reveal  bool
}

// summaryTracker allows one summarization per note; different notes never wait on
// each other.
type summaryTracker struct {
	mu     sync.Mutex
	states map[int64]SummaryState
}

func newSummaryTracker() *summaryTracker {
	return &summaryTracker{states: make(map[int64]SummaryState)}
}

func (t *summaryTracker) acquire(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.states[id].inFlight() {
		return false
	}
	t.states[id] = SummaryRequesting
	return true
}

func (t *summaryTracker) set(id int64, s SummaryState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s == SummaryIdle {
		delete(t.states, id)
		return
	}
	t.states[id] = s
}

// forget drops the state of id unless a summarization of it is still running.
func (t *summaryTracker) forget(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.states[id].inFlight() {
		delete(t.states, id)
	}
}

// prune drops every settled state. Running summarizations keep theirs.
func (t *summaryTracker) prune() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, s := range t.states {
		if !s.inFlight() {
			delete(t.states, id)
		}
	}
}

func (t *summaryTracker) get(id int64) SummaryState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[id]
}

// SummaryState reports where the summarization of note id currently is.
func (c *Client) SummaryState(id int64) SummaryState {
	return c.summaries.get(id)
}

// SummarizeAndSave generates a summary of a cached note and persists it. A failure to
// generate returns ErrSummaryGenerationFailed or a RemoteError; a failure to persist a
// generated summary returns *SummaryNotSavedError. Either way the cached summary is
// left as it was.
func (c *Client) SummarizeAndSave(ctx context.Context, id int64) (SummaryResult, error) {
	opID := uuid.NewString()
	ctx = logging.WithTraceID(ctx, opID)
	defer logging.LogDuration(ctx, "notesync_summarize_and_save")()

	p, ok := c.session.Current()
	if !ok {
		return SummaryResult{}, c.fail(opID, "summarize", ErrUnauthenticated)
	}
	if id <= 0 {
		return SummaryResult{}, c.fail(opID, "summarize", invalid("note id must be positive"))
	}
	note, found, _ := c.cache.Lookup(p.ID, id)
	if !found {
		return SummaryResult{}, c.fail(opID, "summarize", invalid("note %d is not in scope", id))
	}
	content := strings.TrimSpace(note.Content)
	if n := utf8.RuneCountInString(content); n < c.opts.MinSummaryLength {
		return SummaryResult{}, c.fail(opID, "summarize", &ShortContentError{Min: c.opts.MinSummaryLength, Got: n})
	}
	if !c.summaries.acquire(id) {
		return SummaryResult{}, c.fail(opID, "summarize", ErrAlreadyInProgress)
	}

	var result SummaryResult
	err := c.detached(ctx, opID, "summarize", c.opts.SummarizeTimeout+c.opts.RemoteTimeout, func(rctx context.Context) error {
		summary, err := c.generate(rctx, content)
		if err != nil {
			c.summaries.set(id, SummaryIdle)
			return err
		}
		c.summaries.set(id, SummarySummarized)

		c.summaries.set(id, SummarySaving)
		t := c.cache.Begin(p.ID, id)
		sctx, cancel := context.WithTimeout(rctx, c.opts.RemoteTimeout)
		defer cancel()
		saved, err := c.store.UpdateByID(sctx, id, NotePatch{Summary: &summary})
		if err == nil && saved == nil {
			err = noData("save summary")
		}
		if err != nil {
			c.summaries.set(id, SummaryIdle)
			if !errors.Is(err, ErrNoDataReturned) {
				err = remoteFailure("save summary", err)
			}
			return &SummaryNotSavedError{Summary: summary, Err: err}
		}

		stored := summary
		if saved.Summary != nil {
			stored = *saved.Summary
		}
		c.cache.Patch(t, id, func(n *Note) { n.Summary = &stored })
		c.summaries.set(id, SummaryDone)

		row := *saved
		row.Summary = &stored
		result = SummaryResult{Note: row, Summary: stored, Reveal: true}
		return nil
	})
	if err != nil {
		return SummaryResult{}, c.fail(opID, "summarize", err)
	}
	mutationsTotal.WithLabelValues("summarize", "ok").Inc()
	logging.AppLogger.Info("notesync summary saved",
		zap.String("op_id", opID), zap.Int64("note_id", id))
	return result, nil
}

// generate calls the summarizer under its own timeout. Blank output is a generation
// failure, never an empty summary.
func (c *Client) generate(ctx context.Context, content string) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, c.opts.SummarizeTimeout)
	defer cancel()
	summary, err := c.summarizer.Summarize(gctx, content)
	if errors.Is(err, ErrSummaryGenerationFailed) {
		return "", err
	}
	if err != nil {
		return "", remoteFailure("summarize", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", ErrSummaryGenerationFailed
	}
	return summary, nil
}
