package notesync

import (
	"context"
	"errors"
	"strings"
	"time"

	"notely/notely/types"
	"notely/notely/utils/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultRemoteTimeout = 30 * time.Second

type Options struct {
	// RemoteTimeout bounds each store call.
	RemoteTimeout time.Duration
	// SummarizeTimeout bounds the summarizer call.
	SummarizeTimeout time.Duration
	MinSummaryLength int
	Cache            CacheOptions
}

func (o Options) withDefaults() Options {
	if o.RemoteTimeout <= 0 {
		o.RemoteTimeout = DefaultRemoteTimeout
	}
	if o.SummarizeTimeout <= 0 {
		o.SummarizeTimeout = DefaultRemoteTimeout
	}
	if o.MinSummaryLength <= 0 {
		o.MinSummaryLength = DefaultMinSummaryLength
	}
	if o.Cache.FetchTimeout <= 0 {
		o.Cache.FetchTimeout = o.RemoteTimeout
	}
	return o
}

// Client is the synchronization layer: one session, one cache and the remote
// collaborators, created once and passed to whatever needs notes.
type Client struct {
	session    *SessionContext
	cache      *QueryCache
	store      RemoteStore
	summarizer Summarizer
	summaries  *summaryTracker
	opts       Options
}

func NewClient(store RemoteStore, summarizer Summarizer, opts Options) *Client {
	opts = opts.withDefaults()
	c := &Client{
		store:      store,
		summarizer: summarizer,
		summaries:  newSummaryTracker(),
		opts:       opts,
	}
	c.cache = NewQueryCache(c.fetchNotes, opts.Cache)
	c.session = NewSessionContext(c.cache)
	c.session.Subscribe(func(SessionChange) { c.summaries.prune() })
	return c
}

func (c *Client) Session() *SessionContext { return c.session }

func (c *Client) Cache() *QueryCache { return c.cache }

// fetchNotes lists through the store and refuses rows owned by anyone else.
func (c *Client) fetchNotes(ctx context.Context, principalID string) ([]Note, error) {
	notes, err := c.store.ListByOwner(ctx, principalID)
	if err != nil {
		return nil, remoteFailure("list notes", err)
	}
	for _, n := range notes {
		if n.UserID != "" && n.UserID != principalID {
			return nil, remoteFailure("list notes", errors.New("store returned a note of another principal"))
		}
	}
	return notes, nil
}

// Notes returns the current principal's notes, newest first, loading them if the cache
// has nothing fresh.
func (c *Client) Notes(ctx context.Context) ([]Note, error) {
	p, ok := c.session.Current()
	if !ok {
		return nil, ErrUnauthenticated
	}
	notes, err := c.cache.Load(ctx, p.ID)
	if errors.Is(err, errPartitionDropped) {
		return nil, ErrUnauthenticated
	}
	return notes, err
}

// CachedNotes serves whatever the cache holds for the current principal without
// waiting. Stale or missing data is refetched in the background.
func (c *Client) CachedNotes() ([]Note, Status) {
	p, ok := c.session.Current()
	if !ok {
		return nil, StatusAbsent
	}
	return c.cache.Get(p.ID)
}

func (c *Client) CreateNote(ctx context.Context, in NewNote) (Note, error) {
	opID := uuid.NewString()
	ctx = logging.WithTraceID(ctx, opID)
	defer logging.LogDuration(ctx, "notesync_create_note")()

	p, ok := c.session.Current()
	if !ok {
		return Note{}, c.fail(opID, "create", ErrUnauthenticated)
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return Note{}, c.fail(opID, "create", invalid("note content cannot be empty"))
	}
	in.Title = normalizeTitle(in.Title)

	t := c.cache.Begin(p.ID, 0)
	var created Note
	err := c.detached(ctx, opID, "create", c.opts.RemoteTimeout, func(rctx context.Context) error {
		note, err := c.store.Insert(rctx, in)
		if err != nil {
			return remoteFailure("create note", err)
		}
		if note == nil {
			return noData("create note")
		}
		c.cache.Confirm(t, *note)
		created = *note
		return nil
	})
	if err != nil {
		return Note{}, c.fail(opID, "create", err)
	}
	c.succeed(opID, "create", created.ID)
	return created, nil
}

// UpdateNote edits title and/or content. The summary is only written by
// SummarizeAndSave and is not recomputed when content changes.
func (c *Client) UpdateNote(ctx context.Context, id int64, patch NotePatch) (Note, error) {
	opID := uuid.NewString()
	ctx = logging.WithTraceID(ctx, opID)
	defer logging.LogDuration(ctx, "notesync_update_note")()

	p, ok := c.session.Current()
	if !ok {
		return Note{}, c.fail(opID, "update", ErrUnauthenticated)
	}
	if err := c.validatePatch(p, id, &patch); err != nil {
		return Note{}, c.fail(opID, "update", err)
	}

	t := c.cache.Begin(p.ID, id)
	var updated Note
	err := c.detached(ctx, opID, "update", c.opts.RemoteTimeout, func(rctx context.Context) error {
		note, err := c.store.UpdateByID(rctx, id, patch)
		if err != nil {
			return remoteFailure("update note", err)
		}
		if note == nil {
			return noData("update note")
		}
		if !c.cache.Confirm(t, *note) {
			logging.AppLogger.Info("notesync update superseded by a newer mutation",
				zap.String("op_id", opID), zap.Int64("note_id", id))
		}
		updated = *note
		return nil
	})
	if err != nil {
		return Note{}, c.fail(opID, "update", err)
	}
	c.succeed(opID, "update", id)
	return updated, nil
}

func (c *Client) validatePatch(p Principal, id int64, patch *NotePatch) error {
	if id <= 0 {
		return invalid("note id must be positive")
	}
	if patch.Summary != nil {
		return invalid("summary can only be set by summarization")
	}
	if patch.Empty() {
		return invalid("nothing to update")
	}
	if patch.Content != nil {
		content := strings.TrimSpace(*patch.Content)
		if content == "" {
			return invalid("note content cannot be empty")
		}
		patch.Content = &content
	}
	if patch.Title != nil {
		patch.Title = normalizeTitle(patch.Title)
		if patch.Title == nil {
			patch.ClearTitle = true
		}
	}
	if _, found, loaded := c.cache.Lookup(p.ID, id); loaded && !found {
		return invalid("note %d is not in scope", id)
	}
	return nil
}

// DeleteNote removes the note from the cache immediately. A failed delete puts it back
// where it was; success or failure, the partition is refetched in the background.
func (c *Client) DeleteNote(ctx context.Context, id int64) error {
	opID := uuid.NewString()
	ctx = logging.WithTraceID(ctx, opID)
	defer logging.LogDuration(ctx, "notesync_delete_note")()

	p, ok := c.session.Current()
	if !ok {
		return c.fail(opID, "delete", ErrUnauthenticated)
	}
	if id <= 0 {
		return c.fail(opID, "delete", invalid("note id must be positive"))
	}

	c.cache.Begin(p.ID, id)
	snap := c.cache.SetOptimistic(p.ID, func(notes []Note) []Note {
		out := notes[:0]
		for _, n := range notes {
			if n.ID != id {
				out = append(out, n)
			}
		}
		return out
	})
	err := c.detached(ctx, opID, "delete", c.opts.RemoteTimeout, func(rctx context.Context) error {
		defer c.cache.Refresh(p.ID)
		if err := c.store.DeleteByID(rctx, id); err != nil {
			c.cache.Rollback(snap)
			return remoteFailure("delete note", err)
		}
		c.cache.Commit(snap)
		c.summaries.forget(id)
		return nil
	})
	if err != nil {
		return c.fail(opID, "delete", err)
	}
	c.succeed(opID, "delete", id)
	return nil
}

// HandleRemoteChange refetches in the background when another connection changed one
// of the current principal's notes.
func (c *Client) HandleRemoteChange(ev types.NoteEvent) {
	p, ok := c.session.Current()
	if !ok || ev.UserID != p.ID {
		return
	}
	c.cache.Refresh(p.ID)
}

// detached runs fn, the remote call plus its cache reconciliation, on a context that
// ignores the caller's cancellation but is bounded by timeout. If ctx ends first the caller gets ctx.Err() and
// fn still runs to completion.
func (c *Client) detached(ctx context.Context, opID, op string, timeout time.Duration, fn func(ctx context.Context) error) error {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	done := make(chan error, 1)
	go func() {
		defer cancel()
		done <- fn(rctx)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		logging.AppLogger.Info("notesync caller stopped waiting; mutation continues",
			zap.String("op_id", opID), zap.String("op", op))
		return ctx.Err()
	}
}

func (c *Client) fail(opID, op string, err error) error {
	mutationsTotal.WithLabelValues(op, "error").Inc()
	if errors.Is(err, context.Canceled) {
		return err
	}
	logging.ErrorLogger.Error("notesync "+op+" failed",
		zap.String("op_id", opID), zap.Error(err))
	return err
}

func (c *Client) succeed(opID, op string, noteID int64) {
	mutationsTotal.WithLabelValues(op, "ok").Inc()
	logging.AppLogger.Info("notesync "+op+" confirmed",
		zap.String("op_id", opID), zap.Int64("note_id", noteID))
}
