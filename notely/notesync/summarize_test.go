package notesync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_MinimumLengthCountsCharacters(t *testing.T) {
	store := newMemStore("alice")
	store.seed("alice",
		"  "+strings.Repeat("é", 49)+"  ",
		strings.Repeat("a", 50),
	)
	sum := &fakeSummarizer{summary: "A short summary."}
	c := signIn(t, store, sum, "alice")
	ctx := context.Background()

	_, err := c.SummarizeAndSave(ctx, 1)
	assert.ErrorIs(t, err, ErrInsufficientContent)
	assert.Zero(t, sum.callCount())

	res, err := c.SummarizeAndSave(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", res.Summary)
	assert.True(t, res.Reveal)
	require.NotNil(t, res.Note.Summary)
	assert.Equal(t, "A short summary.", *res.Note.Summary)
	assert.Equal(t, SummaryDone, c.SummaryState(2))

	notes, _ := c.Cache().Peek("alice")
	require.NotNil(t, notes[0].Summary)
	assert.Equal(t, "A short summary.", *notes[0].Summary)
}

func TestSummarize_NoteMustBeInScope(t *testing.T) {
	store := newMemStore("alice")
	c := signIn(t, store, &fakeSummarizer{summary: "x"}, "alice")

	_, err := c.SummarizeAndSave(context.Background(), 42)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestSummarize_OnePerNote(t *testing.T) {
	store := newMemStore("alice")
	store.seed("alice", strings.Repeat("one ", 20), strings.Repeat("two ", 20))
	sum := &fakeSummarizer{
		summary: "Summary.",
		gate:    make(chan struct{}),
		started: make(chan struct{}, 2),
	}
	c := signIn(t, store, sum, "alice")
	ctx := context.Background()

	first := make(chan error, 1)
	go func() {
		_, err := c.SummarizeAndSave(ctx, 1)
		first <- err
	}()
	<-sum.started
	assert.Equal(t, SummaryRequesting, c.SummaryState(1))

	_, err := c.SummarizeAndSave(ctx, 1)
	assert.ErrorIs(t, err, ErrAlreadyInProgress)

	other := make(chan error, 1)
	go func() {
		_, err := c.SummarizeAndSave(ctx, 2)
		other <- err
	}()
	<-sum.started

	close(sum.gate)
	require.NoError(t, <-first)
	require.NoError(t, <-other)
	assert.Equal(t, 2, sum.callCount())

	_, err = c.SummarizeAndSave(ctx, 1)
	assert.NoError(t, err, "a finished summarization frees the note")
}

func TestSummarize_BlankOutputIsGenerationFailure(t *testing.T) {
	store := newMemStore("alice")
	store.seed("alice", strings.Repeat("content ", 10))
	c := signIn(t, store, &fakeSummarizer{summary: "  \n "}, "alice")

	_, err := c.SummarizeAndSave(context.Background(), 1)
	assert.ErrorIs(t, err, ErrSummaryGenerationFailed)
	assert.Equal(t, SummaryIdle, c.SummaryState(1))

	_, _, updates, _ := store.counts()
	assert.Zero(t, updates)
	notes, _ := c.Cache().Peek("alice")
	assert.Nil(t, notes[0].Summary)
}

func TestSummarize_GenerationErrors(t *testing.T) {
	store := newMemStore("alice")
	store.seed("alice", strings.Repeat("content ", 10))
	sum := &fakeSummarizer{err: ErrSummaryGenerationFailed}
	c := signIn(t, store, sum, "alice")

	_, err := c.SummarizeAndSave(context.Background(), 1)
	assert.ErrorIs(t, err, ErrSummaryGenerationFailed)
	assert.NotErrorIs(t, err, ErrRemoteFailure)

	sum.mu.Lock()
	sum.err = errors.New("upstream 502")
	sum.mu.Unlock()
	_, err = c.SummarizeAndSave(context.Background(), 1)
	assert.ErrorIs(t, err, ErrRemoteFailure)
}

func TestSummarize_SaveFailureKeepsGeneratedText(t *testing.T) {
	store := newMemStore("alice")
	store.seed("alice", strings.Repeat("content ", 10))
	c := signIn(t, store, &fakeSummarizer{summary: "Generated."}, "alice")
	store.failUpdate = errors.New("row level security violation")

	_, err := c.SummarizeAndSave(context.Background(), 1)
	var notSaved *SummaryNotSavedError
	require.ErrorAs(t, err, &notSaved)
	assert.Equal(t, "Generated.", notSaved.Summary)
	assert.ErrorIs(t, err, ErrRemoteFailure)
	assert.Equal(t, SummaryIdle, c.SummaryState(1))

	notes, _ := c.Cache().Peek("alice")
	assert.Nil(t, notes[0].Summary, "the cache never shows an unsaved summary")
}

func TestSummarize_OverwritesPreviousSummary(t *testing.T) {
	store := newMemStore("alice")
	store.seed("alice", strings.Repeat("content ", 10))
	sum := &fakeSummarizer{summary: "Old summary."}
	c := signIn(t, store, sum, "alice")
	ctx := context.Background()

	_, err := c.SummarizeAndSave(ctx, 1)
	require.NoError(t, err)

	sum.mu.Lock()
	sum.summary = "New summary."
	sum.mu.Unlock()
	res, err := c.SummarizeAndSave(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "New summary.", res.Summary)

	notes, _ := c.Cache().Peek("alice")
	require.NotNil(t, notes[0].Summary)
	assert.Equal(t, "New summary.", *notes[0].Summary)
}

func TestSummarize_LateUpdateResponseKeepsNewSummary(t *testing.T) {
	store := newMemStore("alice")
	store.seed("alice", strings.Repeat("content ", 10))
	held := holdUpdates(store)
	c := signIn(t, held, &fakeSummarizer{summary: "New summary."}, "alice")
	ctx := context.Background()

	updateErr := make(chan error, 1)
	go func() {
		_, err := c.UpdateNote(ctx, 1, NotePatch{Content: strptr(strings.Repeat("edited ", 10))})
		updateErr <- err
	}()
	<-held.applied

	_, err := c.SummarizeAndSave(ctx, 1)
	require.NoError(t, err)

	close(held.release)
	require.NoError(t, <-updateErr)

	notes, status := c.Cache().Peek("alice")
	require.Len(t, notes, 1)
	require.NotNil(t, notes[0].Summary, "the older update response must not erase the summary")
	assert.Equal(t, "New summary.", *notes[0].Summary)
	assert.Equal(t, StatusStale, status)

	notes, err = c.Notes(ctx)
	require.NoError(t, err)
	require.NotNil(t, notes[0].Summary)
	assert.Equal(t, "New summary.", *notes[0].Summary)
	assert.Equal(t, strings.Repeat("edited ", 10), notes[0].Content)
}

func TestSummarize_SwitchingPrincipalsPrunesSettledState(t *testing.T) {
	store := newMemStore("alice")
	store.seed("alice", strings.Repeat("content ", 10))
	c := signIn(t, store, &fakeSummarizer{summary: "Short."}, "alice")

	_, err := c.SummarizeAndSave(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, SummaryDone, c.SummaryState(1))

	c.Session().Set(&Principal{ID: "bob"})
	assert.Equal(t, SummaryIdle, c.SummaryState(1))
}

func TestSummarize_SummarizerTimeout(t *testing.T) {
	store := newMemStore("alice")
	store.seed("alice", strings.Repeat("content ", 10))
	sum := &fakeSummarizer{summary: "never", gate: make(chan struct{})}
	defer close(sum.gate)

	c := NewClient(store, sum, Options{SummarizeTimeout: 20 * time.Millisecond})
	c.Session().Set(&Principal{ID: "alice"})
	_, err := c.Notes(context.Background())
	require.NoError(t, err)

	_, err = c.SummarizeAndSave(context.Background(), 1)
	assert.ErrorIs(t, err, ErrRemoteFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, Message(err), "timed out")
	assert.Equal(t, SummaryIdle, c.SummaryState(1))
}
