package notesync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticFetch(calls *int32, notes ...Note) FetchFunc {
	return func(ctx context.Context, principalID string) ([]Note, error) {
		atomic.AddInt32(calls, 1)
		return cloneNotes(notes), nil
	}
}

func TestQueryCache_LoadSortsNewestFirst(t *testing.T) {
	var calls int32
	notes := []Note{
		{ID: 1, CreatedAt: t0.Add(1 * time.Minute)},
		{ID: 2, CreatedAt: t0.Add(3 * time.Minute)},
		{ID: 3, CreatedAt: t0.Add(2 * time.Minute)},
	}
	c := NewQueryCache(staticFetch(&calls, notes...), CacheOptions{})

	got, err := c.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 1}, ids(got))

	cached, status := c.Get("alice")
	assert.Equal(t, StatusFresh, status)
	assert.Equal(t, []int64{2, 3, 1}, ids(cached))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestQueryCache_StaleWhileRevalidate(t *testing.T) {
	clock := newFakeClock()
	var calls int32
	c := NewQueryCache(staticFetch(&calls, Note{ID: 1, CreatedAt: t0}), CacheOptions{Now: clock.Now})

	_, err := c.Load(context.Background(), "alice")
	require.NoError(t, err)

	clock.Advance(4 * time.Minute)
	_, status := c.Get("alice")
	assert.Equal(t, StatusFresh, status)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	clock.Advance(2 * time.Minute)
	notes, status := c.Get("alice")
	assert.Equal(t, StatusStale, status)
	assert.Equal(t, []int64{1}, ids(notes), "stale data is served immediately")

	require.Eventually(t, func() bool {
		_, st := c.Peek("alice")
		return st == StatusFresh
	}, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestQueryCache_GetOnEmptyPartitionLoadsInBackground(t *testing.T) {
	var calls int32
	c := NewQueryCache(staticFetch(&calls, Note{ID: 9, CreatedAt: t0}), CacheOptions{})

	_, status := c.Peek("alice")
	assert.Equal(t, StatusAbsent, status)

	notes, status := c.Get("alice")
	assert.Nil(t, notes)
	assert.Equal(t, StatusLoading, status)

	require.Eventually(t, func() bool {
		notes, st := c.Get("alice")
		return st == StatusFresh && len(notes) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestQueryCache_EvictsUnusedPartitions(t *testing.T) {
	clock := newFakeClock()
	var calls int32
	c := NewQueryCache(staticFetch(&calls, Note{ID: 1, CreatedAt: t0}), CacheOptions{Now: clock.Now})

	_, err := c.Load(context.Background(), "alice")
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)
	_, status := c.Peek("alice")
	assert.Equal(t, StatusAbsent, status)
	assert.Equal(t, 1, c.Sweep())

	_, err = c.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls), "evicted partitions are refetched from scratch")
}

func TestQueryCache_InvalidateForcesRefetch(t *testing.T) {
	var calls int32
	c := NewQueryCache(staticFetch(&calls, Note{ID: 1, CreatedAt: t0}), CacheOptions{})

	_, err := c.Load(context.Background(), "alice")
	require.NoError(t, err)
	c.Invalidate("alice")

	_, status := c.Peek("alice")
	assert.Equal(t, StatusStale, status)
	_, err = c.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestQueryCache_FetchErrorIsReported(t *testing.T) {
	boom := errors.New("boom")
	c := NewQueryCache(func(ctx context.Context, principalID string) ([]Note, error) {
		return nil, boom
	}, CacheOptions{})

	_, err := c.Load(context.Background(), "alice")
	assert.ErrorIs(t, err, boom)

	_, status := c.Get("alice")
	assert.Equal(t, StatusError, status, "errors are not retried automatically")
}

func TestQueryCache_RollbackUndoesOnlyItsOwnChange(t *testing.T) {
	var calls int32
	c := NewQueryCache(staticFetch(&calls,
		Note{ID: 1, CreatedAt: t0.Add(1 * time.Minute)},
		Note{ID: 2, CreatedAt: t0.Add(2 * time.Minute)},
		Note{ID: 3, CreatedAt: t0.Add(3 * time.Minute)},
	), CacheOptions{})
	_, err := c.Load(context.Background(), "alice")
	require.NoError(t, err)

	removeTwo := c.SetOptimistic("alice", func(notes []Note) []Note {
		return append(notes[:1:1], notes[2:]...)
	})
	patchOne := c.SetOptimistic("alice", func(notes []Note) []Note {
		for i := range notes {
			if notes[i].ID == 1 {
				notes[i].Content = "edited"
			}
		}
		return notes
	})
	_ = patchOne

	notes, _ := c.Peek("alice")
	assert.Equal(t, []int64{3, 1}, ids(notes))

	c.Rollback(removeTwo)
	notes, _ = c.Peek("alice")
	assert.Equal(t, []int64{3, 2, 1}, ids(notes), "note 2 returns to its original position")
	assert.Equal(t, "edited", notes[2].Content, "the unrelated optimistic edit is kept")
}

func TestQueryCache_FetchStartedBeforeDeleteCannotResurrect(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var blocking atomic.Bool
	row := Note{ID: 1, CreatedAt: t0, UserID: "alice"}
	c := NewQueryCache(func(ctx context.Context, principalID string) ([]Note, error) {
		if blocking.Load() {
			started <- struct{}{}
			<-release
		}
		return []Note{row}, nil
	}, CacheOptions{})

	_, err := c.Load(context.Background(), "alice")
	require.NoError(t, err)

	blocking.Store(true)
	c.Invalidate("alice")
	done := make(chan []Note)
	go func() {
		notes, _ := c.Load(context.Background(), "alice")
		done <- notes
	}()
	<-started

	snap := c.SetOptimistic("alice", func(notes []Note) []Note { return notes[:0] })
	c.Commit(snap)
	close(release)

	assert.Empty(t, <-done, "the old snapshot still lists the row, but the confirmed delete wins")
	notes, _ := c.Peek("alice")
	assert.Empty(t, notes)
}

func TestQueryCache_LateConfirmationDoesNotClobberNewerWrite(t *testing.T) {
	var calls int32
	c := NewQueryCache(staticFetch(&calls, Note{ID: 1, CreatedAt: t0, Content: "v0"}), CacheOptions{})
	_, err := c.Load(context.Background(), "alice")
	require.NoError(t, err)

	first := c.Begin("alice", 1)
	second := c.Begin("alice", 1)

	assert.True(t, c.Confirm(second, Note{ID: 1, CreatedAt: t0, Content: "v2"}))
	assert.False(t, c.Confirm(first, Note{ID: 1, CreatedAt: t0, Content: "v1"}))

	notes, status := c.Peek("alice")
	assert.Equal(t, "v2", notes[0].Content)
	assert.Equal(t, StatusStale, status, "a superseded confirmation invalidates the partition")
}

func TestQueryCache_LateConfirmationDoesNotClobberNewerPatch(t *testing.T) {
	var calls int32
	c := NewQueryCache(staticFetch(&calls, Note{ID: 1, CreatedAt: t0, Content: "v0"}), CacheOptions{})
	_, err := c.Load(context.Background(), "alice")
	require.NoError(t, err)

	update := c.Begin("alice", 1)
	save := c.Begin("alice", 1)
	assert.True(t, c.Patch(save, 1, func(n *Note) { n.Summary = strptr("fresh") }))
	assert.False(t, c.Confirm(update, Note{ID: 1, CreatedAt: t0, Content: "v1"}))

	notes, status := c.Peek("alice")
	require.NotNil(t, notes[0].Summary)
	assert.Equal(t, "fresh", *notes[0].Summary)
	assert.Equal(t, "v0", notes[0].Content)
	assert.Equal(t, StatusStale, status)

	later := c.Begin("alice", 1)
	assert.False(t, c.Patch(save, 1, func(n *Note) { n.Summary = strptr("late") }), "a superseded patch is skipped")
	assert.True(t, c.Confirm(later, Note{ID: 1, CreatedAt: t0, Content: "v2"}))
}

func TestQueryCache_ConfirmDoesNotReinsertRemovedNote(t *testing.T) {
	var calls int32
	c := NewQueryCache(staticFetch(&calls,
		Note{ID: 1, CreatedAt: t0},
		Note{ID: 2, CreatedAt: t0.Add(time.Minute)},
	), CacheOptions{})
	_, err := c.Load(context.Background(), "alice")
	require.NoError(t, err)

	update := c.Begin("alice", 2)
	snap := c.SetOptimistic("alice", func(notes []Note) []Note {
		out := notes[:0]
		for _, n := range notes {
			if n.ID != 2 {
				out = append(out, n)
			}
		}
		return out
	})
	c.Commit(snap)

	assert.False(t, c.Confirm(update, Note{ID: 2, CreatedAt: t0.Add(time.Minute), Content: "edited"}))
	notes, status := c.Peek("alice")
	assert.Equal(t, []int64{1}, ids(notes))
	assert.Equal(t, StatusStale, status)

	created := c.Begin("alice", 0)
	assert.True(t, c.Confirm(created, Note{ID: 3, CreatedAt: t0.Add(2 * time.Minute)}))
	notes, _ = c.Peek("alice")
	assert.Equal(t, []int64{3, 1}, ids(notes))
}

func TestQueryCache_DropDiscardsInFlightFetch(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	c := NewQueryCache(func(ctx context.Context, principalID string) ([]Note, error) {
		close(started)
		<-release
		return []Note{{ID: 1, CreatedAt: t0}}, nil
	}, CacheOptions{})

	errCh := make(chan error)
	go func() {
		_, err := c.Load(context.Background(), "alice")
		errCh <- err
	}()
	<-started
	c.Drop("alice")
	close(release)

	assert.ErrorIs(t, <-errCh, errPartitionDropped)
	_, status := c.Peek("alice")
	assert.Equal(t, StatusAbsent, status)
}

func TestQueryCache_ConcurrentLoadsShareOneFetch(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	c := NewQueryCache(func(ctx context.Context, principalID string) ([]Note, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil, nil
	}, CacheOptions{})

	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, err := c.Load(context.Background(), "alice")
			errs <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	for i := 0; i < 5; i++ {
		require.NoError(t, <-errs)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestQueryCache_LoadHonoursCallerContext(t *testing.T) {
	release := make(chan struct{})
	c := NewQueryCache(func(ctx context.Context, principalID string) ([]Note, error) {
		<-release
		return []Note{{ID: 4, CreatedAt: t0}}, nil
	}, CacheOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Load(ctx, "alice")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.Eventually(t, func() bool {
		notes, st := c.Peek("alice")
		return st == StatusFresh && len(notes) == 1
	}, time.Second, 5*time.Millisecond, "the fetch completes even though the caller left")
}
