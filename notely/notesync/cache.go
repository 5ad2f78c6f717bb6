package notesync

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"notely/notely/utils/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultStaleTime    = 5 * time.Minute
	DefaultGCTime       = 30 * time.Minute
	DefaultFetchTimeout = 30 * time.Second
)

type Status int

const (
	StatusAbsent Status = iota
	StatusLoading
	StatusFresh
	StatusStale
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusError:
		return "error"
	default:
		return "absent"
	}
}

// errPartitionDropped is returned to waiters whose partition was dropped mid-fetch.
var errPartitionDropped = errors.New("cache partition dropped")

// FetchFunc loads the authoritative note list of one principal.
type FetchFunc func(ctx context.Context, principalID string) ([]Note, error)

// Transform rewrites a partition's note list. It runs under the cache lock and must not block.
type Transform func(notes []Note) []Note

type CacheOptions struct {
	StaleTime    time.Duration
	GCTime       time.Duration
	FetchTimeout time.Duration
	Now          func() time.Time
}

func (o CacheOptions) withDefaults() CacheOptions {
	if o.StaleTime <= 0 {
		o.StaleTime = DefaultStaleTime
	}
	if o.GCTime <= 0 {
		o.GCTime = DefaultGCTime
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// partition is the cached note list of one principal.
type partition struct {
	gen       uint64
	notes     []Note
	hasData   bool
	fetchedAt time.Time
	lastUsed  time.Time
	invalid   bool
	fetching  bool
	err       error

	// touched holds the sequence of the last local write per note id. A fetch that
	// started before that write cannot overwrite the local value.
	touched map[int64]uint64
	// pending counts unsettled optimistic changes per note id; fetches never
	// overwrite those.
	pending map[int64]int
	// issued is the sequence of the newest mutation issued per note id.
	issued map[int64]uint64
}

// Snapshot undoes exactly one optimistic transform.
type Snapshot struct {
	principalID string
	gen         uint64
	seq         uint64
	before      map[int64]Note
	added       []int64
}

// Ticket identifies one issued mutation so its confirmation can be reconciled by
// issue order instead of arrival order.
type Ticket struct {
	principalID string
	gen         uint64
	seq         uint64
	noteID      int64
}

// QueryCache materializes "notes of principal P", newest first, one partition per
// principal. All reads and transforms of a partition are serialized by one mutex;
// remote fetches run outside it.
type QueryCache struct {
	mu         sync.Mutex
	partitions map[string]*partition
	fetch      FetchFunc
	opts       CacheOptions
	flight     singleflight.Group
	gen        uint64
	seq        uint64
}

func NewQueryCache(fetch FetchFunc, opts CacheOptions) *QueryCache {
	return &QueryCache{
		partitions: make(map[string]*partition),
		fetch:      fetch,
		opts:       opts.withDefaults(),
	}
}

func (c *QueryCache) nextSeqLocked() uint64 {
	c.seq++
	return c.seq
}

// partitionLocked returns the live partition for principalID, replacing one that sat
// unused past GCTime.
func (c *QueryCache) partitionLocked(principalID string, now time.Time) *partition {
	p := c.partitions[principalID]
	if p != nil && now.Sub(p.lastUsed) > c.opts.GCTime {
		c.evictLocked(principalID)
		p = nil
	}
	if p == nil {
		c.gen++
		p = &partition{
			gen:     c.gen,
			touched: make(map[int64]uint64),
			pending: make(map[int64]int),
			issued:  make(map[int64]uint64),
		}
		c.partitions[principalID] = p
	}
	p.lastUsed = now
	return p
}

func (c *QueryCache) evictLocked(principalID string) {
	delete(c.partitions, principalID)
	cacheEvictions.Inc()
}

func (c *QueryCache) freshLocked(p *partition, now time.Time) bool {
	return p.hasData && !p.invalid && p.err == nil && now.Sub(p.fetchedAt) < c.opts.StaleTime
}

// Get returns the cached notes of principalID without blocking. Missing data starts a
// background fetch and reports StatusLoading; stale data is returned as-is while a
// background refetch runs.
func (c *QueryCache) Get(principalID string) ([]Note, Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.Now()
	p := c.partitionLocked(principalID, now)
	switch {
	case !p.hasData && p.err != nil && !p.invalid:
		return nil, StatusError
	case !p.hasData:
		c.startFetchLocked(principalID, p)
		cacheMisses.Inc()
		return nil, StatusLoading
	case p.err != nil:
		return cloneNotes(p.notes), StatusError
	case c.freshLocked(p, now):
		cacheHits.Inc()
		return cloneNotes(p.notes), StatusFresh
	default:
		c.startFetchLocked(principalID, p)
		cacheHits.Inc()
		return cloneNotes(p.notes), StatusStale
	}
}

// Peek reports what Get would serve, without starting a fetch or touching the entry.
func (c *QueryCache) Peek(principalID string) ([]Note, Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.partitions[principalID]
	now := c.opts.Now()
	switch {
	case p == nil || now.Sub(p.lastUsed) > c.opts.GCTime:
		return nil, StatusAbsent
	case p.err != nil:
		return cloneNotes(p.notes), StatusError
	case !p.hasData:
		return nil, StatusLoading
	case c.freshLocked(p, now):
		return cloneNotes(p.notes), StatusFresh
	default:
		return cloneNotes(p.notes), StatusStale
	}
}

// Load returns fresh notes, fetching when the partition is missing, stale, invalidated
// or errored. Concurrent loads of one principal share a single remote call. ctx bounds
// only the wait; the fetch itself always completes and fills the cache.
func (c *QueryCache) Load(ctx context.Context, principalID string) ([]Note, error) {
	c.mu.Lock()
	now := c.opts.Now()
	p := c.partitionLocked(principalID, now)
	if c.freshLocked(p, now) {
		notes := cloneNotes(p.notes)
		c.mu.Unlock()
		cacheHits.Inc()
		return notes, nil
	}
	p.fetching = true
	gen := p.gen
	c.mu.Unlock()
	cacheMisses.Inc()

	select {
	case res := <-c.doFetch(principalID, gen):
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Note), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *QueryCache) startFetchLocked(principalID string, p *partition) {
	if p.fetching {
		return
	}
	p.fetching = true
	c.doFetch(principalID, p.gen)
}

func (c *QueryCache) doFetch(principalID string, gen uint64) <-chan singleflight.Result {
	key := principalID + "#" + strconv.FormatUint(gen, 10)
	return c.flight.DoChan(key, func() (any, error) {
		c.mu.Lock()
		start := c.nextSeqLocked()
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.FetchTimeout)
		defer cancel()
		defer logging.LogDuration(ctx, "notesync_cache_fetch")()

		notes, err := c.fetch(ctx, principalID)
		return c.applyFetch(principalID, gen, start, notes, err)
	})
}

// applyFetch installs a fetch result. Notes with unsettled optimistic changes, or
// written locally after the fetch started, keep their local value.
func (c *QueryCache) applyFetch(principalID string, gen, start uint64, fetched []Note, err error) ([]Note, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.partitions[principalID]
	if p == nil || p.gen != gen {
		cacheFetches.WithLabelValues("discarded").Inc()
		return nil, errPartitionDropped
	}
	p.fetching = false
	if err != nil {
		p.err = err
		p.invalid = false
		cacheFetches.WithLabelValues("error").Inc()
		logging.ErrorLogger.Error("notesync fetch failed",
			zap.String("principal_id", principalID), zap.Error(err))
		return nil, err
	}

	localWins := func(id int64) bool {
		return p.pending[id] > 0 || p.touched[id] > start
	}
	merged := make([]Note, 0, len(fetched)+len(p.notes))
	seen := make(map[int64]bool, len(fetched))
	for _, n := range fetched {
		if localWins(n.ID) || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		merged = append(merged, n)
	}
	for _, n := range p.notes {
		if localWins(n.ID) && !seen[n.ID] {
			seen[n.ID] = true
			merged = append(merged, n)
		}
	}
	sortNotes(merged)
	for id, seq := range p.touched {
		if seq < start && p.pending[id] == 0 {
			delete(p.touched, id)
		}
	}

	p.notes = merged
	p.hasData = true
	p.err = nil
	p.invalid = false
	p.fetchedAt = c.opts.Now()
	cacheFetches.WithLabelValues("ok").Inc()
	return cloneNotes(merged), nil
}

// Invalidate marks the partition stale; the next Get or Load refetches.
func (c *QueryCache) Invalidate(principalID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p := c.partitions[principalID]; p != nil {
		p.invalid = true
	}
}

// Refresh invalidates the partition and, when it holds data, refetches in the background.
func (c *QueryCache) Refresh(principalID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.partitions[principalID]
	if p == nil {
		return
	}
	p.invalid = true
	if p.hasData {
		c.startFetchLocked(principalID, p)
	}
}

// Drop forgets a partition. In-flight fetches and confirmations for it are discarded.
func (c *QueryCache) Drop(principalID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.partitions[principalID]; ok {
		c.evictLocked(principalID)
	}
}

// Sweep evicts partitions unused for longer than GCTime and returns how many it dropped.
func (c *QueryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.opts.Now()
	n := 0
	for id, p := range c.partitions {
		if now.Sub(p.lastUsed) > c.opts.GCTime {
			c.evictLocked(id)
			n++
		}
	}
	return n
}

// Run sweeps periodically until ctx is done.
func (c *QueryCache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.opts.GCTime / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				logging.AppLogger.Info("notesync cache swept", zap.Int("evicted", n))
			}
		}
	}
}

// Lookup finds one note. loaded reports whether the partition holds data at all.
func (c *QueryCache) Lookup(principalID string, id int64) (note Note, found, loaded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.partitions[principalID]
	if p == nil || !p.hasData {
		return Note{}, false, false
	}
	for _, n := range p.notes {
		if n.ID == id {
			return n, true, true
		}
	}
	return Note{}, false, true
}

// SetOptimistic applies fn to the partition now and returns a Snapshot that undoes
// exactly the notes fn changed. Until Commit or Rollback, fetches keep the local
// value of those notes. Partitions without data are left alone.
func (c *QueryCache) SetOptimistic(principalID string, fn Transform) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.partitions[principalID]
	snap := Snapshot{principalID: principalID, before: map[int64]Note{}}
	if p == nil || !p.hasData {
		return snap
	}
	snap.gen = p.gen
	snap.seq = c.nextSeqLocked()

	prev := make(map[int64]Note, len(p.notes))
	for _, n := range p.notes {
		prev[n.ID] = n
	}
	next := fn(cloneNotes(p.notes))
	sortNotes(next)

	nextIDs := make(map[int64]bool, len(next))
	for _, n := range next {
		nextIDs[n.ID] = true
		old, existed := prev[n.ID]
		switch {
		case !existed:
			snap.added = append(snap.added, n.ID)
		case !sameNote(old, n):
			snap.before[n.ID] = old
		}
	}
	for id, old := range prev {
		if !nextIDs[id] {
			snap.before[id] = old
		}
	}

	for _, id := range snap.ids() {
		p.pending[id]++
		p.touched[id] = snap.seq
	}
	p.notes = next
	return snap
}

func (s Snapshot) ids() []int64 {
	ids := make([]int64, 0, len(s.before)+len(s.added))
	for id := range s.before {
		ids = append(ids, id)
	}
	return append(ids, s.added...)
}

// Commit settles a successful optimistic change; the local value stays.
func (c *QueryCache) Commit(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.livePartitionLocked(s.principalID, s.gen)
	if p == nil {
		return
	}
	seq := c.nextSeqLocked()
	for _, id := range s.ids() {
		c.releaseLocked(p, id)
		p.touched[id] = seq
	}
}

// Rollback restores every note the snapshot's transform changed, in sort position,
// and removes notes it added. Later changes to other notes are kept.
func (c *QueryCache) Rollback(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.livePartitionLocked(s.principalID, s.gen)
	if p == nil {
		return
	}
	seq := c.nextSeqLocked()

	drop := make(map[int64]bool, len(s.before)+len(s.added))
	for _, id := range s.ids() {
		drop[id] = true
	}
	restored := make([]Note, 0, len(p.notes)+len(s.before))
	for _, n := range p.notes {
		if !drop[n.ID] {
			restored = append(restored, n)
		}
	}
	for _, n := range s.before {
		restored = append(restored, n)
	}
	sortNotes(restored)
	p.notes = restored

	for _, id := range s.ids() {
		c.releaseLocked(p, id)
		p.touched[id] = seq
	}
	cacheRollbacks.Inc()
}

func (c *QueryCache) releaseLocked(p *partition, id int64) {
	if p.pending[id] <= 1 {
		delete(p.pending, id)
		return
	}
	p.pending[id]--
}

func (c *QueryCache) livePartitionLocked(principalID string, gen uint64) *partition {
	p := c.partitions[principalID]
	if p == nil || gen == 0 || p.gen != gen {
		return nil
	}
	return p
}

// Begin records that a mutation of noteID was issued. Updates, summary saves and
// deletes pass the note id so older responses for that note are superseded; creates
// pass 0.
func (c *QueryCache) Begin(principalID string, noteID int64) Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := Ticket{principalID: principalID, noteID: noteID, seq: c.nextSeqLocked()}
	if p := c.partitions[principalID]; p != nil {
		t.gen = p.gen
		if noteID != 0 {
			p.issued[noteID] = t.seq
		}
	}
	return t
}

// Confirm installs the server's row for t. When a newer mutation of the same note was
// issued after t, or the note has left the cache since, the row is not applied and the
// partition is invalidated instead. Only create tickets add rows. Reports whether the
// row was applied.
func (c *QueryCache) Confirm(t Ticket, note Note) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.confirmablePartitionLocked(t)
	if p == nil || c.supersededLocked(p, t) {
		return false
	}
	replaced := false
	for i := range p.notes {
		if p.notes[i].ID == note.ID {
			p.notes[i] = note
			replaced = true
			break
		}
	}
	if !replaced {
		if t.noteID != 0 {
			p.invalid = true
			return false
		}
		p.notes = append(p.notes, note)
	}
	sortNotes(p.notes)
	p.touched[note.ID] = c.nextSeqLocked()
	return true
}

// Patch edits one cached note in place, under the same issue-order rule as Confirm.
// Missing notes are left missing.
func (c *QueryCache) Patch(t Ticket, id int64, fn func(*Note)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.confirmablePartitionLocked(t)
	if p == nil || c.supersededLocked(p, t) {
		return false
	}
	for i := range p.notes {
		if p.notes[i].ID == id {
			fn(&p.notes[i])
			p.touched[id] = c.nextSeqLocked()
			return true
		}
	}
	return false
}

// supersededLocked reports whether a newer mutation of t's note was issued after t, and
// invalidates the partition when one was.
func (c *QueryCache) supersededLocked(p *partition, t Ticket) bool {
	if t.noteID == 0 || p.issued[t.noteID] <= t.seq {
		return false
	}
	p.invalid = true
	return true
}

// confirmablePartitionLocked returns the partition t was issued against, if it still
// exists and has data.
func (c *QueryCache) confirmablePartitionLocked(t Ticket) *partition {
	p := c.partitions[t.principalID]
	if p == nil || !p.hasData {
		return nil
	}
	if t.gen != 0 && p.gen != t.gen {
		return nil
	}
	return p
}
