package notesync

import (
	"context"
	"sync"
	"time"

	"notely/notely/utils/logging"

	"go.uber.org/zap"
)

// SessionChange describes one principal transition. A nil side means "signed out".
type SessionChange struct {
	Previous *Principal
	Current  *Principal
}

type listener struct {
	id int
	fn func(SessionChange)
}

// SessionContext holds at most one current principal. Every transition drops the
// previous principal's cache partition before subscribers hear about it.
type SessionContext struct {
	// transition serializes Set so subscribers see transitions one at a time, in order.
	transition sync.Mutex

	mu        sync.Mutex
	current   *Principal
	listeners []listener
	nextID    int

	cache *QueryCache
	now   func() time.Time
}

func NewSessionContext(cache *QueryCache) *SessionContext {
	return &SessionContext{cache: cache, now: time.Now}
}

func (s *SessionContext) Current() (Principal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Principal{}, false
	}
	return *s.current, true
}

// Set switches to p (nil signs out). Setting the principal that is already current is
// not a transition and notifies nobody. Subscribers must not call Set themselves.
func (s *SessionContext) Set(p *Principal) {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	prev := s.current
	if samePrincipal(prev, p) {
		if p != nil {
			// Same identity, refreshed details.
			cp := *p
			s.current = &cp
		}
		s.mu.Unlock()
		return
	}
	var next *Principal
	if p != nil {
		cp := *p
		next = &cp
	}
	s.current = next
	subs := make([]listener, len(s.listeners))
	copy(subs, s.listeners)
	s.mu.Unlock()

	if prev != nil && s.cache != nil {
		s.cache.Drop(prev.ID)
	}
	logging.AppLogger.Info("notesync session changed",
		zap.String("previous", principalID(prev)),
		zap.String("current", principalID(next)),
	)

	change := SessionChange{Previous: prev, Current: next}
	for _, l := range subs {
		l.fn(change)
	}
}

func (s *SessionContext) Clear() { s.Set(nil) }

// Subscribe registers fn for every future transition. The returned func unsubscribes;
// calling it more than once is harmless.
func (s *SessionContext) Subscribe(fn func(SessionChange)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Resolve asks src for the current session and installs its principal. Any failure,
// a missing session or an expired one resolves to "no principal".
func (s *SessionContext) Resolve(ctx context.Context, src SessionSource) (Principal, bool) {
	sess, err := src.CurrentSession(ctx)
	switch {
	case err != nil:
		logging.ErrorLogger.Error("notesync session lookup failed", zap.Error(err))
		s.Set(nil)
	case sess == nil || sess.Principal.ID == "" || sess.Expired(s.now()):
		s.Set(nil)
	default:
		s.Set(&sess.Principal)
	}
	return s.Current()
}

func samePrincipal(a, b *Principal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

func principalID(p *Principal) string {
	if p == nil {
		return ""
	}
	return p.ID
}
