// Package remote connects notesync to the notely HTTP service: the note store, the
// summarize endpoint, the change feed and the bearer-token session.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"notely/notely/notesync"
	"notely/notely/utils/logging"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// TokenSource yields the bearer token for the current session, or "" when signed out.
type TokenSource interface {
	Token() string
}

// TokenSession keeps the access token of the signed-in user and publishes every sign in,
// refresh and sign out to the bound notesync.SessionContext. Tokens are issued and
// verified by the identity provider; the session only reads their claims.
type TokenSession struct {
	mu      sync.RWMutex
	current *notesync.Session
	target  *notesync.SessionContext
}

func NewTokenSession() *TokenSession {
	return &TokenSession{}
}

// Bind makes target receive every later transition.
func (s *TokenSession) Bind(target *notesync.SessionContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = target
}

func (s *TokenSession) publish(p *notesync.Principal) {
	s.mu.RLock()
	target := s.target
	s.mu.RUnlock()
	if target != nil {
		target.Set(p)
	}
}

// SignIn installs token and makes its subject the current principal.
func (s *TokenSession) SignIn(token string) (notesync.Principal, error) {
	sess, err := parseSession(token)
	if err != nil {
		return notesync.Principal{}, err
	}
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	p := sess.Principal
	s.publish(&p)
	logging.AppLogger.Info("notely session signed in",
		zap.String("user_id", p.ID), zap.Time("expires_at", sess.ExpiresAt))
	return p, nil
}

// Refresh swaps in a renewed token. A token for the same subject is not a session
// transition; a different subject switches principals.
func (s *TokenSession) Refresh(token string) (notesync.Principal, error) {
	s.mu.RLock()
	signedIn := s.current != nil
	s.mu.RUnlock()
	if !signedIn {
		return notesync.Principal{}, notesync.ErrUnauthenticated
	}
	return s.SignIn(token)
}

func (s *TokenSession) SignOut() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	s.publish(nil)
}

// CurrentSession implements notesync.SessionSource.
func (s *TokenSession) CurrentSession(ctx context.Context) (*notesync.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, nil
	}
	cp := *s.current
	return &cp, nil
}

func (s *TokenSession) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.AccessToken
}

func parseSession(token string) (*notesync.Session, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, errors.New("empty access token")
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("access token has no subject")
	}
	sess := &notesync.Session{Principal: notesync.Principal{ID: sub}, AccessToken: token}
	if email, ok := claims["email"].(string); ok {
		sess.Principal.Email = email
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		sess.ExpiresAt = exp.Time
	}
	return sess, nil
}
