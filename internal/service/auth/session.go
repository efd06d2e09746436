package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/campusmind/portal/backend/internal/model/identity"
)

const tokenBytes = 32

// SessionStore keeps active sessions in memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]identity.Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store whose sessions live for ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{
		sessions: make(map[string]identity.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL returns the configured session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Create issues a new session for grant.
func (s *SessionStore) Create(grant identity.Grant) (identity.Session, error) {
	token, err := newToken()
	if err != nil {
		return identity.Session{}, err
	}

	now := s.now().UTC()
	session := identity.Session{
		Token:         token,
		User:          grant.User,
		ProviderToken: grant.Token,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[token] = session
	s.mu.Unlock()
	return session, nil
}

// Get returns the live session for token, dropping it when expired.
func (s *SessionStore) Get(token string) (identity.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return identity.Session{}, false
	}
	if session.Expired(s.now()) {
		s.Delete(token)
		return identity.Session{}, false
	}
	return session, true
}

// UpdateUser replaces the user stored in the session.
func (s *SessionStore) UpdateUser(token string, user identity.User) (identity.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return identity.Session{}, false
	}
	session.User = user
	s.sessions[token] = session
	return session, true
}

// Delete removes a session. Unknown tokens are ignored.
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Sweep removes expired sessions and reports how many were dropped.
func (s *SessionStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for token, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
