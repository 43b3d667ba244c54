// Package memory provides in-process adapters for single-instance deployments
// and development.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/target/learnhub/internal/domain/auth"
	"github.com/target/learnhub/internal/ports"
)

var _ ports.TokenStore = (*TokenStore)(nil)

// TokenStore keeps auth sessions in a map. Entries past their access-token
// expiry plus Retention are dropped on read.
type TokenStore struct {
	mu        sync.Mutex
	sessions  map[string]domainauth.AuthSession
	retention time.Duration
	now       func() time.Time
}

// NewTokenStore creates an empty store. A zero retention keeps sessions until deleted.
func NewTokenStore(retention time.Duration) *TokenStore {
	return &TokenStore{
		sessions:  make(map[string]domainauth.AuthSession),
		retention: retention,
		now:       time.Now,
	}
}

// WithClock replaces the clock; for tests.
func (s *TokenStore) WithClock(now func() time.Time) *TokenStore {
	s.now = now
	return s
}

func (s *TokenStore) Save(_ context.Context, clientID string, sess domainauth.AuthSession) error {
	if clientID == "" {
		return errors.New("client id cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[clientID] = sess
	return nil
}

func (s *TokenStore) Get(_ context.Context, clientID string) (domainauth.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[clientID]
	if !ok {
		return domainauth.AuthSession{}, domainauth.ErrNoSession
	}
	if s.retention > 0 && !sess.ExpiresAt.IsZero() && s.now().After(sess.ExpiresAt.Add(s.retention)) {
		delete(s.sessions, clientID)
		return domainauth.AuthSession{}, domainauth.ErrNoSession
	}
	return sess, nil
}

func (s *TokenStore) Delete(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, clientID)
	return nil
}
