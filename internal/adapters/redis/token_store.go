// Package redis provides Redis-based adapters for learnhub.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/target/learnhub/internal/domain/auth"
)

const (
	defaultPrefix    = "authsession:"
	defaultRetention = 7 * 24 * time.Hour
)

// TokenStoreOptions groups optional TokenStore settings.
type TokenStoreOptions struct {
	Prefix string
	// Retention is how long a session stays stored past its access token expiry,
	// i.e. the window in which the refresh token can still be used.
	Retention time.Duration
}

// TokenStore persists each browser client's auth session as JSON in Redis.
// Keys expire once the refresh window has passed.
type TokenStore struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewTokenStore creates a Redis-backed token store.
func NewTokenStore(client redis.UniversalClient, opts TokenStoreOptions) *TokenStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	return &TokenStore{client: client, prefix: prefix, retention: retention}
}

func (s *TokenStore) Save(ctx context.Context, clientID string, sess domainauth.AuthSession) error {
	if clientID == "" {
		return errors.New("client id cannot be empty")
	}
	if sess.AccessToken == "" {
		return errors.New("auth session has no access token")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal auth session: %w", err)
	}

	ttl := s.retention
	if !sess.ExpiresAt.IsZero() {
		ttl = time.Until(sess.ExpiresAt) + s.retention
		if ttl <= 0 {
			return errors.New("auth session is past its refresh window")
		}
	}
	if err := s.client.Set(ctx, s.prefix+clientID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *TokenStore) Get(ctx context.Context, clientID string) (domainauth.AuthSession, error) {
	if clientID == "" {
		return domainauth.AuthSession{}, domainauth.ErrNoSession
	}

	data, err := s.client.Get(ctx, s.prefix+clientID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.AuthSession{}, domainauth.ErrNoSession
		}
		return domainauth.AuthSession{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.AuthSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return domainauth.AuthSession{}, fmt.Errorf("unmarshal auth session: %w", err)
	}
	return sess, nil
}

func (s *TokenStore) Delete(ctx context.Context, clientID string) error {
	if clientID == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.prefix+clientID).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
