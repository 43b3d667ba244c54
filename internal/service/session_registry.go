package service

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/target/learnhub/config"
	"github.com/target/learnhub/internal/observability/statsd"
	"github.com/target/learnhub/internal/ports"
)

// ErrRegistryClosed is returned by Acquire after Close.
var ErrRegistryClosed = errors.New("session registry closed")

// SessionRegistryOptions groups dependencies for SessionRegistry.
type SessionRegistryOptions struct {
	Factory  ports.AuthClientFactory // Required: builds per-client auth collaborators
	Profiles ports.ProfileLookup     // Required: shared profile lookup
	Config   config.SessionConfig    // Required: timeouts and capacity
	Logger   *slog.Logger            // Optional: structured logger
	Metrics  statsd.Sink             // Optional: defaults to statsd.Nop
	Now      func() time.Time        // Optional: injectable clock for tests
}

type registryEntry struct {
	clientID string
	store    *SessionStore
	lastSeen time.Time
}

// SessionRegistry owns one SessionStore per browser client. Stores are created
// and started on first Acquire and closed on idle expiry, capacity eviction or
// registry Close. Closing a store always releases its auth subscription.
// Concurrency: methods are safe for concurrent use.
type SessionRegistry struct {
	factory  ports.AuthClientFactory
	profiles ports.ProfileLookup
	cfg      config.SessionConfig
	logger   *slog.Logger
	metrics  statsd.Sink
	now      func() time.Time

	mu     sync.Mutex
	ll     *list.List               // front = most recently used
	items  map[string]*list.Element // client id -> element
	closed bool
}

// NewSessionRegistry constructs a SessionRegistry.
func NewSessionRegistry(opts SessionRegistryOptions) (*SessionRegistry, error) {
	if opts.Factory == nil {
		return nil, errors.New("auth client factory is required")
	}
	if opts.Profiles == nil {
		return nil, errors.New("profile lookup is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	var metrics statsd.Sink = statsd.Nop{}
	if opts.Metrics != nil {
		metrics = opts.Metrics
	}
	cfg := opts.Config
	cfg.Sanitize()

	return &SessionRegistry{
		factory:  opts.Factory,
		profiles: opts.Profiles,
		cfg:      cfg,
		logger:   logger.With("component", "session_registry"),
		metrics:  metrics,
		now:      nowFn,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}, nil
}

// Acquire returns the started store for clientID, creating it on first use.
func (r *SessionRegistry) Acquire(clientID string) (*SessionStore, error) {
	if clientID == "" {
		return nil, errors.New("client id is required")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	if el, ok := r.items[clientID]; ok {
		ent := el.Value.(*registryEntry)
		ent.lastSeen = r.now()
		r.ll.MoveToFront(el)
		r.mu.Unlock()
		return ent.store, nil
	}

	store, err := r.newStore(clientID)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.items[clientID] = r.ll.PushFront(&registryEntry{clientID: clientID, store: store, lastSeen: r.now()})
	store.Start()

	var evicted []*registryEntry
	for r.ll.Len() > r.cfg.MaxClients {
		evicted = append(evicted, r.removeElement(r.ll.Back()))
	}
	live := r.ll.Len()
	r.mu.Unlock()

	r.metrics.Count("session.store.created", 1, nil)
	for _, ent := range evicted {
		r.logger.Debug("evicting session store over capacity", "client_id", ent.clientID)
		ent.store.Close()
	}
	r.recordClosed(len(evicted), "capacity", live)
	return store, nil
}

func (r *SessionRegistry) newStore(clientID string) (*SessionStore, error) {
	client, err := r.factory.ForClient(clientID)
	if err != nil {
		return nil, fmt.Errorf("auth client for %s: %w", clientID, err)
	}
	return NewSessionStore(SessionStoreOptions{
		Client:         client,
		Profiles:       r.profiles,
		InitTimeout:    r.cfg.InitTimeout,
		ResolveTimeout: r.cfg.ResolveTimeout,
		Revalidate:     r.cfg.RevalidateInterval,
		Now:            r.now,
		Logger:         r.logger,
		Metrics:        r.metrics,
		ClientID:       clientID,
	})
}

func (r *SessionRegistry) removeElement(el *list.Element) *registryEntry {
	ent := el.Value.(*registryEntry)
	r.ll.Remove(el)
	delete(r.items, ent.clientID)
	return ent
}

// Release closes and forgets the store for clientID, if present.
func (r *SessionRegistry) Release(clientID string) {
	r.mu.Lock()
	el, ok := r.items[clientID]
	var ent *registryEntry
	if ok {
		ent = r.removeElement(el)
	}
	live := r.ll.Len()
	r.mu.Unlock()

	if ent != nil {
		ent.store.Close()
		r.recordClosed(1, "released", live)
	}
}

// Sweep closes stores not acquired within the idle TTL and returns how many it closed.
func (r *SessionRegistry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	var expired []*registryEntry
	for el := r.ll.Back(); el != nil; {
		ent := el.Value.(*registryEntry)
		if ent.lastSeen.After(cutoff) {
			break
		}
		prev := el.Prev()
		expired = append(expired, r.removeElement(el))
		el = prev
	}
	live := r.ll.Len()
	r.mu.Unlock()

	for _, ent := range expired {
		ent.store.Close()
	}
	r.recordClosed(len(expired), "idle", live)
	return len(expired)
}

func (r *SessionRegistry) recordClosed(n int, reason string, live int) {
	if n > 0 {
		r.metrics.Count("session.store.closed", int64(n), map[string]string{"reason": reason})
	}
	r.metrics.Gauge("session.store.live", float64(live), nil)
}

// Run sweeps idle stores at the configured interval until ctx is cancelled.
// Returns nil on graceful shutdown.
func (r *SessionRegistry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "starting session sweeper",
		"interval", r.cfg.SweepInterval,
		"idle_ttl", r.cfg.IdleTTL,
		"max_clients", r.cfg.MaxClients,
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.Sweep(r.now()); n > 0 {
				r.logger.DebugContext(ctx, "swept idle session stores", "count", n, "remaining", r.Len())
			}
		}
	}
}

// Len reports the number of live stores.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ll.Len()
}

// RegistryStats is a point-in-time view of the registry for health reporting.
type RegistryStats struct {
	Clients    int  `json:"clients"`
	MaxClients int  `json:"max_clients"`
	Closed     bool `json:"closed"`
}

// Stats reports live clients against capacity and whether the registry is closed.
func (r *SessionRegistry) Stats() RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RegistryStats{Clients: r.ll.Len(), MaxClients: r.cfg.MaxClients, Closed: r.closed}
}

// Close tears down every store. Further Acquire calls fail.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	stores := make([]*SessionStore, 0, r.ll.Len())
	for el := r.ll.Front(); el != nil; el = el.Next() {
		stores = append(stores, el.Value.(*registryEntry).store)
	}
	r.ll.Init()
	r.items = make(map[string]*list.Element)
	r.mu.Unlock()

	for _, s := range stores {
		s.Close()
	}
	r.recordClosed(len(stores), "shutdown", 0)
	r.logger.Info("session registry closed", "stores", len(stores))
}
