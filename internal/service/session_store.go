package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	domainauth "github.com/target/learnhub/internal/domain/auth"
	"github.com/target/learnhub/internal/domain/session"
	"github.com/target/learnhub/internal/observability/statsd"
	"github.com/target/learnhub/internal/ports"
)

const (
	defaultInitTimeout    = 10 * time.Second
	defaultResolveTimeout = 5 * time.Second
	defaultRevalidate     = time.Minute
	sessionQueueSize      = 16
)

// ErrStoreClosed is returned by operations on a torn-down SessionStore.
var ErrStoreClosed = errors.New("session store closed")

// SessionStoreOptions groups dependencies for SessionStore.
type SessionStoreOptions struct {
	Client         ports.AuthClient    // Required: auth collaborator bound to one browser client
	Profiles       ports.ProfileLookup // Required: profile lookup keyed by user id
	InitTimeout    time.Duration       // Optional: bound on the initial identity check
	ResolveTimeout time.Duration       // Optional: bound on each profile lookup
	Revalidate     time.Duration       // Optional: longest gap between session re-checks
	Now            func() time.Time    // Optional: injectable clock for tests
	Logger         *slog.Logger        // Optional: structured logger
	Metrics        statsd.Sink         // Optional: defaults to statsd.Nop
	ClientID       string              // Optional: included in log records
}

type messageKind int

const (
	msgInitial messageKind = iota
	msgEvent
	msgBarrier
	msgRevalidate
)

type message struct {
	kind  messageKind
	seq   uint64 // events enqueued before the check began
	event domainauth.AuthEvent
	sess  *domainauth.AuthSession
	user  *domainauth.User
	err   error
	ack   chan struct{}
}

// SessionStore is the single source of truth for who is signed in on one
// browser client.
//
// All state writes happen on one goroutine that consumes the initialize result
// and the auth subscription's events in arrival order. The initialize result is
// applied only if no subscription event was applied first; a revalidation
// result likewise yields to any event that arrived while it was in flight.
// Readers take lock-free snapshots.
type SessionStore struct {
	client         ports.AuthClient
	profiles       ports.ProfileLookup
	initTimeout    time.Duration
	resolveTimeout time.Duration
	revalidate     time.Duration
	now            func() time.Time
	logger         *slog.Logger
	metrics        statsd.Sink

	state atomic.Pointer[session.State]
	msgs  chan message

	// events counts subscription events handed to the writer.
	events atomic.Uint64
	// checkAt is the unix-nano time the session is next re-checked; zero
	// outside Authenticated.
	checkAt atomic.Int64
	// expiresAt is the expiry of the applied session. Writer-owned.
	expiresAt    time.Time
	revalidateMu sync.Mutex

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	started     bool
	closed      atomic.Bool
	unsubscribe ports.Unsubscribe
	closeOnce   sync.Once
}

// NewSessionStore constructs a SessionStore in the Uninitialized state.
// Call Start to initialize it and Close to tear it down.
func NewSessionStore(opts SessionStoreOptions) (*SessionStore, error) {
	if opts.Client == nil {
		return nil, errors.New("auth client is required")
	}
	if opts.Profiles == nil {
		return nil, errors.New("profile lookup is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session_store")
	if opts.ClientID != "" {
		logger = logger.With("client_id", opts.ClientID)
	}

	var metrics statsd.Sink = statsd.Nop{}
	if opts.Metrics != nil {
		metrics = opts.Metrics
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &SessionStore{
		client:         opts.Client,
		profiles:       opts.Profiles,
		initTimeout:    durationOr(opts.InitTimeout, defaultInitTimeout),
		resolveTimeout: durationOr(opts.ResolveTimeout, defaultResolveTimeout),
		revalidate:     durationOr(opts.Revalidate, defaultRevalidate),
		now:            nowFn,
		logger:         logger,
		metrics:        metrics,
		msgs:           make(chan message, sessionQueueSize),
		ready:          make(chan struct{}),
		done:           make(chan struct{}),
		stopped:        make(chan struct{}),
		ctx:            ctx,
		cancel:         cancel,
	}
	initial := session.Uninitialized()
	s.state.Store(&initial)
	return s, nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Start subscribes to auth changes and begins the initial identity check.
// It is a no-op after the first call or after Close.
func (s *SessionStore) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed.Load() {
		return
	}
	s.started = true

	// Subscribe before querying so no event between the two is lost.
	s.unsubscribe = s.client.OnAuthStateChange(s.onAuthStateChange)

	go s.run()
	go s.initialize()
}

// Close releases the subscription and stops the writer. Events delivered after
// Close are dropped. Safe to call more than once.
func (s *SessionStore) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		s.mu.Lock()
		unsub := s.unsubscribe
		s.unsubscribe = nil
		started := s.started
		s.mu.Unlock()

		if unsub != nil {
			unsub()
		}
		s.cancel()
		close(s.done)
		if !started {
			close(s.stopped)
		}
		s.logger.Debug("session store closed")
	})
}

// State returns the current snapshot.
func (s *SessionStore) State() session.State {
	return *s.state.Load()
}

// Ready is closed once the state has left Uninitialized.
func (s *SessionStore) Ready() <-chan struct{} {
	return s.ready
}

// WaitReady blocks until the store is ready, ctx is done or the store closes,
// and returns the snapshot at that point.
func (s *SessionStore) WaitReady(ctx context.Context) session.State {
	select {
	case <-s.ready:
	case <-ctx.Done():
	case <-s.done:
	}
	return s.State()
}

// Settle returns once every event the auth collaborator has delivered so far
// has been applied.
func (s *SessionStore) Settle(ctx context.Context) error {
	ack := make(chan struct{})
	if !s.enqueue(message{kind: msgBarrier, ack: ack}) {
		return ErrStoreClosed
	}
	select {
	case <-ack:
		return nil
	case <-s.stopped:
		return ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Revalidate re-checks an Authenticated session with the auth collaborator
// once it is due: when the session has expired or the revalidate interval has
// passed. The collaborator refreshes or discards the session and reports the
// outcome through the subscription; Revalidate returns after it is applied.
// It does nothing when the check is not due.
func (s *SessionStore) Revalidate(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	s.revalidateMu.Lock()
	defer s.revalidateMu.Unlock()
	if !s.revalidateDue() {
		return nil
	}

	seq := s.events.Load()
	checkCtx, cancel := context.WithTimeout(ctx, s.initTimeout)
	user, err := s.client.GetCurrentUser(checkCtx)
	cancel()

	ack := make(chan struct{})
	if !s.enqueue(message{kind: msgRevalidate, seq: seq, user: user, err: err, ack: ack}) {
		return ErrStoreClosed
	}
	select {
	case <-ack:
		return nil
	case <-s.stopped:
		return ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SessionStore) revalidateDue() bool {
	at := s.checkAt.Load()
	return at != 0 && s.State().Kind() == session.KindAuthenticated && !s.now().Before(time.Unix(0, at))
}

// SignIn checks credentials with the auth collaborator. The resulting state
// change arrives through the subscription, never from this call.
func (s *SessionStore) SignIn(ctx context.Context, email, password string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domainauth.NewAuthError(domainauth.AuthErrInvalidInput, "Email and password are required.", nil)
	}
	if _, err := s.client.SignInWithPassword(ctx, email, password); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	return nil
}

// SignOut ends the session through the auth collaborator. Signing out while
// already Unauthenticated succeeds and leaves the state unchanged.
func (s *SessionStore) SignOut(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if err := s.client.SignOut(ctx); err != nil {
		if s.State().Kind() == session.KindUnauthenticated {
			s.logger.DebugContext(ctx, "sign out failed while already signed out", "error", err)
			return nil
		}
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// SignUpResult reports the outcome of a registration.
type SignUpResult struct {
	// ConfirmationRequired is true when no session was issued yet.
	ConfirmationRequired bool
}

// SignUp registers an account with profile metadata. It never establishes a
// session by itself; when the collaborator issues one immediately, the
// subscription applies it.
func (s *SessionStore) SignUp(ctx context.Context, in domainauth.SignUpInput) (SignUpResult, error) {
	if s.closed.Load() {
		return SignUpResult{}, ErrStoreClosed
	}
	role, err := domainauth.ParseRole(string(in.Role))
	if err != nil {
		return SignUpResult{}, domainauth.NewAuthError(domainauth.AuthErrInvalidInput, "Please choose a valid role.", err)
	}
	in.Role = role
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Email == "" || in.Password == "" {
		return SignUpResult{}, domainauth.NewAuthError(domainauth.AuthErrInvalidInput, "Email and password are required.", nil)
	}

	sess, err := s.client.SignUp(ctx, in)
	if err != nil {
		return SignUpResult{}, fmt.Errorf("sign up: %w", err)
	}
	return SignUpResult{ConfirmationRequired: sess == nil}, nil
}

func (s *SessionStore) onAuthStateChange(event domainauth.AuthEvent, sess *domainauth.AuthSession) {
	s.events.Add(1)
	if !s.enqueue(message{kind: msgEvent, event: event, sess: sess}) {
		s.logger.Debug("dropping auth event for closed store", "event", event)
	}
}

func (s *SessionStore) enqueue(m message) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.msgs <- m:
		return true
	case <-s.done:
		return false
	}
}

func (s *SessionStore) initialize() {
	ctx, cancel := context.WithTimeout(s.ctx, s.initTimeout)
	defer cancel()

	type result struct {
		user *domainauth.User
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		u, err := s.client.GetCurrentUser(ctx)
		ch <- result{user: u, err: err}
	}()

	var res result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res = result{err: fmt.Errorf("initial session check: %w", ctx.Err())}
	}
	s.enqueue(message{kind: msgInitial, user: res.user, err: res.err})
}

func (s *SessionStore) run() {
	defer close(s.stopped)

	var applied uint64
	for {
		select {
		case <-s.done:
			return
		case m := <-s.msgs:
			switch m.kind {
			case msgBarrier:
				close(m.ack)
			case msgInitial:
				if applied > 0 {
					s.logger.Debug("discarding initial session check superseded by auth event")
					continue
				}
				s.apply(s.resolveInitial(m.user, m.err), "initialize", time.Time{})
			case msgEvent:
				applied++
				var expires time.Time
				if m.sess != nil {
					expires = m.sess.ExpiresAt
				}
				s.apply(s.resolveEvent(m.event, m.sess), string(m.event), expires)
			case msgRevalidate:
				if applied > m.seq {
					s.logger.Debug("discarding session re-check superseded by auth event")
				} else {
					s.applyRevalidation(m.user, m.err)
				}
				close(m.ack)
			}
		}
	}
}

// applyRevalidation handles a re-check the collaborator answered without an
// event: the session is gone, still valid, or unreachable.
func (s *SessionStore) applyRevalidation(user *domainauth.User, err error) {
	current, ok := s.State().Identity()
	if !ok {
		return
	}
	now := s.now()
	switch {
	case err != nil:
		if !s.expiresAt.IsZero() && !now.Before(s.expiresAt) {
			s.logger.Warn("expired session could not be re-checked, treating as signed out", "error", err)
			s.apply(session.Unauthenticated(), "expired", time.Time{})
			return
		}
		s.logger.Warn("session re-check failed, keeping session", "error", err)
		s.schedule(now)
	case user == nil:
		s.apply(session.Unauthenticated(), "expired", time.Time{})
	case user.ID != current.ID:
		s.apply(s.resolveUser(*user), "revalidate", time.Time{})
	case !s.expiresAt.IsZero() && !now.Before(s.expiresAt):
		// Still valid upstream without a refresh event; expiry is unknown now.
		s.expiresAt = time.Time{}
		s.schedule(now)
	default:
		s.schedule(now)
	}
}

// schedule sets the next re-check to the session expiry or one revalidate
// interval from now, whichever comes first.
func (s *SessionStore) schedule(now time.Time) {
	if s.State().Kind() != session.KindAuthenticated {
		s.checkAt.Store(0)
		return
	}
	next := now.Add(s.revalidate)
	if !s.expiresAt.IsZero() && s.expiresAt.Before(next) {
		next = s.expiresAt
	}
	s.checkAt.Store(next.UnixNano())
}

func (s *SessionStore) resolveInitial(user *domainauth.User, err error) session.State {
	if err != nil {
		s.logger.Warn("initial session check failed, treating as signed out", "error", err)
		return session.Unauthenticated()
	}
	if user == nil {
		return session.Unauthenticated()
	}
	return s.resolveUser(*user)
}

func (s *SessionStore) resolveEvent(event domainauth.AuthEvent, sess *domainauth.AuthSession) session.State {
	if event == domainauth.EventSignedOut || sess == nil {
		return session.Unauthenticated()
	}
	return s.resolveUser(sess.User)
}

// resolveUser turns an auth user into a state by looking up the stored profile.
// Any failure resolves to Unauthenticated.
func (s *SessionStore) resolveUser(user domainauth.User) session.State {
	if user.ID == "" {
		s.logger.Warn("auth user without id, treating as signed out")
		return session.Unauthenticated()
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.resolveTimeout)
	defer cancel()

	started := time.Now()
	profile, err := s.profiles.GetUserProfile(ctx, user.ID)
	s.metrics.Timing("session.profile_lookup", time.Since(started), map[string]string{"ok": strconv.FormatBool(err == nil)})
	if err != nil {
		s.logger.Warn("profile resolution failed, treating as signed out", "user_id", user.ID, "error", err)
		return session.Unauthenticated()
	}
	switch {
	case profile.ID == "":
		profile.ID = user.ID
	case profile.ID != user.ID:
		s.logger.Warn("profile id does not match auth user", "user_id", user.ID, "profile_id", profile.ID)
		return session.Unauthenticated()
	}
	if profile.Email == "" {
		profile.Email = user.Email
	}

	id, err := profile.Identity()
	if err != nil {
		s.logger.Warn("profile has no usable role, treating as signed out", "user_id", user.ID, "error", err)
		return session.Unauthenticated()
	}
	st, err := session.Authenticated(id)
	if err != nil {
		s.logger.Warn("incomplete identity, treating as signed out", "user_id", user.ID, "error", err)
		return session.Unauthenticated()
	}
	return st
}

// apply writes next and records the expiry of the session behind it (zero
// when unknown). Only the writer goroutine calls it.
func (s *SessionStore) apply(next session.State, cause string, expiresAt time.Time) {
	if s.closed.Load() {
		return
	}
	prev := s.state.Swap(&next)
	s.readyOnce.Do(func() { close(s.ready) })
	s.expiresAt = expiresAt
	s.schedule(s.now())

	if prev.Kind() != next.Kind() {
		s.metrics.Count("session.transition", 1, map[string]string{
			"from":  prev.Kind().String(),
			"to":    next.Kind().String(),
			"cause": cause,
		})
		attrs := []any{"from", prev.String(), "to", next.String(), "cause", cause}
		if id, ok := next.Identity(); ok {
			attrs = append(attrs, "user_id", id.ID)
		}
		s.logger.Info("session state changed", attrs...)
	}
}
