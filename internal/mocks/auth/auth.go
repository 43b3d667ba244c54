// Package auth contains hand-written test doubles for the auth ports.
// They are deterministic and need no codegen.
package auth

import (
	"context"
	"sync"

	"github.com/target/learnhub/internal/adapters/authevents"
	domainauth "github.com/target/learnhub/internal/domain/auth"
	apperrors "github.com/target/learnhub/internal/errors"
	"github.com/target/learnhub/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthClient        = (*FakeAuthClient)(nil)
	_ ports.AuthClientFactory = (*FakeAuthFactory)(nil)
	_ ports.ProfileLookup     = (*FakeProfiles)(nil)
)

// Account is a credential known to FakeAuthClient.
type Account struct {
	Password string
	User     domainauth.User
}

// FakeAuthClient simulates the auth collaborator. Successful SignIn and SignOut
// emit events synchronously, like the real adapters.
type FakeAuthClient struct {
	emitter authevents.Emitter

	mu       sync.Mutex
	accounts map[string]Account
	current  *domainauth.AuthSession

	// Optional overrides.
	SignInErr          error
	SignUpErr          error
	SignOutErr         error
	GetCurrentUserFunc func(ctx context.Context) (*domainauth.User, error)
	// SignUpIssuesSession signs the new account in immediately.
	SignUpIssuesSession bool

	SignUps          []domainauth.SignUpInput
	SignOutCalls     int
	CurrentUserCalls int
}

// NewFakeAuthClient creates a client knowing accounts keyed by email.
func NewFakeAuthClient(accounts map[string]Account) *FakeAuthClient {
	if accounts == nil {
		accounts = map[string]Account{}
	}
	return &FakeAuthClient{accounts: accounts}
}

// WithSession starts the client with an existing session.
func (f *FakeAuthClient) WithSession(user domainauth.User) *FakeAuthClient {
	f.current = &domainauth.AuthSession{AccessToken: "token-" + user.ID, User: user}
	return f
}

func (f *FakeAuthClient) SignInWithPassword(_ context.Context, email, password string) (*domainauth.AuthSession, error) {
	f.mu.Lock()
	if f.SignInErr != nil {
		err := f.SignInErr
		f.mu.Unlock()
		return nil, err
	}
	acct, ok := f.accounts[email]
	if !ok || acct.Password != password {
		f.mu.Unlock()
		return nil, domainauth.NewAuthError(domainauth.AuthErrInvalidCredentials, "Invalid login credentials", nil)
	}
	sess := &domainauth.AuthSession{AccessToken: "token-" + acct.User.ID, User: acct.User}
	f.current = sess
	f.mu.Unlock()

	f.emitter.Emit(domainauth.EventSignedIn, sess)
	return sess, nil
}

func (f *FakeAuthClient) SignUp(_ context.Context, in domainauth.SignUpInput) (*domainauth.AuthSession, error) {
	f.mu.Lock()
	f.SignUps = append(f.SignUps, in)
	if f.SignUpErr != nil {
		err := f.SignUpErr
		f.mu.Unlock()
		return nil, err
	}
	if _, exists := f.accounts[in.Email]; exists {
		f.mu.Unlock()
		return nil, domainauth.NewAuthError(domainauth.AuthErrDuplicateAccount, "User already registered", nil)
	}
	user := domainauth.User{ID: "user-" + in.Email, Email: in.Email, Metadata: in.Metadata()}
	f.accounts[in.Email] = Account{Password: in.Password, User: user}
	if !f.SignUpIssuesSession {
		f.mu.Unlock()
		return nil, nil
	}
	sess := &domainauth.AuthSession{AccessToken: "token-" + user.ID, User: user}
	f.current = sess
	f.mu.Unlock()

	f.emitter.Emit(domainauth.EventSignedIn, sess)
	return sess, nil
}

func (f *FakeAuthClient) SignOut(_ context.Context) error {
	f.mu.Lock()
	f.SignOutCalls++
	if f.SignOutErr != nil {
		err := f.SignOutErr
		f.mu.Unlock()
		return err
	}
	f.current = nil
	f.mu.Unlock()

	f.emitter.Emit(domainauth.EventSignedOut, nil)
	return nil
}

func (f *FakeAuthClient) GetCurrentUser(ctx context.Context) (*domainauth.User, error) {
	f.mu.Lock()
	f.CurrentUserCalls++
	fn := f.GetCurrentUserFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil, nil
	}
	u := f.current.User
	return &u, nil
}

func (f *FakeAuthClient) OnAuthStateChange(listener ports.AuthStateListener) ports.Unsubscribe {
	return f.emitter.Subscribe(listener)
}

// Push delivers an externally originated event, such as a token refresh or a
// sign-out from another tab.
func (f *FakeAuthClient) Push(event domainauth.AuthEvent, sess *domainauth.AuthSession) {
	f.emitter.Emit(event, sess)
}

// Forget drops the session without telling subscribers, as when it is
// revoked out of band.
func (f *FakeAuthClient) Forget() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = nil
}

// SetCurrentUserFunc replaces GetCurrentUser's behavior while the client is in use.
func (f *FakeAuthClient) SetCurrentUserFunc(fn func(ctx context.Context) (*domainauth.User, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCurrentUserFunc = fn
}

// Calls reports how many times GetCurrentUser ran.
func (f *FakeAuthClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CurrentUserCalls
}

// Listeners reports how many subscriptions are live.
func (f *FakeAuthClient) Listeners() int { return f.emitter.Len() }

// FakeAuthFactory hands out one FakeAuthClient per client id.
type FakeAuthFactory struct {
	mu      sync.Mutex
	New     func(clientID string) *FakeAuthClient
	Clients map[string]*FakeAuthClient
}

func (f *FakeAuthFactory) ForClient(clientID string) (ports.AuthClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Clients == nil {
		f.Clients = map[string]*FakeAuthClient{}
	}
	if c, ok := f.Clients[clientID]; ok {
		return c, nil
	}
	var c *FakeAuthClient
	if f.New != nil {
		c = f.New(clientID)
	} else {
		c = NewFakeAuthClient(nil)
	}
	f.Clients[clientID] = c
	return c, nil
}

// Client returns the client created for clientID, if any.
func (f *FakeAuthFactory) Client(clientID string) *FakeAuthClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Clients[clientID]
}

// FakeProfiles is an in-memory profile table.
type FakeProfiles struct {
	mu       sync.Mutex
	Profiles map[string]domainauth.Profile
	Err      error
	Lookups  int
}

func (f *FakeProfiles) GetUserProfile(_ context.Context, userID string) (domainauth.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Lookups++
	if f.Err != nil {
		return domainauth.Profile{}, f.Err
	}
	p, ok := f.Profiles[userID]
	if !ok {
		return domainauth.Profile{}, apperrors.NotFoundf("profile %s not found", userID)
	}
	return p, nil
}

// Put stores a profile row.
func (f *FakeProfiles) Put(p domainauth.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Profiles == nil {
		f.Profiles = map[string]domainauth.Profile{}
	}
	f.Profiles[p.ID] = p
}
