// Package ports defines interfaces (hexagonal ports) for the auth collaborator,
// profile lookup and dashboard data. Implementations live in internal/adapters;
// orchestration in internal/service.
package ports

import (
	"context"

	domainauth "github.com/target/learnhub/internal/domain/auth"
)

// AuthStateListener receives auth state changes. sess is nil for SignedOut.
// Listeners must not block; the store enqueues and returns.
type AuthStateListener func(event domainauth.AuthEvent, sess *domainauth.AuthSession)

// Unsubscribe releases a listener registration. Calling it more than once is safe.
type Unsubscribe func()

// AuthClient is the auth collaborator as seen by one browser client.
type AuthClient interface {
	// SignInWithPassword verifies credentials and issues a session.
	// On success the client emits SignedIn before returning.
	SignInWithPassword(ctx context.Context, email, password string) (*domainauth.AuthSession, error)

	// SignUp registers an account with profile metadata. A nil session means
	// a confirmation step is pending.
	SignUp(ctx context.Context, in domainauth.SignUpInput) (*domainauth.AuthSession, error)

	// SignOut ends the current session and emits SignedOut. It succeeds when no
	// session exists.
	SignOut(ctx context.Context) error

	// GetCurrentUser returns the user of a still-valid session, or nil.
	GetCurrentUser(ctx context.Context) (*domainauth.User, error)

	// OnAuthStateChange registers listener for subsequent events.
	OnAuthStateChange(listener AuthStateListener) Unsubscribe
}

// AuthClientFactory binds an AuthClient to a browser client identifier so that
// issued sessions are scoped to that client.
type AuthClientFactory interface {
	ForClient(clientID string) (AuthClient, error)
}

// ProfileLookup resolves a user id to the stored profile row. A missing row is
// reported as an errors.NotFound AppError.
type ProfileLookup interface {
	GetUserProfile(ctx context.Context, userID string) (domainauth.Profile, error)
}

// TokenStore persists the auth session issued to a browser client.
// Get returns domainauth.ErrNoSession when nothing is stored.
type TokenStore interface {
	Save(ctx context.Context, clientID string, sess domainauth.AuthSession) error
	Get(ctx context.Context, clientID string) (domainauth.AuthSession, error)
	Delete(ctx context.Context, clientID string) error
}
