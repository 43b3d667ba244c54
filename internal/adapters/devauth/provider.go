// Package devauth provides a config-driven, in-memory auth collaborator and
// profile table for local development. Passwords are bcrypt-hashed; issued
// sessions live in a ports.TokenStore keyed by browser client.
package devauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/target/learnhub/internal/adapters/authevents"
	domainauth "github.com/target/learnhub/internal/domain/auth"
	apperrors "github.com/target/learnhub/internal/errors"
	"github.com/target/learnhub/internal/ports"
)

const minPasswordLength = 6

// User seeds an account. Seeded accounts are confirmed.
type User struct {
	Email    string
	Password string
	Role     string
	FullName string
}

// Config controls the dev directory.
type Config struct {
	Users       []User
	AutoConfirm bool             // sign-ups are confirmed and signed in immediately
	SessionTTL  time.Duration    // default 1h when zero
	Tokens      ports.TokenStore // required
	Now         func() time.Time // optional, for tests
	// Cost is the bcrypt cost; zero uses bcrypt.DefaultCost.
	Cost int
}

type account struct {
	id          string
	email       string
	hash        []byte
	fullName    string
	role        string
	confirmedAt *time.Time
	createdAt   time.Time
}

func (a *account) user() domainauth.User {
	return domainauth.User{
		ID:               a.id,
		Email:            a.email,
		Metadata:         map[string]any{"full_name": a.fullName, "role": a.role},
		EmailConfirmedAt: a.confirmedAt,
	}
}

// Directory is the shared account table. It implements ports.AuthClientFactory
// and ports.ProfileLookup.
type Directory struct {
	mu      sync.RWMutex
	byEmail map[string]*account
	byID    map[string]*account

	tokens      ports.TokenStore
	autoConfirm bool
	ttl         time.Duration
	cost        int
	now         func() time.Time
}

var (
	_ ports.AuthClientFactory = (*Directory)(nil)
	_ ports.ProfileLookup     = (*Directory)(nil)
	_ ports.AuthClient        = (*Client)(nil)
)

// NewDirectory builds a directory from Config.
func NewDirectory(cfg Config) (*Directory, error) {
	if cfg.Tokens == nil {
		return nil, errors.New("dev auth: token store is required")
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	cost := cfg.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	d := &Directory{
		byEmail:     make(map[string]*account),
		byID:        make(map[string]*account),
		tokens:      cfg.Tokens,
		autoConfirm: cfg.AutoConfirm,
		ttl:         ttl,
		cost:        cost,
		now:         nowFn,
	}
	for _, u := range cfg.Users {
		if _, err := d.addAccount(u, true); err != nil {
			return nil, fmt.Errorf("dev auth: seed %s: %w", u.Email, err)
		}
	}
	return d, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (d *Directory) addAccount(u User, confirmed bool) (*account, error) {
	email := normalizeEmail(u.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domainauth.NewAuthError(domainauth.AuthErrInvalidInput, "A valid email is required.", nil)
	}
	if len(u.Password) < minPasswordLength {
		return nil, domainauth.NewAuthError(domainauth.AuthErrInvalidInput,
			fmt.Sprintf("Password should be at least %d characters.", minPasswordLength), nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), d.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := d.now()
	acct := &account{
		id:        uuid.NewString(),
		email:     email,
		hash:      hash,
		fullName:  u.FullName,
		role:      u.Role,
		createdAt: now,
	}
	if confirmed {
		acct.confirmedAt = &now
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byEmail[email]; exists {
		return nil, domainauth.NewAuthError(domainauth.AuthErrDuplicateAccount, "User already registered", nil)
	}
	d.byEmail[email] = acct
	d.byID[acct.id] = acct
	return acct, nil
}

// Confirm marks a pending sign-up as confirmed.
func (d *Directory) Confirm(email string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	acct, ok := d.byEmail[normalizeEmail(email)]
	if !ok {
		return apperrors.NotFoundf("account %s not found", email)
	}
	if acct.confirmedAt == nil {
		now := d.now()
		acct.confirmedAt = &now
	}
	return nil
}

// UserID returns the id assigned to email.
func (d *Directory) UserID(email string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acct, ok := d.byEmail[normalizeEmail(email)]
	if !ok {
		return "", false
	}
	return acct.id, true
}

// GetUserProfile implements ports.ProfileLookup.
func (d *Directory) GetUserProfile(_ context.Context, userID string) (domainauth.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acct, ok := d.byID[userID]
	if !ok {
		return domainauth.Profile{}, apperrors.NotFoundf("profile %s not found", userID)
	}
	return domainauth.Profile{
		ID:        acct.id,
		Email:     acct.email,
		FullName:  acct.fullName,
		Role:      acct.role,
		CreatedAt: acct.createdAt,
		UpdatedAt: acct.createdAt,
	}, nil
}

// ForClient implements ports.AuthClientFactory.
func (d *Directory) ForClient(clientID string) (ports.AuthClient, error) {
	if clientID == "" {
		return nil, errors.New("dev auth: client id is required")
	}
	return &Client{dir: d, clientID: clientID}, nil
}

func (d *Directory) lookup(email string) (*account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acct, ok := d.byEmail[normalizeEmail(email)]
	return acct, ok
}

func (d *Directory) lookupID(id string) (*account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acct, ok := d.byID[id]
	return acct, ok
}

// Client is the per-browser-client view of the directory.
type Client struct {
	dir      *Directory
	clientID string
	events   authevents.Emitter
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domainauth.AuthSession, error) {
	acct, ok := c.dir.lookup(email)
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(password)) != nil {
		return nil, domainauth.NewAuthError(domainauth.AuthErrInvalidCredentials, "Invalid login credentials", nil)
	}
	if acct.confirmedAt == nil {
		return nil, domainauth.NewAuthError(domainauth.AuthErrEmailNotConfirmed, "Email not confirmed", nil)
	}
	return c.issue(ctx, acct)
}

func (c *Client) SignUp(ctx context.Context, in domainauth.SignUpInput) (*domainauth.AuthSession, error) {
	acct, err := c.dir.addAccount(User{
		Email:    in.Email,
		Password: in.Password,
		Role:     string(in.Role),
		FullName: in.FullName,
	}, c.dir.autoConfirm)
	if err != nil {
		return nil, err
	}
	if !c.dir.autoConfirm {
		return nil, nil
	}
	return c.issue(ctx, acct)
}

func (c *Client) issue(ctx context.Context, acct *account) (*domainauth.AuthSession, error) {
	access, err := randomString(32)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, err := randomString(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	sess := domainauth.AuthSession{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    c.dir.now().Add(c.dir.ttl),
		User:         acct.user(),
	}
	if err := c.dir.tokens.Save(ctx, c.clientID, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	c.events.Emit(domainauth.EventSignedIn, &sess)
	return &sess, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	if err := c.dir.tokens.Delete(ctx, c.clientID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	c.events.Emit(domainauth.EventSignedOut, nil)
	return nil
}

func (c *Client) GetCurrentUser(ctx context.Context) (*domainauth.User, error) {
	sess, err := c.dir.tokens.Get(ctx, c.clientID)
	if err != nil {
		if errors.Is(err, domainauth.ErrNoSession) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.Expired(c.dir.now()) {
		if err := c.dir.tokens.Delete(ctx, c.clientID); err != nil {
			return nil, fmt.Errorf("delete expired session: %w", err)
		}
		c.events.Emit(domainauth.EventSignedOut, nil)
		return nil, nil
	}
	acct, ok := c.dir.lookupID(sess.User.ID)
	if !ok {
		return nil, nil
	}
	u := acct.user()
	return &u, nil
}

func (c *Client) OnAuthStateChange(listener ports.AuthStateListener) ports.Unsubscribe {
	return c.events.Subscribe(listener)
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
