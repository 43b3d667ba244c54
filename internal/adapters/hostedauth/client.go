package hostedauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/learnhub/internal/adapters/authevents"
	domainauth "github.com/target/learnhub/internal/domain/auth"
	"github.com/target/learnhub/internal/ports"
)

// Config configures the hosted auth client factory.
type Config struct {
	URL        string
	AnonKey    string
	JWTSecret  string // optional, enables HS256 verification
	Timeout    time.Duration
	HTTPClient *http.Client // optional
	Tokens     ports.TokenStore
	Logger     *slog.Logger
	Now        func() time.Time
}

// Factory issues per-browser-client auth clients sharing one HTTP client and
// token store.
type Factory struct {
	api    *api
	tokens ports.TokenStore
	parser *tokenParser
	logger *slog.Logger
	now    func() time.Time
}

var (
	_ ports.AuthClientFactory = (*Factory)(nil)
	_ ports.AuthClient        = (*Client)(nil)
)

// NewFactory validates cfg and builds a Factory.
func NewFactory(cfg Config) (*Factory, error) {
	if cfg.Tokens == nil {
		return nil, errors.New("hosted auth: token store is required")
	}
	a, err := newAPI(cfg.URL, cfg.AnonKey, cfg.Timeout, cfg.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("hosted auth: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Factory{
		api:    a,
		tokens: cfg.Tokens,
		parser: newTokenParser(cfg.JWTSecret),
		logger: logger.With("component", "hosted_auth"),
		now:    nowFn,
	}, nil
}

// ForClient implements ports.AuthClientFactory.
func (f *Factory) ForClient(clientID string) (ports.AuthClient, error) {
	if clientID == "" {
		return nil, errors.New("hosted auth: client id is required")
	}
	return &Client{f: f, clientID: clientID}, nil
}

// Client is the auth collaborator for one browser client.
type Client struct {
	f        *Factory
	clientID string
	events   authevents.Emitter
}

// tokenResponse is the GoTrue session payload. Sign-up without a session
// returns the user object at the top level instead.
type tokenResponse struct {
	AccessToken  string           `json:"access_token"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int64            `json:"expires_in"`
	ExpiresAt    int64            `json:"expires_at"`
	RefreshToken string           `json:"refresh_token"`
	User         *domainauth.User `json:"user"`
	ID           string           `json:"id"`
}

type passwordGrant struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshGrant struct {
	RefreshToken string `json:"refresh_token"`
}

type signUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data"`
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domainauth.AuthSession, error) {
	var resp tokenResponse
	err := c.f.api.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "",
		passwordGrant{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, classify(err)
	}
	sess, err := c.sessionFrom(resp)
	if err != nil {
		return nil, err
	}
	if err := c.f.tokens.Save(ctx, c.clientID, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	c.events.Emit(domainauth.EventSignedIn, &sess)
	return &sess, nil
}

func (c *Client) SignUp(ctx context.Context, in domainauth.SignUpInput) (*domainauth.AuthSession, error) {
	var resp tokenResponse
	err := c.f.api.do(ctx, http.MethodPost, "/auth/v1/signup", "",
		signUpRequest{Email: in.Email, Password: in.Password, Data: in.Metadata()}, &resp)
	if err != nil {
		return nil, classify(err)
	}
	if resp.AccessToken == "" {
		c.f.logger.DebugContext(ctx, "sign-up pending email confirmation", "user_id", resp.ID)
		return nil, nil
	}
	sess, err := c.sessionFrom(resp)
	if err != nil {
		return nil, err
	}
	if err := c.f.tokens.Save(ctx, c.clientID, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	c.events.Emit(domainauth.EventSignedIn, &sess)
	return &sess, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	sess, err := c.f.tokens.Get(ctx, c.clientID)
	switch {
	case errors.Is(err, domainauth.ErrNoSession):
	case err != nil:
		return fmt.Errorf("load session: %w", err)
	default:
		err := c.f.api.do(ctx, http.MethodPost, "/auth/v1/logout", sess.AccessToken, nil, nil)
		// A token the backend no longer accepts is already signed out.
		if err != nil && !isStatus(err, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound) {
			return classify(err)
		}
		if err := c.f.tokens.Delete(ctx, c.clientID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	c.events.Emit(domainauth.EventSignedOut, nil)
	return nil
}

func (c *Client) GetCurrentUser(ctx context.Context) (*domainauth.User, error) {
	sess, err := c.f.tokens.Get(ctx, c.clientID)
	if err != nil {
		if errors.Is(err, domainauth.ErrNoSession) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if sess.Expired(c.f.now()) {
		refreshed, ok, err := c.refresh(ctx, sess)
		if err != nil || !ok {
			return nil, err
		}
		sess = refreshed
	}

	var user domainauth.User
	err = c.f.api.do(ctx, http.MethodGet, "/auth/v1/user", sess.AccessToken, nil, &user)
	if err != nil {
		if isStatus(err, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound) {
			c.forget(ctx)
			return nil, nil
		}
		return nil, classify(err)
	}
	return &user, nil
}

func (c *Client) OnAuthStateChange(listener ports.AuthStateListener) ports.Unsubscribe {
	return c.events.Subscribe(listener)
}

// refresh exchanges the refresh token. ok is false when the session cannot be
// renewed and has been discarded.
func (c *Client) refresh(ctx context.Context, sess domainauth.AuthSession) (domainauth.AuthSession, bool, error) {
	if sess.RefreshToken == "" {
		c.forget(ctx)
		return domainauth.AuthSession{}, false, nil
	}
	var resp tokenResponse
	err := c.f.api.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "",
		refreshGrant{RefreshToken: sess.RefreshToken}, &resp)
	if err != nil {
		if domainauth.KindOf(classify(err)) == domainauth.AuthErrInvalidCredentials {
			c.forget(ctx)
			return domainauth.AuthSession{}, false, nil
		}
		return domainauth.AuthSession{}, false, classify(err)
	}
	next, err := c.sessionFrom(resp)
	if err != nil {
		return domainauth.AuthSession{}, false, err
	}
	if err := c.f.tokens.Save(ctx, c.clientID, next); err != nil {
		return domainauth.AuthSession{}, false, fmt.Errorf("store refreshed session: %w", err)
	}
	c.events.Emit(domainauth.EventTokenRefreshed, &next)
	return next, true, nil
}

// forget discards a session that can no longer be used and tells subscribers
// the client is signed out.
func (c *Client) forget(ctx context.Context) {
	if err := c.f.tokens.Delete(ctx, c.clientID); err != nil {
		c.f.logger.WarnContext(ctx, "failed to delete stale session", "client_id", c.clientID, "error", err)
	}
	c.events.Emit(domainauth.EventSignedOut, nil)
}

func (c *Client) sessionFrom(resp tokenResponse) (domainauth.AuthSession, error) {
	if resp.AccessToken == "" {
		return domainauth.AuthSession{}, domainauth.NewAuthError(domainauth.AuthErrUnknown, "auth response carried no access token", nil)
	}
	exp, err := c.f.parser.expiry(resp.AccessToken)
	if err != nil {
		return domainauth.AuthSession{}, domainauth.NewAuthError(domainauth.AuthErrUnknown, "auth service returned an unusable token", err)
	}
	switch {
	case resp.ExpiresAt > 0:
		exp = time.Unix(resp.ExpiresAt, 0)
	case exp.IsZero() && resp.ExpiresIn > 0:
		exp = c.f.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	var user domainauth.User
	if resp.User != nil {
		user = *resp.User
	}
	if user.ID == "" {
		return domainauth.AuthSession{}, domainauth.NewAuthError(domainauth.AuthErrUnknown, "auth response carried no user", nil)
	}
	return domainauth.AuthSession{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		ExpiresAt:    exp,
		User:         user,
	}, nil
}
