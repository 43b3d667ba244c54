// Package oidc provides a resource-owner password grant auth client backed by
// an OIDC provider. ID tokens are verified with the discovered key set.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/target/learnhub/internal/adapters/authevents"
	domainauth "github.com/target/learnhub/internal/domain/auth"
	"github.com/target/learnhub/internal/ports"
)

// Provider holds the discovered OIDC configuration shared by every client.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client
	tokens     ports.TokenStore
	logger     *slog.Logger
	now        func() time.Time

	// go-oidc provider and verifier
	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Scope        string
	DiscoveryURL string
	Tokens       ports.TokenStore
	HTTPClient   *http.Client // Optional, defaults to a 30s client
	Logger       *slog.Logger
	Now          func() time.Time
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

var (
	_ ports.AuthClientFactory = (*Provider)(nil)
	_ ports.AuthClient        = (*Client)(nil)
)

// NewProvider performs discovery and builds a Provider.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}
	if config.Tokens == nil {
		return nil, errors.New("token store is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := config.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	p := &Provider{
		httpClient: httpClient,
		tokens:     config.Tokens,
		logger:     logger.With("component", "oidc_auth"),
		now:        nowFn,
	}

	// Single discovery fetch
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	issuer = strings.TrimSuffix(issuer, ".well-known/openid-configuration")
	op, err := gooidc.NewProvider(p.clientContext(ctx), issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID, Now: nowFn})

	scopes := strings.Fields(config.Scope)
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "profile", "email"}
	}
	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       scopes,
		Endpoint:     op.Endpoint(),
	}
	return p, nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// ForClient implements ports.AuthClientFactory.
func (p *Provider) ForClient(clientID string) (ports.AuthClient, error) {
	if clientID == "" {
		return nil, errors.New("client id is required")
	}
	return &Client{p: p, clientID: clientID}, nil
}

// Client is the OIDC auth collaborator for one browser client.
type Client struct {
	p        *Provider
	clientID string
	events   authevents.Emitter
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domainauth.AuthSession, error) {
	tok, err := c.p.config.PasswordCredentialsToken(c.p.clientContext(ctx), email, password)
	if err != nil {
		return nil, classify(err)
	}
	fields, err := c.p.extractFromIDToken(ctx, tok)
	if err != nil {
		return nil, domainauth.NewAuthError(domainauth.AuthErrUnknown, "identity provider returned an unusable id_token", err)
	}
	if fields.email == "" {
		if uiErr := c.p.fillFromUserInfo(ctx, tok, &fields); uiErr != nil {
			c.p.logger.DebugContext(ctx, "userinfo unavailable, using login email", "error", uiErr)
		}
	}
	if fields.email == "" {
		fields.email = strings.ToLower(strings.TrimSpace(email))
	}

	sess := c.p.sessionFrom(tok, fields)
	if err := c.p.tokens.Save(ctx, c.clientID, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	c.events.Emit(domainauth.EventSignedIn, &sess)
	return &sess, nil
}

// SignUp is not offered by OIDC providers through this flow.
func (c *Client) SignUp(context.Context, domainauth.SignUpInput) (*domainauth.AuthSession, error) {
	return nil, domainauth.NewAuthError(domainauth.AuthErrUnsupported,
		"Accounts are managed by the identity provider.", nil)
}

func (c *Client) SignOut(ctx context.Context) error {
	if err := c.p.tokens.Delete(ctx, c.clientID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	c.events.Emit(domainauth.EventSignedOut, nil)
	return nil
}

func (c *Client) GetCurrentUser(ctx context.Context) (*domainauth.User, error) {
	sess, err := c.p.tokens.Get(ctx, c.clientID)
	if err != nil {
		if errors.Is(err, domainauth.ErrNoSession) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.Expired(c.p.now()) {
		next, ok, err := c.refresh(ctx, sess)
		if err != nil || !ok {
			return nil, err
		}
		sess = next
	}
	u := sess.User
	return &u, nil
}

func (c *Client) OnAuthStateChange(listener ports.AuthStateListener) ports.Unsubscribe {
	return c.events.Subscribe(listener)
}

func (c *Client) refresh(ctx context.Context, sess domainauth.AuthSession) (domainauth.AuthSession, bool, error) {
	if sess.RefreshToken == "" {
		c.forget(ctx)
		return domainauth.AuthSession{}, false, nil
	}
	src := c.p.config.TokenSource(c.p.clientContext(ctx), &oauth2.Token{
		RefreshToken: sess.RefreshToken,
		Expiry:       time.Unix(1, 0),
	})
	tok, err := src.Token()
	if err != nil {
		if domainauth.KindOf(classify(err)) == domainauth.AuthErrInvalidCredentials {
			c.forget(ctx)
			return domainauth.AuthSession{}, false, nil
		}
		return domainauth.AuthSession{}, false, classify(err)
	}

	fields := fieldsFromUser(sess.User)
	if _, err := getIDTokenFromToken(tok); err == nil {
		refreshed, err := c.p.extractFromIDToken(ctx, tok)
		if err != nil {
			c.forget(ctx)
			return domainauth.AuthSession{}, false, nil
		}
		fillMissing(&refreshed, fields)
		fields = refreshed
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = sess.RefreshToken
	}

	next := c.p.sessionFrom(tok, fields)
	if err := c.p.tokens.Save(ctx, c.clientID, next); err != nil {
		return domainauth.AuthSession{}, false, fmt.Errorf("store refreshed session: %w", err)
	}
	c.events.Emit(domainauth.EventTokenRefreshed, &next)
	return next, true, nil
}

// forget discards a session that can no longer be used and tells subscribers
// the client is signed out.
func (c *Client) forget(ctx context.Context) {
	if err := c.p.tokens.Delete(ctx, c.clientID); err != nil {
		c.p.logger.WarnContext(ctx, "failed to delete stale session", "client_id", c.clientID, "error", err)
	}
	c.events.Emit(domainauth.EventSignedOut, nil)
}

func (p *Provider) sessionFrom(tok *oauth2.Token, f idFields) domainauth.AuthSession {
	expiresAt := p.now().Add(time.Hour)
	if !tok.Expiry.IsZero() {
		expiresAt = tok.Expiry
	}
	meta := map[string]any{}
	if f.fullName != "" {
		meta["full_name"] = f.fullName
	}
	return domainauth.AuthSession{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    expiresAt,
		User: domainauth.User{
			ID:       f.userID,
			Email:    f.email,
			Metadata: meta,
		},
	}
}

// classify maps oauth2 token endpoint failures onto AuthErrors.
func classify(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domainauth.NewAuthError(domainauth.AuthErrNetwork, "The identity provider did not respond in time.", err)
		}
		return domainauth.NewAuthError(domainauth.AuthErrNetwork, "Could not reach the identity provider.", err)
	}
	status := 0
	if re.Response != nil {
		status = re.Response.StatusCode
	}
	switch {
	case re.ErrorCode == "invalid_grant":
		return domainauth.NewAuthError(domainauth.AuthErrInvalidCredentials, re.ErrorDescription, err)
	case re.ErrorCode == "invalid_request":
		return domainauth.NewAuthError(domainauth.AuthErrInvalidInput, re.ErrorDescription, err)
	case re.ErrorCode == "unauthorized_client" || re.ErrorCode == "unsupported_grant_type":
		return domainauth.NewAuthError(domainauth.AuthErrUnsupported, re.ErrorDescription, err)
	case status == http.StatusTooManyRequests:
		return domainauth.NewAuthError(domainauth.AuthErrRateLimited, re.ErrorDescription, err)
	case status == http.StatusBadRequest || status == http.StatusUnauthorized:
		return domainauth.NewAuthError(domainauth.AuthErrInvalidCredentials, re.ErrorDescription, err)
	case status >= 500:
		return domainauth.NewAuthError(domainauth.AuthErrNetwork, re.ErrorDescription, err)
	default:
		return domainauth.NewAuthError(domainauth.AuthErrUnknown, re.ErrorDescription, err)
	}
}

// internal helper types and functions to keep SignInWithPassword small

type idFields struct {
	userID   string
	email    string
	fullName string
}

func (p *Provider) extractFromIDToken(ctx context.Context, tok *oauth2.Token) (idFields, error) {
	var f idFields
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return f, err
	}
	idTok, err := p.verifier.Verify(p.clientContext(ctx), rawID)
	if err != nil {
		return f, fmt.Errorf("verify id_token: %w", err)
	}
	var claims idTokenClaims
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return f, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	f = mapIDTokenClaims(claims)
	if f.userID == "" {
		return f, errors.New("id_token has no subject")
	}
	return f, nil
}

// UserInfo represents the user information from the OIDC userinfo endpoint.
type UserInfo struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Mail    string `json:"mail"`
	Name    string `json:"name"`
}

func (p *Provider) fillFromUserInfo(ctx context.Context, tok *oauth2.Token, f *idFields) error {
	ui, err := p.oidcProvider.UserInfo(p.clientContext(ctx), oauth2.StaticTokenSource(tok))
	if err != nil {
		return fmt.Errorf("fetch user info: %w", err)
	}
	var info UserInfo
	if err := ui.Claims(&info); err != nil {
		return fmt.Errorf("decode user info: %w", err)
	}
	if info.Subject != "" && info.Subject != f.userID {
		return errors.New("userinfo subject does not match id_token")
	}
	if f.email == "" {
		f.email = strings.ToLower(firstNonEmpty(info.Email, info.Mail))
	}
	if f.fullName == "" {
		f.fullName = info.Name
	}
	return nil
}

// idTokenClaims covers standard OIDC claims plus the AD/ADFS shape.
type idTokenClaims struct {
	Sub            string `json:"sub"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	GivenName      string `json:"given_name"`
	FamilyName     string `json:"family_name"`
	SamAccountName string `json:"samaccountname"`
	FirstName      string `json:"firstname"`
	LastName       string `json:"lastname"`
	Mail           string `json:"mail"`
}

// mapIDTokenClaims maps raw id token claims into idFields using precedence rules.
// The user id is always the subject: profile rows are keyed by it.
func mapIDTokenClaims(c idTokenClaims) idFields {
	name := c.Name
	if name == "" {
		name = strings.TrimSpace(firstNonEmpty(c.GivenName, c.FirstName) + " " + firstNonEmpty(c.FamilyName, c.LastName))
	}
	return idFields{
		userID:   c.Sub,
		email:    strings.ToLower(firstNonEmpty(c.Email, c.Mail)),
		fullName: name,
	}
}

func fieldsFromUser(u domainauth.User) idFields {
	f := idFields{userID: u.ID, email: u.Email}
	if name, ok := u.Metadata["full_name"].(string); ok {
		f.fullName = name
	}
	return f
}

func fillMissing(f *idFields, prev idFields) {
	if f.email == "" {
		f.email = prev.email
	}
	if f.fullName == "" {
		f.fullName = prev.fullName
	}
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw := tok.Extra("id_token")
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
