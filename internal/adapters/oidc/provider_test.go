package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/learnhub/internal/adapters/memory"
	domainauth "github.com/target/learnhub/internal/domain/auth"
)

const testClientID = "learnhub-test"

// fakeIdP serves discovery, JWKS and a token endpoint supporting the password
// and refresh_token grants.
type fakeIdP struct {
	t   *testing.T
	key *rsa.PrivateKey
	srv *httptest.Server

	mu       sync.Mutex
	now      time.Time
	refresh  map[string]string // refresh token -> subject
	omitMail bool
}

func newFakeIdP(t *testing.T, now time.Time) *fakeIdP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	idp := &fakeIdP{t: t, key: key, now: now, refresh: map[string]string{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", idp.discovery)
	mux.HandleFunc("/jwks", idp.jwks)
	mux.HandleFunc("/token", idp.token)
	mux.HandleFunc("/userinfo", idp.userinfo)
	idp.srv = httptest.NewServer(mux)
	t.Cleanup(idp.srv.Close)
	return idp
}

func (f *fakeIdP) setNow(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

func (f *fakeIdP) discovery(w http.ResponseWriter, _ *http.Request) {
	_ = json.NewEncoder(w).Encode(DiscoveryDocument{
		Issuer:                f.srv.URL,
		AuthorizationEndpoint: f.srv.URL + "/authorize",
		TokenEndpoint:         f.srv.URL + "/token",
		UserinfoEndpoint:      f.srv.URL + "/userinfo",
		JwksURI:               f.srv.URL + "/jwks",
	})
}

func (f *fakeIdP) jwks(w http.ResponseWriter, _ *http.Request) {
	pub := f.key.PublicKey
	_ = json.NewEncoder(w).Encode(map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": "test-key",
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (f *fakeIdP) idToken(sub string) string {
	claims := jwt.MapClaims{
		"iss":  f.srv.URL,
		"aud":  testClientID,
		"sub":  sub,
		"iat":  f.now.Unix(),
		"exp":  f.now.Add(time.Hour).Unix(),
		"name": "Tara Trainer",
	}
	if !f.omitMail {
		claims["email"] = "Tara@Example.com"
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "test-key"
	s, err := tok.SignedString(f.key)
	require.NoError(f.t, err)
	return s
}

func (f *fakeIdP) token(w http.ResponseWriter, r *http.Request) {
	require.NoError(f.t, r.ParseForm())
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	var sub string
	switch r.PostForm.Get("grant_type") {
	case "password":
		if r.PostForm.Get("username") != "tara@example.com" || r.PostForm.Get("password") != "s3cret" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid user credentials"}`))
			return
		}
		sub = "user-42"
	case "refresh_token":
		var ok bool
		sub, ok = f.refresh[r.PostForm.Get("refresh_token")]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token is not active"}`))
			return
		}
		delete(f.refresh, r.PostForm.Get("refresh_token"))
	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"unsupported_grant_type"}`))
		return
	}

	rt := "rt-" + f.now.Format(time.RFC3339Nano)
	f.refresh[rt] = sub
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "at-" + sub,
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": rt,
		"id_token":      f.idToken(sub),
	})
}

func (f *fakeIdP) userinfo(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"sub": "user-42", "email": "tara@userinfo.example.com"})
}

type recorder struct {
	mu     sync.Mutex
	events []domainauth.AuthEvent
}

func (r *recorder) add(ev domainauth.AuthEvent, _ *domainauth.AuthSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []domainauth.AuthEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domainauth.AuthEvent(nil), r.events...)
}

type fixture struct {
	idp    *fakeIdP
	client *Client
	events *recorder
	clock  *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Now()
	idp := newFakeIdP(t, now)
	fx := &fixture{idp: idp, events: &recorder{}, clock: &now}

	p, err := NewProvider(context.Background(), ProviderConfig{
		ClientID:     testClientID,
		ClientSecret: "shh",
		DiscoveryURL: idp.srv.URL + "/.well-known/openid-configuration",
		Tokens:       memory.NewTokenStore(0),
		Now:          func() time.Time { return *fx.clock },
	})
	require.NoError(t, err)
	c, err := p.ForClient("browser-1")
	require.NoError(t, err)
	fx.client = c.(*Client)
	fx.client.OnAuthStateChange(fx.events.add)
	return fx
}

func TestNewProvider_Discovery(t *testing.T) {
	fx := newFixture(t)
	assert.Equal(t, fx.idp.srv.URL+"/token", fx.client.p.config.Endpoint.TokenURL)
	assert.Equal(t, []string{"openid", "profile", "email"}, fx.client.p.config.Scopes)
}

func TestNewProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		config ProviderConfig
		errMsg string
	}{
		{"missing client ID", ProviderConfig{DiscoveryURL: "http://example.com", Tokens: memory.NewTokenStore(0)}, "client ID is required"},
		{"missing discovery URL", ProviderConfig{ClientID: "c", Tokens: memory.NewTokenStore(0)}, "discovery URL is required"},
		{"missing token store", ProviderConfig{ClientID: "c", DiscoveryURL: "http://example.com"}, "token store is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(context.Background(), tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestClient_SignInWithPassword(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	sess, err := fx.client.SignInWithPassword(ctx, "tara@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "user-42", sess.User.ID)
	assert.Equal(t, "tara@example.com", sess.User.Email)
	assert.Equal(t, "Tara Trainer", sess.User.Metadata["full_name"])
	assert.Equal(t, []domainauth.AuthEvent{domainauth.EventSignedIn}, fx.events.all())

	u, err := fx.client.GetCurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "user-42", u.ID)
}

func TestClient_SignInFallsBackToUserInfo(t *testing.T) {
	fx := newFixture(t)
	fx.idp.omitMail = true

	sess, err := fx.client.SignInWithPassword(context.Background(), "tara@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "tara@userinfo.example.com", sess.User.Email)
}

func TestClient_SignInInvalidCredentials(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.client.SignInWithPassword(context.Background(), "tara@example.com", "wrong")
	assert.Equal(t, domainauth.AuthErrInvalidCredentials, domainauth.KindOf(err))
	assert.Empty(t, fx.events.all())
}

func TestClient_RefreshOnExpiry(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.client.SignInWithPassword(ctx, "tara@example.com", "s3cret")
	require.NoError(t, err)

	*fx.clock = fx.clock.Add(2 * time.Hour)
	fx.idp.setNow(*fx.clock)

	u, err := fx.client.GetCurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "user-42", u.ID)
	assert.Equal(t, []domainauth.AuthEvent{domainauth.EventSignedIn, domainauth.EventTokenRefreshed}, fx.events.all())
}

func TestClient_RevokedRefreshTokenSignsOut(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.client.SignInWithPassword(ctx, "tara@example.com", "s3cret")
	require.NoError(t, err)

	fx.idp.mu.Lock()
	fx.idp.refresh = map[string]string{}
	fx.idp.mu.Unlock()
	*fx.clock = fx.clock.Add(2 * time.Hour)

	u, err := fx.client.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Equal(t, []domainauth.AuthEvent{domainauth.EventSignedIn, domainauth.EventSignedOut}, fx.events.all())
}

func TestClient_SignUpUnsupported(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.client.SignUp(context.Background(), domainauth.SignUpInput{Email: "a@example.com", Password: "pw"})
	assert.Equal(t, domainauth.AuthErrUnsupported, domainauth.KindOf(err))
}

func TestClient_SignOut(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.client.SignOut(ctx))

	_, err := fx.client.SignInWithPassword(ctx, "tara@example.com", "s3cret")
	require.NoError(t, err)
	require.NoError(t, fx.client.SignOut(ctx))

	u, err := fx.client.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Equal(t, []domainauth.AuthEvent{
		domainauth.EventSignedOut, domainauth.EventSignedIn, domainauth.EventSignedOut,
	}, fx.events.all())
}

func TestMapIDTokenClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims idTokenClaims
		want   idFields
	}{
		{
			name:   "standard claims",
			claims: idTokenClaims{Sub: "s", Email: "A@B.com", Name: "Ann Bee"},
			want:   idFields{userID: "s", email: "a@b.com", fullName: "Ann Bee"},
		},
		{
			name:   "AD shape",
			claims: idTokenClaims{Sub: "s", SamAccountName: "z123", Mail: "ad@corp.com", FirstName: "Ad", LastName: "User"},
			want:   idFields{userID: "s", email: "ad@corp.com", fullName: "Ad User"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapIDTokenClaims(tt.claims))
		})
	}
}
