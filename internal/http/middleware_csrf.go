package httpx

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultCSRFCookieName names the CSRF cookie and the form field carrying its copy.
	DefaultCSRFCookieName = "csrf_token"
	// DefaultCSRFHeaderName is the header htmx requests carry the token in (canonical form).
	DefaultCSRFHeaderName = "X-Csrf-Token"
	// MinCSRFKeyLength is the shortest signing key accepted.
	MinCSRFKeyLength = 32

	csrfNonceLength  = 16
	csrfCookieMaxAge = 12 * time.Hour
)

// ErrCSRFKeyTooShort is returned for a configured key below MinCSRFKeyLength.
var ErrCSRFKeyTooShort = fmt.Errorf("csrf key must be at least %d bytes", MinCSRFKeyLength)

// CSRFConfig configures CSRFProtection.
type CSRFConfig struct {
	// Key signs tokens. Empty generates a key for this process, which
	// invalidates outstanding tokens on restart.
	Key []byte
	// CookieDomain is the domain for the CSRF cookie.
	CookieDomain string
	// Logger records rejected requests (optional).
	Logger *slog.Logger
}

// csrfGuard issues and checks tokens bound to the browser client id.
// A token is nonce.mac where mac = HMAC-SHA256(key, clientID 0x00 nonce), so a
// cookie issued to one client never verifies for another.
type csrfGuard struct {
	key    []byte
	domain string
	logger *slog.Logger
}

// CSRFProtection returns a double-submit middleware that runs inside
// ClientScope. The cookie must carry a token signed for the request's client,
// and state-changing requests must echo it in the X-Csrf-Token header or the
// csrf_token form field. Requests outside a client scope may only use safe
// methods. Handlers call RotateCSRFToken when the signed-in identity changes.
func CSRFProtection(cfg CSRFConfig) (func(http.Handler) http.Handler, error) {
	key := cfg.Key
	switch {
	case len(key) == 0:
		key = make([]byte, MinCSRFKeyLength)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate csrf key: %w", err)
		}
	case len(key) < MinCSRFKeyLength:
		return nil, ErrCSRFKeyTooShort
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	g := &csrfGuard{key: key, domain: cfg.CookieDomain, logger: logger}
	return g.wrap, nil
}

func (g *csrfGuard) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unsafe := requiresCSRFValidation(r.Method)
		clientID := ClientIDFromContext(r.Context())
		if clientID == "" {
			if unsafe {
				g.reject(w, r, "no client scope")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		token := cookieValue(r, DefaultCSRFCookieName)
		if !g.verify(clientID, token) {
			if unsafe {
				g.reject(w, r, "cookie not issued to client")
				return
			}
			var err error
			if token, err = g.issue(w, r, clientID); err != nil {
				http.Error(w, "unable to generate CSRF token", http.StatusInternalServerError)
				return
			}
		}
		if unsafe && !submittedTokenMatches(r, token) {
			g.reject(w, r, "submitted token mismatch")
			return
		}

		st := &csrfState{guard: g, clientID: clientID, token: token}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfStateKey{}, st)))
	})
}

func (g *csrfGuard) reject(w http.ResponseWriter, r *http.Request, reason string) {
	g.logger.WarnContext(r.Context(), "csrf validation failed",
		"path", r.URL.Path, "client_id", ClientIDFromContext(r.Context()), "reason", reason)
	http.Error(w, "CSRF token validation failed", http.StatusForbidden)
}

func (g *csrfGuard) sign(clientID string, nonce []byte) []byte {
	mac := hmac.New(sha256.New, g.key)
	mac.Write([]byte(clientID))
	mac.Write([]byte{0})
	mac.Write(nonce)
	return mac.Sum(nil)
}

// newToken mints a fresh token for clientID.
func (g *csrfGuard) newToken(clientID string) (string, error) {
	nonce := make([]byte, csrfNonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("csrf token generation failed: %w", err)
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString(nonce) + "." + enc.EncodeToString(g.sign(clientID, nonce)), nil
}

func (g *csrfGuard) verify(clientID, token string) bool {
	noncePart, macPart, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}
	enc := base64.RawURLEncoding
	nonce, err := enc.DecodeString(noncePart)
	if err != nil || len(nonce) != csrfNonceLength {
		return false
	}
	mac, err := enc.DecodeString(macPart)
	if err != nil {
		return false
	}
	return hmac.Equal(mac, g.sign(clientID, nonce))
}

// issue mints a token for clientID and sets it as the CSRF cookie.
func (g *csrfGuard) issue(w http.ResponseWriter, r *http.Request, clientID string) (string, error) {
	token, err := g.newToken(clientID)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     DefaultCSRFCookieName,
		Value:    token,
		Path:     "/",
		Domain:   g.domain,
		HttpOnly: false, // read by htmx requests
		Secure:   r.TLS != nil || isForwardedHTTPS(r),
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(csrfCookieMaxAge.Seconds()),
	})
	return token, nil
}

// requiresCSRFValidation reports whether method changes state.
func requiresCSRFValidation(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// submittedTokenMatches compares the header token, or for form posts the
// form field, against the cookie token.
func submittedTokenMatches(r *http.Request, cookieToken string) bool {
	submitted := r.Header.Get(DefaultCSRFHeaderName)
	if submitted == "" {
		ct := r.Header.Get("Content-Type")
		if !strings.HasPrefix(ct, "application/x-www-form-urlencoded") &&
			!strings.HasPrefix(ct, "multipart/form-data") {
			return false
		}
		if err := r.ParseForm(); err != nil {
			return false
		}
		submitted = r.FormValue(DefaultCSRFCookieName)
	}
	return submitted != "" && subtle.ConstantTimeCompare([]byte(submitted), []byte(cookieToken)) == 1
}

// isForwardedHTTPS checks X-Forwarded-Proto, which may hold a comma-separated list.
func isForwardedHTTPS(r *http.Request) bool {
	for _, proto := range strings.Split(r.Header.Get("X-Forwarded-Proto"), ",") {
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			return true
		}
	}
	return false
}

type csrfStateKey struct{}

// csrfState is the token in force for one request. Rotation replaces it so
// anything rendered afterwards in the same request carries the new token.
type csrfState struct {
	guard    *csrfGuard
	clientID string
	token    string
}

var errNoCSRFState = errors.New("request has no csrf state")

// RotateCSRFToken replaces the client's token. Call it before writing the
// response whenever the signed-in identity changes.
func RotateCSRFToken(w http.ResponseWriter, r *http.Request) error {
	st, ok := r.Context().Value(csrfStateKey{}).(*csrfState)
	if !ok {
		return errNoCSRFState
	}
	token, err := st.guard.issue(w, r, st.clientID)
	if err != nil {
		return err
	}
	st.token = token
	return nil
}

// GetCSRFToken returns the token page handlers copy into forms.
func GetCSRFToken(r *http.Request) string {
	if st, ok := r.Context().Value(csrfStateKey{}).(*csrfState); ok {
		return st.token
	}
	return ""
}
