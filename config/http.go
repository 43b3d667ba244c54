package config

import (
	"fmt"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// CookieDomain is the domain for client and CSRF cookies.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// CSRFKey signs CSRF tokens. Set it when several instances serve the same
	// clients; empty generates a key per process.
	CSRFKey string `env:"APP_CSRF_KEY" envDefault:""`
}

// minCSRFKeyLength matches the router's minimum signing key length.
const minCSRFKeyLength = 32

// Sanitize trims values.
func (h *HTTPConfig) Sanitize() {
	h.Addr = strings.TrimSpace(h.Addr)
	if h.Addr == "" {
		h.Addr = ":8080"
	}
	h.CookieDomain = strings.ToLower(strings.Trim(strings.TrimSpace(h.CookieDomain), "."))
}

// Validate rejects a short CSRF key and a cookie domain that browsers would
// refuse, such as a public suffix ("co.uk") or a bare TLD.
func (h *HTTPConfig) Validate() error {
	if h.CSRFKey != "" && len(h.CSRFKey) < minCSRFKeyLength {
		return fmt.Errorf("APP_CSRF_KEY must be at least %d bytes", minCSRFKeyLength)
	}
	if h.CookieDomain == "" || h.CookieDomain == "localhost" {
		return nil
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(h.CookieDomain); err != nil {
		return fmt.Errorf("APP_COOKIE_DOMAIN %q: %w", h.CookieDomain, err)
	}
	return nil
}
