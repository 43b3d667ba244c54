package config

import (
	"strings"
	"time"
)

// SessionConfig controls the per-client session stores.
type SessionConfig struct {
	// InitTimeout bounds the initial identity check; on expiry the client is signed out.
	InitTimeout time.Duration `env:"INIT_TIMEOUT" envDefault:"10s"`
	// ResolveTimeout bounds each profile lookup.
	ResolveTimeout time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"5s"`
	// RevalidateInterval is the longest an authenticated session goes without
	// being re-checked with the auth collaborator. Sessions are also re-checked
	// once they expire.
	RevalidateInterval time.Duration `env:"REVALIDATE_INTERVAL" envDefault:"1m"`
	// LoadingGrace is how long a request waits for initialization before the
	// loading page is served.
	LoadingGrace time.Duration `env:"LOADING_GRACE" envDefault:"300ms"`
	// IdleTTL closes stores not used for this long.
	IdleTTL       time.Duration `env:"IDLE_TTL"       envDefault:"30m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	MaxClients    int           `env:"MAX_CLIENTS"    envDefault:"10000"`
	CookieName    string        `env:"COOKIE_NAME"    envDefault:"learnhub_client"`
}

// Sanitize applies floors so a zero-valued config is usable.
func (c *SessionConfig) Sanitize() {
	if c.InitTimeout <= 0 {
		c.InitTimeout = 10 * time.Second
	}
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = 5 * time.Second
	}
	if c.RevalidateInterval <= 0 {
		c.RevalidateInterval = time.Minute
	}
	if c.LoadingGrace < 0 {
		c.LoadingGrace = 0
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.MaxClients <= 0 {
		c.MaxClients = 10000
	}
	c.CookieName = strings.TrimSpace(c.CookieName)
	if c.CookieName == "" {
		c.CookieName = "learnhub_client"
	}
}
