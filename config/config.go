package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: auth collaborator and profile source
//   - session.go: per-client session store lifecycle
//   - database.go: Postgres and Redis
//   - http.go: HTTP server
//   - metrics.go: StatsD
//   - routes.go: declarative route table
type AppConfig struct {
	// IsDev controls development mode behavior (template reloading, text logs).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Authentication configuration
	Auth AuthConfig

	// Session store configuration
	Session SessionConfig `envPrefix:"SESSION_"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// StatsD metrics
	Metrics MetricsConfig `envPrefix:"STATSD_"`

	// RoutesFile overrides the embedded route table.
	RoutesFile string `env:"ROUTES_FILE"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
	c.Session.Sanitize()
	c.Postgres.Sanitize()
	c.HTTP.Sanitize()
	c.Metrics.Sanitize()
	c.RoutesFile = strings.TrimSpace(c.RoutesFile)

	c.detectDevMode()
}

// Validate reports configuration that Sanitize cannot repair.
func (c *AppConfig) Validate() error {
	return c.HTTP.Validate()
}

// detectDevMode checks NODE_ENV as a fallback when DEV is unset.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
