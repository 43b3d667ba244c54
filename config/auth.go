package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode selects the auth collaborator.
type AuthMode string

const (
	// AuthModeHosted talks to the hosted backend's auth REST API.
	AuthModeHosted AuthMode = "hosted"
	// AuthModeOIDC uses an OIDC provider's password grant.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeMock uses in-memory dev accounts (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "hosted", "oidc", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: hosted, oidc, mock)", v)
	}
}

// ProfileSource selects where user profiles (and roles) are read from.
type ProfileSource string

const (
	ProfileSourcePostgres ProfileSource = "postgres"
	ProfileSourceHosted   ProfileSource = "hosted"
	ProfileSourceDev      ProfileSource = "dev"
)

// UnmarshalText implements encoding.TextUnmarshaler for ProfileSource.
func (p *ProfileSource) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "postgres", "hosted", "dev":
		*p = ProfileSource(v)
		return nil
	default:
		return fmt.Errorf("invalid ProfileSource: %q (valid options: postgres, hosted, dev)", v)
	}
}

// HostedAuthConfig points at the hosted backend (auth + REST).
type HostedAuthConfig struct {
	URL     string `env:"URL"`
	AnonKey string `env:"ANON_KEY"`
	// ServiceKey, when set, is used for profile reads instead of the anon key.
	ServiceKey string `env:"SERVICE_KEY"`
	// JWTSecret enables local HS256 verification of access tokens.
	JWTSecret string        `env:"JWT_SECRET"`
	Timeout   time.Duration `env:"TIMEOUT"    envDefault:"10s"`
}

// OIDCConfig contains OIDC password-grant configuration.
type OIDCConfig struct {
	DiscoveryURL string `env:"DISCOVERY_URL"`
	ClientID     string `env:"CLIENT_ID"     envDefault:"learnhub"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email offline_access"`
}

// DevAuthConfig controls mock/dev accounts.
// Users are "email:password:role:Full Name" entries separated by ';'.
type DevAuthConfig struct {
	Users       []string      `env:"USERS"        envDefault:"admin@example.com:admin123:admin:Ada Admin;trainer@example.com:trainer123:trainer:Tara Trainer;learner@example.com:learner123:learner:Lee Learner" envSeparator:";"`
	AutoConfirm bool          `env:"AUTO_CONFIRM" envDefault:"false"`
	SessionTTL  time.Duration `env:"SESSION_TTL"  envDefault:"1h"`
}

// DevUser is a parsed DEV_AUTH_USERS entry.
type DevUser struct {
	Email    string
	Password string
	Role     string
	FullName string
}

// ParseUsers parses the configured dev users.
func (c DevAuthConfig) ParseUsers() ([]DevUser, error) {
	users := make([]DevUser, 0, len(c.Users))
	for _, raw := range c.Users {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.SplitN(raw, ":", 4)
		if len(parts) < 3 {
			return nil, fmt.Errorf("invalid dev user %q: want email:password:role[:Full Name]", raw)
		}
		u := DevUser{
			Email:    strings.TrimSpace(parts[0]),
			Password: parts[1],
			Role:     strings.TrimSpace(parts[2]),
		}
		if len(parts) == 4 {
			u.FullName = strings.TrimSpace(parts[3])
		}
		if u.Email == "" || u.Password == "" {
			return nil, fmt.Errorf("invalid dev user %q: email and password are required", raw)
		}
		users = append(users, u)
	}
	return users, nil
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which auth collaborator to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"hosted"`

	// ProfileSource determines where profile rows are read from.
	ProfileSource ProfileSource `env:"PROFILE_SOURCE" envDefault:"postgres"`

	Hosted  HostedAuthConfig `envPrefix:"HOSTED_"`
	OIDC    OIDCConfig       `envPrefix:"OIDC_"`
	DevAuth DevAuthConfig    `envPrefix:"DEV_AUTH_"`
}

// Sanitize trims URLs and applies timeout floors.
func (c *AuthConfig) Sanitize() {
	c.Hosted.URL = strings.TrimRight(strings.TrimSpace(c.Hosted.URL), "/")
	if c.Hosted.Timeout <= 0 {
		c.Hosted.Timeout = 10 * time.Second
	}
	c.OIDC.DiscoveryURL = strings.TrimSpace(c.OIDC.DiscoveryURL)
	if c.DevAuth.SessionTTL <= 0 {
		c.DevAuth.SessionTTL = time.Hour
	}
}
