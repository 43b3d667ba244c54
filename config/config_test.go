package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/learnhub/internal/domain/access"
	"github.com/target/learnhub/internal/domain/auth"
)

func parseEnv(t *testing.T, vars map[string]string) AppConfig {
	t.Helper()
	var cfg AppConfig
	require.NoError(t, env.ParseWithOptions(&cfg, env.Options{Environment: vars}))
	cfg.Sanitize()
	return cfg
}

func TestAppConfig_Defaults(t *testing.T) {
	cfg := parseEnv(t, map[string]string{})

	assert.Equal(t, AuthModeHosted, cfg.Auth.Mode)
	assert.Equal(t, ProfileSourcePostgres, cfg.Auth.ProfileSource)
	assert.Equal(t, 10*time.Second, cfg.Session.InitTimeout)
	assert.Equal(t, 5*time.Second, cfg.Session.ResolveTimeout)
	assert.Equal(t, 300*time.Millisecond, cfg.Session.LoadingGrace)
	assert.Equal(t, time.Minute, cfg.Session.RevalidateInterval)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTTL)
	assert.Equal(t, 10000, cfg.Session.MaxClients)
	assert.Equal(t, "learnhub_client", cfg.Session.CookieName)
	assert.True(t, cfg.Postgres.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	cfg := parseEnv(t, map[string]string{
		"AUTH_MODE":          "OIDC",
		"PROFILE_SOURCE":     "hosted",
		"HOSTED_URL":         " https://project.example.co/ ",
		"HOSTED_ANON_KEY":    "anon",
		"HOSTED_JWT_SECRET":  "secret",
		"OIDC_DISCOVERY_URL": "https://issuer.example.com",
		"OIDC_CLIENT_ID":     "web",
	})

	assert.Equal(t, AuthModeOIDC, cfg.Auth.Mode)
	assert.Equal(t, ProfileSourceHosted, cfg.Auth.ProfileSource)
	assert.Equal(t, "https://project.example.co", cfg.Auth.Hosted.URL)
	assert.Equal(t, "anon", cfg.Auth.Hosted.AnonKey)
	assert.Equal(t, "secret", cfg.Auth.Hosted.JWTSecret)
	assert.Equal(t, "web", cfg.Auth.OIDC.ClientID)
}

func TestAppConfig_RejectsInvalidModes(t *testing.T) {
	var cfg AppConfig
	err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{"AUTH_MODE": "ldap"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid AuthMode")

	err = env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{"PROFILE_SOURCE": "csv"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ProfileSource")
}

func TestMetricsConfig(t *testing.T) {
	cfg := parseEnv(t, map[string]string{})
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "learnhub", cfg.Metrics.Prefix)

	cfg = parseEnv(t, map[string]string{
		"STATSD_ENABLED": "true",
		"STATSD_ADDRESS": " statsd:8125 ",
		"STATSD_TAGS":    "env:prod, region : eu ,canary,:skip",
	})
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "statsd:8125", cfg.Metrics.Address)
	assert.Equal(t, map[string]string{"env": "prod", "region": "eu", "canary": "true"}, cfg.Metrics.TagMap())
}

func TestHTTPConfig_CookieDomain(t *testing.T) {
	tests := []struct {
		domain  string
		want    string
		wantErr bool
	}{
		{domain: "", want: ""},
		{domain: " .Learn.Example.com ", want: "learn.example.com"},
		{domain: "localhost", want: "localhost"},
		{domain: "co.uk", want: "co.uk", wantErr: true},
		{domain: "com", want: "com", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			cfg := parseEnv(t, map[string]string{"APP_COOKIE_DOMAIN": tt.domain})
			assert.Equal(t, tt.want, cfg.HTTP.CookieDomain)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestHTTPConfig_CSRFKey(t *testing.T) {
	for key, wantErr := range map[string]bool{"": false, "short": true, strings.Repeat("k", 32): false} {
		cfg := parseEnv(t, map[string]string{"APP_CSRF_KEY": key})
		assert.Equal(t, wantErr, cfg.Validate() != nil, "key length %d", len(key))
	}
}

func TestSessionConfig_SanitizeFloors(t *testing.T) {
	cfg := SessionConfig{LoadingGrace: -time.Second, CookieName: "  "}
	cfg.Sanitize()

	assert.Equal(t, 10*time.Second, cfg.InitTimeout)
	assert.Equal(t, time.Duration(0), cfg.LoadingGrace)
	assert.Equal(t, time.Minute, cfg.RevalidateInterval)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 10000, cfg.MaxClients)
	assert.Equal(t, "learnhub_client", cfg.CookieName)
}

func TestDevAuthConfig_ParseUsers(t *testing.T) {
	cfg := parseEnv(t, map[string]string{
		"DEV_AUTH_USERS": "a@example.com:pw:admin:Ada Admin;t@example.com:pw:trainer;",
	})

	users, err := cfg.Auth.DevAuth.ParseUsers()
	require.NoError(t, err)
	assert.Equal(t, []DevUser{
		{Email: "a@example.com", Password: "pw", Role: "admin", FullName: "Ada Admin"},
		{Email: "t@example.com", Password: "pw", Role: "trainer"},
	}, users)
}

func TestDevAuthConfig_DefaultUsersCoverEveryRole(t *testing.T) {
	cfg := parseEnv(t, map[string]string{})

	users, err := cfg.Auth.DevAuth.ParseUsers()
	require.NoError(t, err)
	seen := auth.NewRoleSet()
	for _, u := range users {
		role, err := auth.ParseRole(u.Role)
		require.NoError(t, err)
		seen[role] = struct{}{}
	}
	for _, r := range auth.Roles() {
		assert.True(t, seen.Has(r), r)
	}
}

func TestDevAuthConfig_ParseUsersRejectsMalformed(t *testing.T) {
	_, err := DevAuthConfig{Users: []string{"only-an-email"}}.ParseUsers()
	assert.Error(t, err)

	_, err = DevAuthConfig{Users: []string{":pw:admin"}}.ParseUsers()
	assert.Error(t, err)
}

func TestLoadRouteTable_EmbeddedDefault(t *testing.T) {
	table, err := LoadRouteTable("")
	require.NoError(t, err)

	def := access.DefaultRouteTable()
	assert.Equal(t, def.LoginPath, table.LoginPath)
	assert.Equal(t, def.UnauthorizedPath, table.UnauthorizedPath)
	assert.Equal(t, def.Public, table.Public)
	assert.Equal(t, def.Areas, table.Areas)
}

func TestLoadRouteTable_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	content := `login: /signin
unauthorized: /denied
public:
  - {path: /signin, view: login}
areas:
  - {name: staff, prefix: /admin, roles: [admin]}
  - {name: trainer, prefix: /trainer, roles: [trainer, admin]}
  - {name: learner, prefix: /learner, roles: [learner]}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	table, err := LoadRouteTable(path)
	require.NoError(t, err)
	assert.Equal(t, "/signin", table.LoginPath)
	area, ok := table.AreaFor("/trainer/attendance")
	require.True(t, ok)
	assert.True(t, area.Roles.Has(auth.RoleAdmin))
}

func TestParseRouteTable_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown role",
			yaml: "login: /login\nunauthorized: /u\npublic: [{path: /login, view: login}]\nareas: [{name: a, prefix: /admin, roles: [owner]}]\n",
			want: "unknown role",
		},
		{
			name: "unknown field",
			yaml: "login: /login\nunauthorized: /u\nredirects: {}\n",
			want: "redirects",
		},
		{
			name: "role home not admitted",
			yaml: "login: /login\nunauthorized: /u\npublic: [{path: /login, view: login}]\nareas: [{name: admin, prefix: /admin, roles: [admin]}]\n",
			want: "not admitted",
		},
		{
			name: "unknown view",
			yaml: "login: /login\nunauthorized: /u\npublic: [{path: /login, view: dashboard}]\n",
			want: "unknown public view",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRouteTable(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
