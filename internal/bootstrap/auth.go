package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/learnhub/config"
	"github.com/target/learnhub/internal/adapters/devauth"
	"github.com/target/learnhub/internal/adapters/hostedauth"
	"github.com/target/learnhub/internal/adapters/memory"
	"github.com/target/learnhub/internal/adapters/oidc"
	"github.com/target/learnhub/internal/adapters/postgres"
	redisadapter "github.com/target/learnhub/internal/adapters/redis"
	"github.com/target/learnhub/internal/ports"
)

// memoryTokenRetention keeps refreshable sessions around after access token expiry.
const memoryTokenRetention = 7 * 24 * time.Hour

// AuthConfig contains dependencies for the auth collaborator and profile lookup.
type AuthConfig struct {
	Auth         config.AuthConfig
	RedisClient  redis.UniversalClient // Optional: nil keeps tokens in memory
	RedisPrefix  string
	DB           *sql.DB // Required when profiles come from postgres
	QueryTimeout time.Duration
	Logger       *slog.Logger
}

// AuthStack is the wired auth side of the application.
type AuthStack struct {
	Factory  ports.AuthClientFactory
	Profiles ports.ProfileLookup
	Tokens   ports.TokenStore
}

// BuildTokenStore returns a Redis token store when a client is configured and
// an in-process one otherwise.
//
//nolint:ireturn // callers only need the port.
func BuildTokenStore(client redis.UniversalClient, prefix string) ports.TokenStore {
	if client == nil {
		return memory.NewTokenStore(memoryTokenRetention)
	}
	return redisadapter.NewTokenStore(client, redisadapter.TokenStoreOptions{Prefix: prefix})
}

// BuildAuth selects the auth collaborator from AUTH_MODE and the profile
// lookup from PROFILE_SOURCE.
func BuildAuth(ctx context.Context, cfg AuthConfig) (AuthStack, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stack := AuthStack{Tokens: BuildTokenStore(cfg.RedisClient, cfg.RedisPrefix)}

	var dir *devauth.Directory
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		d, err := buildDevDirectory(cfg.Auth.DevAuth, stack.Tokens)
		if err != nil {
			return AuthStack{}, err
		}
		dir = d
		stack.Factory = d
		logger.Warn("dev auth enabled; do not use in production", "users", len(cfg.Auth.DevAuth.Users))

	case config.AuthModeOIDC:
		oc := cfg.Auth.OIDC
		if oc.DiscoveryURL == "" || oc.ClientID == "" {
			return AuthStack{}, errors.New("oidc auth mode requires OIDC_DISCOVERY_URL and OIDC_CLIENT_ID")
		}
		prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
			ClientID:     oc.ClientID,
			ClientSecret: oc.ClientSecret,
			Scope:        oc.Scope,
			DiscoveryURL: oc.DiscoveryURL,
			Tokens:       stack.Tokens,
			Logger:       logger,
		})
		if err != nil {
			return AuthStack{}, fmt.Errorf("build oidc provider: %w", err)
		}
		stack.Factory = prov

	case config.AuthModeHosted:
		f, err := hostedauth.NewFactory(hostedauth.Config{
			URL:       cfg.Auth.Hosted.URL,
			AnonKey:   cfg.Auth.Hosted.AnonKey,
			JWTSecret: cfg.Auth.Hosted.JWTSecret,
			Timeout:   cfg.Auth.Hosted.Timeout,
			Tokens:    stack.Tokens,
			Logger:    logger,
		})
		if err != nil {
			return AuthStack{}, fmt.Errorf("build hosted auth: %w", err)
		}
		stack.Factory = f

	default:
		return AuthStack{}, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}

	profiles, err := buildProfiles(cfg, dir)
	if err != nil {
		return AuthStack{}, err
	}
	stack.Profiles = profiles

	logger.Info("auth configured", "mode", cfg.Auth.Mode, "profile_source", cfg.Auth.ProfileSource)
	return stack, nil
}

//nolint:ireturn // callers only need the port.
func buildProfiles(cfg AuthConfig, dir *devauth.Directory) (ports.ProfileLookup, error) {
	switch cfg.Auth.ProfileSource {
	case config.ProfileSourceDev:
		if dir == nil {
			return nil, errors.New("dev profile source requires AUTH_MODE=mock")
		}
		return dir, nil

	case config.ProfileSourcePostgres:
		if cfg.DB == nil {
			return nil, errors.New("postgres profile source requires a database connection (DB_ENABLED=true)")
		}
		return postgres.NewProfileRepo(cfg.DB, cfg.QueryTimeout), nil

	case config.ProfileSourceHosted:
		pc, err := hostedauth.NewProfileClient(hostedauth.ProfileClientConfig{
			URL:        cfg.Auth.Hosted.URL,
			AnonKey:    cfg.Auth.Hosted.AnonKey,
			ServiceKey: cfg.Auth.Hosted.ServiceKey,
			Timeout:    cfg.Auth.Hosted.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("build hosted profile client: %w", err)
		}
		return pc, nil

	default:
		return nil, fmt.Errorf("unsupported profile source %q", cfg.Auth.ProfileSource)
	}
}

func buildDevDirectory(cfg config.DevAuthConfig, tokens ports.TokenStore) (*devauth.Directory, error) {
	parsed, err := cfg.ParseUsers()
	if err != nil {
		return nil, fmt.Errorf("dev auth users: %w", err)
	}
	users := make([]devauth.User, 0, len(parsed))
	for _, u := range parsed {
		users = append(users, devauth.User{
			Email:    u.Email,
			Password: u.Password,
			Role:     u.Role,
			FullName: u.FullName,
		})
	}
	return devauth.NewDirectory(devauth.Config{
		Users:       users,
		AutoConfirm: cfg.AutoConfirm,
		SessionTTL:  cfg.SessionTTL,
		Tokens:      tokens,
	})
}
