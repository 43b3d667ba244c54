package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/target/learnhub/config"
	"github.com/target/learnhub/internal/adapters/postgres"
	"github.com/target/learnhub/internal/observability/statsd"
	"github.com/target/learnhub/internal/ports"
	"github.com/target/learnhub/internal/service"
)

// Infrastructure holds the optional shared connections.
type Infrastructure struct {
	DB      *sql.DB
	Redis   redis.UniversalClient
	Metrics *statsd.Client
}

// Close releases every open connection.
func (i Infrastructure) Close() error {
	var errs []error
	if err := i.Metrics.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close statsd: %w", err))
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ConnectInfrastructure connects Postgres, Redis and StatsD when they are enabled.
func ConnectInfrastructure(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (Infrastructure, error) {
	var infra Infrastructure
	dbCfg := DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: logger}

	metrics, err := statsd.NewClient(ctx, statsd.Config{
		Enabled: cfg.Metrics.Enabled,
		Address: cfg.Metrics.Address,
		Prefix:  cfg.Metrics.Prefix,
		Tags:    cfg.Metrics.TagMap(),
		Logger:  logger,
	})
	if err != nil {
		return Infrastructure{}, fmt.Errorf("connect statsd: %w", err)
	}
	infra.Metrics = metrics

	if cfg.Postgres.Enabled {
		db, err := ConnectDB(ctx, dbCfg)
		if err != nil {
			return Infrastructure{}, errors.Join(fmt.Errorf("connect db: %w", err), infra.Close())
		}
		infra.DB = db
	}
	if cfg.Redis.Enabled {
		client, err := ConnectRedis(ctx, dbCfg)
		if err != nil {
			return Infrastructure{}, errors.Join(fmt.Errorf("connect redis: %w", err), infra.Close())
		}
		infra.Redis = client
	}
	return infra, nil
}

// App is the wired application, ready to run.
type App struct {
	Registry  *service.SessionRegistry
	Dashboard *service.DashboardService
	Auth      AuthStack
	cfg       *config.AppConfig
	logger    *slog.Logger
}

// NewApp wires the auth collaborator, the session registry and the dashboard
// over already connected infrastructure.
func NewApp(ctx context.Context, cfg *config.AppConfig, infra Infrastructure, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	stack, err := BuildAuth(ctx, AuthConfig{
		Auth:         cfg.Auth,
		RedisClient:  infra.Redis,
		RedisPrefix:  cfg.Redis.KeyPrefix,
		DB:           infra.DB,
		QueryTimeout: cfg.Postgres.QueryTimeout,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	var metrics statsd.Sink = statsd.Nop{}
	if infra.Metrics != nil {
		metrics = infra.Metrics
	}
	registry, err := service.NewSessionRegistry(service.SessionRegistryOptions{
		Factory:  stack.Factory,
		Profiles: stack.Profiles,
		Config:   cfg.Session,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build session registry: %w", err)
	}

	var reader ports.BatchReader
	if infra.DB != nil {
		reader = postgres.NewBatchRepo(infra.DB, cfg.Postgres.QueryTimeout)
	} else {
		logger.Warn("database disabled; dashboards render without data")
	}

	return &App{
		Registry:  registry,
		Dashboard: service.NewDashboardService(service.DashboardServiceOptions{Reader: reader, Logger: logger}),
		Auth:      stack,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Serve runs the registry janitor and the HTTP server until ctx is cancelled
// or either fails. Every session store is closed before Serve returns.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	routes, err := config.LoadRouteTable(a.cfg.RoutesFile)
	if err != nil {
		return fmt.Errorf("load route table: %w", err)
	}
	server, err := NewHTTPServer(HTTPServerConfig{
		Config:    a.cfg,
		Registry:  a.Registry,
		Dashboard: a.Dashboard,
		Routes:    routes,
		Logger:    a.logger,
	})
	if err != nil {
		return fmt.Errorf("build http server: %w", err)
	}
	defer a.Registry.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Registry.Run(gctx) })
	g.Go(func() error { return ServeHTTP(gctx, server, ln, a.logger) })
	return g.Wait()
}

// Run connects infrastructure for cfg, wires the app and serves until SIGINT
// or SIGTERM.
func Run(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := ConnectInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := infra.Close(); cerr != nil {
			logger.Error("close infrastructure failed", "error", cerr)
		}
	}()

	app, err := NewApp(ctx, cfg, infra, logger)
	if err != nil {
		return err
	}
	return app.Serve(ctx, nil)
}
