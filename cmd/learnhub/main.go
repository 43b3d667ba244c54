package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/target/learnhub/config"
	"github.com/target/learnhub/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	logStartupInfo(ctx, logger, &cfg)
	return bootstrap.Run(ctx, &cfg, logger)
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	attrs := []any{
		"addr", cfg.HTTP.Addr,
		"auth_mode", cfg.Auth.Mode,
		"profile_source", cfg.Auth.ProfileSource,
		"db_enabled", cfg.Postgres.Enabled,
		"redis_enabled", cfg.Redis.Enabled,
		"dev", cfg.IsDev,
	}
	if cfg.Postgres.Enabled {
		attrs = append(attrs, "db_host", cfg.Postgres.Host, "db_name", cfg.Postgres.Name)
	}
	if cfg.RoutesFile != "" {
		attrs = append(attrs, "routes_file", cfg.RoutesFile)
	}
	logger.InfoContext(ctx, "starting learnhub", attrs...)
}
