package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/target/learnhub/config"
	"github.com/target/learnhub/internal/domain/access"
	httpx "github.com/target/learnhub/internal/http"
	"github.com/target/learnhub/internal/service"
)

const shutdownTimeout = 10 * time.Second

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config    *config.AppConfig
	Registry  *service.SessionRegistry
	Dashboard *service.DashboardService
	Routes    access.RouteTable
	Logger    *slog.Logger
}

// NewHTTPServer builds the router and wraps it in an http.Server. It does not
// start listening.
func NewHTTPServer(cfg HTTPServerConfig) (*http.Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler, err := httpx.NewRouter(httpx.RouterServices{
		Registry:     cfg.Registry,
		Dashboard:    cfg.Dashboard,
		Routes:       cfg.Routes,
		Session:      appCfg.Session,
		CookieDomain: appCfg.HTTP.CookieDomain,
		CSRFKey:      []byte(appCfg.HTTP.CSRFKey),
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	// Guard against empty addr to avoid listening on Go default
	addr := appCfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}, nil
}

// ServeHTTP listens on server.Addr until ctx is cancelled, then shuts the
// server down gracefully. A listener may be supplied for tests.
func ServeHTTP(ctx context.Context, server *http.Server, ln net.Listener, logger *slog.Logger) error {
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", server.Addr)
		if err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("HTTP server stopped")
	return <-errCh
}
