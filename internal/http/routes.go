package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/target/learnhub/config"
	"github.com/target/learnhub/internal/domain/access"
	"github.com/target/learnhub/internal/service"
)

const healthPath = "/healthz"

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Registry  *service.SessionRegistry  // Required: per-client session stores
	Dashboard *service.DashboardService // Optional: nil renders dashboards without data
	Routes    access.RouteTable         // Optional: defaults to access.DefaultRouteTable
	Session   config.SessionConfig
	// CookieDomain scopes the client and CSRF cookies. Empty uses the request host.
	CookieDomain string
	// CSRFKey signs CSRF tokens. Empty uses a key generated per process.
	CSRFKey  []byte
	Renderer *TemplateRenderer // Optional: defaults to the embedded templates
	Logger   *slog.Logger      // Optional
}

// NewRouter builds the handler chain: Recover, Logging, ClientScope, CSRF, mux.
func NewRouter(services RouterServices) (http.Handler, error) {
	if services.Registry == nil {
		return nil, errors.New("session registry is required")
	}
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	routes := services.Routes
	if len(routes.Areas) == 0 {
		routes = access.DefaultRouteTable()
	}
	if err := routes.Validate(); err != nil {
		return nil, err
	}
	renderer := services.Renderer
	if renderer == nil {
		var err error
		renderer, err = NewTemplateRenderer(TemplateRendererConfig{Logger: logger})
		if err != nil {
			return nil, err
		}
	}
	sessCfg := services.Session
	sessCfg.Sanitize()

	authHandlers := NewAuthHandlers(renderer, routes, logger)
	pageHandlers := NewPageHandlers(renderer, routes, services.Dashboard, logger)

	mux := http.NewServeMux()
	health := &healthHandler{registry: services.Registry}
	mux.Handle("GET "+healthPath, health)
	mux.Handle("HEAD "+healthPath, health)
	registerAuthRoutes(mux, authHandlers)
	mux.HandleFunc("GET /", pageHandlers.Navigate)

	csrf, err := CSRFProtection(CSRFConfig{Key: services.CSRFKey, CookieDomain: services.CookieDomain, Logger: logger})
	if err != nil {
		return nil, err
	}

	var handler http.Handler = mux
	handler = csrf(handler)
	handler = ClientScope(ClientScopeConfig{
		Registry:     services.Registry,
		CookieName:   sessCfg.CookieName,
		CookieDomain: services.CookieDomain,
		LoadingGrace: sessCfg.LoadingGrace,
		Bypass:       []string{healthPath},
		Logger:       logger,
	})(handler)
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler, nil
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("POST /signup", h.Signup)
	mux.HandleFunc("POST /logout", h.Logout)
}
