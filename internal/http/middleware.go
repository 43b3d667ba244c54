package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/target/learnhub/internal/service"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *respWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ClientScopeConfig configures the ClientScope middleware.
type ClientScopeConfig struct {
	Registry     *service.SessionRegistry
	CookieName   string
	CookieDomain string
	// LoadingGrace bounds how long a request waits for a new store to finish
	// initializing before the loading page is served instead.
	LoadingGrace time.Duration
	// Bypass lists exact paths served without a client scope.
	Bypass []string
	Logger *slog.Logger
}

// ClientScope binds each request to its browser client's session store. The
// client is identified by a random id in an HttpOnly cookie, issued on first
// visit.
func ClientScope(cfg ClientScopeConfig) func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	bypass := make(map[string]struct{}, len(cfg.Bypass))
	for _, p := range cfg.Bypass {
		bypass[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := bypass[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			clientID, ok := readClientID(r, cfg.CookieName)
			if !ok {
				clientID = uuid.NewString()
				setClientCookie(w, r, cfg, clientID)
			}

			store, err := cfg.Registry.Acquire(clientID)
			if err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, service.ErrRegistryClosed) {
					status = http.StatusServiceUnavailable
				}
				cfg.Logger.ErrorContext(r.Context(), "acquire session store failed", "error", err)
				http.Error(w, http.StatusText(status), status)
				return
			}

			if cfg.LoadingGrace > 0 {
				waitCtx, cancel := context.WithTimeout(r.Context(), cfg.LoadingGrace)
				store.WaitReady(waitCtx)
				cancel()
			}
			if err := store.Revalidate(r.Context()); err != nil {
				cfg.Logger.WarnContext(r.Context(), "session re-check failed", "client_id", clientID, "error", err)
			}

			next.ServeHTTP(w, r.WithContext(withClientScope(r.Context(), clientID, store)))
		})
	}
}

// readClientID returns the cookie's client id when it is a well-formed uuid.
func readClientID(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	id, err := uuid.Parse(strings.TrimSpace(c.Value))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func setClientCookie(w http.ResponseWriter, r *http.Request, cfg ClientScopeConfig, clientID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    clientID,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		HttpOnly: true,
		Secure:   r.TLS != nil || isForwardedHTTPS(r),
		SameSite: http.SameSiteLaxMode,
	})
}
