package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/target/learnhub/internal/domain/access"
	domainauth "github.com/target/learnhub/internal/domain/auth"
	"github.com/target/learnhub/internal/service"
)

const settleTimeout = 5 * time.Second

// AuthHandlers serves sign-in, sign-up, sign-out and the session status endpoint.
// Every handler acts on the client's SessionStore; none of them writes session
// state directly.
type AuthHandlers struct {
	Renderer *TemplateRenderer
	Routes   access.RouteTable
	Logger   *slog.Logger

	validate *validator.Validate
}

// NewAuthHandlers constructs AuthHandlers.
func NewAuthHandlers(renderer *TemplateRenderer, routes access.RouteTable, logger *slog.Logger) *AuthHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandlers{
		Renderer: renderer,
		Routes:   routes,
		Logger:   logger.With("component", "auth_handlers"),
		validate: newFormValidator(),
	}
}

type statusUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
}

type statusResponse struct {
	State string      `json:"state"`
	User  *statusUser `json:"user,omitempty"`
}

// Status reports the client's session state as JSON.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	store, ok := StoreFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "no_client_scope", Err: errors.New("missing client scope")})
		return
	}
	st := store.State()
	resp := statusResponse{State: st.Kind().String()}
	if id, ok := st.Identity(); ok {
		resp.User = &statusUser{ID: id.ID, Email: id.Email, Role: string(id.Role), DisplayName: id.DisplayName}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Login checks credentials and, once the resulting state change has been
// applied, sends the client to its home.
// POST /login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	form := readLoginForm(r)
	data := h.formPage(r, "Sign in", map[string]string{"email": form.Email})

	if errs := fieldErrors(h.validate, form); errs != nil {
		data.FieldErrors = errs
		h.render(w, http.StatusUnprocessableEntity, "login", data)
		return
	}

	if err := store.SignIn(r.Context(), form.Email, form.Password); err != nil {
		status := statusForAuthError(err)
		h.Logger.InfoContext(r.Context(), "sign in rejected",
			"client_id", ClientIDFromContext(r.Context()),
			"kind", domainauth.KindOf(err),
			"error", err)
		data.Error = userMessage(err)
		h.render(w, status, "login", data)
		return
	}

	h.settle(r.Context(), store)
	h.rotateCSRF(w, r)
	redirect(w, r, access.RootPath)
}

// Signup registers an account. Without an immediate session the client is told
// to confirm the address; with one, it follows the subscription into its home.
// POST /signup.
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	form := readSignupForm(r)
	data := h.formPage(r, "Create account", map[string]string{
		"full_name": form.FullName,
		"email":     form.Email,
		"role":      form.Role,
	})

	if errs := fieldErrors(h.validate, form); errs != nil {
		data.FieldErrors = errs
		h.render(w, http.StatusUnprocessableEntity, "signup", data)
		return
	}

	res, err := store.SignUp(r.Context(), domainauth.SignUpInput{
		Email:    form.Email,
		Password: form.Password,
		FullName: form.FullName,
		Role:     domainauth.Role(form.Role),
	})
	if err != nil {
		h.Logger.InfoContext(r.Context(), "sign up rejected", "kind", domainauth.KindOf(err), "error", err)
		data.Error = userMessage(err)
		h.render(w, statusForAuthError(err), "signup", data)
		return
	}

	if res.ConfirmationRequired {
		data.Title = "Check your inbox"
		h.render(w, http.StatusOK, "signup_pending", data)
		return
	}
	h.settle(r.Context(), store)
	h.rotateCSRF(w, r)
	redirect(w, r, access.RootPath)
}

// Logout ends the session and sends the client to the sign-in view.
// POST /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	if err := store.SignOut(r.Context()); err != nil {
		h.Logger.WarnContext(r.Context(), "sign out failed", "error", err)
		data := PageData{Title: "Sign out failed", Error: userMessage(err), CSRFToken: GetCSRFToken(r)}
		if id, ok := store.State().Identity(); ok {
			data.Identity = &id
			data.Nav, _ = access.NavItems(id.Role)
		}
		h.render(w, statusForAuthError(err), "error", data)
		return
	}
	h.settle(r.Context(), store)
	h.rotateCSRF(w, r)
	redirect(w, r, h.Routes.LoginPath)
}

func (h *AuthHandlers) store(w http.ResponseWriter, r *http.Request) (*service.SessionStore, bool) {
	store, ok := StoreFromContext(r.Context())
	if !ok {
		h.Logger.ErrorContext(r.Context(), "request without client scope", "path", r.URL.Path)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}
	return store, true
}

func (h *AuthHandlers) formPage(r *http.Request, title string, values map[string]string) PageData {
	return PageData{Title: title, CSRFToken: GetCSRFToken(r), Form: values}
}

func (h *AuthHandlers) render(w http.ResponseWriter, status int, page string, data PageData) {
	if err := h.Renderer.Render(w, status, page, data); err != nil {
		h.Logger.Error("render failed", "page", page, "error", err)
	}
}

// rotateCSRF reissues the CSRF token after the signed-in identity changed.
func (h *AuthHandlers) rotateCSRF(w http.ResponseWriter, r *http.Request) {
	if err := RotateCSRFToken(w, r); err != nil {
		h.Logger.WarnContext(r.Context(), "csrf token not rotated",
			"client_id", ClientIDFromContext(r.Context()), "error", err)
	}
}

// settle waits for the store to apply the events the last call produced so the
// redirect lands on the new state.
func (h *AuthHandlers) settle(ctx context.Context, store *service.SessionStore) {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	if err := store.Settle(ctx); err != nil {
		h.Logger.WarnContext(ctx, "session store did not settle", "error", err)
	}
}

// statusForAuthError maps an auth failure onto an HTTP status.
func statusForAuthError(err error) int {
	if errors.Is(err, service.ErrStoreClosed) {
		return http.StatusServiceUnavailable
	}
	switch domainauth.KindOf(err) {
	case domainauth.AuthErrInvalidCredentials:
		return http.StatusUnauthorized
	case domainauth.AuthErrEmailNotConfirmed:
		return http.StatusForbidden
	case domainauth.AuthErrDuplicateAccount:
		return http.StatusConflict
	case domainauth.AuthErrRateLimited:
		return http.StatusTooManyRequests
	case domainauth.AuthErrNetwork:
		return http.StatusBadGateway
	case domainauth.AuthErrInvalidInput:
		return http.StatusUnprocessableEntity
	case domainauth.AuthErrUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func userMessage(err error) string {
	var ae *domainauth.AuthError
	if errors.As(err, &ae) {
		return ae.UserMessage()
	}
	return (&domainauth.AuthError{Kind: domainauth.AuthErrUnknown}).UserMessage()
}

