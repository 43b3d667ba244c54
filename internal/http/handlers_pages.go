package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/learnhub/internal/domain/access"
	domainauth "github.com/target/learnhub/internal/domain/auth"
	"github.com/target/learnhub/internal/domain/lms"
	apperrors "github.com/target/learnhub/internal/errors"
	"github.com/target/learnhub/internal/service"
)

const (
	loadingRefreshSeconds = 1
	dateLayout            = "2006-01-02"
)

// PageHandlers performs the access gate's decision for every page request and
// renders the selected view.
type PageHandlers struct {
	Renderer  *TemplateRenderer
	Routes    access.RouteTable
	Dashboard *service.DashboardService
	Logger    *slog.Logger

	pages map[string]pageFunc
}

// pageFunc renders one area page for an authenticated identity.
type pageFunc func(ctx context.Context, r *http.Request, id domainauth.Identity) (page string, data PageData, err error)

// NewPageHandlers constructs PageHandlers.
func NewPageHandlers(renderer *TemplateRenderer, routes access.RouteTable, dashboard *service.DashboardService, logger *slog.Logger) *PageHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	if dashboard == nil {
		dashboard = service.NewDashboardService(service.DashboardServiceOptions{Logger: logger})
	}
	h := &PageHandlers{
		Renderer:  renderer,
		Routes:    routes,
		Dashboard: dashboard,
		Logger:    logger.With("component", "page_handlers"),
	}
	h.pages = map[string]pageFunc{
		"/admin":               h.overviewPage("admin_home", "Dashboard"),
		"/admin/batches":       h.batchesPage("All batches"),
		"/trainer":             h.overviewPage("trainer_home", "Dashboard"),
		"/trainer/batches":     h.batchesPage("My batches"),
		"/trainer/assignments": h.assignmentsPage,
		"/trainer/attendance":  h.attendancePage,
		"/learner":             h.overviewPage("learner_home", "Dashboard"),
		"/learner/courses":     h.coursesPage,
		"/learner/assignments": h.assignmentsPage,
	}
	return h
}

// Navigate is the catch-all page handler.
// GET /{path...}.
func (h *PageHandlers) Navigate(w http.ResponseWriter, r *http.Request) {
	store, ok := StoreFromContext(r.Context())
	if !ok {
		h.Logger.ErrorContext(r.Context(), "request without client scope", "path", r.URL.Path)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	state := store.State()
	p := access.CleanPath(r.URL.Path)
	d := h.Routes.Navigate(state, p)

	switch d.Kind {
	case access.DecisionShowLoading:
		w.Header().Set("Cache-Control", "no-store")
		h.render(w, http.StatusOK, "loading", PageData{Title: "Loading", Refresh: loadingRefreshSeconds})
	case access.DecisionRedirect:
		redirect(w, r, d.Target)
	case access.DecisionRender:
		if d.View != "" {
			h.renderView(w, r, d.View)
			return
		}
		id, _ := state.Identity()
		h.renderArea(w, r, id, p)
	default:
		redirect(w, r, h.Routes.LoginPath)
	}
}

func (h *PageHandlers) renderView(w http.ResponseWriter, r *http.Request, view access.View) {
	data := PageData{CSRFToken: GetCSRFToken(r)}
	switch view {
	case access.ViewLogin:
		data.Title = "Sign in"
		h.render(w, http.StatusOK, "login", data)
	case access.ViewSignup:
		data.Title = "Create account"
		data.Form = map[string]string{"role": string(domainauth.RoleLearner)}
		h.render(w, http.StatusOK, "signup", data)
	case access.ViewUnauthorized:
		data.Title = "Access denied"
		if store, ok := StoreFromContext(r.Context()); ok {
			if id, ok := store.State().Identity(); ok {
				data.Identity = &id
				data.Nav, _ = access.NavItems(id.Role)
			}
		}
		h.render(w, http.StatusForbidden, "unauthorized", data)
	default:
		redirect(w, r, access.RootPath)
	}
}

func (h *PageHandlers) renderArea(w http.ResponseWriter, r *http.Request, id domainauth.Identity, p string) {
	nav, err := access.NavItems(id.Role)
	if err != nil {
		h.Logger.WarnContext(r.Context(), "no navigation for role", "role", id.Role, "error", err)
		redirect(w, r, h.Routes.UnauthorizedPath)
		return
	}

	var (
		page string
		data PageData
	)
	if fn, ok := h.pages[p]; ok {
		page, data, err = fn(r.Context(), r, id)
	} else if item, ok := access.NavSection(id.Role, p); ok {
		page, data = "section", PageData{Title: item.Name}
	} else {
		page, data, err = "error", PageData{Title: "Page not found"}, apperrors.NotFoundf("no page at %s", p)
	}

	status := http.StatusOK
	if err != nil {
		switch {
		case service.IsDataUnavailable(err):
			data.Unavailable = true
		default:
			status = statusForError(err)
			if status >= http.StatusInternalServerError {
				h.Logger.ErrorContext(r.Context(), "page data failed", "path", p, "user_id", id.ID, "error", err)
				data.Error = "We could not load this page. Please try again."
			} else {
				data.Error = errorText(err)
			}
			if data.Title == "" {
				data.Title = http.StatusText(status)
			}
			page = "error"
		}
	}

	data.Identity = &id
	data.Nav = nav
	data.Active = p
	data.CSRFToken = GetCSRFToken(r)
	h.render(w, status, page, data)
}

func (h *PageHandlers) overviewPage(page, title string) pageFunc {
	return func(ctx context.Context, _ *http.Request, id domainauth.Identity) (string, PageData, error) {
		ov, err := h.Dashboard.Overview(ctx, id)
		return page, PageData{Title: title, Data: ov}, err
	}
}

func (h *PageHandlers) batchesPage(title string) pageFunc {
	return func(ctx context.Context, _ *http.Request, id domainauth.Identity) (string, PageData, error) {
		batches, err := h.Dashboard.Batches(ctx, id)
		return "batches", PageData{Title: title, Data: batches}, err
	}
}

func (h *PageHandlers) coursesPage(ctx context.Context, _ *http.Request, id domainauth.Identity) (string, PageData, error) {
	ov, err := h.Dashboard.Overview(ctx, id)
	return "learner_courses", PageData{Title: "My courses", Data: ov.Enrollments}, err
}

type assignmentsView struct {
	Batches     []lms.Batch
	Selected    string
	Assignments []lms.Assignment
}

func (h *PageHandlers) assignmentsPage(ctx context.Context, r *http.Request, id domainauth.Identity) (string, PageData, error) {
	view := assignmentsView{Selected: r.URL.Query().Get("batch")}
	data := PageData{Title: "Assignments", Data: &view}

	batches, err := h.Dashboard.Batches(ctx, id)
	if err != nil {
		return "assignments", data, err
	}
	view.Batches = batches
	if view.Selected == "" {
		return "assignments", data, nil
	}
	view.Assignments, err = h.Dashboard.Assignments(ctx, id, view.Selected)
	return "assignments", data, err
}

type attendanceView struct {
	Batches  []lms.Batch
	Selected string
	Date     string
	Records  []lms.AttendanceRecord
	Tally    lms.AttendanceTally
}

func (h *PageHandlers) attendancePage(ctx context.Context, r *http.Request, id domainauth.Identity) (string, PageData, error) {
	q := r.URL.Query()
	view := attendanceView{Selected: q.Get("batch"), Date: q.Get("date")}
	data := PageData{Title: "Attendance", Data: &view}

	var day *time.Time
	if view.Date != "" {
		t, err := time.Parse(dateLayout, view.Date)
		if err != nil {
			return "attendance", data, apperrors.ValidationField("date", "Date must be in YYYY-MM-DD format.")
		}
		day = &t
	}

	batches, err := h.Dashboard.Batches(ctx, id)
	if err != nil {
		return "attendance", data, err
	}
	view.Batches = batches
	if view.Selected == "" {
		return "attendance", data, nil
	}
	view.Records, err = h.Dashboard.Attendance(ctx, id, view.Selected, day)
	view.Tally = lms.TallyAttendance(view.Records)
	return "attendance", data, err
}

func (h *PageHandlers) render(w http.ResponseWriter, status int, page string, data PageData) {
	if err := h.Renderer.Render(w, status, page, data); err != nil {
		h.Logger.Error("render failed", "page", page, "error", err)
	}
}

func errorText(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
