package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/target/learnhub/internal/adapters/devauth"
	"github.com/target/learnhub/internal/adapters/memory"
	domainauth "github.com/target/learnhub/internal/domain/auth"
	"github.com/target/learnhub/internal/domain/lms"
	apperrors "github.com/target/learnhub/internal/errors"
	"github.com/target/learnhub/internal/mocks"
	authmocks "github.com/target/learnhub/internal/mocks/auth"
	"github.com/target/learnhub/internal/service"
	"github.com/target/learnhub/internal/testutil"
)

func TestNewRouter_RequiresRegistry(t *testing.T) {
	_, err := NewRouter(RouterServices{})
	require.Error(t, err)
}

func TestRouter_Health(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	res := h.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, res.status)
	assert.JSONEq(t, `{"status":"ok","clients":0,"max_clients":10000,"closed":false}`, res.body)
	assert.Empty(t, h.cookie(t, "learnhub_client"))
	assert.Empty(t, h.cookie(t, DefaultCSRFCookieName))
	assert.Equal(t, 0, h.registry.Len())

	h.get(t, "/login")
	res = h.get(t, "/healthz")
	assert.JSONEq(t, `{"status":"ok","clients":1,"max_clients":10000,"closed":false}`, res.body)

	h.registry.Close()
	res = h.get(t, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, res.status)
	assert.JSONEq(t, `{"status":"shutting_down","clients":0,"max_clients":10000,"closed":true}`, res.body)
}

func TestRouter_SignInAndOutRotateCSRFToken(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	h.get(t, "/login")
	anonymous := h.cookie(t, DefaultCSRFCookieName)
	require.NotEmpty(t, anonymous)

	h.signIn(t, testTrainer.Email, "trainer123")
	signedIn := h.cookie(t, DefaultCSRFCookieName)
	require.NotEmpty(t, signedIn)
	assert.NotEqual(t, anonymous, signedIn)

	// A form rendered before sign-in no longer submits.
	res := h.postRaw(t, "/logout", url.Values{DefaultCSRFCookieName: {anonymous}})
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, http.StatusOK, h.get(t, "/trainer").status)

	res = h.post(t, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, res.status)
	assert.NotEqual(t, signedIn, h.cookie(t, DefaultCSRFCookieName))
}

func TestRouter_RejectsCSRFCookieFromAnotherClient(t *testing.T) {
	victim := newHarness(t, harnessOptions{})
	victim.get(t, "/login")

	other := victim.browser(t)
	other.get(t, "/login")
	foreign := other.cookie(t, DefaultCSRFCookieName)
	require.NotEmpty(t, foreign)
	require.NotEqual(t, victim.cookie(t, "learnhub_client"), other.cookie(t, "learnhub_client"))

	// Cookie and form agree, but the token was signed for another client id.
	victim.setCookie(t, DefaultCSRFCookieName, foreign)
	res := victim.postRaw(t, "/login", url.Values{
		"email": {testTrainer.Email}, "password": {"trainer123"}, DefaultCSRFCookieName: {foreign},
	})
	assert.Equal(t, http.StatusForbidden, res.status)

	// The next page view replaces the foreign cookie with one for this client.
	victim.get(t, "/login")
	assert.NotEqual(t, foreign, victim.cookie(t, DefaultCSRFCookieName))
	victim.signIn(t, testTrainer.Email, "trainer123")
	assert.Equal(t, http.StatusOK, victim.get(t, "/trainer").status)
}

func TestRouter_FreshVisitRedirectsToLogin(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	for _, p := range []string{"/admin", "/trainer/batches", "/learner", "/"} {
		res := h.get(t, p)
		assert.Equal(t, http.StatusSeeOther, res.status, p)
		assert.Equal(t, "/login", res.header.Get("Location"), p)
	}
	assert.NotEmpty(t, h.cookie(t, "learnhub_client"))
	assert.Equal(t, 1, h.registry.Len(), "one client scope across requests")

	login := h.get(t, "/login")
	assert.Equal(t, http.StatusOK, login.status)
	assert.Contains(t, login.body, "Sign in")
	assert.Contains(t, login.body, `name="csrf_token"`)

	signup := h.get(t, "/signup")
	assert.Equal(t, http.StatusOK, signup.status)
	assert.Contains(t, signup.body, "Create account")
}

func TestRouter_HTMXRedirect(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	res := h.get(t, "/admin", "Hx-Request", "true")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "/login", res.header.Get("Hx-Redirect"))
}

func TestRouter_TrainerSignInFlow(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	h.signIn(t, testTrainer.Email, "trainer123")

	root := h.get(t, "/")
	assert.Equal(t, http.StatusSeeOther, root.status)
	assert.Equal(t, "/trainer", root.header.Get("Location"))

	home := h.get(t, "/trainer")
	assert.Equal(t, http.StatusOK, home.status)
	assert.Contains(t, home.body, "Trainer dashboard")
	assert.Contains(t, home.body, "Tara Trainer")
	assert.Contains(t, home.body, "Course data is not available right now.")

	admin := h.get(t, "/admin")
	assert.Equal(t, http.StatusSeeOther, admin.status)
	assert.Equal(t, "/unauthorized", admin.header.Get("Location"))

	denied := h.get(t, "/unauthorized")
	assert.Equal(t, http.StatusForbidden, denied.status)
	assert.Contains(t, denied.body, "Access denied")

	login := h.get(t, "/login")
	assert.Equal(t, http.StatusSeeOther, login.status)
	assert.Equal(t, "/", login.header.Get("Location"))
}

func TestRouter_SignOutFlow(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	h.signIn(t, testAdmin.Email, "admin123")
	require.Equal(t, http.StatusOK, h.get(t, "/admin").status)

	res := h.post(t, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/login", res.header.Get("Location"))

	for _, p := range []string{"/admin", "/trainer", "/learner"} {
		after := h.get(t, p)
		assert.Equal(t, http.StatusSeeOther, after.status, p)
		assert.Equal(t, "/login", after.header.Get("Location"), p)
	}
}

func TestRouter_ExpiredSessionRedirectsToLogin(t *testing.T) {
	clock := testutil.NewClock(testutil.TestTime())
	dir, err := devauth.NewDirectory(devauth.Config{
		Users:      []devauth.User{{Email: testTrainer.Email, Password: "trainer123", Role: "trainer", FullName: "Tara Trainer"}},
		SessionTTL: time.Minute,
		Tokens:     memory.NewTokenStore(0).WithClock(clock.Now),
		Now:        clock.Now,
		Cost:       bcrypt.MinCost,
	})
	require.NoError(t, err)
	h := newHarness(t, harnessOptions{auth: dir, profiles: dir, now: clock.Now})

	h.signIn(t, testTrainer.Email, "trainer123")
	require.Equal(t, http.StatusOK, h.get(t, "/trainer").status)

	clock.Advance(24 * time.Hour)
	res := h.get(t, "/trainer")
	assert.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/login", res.header.Get("Location"))

	var status statusResponse
	require.NoError(t, json.Unmarshal([]byte(h.get(t, "/auth/status").body), &status))
	assert.Equal(t, "unauthenticated", status.State)
	assert.Nil(t, status.User)
}

func TestRouter_LoginFailures(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	wrong := h.post(t, "/login", url.Values{"email": {testTrainer.Email}, "password": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, wrong.status)
	assert.Contains(t, wrong.body, "Invalid email or password.")
	assert.Contains(t, wrong.body, testTrainer.Email, "email is echoed back")

	missing := h.post(t, "/login", url.Values{"email": {""}, "password": {""}})
	assert.Equal(t, http.StatusUnprocessableEntity, missing.status)
	assert.Contains(t, missing.body, "Email is required.")
	assert.Contains(t, missing.body, "Password is required.")

	bad := h.post(t, "/login", url.Values{"email": {"not-an-email"}, "password": {"x"}})
	assert.Equal(t, http.StatusUnprocessableEntity, bad.status)
	assert.Contains(t, bad.body, "Enter a valid email address.")

	// Still signed out.
	assert.Equal(t, "/login", h.get(t, "/admin").header.Get("Location"))
}

func TestRouter_LoginRateLimited(t *testing.T) {
	h := newHarness(t, harnessOptions{newClient: func(string) *authmocks.FakeAuthClient {
		c := authmocks.NewFakeAuthClient(testAccounts())
		c.SignInErr = domainauth.NewAuthError(domainauth.AuthErrRateLimited, "slow down", nil)
		return c
	}})

	res := h.post(t, "/login", url.Values{"email": {testAdmin.Email}, "password": {"admin123"}})
	assert.Equal(t, http.StatusTooManyRequests, res.status)
	assert.Contains(t, res.body, "Too many attempts.")
}

func TestRouter_RejectsMissingCSRFToken(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	h.get(t, "/login")

	res := h.postRaw(t, "/login", url.Values{"email": {testAdmin.Email}, "password": {"admin123"}})
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, "/login", h.get(t, "/admin").header.Get("Location"))
}

func TestRouter_Signup(t *testing.T) {
	t.Run("confirmation pending", func(t *testing.T) {
		h := newHarness(t, harnessOptions{})
		res := h.post(t, "/signup", url.Values{
			"full_name": {"Nia New"}, "email": {"nia@example.com"}, "password": {"longenough"}, "role": {"learner"},
		})
		assert.Equal(t, http.StatusOK, res.status)
		assert.Contains(t, res.body, "Check your inbox")
		assert.Contains(t, res.body, "nia@example.com")

		client := h.factory.Client(h.cookie(t, "learnhub_client"))
		require.NotNil(t, client)
		require.Len(t, client.SignUps, 1)
		assert.Equal(t, domainauth.RoleLearner, client.SignUps[0].Role)
		assert.Equal(t, "Nia New", client.SignUps[0].FullName)
	})

	t.Run("validation", func(t *testing.T) {
		h := newHarness(t, harnessOptions{})
		res := h.post(t, "/signup", url.Values{
			"full_name": {""}, "email": {"nia@example.com"}, "password": {"short"}, "role": {"owner"},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, res.status)
		assert.Contains(t, res.body, "Full name is required.")
		assert.Contains(t, res.body, "Password must be at least 8 characters.")
		assert.Contains(t, res.body, "Choose one of: admin, trainer, learner.")
	})

	t.Run("duplicate", func(t *testing.T) {
		h := newHarness(t, harnessOptions{})
		res := h.post(t, "/signup", url.Values{
			"full_name": {"Ada"}, "email": {testAdmin.Email}, "password": {"longenough"}, "role": {"admin"},
		})
		assert.Equal(t, http.StatusConflict, res.status)
		assert.Contains(t, res.body, "An account with this email already exists.")
	})
}

func TestRouter_AuthStatus(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	var before statusResponse
	require.NoError(t, json.Unmarshal([]byte(h.get(t, "/auth/status").body), &before))
	assert.Equal(t, "unauthenticated", before.State)
	assert.Nil(t, before.User)

	h.signIn(t, testLearner.Email, "learner123")

	var after statusResponse
	require.NoError(t, json.Unmarshal([]byte(h.get(t, "/auth/status").body), &after))
	assert.Equal(t, "authenticated", after.State)
	require.NotNil(t, after.User)
	assert.Equal(t, "learner", after.User.Role)
	assert.Equal(t, "Lee Learner", after.User.DisplayName)
}

func TestRouter_ShowsLoadingWhileUninitialized(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	h := newHarness(t, harnessOptions{
		loadingGrace: time.Millisecond,
		newClient: func(string) *authmocks.FakeAuthClient {
			c := authmocks.NewFakeAuthClient(nil)
			c.GetCurrentUserFunc = func(ctx context.Context) (*domainauth.User, error) {
				select {
				case <-release:
				case <-ctx.Done():
				}
				return nil, nil
			}
			return c
		},
	})

	for _, p := range []string{"/admin", "/login"} {
		res := h.get(t, p)
		assert.Equal(t, http.StatusOK, res.status, p)
		assert.Contains(t, res.body, "Loading your session", p)
		assert.Contains(t, res.body, `http-equiv="refresh"`, p)
		assert.Equal(t, "no-store", res.header.Get("Cache-Control"), p)
	}
}

func TestRouter_NavigationSections(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	h.signIn(t, testAdmin.Email, "admin123")

	section := h.get(t, "/admin/settings")
	assert.Equal(t, http.StatusOK, section.status)
	assert.Contains(t, section.body, "This section is coming soon.")
	assert.Contains(t, section.body, `href="/admin/reports"`)

	missing := h.get(t, "/admin/nowhere")
	assert.Equal(t, http.StatusNotFound, missing.status)

	outside := h.get(t, "/elsewhere")
	assert.Equal(t, http.StatusSeeOther, outside.status)
	assert.Equal(t, "/", outside.header.Get("Location"))
}

func TestRouter_AdminDashboard(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockBatchReader(ctrl)
	reader.EXPECT().ListBatches(gomock.Any(), lms.BatchFilter{}).Return([]lms.Batch{
		{ID: "b1", Name: "Go Fundamentals", Status: lms.BatchActive, CurrentLearners: 12, MaxLearners: 20,
			Trainer: lms.UserSummary{FullName: "Tara Trainer"}},
		{ID: "b2", Name: "SQL Basics", Status: lms.BatchCompleted, CurrentLearners: 8, MaxLearners: 20},
	}, nil).AnyTimes()

	h := newHarness(t, harnessOptions{reader: reader})
	h.signIn(t, testAdmin.Email, "admin123")

	home := h.get(t, "/admin")
	assert.Equal(t, http.StatusOK, home.status)
	assert.Contains(t, home.body, "Go Fundamentals")
	assert.Contains(t, home.body, "<h2>20</h2>", "learner total")
	assert.NotContains(t, home.body, "Course data is not available")

	list := h.get(t, "/admin/batches")
	assert.Equal(t, http.StatusOK, list.status)
	assert.Contains(t, list.body, "SQL Basics")
}

func TestRouter_TrainerBatchPages(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockBatchReader(ctrl)
	own := lms.Batch{ID: "b1", Name: "Go Fundamentals", TrainerID: testTrainer.ID}
	reader.EXPECT().ListBatches(gomock.Any(), lms.BatchFilter{TrainerID: testTrainer.ID}).Return([]lms.Batch{own}, nil).AnyTimes()
	reader.EXPECT().GetBatch(gomock.Any(), "b1").Return(own, nil).AnyTimes()
	reader.EXPECT().GetBatch(gomock.Any(), "b9").Return(lms.Batch{ID: "b9", TrainerID: "someone"}, nil).AnyTimes()
	reader.EXPECT().ListAssignments(gomock.Any(), "b1").Return([]lms.Assignment{
		{ID: "a1", Title: "Goroutines lab", DueDate: time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC), MaxScore: 100},
	}, nil).AnyTimes()
	reader.EXPECT().ListAttendance(gomock.Any(), "b1", gomock.Any()).Return([]lms.AttendanceRecord{
		{ID: "r1", Status: lms.AttendancePresent, Learner: lms.UserSummary{FullName: "Lee Learner"}},
		{ID: "r2", Status: lms.AttendanceLate, Learner: lms.UserSummary{FullName: "Sam Student"}},
	}, nil).AnyTimes()

	h := newHarness(t, harnessOptions{reader: reader})
	h.signIn(t, testTrainer.Email, "trainer123")

	picker := h.get(t, "/trainer/assignments")
	assert.Equal(t, http.StatusOK, picker.status)
	assert.Contains(t, picker.body, "Choose a batch")

	assignments := h.get(t, "/trainer/assignments?batch=b1")
	assert.Equal(t, http.StatusOK, assignments.status)
	assert.Contains(t, assignments.body, "Goroutines lab")

	other := h.get(t, "/trainer/assignments?batch=b9")
	assert.Equal(t, http.StatusForbidden, other.status)
	assert.Contains(t, other.body, "batch is assigned to another trainer")

	attendance := h.get(t, "/trainer/attendance?batch=b1&date=2030-01-02")
	assert.Equal(t, http.StatusOK, attendance.status)
	assert.Contains(t, attendance.body, "Sam Student")

	badDate := h.get(t, "/trainer/attendance?batch=b1&date=01/02/2030")
	assert.Equal(t, http.StatusBadRequest, badDate.status)
	assert.Contains(t, badDate.body, "Date must be in YYYY-MM-DD format.")
}

func TestStatusForAuthError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domainauth.NewAuthError(domainauth.AuthErrInvalidCredentials, "", nil), http.StatusUnauthorized},
		{domainauth.NewAuthError(domainauth.AuthErrEmailNotConfirmed, "", nil), http.StatusForbidden},
		{domainauth.NewAuthError(domainauth.AuthErrDuplicateAccount, "", nil), http.StatusConflict},
		{domainauth.NewAuthError(domainauth.AuthErrRateLimited, "", nil), http.StatusTooManyRequests},
		{domainauth.NewAuthError(domainauth.AuthErrNetwork, "", nil), http.StatusBadGateway},
		{domainauth.NewAuthError(domainauth.AuthErrInvalidInput, "", nil), http.StatusUnprocessableEntity},
		{domainauth.NewAuthError(domainauth.AuthErrUnsupported, "", nil), http.StatusNotImplemented},
		{service.ErrStoreClosed, http.StatusServiceUnavailable},
		{apperrors.Internal("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusForAuthError(tt.err), "%v", tt.err)
	}
}
