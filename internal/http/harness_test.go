package httpx

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/target/learnhub/config"
	domainauth "github.com/target/learnhub/internal/domain/auth"
	authmocks "github.com/target/learnhub/internal/mocks/auth"
	"github.com/target/learnhub/internal/ports"
	"github.com/target/learnhub/internal/service"
)

var (
	testAdmin   = domainauth.User{ID: "u-admin", Email: "ada@example.com"}
	testTrainer = domainauth.User{ID: "u-trainer", Email: "tara@example.com"}
	testLearner = domainauth.User{ID: "u-learner", Email: "lee@example.com"}
)

type harnessOptions struct {
	reader       ports.BatchReader
	newClient    func(clientID string) *authmocks.FakeAuthClient
	loadingGrace time.Duration
	// auth and profiles replace the fake collaborators when set.
	auth     ports.AuthClientFactory
	profiles ports.ProfileLookup
	now      func() time.Time
}

type harness struct {
	srv      *httptest.Server
	client   *http.Client
	factory  *authmocks.FakeAuthFactory
	registry *service.SessionRegistry
}

func testAccounts() map[string]authmocks.Account {
	return map[string]authmocks.Account{
		testAdmin.Email:   {Password: "admin123", User: testAdmin},
		testTrainer.Email: {Password: "trainer123", User: testTrainer},
		testLearner.Email: {Password: "learner123", User: testLearner},
	}
}

func testProfiles() *authmocks.FakeProfiles {
	p := &authmocks.FakeProfiles{}
	p.Put(domainauth.Profile{ID: testAdmin.ID, Email: testAdmin.Email, FullName: "Ada Admin", Role: "admin"})
	p.Put(domainauth.Profile{ID: testTrainer.ID, Email: testTrainer.Email, FullName: "Tara Trainer", Role: "trainer"})
	p.Put(domainauth.Profile{ID: testLearner.ID, Email: testLearner.Email, FullName: "Lee Learner", Role: "learner"})
	return p
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	newClient := opts.newClient
	if newClient == nil {
		newClient = func(string) *authmocks.FakeAuthClient { return authmocks.NewFakeAuthClient(testAccounts()) }
	}
	grace := opts.loadingGrace
	if grace == 0 {
		grace = 2 * time.Second
	}
	factory := &authmocks.FakeAuthFactory{New: newClient}
	sessCfg := config.SessionConfig{LoadingGrace: grace}

	var authFactory ports.AuthClientFactory = factory
	if opts.auth != nil {
		authFactory = opts.auth
	}
	var profiles ports.ProfileLookup = testProfiles()
	if opts.profiles != nil {
		profiles = opts.profiles
	}
	registry, err := service.NewSessionRegistry(service.SessionRegistryOptions{
		Factory:  authFactory,
		Profiles: profiles,
		Config:   sessCfg,
		Now:      opts.now,
	})
	require.NoError(t, err)

	var dashboard *service.DashboardService
	if opts.reader != nil {
		dashboard = service.NewDashboardService(service.DashboardServiceOptions{Reader: opts.reader})
	}
	handler, err := NewRouter(RouterServices{
		Registry:  registry,
		Dashboard: dashboard,
		Session:   sessCfg,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		registry.Close()
	})

	return &harness{srv: srv, client: newBrowserClient(t), factory: factory, registry: registry}
}

func newBrowserClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Timeout: 10 * time.Second,
	}
}

// browser returns a second client with its own cookie jar against the same server.
func (h *harness) browser(t *testing.T) *harness {
	t.Helper()
	other := *h
	other.client = newBrowserClient(t)
	return &other
}

func (h *harness) setCookie(t *testing.T, name, value string) {
	t.Helper()
	u, err := url.Parse(h.srv.URL)
	require.NoError(t, err)
	h.client.Jar.SetCookies(u, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
}

type result struct {
	status int
	header http.Header
	body   string
}

func (h *harness) do(t *testing.T, req *http.Request) result {
	t.Helper()
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return result{status: resp.StatusCode, header: resp.Header, body: string(b)}
}

func (h *harness) get(t *testing.T, path string, headers ...string) result {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, h.srv.URL+path, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return h.do(t, req)
}

// post submits a form with the CSRF token from the cookie jar, visiting the
// login page first when no token has been issued yet.
func (h *harness) post(t *testing.T, path string, form url.Values) result {
	t.Helper()
	token := h.cookie(t, DefaultCSRFCookieName)
	if token == "" {
		h.get(t, "/login")
		token = h.cookie(t, DefaultCSRFCookieName)
	}
	if form == nil {
		form = url.Values{}
	}
	form.Set(DefaultCSRFCookieName, token)
	return h.postRaw(t, path, form)
}

func (h *harness) postRaw(t *testing.T, path string, form url.Values) result {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, h.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(t, req)
}

func (h *harness) cookie(t *testing.T, name string) string {
	t.Helper()
	u, err := url.Parse(h.srv.URL)
	require.NoError(t, err)
	for _, c := range h.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (h *harness) signIn(t *testing.T, email, password string) {
	t.Helper()
	res := h.post(t, "/login", url.Values{"email": {email}, "password": {password}})
	require.Equal(t, http.StatusSeeOther, res.status, res.body)
}
