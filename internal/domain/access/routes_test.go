package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/learnhub/internal/domain/auth"
	"github.com/target/learnhub/internal/domain/session"
)

func TestNavigate_UninitializedShowsLoadingEverywhere(t *testing.T) {
	table := DefaultRouteTable()
	for _, p := range []string{"/", "/login", "/signup", "/admin", "/unauthorized", "/nope"} {
		assert.Equal(t, ShowLoading(), table.Navigate(session.Uninitialized(), p), p)
	}
}

func TestNavigate_Unauthenticated(t *testing.T) {
	table := DefaultRouteTable()
	state := session.Unauthenticated()

	assert.Equal(t, Decision{Kind: DecisionRender, View: ViewLogin}, table.Navigate(state, "/login"))
	assert.Equal(t, Decision{Kind: DecisionRender, View: ViewSignup}, table.Navigate(state, "/signup"))
	for _, p := range []string{"/", "/admin", "/trainer/attendance", "/unauthorized", "/whatever"} {
		assert.Equal(t, RedirectTo("/login"), table.Navigate(state, p), p)
	}
}

func TestNavigate_TrainerScenario(t *testing.T) {
	table := DefaultRouteTable()
	state := authenticated(t, auth.RoleTrainer)

	assert.Equal(t, Decision{Kind: DecisionRender, Area: "trainer"}, table.Navigate(state, "/trainer"))
	assert.Equal(t, Decision{Kind: DecisionRender, Area: "trainer"}, table.Navigate(state, "/trainer/attendance"))
	assert.Equal(t, RedirectTo("/unauthorized"), table.Navigate(state, "/admin"))
	assert.Equal(t, RedirectTo("/trainer"), table.Navigate(state, "/"))
}

func TestNavigate_AuthenticatedRootRedirectsByRole(t *testing.T) {
	table := DefaultRouteTable()
	for _, role := range auth.Roles() {
		home, err := HomePath(role)
		require.NoError(t, err)
		assert.Equal(t, RedirectTo(home), table.Navigate(authenticated(t, role), "/"))
	}
}

func TestNavigate_AuthenticatedCatchAll(t *testing.T) {
	table := DefaultRouteTable()
	state := authenticated(t, auth.RoleLearner)

	assert.Equal(t, RedirectTo("/"), table.Navigate(state, "/login"))
	assert.Equal(t, RedirectTo("/"), table.Navigate(state, "/signup"))
	assert.Equal(t, RedirectTo("/"), table.Navigate(state, "/no/such/page"))
	assert.Equal(t, RedirectTo("/"), table.Navigate(state, "/learnerx"))
	assert.Equal(t, Decision{Kind: DecisionRender, View: ViewUnauthorized}, table.Navigate(state, "/unauthorized"))
}

func TestNavigate_CleansPaths(t *testing.T) {
	table := DefaultRouteTable()
	state := authenticated(t, auth.RoleAdmin)

	assert.Equal(t, Decision{Kind: DecisionRender, Area: "admin"}, table.Navigate(state, "/admin/"))
	assert.Equal(t, RedirectTo("/unauthorized"), table.Navigate(state, "/admin/../trainer"))
	assert.Equal(t, RedirectTo("/admin"), table.Navigate(state, ""))
}

func TestRouteTable_ValidateDefault(t *testing.T) {
	require.NoError(t, DefaultRouteTable().Validate())
}

func TestRouteTable_ValidateRejectsUnreachableHome(t *testing.T) {
	table := DefaultRouteTable()
	table.Areas[1].Roles = auth.NewRoleSet(auth.RoleAdmin)

	err := table.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "role trainer")
}

func TestRouteTable_ValidateRequiresPublicLogin(t *testing.T) {
	table := DefaultRouteTable()
	table.Public = nil

	assert.Error(t, table.Validate())
}

func TestRouteTable_CustomPaths(t *testing.T) {
	table := DefaultRouteTable()
	table.LoginPath = "/signin"
	table.UnauthorizedPath = "/denied"
	table.Public = []PublicRoute{{Path: "/signin", View: ViewLogin}}
	require.NoError(t, table.Validate())

	assert.Equal(t, RedirectTo("/signin"), table.Navigate(session.Unauthenticated(), "/admin"))
	assert.Equal(t, RedirectTo("/denied"), table.Navigate(authenticated(t, auth.RoleLearner), "/admin"))
	assert.Equal(t, Decision{Kind: DecisionRender, View: ViewUnauthorized},
		table.Navigate(authenticated(t, auth.RoleLearner), "/denied"))
}

func TestCleanPath(t *testing.T) {
	assert.Equal(t, "/", CleanPath(""))
	assert.Equal(t, "/admin", CleanPath("admin"))
	assert.Equal(t, "/admin", CleanPath("/admin/"))
	assert.Equal(t, "/", CleanPath("/.."))
}
