package access

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/target/learnhub/internal/domain/auth"
	"github.com/target/learnhub/internal/domain/session"
)

// Area is a protected route requirement: every path under Prefix needs one of Roles.
type Area struct {
	Name   string
	Prefix string
	Roles  auth.RoleSet
}

// Contains reports whether p falls under the area prefix on a segment boundary.
func (a Area) Contains(p string) bool {
	return p == a.Prefix || strings.HasPrefix(p, a.Prefix+"/")
}

// PublicRoute is a page reachable without an identity.
type PublicRoute struct {
	Path string
	View View
}

// RouteTable is the declarative routing configuration consulted per navigation.
type RouteTable struct {
	LoginPath        string
	UnauthorizedPath string
	Public           []PublicRoute
	Areas            []Area
}

// DefaultRouteTable mirrors the built-in areas: one per role.
func DefaultRouteTable() RouteTable {
	return RouteTable{
		LoginPath:        LoginPath,
		UnauthorizedPath: UnauthorizedPath,
		Public: []PublicRoute{
			{Path: LoginPath, View: ViewLogin},
			{Path: "/signup", View: ViewSignup},
		},
		Areas: []Area{
			{Name: "admin", Prefix: "/admin", Roles: auth.NewRoleSet(auth.RoleAdmin)},
			{Name: "trainer", Prefix: "/trainer", Roles: auth.NewRoleSet(auth.RoleTrainer)},
			{Name: "learner", Prefix: "/learner", Roles: auth.NewRoleSet(auth.RoleLearner)},
		},
	}
}

// Validate checks the table is usable: the login view is public and every
// role's home lies inside an area admitting that role.
func (t RouteTable) Validate() error {
	var errs []error
	if t.LoginPath == "" {
		errs = append(errs, errors.New("login path is required"))
	}
	if t.UnauthorizedPath == "" {
		errs = append(errs, errors.New("unauthorized path is required"))
	}
	if _, ok := t.publicView(t.LoginPath); !ok {
		errs = append(errs, fmt.Errorf("login path %q must be public", t.LoginPath))
	}
	for _, a := range t.Areas {
		if a.Name == "" || !strings.HasPrefix(a.Prefix, "/") || a.Prefix == RootPath {
			errs = append(errs, fmt.Errorf("area %q has invalid prefix %q", a.Name, a.Prefix))
		}
	}
	for _, role := range auth.Roles() {
		home, err := HomePath(role)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		area, ok := t.AreaFor(home)
		if !ok || !area.Roles.Has(role) {
			errs = append(errs, fmt.Errorf("home %s for role %s is not admitted by any area", home, role))
		}
	}
	return errors.Join(errs...)
}

// AreaFor returns the first area containing p.
func (t RouteTable) AreaFor(p string) (Area, bool) {
	for _, a := range t.Areas {
		if a.Contains(p) {
			return a, true
		}
	}
	return Area{}, false
}

func (t RouteTable) publicView(p string) (View, bool) {
	for _, r := range t.Public {
		if r.Path == p {
			return r.View, true
		}
	}
	return "", false
}

// Decide applies the protected-view contract using this table's paths.
func (t RouteTable) Decide(state session.State, allowed auth.RoleSet) Decision {
	return decide(state, allowed, t.LoginPath, t.UnauthorizedPath)
}

// Navigate is the top-level routing contract for a requested path.
func (t RouteTable) Navigate(state session.State, requested string) Decision {
	p := CleanPath(requested)

	switch state.Kind() {
	case session.KindUninitialized:
		return ShowLoading()
	case session.KindUnauthenticated:
		if view, ok := t.publicView(p); ok {
			return Decision{Kind: DecisionRender, View: view}
		}
		return RedirectTo(t.LoginPath)
	case session.KindAuthenticated:
		return t.navigateAuthenticated(state, p)
	default:
		return RedirectTo(t.LoginPath)
	}
}

func (t RouteTable) navigateAuthenticated(state session.State, p string) Decision {
	id, _ := state.Identity()

	switch {
	case p == RootPath:
		home, err := HomePath(id.Role)
		if err != nil {
			return RedirectTo(t.UnauthorizedPath)
		}
		return RedirectTo(home)
	case p == t.UnauthorizedPath:
		return Decision{Kind: DecisionRender, View: ViewUnauthorized}
	}

	if area, ok := t.AreaFor(p); ok {
		d := t.Decide(state, area.Roles)
		if d.Kind == DecisionRender {
			d.Area = area.Name
		}
		return d
	}
	return RedirectTo(RootPath)
}

// CleanPath normalizes a request path to a rooted, slash-free-suffix form.
func CleanPath(p string) string {
	if p == "" {
		return RootPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
