// Package access decides, for a Session State and a requested view, whether to
// render, show the loading indicator, or redirect. Every function here is pure;
// performing the navigation belongs to the HTTP layer.
package access

import (
	"fmt"

	"github.com/target/learnhub/internal/domain/auth"
	"github.com/target/learnhub/internal/domain/session"
)

const (
	// LoginPath is the default sign-in view.
	LoginPath = "/login"
	// UnauthorizedPath is the default view for authenticated users lacking a role.
	UnauthorizedPath = "/unauthorized"
	// RootPath redirects to the caller's role home.
	RootPath = "/"
)

// DecisionKind tags a Decision.
type DecisionKind int

const (
	DecisionRender DecisionKind = iota
	DecisionShowLoading
	DecisionRedirect
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionRender:
		return "render"
	case DecisionShowLoading:
		return "show_loading"
	case DecisionRedirect:
		return "redirect"
	default:
		return "invalid"
	}
}

// View names a public (non-area) page.
type View string

const (
	ViewLogin        View = "login"
	ViewSignup       View = "signup"
	ViewUnauthorized View = "unauthorized"
)

// Decision is the gate outcome. Target is set for redirects; View or Area names
// what to render.
type Decision struct {
	Kind   DecisionKind
	Target string
	View   View
	Area   string
}

// Render lets the requested view through.
func Render() Decision { return Decision{Kind: DecisionRender} }

// ShowLoading suspends rendering while identity resolution is pending.
func ShowLoading() Decision { return Decision{Kind: DecisionShowLoading} }

// RedirectTo sends the client to target.
func RedirectTo(target string) Decision {
	return Decision{Kind: DecisionRedirect, Target: target}
}

func (d Decision) String() string {
	switch d.Kind {
	case DecisionRedirect:
		return fmt.Sprintf("redirect(%s)", d.Target)
	case DecisionRender:
		switch {
		case d.Area != "":
			return fmt.Sprintf("render(area=%s)", d.Area)
		case d.View != "":
			return fmt.Sprintf("render(view=%s)", d.View)
		}
	}
	return d.Kind.String()
}

// Decide applies the protected-view contract with the default login and
// unauthorized paths.
func Decide(state session.State, allowed auth.RoleSet) Decision {
	return decide(state, allowed, LoginPath, UnauthorizedPath)
}

func decide(state session.State, allowed auth.RoleSet, login, unauthorized string) Decision {
	switch state.Kind() {
	case session.KindUninitialized:
		return ShowLoading()
	case session.KindUnauthenticated:
		return RedirectTo(login)
	case session.KindAuthenticated:
		id, _ := state.Identity()
		if !allowed.Has(id.Role) {
			return RedirectTo(unauthorized)
		}
		return Render()
	default:
		return RedirectTo(login)
	}
}

// HomePath is the landing page for role. It is total over the role enumeration.
func HomePath(role auth.Role) (string, error) {
	switch role {
	case auth.RoleAdmin:
		return "/admin", nil
	case auth.RoleTrainer:
		return "/trainer", nil
	case auth.RoleLearner:
		return "/learner", nil
	default:
		return "", &auth.UnknownRoleError{Value: string(role)}
	}
}
