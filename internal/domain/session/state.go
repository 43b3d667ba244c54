// Package session models the client-visible session state machine:
// Uninitialized → {Unauthenticated | Authenticated} → (Unauthenticated ⇄ Authenticated)*.
package session

import "github.com/target/learnhub/internal/domain/auth"

// Kind tags a State.
type Kind int

const (
	KindUninitialized Kind = iota
	KindUnauthenticated
	KindAuthenticated
)

func (k Kind) String() string {
	switch k {
	case KindUninitialized:
		return "uninitialized"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindAuthenticated:
		return "authenticated"
	default:
		return "invalid"
	}
}

// State is exactly one of Uninitialized, Unauthenticated or Authenticated(Identity).
// The zero value is Uninitialized. States are values; copying one never shares
// identity data with the store that produced it.
type State struct {
	kind     Kind
	identity auth.Identity
}

// Uninitialized is the state before the first identity check completes.
func Uninitialized() State { return State{kind: KindUninitialized} }

// Unauthenticated is the state with no valid identity.
func Unauthenticated() State { return State{kind: KindUnauthenticated} }

// Authenticated returns the state carrying id. An identity without an id or a
// valid role is rejected.
func Authenticated(id auth.Identity) (State, error) {
	if err := id.Validate(); err != nil {
		return State{}, err
	}
	return State{kind: KindAuthenticated, identity: id}, nil
}

// Kind reports the state tag.
func (s State) Kind() Kind { return s.kind }

// Identity returns the authenticated identity, if any.
func (s State) Identity() (auth.Identity, bool) {
	if s.kind != KindAuthenticated {
		return auth.Identity{}, false
	}
	return s.identity, true
}

// IsUninitialized reports whether identity resolution is still pending.
func (s State) IsUninitialized() bool { return s.kind == KindUninitialized }

// IsAuthenticated reports whether an identity is present.
func (s State) IsAuthenticated() bool { return s.kind == KindAuthenticated }

func (s State) String() string {
	if s.kind == KindAuthenticated {
		return s.kind.String() + "(" + string(s.identity.Role) + ")"
	}
	return s.kind.String()
}
