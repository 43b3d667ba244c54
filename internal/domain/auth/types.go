// Package auth contains domain-level types for authentication, identities and
// profiles. It is pure and free of framework/adapter concerns.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of application roles.
// Keep string form for persistence, cookies and profile rows.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTrainer Role = "trainer"
	RoleLearner Role = "learner"
)

// Roles lists every valid role in display order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleTrainer, RoleLearner}
}

// ErrUnknownRole is matched by every role parse failure.
var ErrUnknownRole = errors.New("unknown role")

// UnknownRoleError carries the raw value that failed to parse.
type UnknownRoleError struct {
	Value string
}

func (e *UnknownRoleError) Error() string {
	if e.Value == "" {
		return "missing role"
	}
	return fmt.Sprintf("unknown role %q", e.Value)
}

func (e *UnknownRoleError) Is(target error) bool { return target == ErrUnknownRole }

// ParseRole maps a stored role string onto the enumeration.
// Matching is case-insensitive; surrounding whitespace is ignored.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleTrainer:
		return RoleTrainer, nil
	case RoleLearner:
		return RoleLearner, nil
	default:
		return "", &UnknownRoleError{Value: raw}
	}
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTrainer, RoleLearner:
		return true
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }

// RoleSet is an allowed-role set for a route requirement.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from roles.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Has reports whether r is a member.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Identity is the authenticated principal as known to the front end.
// Values are immutable snapshots; adapters never hand out pointers into store state.
type Identity struct {
	ID          string
	Role        Role
	Email       string
	DisplayName string
	AvatarURL   string
}

// Validate reports whether the identity is fully populated.
func (i Identity) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return errors.New("identity id is required")
	}
	if !i.Role.Valid() {
		return &UnknownRoleError{Value: string(i.Role)}
	}
	return nil
}

// Profile mirrors a row of the hosted users table. Role stays raw so the
// resolver decides how to treat values outside the enumeration.
type Profile struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FullName  string    `json:"full_name" db:"full_name"`
	Role      string    `json:"role" db:"role"`
	AvatarURL string    `json:"avatar_url" db:"avatar_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Identity resolves the profile into an Identity, failing on unknown roles.
func (p Profile) Identity() (Identity, error) {
	role, err := ParseRole(p.Role)
	if err != nil {
		return Identity{}, err
	}
	id := Identity{
		ID:          p.ID,
		Role:        role,
		Email:       p.Email,
		DisplayName: p.FullName,
		AvatarURL:   p.AvatarURL,
	}
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// User is the auth collaborator's view of an account.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	Metadata         map[string]any `json:"user_metadata,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
}

// AuthSession is an issued session as returned by the auth collaborator.
type AuthSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is past its expiry at now.
// A zero ExpiresAt never expires.
func (s AuthSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ErrNoSession is returned by token stores when a client holds no session.
var ErrNoSession = errors.New("no auth session")

// AuthEvent is an auth state change reported by the collaborator.
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// SignUpInput is the account registration request. FullName and Role travel
// to the collaborator as user metadata.
type SignUpInput struct {
	Email    string
	Password string
	FullName string
	Role     Role
}

// Metadata returns the profile metadata attached to a sign-up.
func (in SignUpInput) Metadata() map[string]any {
	return map[string]any{
		"full_name": in.FullName,
		"role":      string(in.Role),
	}
}
