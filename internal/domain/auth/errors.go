package auth

import (
	"errors"
	"fmt"
)

// AuthErrorKind classifies auth collaborator failures for display.
type AuthErrorKind string

const (
	AuthErrInvalidCredentials AuthErrorKind = "invalid_credentials"
	AuthErrEmailNotConfirmed  AuthErrorKind = "email_not_confirmed"
	AuthErrDuplicateAccount   AuthErrorKind = "duplicate_account"
	AuthErrRateLimited        AuthErrorKind = "rate_limited"
	AuthErrNetwork            AuthErrorKind = "network"
	AuthErrInvalidInput       AuthErrorKind = "invalid_input"
	AuthErrUnsupported        AuthErrorKind = "unsupported"
	AuthErrUnknown            AuthErrorKind = "unknown"
)

// AuthError is a failure reported by the auth collaborator. It is returned as a
// value to the caller of SignIn/SignUp/SignOut and never changes session state.
type AuthError struct {
	Kind    AuthErrorKind
	Message string
	Cause   error
}

// NewAuthError builds an AuthError.
func NewAuthError(kind AuthErrorKind, message string, cause error) *AuthError {
	return &AuthError{Kind: kind, Message: message, Cause: cause}
}

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("auth: %s: %v", msg, e.Cause)
	}
	return "auth: " + msg
}

func (e *AuthError) Unwrap() error { return e.Cause }

// UserMessage is the text shown next to a form.
func (e *AuthError) UserMessage() string {
	switch e.Kind {
	case AuthErrInvalidCredentials:
		return "Invalid email or password."
	case AuthErrEmailNotConfirmed:
		return "Please confirm your email address before signing in."
	case AuthErrDuplicateAccount:
		return "An account with this email already exists."
	case AuthErrRateLimited:
		return "Too many attempts. Please wait a moment and try again."
	case AuthErrNetwork:
		return "The sign-in service is unreachable. Please try again."
	case AuthErrInvalidInput:
		if e.Message != "" {
			return e.Message
		}
		return "Please check the form and try again."
	case AuthErrUnsupported:
		return "This operation is not available."
	default:
		return "Something went wrong. Please try again."
	}
}

// KindOf classifies err; errors that are not AuthErrors are AuthErrUnknown.
func KindOf(err error) AuthErrorKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return AuthErrUnknown
}
