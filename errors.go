package authsome

import (
	"errors"

	"github.com/xraph/authsome/token"
)

var (
	// ErrAccessDenied is returned when an authorization check fails.
	ErrAccessDenied = errors.New("authsome: access denied")

	// ErrMissingTenantContext is returned when a tenant-bounded scope
	// resolves without the organisation or user needed to bound it.
	ErrMissingTenantContext = errors.New("authsome: missing tenant context")

	// ErrTokenInvalid is the only token failure exposed to callers.
	// Expiry, consumption, mismatch, and absence all collapse into it so
	// responses never leak why a token failed.
	ErrTokenInvalid = errors.New("authsome: invalid token")

	// ErrTokenExpired is returned internally when a token's deadline passed.
	ErrTokenExpired = errors.New("authsome: token expired")

	// ErrEmailMismatch is returned internally when the presented email does
	// not match the token's bound email.
	ErrEmailMismatch = errors.New("authsome: email does not match token")

	// ErrTypeMismatch is returned internally when a token does not carry
	// every requested workflow bit.
	ErrTypeMismatch = errors.New("authsome: token type mismatch")

	// ErrAccountDisabled is returned when an operation targets a disabled
	// account.
	ErrAccountDisabled = errors.New("authsome: account disabled")

	// ErrTermsNotAccepted is returned when a terms or privacy-policy
	// acceptance arrives with acceptance declined.
	ErrTermsNotAccepted = errors.New("authsome: terms not accepted")

	// ErrSystemRoleImmutable is returned when trying to modify or delete a
	// system role.
	ErrSystemRoleImmutable = errors.New("authsome: system role cannot be modified")
)

// PublicError maps internal token failures to the caller-safe ErrTokenInvalid.
// Non-token errors pass through unchanged.
func PublicError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrEmailMismatch),
		errors.Is(err, ErrTypeMismatch),
		errors.Is(err, token.ErrNotFound),
		errors.Is(err, token.ErrConsumed):
		return ErrTokenInvalid
	default:
		return err
	}
}
