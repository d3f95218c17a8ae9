package api

import (
	"errors"

	"github.com/xraph/forge"

	"github.com/xraph/authsome"
	"github.com/xraph/authsome/account"
	"github.com/xraph/authsome/claim"
	"github.com/xraph/authsome/credential"
	"github.com/xraph/authsome/role"
	"github.com/xraph/authsome/token"
)

// mapError maps domain errors to Forge HTTP errors. Token failures are
// collapsed through PublicError first so responses never reveal whether a
// token exists, expired, or was already used.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	err = authsome.PublicError(err)
	if isNotFound(err) {
		return forge.NotFound(err.Error())
	}
	if errors.Is(err, authsome.ErrTokenInvalid) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, authsome.ErrTermsNotAccepted) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, authsome.ErrSystemRoleImmutable) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, account.ErrDuplicateEmail) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, claim.ErrMalformed) || errors.Is(err, claim.ErrInvalidInput) || errors.Is(err, claim.ErrDuplicate) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, authsome.ErrMissingTenantContext) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, authsome.ErrAccessDenied) || errors.Is(err, credential.ErrMismatch) {
		return forge.Forbidden(err.Error())
	}
	return err
}

// maskAccountProbe reports whether a token-issuance failure must be
// hidden from the caller. A reset-password request for an unknown
// address answers exactly like one for a known address, so the endpoint
// cannot be used to confirm which emails have accounts.
func maskAccountProbe(typ token.Type, err error) bool {
	return typ.Has(token.TypeResetPassword) && errors.Is(err, account.ErrNotFound)
}

func isNotFound(err error) bool {
	return errors.Is(err, role.ErrNotFound) ||
		errors.Is(err, account.ErrNotFound) ||
		errors.Is(err, credential.ErrNotFound)
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
