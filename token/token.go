// Package token defines the action token entity and its store interface.
//
// An action token is a single-use, optionally expiring credential bound
// to an email address. Its Type is a bitmask, so one token can authorize
// several workflow steps at once (for example an invite that also accepts
// the terms of service). Consumption is atomic: the store marks the token
// consumed and applies the workflow side effect in one transaction.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/xraph/authsome/id"
)

var (
	// ErrNotFound is returned by stores when no token matches.
	ErrNotFound = errors.New("token: not found")

	// ErrConsumed is returned when a token has already been consumed.
	ErrConsumed = errors.New("token: already consumed")
)

// Type is a bitmask of workflow steps a token authorizes.
type Type uint32

const (
	// TypeInvite authorizes account creation from an invitation.
	TypeInvite Type = 1 << iota

	// TypeValidateEmail authorizes marking the bound email as validated.
	TypeValidateEmail

	// TypeAcceptTerms authorizes recording terms-of-service acceptance.
	TypeAcceptTerms

	// TypeAcceptPrivacyPolicy authorizes recording privacy-policy acceptance.
	TypeAcceptPrivacyPolicy

	// TypeResetPassword authorizes replacing a forgotten password.
	TypeResetPassword

	// TypeChangePassword authorizes replacing a known password.
	TypeChangePassword

	// TypeChangeEmail authorizes switching the user to the token's email.
	TypeChangeEmail
)

// typeNames maps single bits to their wire names.
var typeNames = map[Type]string{
	TypeInvite:              "invite",
	TypeValidateEmail:       "validate_email",
	TypeAcceptTerms:         "accept_terms",
	TypeAcceptPrivacyPolicy: "accept_privacy_policy",
	TypeResetPassword:       "reset_password",
	TypeChangePassword:      "change_password",
	TypeChangeEmail:         "change_email",
}

// namedTypes is the inverse of typeNames.
var namedTypes = func() map[string]Type {
	m := make(map[string]Type, len(typeNames))
	for t, n := range typeNames {
		m[n] = t
	}
	return m
}()

// allTypes is the union of every defined bit.
const allTypes = TypeInvite | TypeValidateEmail | TypeAcceptTerms |
	TypeAcceptPrivacyPolicy | TypeResetPassword | TypeChangePassword |
	TypeChangeEmail

// Valid reports whether t is non-zero and carries only defined bits.
func (t Type) Valid() bool {
	return t != 0 && t&^allTypes == 0
}

// Has reports whether every bit of want is set in t.
func (t Type) Has(want Type) bool {
	return want != 0 && t&want == want
}

// Bits returns the individual type bits set in t, lowest first.
func (t Type) Bits() []Type {
	var out []Type
	for bit := TypeInvite; bit <= TypeChangeEmail; bit <<= 1 {
		if t&bit != 0 {
			out = append(out, bit)
		}
	}
	return out
}

// String renders t as a "+"-joined list of wire names.
func (t Type) String() string {
	bits := t.Bits()
	if len(bits) == 0 {
		return "none"
	}
	names := make([]string, 0, len(bits))
	for _, bit := range bits {
		names = append(names, typeNames[bit])
	}
	return strings.Join(names, "+")
}

// ParseType parses a "+"-joined list of wire names into a Type.
func ParseType(s string) (Type, error) {
	var t Type
	for _, name := range strings.Split(s, "+") {
		bit, ok := namedTypes[strings.TrimSpace(name)]
		if !ok {
			return 0, errors.New("token: unknown type " + strings.TrimSpace(name))
		}
		t |= bit
	}
	return t, nil
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Action is a persisted action token. Token is the opaque secret handed
// to the recipient; Email is the bound address, stored normalized.
//
// UserID is set for workflows that target an existing user (password and
// email changes, and validation mails sent to a known user). RoleIDs,
// OrganisationID and EstablishmentID carry the membership an invite
// creates on acceptance.
type Action struct {
	ID              id.ActionID `json:"id" db:"id"`
	Token           string      `json:"-" db:"token"`
	Type            Type        `json:"type" db:"type"`
	Email           string      `json:"email" db:"email"`
	UserID          id.UserID   `json:"user_id,omitempty" db:"user_id"`
	RoleIDs         []id.RoleID `json:"role_ids,omitempty" db:"role_ids"`
	OrganisationID  string      `json:"organisation_id,omitempty" db:"organisation_id"`
	EstablishmentID string      `json:"establishment_id,omitempty" db:"establishment_id"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	ExpiresAt       *time.Time  `json:"expires_at,omitempty" db:"expires_at"`
	ConsumedAt      *time.Time  `json:"consumed_at,omitempty" db:"consumed_at"`
}

// Expired reports whether the token's deadline has passed at the given
// instant. Tokens without a deadline never expire.
func (a *Action) Expired(at time.Time) bool {
	return a.ExpiresAt != nil && at.After(*a.ExpiresAt)
}

// IsConsumed reports whether the token has already been used.
func (a *Action) IsConsumed() bool {
	return a.ConsumedAt != nil
}
