// Package account defines the User and UserAccount entities and their
// store interface.
//
// A User is a natural person identified by email. A UserAccount binds a
// user to exactly one organisation/establishment pair and carries a set
// of role references; one user may hold many accounts (multi-tenant
// membership), each independently enabled or disabled.
package account

import (
	"errors"
	"strings"
	"time"

	"github.com/xraph/authsome/id"
)

var (
	// ErrNotFound is returned by stores when a user or account does not exist.
	ErrNotFound = errors.New("account: not found")

	// ErrDuplicateEmail is returned when creating a user with an email
	// that already exists.
	ErrDuplicateEmail = errors.New("account: email already registered")
)

// User is a natural person. Workflow flags (email validated, terms,
// privacy policy) are flipped by action-token consumption only.
type User struct {
	ID                    id.UserID `json:"id" db:"id"`
	Email                 string    `json:"email" db:"email"`
	FirstName             string    `json:"first_name,omitempty" db:"first_name"`
	LastName              string    `json:"last_name,omitempty" db:"last_name"`
	EmailValidated        bool      `json:"email_validated" db:"email_validated"`
	AcceptedTerms         bool      `json:"accepted_terms" db:"accepted_terms"`
	AcceptedPrivacyPolicy bool      `json:"accepted_privacy_policy" db:"accepted_privacy_policy"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

// UserAccount is a user's membership in one organisation/establishment.
type UserAccount struct {
	ID              id.AccountID `json:"id" db:"id"`
	UserID          id.UserID    `json:"user_id" db:"user_id"`
	OrganisationID  string       `json:"organisation_id" db:"organisation_id"`
	EstablishmentID string       `json:"establishment_id,omitempty" db:"establishment_id"`
	Enabled         bool         `json:"enabled" db:"enabled"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

// NormalizeEmail canonicalizes an email address for storage and
// comparison. Token email binding is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ListFilter contains filters for listing accounts.
type ListFilter struct {
	UserID          *id.UserID `json:"user_id,omitempty"`
	OrganisationID  string     `json:"organisation_id,omitempty"`
	EstablishmentID string     `json:"establishment_id,omitempty"`
	Enabled         *bool      `json:"enabled,omitempty"`
	Limit           int        `json:"limit,omitempty"`
	Offset          int        `json:"offset,omitempty"`
}
