// Package role defines the Role entity and its store interface.
package role

import (
	"errors"
	"time"

	"github.com/xraph/authsome/claim"
	"github.com/xraph/authsome/id"
)

// ErrNotFound is returned by stores when a role does not exist.
var ErrNotFound = errors.New("role: not found")

// Role is a named, durable aggregate of claims. Accounts reference roles
// by ID; deleting a role detaches it from every account. An account's
// effective claim set is the union of its roles' claims.
type Role struct {
	ID             id.RoleID     `json:"id" db:"id"`
	OrganisationID string        `json:"organisation_id,omitempty" db:"organisation_id"`
	Name           string        `json:"name" db:"name"`
	Description    string        `json:"description,omitempty" db:"description"`
	Claims         []claim.Claim `json:"claims" db:"claims"`
	IsSystem       bool          `json:"is_system" db:"is_system"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// Validate checks the role's claim set: every claim must be well formed
// and no full (action, scope, resource) triple may appear twice. The same
// (action, resource) pair at different scopes is allowed.
func (r *Role) Validate() error {
	return claim.ValidateSet(r.Claims)
}

// ListFilter contains filters for listing roles.
type ListFilter struct {
	OrganisationID string `json:"organisation_id,omitempty"`
	IsSystem       *bool  `json:"is_system,omitempty"`
	Search         string `json:"search,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
}
