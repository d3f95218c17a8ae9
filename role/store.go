package role

import (
	"context"

	"github.com/xraph/authsome/claim"
	"github.com/xraph/authsome/id"
)

// Store defines persistence operations for roles.
type Store interface {
	// CreateRole persists a new role.
	CreateRole(ctx context.Context, r *Role) error

	// GetRole retrieves a role by ID.
	GetRole(ctx context.Context, roleID id.RoleID) (*Role, error)

	// GetRoleByName retrieves a role by organisation and name.
	GetRoleByName(ctx context.Context, organisationID, name string) (*Role, error)

	// UpdateRole persists changes to a role.
	UpdateRole(ctx context.Context, r *Role) error

	// DeleteRole removes a role and detaches it from every account.
	DeleteRole(ctx context.Context, roleID id.RoleID) error

	// ListRoles returns roles matching the filter.
	ListRoles(ctx context.Context, filter *ListFilter) ([]*Role, error)

	// CountRoles returns the number of roles matching the filter.
	CountRoles(ctx context.Context, filter *ListFilter) (int64, error)

	// SetRoleClaims replaces a role's claim set.
	SetRoleClaims(ctx context.Context, roleID id.RoleID, claims []claim.Claim) error
}
