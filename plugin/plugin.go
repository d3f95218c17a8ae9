// Package plugin defines the plugin system for the engine.
// Plugins are notified of lifecycle events (authorization performed,
// token issued, role created, etc.) and can react with logging, metrics,
// tracing, etc.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"

	"github.com/xraph/authsome/account"
	"github.com/xraph/authsome/id"
	"github.com/xraph/authsome/role"
	"github.com/xraph/authsome/token"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Authorization lifecycle hooks
// ──────────────────────────────────────────────────

// BeforeAuthorize is called before an authorization check is resolved.
// The req parameter is *authsome.AuthRequest (passed as any to avoid import cycle).
type BeforeAuthorize interface {
	OnBeforeAuthorize(ctx context.Context, req any) error
}

// AfterAuthorize is called after an authorization check completes.
// The req parameter is *authsome.AuthRequest; res is *authsome.Resolution.
type AfterAuthorize interface {
	OnAfterAuthorize(ctx context.Context, req, res any) error
}

// ──────────────────────────────────────────────────
// Role lifecycle hooks
// ──────────────────────────────────────────────────

// RoleCreated is called after a role is created.
type RoleCreated interface {
	OnRoleCreated(ctx context.Context, r *role.Role) error
}

// RoleUpdated is called after a role or its claims are updated.
type RoleUpdated interface {
	OnRoleUpdated(ctx context.Context, r *role.Role) error
}

// RoleDeleted is called after a role is deleted.
type RoleDeleted interface {
	OnRoleDeleted(ctx context.Context, roleID id.RoleID) error
}

// RoleAssigned is called after a role is attached to an account.
type RoleAssigned interface {
	OnRoleAssigned(ctx context.Context, accountID id.AccountID, roleID id.RoleID) error
}

// RoleUnassigned is called after a role is detached from an account.
type RoleUnassigned interface {
	OnRoleUnassigned(ctx context.Context, accountID id.AccountID, roleID id.RoleID) error
}

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// AccountCreated is called after an account is created, including
// accounts materialized by invite acceptance.
type AccountCreated interface {
	OnAccountCreated(ctx context.Context, a *account.UserAccount) error
}

// AccountEnabledChanged is called after an account is enabled or disabled.
type AccountEnabledChanged interface {
	OnAccountEnabledChanged(ctx context.Context, accountID id.AccountID, enabled bool) error
}

// ──────────────────────────────────────────────────
// Token lifecycle hooks
// ──────────────────────────────────────────────────

// TokenIssued is called after an action token is persisted.
type TokenIssued interface {
	OnTokenIssued(ctx context.Context, act *token.Action) error
}

// TokenConsumed is called after an action token is consumed and its
// side effect committed.
type TokenConsumed interface {
	OnTokenConsumed(ctx context.Context, act *token.Action) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
