package plugin

import (
	"context"
	"log/slog"

	"github.com/xraph/authsome/account"
	"github.com/xraph/authsome/id"
	"github.com/xraph/authsome/role"
	"github.com/xraph/authsome/token"
)

// Named entry types pair a hook with the plugin name for logging.

type beforeAuthorizeEntry struct {
	name string
	hook BeforeAuthorize
}
type afterAuthorizeEntry struct {
	name string
	hook AfterAuthorize
}
type roleCreatedEntry struct {
	name string
	hook RoleCreated
}
type roleUpdatedEntry struct {
	name string
	hook RoleUpdated
}
type roleDeletedEntry struct {
	name string
	hook RoleDeleted
}
type roleAssignedEntry struct {
	name string
	hook RoleAssigned
}
type roleUnassignedEntry struct {
	name string
	hook RoleUnassigned
}
type accountCreatedEntry struct {
	name string
	hook AccountCreated
}
type accountEnabledChangedEntry struct {
	name string
	hook AccountEnabledChanged
}
type tokenIssuedEntry struct {
	name string
	hook TokenIssued
}
type tokenConsumedEntry struct {
	name string
	hook TokenConsumed
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	beforeAuthorize       []beforeAuthorizeEntry
	afterAuthorize        []afterAuthorizeEntry
	roleCreated           []roleCreatedEntry
	roleUpdated           []roleUpdatedEntry
	roleDeleted           []roleDeletedEntry
	roleAssigned          []roleAssignedEntry
	roleUnassigned        []roleUnassignedEntry
	accountCreated        []accountCreatedEntry
	accountEnabledChanged []accountEnabledChangedEntry
	tokenIssued           []tokenIssuedEntry
	tokenConsumed         []tokenConsumedEntry
	shutdown              []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(BeforeAuthorize); ok {
		r.beforeAuthorize = append(r.beforeAuthorize, beforeAuthorizeEntry{name, h})
	}
	if h, ok := p.(AfterAuthorize); ok {
		r.afterAuthorize = append(r.afterAuthorize, afterAuthorizeEntry{name, h})
	}
	if h, ok := p.(RoleCreated); ok {
		r.roleCreated = append(r.roleCreated, roleCreatedEntry{name, h})
	}
	if h, ok := p.(RoleUpdated); ok {
		r.roleUpdated = append(r.roleUpdated, roleUpdatedEntry{name, h})
	}
	if h, ok := p.(RoleDeleted); ok {
		r.roleDeleted = append(r.roleDeleted, roleDeletedEntry{name, h})
	}
	if h, ok := p.(RoleAssigned); ok {
		r.roleAssigned = append(r.roleAssigned, roleAssignedEntry{name, h})
	}
	if h, ok := p.(RoleUnassigned); ok {
		r.roleUnassigned = append(r.roleUnassigned, roleUnassignedEntry{name, h})
	}
	if h, ok := p.(AccountCreated); ok {
		r.accountCreated = append(r.accountCreated, accountCreatedEntry{name, h})
	}
	if h, ok := p.(AccountEnabledChanged); ok {
		r.accountEnabledChanged = append(r.accountEnabledChanged, accountEnabledChangedEntry{name, h})
	}
	if h, ok := p.(TokenIssued); ok {
		r.tokenIssued = append(r.tokenIssued, tokenIssuedEntry{name, h})
	}
	if h, ok := p.(TokenConsumed); ok {
		r.tokenConsumed = append(r.tokenConsumed, tokenConsumedEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// ──────────────────────────────────────────────────
// Authorization event emitters
// ──────────────────────────────────────────────────

// EmitBeforeAuthorize notifies all plugins that implement BeforeAuthorize.
func (r *Registry) EmitBeforeAuthorize(ctx context.Context, req any) {
	for _, e := range r.beforeAuthorize {
		if err := e.hook.OnBeforeAuthorize(ctx, req); err != nil {
			r.logHookError("OnBeforeAuthorize", e.name, err)
		}
	}
}

// EmitAfterAuthorize notifies all plugins that implement AfterAuthorize.
func (r *Registry) EmitAfterAuthorize(ctx context.Context, req, res any) {
	for _, e := range r.afterAuthorize {
		if err := e.hook.OnAfterAuthorize(ctx, req, res); err != nil {
			r.logHookError("OnAfterAuthorize", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Role event emitters
// ──────────────────────────────────────────────────

// EmitRoleCreated notifies all plugins that implement RoleCreated.
func (r *Registry) EmitRoleCreated(ctx context.Context, rl *role.Role) {
	for _, e := range r.roleCreated {
		if err := e.hook.OnRoleCreated(ctx, rl); err != nil {
			r.logHookError("OnRoleCreated", e.name, err)
		}
	}
}

// EmitRoleUpdated notifies all plugins that implement RoleUpdated.
func (r *Registry) EmitRoleUpdated(ctx context.Context, rl *role.Role) {
	for _, e := range r.roleUpdated {
		if err := e.hook.OnRoleUpdated(ctx, rl); err != nil {
			r.logHookError("OnRoleUpdated", e.name, err)
		}
	}
}

// EmitRoleDeleted notifies all plugins that implement RoleDeleted.
func (r *Registry) EmitRoleDeleted(ctx context.Context, roleID id.RoleID) {
	for _, e := range r.roleDeleted {
		if err := e.hook.OnRoleDeleted(ctx, roleID); err != nil {
			r.logHookError("OnRoleDeleted", e.name, err)
		}
	}
}

// EmitRoleAssigned notifies all plugins that implement RoleAssigned.
func (r *Registry) EmitRoleAssigned(ctx context.Context, accountID id.AccountID, roleID id.RoleID) {
	for _, e := range r.roleAssigned {
		if err := e.hook.OnRoleAssigned(ctx, accountID, roleID); err != nil {
			r.logHookError("OnRoleAssigned", e.name, err)
		}
	}
}

// EmitRoleUnassigned notifies all plugins that implement RoleUnassigned.
func (r *Registry) EmitRoleUnassigned(ctx context.Context, accountID id.AccountID, roleID id.RoleID) {
	for _, e := range r.roleUnassigned {
		if err := e.hook.OnRoleUnassigned(ctx, accountID, roleID); err != nil {
			r.logHookError("OnRoleUnassigned", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Account event emitters
// ──────────────────────────────────────────────────

// EmitAccountCreated notifies all plugins that implement AccountCreated.
func (r *Registry) EmitAccountCreated(ctx context.Context, a *account.UserAccount) {
	for _, e := range r.accountCreated {
		if err := e.hook.OnAccountCreated(ctx, a); err != nil {
			r.logHookError("OnAccountCreated", e.name, err)
		}
	}
}

// EmitAccountEnabledChanged notifies all plugins that implement
// AccountEnabledChanged.
func (r *Registry) EmitAccountEnabledChanged(ctx context.Context, accountID id.AccountID, enabled bool) {
	for _, e := range r.accountEnabledChanged {
		if err := e.hook.OnAccountEnabledChanged(ctx, accountID, enabled); err != nil {
			r.logHookError("OnAccountEnabledChanged", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Token event emitters
// ──────────────────────────────────────────────────

// EmitTokenIssued notifies all plugins that implement TokenIssued.
func (r *Registry) EmitTokenIssued(ctx context.Context, act *token.Action) {
	for _, e := range r.tokenIssued {
		if err := e.hook.OnTokenIssued(ctx, act); err != nil {
			r.logHookError("OnTokenIssued", e.name, err)
		}
	}
}

// EmitTokenConsumed notifies all plugins that implement TokenConsumed.
func (r *Registry) EmitTokenConsumed(ctx context.Context, act *token.Action) {
	for _, e := range r.tokenConsumed {
		if err := e.hook.OnTokenConsumed(ctx, act); err != nil {
			r.logHookError("OnTokenConsumed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Shutdown emitter
// ──────────────────────────────────────────────────

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated; they must not block the pipeline.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
