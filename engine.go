package authsome

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/authsome/claim"
	"github.com/xraph/authsome/credential"
	"github.com/xraph/authsome/id"
	"github.com/xraph/authsome/plugin"
	"github.com/xraph/authsome/role"
	"github.com/xraph/authsome/store"
)

// Engine is the central identity and access-control engine. It resolves
// authorization checks against the claim model, issues and consumes
// action tokens, manages the store, and fires extension hooks.
type Engine struct {
	store    store.Store
	cache    Cache
	plugins  *plugin.Registry
	logger   *slog.Logger
	config   Config
	notifier Notifier
	hasher   credential.Hasher
	now      func() time.Time

	// pluginList collects WithPlugin registrations; the registry is built
	// after all options run so it sees the configured logger.
	pluginList []plugin.Plugin
}

// NewEngine creates a new engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("authsome: store is required")
	}
	if e.hasher == nil {
		e.hasher = credential.BcryptHasher{Cost: e.config.BcryptCost}
	}
	if len(e.pluginList) > 0 {
		e.plugins = plugin.NewRegistry(e.logger)
		for _, x := range e.pluginList {
			e.plugins.Register(x)
		}
	}
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start performs any startup initialization.
func (e *Engine) Start(_ context.Context) error { return nil }

// Stop performs graceful shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

// Authorize performs an authorization check. This is the hot path.
func (e *Engine) Authorize(ctx context.Context, req *AuthRequest) (*Resolution, error) {
	start := e.now()

	acct, err := e.store.GetAccount(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("authsome authorize: %w", err)
	}

	// 1. Cache hit?
	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, acct.OrganisationID, req); ok {
			cached.EvalTimeNs = time.Since(start).Nanoseconds()
			return cached, nil
		}
	}

	// 1b. Extension hook: before authorize.
	if e.plugins != nil {
		e.plugins.EmitBeforeAuthorize(ctx, req)
	}

	var res *Resolution
	if !acct.Enabled {
		res = &Resolution{
			Decision: DecisionDenyAccountDisabled,
			Reason:   "account is disabled",
		}
	} else {
		claims, err := e.claimsForAccount(ctx, acct.ID)
		if err != nil {
			return nil, fmt.Errorf("authsome authorize: %w", err)
		}
		tenant := TenantContext{
			OrganisationID:  acct.OrganisationID,
			EstablishmentID: acct.EstablishmentID,
			UserID:          acct.UserID,
		}
		res, err = Resolve(claims, req.Action, req.Resource, tenant)
		if err != nil {
			return nil, err
		}
	}
	res.EvalTimeNs = time.Since(start).Nanoseconds()

	// 2. Cache the resolution. Role and account mutations invalidate.
	if e.cache != nil {
		e.cache.Set(ctx, acct.OrganisationID, req, res)
	}

	// 3. Extension hook: after authorize.
	if e.plugins != nil {
		e.plugins.EmitAfterAuthorize(ctx, req, res)
	}

	return res, nil
}

// Enforce returns an error if the authorization check is denied.
func (e *Engine) Enforce(ctx context.Context, req *AuthRequest) (*AuthScope, error) {
	res, err := e.Authorize(ctx, req)
	if err != nil {
		return nil, err
	}
	if !res.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, res.Decision)
	}
	return res.Scope, nil
}

// Can is a shorthand for a simple authorization check.
func (e *Engine) Can(ctx context.Context, accountID id.AccountID, action claim.Action, resource string) (bool, error) {
	res, err := e.Authorize(ctx, &AuthRequest{
		AccountID: accountID,
		Action:    action,
		Resource:  resource,
	})
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

// claimsForAccount gathers the union of claims across the account's roles.
// A role that disappeared between listing and fetch is skipped.
func (e *Engine) claimsForAccount(ctx context.Context, accountID id.AccountID) ([]claim.Claim, error) {
	roleIDs, err := e.store.ListAccountRoles(ctx, accountID)
	if err != nil {
		return nil, err
	}
	var claims []claim.Claim
	for _, roleID := range roleIDs {
		r, err := e.store.GetRole(ctx, roleID)
		if errors.Is(err, role.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		claims = append(claims, r.Claims...)
	}
	return claims, nil
}

// InvalidateOrganisation drops all cached resolutions for an organisation.
// Call after role or claim mutations.
func (e *Engine) InvalidateOrganisation(ctx context.Context, organisationID string) {
	if e.cache != nil {
		e.cache.InvalidateOrganisation(ctx, organisationID)
	}
}

// InvalidateAccount drops all cached resolutions for one account. Call
// after role assignment or enablement changes.
func (e *Engine) InvalidateAccount(ctx context.Context, organisationID string, accountID id.AccountID) {
	if e.cache != nil {
		e.cache.InvalidateAccount(ctx, organisationID, accountID.String())
	}
}

// VerifyPassword checks a plaintext password against a user's stored
// credential. Returns credential.ErrMismatch on failure.
func (e *Engine) VerifyPassword(ctx context.Context, userID id.UserID, password string) error {
	cred, err := e.store.GetCredential(ctx, userID, credential.KindPassword)
	if err != nil {
		return err
	}
	return e.hasher.Verify(cred.Hash, password)
}

// SetPassword hashes and stores a user's password credential. Inside a
// consume effect the write goes through the transaction-scoped store.
func (e *Engine) SetPassword(ctx context.Context, userID id.UserID, password string) error {
	hash, err := e.hasher.Hash(password)
	if err != nil {
		return err
	}
	return store.EffectStore(ctx, e.store).ReplaceCredential(ctx, &credential.Credential{
		UserID:    userID,
		Kind:      credential.KindPassword,
		Hash:      hash,
		UpdatedAt: e.now(),
	})
}
