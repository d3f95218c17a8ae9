package authsome

import (
	"context"

	"github.com/xraph/authsome/id"
	"github.com/xraph/forge"
)

type contextKey int

const (
	ctxKeyOrganisationID contextKey = iota
	ctxKeyEstablishmentID
	ctxKeyActorID
)

// TenantContext is the tenant placement an authorization resolves under.
type TenantContext struct {
	OrganisationID  string    `json:"organisation_id,omitempty"`
	EstablishmentID string    `json:"establishment_id,omitempty"`
	UserID          id.UserID `json:"user_id,omitempty"`
}

// WithTenant returns a context carrying the organisation and establishment
// IDs. Use this for standalone mode (without Forge).
func WithTenant(ctx context.Context, organisationID, establishmentID string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyOrganisationID, organisationID)
	ctx = context.WithValue(ctx, ctxKeyEstablishmentID, establishmentID)
	return ctx
}

// WithActor returns a context carrying the acting user's ID.
func WithActor(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, ctxKeyActorID, userID)
}

// ActorFromContext returns the acting user's ID, if set.
func ActorFromContext(ctx context.Context) (id.UserID, bool) {
	v, ok := ctx.Value(ctxKeyActorID).(id.UserID)
	return v, ok
}

// TenantFromContext extracts tenant placement from forge.Scope or, in
// standalone mode, from values set by WithTenant/WithActor.
func TenantFromContext(ctx context.Context) TenantContext {
	actor, _ := ActorFromContext(ctx)
	if s, ok := forge.ScopeFrom(ctx); ok {
		return TenantContext{
			OrganisationID:  s.OrgID(),
			EstablishmentID: establishmentIDFromContext(ctx),
			UserID:          actor,
		}
	}
	return TenantContext{
		OrganisationID:  organisationIDFromContext(ctx),
		EstablishmentID: establishmentIDFromContext(ctx),
		UserID:          actor,
	}
}

func organisationIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxKeyOrganisationID).(string)
	if !ok {
		return ""
	}
	return v
}

func establishmentIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxKeyEstablishmentID).(string)
	if !ok {
		return ""
	}
	return v
}
