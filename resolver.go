package authsome

import (
	"github.com/xraph/authsome/claim"
)

// Resolve decides whether a set of claims permits an action on a resource
// and, when it does, derives the effective AuthScope. It is pure: no
// store access, no clock, no side effects.
//
// Among matching claims the widest scope wins, so granting a wider claim
// can only ever make the outcome more permissive. Tenant-bounded scopes
// fail with ErrMissingTenantContext when the placement they bound by is
// absent; a grant that cannot be bounded is never silently widened.
func Resolve(claims []claim.Claim, action claim.Action, resource string, tenant TenantContext) (*Resolution, error) {
	if len(claims) == 0 {
		return &Resolution{
			Decision: DecisionDenyNoClaims,
			Reason:   "no claims attached to account",
		}, nil
	}

	winner := -1
	for i, c := range claims {
		if !c.Matches(action, resource) {
			continue
		}
		if winner < 0 || c.Scope.Rank() > claims[winner].Scope.Rank() {
			winner = i
		}
	}
	if winner < 0 {
		return &Resolution{
			Decision: DecisionDenyNoMatch,
			Reason:   "no claim matches action and resource",
		}, nil
	}

	scope := claims[winner].Scope
	switch scope {
	case claim.ScopeOrganisation:
		if tenant.OrganisationID == "" {
			return nil, ErrMissingTenantContext
		}
	case claim.ScopeEstablishment:
		if tenant.OrganisationID == "" || tenant.EstablishmentID == "" {
			return nil, ErrMissingTenantContext
		}
	case claim.ScopeOwn:
		if tenant.UserID.IsNil() {
			return nil, ErrMissingTenantContext
		}
	}

	return &Resolution{
		Allowed:  true,
		Decision: DecisionAllow,
		Scope: &AuthScope{
			Action:          action,
			Scope:           scope,
			Resource:        resource,
			OrganisationID:  tenant.OrganisationID,
			EstablishmentID: tenant.EstablishmentID,
			UserID:          tenant.UserID,
		},
	}, nil
}
