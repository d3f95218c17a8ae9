// Package authsome provides a multi-tenant identity and access-control
// core for Go.
//
// Access is modelled as claims: (action, scope, resource) triples attached
// to roles, which are attached to user accounts. A claim's scope bounds how
// far the grant reaches (own, establishment, organisation, any, or admin),
// and resolution derives a row filter from the winning scope so data access
// stays inside the tenant boundary. Alongside the gate, the engine issues
// and consumes single-use action tokens for account workflows: invitations,
// email validation, terms and privacy acceptance, and password or email
// changes.
//
//	eng, err := authsome.NewEngine(
//	    authsome.WithStore(memStore),
//	)
//	res, err := eng.Authorize(ctx, &authsome.AuthRequest{
//	    AccountID: acctID,
//	    Action:    claim.ActionRead,
//	    Resource:  "invoice",
//	})
package authsome

import (
	"context"

	"github.com/xraph/authsome/claim"
	"github.com/xraph/authsome/id"
	"github.com/xraph/authsome/token"
)

// AuthRequest is the input to an authorization check. The account binds
// the actor to one organisation/establishment, so tenant placement comes
// from the account record, not the request.
type AuthRequest struct {
	AccountID id.AccountID `json:"account_id"`
	Action    claim.Action `json:"action"`
	Resource  string       `json:"resource"`
}

// Resolution is the outcome of an authorization check. Scope is set only
// when the check is allowed.
type Resolution struct {
	Allowed    bool       `json:"allowed"`
	Decision   Decision   `json:"decision"`
	Reason     string     `json:"reason,omitempty"`
	Scope      *AuthScope `json:"scope,omitempty"`
	EvalTimeNs int64      `json:"eval_time_ns"`
}

// Decision is the authorization outcome.
type Decision string

const (
	// DecisionAllow means the request is permitted.
	DecisionAllow Decision = "allow"

	// DecisionDenyNoClaims means the account's roles carry no claims.
	DecisionDenyNoClaims Decision = "deny_no_claims"

	// DecisionDenyNoMatch means no claim matched the action and resource.
	DecisionDenyNoMatch Decision = "deny_no_match"

	// DecisionDenyAccountDisabled means the account is disabled.
	DecisionDenyAccountDisabled Decision = "deny_account_disabled"
)

// AuthScope is the effective grant of an allowed check: the winning claim
// plus the tenant placement it resolved under.
type AuthScope struct {
	Action          claim.Action `json:"action"`
	Scope           claim.Scope  `json:"scope"`
	Resource        string       `json:"resource"`
	OrganisationID  string       `json:"organisation_id,omitempty"`
	EstablishmentID string       `json:"establishment_id,omitempty"`
	UserID          id.UserID    `json:"user_id,omitempty"`
}

// RowFilter is the data-access constraint derived from an AuthScope. Zero
// fields mean no constraint on that axis; a completely zero filter means
// unrestricted access (admin and any scopes).
type RowFilter struct {
	OrganisationID  string    `json:"organisation_id,omitempty"`
	EstablishmentID string    `json:"establishment_id,omitempty"`
	UserID          id.UserID `json:"user_id,omitempty"`
}

// Unrestricted reports whether the filter constrains nothing.
func (f RowFilter) Unrestricted() bool {
	return f.OrganisationID == "" && f.EstablishmentID == "" && f.UserID.IsNil()
}

// Filter derives the row filter the caller must apply to data queries.
// Wider scopes constrain less: admin and any see everything, organisation
// pins the organisation, establishment pins both tenant axes, and own pins
// the acting user.
func (s *AuthScope) Filter() RowFilter {
	switch s.Scope {
	case claim.ScopeAdmin, claim.ScopeAny:
		return RowFilter{}
	case claim.ScopeOrganisation:
		return RowFilter{OrganisationID: s.OrganisationID}
	case claim.ScopeEstablishment:
		return RowFilter{
			OrganisationID:  s.OrganisationID,
			EstablishmentID: s.EstablishmentID,
		}
	default:
		return RowFilter{
			OrganisationID:  s.OrganisationID,
			EstablishmentID: s.EstablishmentID,
			UserID:          s.UserID,
		}
	}
}

// Notifier delivers an issued action token to its recipient, typically by
// email. Delivery failures never block issuance; the engine logs them.
type Notifier interface {
	Send(ctx context.Context, email string, typ token.Type, tokenSecret string) error
}
