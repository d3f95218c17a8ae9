package api

import (
	"github.com/xraph/authsome"
)

// AuthorizeResponse is the response for an authorization check.
type AuthorizeResponse struct {
	Allowed    bool                `json:"allowed" description:"Whether the request is allowed"`
	Decision   string              `json:"decision" description:"Decision code"`
	Reason     string              `json:"reason,omitempty" description:"Human-readable reason"`
	Scope      *authsome.AuthScope `json:"scope,omitempty" description:"Effective grant when allowed"`
	RowFilter  *authsome.RowFilter `json:"row_filter,omitempty" description:"Row filter derived from the winning scope"`
	EvalTimeNs int64               `json:"eval_time_ns" description:"Evaluation time in nanoseconds"`
}

// BatchAuthorizeResponse contains results for multiple checks.
type BatchAuthorizeResponse struct {
	Results []AuthorizeResponse `json:"results" description:"Check results in order"`
}

// IssueTokenResponse returns the issued token.
type IssueTokenResponse struct {
	ID        string `json:"id" description:"Action token ID"`
	Token     string `json:"token" description:"Opaque token secret"`
	Type      string `json:"type" description:"Token type"`
	Email     string `json:"email" description:"Bound email"`
	ExpiresAt string `json:"expires_at,omitempty" description:"Expiry deadline (RFC3339), absent for non-expiring tokens"`
}

// AccountRolesResponse lists the role IDs attached to an account.
type AccountRolesResponse struct {
	RoleIDs []string `json:"role_ids" description:"Attached role IDs"`
}

// ListResponse wraps a list of items with pagination metadata.
type ListResponse[T any] struct {
	Items  []T   `json:"items" description:"List of items"`
	Total  int64 `json:"total" description:"Total count"`
	Limit  int   `json:"limit" description:"Page size"`
	Offset int   `json:"offset" description:"Page offset"`
}

func toAuthorizeResponse(res *authsome.Resolution) *AuthorizeResponse {
	resp := &AuthorizeResponse{
		Allowed:    res.Allowed,
		Decision:   string(res.Decision),
		Reason:     res.Reason,
		Scope:      res.Scope,
		EvalTimeNs: res.EvalTimeNs,
	}
	if res.Scope != nil {
		f := res.Scope.Filter()
		resp.RowFilter = &f
	}
	return resp
}
