package authsome

import (
	"errors"
	"testing"

	"github.com/xraph/authsome/claim"
	"github.com/xraph/authsome/id"
)

func TestResolveNoClaims(t *testing.T) {
	res, err := Resolve(nil, claim.ActionRead, "invoice", TenantContext{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Allowed {
		t.Fatal("expected deny")
	}
	if res.Decision != DecisionDenyNoClaims {
		t.Fatalf("decision = %q, want %q", res.Decision, DecisionDenyNoClaims)
	}
}

func TestResolveNoMatch(t *testing.T) {
	claims := []claim.Claim{
		{Action: claim.ActionRead, Scope: claim.ScopeAny, Resource: "invoice"},
	}
	res, err := Resolve(claims, claim.ActionDelete, "invoice", TenantContext{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Allowed {
		t.Fatal("expected deny")
	}
	if res.Decision != DecisionDenyNoMatch {
		t.Fatalf("decision = %q, want %q", res.Decision, DecisionDenyNoMatch)
	}
}

func TestResolveWidestScopeWins(t *testing.T) {
	claims := []claim.Claim{
		{Action: claim.ActionRead, Scope: claim.ScopeOwn, Resource: "invoice"},
		{Action: claim.ActionRead, Scope: claim.ScopeOrganisation, Resource: "invoice"},
		{Action: claim.ActionRead, Scope: claim.ScopeEstablishment, Resource: "invoice"},
	}
	tenant := TenantContext{
		OrganisationID:  "org-1",
		EstablishmentID: "est-1",
		UserID:          id.NewUserID(),
	}
	res, err := Resolve(claims, claim.ActionRead, "invoice", tenant)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Allowed {
		t.Fatalf("expected allow, got %q", res.Decision)
	}
	if res.Scope.Scope != claim.ScopeOrganisation {
		t.Fatalf("scope = %q, want %q", res.Scope.Scope, claim.ScopeOrganisation)
	}
}

func TestResolveAdminActionImpliesAll(t *testing.T) {
	claims := []claim.Claim{
		{Action: claim.ActionAdmin, Scope: claim.ScopeAny, Resource: "invoice"},
	}
	for _, action := range []claim.Action{claim.ActionRead, claim.ActionUpdate, claim.ActionDelete} {
		res, err := Resolve(claims, action, "invoice", TenantContext{})
		if err != nil {
			t.Fatalf("Resolve(%s): %v", action, err)
		}
		if !res.Allowed {
			t.Fatalf("Resolve(%s): expected allow, got %q", action, res.Decision)
		}
	}
}

func TestResolveWildcardClaim(t *testing.T) {
	claims := []claim.Claim{claim.MustParse("admin:admin:*")}
	res, err := Resolve(claims, claim.ActionDelete, "anything", TenantContext{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Allowed {
		t.Fatalf("expected allow, got %q", res.Decision)
	}
	if res.Scope.Scope != claim.ScopeAdmin {
		t.Fatalf("scope = %q, want %q", res.Scope.Scope, claim.ScopeAdmin)
	}
}

func TestResolveMissingTenantContext(t *testing.T) {
	tests := []struct {
		name   string
		scope  claim.Scope
		tenant TenantContext
	}{
		{"organisation without org", claim.ScopeOrganisation, TenantContext{}},
		{"establishment without org", claim.ScopeEstablishment, TenantContext{EstablishmentID: "est-1"}},
		{"establishment without establishment", claim.ScopeEstablishment, TenantContext{OrganisationID: "org-1"}},
		{"own without user", claim.ScopeOwn, TenantContext{OrganisationID: "org-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := []claim.Claim{
				{Action: claim.ActionRead, Scope: tt.scope, Resource: "invoice"},
			}
			_, err := Resolve(claims, claim.ActionRead, "invoice", tt.tenant)
			if !errors.Is(err, ErrMissingTenantContext) {
				t.Fatalf("err = %v, want ErrMissingTenantContext", err)
			}
		})
	}
}

func TestRowFilterDerivation(t *testing.T) {
	userID := id.NewUserID()
	base := AuthScope{
		Action:          claim.ActionRead,
		Resource:        "invoice",
		OrganisationID:  "org-1",
		EstablishmentID: "est-1",
		UserID:          userID,
	}

	tests := []struct {
		scope claim.Scope
		want  RowFilter
	}{
		{claim.ScopeAdmin, RowFilter{}},
		{claim.ScopeAny, RowFilter{}},
		{claim.ScopeOrganisation, RowFilter{OrganisationID: "org-1"}},
		{claim.ScopeEstablishment, RowFilter{OrganisationID: "org-1", EstablishmentID: "est-1"}},
		{claim.ScopeOwn, RowFilter{OrganisationID: "org-1", EstablishmentID: "est-1", UserID: userID}},
	}
	for _, tt := range tests {
		t.Run(string(tt.scope), func(t *testing.T) {
			s := base
			s.Scope = tt.scope
			got := s.Filter()
			if got != tt.want {
				t.Fatalf("Filter() = %+v, want %+v", got, tt.want)
			}
		})
	}

	if !(RowFilter{}).Unrestricted() {
		t.Fatal("zero filter should be unrestricted")
	}
	if (RowFilter{OrganisationID: "org-1"}).Unrestricted() {
		t.Fatal("org-bounded filter should not be unrestricted")
	}
}
