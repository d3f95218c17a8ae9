package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/authsome/account"
	"github.com/xraph/authsome/claim"
	"github.com/xraph/authsome/credential"
	"github.com/xraph/authsome/id"
	"github.com/xraph/authsome/role"
	"github.com/xraph/authsome/token"
)

func TestRoleCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := &role.Role{
		ID:             id.NewRoleID(),
		OrganisationID: "org_1",
		Name:           "manager",
		Claims: []claim.Claim{
			claim.MustNew(claim.ActionRead, claim.ScopeOrganisation, "invoice"),
		},
	}
	if err := s.CreateRole(ctx, r); err != nil {
		t.Fatalf("create role: %v", err)
	}

	got, err := s.GetRole(ctx, r.ID)
	if err != nil {
		t.Fatalf("get role: %v", err)
	}
	if got.Name != "manager" || len(got.Claims) != 1 {
		t.Fatalf("unexpected role: %+v", got)
	}

	byName, err := s.GetRoleByName(ctx, "org_1", "manager")
	if err != nil {
		t.Fatalf("get role by name: %v", err)
	}
	if byName.ID != r.ID {
		t.Fatalf("expected role %s, got %s", r.ID, byName.ID)
	}

	got.Description = "manages invoices"
	if err := s.UpdateRole(ctx, got); err != nil {
		t.Fatalf("update role: %v", err)
	}

	claims := []claim.Claim{
		claim.MustNew(claim.ActionRead, claim.ScopeOrganisation, "invoice"),
		claim.MustNew(claim.ActionUpdate, claim.ScopeEstablishment, "invoice"),
	}
	if err := s.SetRoleClaims(ctx, r.ID, claims); err != nil {
		t.Fatalf("set role claims: %v", err)
	}
	got, err = s.GetRole(ctx, r.ID)
	if err != nil {
		t.Fatalf("get role: %v", err)
	}
	if len(got.Claims) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(got.Claims))
	}

	if err := s.DeleteRole(ctx, r.ID); err != nil {
		t.Fatalf("delete role: %v", err)
	}
	if _, err := s.GetRole(ctx, r.ID); !errors.Is(err, role.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRolesFilters(t *testing.T) {
	ctx := context.Background()
	s := New()

	sys := true
	for _, r := range []*role.Role{
		{ID: id.NewRoleID(), OrganisationID: "org_1", Name: "admin", IsSystem: true},
		{ID: id.NewRoleID(), OrganisationID: "org_1", Name: "viewer"},
		{ID: id.NewRoleID(), OrganisationID: "org_2", Name: "viewer"},
	} {
		if err := s.CreateRole(ctx, r); err != nil {
			t.Fatalf("create role: %v", err)
		}
	}

	list, err := s.ListRoles(ctx, &role.ListFilter{OrganisationID: "org_1"})
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 roles in org_1, got %d", len(list))
	}

	list, err = s.ListRoles(ctx, &role.ListFilter{IsSystem: &sys})
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	if len(list) != 1 || list[0].Name != "admin" {
		t.Fatalf("expected only the system role, got %d", len(list))
	}

	count, err := s.CountRoles(ctx, &role.ListFilter{Search: "view"})
	if err != nil {
		t.Fatalf("count roles: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 matches for search, got %d", count)
	}
}

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := &account.User{ID: id.NewUserID(), Email: "Ada@Example.COM"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	// Email is stored normalized and lookups are case-insensitive.
	got, err := s.GetUserByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("get user by email: %v", err)
	}
	if got.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", got.Email)
	}

	dup := &account.User{ID: id.NewUserID(), Email: "ADA@example.com"}
	if err := s.CreateUser(ctx, dup); !errors.Is(err, account.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	if err := s.SetUserEmailValidated(ctx, u.ID, true); err != nil {
		t.Fatalf("set email validated: %v", err)
	}
	if err := s.SetUserAcceptedTerms(ctx, u.ID, true); err != nil {
		t.Fatalf("set accepted terms: %v", err)
	}
	got, err = s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !got.EmailValidated || !got.AcceptedTerms {
		t.Fatalf("expected flags set, got %+v", got)
	}

	if err := s.SetUserEmail(ctx, u.ID, "ada@new.example.com"); err != nil {
		t.Fatalf("set user email: %v", err)
	}
	if _, err := s.GetUserByEmail(ctx, "ada@new.example.com"); err != nil {
		t.Fatalf("get user by new email: %v", err)
	}
}

func TestAccountsAndAssignments(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := &account.User{ID: id.NewUserID(), Email: "bo@example.com"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	r := &role.Role{ID: id.NewRoleID(), OrganisationID: "org_1", Name: "viewer"}
	if err := s.CreateRole(ctx, r); err != nil {
		t.Fatalf("create role: %v", err)
	}

	a := &account.UserAccount{
		ID:              id.NewAccountID(),
		UserID:          u.ID,
		OrganisationID:  "org_1",
		EstablishmentID: "est_1",
		Enabled:         true,
	}
	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatalf("create account: %v", err)
	}

	// Assigning twice is a no-op.
	if err := s.AssignRole(ctx, a.ID, r.ID); err != nil {
		t.Fatalf("assign role: %v", err)
	}
	if err := s.AssignRole(ctx, a.ID, r.ID); err != nil {
		t.Fatalf("assign role again: %v", err)
	}
	roles, err := s.ListAccountRoles(ctx, a.ID)
	if err != nil {
		t.Fatalf("list account roles: %v", err)
	}
	if len(roles) != 1 {
		t.Fatalf("expected 1 role, got %d", len(roles))
	}

	// Deleting the role detaches it from the account.
	if err := s.DeleteRole(ctx, r.ID); err != nil {
		t.Fatalf("delete role: %v", err)
	}
	roles, err = s.ListAccountRoles(ctx, a.ID)
	if err != nil {
		t.Fatalf("list account roles: %v", err)
	}
	if len(roles) != 0 {
		t.Fatalf("expected 0 roles after delete, got %d", len(roles))
	}

	enabled := true
	list, err := s.ListAccounts(ctx, &account.ListFilter{OrganisationID: "org_1", Enabled: &enabled})
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 account, got %d", len(list))
	}

	if err := s.SetAccountEnabled(ctx, a.ID, false); err != nil {
		t.Fatalf("disable account: %v", err)
	}
	got, err := s.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.Enabled {
		t.Fatal("expected account disabled")
	}
}

func TestCredentials(t *testing.T) {
	ctx := context.Background()
	s := New()
	userID := id.NewUserID()

	if _, err := s.GetCredential(ctx, userID, credential.KindPassword); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.ReplaceCredential(ctx, &credential.Credential{
		UserID: userID,
		Kind:   credential.KindPassword,
		Hash:   "hash-1",
	}); err != nil {
		t.Fatalf("replace credential: %v", err)
	}
	if err := s.ReplaceCredential(ctx, &credential.Credential{
		UserID: userID,
		Kind:   credential.KindPassword,
		Hash:   "hash-2",
	}); err != nil {
		t.Fatalf("replace credential: %v", err)
	}

	got, err := s.GetCredential(ctx, userID, credential.KindPassword)
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if got.Hash != "hash-2" {
		t.Fatalf("expected latest hash, got %q", got.Hash)
	}

	if err := s.DeleteCredentials(ctx, userID); err != nil {
		t.Fatalf("delete credentials: %v", err)
	}
	if _, err := s.GetCredential(ctx, userID, credential.KindPassword); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestConsumeAction(t *testing.T) {
	ctx := context.Background()
	s := New()

	act := &token.Action{
		ID:    id.NewActionID(),
		Token: "secret-1",
		Type:  token.TypeValidateEmail,
		Email: "ada@example.com",
	}
	if err := s.SaveAction(ctx, act); err != nil {
		t.Fatalf("save action: %v", err)
	}

	var effectRan bool
	err := s.ConsumeAction(ctx, "secret-1", time.Now(), func(ctx context.Context) error {
		effectRan = true
		return nil
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !effectRan {
		t.Fatal("effect did not run")
	}

	got, err := s.FindActionByToken(ctx, "secret-1")
	if err != nil {
		t.Fatalf("find action: %v", err)
	}
	if got.ConsumedAt == nil {
		t.Fatal("expected consumed mark")
	}

	err = s.ConsumeAction(ctx, "secret-1", time.Now(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, token.ErrConsumed) {
		t.Fatalf("expected ErrConsumed, got %v", err)
	}

	err = s.ConsumeAction(ctx, "no-such-secret", time.Now(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, token.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConsumeActionEffectFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()

	act := &token.Action{
		ID:    id.NewActionID(),
		Token: "secret-2",
		Type:  token.TypeResetPassword,
		Email: "ada@example.com",
	}
	if err := s.SaveAction(ctx, act); err != nil {
		t.Fatalf("save action: %v", err)
	}

	boom := errors.New("boom")
	err := s.ConsumeAction(ctx, "secret-2", time.Now(), func(ctx context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected effect error, got %v", err)
	}

	got, err := s.FindActionByToken(ctx, "secret-2")
	if err != nil {
		t.Fatalf("find action: %v", err)
	}
	if got.ConsumedAt != nil {
		t.Fatal("expected token to stay usable after effect failure")
	}
}

func TestConsumeActionEffectFailureRestoresWrites(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := &account.User{ID: id.NewUserID(), Email: "ada@example.com"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	act := &token.Action{
		ID:    id.NewActionID(),
		Token: "secret-4",
		Type:  token.TypeValidateEmail,
		Email: "ada@example.com",
	}
	if err := s.SaveAction(ctx, act); err != nil {
		t.Fatalf("save action: %v", err)
	}

	boom := errors.New("boom")
	err := s.ConsumeAction(ctx, "secret-4", time.Now(), func(ctx context.Context) error {
		if err := s.SetUserEmailValidated(ctx, u.ID, true); err != nil {
			return err
		}
		if err := s.ReplaceCredential(ctx, &credential.Credential{
			UserID: u.ID,
			Kind:   credential.KindPassword,
			Hash:   "hash-1",
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected effect error, got %v", err)
	}

	// Every write the effect made rolls back with the consumed mark.
	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.EmailValidated {
		t.Fatal("expected flag write rolled back")
	}
	if _, err := s.GetCredential(ctx, u.ID, credential.KindPassword); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected credential write rolled back, got %v", err)
	}
	a, err := s.FindActionByToken(ctx, "secret-4")
	if err != nil {
		t.Fatalf("find action: %v", err)
	}
	if a.ConsumedAt != nil {
		t.Fatal("expected token to stay usable")
	}
}

func TestConsumeActionConcurrent(t *testing.T) {
	ctx := context.Background()
	s := New()

	act := &token.Action{
		ID:    id.NewActionID(),
		Token: "secret-3",
		Type:  token.TypeInvite,
		Email: "ada@example.com",
	}
	if err := s.SaveAction(ctx, act); err != nil {
		t.Fatalf("save action: %v", err)
	}

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	var successes, effects int

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.ConsumeAction(ctx, "secret-3", time.Now(), func(ctx context.Context) error {
				mu.Lock()
				effects++
				mu.Unlock()
				return nil
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, token.ErrConsumed) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful consume, got %d", successes)
	}
	if effects != 1 {
		t.Fatalf("expected the effect to run exactly once, got %d", effects)
	}
}

func TestPurgeExpiredActions(t *testing.T) {
	ctx := context.Background()
	s := New()

	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	for _, a := range []*token.Action{
		{ID: id.NewActionID(), Token: "expired", Type: token.TypeInvite, ExpiresAt: &past},
		{ID: id.NewActionID(), Token: "live", Type: token.TypeInvite, ExpiresAt: &future},
		{ID: id.NewActionID(), Token: "eternal", Type: token.TypeValidateEmail},
	} {
		if err := s.SaveAction(ctx, a); err != nil {
			t.Fatalf("save action: %v", err)
		}
	}

	purged, err := s.PurgeExpiredActions(ctx, now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged token, got %d", purged)
	}
	if _, err := s.FindActionByToken(ctx, "expired"); !errors.Is(err, token.ErrNotFound) {
		t.Fatalf("expected expired token gone, got %v", err)
	}
	if _, err := s.FindActionByToken(ctx, "live"); err != nil {
		t.Fatalf("expected live token kept: %v", err)
	}
	if _, err := s.FindActionByToken(ctx, "eternal"); err != nil {
		t.Fatalf("expected eternal token kept: %v", err)
	}
}
