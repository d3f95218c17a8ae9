package authsome

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/authsome/account"
	"github.com/xraph/authsome/claim"
	"github.com/xraph/authsome/credential"
	"github.com/xraph/authsome/id"
	"github.com/xraph/authsome/role"
	"github.com/xraph/authsome/store/memory"
)

// fixture is a seeded engine with one user, one enabled account, and one
// role granting read on "invoice" at organisation scope.
type fixture struct {
	eng     *Engine
	store   *memory.Store
	user    *account.User
	account *account.UserAccount
	role    *role.Role
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	cfg := DefaultConfig()
	cfg.BcryptCost = 4 // keep hashing fast in tests
	opts = append([]Option{WithStore(s), WithConfig(cfg)}, opts...)

	eng, err := NewEngine(opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	now := time.Now()
	u := &account.User{
		ID:        id.NewUserID(),
		Email:     "alice@example.com",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	acct := &account.UserAccount{
		ID:              id.NewAccountID(),
		UserID:          u.ID,
		OrganisationID:  "org-1",
		EstablishmentID: "est-1",
		Enabled:         true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.CreateAccount(ctx, acct); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	r := &role.Role{
		ID:             id.NewRoleID(),
		OrganisationID: "org-1",
		Name:           "reader",
		Claims: []claim.Claim{
			{Action: claim.ActionRead, Scope: claim.ScopeOrganisation, Resource: "invoice"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateRole(ctx, r); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if err := s.AssignRole(ctx, acct.ID, r.ID); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	return &fixture{eng: eng, store: s, user: u, account: acct, role: r}
}

func TestAuthorizeAllow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.eng.Authorize(ctx, &AuthRequest{
		AccountID: f.account.ID,
		Action:    claim.ActionRead,
		Resource:  "invoice",
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !res.Allowed {
		t.Fatalf("expected allow, got %q (%s)", res.Decision, res.Reason)
	}
	if res.Scope == nil {
		t.Fatal("expected scope on allowed resolution")
	}
	if res.Scope.OrganisationID != "org-1" {
		t.Fatalf("scope org = %q, want org-1", res.Scope.OrganisationID)
	}
	filter := res.Scope.Filter()
	if filter.OrganisationID != "org-1" || filter.EstablishmentID != "" {
		t.Fatalf("unexpected row filter %+v", filter)
	}
}

func TestAuthorizeDenyNoMatch(t *testing.T) {
	f := newFixture(t)

	res, err := f.eng.Authorize(context.Background(), &AuthRequest{
		AccountID: f.account.ID,
		Action:    claim.ActionDelete,
		Resource:  "invoice",
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if res.Allowed || res.Decision != DecisionDenyNoMatch {
		t.Fatalf("decision = %q, want %q", res.Decision, DecisionDenyNoMatch)
	}
}

func TestAuthorizeDisabledAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.store.SetAccountEnabled(ctx, f.account.ID, false); err != nil {
		t.Fatalf("SetAccountEnabled: %v", err)
	}

	res, err := f.eng.Authorize(ctx, &AuthRequest{
		AccountID: f.account.ID,
		Action:    claim.ActionRead,
		Resource:  "invoice",
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if res.Allowed || res.Decision != DecisionDenyAccountDisabled {
		t.Fatalf("decision = %q, want %q", res.Decision, DecisionDenyAccountDisabled)
	}
}

func TestAuthorizeUnknownAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.Authorize(context.Background(), &AuthRequest{
		AccountID: id.NewAccountID(),
		Action:    claim.ActionRead,
		Resource:  "invoice",
	})
	if !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("err = %v, want account.ErrNotFound", err)
	}
}

func TestAuthorizeClaimsUnionAcrossRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	writer := &role.Role{
		ID:             id.NewRoleID(),
		OrganisationID: "org-1",
		Name:           "writer",
		Claims: []claim.Claim{
			{Action: claim.ActionUpdate, Scope: claim.ScopeEstablishment, Resource: "invoice"},
		},
	}
	if err := f.store.CreateRole(ctx, writer); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if err := f.store.AssignRole(ctx, f.account.ID, writer.ID); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	res, err := f.eng.Authorize(ctx, &AuthRequest{
		AccountID: f.account.ID,
		Action:    claim.ActionUpdate,
		Resource:  "invoice",
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !res.Allowed {
		t.Fatalf("expected allow from second role, got %q", res.Decision)
	}
	if res.Scope.Scope != claim.ScopeEstablishment {
		t.Fatalf("scope = %q, want %q", res.Scope.Scope, claim.ScopeEstablishment)
	}
}

func TestAuthorizeAfterRoleDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	temp := &role.Role{
		ID:             id.NewRoleID(),
		OrganisationID: "org-1",
		Name:           "temp",
		Claims: []claim.Claim{
			{Action: claim.ActionDelete, Scope: claim.ScopeOrganisation, Resource: "invoice"},
		},
	}
	if err := f.store.CreateRole(ctx, temp); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if err := f.store.AssignRole(ctx, f.account.ID, temp.ID); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if err := f.store.DeleteRole(ctx, temp.ID); err != nil {
		t.Fatalf("DeleteRole: %v", err)
	}

	// The deleted role's grant is gone, the remaining role still works.
	res, err := f.eng.Authorize(ctx, &AuthRequest{
		AccountID: f.account.ID,
		Action:    claim.ActionDelete,
		Resource:  "invoice",
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if res.Allowed {
		t.Fatal("deleted role should no longer grant access")
	}

	res, err = f.eng.Authorize(ctx, &AuthRequest{
		AccountID: f.account.ID,
		Action:    claim.ActionRead,
		Resource:  "invoice",
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !res.Allowed {
		t.Fatalf("expected allow, got %q", res.Decision)
	}
}

func TestEnforce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	scope, err := f.eng.Enforce(ctx, &AuthRequest{
		AccountID: f.account.ID,
		Action:    claim.ActionRead,
		Resource:  "invoice",
	})
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if scope == nil || scope.Scope != claim.ScopeOrganisation {
		t.Fatalf("unexpected scope %+v", scope)
	}

	_, err = f.eng.Enforce(ctx, &AuthRequest{
		AccountID: f.account.ID,
		Action:    claim.ActionDelete,
		Resource:  "invoice",
	})
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}
}

func TestCan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.eng.Can(ctx, f.account.ID, claim.ActionRead, "invoice")
	if err != nil {
		t.Fatalf("Can: %v", err)
	}
	if !ok {
		t.Fatal("expected read to be allowed")
	}

	ok, err = f.eng.Can(ctx, f.account.ID, claim.ActionDelete, "invoice")
	if err != nil {
		t.Fatalf("Can: %v", err)
	}
	if ok {
		t.Fatal("expected delete to be denied")
	}
}

// recordingCache observes engine cache traffic.
type recordingCache struct {
	entries map[string]*Resolution
	hits    int
	sets    int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[string]*Resolution)}
}

func (c *recordingCache) key(organisationID string, req *AuthRequest) string {
	return organisationID + "|" + req.AccountID.String() + "|" + string(req.Action) + "|" + req.Resource
}

func (c *recordingCache) Get(_ context.Context, organisationID string, req *AuthRequest) (*Resolution, bool) {
	res, ok := c.entries[c.key(organisationID, req)]
	if ok {
		c.hits++
	}
	return res, ok
}

func (c *recordingCache) Set(_ context.Context, organisationID string, req *AuthRequest, res *Resolution) {
	c.sets++
	c.entries[c.key(organisationID, req)] = res
}

func (c *recordingCache) InvalidateOrganisation(_ context.Context, organisationID string) {
	for k := range c.entries {
		delete(c.entries, k)
	}
}

func (c *recordingCache) InvalidateAccount(_ context.Context, _, _ string) {
	for k := range c.entries {
		delete(c.entries, k)
	}
}

func TestAuthorizeCaching(t *testing.T) {
	cache := newRecordingCache()
	f := newFixture(t, WithCache(cache))
	ctx := context.Background()

	req := &AuthRequest{AccountID: f.account.ID, Action: claim.ActionRead, Resource: "invoice"}

	if _, err := f.eng.Authorize(ctx, req); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if cache.sets != 1 || cache.hits != 0 {
		t.Fatalf("after first check: sets=%d hits=%d", cache.sets, cache.hits)
	}

	if _, err := f.eng.Authorize(ctx, req); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if cache.hits != 1 {
		t.Fatalf("expected cache hit, got hits=%d", cache.hits)
	}

	// Invalidation forces a re-resolve.
	f.eng.InvalidateOrganisation(ctx, "org-1")
	if _, err := f.eng.Authorize(ctx, req); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if cache.sets != 2 {
		t.Fatalf("expected re-resolve after invalidation, sets=%d", cache.sets)
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.eng.SetPassword(ctx, f.user.ID, "s3cret"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if err := f.eng.VerifyPassword(ctx, f.user.ID, "s3cret"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := f.eng.VerifyPassword(ctx, f.user.ID, "wrong"); !errors.Is(err, credential.ErrMismatch) {
		t.Fatalf("err = %v, want credential.ErrMismatch", err)
	}
}

// recordingHandler captures log records for assertions.
type recordingHandler struct {
	mu       sync.Mutex
	messages []string
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, r.Message)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

type failingHookPlugin struct{}

func (failingHookPlugin) Name() string { return "failing-hook" }

func (failingHookPlugin) OnBeforeAuthorize(context.Context, any) error {
	return errors.New("hook boom")
}

func TestWithPluginUsesConfiguredLogger(t *testing.T) {
	h := &recordingHandler{}

	// The logger option lands after the plugin one; hook errors must
	// still reach the configured logger.
	f := newFixture(t,
		WithPlugin(failingHookPlugin{}),
		WithLogger(slog.New(h)),
	)

	if _, err := f.eng.Authorize(context.Background(), &AuthRequest{
		AccountID: f.account.ID,
		Action:    claim.ActionRead,
		Resource:  "invoice",
	}); err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, msg := range h.messages {
		if msg == "plugin hook error" {
			return
		}
	}
	t.Fatalf("hook error never reached the configured logger, got %v", h.messages)
}

func TestNewEngineRequiresStore(t *testing.T) {
	if _, err := NewEngine(); err == nil {
		t.Fatal("expected error without store")
	}
}
