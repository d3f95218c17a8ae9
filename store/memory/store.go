// Package memory provides an in-memory implementation of the composite
// store. It is intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xraph/authsome/account"
	"github.com/xraph/authsome/claim"
	"github.com/xraph/authsome/credential"
	"github.com/xraph/authsome/id"
	"github.com/xraph/authsome/role"
	"github.com/xraph/authsome/token"
)

// Compile-time interface checks.
var (
	_ role.Store       = (*Store)(nil)
	_ account.Store    = (*Store)(nil)
	_ credential.Store = (*Store)(nil)
	_ token.Store      = (*Store)(nil)
)

// Store is a thread-safe in-memory store for all engine entities.
type Store struct {
	mu sync.RWMutex

	roles        map[string]*role.Role
	users        map[string]*account.User
	accounts     map[string]*account.UserAccount
	accountRoles map[string]map[string]struct{} // accountID -> set of roleIDs
	credentials  map[string]*credential.Credential
	actions      map[string]*token.Action // keyed by opaque secret
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		roles:        make(map[string]*role.Role),
		users:        make(map[string]*account.User),
		accounts:     make(map[string]*account.UserAccount),
		accountRoles: make(map[string]map[string]struct{}),
		credentials:  make(map[string]*credential.Credential),
		actions:      make(map[string]*token.Action),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Role Store
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[r.ID.String()] = copyRole(r)
	return nil
}

func (s *Store) GetRole(_ context.Context, roleID id.RoleID) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleID.String()]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", roleID, role.ErrNotFound)
	}
	return copyRole(r), nil
}

func (s *Store) GetRoleByName(_ context.Context, organisationID, name string) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if r.OrganisationID == organisationID && r.Name == name {
			return copyRole(r), nil
		}
	}
	return nil, fmt.Errorf("role %q: %w", name, role.ErrNotFound)
}

func (s *Store) UpdateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[r.ID.String()]; !ok {
		return fmt.Errorf("role %s: %w", r.ID, role.ErrNotFound)
	}
	s.roles[r.ID.String()] = copyRole(r)
	return nil
}

func (s *Store) DeleteRole(_ context.Context, roleID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, roleID.String())
	for _, set := range s.accountRoles {
		delete(set, roleID.String())
	}
	return nil
}

func (s *Store) ListRoles(_ context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*role.Role, 0, len(s.roles))
	for _, r := range s.roles {
		if filter != nil {
			if filter.OrganisationID != "" && r.OrganisationID != filter.OrganisationID {
				continue
			}
			if filter.IsSystem != nil && r.IsSystem != *filter.IsSystem {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(filter.Search)) {
				continue
			}
		}
		result = append(result, copyRole(r))
	}
	return applyPagination(result, paginationOpts(filter)), nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	list, err := s.ListRoles(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) SetRoleClaims(_ context.Context, roleID id.RoleID, claims []claim.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[roleID.String()]
	if !ok {
		return fmt.Errorf("role %s: %w", roleID, role.ErrNotFound)
	}
	r.Claims = make([]claim.Claim, len(claims))
	copy(r.Claims, claims)
	r.UpdatedAt = time.Now()
	return nil
}

// ──────────────────────────────────────────────────
// Account Store
// ──────────────────────────────────────────────────

func (s *Store) CreateUser(_ context.Context, u *account.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := account.NormalizeEmail(u.Email)
	for _, existing := range s.users {
		if existing.Email == email {
			return fmt.Errorf("user %s: %w", email, account.ErrDuplicateEmail)
		}
	}
	c := copyUser(u)
	c.Email = email
	s.users[u.ID.String()] = c
	return nil
}

func (s *Store) GetUser(_ context.Context, userID id.UserID) (*account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID.String()]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, account.ErrNotFound)
	}
	return copyUser(u), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = account.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, account.ErrNotFound)
}

func (s *Store) SetUserEmail(_ context.Context, userID id.UserID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = account.NormalizeEmail(email)
	for _, existing := range s.users {
		if existing.Email == email && existing.ID != userID {
			return fmt.Errorf("user %s: %w", email, account.ErrDuplicateEmail)
		}
	}
	u, ok := s.users[userID.String()]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, account.ErrNotFound)
	}
	u.Email = email
	u.UpdatedAt = time.Now()
	return nil
}

func (s *Store) SetUserEmailValidated(_ context.Context, userID id.UserID, validated bool) error {
	return s.setUserFlag(userID, func(u *account.User) { u.EmailValidated = validated })
}

func (s *Store) SetUserAcceptedTerms(_ context.Context, userID id.UserID, accepted bool) error {
	return s.setUserFlag(userID, func(u *account.User) { u.AcceptedTerms = accepted })
}

func (s *Store) SetUserAcceptedPrivacyPolicy(_ context.Context, userID id.UserID, accepted bool) error {
	return s.setUserFlag(userID, func(u *account.User) { u.AcceptedPrivacyPolicy = accepted })
}

func (s *Store) setUserFlag(userID id.UserID, apply func(*account.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID.String()]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, account.ErrNotFound)
	}
	apply(u)
	u.UpdatedAt = time.Now()
	return nil
}

func (s *Store) DeleteUser(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID.String())
	for k, a := range s.accounts {
		if a.UserID == userID {
			delete(s.accounts, k)
			delete(s.accountRoles, k)
		}
	}
	for k, c := range s.credentials {
		if c.UserID == userID {
			delete(s.credentials, k)
		}
	}
	return nil
}

func (s *Store) CreateAccount(_ context.Context, a *account.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID.String()] = copyAccount(a)
	return nil
}

func (s *Store) GetAccount(_ context.Context, accountID id.AccountID) (*account.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID.String()]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, account.ErrNotFound)
	}
	return copyAccount(a), nil
}

func (s *Store) ListAccounts(_ context.Context, filter *account.ListFilter) ([]*account.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*account.UserAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		if filter != nil {
			if filter.UserID != nil && a.UserID != *filter.UserID {
				continue
			}
			if filter.OrganisationID != "" && a.OrganisationID != filter.OrganisationID {
				continue
			}
			if filter.EstablishmentID != "" && a.EstablishmentID != filter.EstablishmentID {
				continue
			}
			if filter.Enabled != nil && a.Enabled != *filter.Enabled {
				continue
			}
		}
		result = append(result, copyAccount(a))
	}
	return applyPagination(result, paginationOptsAcct(filter)), nil
}

func (s *Store) CountAccounts(ctx context.Context, filter *account.ListFilter) (int64, error) {
	list, err := s.ListAccounts(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) SetAccountEnabled(_ context.Context, accountID id.AccountID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID.String()]
	if !ok {
		return fmt.Errorf("account %s: %w", accountID, account.ErrNotFound)
	}
	a.Enabled = enabled
	a.UpdatedAt = time.Now()
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, accountID id.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, accountID.String())
	delete(s.accountRoles, accountID.String())
	return nil
}

func (s *Store) AssignRole(_ context.Context, accountID id.AccountID, roleID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID.String()]; !ok {
		return fmt.Errorf("account %s: %w", accountID, account.ErrNotFound)
	}
	if _, ok := s.roles[roleID.String()]; !ok {
		return fmt.Errorf("role %s: %w", roleID, role.ErrNotFound)
	}
	set, ok := s.accountRoles[accountID.String()]
	if !ok {
		set = make(map[string]struct{})
		s.accountRoles[accountID.String()] = set
	}
	set[roleID.String()] = struct{}{}
	return nil
}

func (s *Store) UnassignRole(_ context.Context, accountID id.AccountID, roleID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.accountRoles[accountID.String()]; ok {
		delete(set, roleID.String())
	}
	return nil
}

func (s *Store) ListAccountRoles(_ context.Context, accountID id.AccountID) ([]id.RoleID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.accountRoles[accountID.String()]
	if !ok {
		return nil, nil
	}
	result := make([]id.RoleID, 0, len(set))
	for rid := range set {
		parsed, err := id.ParseRoleID(rid)
		if err != nil {
			continue
		}
		result = append(result, parsed)
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Credential Store
// ──────────────────────────────────────────────────

func credentialKey(userID id.UserID, kind credential.Kind) string {
	return userID.String() + "/" + string(kind)
}

func (s *Store) GetCredential(_ context.Context, userID id.UserID, kind credential.Kind) (*credential.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[credentialKey(userID, kind)]
	if !ok {
		return nil, fmt.Errorf("credential %s/%s: %w", userID, kind, credential.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *Store) ReplaceCredential(_ context.Context, c *credential.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.credentials[credentialKey(c.UserID, c.Kind)] = &cp
	return nil
}

func (s *Store) DeleteCredentials(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, c := range s.credentials {
		if c.UserID == userID {
			delete(s.credentials, k)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Token Store
// ──────────────────────────────────────────────────

func (s *Store) SaveAction(_ context.Context, a *token.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[a.Token] = copyAction(a)
	return nil
}

func (s *Store) FindActionByToken(_ context.Context, secret string) (*token.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actions[secret]
	if !ok {
		return nil, token.ErrNotFound
	}
	return copyAction(a), nil
}

// ConsumeAction snapshots the entity maps and marks the token consumed
// under the lock, runs effect without it (the effect calls back into the
// store), and restores the snapshot if the effect fails, so writes the
// effect made are rolled back along with the mark. The in-lock mark is
// the compare-and-swap that makes concurrent consumption exactly-once.
// The restore also discards unrelated writes that landed while the
// effect ran; consumes must not race other writers in this backend.
func (s *Store) ConsumeAction(ctx context.Context, secret string, at time.Time, effect func(ctx context.Context) error) error {
	s.mu.Lock()
	a, ok := s.actions[secret]
	if !ok {
		s.mu.Unlock()
		return token.ErrNotFound
	}
	if a.ConsumedAt != nil {
		s.mu.Unlock()
		return token.ErrConsumed
	}
	snap := s.snapshot()
	consumed := at
	a.ConsumedAt = &consumed
	s.mu.Unlock()

	if err := effect(ctx); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) DeleteAction(_ context.Context, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.actions, secret)
	return nil
}

func (s *Store) PurgeExpiredActions(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for k, a := range s.actions {
		if a.ConsumedAt == nil && a.ExpiresAt != nil && a.ExpiresAt.Before(before) {
			delete(s.actions, k)
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// storeSnapshot is a deep copy of every entity map, taken before a
// consume effect so a failed effect can be undone wholesale.
type storeSnapshot struct {
	roles        map[string]*role.Role
	users        map[string]*account.User
	accounts     map[string]*account.UserAccount
	accountRoles map[string]map[string]struct{}
	credentials  map[string]*credential.Credential
	actions      map[string]*token.Action
}

// snapshot deep-copies the entity maps. Caller must hold the write lock.
func (s *Store) snapshot() *storeSnapshot {
	sn := &storeSnapshot{
		roles:        make(map[string]*role.Role, len(s.roles)),
		users:        make(map[string]*account.User, len(s.users)),
		accounts:     make(map[string]*account.UserAccount, len(s.accounts)),
		accountRoles: make(map[string]map[string]struct{}, len(s.accountRoles)),
		credentials:  make(map[string]*credential.Credential, len(s.credentials)),
		actions:      make(map[string]*token.Action, len(s.actions)),
	}
	for k, r := range s.roles {
		sn.roles[k] = copyRole(r)
	}
	for k, u := range s.users {
		sn.users[k] = copyUser(u)
	}
	for k, a := range s.accounts {
		sn.accounts[k] = copyAccount(a)
	}
	for k, set := range s.accountRoles {
		cp := make(map[string]struct{}, len(set))
		for rid := range set {
			cp[rid] = struct{}{}
		}
		sn.accountRoles[k] = cp
	}
	for k, c := range s.credentials {
		cp := *c
		sn.credentials[k] = &cp
	}
	for k, a := range s.actions {
		sn.actions[k] = copyAction(a)
	}
	return sn
}

// restore replaces the entity maps with a snapshot. Caller must hold the
// write lock.
func (s *Store) restore(sn *storeSnapshot) {
	s.roles = sn.roles
	s.users = sn.users
	s.accounts = sn.accounts
	s.accountRoles = sn.accountRoles
	s.credentials = sn.credentials
	s.actions = sn.actions
}

func copyRole(r *role.Role) *role.Role {
	c := *r
	if r.Claims != nil {
		c.Claims = make([]claim.Claim, len(r.Claims))
		copy(c.Claims, r.Claims)
	}
	return &c
}

func copyUser(u *account.User) *account.User {
	c := *u
	return &c
}

func copyAccount(a *account.UserAccount) *account.UserAccount {
	c := *a
	return &c
}

func copyAction(a *token.Action) *token.Action {
	c := *a
	if a.RoleIDs != nil {
		c.RoleIDs = make([]id.RoleID, len(a.RoleIDs))
		copy(c.RoleIDs, a.RoleIDs)
	}
	if a.ExpiresAt != nil {
		t := *a.ExpiresAt
		c.ExpiresAt = &t
	}
	if a.ConsumedAt != nil {
		t := *a.ConsumedAt
		c.ConsumedAt = &t
	}
	return &c
}

// Pagination helpers.
type pagOpts struct{ limit, offset int }

func paginationOpts(f *role.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func paginationOptsAcct(f *account.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func applyPagination[T any](items []*T, p pagOpts) []*T {
	if p.offset > 0 && p.offset < len(items) {
		items = items[p.offset:]
	} else if p.offset >= len(items) && p.offset > 0 {
		return nil
	}
	if p.limit > 0 && p.limit < len(items) {
		items = items[:p.limit]
	}
	return items
}
