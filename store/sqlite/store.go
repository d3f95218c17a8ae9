// Package sqlite provides a SQLite implementation of the composite store
// using grove ORM with Go-based migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/authsome/account"
	"github.com/xraph/authsome/claim"
	"github.com/xraph/authsome/credential"
	"github.com/xraph/authsome/id"
	"github.com/xraph/authsome/role"
	"github.com/xraph/authsome/store"
	"github.com/xraph/authsome/token"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a SQLite implementation of the composite store.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("authsome/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("authsome/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ──────────────────────────────────────────────────
// Role operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(ctx context.Context, r *role.Role) error {
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	m, err := roleToModel(r)
	if err != nil {
		return fmt.Errorf("authsome/sqlite: create role: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("authsome/sqlite: create role: %w", err)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	m := new(roleModel)
	err := s.sdb.NewSelect(m).Where("id = ?", roleID.String()).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("role %s: %w", roleID, role.ErrNotFound)
		}
		return nil, fmt.Errorf("authsome/sqlite: get role: %w", err)
	}
	return roleFromModel(m)
}

func (s *Store) GetRoleByName(ctx context.Context, organisationID, name string) (*role.Role, error) {
	m := new(roleModel)
	err := s.sdb.NewSelect(m).
		Where("organisation_id = ?", organisationID).
		Where("name = ?", name).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("role %q: %w", name, role.ErrNotFound)
		}
		return nil, fmt.Errorf("authsome/sqlite: get role by name: %w", err)
	}
	return roleFromModel(m)
}

func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	r.UpdatedAt = time.Now().UTC()
	m, err := roleToModel(r)
	if err != nil {
		return fmt.Errorf("authsome/sqlite: update role: %w", err)
	}
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome/sqlite: update role: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("role %s: %w", r.ID, role.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("authsome/sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	if _, err := tx.NewDelete((*accountRoleModel)(nil)).
		Where("role_id = ?", roleID.String()).Exec(ctx); err != nil {
		return fmt.Errorf("authsome/sqlite: detach role: %w", err)
	}
	if _, err := tx.NewDelete((*roleModel)(nil)).
		Where("id = ?", roleID.String()).Exec(ctx); err != nil {
		return fmt.Errorf("authsome/sqlite: delete role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("authsome/sqlite: commit tx: %w", err)
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at ASC")
	if filter != nil {
		if filter.OrganisationID != "" {
			q = q.Where("organisation_id = ?", filter.OrganisationID)
		}
		if filter.IsSystem != nil {
			q = q.Where("is_system = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("authsome/sqlite: list roles: %w", err)
	}
	result := make([]*role.Role, 0, len(models))
	for i := range models {
		r, err := roleFromModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*roleModel)(nil))
	if filter != nil {
		if filter.OrganisationID != "" {
			q = q.Where("organisation_id = ?", filter.OrganisationID)
		}
		if filter.IsSystem != nil {
			q = q.Where("is_system = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("authsome/sqlite: count roles: %w", err)
	}
	return count, nil
}

func (s *Store) SetRoleClaims(ctx context.Context, roleID id.RoleID, claims []claim.Claim) error {
	r, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	r.Claims = claims
	return s.UpdateRole(ctx, r)
}

// ──────────────────────────────────────────────────
// Account operations
// ──────────────────────────────────────────────────

func (s *Store) CreateUser(ctx context.Context, u *account.User) error {
	now := time.Now().UTC()
	u.Email = account.NormalizeEmail(u.Email)
	u.CreatedAt = now
	u.UpdatedAt = now

	taken, err := s.emailTaken(ctx, u.Email, "")
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("user %s: %w", u.Email, account.ErrDuplicateEmail)
	}

	m := userToModel(u)
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("authsome/sqlite: create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID id.UserID) (*account.User, error) {
	m := new(userModel)
	err := s.sdb.NewSelect(m).Where("id = ?", userID.String()).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, account.ErrNotFound)
		}
		return nil, fmt.Errorf("authsome/sqlite: get user: %w", err)
	}
	return userFromModel(m), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*account.User, error) {
	email = account.NormalizeEmail(email)
	m := new(userModel)
	err := s.sdb.NewSelect(m).Where("email = ?", email).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", email, account.ErrNotFound)
		}
		return nil, fmt.Errorf("authsome/sqlite: get user by email: %w", err)
	}
	return userFromModel(m), nil
}

func (s *Store) SetUserEmail(ctx context.Context, userID id.UserID, email string) error {
	email = account.NormalizeEmail(email)
	taken, err := s.emailTaken(ctx, email, userID.String())
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("user %s: %w", email, account.ErrDuplicateEmail)
	}

	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	u.Email = email
	return s.updateUser(ctx, u)
}

func (s *Store) SetUserEmailValidated(ctx context.Context, userID id.UserID, validated bool) error {
	return s.setUserFlag(ctx, userID, func(u *account.User) { u.EmailValidated = validated })
}

func (s *Store) SetUserAcceptedTerms(ctx context.Context, userID id.UserID, accepted bool) error {
	return s.setUserFlag(ctx, userID, func(u *account.User) { u.AcceptedTerms = accepted })
}

func (s *Store) SetUserAcceptedPrivacyPolicy(ctx context.Context, userID id.UserID, accepted bool) error {
	return s.setUserFlag(ctx, userID, func(u *account.User) { u.AcceptedPrivacyPolicy = accepted })
}

func (s *Store) setUserFlag(ctx context.Context, userID id.UserID, apply func(*account.User)) error {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	apply(u)
	return s.updateUser(ctx, u)
}

func (s *Store) updateUser(ctx context.Context, u *account.User) error {
	u.UpdatedAt = time.Now().UTC()
	m := userToModel(u)
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome/sqlite: update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %s: %w", u.ID, account.ErrNotFound)
	}
	return nil
}

func (s *Store) emailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	q := s.sdb.NewSelect((*userModel)(nil)).Where("email = ?", email)
	if exceptID != "" {
		q = q.Where("id != ?", exceptID)
	}
	count, err := q.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("authsome/sqlite: check email: %w", err)
	}
	return count > 0, nil
}

func (s *Store) DeleteUser(ctx context.Context, userID id.UserID) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("authsome/sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	var accounts []accountModel
	if err := tx.NewSelect(&accounts).
		Where("user_id = ?", userID.String()).Scan(ctx); err != nil {
		return fmt.Errorf("authsome/sqlite: list user accounts: %w", err)
	}
	for i := range accounts {
		if _, err := tx.NewDelete((*accountRoleModel)(nil)).
			Where("account_id = ?", accounts[i].ID).Exec(ctx); err != nil {
			return fmt.Errorf("authsome/sqlite: detach account roles: %w", err)
		}
	}
	if _, err := tx.NewDelete((*accountModel)(nil)).
		Where("user_id = ?", userID.String()).Exec(ctx); err != nil {
		return fmt.Errorf("authsome/sqlite: delete user accounts: %w", err)
	}
	if _, err := tx.NewDelete((*credentialModel)(nil)).
		Where("user_id = ?", userID.String()).Exec(ctx); err != nil {
		return fmt.Errorf("authsome/sqlite: delete user credentials: %w", err)
	}
	if _, err := tx.NewDelete((*userModel)(nil)).
		Where("id = ?", userID.String()).Exec(ctx); err != nil {
		return fmt.Errorf("authsome/sqlite: delete user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("authsome/sqlite: commit tx: %w", err)
	}
	return nil
}

func (s *Store) CreateAccount(ctx context.Context, a *account.UserAccount) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	m := accountToModel(a)
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("authsome/sqlite: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.UserAccount, error) {
	m := new(accountModel)
	err := s.sdb.NewSelect(m).Where("id = ?", accountID.String()).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", accountID, account.ErrNotFound)
		}
		return nil, fmt.Errorf("authsome/sqlite: get account: %w", err)
	}
	return accountFromModel(m), nil
}

func (s *Store) ListAccounts(ctx context.Context, filter *account.ListFilter) ([]*account.UserAccount, error) {
	var models []accountModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at ASC")
	if filter != nil {
		if filter.UserID != nil {
			q = q.Where("user_id = ?", filter.UserID.String())
		}
		if filter.OrganisationID != "" {
			q = q.Where("organisation_id = ?", filter.OrganisationID)
		}
		if filter.EstablishmentID != "" {
			q = q.Where("establishment_id = ?", filter.EstablishmentID)
		}
		if filter.Enabled != nil {
			q = q.Where("enabled = ?", *filter.Enabled)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("authsome/sqlite: list accounts: %w", err)
	}
	result := make([]*account.UserAccount, len(models))
	for i := range models {
		result[i] = accountFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountAccounts(ctx context.Context, filter *account.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*accountModel)(nil))
	if filter != nil {
		if filter.UserID != nil {
			q = q.Where("user_id = ?", filter.UserID.String())
		}
		if filter.OrganisationID != "" {
			q = q.Where("organisation_id = ?", filter.OrganisationID)
		}
		if filter.EstablishmentID != "" {
			q = q.Where("establishment_id = ?", filter.EstablishmentID)
		}
		if filter.Enabled != nil {
			q = q.Where("enabled = ?", *filter.Enabled)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("authsome/sqlite: count accounts: %w", err)
	}
	return count, nil
}

func (s *Store) SetAccountEnabled(ctx context.Context, accountID id.AccountID, enabled bool) error {
	a, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	a.Enabled = enabled
	a.UpdatedAt = time.Now().UTC()
	m := accountToModel(a)
	if _, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("authsome/sqlite: set account enabled: %w", err)
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, accountID id.AccountID) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("authsome/sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	if _, err := tx.NewDelete((*accountRoleModel)(nil)).
		Where("account_id = ?", accountID.String()).Exec(ctx); err != nil {
		return fmt.Errorf("authsome/sqlite: detach account roles: %w", err)
	}
	if _, err := tx.NewDelete((*accountModel)(nil)).
		Where("id = ?", accountID.String()).Exec(ctx); err != nil {
		return fmt.Errorf("authsome/sqlite: delete account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("authsome/sqlite: commit tx: %w", err)
	}
	return nil
}

func (s *Store) AssignRole(ctx context.Context, accountID id.AccountID, roleID id.RoleID) error {
	count, err := s.sdb.NewSelect((*accountRoleModel)(nil)).
		Where("account_id = ?", accountID.String()).
		Where("role_id = ?", roleID.String()).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("authsome/sqlite: check assignment: %w", err)
	}
	if count > 0 {
		return nil
	}
	m := &accountRoleModel{AccountID: accountID.String(), RoleID: roleID.String()}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("authsome/sqlite: assign role: %w", err)
	}
	return nil
}

func (s *Store) UnassignRole(ctx context.Context, accountID id.AccountID, roleID id.RoleID) error {
	_, err := s.sdb.NewDelete((*accountRoleModel)(nil)).
		Where("account_id = ?", accountID.String()).
		Where("role_id = ?", roleID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome/sqlite: unassign role: %w", err)
	}
	return nil
}

func (s *Store) ListAccountRoles(ctx context.Context, accountID id.AccountID) ([]id.RoleID, error) {
	var models []accountRoleModel
	err := s.sdb.NewSelect(&models).
		Where("account_id = ?", accountID.String()).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("authsome/sqlite: list account roles: %w", err)
	}
	result := make([]id.RoleID, 0, len(models))
	for _, m := range models {
		rid, err := id.ParseRoleID(m.RoleID)
		if err == nil {
			result = append(result, rid)
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Credential operations
// ──────────────────────────────────────────────────

func (s *Store) GetCredential(ctx context.Context, userID id.UserID, kind credential.Kind) (*credential.Credential, error) {
	m := new(credentialModel)
	err := s.sdb.NewSelect(m).
		Where("user_id = ?", userID.String()).
		Where("kind = ?", string(kind)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("credential %s/%s: %w", userID, kind, credential.ErrNotFound)
		}
		return nil, fmt.Errorf("authsome/sqlite: get credential: %w", err)
	}
	return credentialFromModel(m), nil
}

func (s *Store) ReplaceCredential(ctx context.Context, c *credential.Credential) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("authsome/sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	_, err = tx.NewDelete((*credentialModel)(nil)).
		Where("user_id = ?", c.UserID.String()).
		Where("kind = ?", string(c.Kind)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome/sqlite: clear credential: %w", err)
	}

	m := credentialToModel(c)
	if _, err := tx.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("authsome/sqlite: replace credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("authsome/sqlite: commit tx: %w", err)
	}
	return nil
}

func (s *Store) DeleteCredentials(ctx context.Context, userID id.UserID) error {
	_, err := s.sdb.NewDelete((*credentialModel)(nil)).
		Where("user_id = ?", userID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome/sqlite: delete credentials: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Token operations
// ──────────────────────────────────────────────────

func (s *Store) SaveAction(ctx context.Context, a *token.Action) error {
	m, err := actionToModel(a)
	if err != nil {
		return fmt.Errorf("authsome/sqlite: save action: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("authsome/sqlite: save action: %w", err)
	}
	return nil
}

func (s *Store) FindActionByToken(ctx context.Context, secret string) (*token.Action, error) {
	m := new(actionModel)
	err := s.sdb.NewSelect(m).Where("token = ?", secret).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, token.ErrNotFound
		}
		return nil, fmt.Errorf("authsome/sqlite: find action: %w", err)
	}
	return actionFromModel(m)
}

// ConsumeAction takes the consumed mark inside a transaction: the
// conditional update is the compare-and-swap, so of two racing
// consumers the loser sees zero affected rows and fails with
// ErrConsumed. The effect runs with a transaction-scoped store on its
// context, so its writes and the mark commit or roll back as one.
func (s *Store) ConsumeAction(ctx context.Context, secret string, at time.Time, effect func(ctx context.Context) error) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("authsome/sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	m := new(actionModel)
	err = tx.NewSelect(m).Where("token = ?", secret).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return token.ErrNotFound
		}
		return fmt.Errorf("authsome/sqlite: find action: %w", err)
	}

	consumed := at
	m.ConsumedAt = &consumed
	res, err := tx.NewUpdate(m).
		WherePK().
		Where("consumed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome/sqlite: consume action: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return token.ErrConsumed
	}

	ts := &txStore{Store: s, ops: txOps{
		selectUser: func(ctx context.Context, m *userModel, userID string) error {
			return tx.NewSelect(m).Where("id = ?", userID).Scan(ctx)
		},
		selectUserEmail: func(ctx context.Context, m *userModel, email string) error {
			return tx.NewSelect(m).Where("email = ?", email).Scan(ctx)
		},
		countEmail: func(ctx context.Context, email, exceptID string) (int64, error) {
			q := tx.NewSelect((*userModel)(nil)).Where("email = ?", email)
			if exceptID != "" {
				q = q.Where("id != ?", exceptID)
			}
			return q.Count(ctx)
		},
		insertUser: func(ctx context.Context, m *userModel) error {
			_, err := tx.NewInsert(m).Exec(ctx)
			return err
		},
		updateUser: func(ctx context.Context, m *userModel) (int64, error) {
			res, err := tx.NewUpdate(m).WherePK().Exec(ctx)
			if err != nil {
				return 0, err
			}
			return res.RowsAffected()
		},
		insertAccount: func(ctx context.Context, m *accountModel) error {
			_, err := tx.NewInsert(m).Exec(ctx)
			return err
		},
		countAssignment: func(ctx context.Context, accountID, roleID string) (int64, error) {
			return tx.NewSelect((*accountRoleModel)(nil)).
				Where("account_id = ?", accountID).
				Where("role_id = ?", roleID).
				Count(ctx)
		},
		insertAssignment: func(ctx context.Context, m *accountRoleModel) error {
			_, err := tx.NewInsert(m).Exec(ctx)
			return err
		},
		clearCredential: func(ctx context.Context, userID, kind string) error {
			_, err := tx.NewDelete((*credentialModel)(nil)).
				Where("user_id = ?", userID).
				Where("kind = ?", kind).
				Exec(ctx)
			return err
		},
		insertCredential: func(ctx context.Context, m *credentialModel) error {
			_, err := tx.NewInsert(m).Exec(ctx)
			return err
		},
	}}

	if err := effect(store.WithEffectStore(ctx, ts)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("authsome/sqlite: commit tx: %w", err)
	}
	return nil
}

func (s *Store) DeleteAction(ctx context.Context, secret string) error {
	_, err := s.sdb.NewDelete((*actionModel)(nil)).
		Where("token = ?", secret).Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome/sqlite: delete action: %w", err)
	}
	return nil
}

func (s *Store) PurgeExpiredActions(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*actionModel)(nil)).
		Where("consumed_at IS NULL").
		Where("expires_at IS NOT NULL").
		Where("expires_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("authsome/sqlite: purge expired actions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("authsome/sqlite: purge expired actions rows: %w", err)
	}
	return n, nil
}
