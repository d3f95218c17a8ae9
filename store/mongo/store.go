// Package mongo provides a MongoDB implementation of the composite
// store using grove ORM with index-based migrations.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/authsome/account"
	"github.com/xraph/authsome/claim"
	"github.com/xraph/authsome/credential"
	"github.com/xraph/authsome/id"
	"github.com/xraph/authsome/role"
	"github.com/xraph/authsome/store"
	"github.com/xraph/authsome/token"
)

// Collection name constants.
const (
	colRoles        = "authsome_roles"
	colUsers        = "authsome_users"
	colAccounts     = "authsome_accounts"
	colAccountRoles = "authsome_account_roles"
	colCredentials  = "authsome_credentials"
	colActions      = "authsome_actions"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite store.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()
	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("authsome: migrate %s indexes: %w", col, err)
		}
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

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colRoles: {
			{
				Keys:    bson.D{{Key: "organisation_id", Value: 1}, {Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "organisation_id", Value: 1}, {Key: "is_system", Value: 1}}},
		},
		colUsers: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colAccounts: {
			{
				Keys: bson.D{
					{Key: "user_id", Value: 1},
					{Key: "organisation_id", Value: 1},
					{Key: "establishment_id", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "organisation_id", Value: 1}, {Key: "establishment_id", Value: 1}}},
		},
		colAccountRoles: {
			{
				Keys:    bson.D{{Key: "account_id", Value: 1}, {Key: "role_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "role_id", Value: 1}}},
		},
		colCredentials: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "kind", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colActions: {
			{
				Keys:    bson.D{{Key: "token", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "email", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
		},
	}
}

// ──────────────────────────────────────────────────
// Role operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(ctx context.Context, r *role.Role) error {
	t := now()
	r.CreatedAt = t
	r.UpdatedAt = t
	m := roleToModel(r)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("authsome: create role: %w", err)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	var m roleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": roleID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("role %s: %w", roleID, role.ErrNotFound)
		}
		return nil, fmt.Errorf("authsome: get role: %w", err)
	}
	return roleFromModel(&m), nil
}

func (s *Store) GetRoleByName(ctx context.Context, organisationID, name string) (*role.Role, error) {
	var m roleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"organisation_id": organisationID, "name": name}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("role %q: %w", name, role.ErrNotFound)
		}
		return nil, fmt.Errorf("authsome: get role by name: %w", err)
	}
	return roleFromModel(&m), nil
}

func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	r.UpdatedAt = now()
	m := roleToModel(r)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome: update role: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("role %s: %w", r.ID, role.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	// No cascades in Mongo, detach the role from every account first.
	_, err := s.mdb.NewDelete((*accountRoleModel)(nil)).
		Many().
		Filter(bson.M{"role_id": roleID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome: detach role: %w", err)
	}
	_, err = s.mdb.NewDelete((*roleModel)(nil)).
		Filter(bson.M{"_id": roleID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome: delete role: %w", err)
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	f := roleFilter(filter)
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "created_at", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("authsome: list roles: %w", err)
	}
	result := make([]*role.Role, len(models))
	for i := range models {
		result[i] = roleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*roleModel)(nil)).
		Filter(roleFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("authsome: count roles: %w", err)
	}
	return count, nil
}

func roleFilter(filter *role.ListFilter) bson.M {
	f := bson.M{}
	if filter != nil {
		if filter.OrganisationID != "" {
			f["organisation_id"] = filter.OrganisationID
		}
		if filter.IsSystem != nil {
			f["is_system"] = *filter.IsSystem
		}
		if filter.Search != "" {
			f["name"] = bson.M{"$regex": filter.Search, "$options": "i"}
		}
	}
	return f
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
	t := now()
	u.Email = account.NormalizeEmail(u.Email)
	u.CreatedAt = t
	u.UpdatedAt = t

	taken, err := s.emailTaken(ctx, u.Email, "")
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("user %s: %w", u.Email, account.ErrDuplicateEmail)
	}

	m := userToModel(u)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("authsome: create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID id.UserID) (*account.User, error) {
	var m userModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": userID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("user %s: %w", userID, account.ErrNotFound)
		}
		return nil, fmt.Errorf("authsome: get user: %w", err)
	}
	return userFromModel(&m), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*account.User, error) {
	email = account.NormalizeEmail(email)
	var m userModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"email": email}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("user %s: %w", email, account.ErrNotFound)
		}
		return nil, fmt.Errorf("authsome: get user by email: %w", err)
	}
	return userFromModel(&m), nil
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
	u.UpdatedAt = now()
	m := userToModel(u)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome: update user: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("user %s: %w", u.ID, account.ErrNotFound)
	}
	return nil
}

func (s *Store) emailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	f := bson.M{"email": email}
	if exceptID != "" {
		f["_id"] = bson.M{"$ne": exceptID}
	}
	count, err := s.mdb.NewFind((*userModel)(nil)).
		Filter(f).
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("authsome: check email: %w", err)
	}
	return count > 0, nil
}

func (s *Store) DeleteUser(ctx context.Context, userID id.UserID) error {
	// No cascades in Mongo, walk accounts and clean up dependents.
	var accounts []accountModel
	if err := s.mdb.NewFind(&accounts).
		Filter(bson.M{"user_id": userID.String()}).
		Scan(ctx); err != nil {
		return fmt.Errorf("authsome: list user accounts: %w", err)
	}
	for i := range accounts {
		_, err := s.mdb.NewDelete((*accountRoleModel)(nil)).
			Many().
			Filter(bson.M{"account_id": accounts[i].ID}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("authsome: detach account roles: %w", err)
		}
	}
	_, err := s.mdb.NewDelete((*accountModel)(nil)).
		Many().
		Filter(bson.M{"user_id": userID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome: delete user accounts: %w", err)
	}
	_, err = s.mdb.NewDelete((*credentialModel)(nil)).
		Many().
		Filter(bson.M{"user_id": userID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome: delete user credentials: %w", err)
	}
	_, err = s.mdb.NewDelete((*userModel)(nil)).
		Filter(bson.M{"_id": userID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome: delete user: %w", err)
	}
	return nil
}

func (s *Store) CreateAccount(ctx context.Context, a *account.UserAccount) error {
	t := now()
	a.CreatedAt = t
	a.UpdatedAt = t
	m := accountToModel(a)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("authsome: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.UserAccount, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": accountID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("account %s: %w", accountID, account.ErrNotFound)
		}
		return nil, fmt.Errorf("authsome: get account: %w", err)
	}
	return accountFromModel(&m), nil
}

func (s *Store) ListAccounts(ctx context.Context, filter *account.ListFilter) ([]*account.UserAccount, error) {
	var models []accountModel
	q := s.mdb.NewFind(&models).
		Filter(accountFilter(filter)).
		Sort(bson.D{{Key: "created_at", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("authsome: list accounts: %w", err)
	}
	result := make([]*account.UserAccount, len(models))
	for i := range models {
		result[i] = accountFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountAccounts(ctx context.Context, filter *account.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*accountModel)(nil)).
		Filter(accountFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("authsome: count accounts: %w", err)
	}
	return count, nil
}

func accountFilter(filter *account.ListFilter) bson.M {
	f := bson.M{}
	if filter != nil {
		if filter.UserID != nil {
			f["user_id"] = filter.UserID.String()
		}
		if filter.OrganisationID != "" {
			f["organisation_id"] = filter.OrganisationID
		}
		if filter.EstablishmentID != "" {
			f["establishment_id"] = filter.EstablishmentID
		}
		if filter.Enabled != nil {
			f["enabled"] = *filter.Enabled
		}
	}
	return f
}

func (s *Store) SetAccountEnabled(ctx context.Context, accountID id.AccountID, enabled bool) error {
	res, err := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"_id": accountID.String()}).
		Set("enabled", enabled).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome: set account enabled: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("account %s: %w", accountID, account.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, accountID id.AccountID) error {
	_, err := s.mdb.NewDelete((*accountRoleModel)(nil)).
		Many().
		Filter(bson.M{"account_id": accountID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome: detach account roles: %w", err)
	}
	_, err = s.mdb.NewDelete((*accountModel)(nil)).
		Filter(bson.M{"_id": accountID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome: delete account: %w", err)
	}
	return nil
}

func (s *Store) AssignRole(ctx context.Context, accountID id.AccountID, roleID id.RoleID) error {
	m := &accountRoleModel{
		AccountID: accountID.String(),
		RoleID:    roleID.String(),
	}
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return nil // already assigned
		}
		return fmt.Errorf("authsome: assign role: %w", err)
	}
	return nil
}

func (s *Store) UnassignRole(ctx context.Context, accountID id.AccountID, roleID id.RoleID) error {
	_, err := s.mdb.NewDelete((*accountRoleModel)(nil)).
		Filter(bson.M{"account_id": accountID.String(), "role_id": roleID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome: unassign role: %w", err)
	}
	return nil
}

func (s *Store) ListAccountRoles(ctx context.Context, accountID id.AccountID) ([]id.RoleID, error) {
	var models []accountRoleModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"account_id": accountID.String()}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("authsome: list account roles: %w", err)
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
	var m credentialModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"user_id": userID.String(), "kind": string(kind)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("credential %s/%s: %w", userID, kind, credential.ErrNotFound)
		}
		return nil, fmt.Errorf("authsome: get credential: %w", err)
	}
	return credentialFromModel(&m), nil
}

func (s *Store) ReplaceCredential(ctx context.Context, c *credential.Credential) error {
	_, err := s.mdb.NewDelete((*credentialModel)(nil)).
		Many().
		Filter(bson.M{"user_id": c.UserID.String(), "kind": string(c.Kind)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome: clear credential: %w", err)
	}
	m := credentialToModel(c)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("authsome: replace credential: %w", err)
	}
	return nil
}

func (s *Store) DeleteCredentials(ctx context.Context, userID id.UserID) error {
	_, err := s.mdb.NewDelete((*credentialModel)(nil)).
		Many().
		Filter(bson.M{"user_id": userID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome: delete credentials: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Token operations
// ──────────────────────────────────────────────────

func (s *Store) SaveAction(ctx context.Context, a *token.Action) error {
	m := actionToModel(a)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("authsome: save action: %w", err)
	}
	return nil
}

func (s *Store) FindActionByToken(ctx context.Context, secret string) (*token.Action, error) {
	var m actionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"token": secret}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, token.ErrNotFound
		}
		return nil, fmt.Errorf("authsome: find action: %w", err)
	}
	return actionFromModel(&m), nil
}

// ConsumeAction takes the consumed mark with a conditional single-document
// update, which Mongo applies atomically: of two racing consumers the
// loser matches zero documents and fails with ErrConsumed.
//
// Unlike the SQL backends, the effect does not run inside a transaction:
// on failure the mark is lifted as compensation, but writes the effect
// made before failing are not rolled back. Effects must tolerate a retry
// re-applying their earlier steps on this backend.
func (s *Store) ConsumeAction(ctx context.Context, secret string, at time.Time, effect func(ctx context.Context) error) error {
	res, err := s.mdb.NewUpdate((*actionModel)(nil)).
		Filter(bson.M{"token": secret, "consumed_at": nil}).
		Set("consumed_at", at).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome: consume action: %w", err)
	}
	if res.MatchedCount() == 0 {
		count, err := s.mdb.NewFind((*actionModel)(nil)).
			Filter(bson.M{"token": secret}).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("authsome: find action: %w", err)
		}
		if count == 0 {
			return token.ErrNotFound
		}
		return token.ErrConsumed
	}

	if err := effect(ctx); err != nil {
		_, unmarkErr := s.mdb.NewUpdate((*actionModel)(nil)).
			Filter(bson.M{"token": secret}).
			Set("consumed_at", nil).
			Exec(ctx)
		if unmarkErr != nil {
			return fmt.Errorf("authsome: unmark action after failed effect: %w (effect: %w)", unmarkErr, err)
		}
		return err
	}
	return nil
}

func (s *Store) DeleteAction(ctx context.Context, secret string) error {
	_, err := s.mdb.NewDelete((*actionModel)(nil)).
		Filter(bson.M{"token": secret}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authsome: delete action: %w", err)
	}
	return nil
}

func (s *Store) PurgeExpiredActions(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*actionModel)(nil)).
		Many().
		Filter(bson.M{
			"consumed_at": nil,
			"expires_at": bson.M{
				"$ne": nil,
				"$lt": before,
			},
		}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("authsome: purge expired actions: %w", err)
	}
	return res.DeletedCount(), nil
}
