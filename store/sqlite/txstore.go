package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/authsome/account"
	"github.com/xraph/authsome/credential"
	"github.com/xraph/authsome/id"
	"github.com/xraph/authsome/store"
)

// Compile-time interface check.
var _ store.Store = (*txStore)(nil)

// txOps are the statement runners bound to the consume transaction.
// The transaction handle itself has no exported type, so ConsumeAction
// builds these as closures over it.
type txOps struct {
	selectUser       func(ctx context.Context, m *userModel, userID string) error
	selectUserEmail  func(ctx context.Context, m *userModel, email string) error
	countEmail       func(ctx context.Context, email, exceptID string) (int64, error)
	insertUser       func(ctx context.Context, m *userModel) error
	updateUser       func(ctx context.Context, m *userModel) (int64, error)
	insertAccount    func(ctx context.Context, m *accountModel) error
	countAssignment  func(ctx context.Context, accountID, roleID string) (int64, error)
	insertAssignment func(ctx context.Context, m *accountRoleModel) error
	clearCredential  func(ctx context.Context, userID, kind string) error
	insertCredential func(ctx context.Context, m *credentialModel) error
}

// txStore overlays the consume transaction on the composite store. The
// writes a token effect performs (user and account creation, membership,
// onboarding flags, credentials) run on the transaction, so they commit
// or roll back with the consumed mark. Everything else falls through to
// the base store.
type txStore struct {
	*Store
	ops txOps
}

func (t *txStore) GetUser(ctx context.Context, userID id.UserID) (*account.User, error) {
	m := new(userModel)
	if err := t.ops.selectUser(ctx, m, userID.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, account.ErrNotFound)
		}
		return nil, fmt.Errorf("authsome/sqlite: get user: %w", err)
	}
	return userFromModel(m), nil
}

func (t *txStore) GetUserByEmail(ctx context.Context, email string) (*account.User, error) {
	email = account.NormalizeEmail(email)
	m := new(userModel)
	if err := t.ops.selectUserEmail(ctx, m, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", email, account.ErrNotFound)
		}
		return nil, fmt.Errorf("authsome/sqlite: get user by email: %w", err)
	}
	return userFromModel(m), nil
}

func (t *txStore) CreateUser(ctx context.Context, u *account.User) error {
	now := time.Now().UTC()
	u.Email = account.NormalizeEmail(u.Email)
	u.CreatedAt = now
	u.UpdatedAt = now

	count, err := t.ops.countEmail(ctx, u.Email, "")
	if err != nil {
		return fmt.Errorf("authsome/sqlite: check email: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("user %s: %w", u.Email, account.ErrDuplicateEmail)
	}

	if err := t.ops.insertUser(ctx, userToModel(u)); err != nil {
		return fmt.Errorf("authsome/sqlite: create user: %w", err)
	}
	return nil
}

func (t *txStore) SetUserEmail(ctx context.Context, userID id.UserID, email string) error {
	email = account.NormalizeEmail(email)
	count, err := t.ops.countEmail(ctx, email, userID.String())
	if err != nil {
		return fmt.Errorf("authsome/sqlite: check email: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("user %s: %w", email, account.ErrDuplicateEmail)
	}

	u, err := t.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	u.Email = email
	return t.updateUser(ctx, u)
}

func (t *txStore) SetUserEmailValidated(ctx context.Context, userID id.UserID, validated bool) error {
	return t.setUserFlag(ctx, userID, func(u *account.User) { u.EmailValidated = validated })
}

func (t *txStore) SetUserAcceptedTerms(ctx context.Context, userID id.UserID, accepted bool) error {
	return t.setUserFlag(ctx, userID, func(u *account.User) { u.AcceptedTerms = accepted })
}

func (t *txStore) SetUserAcceptedPrivacyPolicy(ctx context.Context, userID id.UserID, accepted bool) error {
	return t.setUserFlag(ctx, userID, func(u *account.User) { u.AcceptedPrivacyPolicy = accepted })
}

func (t *txStore) setUserFlag(ctx context.Context, userID id.UserID, apply func(*account.User)) error {
	u, err := t.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	apply(u)
	return t.updateUser(ctx, u)
}

func (t *txStore) updateUser(ctx context.Context, u *account.User) error {
	u.UpdatedAt = time.Now().UTC()
	n, err := t.ops.updateUser(ctx, userToModel(u))
	if err != nil {
		return fmt.Errorf("authsome/sqlite: update user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", u.ID, account.ErrNotFound)
	}
	return nil
}

func (t *txStore) CreateAccount(ctx context.Context, a *account.UserAccount) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if err := t.ops.insertAccount(ctx, accountToModel(a)); err != nil {
		return fmt.Errorf("authsome/sqlite: create account: %w", err)
	}
	return nil
}

func (t *txStore) AssignRole(ctx context.Context, accountID id.AccountID, roleID id.RoleID) error {
	count, err := t.ops.countAssignment(ctx, accountID.String(), roleID.String())
	if err != nil {
		return fmt.Errorf("authsome/sqlite: check assignment: %w", err)
	}
	if count > 0 {
		return nil
	}
	m := &accountRoleModel{AccountID: accountID.String(), RoleID: roleID.String()}
	if err := t.ops.insertAssignment(ctx, m); err != nil {
		return fmt.Errorf("authsome/sqlite: assign role: %w", err)
	}
	return nil
}

func (t *txStore) ReplaceCredential(ctx context.Context, c *credential.Credential) error {
	if err := t.ops.clearCredential(ctx, c.UserID.String(), string(c.Kind)); err != nil {
		return fmt.Errorf("authsome/sqlite: clear credential: %w", err)
	}
	if err := t.ops.insertCredential(ctx, credentialToModel(c)); err != nil {
		return fmt.Errorf("authsome/sqlite: replace credential: %w", err)
	}
	return nil
}
