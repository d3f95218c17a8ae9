package account

import (
	"context"

	"github.com/xraph/authsome/id"
)

// Store defines persistence operations for users and their accounts.
// The targeted user setters exist so action-token side effects can flip
// a single field inside the consume transaction.
type Store interface {
	// CreateUser persists a new user. Email must be unique.
	CreateUser(ctx context.Context, u *User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, userID id.UserID) (*User, error)

	// GetUserByEmail retrieves a user by normalized email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// SetUserEmail updates a user's email address.
	SetUserEmail(ctx context.Context, userID id.UserID, email string) error

	// SetUserEmailValidated updates the email-validated flag.
	SetUserEmailValidated(ctx context.Context, userID id.UserID, validated bool) error

	// SetUserAcceptedTerms updates the accepted-terms flag.
	SetUserAcceptedTerms(ctx context.Context, userID id.UserID, accepted bool) error

	// SetUserAcceptedPrivacyPolicy updates the accepted-privacy-policy flag.
	SetUserAcceptedPrivacyPolicy(ctx context.Context, userID id.UserID, accepted bool) error

	// DeleteUser removes a user, their accounts, and their credentials.
	DeleteUser(ctx context.Context, userID id.UserID) error

	// CreateAccount persists a new user account.
	CreateAccount(ctx context.Context, a *UserAccount) error

	// GetAccount retrieves an account by ID.
	GetAccount(ctx context.Context, accountID id.AccountID) (*UserAccount, error)

	// ListAccounts returns accounts matching the filter.
	ListAccounts(ctx context.Context, filter *ListFilter) ([]*UserAccount, error)

	// CountAccounts returns the number of accounts matching the filter.
	CountAccounts(ctx context.Context, filter *ListFilter) (int64, error)

	// SetAccountEnabled enables or disables an account.
	SetAccountEnabled(ctx context.Context, accountID id.AccountID, enabled bool) error

	// DeleteAccount removes an account and its role assignments.
	DeleteAccount(ctx context.Context, accountID id.AccountID) error

	// AssignRole attaches a role to an account. Assigning an already
	// assigned role is a no-op.
	AssignRole(ctx context.Context, accountID id.AccountID, roleID id.RoleID) error

	// UnassignRole detaches a role from an account.
	UnassignRole(ctx context.Context, accountID id.AccountID, roleID id.RoleID) error

	// ListAccountRoles returns the role IDs attached to an account.
	ListAccountRoles(ctx context.Context, accountID id.AccountID) ([]id.RoleID, error)
}
