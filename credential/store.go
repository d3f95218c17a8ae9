package credential

import (
	"context"

	"github.com/xraph/authsome/id"
)

// Store defines persistence operations for credentials.
type Store interface {
	// GetCredential retrieves a user's credential of the given kind.
	GetCredential(ctx context.Context, userID id.UserID, kind Kind) (*Credential, error)

	// ReplaceCredential inserts or replaces a user's credential of the
	// credential's kind.
	ReplaceCredential(ctx context.Context, c *Credential) error

	// DeleteCredentials removes all credentials for a user.
	DeleteCredentials(ctx context.Context, userID id.UserID) error
}
