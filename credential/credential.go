// Package credential defines the Credential entity, its store interface,
// and the password hasher abstraction.
package credential

import (
	"errors"
	"time"

	"github.com/xraph/authsome/id"
)

// ErrNotFound is returned by stores when a credential does not exist.
var ErrNotFound = errors.New("credential: not found")

// Kind identifies the credential type.
type Kind string

// KindPassword is the password credential type.
const KindPassword Kind = "password"

// Credential is a user's secret material of one kind. Only the hash is
// ever stored; replacement is whole-value (no partial updates).
type Credential struct {
	UserID    id.UserID `json:"user_id" db:"user_id"`
	Kind      Kind      `json:"kind" db:"kind"`
	Hash      string    `json:"-" db:"hash"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
