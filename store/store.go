// Package store defines the aggregate persistence interface. Each subsystem
// (role, account, credential, token) defines its own store interface. The
// composite Store composes them all.
// Backends: Postgres, SQLite, MongoDB, and Memory.
package store

import (
	"context"

	"github.com/xraph/authsome/account"
	"github.com/xraph/authsome/credential"
	"github.com/xraph/authsome/role"
	"github.com/xraph/authsome/token"
)

// Store is the aggregate persistence interface.
// Each subsystem store is a composable interface; a single backend
// (postgres, sqlite, mongo, memory) implements all of them.
type Store interface {
	role.Store
	account.Store
	credential.Store
	token.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}

type effectStoreKey struct{}

// WithEffectStore returns a context carrying a transaction-scoped store.
// Backends whose ConsumeAction runs the effect inside a transaction put a
// store bound to that transaction here, so writes the effect performs
// commit or roll back together with the consumed mark.
func WithEffectStore(ctx context.Context, s Store) context.Context {
	return context.WithValue(ctx, effectStoreKey{}, s)
}

// EffectStore returns the transaction-scoped store carried by the
// context, or fallback when the backend did not provide one.
func EffectStore(ctx context.Context, fallback Store) Store {
	if s, ok := ctx.Value(effectStoreKey{}).(Store); ok {
		return s
	}
	return fallback
}
