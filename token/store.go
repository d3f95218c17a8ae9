package token

import (
	"context"
	"time"
)

// Store defines persistence operations for action tokens.
type Store interface {
	// SaveAction persists a new action token.
	SaveAction(ctx context.Context, a *Action) error

	// FindActionByToken retrieves a token by its opaque secret,
	// consumed or not.
	FindActionByToken(ctx context.Context, token string) (*Action, error)

	// ConsumeAction atomically marks the token consumed at the given
	// instant and runs effect inside the same transactional boundary.
	// If effect fails, the consumed mark and the effect's writes are
	// rolled back and the token stays usable. Backends with transactions
	// expose a transaction-scoped store to the effect through its
	// context (see store.WithEffectStore); effect writes must go through
	// store.EffectStore to land inside the boundary. Returns ErrNotFound
	// for an unknown token and ErrConsumed when a concurrent consumer
	// won the race.
	//
	// The store performs no expiry or type checks; callers validate
	// before consuming.
	ConsumeAction(ctx context.Context, token string, at time.Time, effect func(ctx context.Context) error) error

	// DeleteAction removes a token by its opaque secret.
	DeleteAction(ctx context.Context, token string) error

	// PurgeExpiredActions removes unconsumed tokens whose deadline is
	// before the given instant. Returns the number removed.
	PurgeExpiredActions(ctx context.Context, before time.Time) (int64, error)
}
