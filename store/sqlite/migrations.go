package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the store (SQLite).
var Migrations = migrate.NewGroup("authsome")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_roles",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS authsome_roles (
    id              TEXT PRIMARY KEY,
    organisation_id TEXT NOT NULL,
    name            TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    claims          TEXT NOT NULL DEFAULT '[]',
    is_system       INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now')),

    UNIQUE(organisation_id, name)
);

CREATE INDEX IF NOT EXISTS idx_authsome_roles_org ON authsome_roles (organisation_id);
CREATE INDEX IF NOT EXISTS idx_authsome_roles_system ON authsome_roles (organisation_id, is_system);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS authsome_roles`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_users",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS authsome_users (
    id                      TEXT PRIMARY KEY,
    email                   TEXT NOT NULL UNIQUE,
    first_name              TEXT NOT NULL DEFAULT '',
    last_name               TEXT NOT NULL DEFAULT '',
    email_validated         INTEGER NOT NULL DEFAULT 0,
    accepted_terms          INTEGER NOT NULL DEFAULT 0,
    accepted_privacy_policy INTEGER NOT NULL DEFAULT 0,
    created_at              TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at              TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS authsome_users`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_accounts",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS authsome_accounts (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL,
    organisation_id  TEXT NOT NULL,
    establishment_id TEXT NOT NULL DEFAULT '',
    enabled          INTEGER NOT NULL DEFAULT 1,
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now')),

    UNIQUE(user_id, organisation_id, establishment_id)
);

CREATE INDEX IF NOT EXISTS idx_authsome_accounts_user ON authsome_accounts (user_id);
CREATE INDEX IF NOT EXISTS idx_authsome_accounts_tenant ON authsome_accounts (organisation_id, establishment_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS authsome_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_account_roles",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS authsome_account_roles (
    account_id TEXT NOT NULL,
    role_id    TEXT NOT NULL,

    PRIMARY KEY (account_id, role_id)
);

CREATE INDEX IF NOT EXISTS idx_authsome_account_roles_role ON authsome_account_roles (role_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS authsome_account_roles`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credentials",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS authsome_credentials (
    user_id    TEXT NOT NULL,
    kind       TEXT NOT NULL,
    hash       TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (datetime('now')),

    PRIMARY KEY (user_id, kind)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS authsome_credentials`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_actions",
			Version: "20240101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS authsome_actions (
    id               TEXT PRIMARY KEY,
    token            TEXT NOT NULL UNIQUE,
    type             INTEGER NOT NULL,
    email            TEXT NOT NULL,
    user_id          TEXT,
    role_ids         TEXT NOT NULL DEFAULT '[]',
    organisation_id  TEXT NOT NULL DEFAULT '',
    establishment_id TEXT NOT NULL DEFAULT '',
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    expires_at       TEXT,
    consumed_at      TEXT
);

CREATE INDEX IF NOT EXISTS idx_authsome_actions_email ON authsome_actions (email);
CREATE INDEX IF NOT EXISTS idx_authsome_actions_expires ON authsome_actions (expires_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS authsome_actions`)
				return err
			},
		},
	)
}
