package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Bastion store (SQLite).
var Migrations = migrate.NewGroup("bastion")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_assignments",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_assignments (
    actor_id    TEXT PRIMARY KEY,
    roles       TEXT NOT NULL DEFAULT '[]',
    denied      TEXT NOT NULL DEFAULT '[]',
    locked      INTEGER NOT NULL DEFAULT 0,
    version     INTEGER NOT NULL,
    updated_by  TEXT NOT NULL DEFAULT '',
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_assignments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_role_permissions",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_role_permissions (
    role        TEXT PRIMARY KEY,
    common      TEXT NOT NULL DEFAULT '[]',
    scoped      TEXT NOT NULL DEFAULT '[]',
    version     INTEGER NOT NULL,
    updated_by  TEXT NOT NULL DEFAULT '',
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_role_permissions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_audit",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_audit (
    seq          INTEGER PRIMARY KEY,
    id           TEXT NOT NULL UNIQUE,
    entity_type  TEXT NOT NULL,
    entity_id    TEXT NOT NULL,
    field        TEXT NOT NULL,
    old_value    TEXT NOT NULL DEFAULT '',
    new_value    TEXT NOT NULL DEFAULT '',
    changed_by   TEXT NOT NULL,
    changed_at   DATETIME NOT NULL,
    reason       TEXT NOT NULL DEFAULT '',
    prev_hash    TEXT NOT NULL DEFAULT '',
    hash         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bastion_audit_entity ON bastion_audit (entity_type, entity_id, seq);
CREATE INDEX IF NOT EXISTS idx_bastion_audit_changed_at ON bastion_audit (changed_at);

CREATE TABLE IF NOT EXISTS bastion_audit_head (
    id    INTEGER PRIMARY KEY,
    seq   INTEGER NOT NULL,
    hash  TEXT NOT NULL
);

INSERT OR IGNORE INTO bastion_audit_head (id, seq, hash) VALUES (1, 0, '');
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS bastion_audit_head;
DROP TABLE IF EXISTS bastion_audit;
`)
				return err
			},
		},
	)
}
