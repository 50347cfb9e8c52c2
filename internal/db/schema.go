package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    email         TEXT NOT NULL,
    name          TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('admin', 'member')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE TABLE IF NOT EXISTS warehouses (
    id          INTEGER PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS categories (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS boxes (
    id           INTEGER PRIMARY KEY,
    name         TEXT NOT NULL,
    description  TEXT,
    warehouse_id INTEGER NOT NULL REFERENCES warehouses(id),
    qr_code_url  TEXT,
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS items (
    id          INTEGER PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT,
    image       BLOB,
    image_mime  TEXT,
    image_url   TEXT,
    quantity    INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
    type        TEXT NOT NULL CHECK (type IN ('UNIQUE', 'COUNTABLE', 'CONSUMABLE')),
    category_id INTEGER REFERENCES categories(id),
    box_id      INTEGER REFERENCES boxes(id),
    qr_code_url TEXT,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at  DATETIME,
    CHECK (type <> 'UNIQUE' OR quantity IN (0, 1))
);

CREATE TABLE IF NOT EXISTS rentals (
    id          INTEGER PRIMARY KEY,
    item_id     INTEGER NOT NULL REFERENCES items(id),
    user_id     INTEGER NOT NULL REFERENCES users(id),
    quantity    INTEGER NOT NULL CHECK (quantity > 0),
    rented_at   DATETIME NOT NULL,
    due_date    DATETIME NOT NULL,
    returned_at DATETIME
);

CREATE TABLE IF NOT EXISTS movements (
    id                INTEGER PRIMARY KEY,
    box_id            INTEGER NOT NULL REFERENCES boxes(id),
    from_warehouse_id INTEGER NOT NULL REFERENCES warehouses(id),
    to_warehouse_id   INTEGER NOT NULL REFERENCES warehouses(id),
    moved_at          DATETIME NOT NULL,
    moved_by          INTEGER REFERENCES users(id),
    CHECK (from_warehouse_id <> to_warehouse_id)
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Emails are reusable once the previous holder is soft-deleted.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_active
	     ON users(email COLLATE NOCASE) WHERE deleted_at IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_warehouses_name
	     ON warehouses(name COLLATE NOCASE)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_name
	     ON categories(name COLLATE NOCASE)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_boxes_warehouse_name
	     ON boxes(warehouse_id, name COLLATE NOCASE)`,
	`CREATE INDEX IF NOT EXISTS idx_rentals_item_active
	     ON rentals(item_id) WHERE returned_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_rentals_user
	     ON rentals(user_id, returned_at)`,
	`CREATE INDEX IF NOT EXISTS idx_items_box ON items(box_id)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_box ON movements(box_id)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist,
// then applies migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}
