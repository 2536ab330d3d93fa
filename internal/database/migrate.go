package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema holds the idempotent DDL applied at startup, before the readiness
// gate opens. Reset-token state lives on the users row (at most one live
// token per user); sessions get their own table keyed by the opaque id.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id CHAR(36) NOT NULL,
		name VARCHAR(64) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(100) NULL,
		password_updated_at DATETIME NULL,
		reset_token_hash CHAR(64) NULL,
		reset_token_expires_at DATETIME NULL,
		reset_token_issued_at DATETIME NULL,
		partner_id CHAR(36) NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_users_name (name),
		UNIQUE KEY uq_users_email (email),
		KEY idx_users_reset_token_hash (reset_token_hash)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS user_sessions (
		id CHAR(64) NOT NULL,
		data JSON NOT NULL,
		expires_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		KEY idx_user_sessions_expires (expires_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema. Safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
