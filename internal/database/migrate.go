package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed migrations/001_users.up.sql
var usersMigrationSQL string

var requiredTables = []string{
	"users",
}

var requiredIndexes = []string{
	"users_email_lower_idx",
	"users_username_lower_idx",
}

// EnsureSchema creates the users table and its unique indexes when they are
// missing. The migration only uses IF NOT EXISTS statements, so re-running it
// is harmless.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	ready, err := db.schemaReady(ctx)
	if err != nil {
		return fmt.Errorf("check existing schema: %w", err)
	}
	if ready {
		slog.Info("database schema up to date")
		return nil
	}

	slog.Info("database schema incomplete; applying users migration")
	if _, err := db.Pool.Exec(ctx, usersMigrationSQL); err != nil {
		return fmt.Errorf("apply users migration: %w", err)
	}

	ready, err = db.schemaReady(ctx)
	if err != nil {
		return fmt.Errorf("re-check schema after migration: %w", err)
	}
	if !ready {
		return fmt.Errorf("schema initialization incomplete: required tables or indexes are still missing")
	}

	slog.Info("database schema ensured")
	return nil
}

func (db *DB) schemaReady(ctx context.Context) (bool, error) {
	var tables int
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_name = ANY($1)
	`, requiredTables).Scan(&tables)
	if err != nil {
		return false, err
	}

	var indexes int
	err = db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE schemaname = 'public'
		  AND indexname = ANY($1)
	`, requiredIndexes).Scan(&indexes)
	if err != nil {
		return false, err
	}

	return tables == len(requiredTables) && indexes == len(requiredIndexes), nil
}
