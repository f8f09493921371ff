package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
)

//go:embed migrations/001_leases.sql
var leasesMigration string

//go:embed migrations/002_history.sql
var historyMigration string

// EnsureSchema connects to each DSN in turn and applies its migration. It
// is idempotent: every statement uses IF NOT EXISTS.
func EnsureSchema(ctx context.Context, leasesDSN, historyDSN string) error {
	if err := applyMigration(ctx, leasesDSN, leasesMigration); err != nil {
		return fmt.Errorf("failed to migrate lease database: %w", err)
	}
	if err := applyMigration(ctx, historyDSN, historyMigration); err != nil {
		return fmt.Errorf("failed to migrate history database: %w", err)
	}
	return nil
}

func applyMigration(ctx context.Context, dsn, sql string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}
