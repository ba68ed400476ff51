package db

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harberts01/Ai-Blog/internal/logging"
)

//go:embed schema.sql
var schema string

// Migrate applies the idempotent schema. Every statement uses IF NOT EXISTS
// or CREATE OR REPLACE, so it is safe to run on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	// No arguments: pgx sends this over the simple protocol, which accepts
	// multiple statements.
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logging.Component("db").Info().Msg("schema applied")
	return nil
}
