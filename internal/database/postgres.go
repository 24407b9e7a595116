package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations creates the relay's tables if they do not exist. The
// wider monitor application owns the authoritative schema; these
// statements only make a standalone relay deployable on an empty
// database.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS workflow_messages (
			message_id      BIGSERIAL PRIMARY KEY,
			message_type    TEXT NOT NULL,
			sender_agent    TEXT NOT NULL,
			recipient_agent TEXT,
			queue_name      TEXT,
			run_id          TEXT,
			message_content JSONB NOT NULL,
			sent_at         TIMESTAMPTZ NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS workflow_messages_run_id_idx ON workflow_messages (run_id)`,
		`CREATE INDEX IF NOT EXISTS workflow_messages_sent_at_idx ON workflow_messages (sent_at)`,
		`CREATE TABLE IF NOT EXISTS system_agents (
			instance_name  TEXT PRIMARY KEY,
			status         TEXT NOT NULL,
			last_heartbeat TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
