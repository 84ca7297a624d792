// Package postgres implements the hot tier's durable store.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect creates a pgx pool and verifies the connection.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database connected", "min_conns", poolCfg.MinConns, "max_conns", poolCfg.MaxConns)
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS sentiment (
	id          bigserial PRIMARY KEY,
	symbol      varchar(10) NOT NULL,
	score       double precision NOT NULL,
	label       varchar(20) NOT NULL,
	confidence  double precision NOT NULL,
	source_text text NOT NULL DEFAULT '',
	source_type varchar(32) NOT NULL DEFAULT '',
	key_factors text NOT NULL DEFAULT '',
	ts          timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sentiment_symbol_ts ON sentiment (symbol, ts DESC);
CREATE INDEX IF NOT EXISTS idx_sentiment_ts ON sentiment (ts);
`

// InitSchema creates the sentiment table and indexes. Idempotent:
// re-running against an existing schema is a no-op.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize sentiment schema: %w", err)
	}
	return nil
}
