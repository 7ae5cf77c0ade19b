package store

import (
	"context"
	"fmt"

	"capital_waterfall/pkg/core/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a pgx connection pool for dsn and verifies it with a ping.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return pool, nil
}

// Open builds the store selected by cfg. The returned close func releases
// the pool, if any, and is always safe to call.
func Open(ctx context.Context, cfg config.StoreConfig) (ScenarioStore, func(), error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := NewPool(ctx, cfg.DSN)
		if err != nil {
			return nil, func() {}, err
		}
		st := NewPGScenarioStore(pool)
		if err := st.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, func() {}, err
		}
		return st, pool.Close, nil
	case "file", "":
		st, err := NewFileScenarioStore(cfg.Dir)
		if err != nil {
			return nil, func() {}, err
		}
		return st, func() {}, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
