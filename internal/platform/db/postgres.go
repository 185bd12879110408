package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions tunes the connection pool. Zero values keep the pgxpool defaults.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// New creates a new PostgreSQL connection pool and verifies it with a ping.
func New(ctx context.Context, dsn string, opts ...PoolOptions) (*pgxpool.Pool, error) {
	config, err := ParseConfig(dsn, opts...)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("platform/db: new pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("platform/db: ping: %w", err)
	}

	return pool, nil
}

// ParseConfig parses dsn and applies opts.
func ParseConfig(dsn string, opts ...PoolOptions) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: parse config: %w", err)
	}
	for _, opt := range opts {
		if opt.MaxConns > 0 {
			config.MaxConns = opt.MaxConns
		}
		if opt.MinConns > 0 {
			config.MinConns = opt.MinConns
		}
		if opt.MaxConnLifetime > 0 {
			config.MaxConnLifetime = opt.MaxConnLifetime
		}
	}
	if config.MinConns > config.MaxConns {
		return nil, fmt.Errorf("platform/db: min conns %d exceeds max conns %d", config.MinConns, config.MaxConns)
	}
	return config, nil
}
