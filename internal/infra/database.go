// Package infra opens the Postgres pool and Redis client the service runs on
// and applies the embedded schema.
package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	minPoolConns        = 2
	maxPoolConns        = 25
	poolIdleTime        = 5 * time.Minute
	poolHealthCheck     = 30 * time.Second
	postgresDialTimeout = 5 * time.Second
)

// NewPostgresPool opens the pool holding the ledger and user tables. Sessions
// carry appName as application_name so ledger locks are attributable in
// pg_stat_activity.
func NewPostgresPool(ctx context.Context, url, appName string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConns < maxPoolConns {
		cfg.MaxConns = maxPoolConns
	}
	cfg.MinConns = minPoolConns
	cfg.MaxConnIdleTime = poolIdleTime
	cfg.HealthCheckPeriod = poolHealthCheck
	if cfg.ConnConfig.ConnectTimeout == 0 {
		cfg.ConnConfig.ConnectTimeout = postgresDialTimeout
	}
	if appName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = appName
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}
