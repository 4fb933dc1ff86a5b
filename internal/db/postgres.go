package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/trial-session-booking/internal/config"
)

// PoolConfig parses the DSN and applies the configured pool limits.
func PoolConfig(cfg config.Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	limits := cfg.Postgres
	if limits.MaxConns > 0 {
		poolCfg.MaxConns = limits.MaxConns
	}
	if limits.MinConns > 0 && limits.MinConns <= poolCfg.MaxConns {
		poolCfg.MinConns = limits.MinConns
	}
	if limits.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = limits.MaxConnLifetime
	}
	if limits.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = limits.MaxConnIdleTime
	}
	if limits.HealthCheck > 0 {
		poolCfg.HealthCheckPeriod = limits.HealthCheck
	}

	return poolCfg, nil
}

// ConnectPostgres opens the session store pool and fails fast when the
// database is unreachable.
func ConnectPostgres(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}
