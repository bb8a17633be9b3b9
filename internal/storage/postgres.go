// Package storage provides the Postgres repositories, the Redis snapshot cache and an
// in-memory store used when no database is configured.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/babylon-scanner/internal/config"
)

const (
	applicationName  = "babylon-scanner"
	postgresDialWait = 10 * time.Second
)

// PostgresDB owns the pgx pool shared by the label, address and watchlist repositories
type PostgresDB struct {
	pool *pgxpool.Pool
}

func poolConfig(cfg *config.PostgresConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}

	maxConns := max(cfg.MaxConnections, 1)
	pc.MaxConns = int32(maxConns)         // #nosec G115 - bounded by config
	pc.MinConns = int32(min(2, maxConns)) // #nosec G115
	pc.MaxConnLifetime = time.Hour
	pc.MaxConnIdleTime = 30 * time.Minute
	pc.HealthCheckPeriod = time.Minute
	pc.ConnConfig.RuntimeParams["application_name"] = applicationName
	return pc, nil
}

// NewPostgresDB opens the pool and waits up to ten seconds for the first ping
func NewPostgresDB(ctx context.Context, cfg *config.PostgresConfig) (*PostgresDB, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, postgresDialWait)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres at %s:%s: %w", cfg.Host, cfg.Port, err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close releases every pooled connection
func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Pool returns the underlying connection pool
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}
