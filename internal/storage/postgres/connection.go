package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"
)

//go:embed schema.sql
var schemaSQL string

// PostgresDB wraps the connection pool and a dollar-placeholder statement builder
type PostgresDB struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
	logger  arbor.ILogger
}

// NewPostgresDB opens and verifies a pgx connection pool
func NewPostgresDB(ctx context.Context, logger arbor.ILogger, config *common.PostgresConfig) (*PostgresDB, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("postgres url is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres url: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	db := &PostgresDB{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger:  logger,
	}

	if config.EnsureSchema {
		if _, err := pool.Exec(ctx, schemaSQL); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
		logger.Debug().Msg("Postgres schema ensured")
	}

	logger.Debug().Int("max_conns", int(poolConfig.MaxConns)).Msg("Postgres pool initialized")
	return db, nil
}

// Pool returns the underlying pgx pool
func (d *PostgresDB) Pool() *pgxpool.Pool {
	return d.pool
}

// Close releases all pooled connections
func (d *PostgresDB) Close() error {
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}
