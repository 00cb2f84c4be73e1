// Package postgres implements the database abstractions on Postgres. Each
// collection is a table holding one JSONB document per row:
//
//	CREATE TABLE users (
//	    id  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//	    doc JSONB NOT NULL
//	);
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/coreapi/internal/database"
)

// ProviderName identifies this backend in errors, logs and metrics.
const ProviderName = "postgres"

const defaultConnectTimeout = 10 * time.Second

// Pool is the subset of *pgxpool.Pool used by the collections. It is satisfied
// by pgxmock pools in tests.
type Pool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Config controls the pool created for each connection.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
}

// Provider dials Postgres pools from a single DSN.
type Provider struct {
	poolCfg *pgxpool.Config
	timeout time.Duration
	logger  *zap.Logger

	// newPool is swapped in tests.
	newPool func(ctx context.Context, cfg *pgxpool.Config) (Pool, error)
}

// NewProvider parses the DSN once and returns a Provider.
func NewProvider(cfg Config, logger *zap.Logger) (*Provider, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	poolCfg.ConnConfig.ConnectTimeout = timeout
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		poolCfg: poolCfg,
		timeout: timeout,
		logger:  logger,
		newPool: func(ctx context.Context, cfg *pgxpool.Config) (Pool, error) {
			return pgxpool.NewWithConfig(ctx, cfg)
		},
	}, nil
}

// Name implements database.Provider.
func (p *Provider) Name() string { return ProviderName }

// Connect creates a pool and pings it. pgxpool connects lazily, so the ping is
// what surfaces unreachable or unauthorized servers.
func (p *Provider) Connect(ctx context.Context) (database.Connection, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	pool, err := p.newPool(ctx, p.poolCfg.Copy())
	if err != nil {
		return nil, database.NewConnectionError(ProviderName, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, database.NewConnectionError(ProviderName, err)
	}
	p.logger.Debug("postgres pool ready",
		zap.String("host", p.poolCfg.ConnConfig.Host),
		zap.String("database", p.poolCfg.ConnConfig.Database),
	)
	return NewConnection(pool), nil
}

// Connection wraps a pool.
type Connection struct {
	pool Pool
}

// NewConnection wraps an existing pool (primarily for testing).
func NewConnection(pool Pool) *Connection {
	return &Connection{pool: pool}
}

// Collection implements database.Connection.
func (c *Connection) Collection(name string) database.Collection {
	return &Collection{pool: c.pool, name: name}
}

// Ping implements database.Connection.
func (c *Connection) Ping(ctx context.Context) error {
	if err := c.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

// Close implements database.Connection.
func (c *Connection) Close(_ context.Context) error {
	c.pool.Close()
	return nil
}
