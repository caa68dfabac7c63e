package connector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/corvid-labs/rawsql/dialect"
)

func init() {
	Register("postgres", postgresProvider{})
}

type postgresProvider struct{}

func (postgresProvider) Dialect() dialect.Dialect {
	return dialect.NewPostgresDialect()
}

func (postgresProvider) Connect(ctx context.Context, cfg Config) (Connection, error) {
	cfg = cfg.withPoolDefaults()

	poolCfg, err := pgxpool.ParseConfig(buildPostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("connector: parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Pool.MaxOpen)
	poolCfg.MinConns = int32(cfg.Pool.MaxIdle)
	poolCfg.MaxConnLifetime = cfg.Pool.MaxLifetime
	poolCfg.MaxConnIdleTime = cfg.Pool.MaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connector: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connector: ping: %w", err)
	}

	// One sqlx handle per connection; stdlib.OpenDBFromPool registers a
	// new driver connection each call.
	db := sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")

	return &postgresConn{
		pool:    pool,
		db:      db,
		dialect: dialect.NewPostgresDialect(),
	}, nil
}

func buildPostgresDSN(cfg Config) string {
	return NewDSNBuilder("postgres").
		Auth(cfg.Username, cfg.Password).
		Host(cfg.Host, cfg.Port).
		Database(cfg.Database).
		Param("sslmode", cfg.SSLMode).
		Params(cfg.Params).
		Build()
}

type postgresConn struct {
	pool    *pgxpool.Pool
	db      *sqlx.DB
	dialect dialect.Dialect
}

func (p *postgresConn) DB() *sqlx.DB { return p.db }

func (p *postgresConn) Dialect() dialect.Dialect { return p.dialect }

func (p *postgresConn) Health(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *postgresConn) Stats() ConnectionStats {
	s := p.pool.Stat()
	return ConnectionStats{
		OpenConnections: int(s.TotalConns()),
		InUse:           int(s.AcquiredConns()),
		Idle:            int(s.IdleConns()),
	}
}

func (p *postgresConn) Close() error {
	err := p.db.Close()
	p.pool.Close()
	return err
}
