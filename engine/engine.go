// Package engine ties the pieces together: a connection, a dialect, a
// plan cache and a query executor behind one handle. Applications that
// do not need to wire those individually start here.
package engine

import (
	"context"

	"github.com/jmoiron/sqlx"

	rawsql "github.com/corvid-labs/rawsql"
	"github.com/corvid-labs/rawsql/cache"
	"github.com/corvid-labs/rawsql/connector"
	"github.com/corvid-labs/rawsql/dialect"
	"github.com/corvid-labs/rawsql/query"
	"github.com/corvid-labs/rawsql/utils"
)

const defaultPlanCacheSize = 256

type Engine struct {
	db      *sqlx.DB
	dialect dialect.Dialect
	ex      *query.Executor
	plans   *cache.PlanCache

	// conn is set when the engine opened the connection itself and
	// owns its lifecycle.
	conn connector.Connection
}

// New builds an engine on an existing database handle.
func New(db *sqlx.DB, d dialect.Dialect, opts ...query.Option) *Engine {
	return &Engine{
		db:      db,
		dialect: d,
		ex:      query.NewExecutor(db, d, opts...),
		plans:   cache.NewPlanCache(defaultPlanCacheSize),
	}
}

// Connect opens a connection through the named connector provider and
// builds an engine on it. Close releases the connection.
func Connect(ctx context.Context, provider string, cfg connector.Config, opts ...query.Option) (*Engine, error) {
	conn, err := connector.Open(ctx, provider, cfg)
	if err != nil {
		return nil, err
	}
	e := New(conn.DB(), conn.Dialect(), opts...)
	e.conn = conn
	return e, nil
}

func (e *Engine) DB() *sqlx.DB { return e.db }

func (e *Engine) Dialect() dialect.Dialect { return e.dialect }

// Plan parses stmt once and caches the result by statement text. The
// configure callback sets up column and table alias mappings; it must
// be deterministic for a given statement, the cache key does not cover
// it.
func (e *Engine) Plan(stmt string, configure func(*rawsql.Builder)) (*rawsql.RawSql, error) {
	return e.plans.GetOrBuild(utils.FingerprintString(stmt), func() (*rawsql.RawSql, error) {
		b := rawsql.Parse(stmt)
		if configure != nil {
			configure(b)
		}
		return b.Create()
	})
}

// Query starts a query over a previously built statement.
func (e *Engine) Query(raw *rawsql.RawSql) *query.Query {
	return query.New(e.ex).SetRawSql(raw)
}

func (e *Engine) Health(ctx context.Context) error {
	if e.conn != nil {
		return e.conn.Health(ctx)
	}
	return e.db.PingContext(ctx)
}

func (e *Engine) Close() error {
	err := e.ex.Close()
	if e.conn != nil {
		if cerr := e.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
