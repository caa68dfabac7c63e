package query

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	logger "github.com/ipsusila/slog"
	"github.com/jmoiron/sqlx"

	"github.com/corvid-labs/rawsql/cache"
	"github.com/corvid-labs/rawsql/dialect"
	"github.com/corvid-labs/rawsql/graph"
	"github.com/corvid-labs/rawsql/utils"
)

// Executor runs queries against one database. It is safe for
// concurrent use.
type Executor struct {
	db      *sqlx.DB
	dialect dialect.Dialect
	log     logger.Logger
	stmts   *cache.StatementCache
	results cache.ResultCache
}

type Option func(*Executor)

// WithLogger enables trace/debug logging of executed statements.
func WithLogger(l logger.Logger) Option {
	return func(ex *Executor) { ex.log = l }
}

// WithStatementCache prepares main-query statements and keeps them on
// an LRU of the given size.
func WithStatementCache(size int) Option {
	return func(ex *Executor) { ex.stmts = cache.NewStatementCache(size) }
}

// WithResultCache enables the result cache for queries that opt in via
// SetUseQueryCache.
func WithResultCache(rc cache.ResultCache) Option {
	return func(ex *Executor) { ex.results = rc }
}

func NewExecutor(db *sqlx.DB, d dialect.Dialect, opts ...Option) *Executor {
	ex := &Executor{db: db, dialect: d}
	for _, opt := range opts {
		opt(ex)
	}
	return ex
}

// Close releases the prepared statement cache, not the database.
func (ex *Executor) Close() error {
	if ex.stmts != nil {
		return ex.stmts.Close()
	}
	return nil
}

func (ex *Executor) trace(msg string, fields ...any) {
	if ex.log != nil && ex.log.HasLevel(logger.TraceLevel) {
		ex.log.Tracew(msg, fields...)
	}
}

func (ex *Executor) debug(msg string, fields ...any) {
	if ex.log != nil && ex.log.HasLevel(logger.DebugLevel) {
		ex.log.Debugw(msg, fields...)
	}
}

func (ex *Executor) logError(err error, msg string, fields ...any) {
	if err != nil && ex.log != nil {
		ex.log.Errorw(msg, append(fields, "error", err)...)
	}
}

// queryRows runs the statement, through the prepared statement cache
// when one is configured.
func (ex *Executor) queryRows(ctx context.Context, sqlText string, args []any) (*sqlx.Rows, error) {
	if ex.stmts != nil {
		stmt, err := ex.stmts.GetOrPrepare(utils.FingerprintString(sqlText), ex.db, sqlText)
		if err != nil {
			return nil, fmt.Errorf("query: prepare: %w", err)
		}
		return stmt.QueryxContext(ctx, args...)
	}
	return ex.db.QueryxContext(ctx, sqlText, args...)
}

// buildSQL assembles the final statement: having and where predicates
// go in at the recorded insertion points (having first, it sits at the
// higher offset), then order by, then limit/offset. Named parameters
// are bound last in a single pass with in-clause expansion.
func (q *Query) buildSQL() (string, []any, error) {
	body, err := q.assemble(true)
	if err != nil {
		return "", nil, err
	}
	return q.bindParams(body)
}

// countSQL wraps the statement, without ordering or paging, in a
// select count(*).
func (q *Query) countSQL() (string, []any, error) {
	body, err := q.assemble(false)
	if err != nil {
		return "", nil, err
	}
	return q.bindParams("select count(*) from (" + body + ") cnt")
}

func (q *Query) assemble(paging bool) (string, error) {
	sec := q.raw.Sections()
	body := sec.Body

	if len(q.having) > 0 {
		glue := " having "
		if sec.HavingAnd {
			glue = " and "
		}
		body = body[:sec.HavingPos] + glue + joinPredicates(q.having) + body[sec.HavingPos:]
	}
	if len(q.where) > 0 {
		if sec.WherePos < 0 {
			return "", fmt.Errorf("query: statement has no where insertion point")
		}
		glue := " where "
		if sec.WhereAnd {
			glue = " and "
		}
		body = body[:sec.WherePos] + glue + joinPredicates(q.where) + body[sec.WherePos:]
	}

	if !paging {
		return body, nil
	}
	ob := q.orderBy
	if ob == "" {
		ob = sec.OrderBy
	}
	if ob != "" {
		body += " order by " + ob
	}
	return body + q.ex.dialect.LimitOffset(q.maxRows, q.firstRow), nil
}

func (q *Query) bindParams(body string) (string, []any, error) {
	if len(q.params) == 0 {
		return body, nil, nil
	}
	stmt, args, err := sqlx.Named(body, q.params)
	if err != nil {
		return "", nil, fmt.Errorf("query: bind named parameters: %w", err)
	}
	stmt, args, err = sqlx.In(stmt, args...)
	if err != nil {
		return "", nil, fmt.Errorf("query: expand in clauses: %w", err)
	}
	stmt = sqlx.Rebind(sqlx.BindType(q.ex.dialect.Name()), stmt)
	return stmt, args, nil
}

// FindList executes the query and binds every root entity into dest,
// which must be a pointer to a slice of the root entity type (or of
// pointers to it). Secondary fetch queries run after the main bind.
func (q *Query) FindList(ctx context.Context, dest any) error {
	if err := q.firstErr(); err != nil {
		return err
	}
	rootType, err := rootTypeOf(dest)
	if err != nil {
		return err
	}
	binder, err := graph.New(q.raw, rootType)
	if err != nil {
		return err
	}

	sqlText, args, err := q.buildSQL()
	if err != nil {
		return err
	}

	qid := uuid.NewString()
	q.ex.trace("execute", "qid", qid, "sql", sqlText, "args", args)

	n, err := q.runAndBind(ctx, binder, dest, sqlText, args, qid)
	if err != nil {
		q.ex.logError(err, "execute failed", "qid", qid)
		return err
	}
	q.ex.debug("bound", "qid", qid, "roots", n)

	for _, f := range q.fetches {
		if err := q.runFetch(ctx, binder.Meta(), f, reflect.ValueOf(dest).Elem(), qid); err != nil {
			q.ex.logError(err, "fetch failed", "qid", qid, "path", f.path)
			return err
		}
	}
	return nil
}

// runAndBind acquires rows from the result cache or the database and
// feeds them to the binder.
func (q *Query) runAndBind(ctx context.Context, binder *graph.Binder, dest any, sqlText string, args []any, qid string) (int, error) {
	if q.useCache && q.ex.results != nil {
		key := cache.ResultKey(q.raw.PlanKey(), utils.FingerprintString(fmt.Sprintf("%v", args)))
		if rs, hit, err := q.ex.results.Get(ctx, key); err != nil {
			return 0, err
		} else if hit {
			q.ex.trace("result cache hit", "qid", qid, "key", key)
			return binder.BindAll(rs.Iter(), dest)
		}

		rows, err := q.ex.queryRows(ctx, sqlText, args)
		if err != nil {
			return 0, err
		}
		rs, err := cache.Capture(rows)
		rows.Close()
		if err != nil {
			return 0, err
		}
		if err := q.ex.results.Set(ctx, key, rs); err != nil {
			return 0, err
		}
		return binder.BindAll(rs.Iter(), dest)
	}

	rows, err := q.ex.queryRows(ctx, sqlText, args)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	return binder.BindAll(rows, dest)
}

// FindOne executes the query expecting exactly one root entity and
// writes it to dest, a pointer to the entity struct. ErrNoRows and
// ErrMultipleRows report the two failure modes.
func (q *Query) FindOne(ctx context.Context, dest any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() || dv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("query: FindOne dest must be a non-nil pointer to a struct")
	}
	tmp := reflect.New(reflect.SliceOf(dv.Elem().Type()))
	if err := q.FindList(ctx, tmp.Interface()); err != nil {
		return err
	}
	switch n := tmp.Elem().Len(); {
	case n == 0:
		return ErrNoRows
	case n > 1:
		return fmt.Errorf("%w: got %d", ErrMultipleRows, n)
	}
	dv.Elem().Set(tmp.Elem().Index(0))
	return nil
}

// FindCount runs the statement, with any injected predicates, wrapped
// in select count(*).
func (q *Query) FindCount(ctx context.Context) (int64, error) {
	if err := q.firstErr(); err != nil {
		return 0, err
	}
	sqlText, args, err := q.countSQL()
	if err != nil {
		return 0, err
	}

	qid := uuid.NewString()
	q.ex.trace("execute count", "qid", qid, "sql", sqlText, "args", args)

	var count int64
	if err := q.ex.db.GetContext(ctx, &count, sqlText, args...); err != nil {
		q.ex.logError(err, "count failed", "qid", qid)
		return 0, fmt.Errorf("query: count: %w", err)
	}
	return count, nil
}

func rootTypeOf(dest any) (reflect.Type, error) {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() || dv.Elem().Kind() != reflect.Slice {
		return nil, fmt.Errorf("query: dest must be a non-nil pointer to a slice")
	}
	t := dv.Elem().Type().Elem()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("query: dest element type %s is not a struct", t)
	}
	return t, nil
}
