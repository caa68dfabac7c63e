// Package query executes RawSql statements and binds the results into
// object graphs. A Query accumulates expressions, named parameters and
// fetch directives, assembles the final SQL at the insertion points
// recorded by the parser, and runs it through an Executor.
package query

import (
	"fmt"

	rawsql "github.com/corvid-labs/rawsql"
)

// FetchConfig tunes a secondary fetch query.
type FetchConfig struct {
	// BatchSize caps how many parent IDs one fetch statement carries.
	BatchSize int
}

type fetchSpec struct {
	path  string
	props []string
	cfg   FetchConfig
}

// Query is a single find over a RawSql statement. Methods accumulate
// state and errors; the first error surfaces at execution.
type Query struct {
	ex  *Executor
	raw *rawsql.RawSql

	where   []*predicate
	having  []*predicate
	orderBy string
	params  map[string]any
	fetches []*fetchSpec

	maxRows  int
	firstRow int
	useCache bool

	nparam int
	errs   []error
}

// New starts a query on the given executor.
func New(ex *Executor) *Query {
	return &Query{ex: ex, params: make(map[string]any)}
}

// SetRawSql sets the statement the query runs.
func (q *Query) SetRawSql(raw *rawsql.RawSql) *Query {
	q.raw = raw
	return q
}

func (q *Query) fail(err error) *Query {
	q.errs = append(q.errs, err)
	return q
}

// requireParsed records ErrUnparsed when the statement cannot accept
// injected clauses. Called by every statement-modifying method.
func (q *Query) requireParsed(what string) bool {
	if q.raw == nil {
		q.errs = append(q.errs, fmt.Errorf("query: %s before SetRawSql", what))
		return false
	}
	if !q.raw.Parsed() {
		q.errs = append(q.errs, fmt.Errorf("%w (%s)", ErrUnparsed, what))
		return false
	}
	return true
}

// Where adds a where expression on a mapped property path.
func (q *Query) Where(path, op string, value any) *Query {
	if !q.requireParsed("where") {
		return q
	}
	p, err := newPredicate(q.raw.Mapping(), path, op, value, q.nparam)
	if err != nil {
		return q.fail(err)
	}
	if p.name != "" {
		q.params[p.name] = p.arg
		q.nparam++
	}
	q.where = append(q.where, p)
	return q
}

func (q *Query) WhereEq(path string, value any) *Query { return q.Where(path, "=", value) }
func (q *Query) WhereGt(path string, value any) *Query { return q.Where(path, ">", value) }
func (q *Query) WhereGte(path string, value any) *Query { return q.Where(path, ">=", value) }
func (q *Query) WhereLt(path string, value any) *Query { return q.Where(path, "<", value) }
func (q *Query) WhereLte(path string, value any) *Query { return q.Where(path, "<=", value) }
func (q *Query) WhereIn(path string, values any) *Query { return q.Where(path, "in", values) }
func (q *Query) WhereLike(path, pattern string) *Query { return q.Where(path, "like", pattern) }
func (q *Query) WhereIsNull(path string) *Query { return q.Where(path, "is null", nil) }
func (q *Query) WhereIsNotNull(path string) *Query { return q.Where(path, "is not null", nil) }

// Having adds a having expression; the statement must have a group by
// clause for the injection point to exist.
func (q *Query) Having(path, op string, value any) *Query {
	if !q.requireParsed("having") {
		return q
	}
	if q.raw.Sections().HavingPos < 0 {
		return q.fail(fmt.Errorf("query: statement has no group by, having cannot be added"))
	}
	p, err := newPredicate(q.raw.Mapping(), path, op, value, q.nparam)
	if err != nil {
		return q.fail(err)
	}
	if p.name != "" {
		q.params[p.name] = p.arg
		q.nparam++
	}
	q.having = append(q.having, p)
	return q
}

func (q *Query) HavingGt(path string, value any) *Query { return q.Having(path, ">", value) }
func (q *Query) HavingGte(path string, value any) *Query { return q.Having(path, ">=", value) }
func (q *Query) HavingLt(path string, value any) *Query { return q.Having(path, "<", value) }
func (q *Query) HavingEq(path string, value any) *Query { return q.Having(path, "=", value) }

// OrderBy replaces the statement's default order by clause. The clause
// is raw SQL referencing result columns.
func (q *Query) OrderBy(clause string) *Query {
	if !q.requireParsed("order by") {
		return q
	}
	q.orderBy = clause
	return q
}

// SetMaxRows caps the number of rows fetched.
func (q *Query) SetMaxRows(n int) *Query {
	if !q.requireParsed("max rows") {
		return q
	}
	q.maxRows = n
	return q
}

// SetFirstRow skips the first n rows.
func (q *Query) SetFirstRow(n int) *Query {
	if !q.requireParsed("first row") {
		return q
	}
	q.firstRow = n
	return q
}

// SetParameter binds a value to a :name placeholder in the statement.
func (q *Query) SetParameter(name string, value any) *Query {
	q.params[name] = value
	return q
}

// Fetch requests a secondary query that loads the named properties of
// the entities at path after the main query has run. IDs collected from
// the bound graph are batched into select ... where id in (...)
// statements; no joins are added to the raw SQL.
func (q *Query) Fetch(path string, props []string, cfgs ...FetchConfig) *Query {
	if path == "" {
		return q.fail(fmt.Errorf("query: empty fetch path"))
	}
	if len(props) == 0 {
		return q.fail(fmt.Errorf("query: fetch %q names no properties", path))
	}
	f := &fetchSpec{path: path, props: props}
	if len(cfgs) > 0 {
		f.cfg = cfgs[0]
	}
	if f.cfg.BatchSize <= 0 {
		f.cfg.BatchSize = 100
	}
	q.fetches = append(q.fetches, f)
	return q
}

// SetUseQueryCache routes this query through the executor's result
// cache when one is configured.
func (q *Query) SetUseQueryCache(on bool) *Query {
	q.useCache = on
	return q
}

func (q *Query) firstErr() error {
	if q.raw == nil {
		return fmt.Errorf("query: no statement, call SetRawSql first")
	}
	if len(q.errs) > 0 {
		return q.errs[0]
	}
	return nil
}
