package query

import (
	"fmt"
	"strings"

	rawsql "github.com/corvid-labs/rawsql"
)

// predicate is one accumulated where/having expression, rendered with
// named placeholders so the whole statement goes through a single
// sqlx.Named pass together with the user's :param values.
type predicate struct {
	sql  string
	name string // generated parameter name, "" when the predicate is unary
	arg  any
}

var operators = map[string]struct{}{
	"=": {}, "<>": {}, "!=": {},
	">": {}, ">=": {}, "<": {}, "<=": {},
	"like": {}, "in": {}, "not in": {},
}

// newPredicate translates a property path expression into SQL against
// the mapped DB column. Select-clause aliases are not usable in where
// or having, so the column expression itself is used.
func newPredicate(mapping *rawsql.ColumnMapping, path, op string, arg any, n int) (*predicate, error) {
	col, ok := mapping.ColumnFor(path)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPathNotMapped, path)
	}
	op = strings.ToLower(strings.TrimSpace(op))

	switch op {
	case "is null", "is not null":
		return &predicate{sql: col.DbColumn + " " + op}, nil
	}
	if _, ok := operators[op]; !ok {
		return nil, fmt.Errorf("query: unsupported operator %q", op)
	}

	name := fmt.Sprintf("qp%d", n)
	var sql string
	if op == "in" || op == "not in" {
		sql = col.DbColumn + " " + op + " (:" + name + ")"
	} else {
		sql = col.DbColumn + " " + op + " :" + name
	}
	return &predicate{sql: sql, name: name, arg: arg}, nil
}

// joinPredicates renders ps as a single and-joined clause.
func joinPredicates(ps []*predicate) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.sql
	}
	return strings.Join(parts, " and ")
}
