// Package rawsql builds object graphs from hand-written SQL statements
// rather than generated ones. A RawSql value pairs an SQL statement with
// a mapping from result columns to entity property paths ("order.id",
// "order.customer.name", "totalAmount") and is consumed by the query
// package, which can still inject extra where/having expressions into
// parsed statements at the recorded insertion points.
package rawsql

import (
	"strings"

	"github.com/corvid-labs/rawsql/utils"
)

// RawSql is an immutable SQL statement plus its column-to-path mapping.
// Build one with Parse or Unparsed followed by Create.
type RawSql struct {
	sql     *Sql
	mapping *ColumnMapping
	key     uint64
}

// Sql holds the statement split at the points where extra expressions
// may be injected. For an unparsed statement only Body is populated.
type Sql struct {
	Body     string
	Distinct bool
	Parsed   bool

	// Insertion points are byte offsets into Body. A negative offset
	// means the clause cannot be injected.
	WherePos  int
	WhereAnd  bool
	HavingPos int
	HavingAnd bool

	// OrderBy is the trailing ORDER BY clause stripped from Body, kept
	// as the default ordering.
	OrderBy string
}

// SQL returns the statement body without any injected expressions.
func (r *RawSql) SQL() string { return r.sql.Body }

// Mapping returns the column mapping in select-clause order.
func (r *RawSql) Mapping() *ColumnMapping { return r.mapping }

// Parsed reports whether extra expressions can be injected.
func (r *RawSql) Parsed() bool { return r.sql.Parsed }

// DefaultOrderBy returns the ORDER BY clause parsed out of the statement,
// or "" when none was present.
func (r *RawSql) DefaultOrderBy() string { return r.sql.OrderBy }

// PlanKey identifies this statement+mapping pair for plan caching.
func (r *RawSql) PlanKey() uint64 { return r.key }

// Sections exposes the parsed statement sections. The returned value is
// shared; callers must not modify it.
func (r *RawSql) Sections() *Sql { return r.sql }

func newRawSql(sql *Sql, mapping *ColumnMapping) *RawSql {
	var sb strings.Builder
	sb.WriteString(sql.Body)
	sb.WriteByte('|')
	sb.WriteString(sql.OrderBy)
	for _, c := range mapping.columns {
		sb.WriteByte('|')
		sb.WriteString(c.DbColumn)
		sb.WriteByte(':')
		sb.WriteString(c.Path)
	}
	return &RawSql{
		sql:     sql,
		mapping: mapping,
		key:     utils.FingerprintString(sb.String()),
	}
}
