package dialect

import "strconv"

type SQLite struct{}

func NewSQLiteDialect() Dialect {
	return &SQLite{}
}

func (s SQLite) Name() string {
	return "sqlite3"
}

func (s SQLite) QuoteIdentifier(name string) string {
	return `"` + name + `"`
}

func (s SQLite) Placeholder(n int) string {
	return "?"
}

func (s SQLite) LimitOffset(limit, offset int) string {
	out := ""
	if limit > 0 {
		out += " limit " + strconv.Itoa(limit)
	}
	if offset > 0 {
		if limit <= 0 {
			out += " limit -1"
		}
		out += " offset " + strconv.Itoa(offset)
	}
	return out
}
