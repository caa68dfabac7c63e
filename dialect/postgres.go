package dialect

import "strconv"

type Postgres struct{}

func NewPostgresDialect() Dialect {
	return &Postgres{}
}

func (p Postgres) Name() string {
	return "pgx"
}

func (p Postgres) QuoteIdentifier(name string) string {
	return `"` + name + `"`
}

func (p Postgres) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (p Postgres) LimitOffset(limit, offset int) string {
	s := ""
	if limit > 0 {
		s += " limit " + strconv.Itoa(limit)
	}
	if offset > 0 {
		s += " offset " + strconv.Itoa(offset)
	}
	return s
}
