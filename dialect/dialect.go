package dialect

type Dialect interface {
	// Name is the database/sql driver name, as understood by
	// sqlx.Rebind and friends.
	Name() string
	QuoteIdentifier(name string) string
	Placeholder(n int) string
	LimitOffset(limit, offset int) string
}
