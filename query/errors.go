package query

import "errors"

var (
	// ErrNoRows is returned by FindOne when the query matched nothing.
	ErrNoRows = errors.New("query: no rows")

	// ErrMultipleRows is returned by FindOne when the query matched
	// more than one root entity.
	ErrMultipleRows = errors.New("query: multiple rows")

	// ErrUnparsed is returned when where/having/order-by/limit clauses
	// are added to an unparsed statement.
	ErrUnparsed = errors.New("query: statement is unparsed, clauses cannot be added")

	// ErrPathNotMapped is returned when an expression references a
	// property path the column mapping does not contain.
	ErrPathNotMapped = errors.New("query: property path not mapped")
)
