package rawsql

import (
	"fmt"
	"strings"
)

// Builder assembles a RawSql. Errors accumulate and surface at Create,
// so calls can be chained without intermediate checks.
type Builder struct {
	stmt   string
	parsed bool
	res    *parseResult

	colMappings  map[string]string
	ignores      map[string]struct{}
	aliasMapping map[string]string
	unparsedCols []*Column

	errors []error
}

// Parse builds a RawSql whose statement is parsed for clause boundaries
// and ${where}/${andWhere}/${having}/${andHaving} insertion points.
// Extra where/having expressions and a replacement order by can then be
// injected by the query layer.
func Parse(stmt string) *Builder {
	b := newBuilder(stmt, true)
	res, err := parseStatement(stmt)
	if err != nil {
		b.addError(err)
		return b
	}
	b.res = res
	return b
}

// Unparsed builds a RawSql whose statement is taken verbatim. Nothing
// can be injected into it, and every result column must be mapped (or
// ignored) explicitly since there is no parsed select clause.
func Unparsed(stmt string) *Builder {
	b := newBuilder(stmt, false)
	if strings.TrimSpace(stmt) == "" {
		b.addError(fmt.Errorf("rawsql: empty sql statement"))
	}
	return b
}

func newBuilder(stmt string, parsed bool) *Builder {
	return &Builder{
		stmt:         stmt,
		parsed:       parsed,
		colMappings:  make(map[string]string),
		ignores:      make(map[string]struct{}),
		aliasMapping: make(map[string]string),
	}
}

// ColumnMapping maps a result column to an entity property path, e.g.
// ("order_id", "order.id"). For a parsed statement it overrides the
// mapping derived from the select clause; for an unparsed statement it
// appends the next result column in call order.
func (b *Builder) ColumnMapping(dbColumn, propertyPath string) *Builder {
	if !validPath(propertyPath) {
		b.addError(fmt.Errorf("rawsql: invalid property path %q for column %q", propertyPath, dbColumn))
		return b
	}
	if b.parsed {
		b.colMappings[dbColumn] = propertyPath
		return b
	}
	b.unparsedCols = append(b.unparsedCols, &Column{
		Index:    len(b.unparsedCols),
		DbColumn: dbColumn,
		Path:     propertyPath,
	})
	return b
}

// ColumnMappingIgnore marks a result column as scanned-and-discarded.
func (b *Builder) ColumnMappingIgnore(dbColumn string) *Builder {
	if b.parsed {
		b.ignores[dbColumn] = struct{}{}
		return b
	}
	b.unparsedCols = append(b.unparsedCols, &Column{
		Index:    len(b.unparsedCols),
		DbColumn: dbColumn,
		Ignore:   true,
	})
	return b
}

// TableAliasMapping maps a table alias to a property path so that every
// column with that prefix maps without individual ColumnMapping calls:
// ("c", "customer") turns c.name into customer.name.
func (b *Builder) TableAliasMapping(alias, propertyPath string) *Builder {
	if !b.parsed {
		b.addError(fmt.Errorf("rawsql: TableAliasMapping requires a parsed statement"))
		return b
	}
	if alias == "" || !validPath(propertyPath) {
		b.addError(fmt.Errorf("rawsql: invalid table alias mapping %q -> %q", alias, propertyPath))
		return b
	}
	b.aliasMapping[alias] = propertyPath
	return b
}

// Create validates the accumulated configuration and freezes the RawSql.
func (b *Builder) Create() (*RawSql, error) {
	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}
	if b.parsed {
		return b.createParsed()
	}
	return b.createUnparsed()
}

// MustCreate is Create for statements known to be valid; it panics on
// error.
func (b *Builder) MustCreate() *RawSql {
	r, err := b.Create()
	if err != nil {
		panic(err)
	}
	return r
}

func (b *Builder) createParsed() (*RawSql, error) {
	used := make(map[string]bool, len(b.colMappings))
	columns := make([]*Column, 0, len(b.res.columns))

	for i, pc := range b.res.columns {
		c := &Column{Index: i, DbColumn: pc.column, Alias: pc.alias}
		if _, ok := b.ignores[c.DbColumn]; ok {
			c.Ignore = true
		} else if _, ok := b.ignores[c.Label()]; ok {
			c.Ignore = true
		}
		if !c.Ignore {
			path, err := b.resolvePath(c, used)
			if err != nil {
				return nil, err
			}
			c.Path = path
		}
		columns = append(columns, c)
	}

	for col := range b.colMappings {
		if !used[col] {
			return nil, fmt.Errorf("rawsql: column mapping for %q matches no select column", col)
		}
	}

	mapping, err := newColumnMapping(columns)
	if err != nil {
		return nil, err
	}
	return newRawSql(b.res.sql, mapping), nil
}

func (b *Builder) createUnparsed() (*RawSql, error) {
	if len(b.unparsedCols) == 0 {
		return nil, fmt.Errorf("rawsql: unparsed statement needs explicit column mappings")
	}
	mapping, err := newColumnMapping(b.unparsedCols)
	if err != nil {
		return nil, err
	}
	sql := &Sql{Body: strings.TrimSpace(b.stmt), WherePos: -1, HavingPos: -1}
	return newRawSql(sql, mapping), nil
}

// resolvePath picks the property path for a parsed column: an explicit
// mapping (by column text or alias) wins, then the alias, then the
// column name with its table-alias prefix translated.
func (b *Builder) resolvePath(c *Column, used map[string]bool) (string, error) {
	if path, ok := b.colMappings[c.DbColumn]; ok {
		used[c.DbColumn] = true
		return path, nil
	}
	if c.Alias != "" {
		if path, ok := b.colMappings[c.Alias]; ok {
			used[c.Alias] = true
			return path, nil
		}
		return c.Alias, nil
	}
	name := c.DbColumn
	if i := strings.IndexByte(name, '.'); i >= 0 {
		prefix, col := name[:i], name[i+1:]
		if !isIdentifier(prefix) || !isIdentifier(col) {
			return "", fmt.Errorf("rawsql: column %q needs a ColumnMapping or ColumnMappingIgnore", name)
		}
		if path, ok := b.aliasMapping[prefix]; ok {
			return path + "." + col, nil
		}
		return col, nil
	}
	if !isIdentifier(name) {
		return "", fmt.Errorf("rawsql: column %q needs a ColumnMapping or ColumnMappingIgnore", name)
	}
	return name, nil
}

func (b *Builder) addError(err error) {
	if err != nil {
		b.errors = append(b.errors, err)
	}
}

// validPath accepts dot-separated identifier segments.
func validPath(path string) bool {
	if path == "" {
		return false
	}
	for _, seg := range strings.Split(path, ".") {
		if !isIdentifier(seg) {
			return false
		}
	}
	return true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
