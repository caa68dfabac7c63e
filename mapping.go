package rawsql

import "fmt"

// Column is one select-clause column and the property path its values
// are written to. Index is the position in the result set.
type Column struct {
	Index    int
	DbColumn string
	Alias    string
	Path     string
	Ignore   bool
}

// Label returns the identifier the column is addressed by in an explicit
// mapping: the alias when present, else the column expression itself.
func (c *Column) Label() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.DbColumn
}

// ColumnMapping is the ordered set of result columns. Order matches the
// select clause; the graph binder relies on positional correspondence
// with the scanned row.
type ColumnMapping struct {
	columns []*Column
	byPath  map[string]*Column
}

func newColumnMapping(columns []*Column) (*ColumnMapping, error) {
	m := &ColumnMapping{
		columns: columns,
		byPath:  make(map[string]*Column, len(columns)),
	}
	for _, c := range columns {
		if c.Ignore {
			continue
		}
		if c.Path == "" {
			return nil, fmt.Errorf("rawsql: column %q has no property path", c.DbColumn)
		}
		if prev, dup := m.byPath[c.Path]; dup {
			return nil, fmt.Errorf("rawsql: columns %q and %q both map to path %q", prev.DbColumn, c.DbColumn, c.Path)
		}
		m.byPath[c.Path] = c
	}
	return m, nil
}

// Columns returns the columns in select-clause order. The slice is
// shared; callers must not modify it.
func (m *ColumnMapping) Columns() []*Column { return m.columns }

// Len returns the number of result columns, ignored ones included.
func (m *ColumnMapping) Len() int { return len(m.columns) }

// ColumnFor returns the column mapped to the given property path.
func (m *ColumnMapping) ColumnFor(path string) (*Column, bool) {
	c, ok := m.byPath[path]
	return c, ok
}

// Paths returns every mapped property path in select-clause order.
func (m *ColumnMapping) Paths() []string {
	paths := make([]string, 0, len(m.columns))
	for _, c := range m.columns {
		if !c.Ignore {
			paths = append(paths, c.Path)
		}
	}
	return paths
}
