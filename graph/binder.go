// Package graph assembles object graphs from raw SQL result rows. A
// Binder is compiled once per RawSql + root entity type and then scans
// any number of row sets: one-to-one paths allocate nested entities on
// demand, one-to-many paths group consecutive rows by the root ID and
// append to collections.
package graph

import (
	"fmt"
	"reflect"

	rawsql "github.com/corvid-labs/rawsql"
	"github.com/corvid-labs/rawsql/schema"
)

// Rows is the subset of sql.Rows / sqlx.Rows the binder needs, so cached
// row sets can be replayed through the same code path.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// binding ties one result column to its resolved property path.
type binding struct {
	col  *rawsql.Column
	path *schema.Path
}

// Binder scans rows into a slice of root entities.
type Binder struct {
	meta     *schema.EntityMeta
	bindings []*binding // positional, nil for ignored columns

	// rootKey is the binding for the root entity's ID column, nil when
	// the mapping does not include it.
	rootKey *binding
	hasMany bool

	// keyGen produces synthetic row keys when no root ID is mapped.
	keyGen schema.IDGenerator
}

// New compiles the column mapping of raw against the root entity type.
func New(raw *rawsql.RawSql, rootType reflect.Type) (*Binder, error) {
	meta, err := schema.Introspect(rootType)
	if err != nil {
		return nil, err
	}

	b := &Binder{
		meta:     meta,
		bindings: make([]*binding, raw.Mapping().Len()),
		keyGen:   schema.NewULIDGenerator(),
	}

	for i, col := range raw.Mapping().Columns() {
		if col.Ignore {
			continue
		}
		path, err := schema.ResolvePath(meta, col.Path)
		if err != nil {
			return nil, fmt.Errorf("graph: column %q: %w", col.DbColumn, err)
		}
		bd := &binding{col: col, path: path}
		b.bindings[i] = bd
		if path.ManyIndex >= 0 {
			b.hasMany = true
		}
		if len(path.Steps) == 0 && path.Terminal.IsID {
			b.rootKey = bd
		}
	}

	if b.hasMany && b.rootKey == nil {
		return nil, fmt.Errorf("graph: one-to-many paths require the root ID column in the mapping")
	}
	return b, nil
}

// Meta returns the root entity metadata.
func (b *Binder) Meta() *schema.EntityMeta { return b.meta }

// BindAll scans every row into dest, which must be a pointer to a slice
// of the root entity type (or of pointers to it). It returns the number
// of root entities built.
func (b *Binder) BindAll(rows Rows, dest any) (int, error) {
	destVal := reflect.ValueOf(dest)
	if destVal.Kind() != reflect.Ptr || destVal.Elem().Kind() != reflect.Slice {
		return 0, fmt.Errorf("graph: dest must be a pointer to a slice")
	}
	sliceVal := destVal.Elem()
	elemType := sliceVal.Type().Elem()
	elemPtr := elemType.Kind() == reflect.Ptr
	rootType := elemType
	if elemPtr {
		rootType = elemType.Elem()
	}
	if rootType != b.meta.Type {
		return 0, fmt.Errorf("graph: dest element type %s does not match bound entity %s", rootType, b.meta.Type)
	}

	slice := reflect.MakeSlice(sliceVal.Type(), 0, 16)
	scan := make([]any, len(b.bindings))
	vals := make([]any, len(b.bindings))
	for i := range scan {
		scan[i] = &vals[i]
	}

	var lastKey any
	haveRoot := false

	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return 0, fmt.Errorf("graph: scan: %w", err)
		}

		key, err := b.rowKey(vals)
		if err != nil {
			return 0, err
		}

		merge := haveRoot && b.hasMany && key == lastKey
		if !merge {
			root := reflect.New(b.meta.Type)
			if elemPtr {
				slice = reflect.Append(slice, root)
			} else {
				slice = reflect.Append(slice, root.Elem())
			}
			haveRoot = true
			lastKey = key
		}

		rootVal := slice.Index(slice.Len() - 1)
		if elemPtr {
			rootVal = rootVal.Elem()
		}

		rowCache := make(map[string]reflect.Value, 2)
		for i, bd := range b.bindings {
			if bd == nil {
				continue
			}
			if merge && bd.path.ManyIndex < 0 {
				continue // single-valued paths already populated
			}
			if err := b.apply(rootVal, bd, vals[i], rowCache); err != nil {
				return 0, err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	sliceVal.Set(slice)
	return slice.Len(), nil
}

// rowKey returns the root grouping key for the current row: the mapped
// root ID value, or a synthetic ULID so every row is its own root.
func (b *Binder) rowKey(vals []any) (any, error) {
	if b.rootKey == nil {
		return b.keyGen.Generate()
	}
	v := vals[b.rootKey.col.Index]
	if bs, ok := v.([]byte); ok {
		return string(bs), nil
	}
	return v, nil
}

// apply writes one column value at its path below root, allocating
// nested entities and collection elements on the way.
func (b *Binder) apply(root reflect.Value, bd *binding, val any, rowCache map[string]reflect.Value) error {
	// A NULL on a nested path does not force allocation of the nested
	// entity; absent one-to-one entities stay nil.
	if val == nil && len(bd.path.Steps) > 0 {
		return nil
	}

	cur := root
	prefix := ""
	for _, st := range bd.path.Steps {
		prefix += st.Field.Name + "."
		fv := cur.FieldByIndex(st.Field.Index)

		switch st.Field.Kind {
		case schema.KindOne:
			if fv.Kind() == reflect.Ptr {
				if fv.IsNil() {
					fv.Set(reflect.New(fv.Type().Elem()))
				}
				cur = fv.Elem()
			} else {
				cur = fv
			}

		case schema.KindMany:
			if cached, ok := rowCache[prefix]; ok {
				cur = cached
				continue
			}
			elemType := fv.Type().Elem()
			if elemType.Kind() == reflect.Ptr {
				fv.Set(reflect.Append(fv, reflect.New(elemType.Elem())))
				cur = fv.Index(fv.Len() - 1).Elem()
			} else {
				fv.Set(reflect.Append(fv, reflect.New(elemType).Elem()))
				cur = fv.Index(fv.Len() - 1)
			}
			rowCache[prefix] = cur

		default:
			return fmt.Errorf("graph: path %q crosses scalar field %s", bd.path.Spec, st.Field.Name)
		}
	}

	tf := cur.FieldByIndex(bd.path.Terminal.Index)
	if err := schema.ConvertAssign(tf, val); err != nil {
		return fmt.Errorf("graph: column %q -> %s: %w", bd.col.DbColumn, bd.path.Spec, err)
	}
	return nil
}
