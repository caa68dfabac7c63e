package schema

import (
	"database/sql"
	"fmt"
	"reflect"
	"sync"
	"time"
)

var entityCache sync.Map // map[reflect.Type]*EntityMeta

var (
	timeType    = reflect.TypeOf(time.Time{})
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// Introspect returns the cached metadata for a struct type, building it
// on first use. Pointer types are dereferenced.
func Introspect(t reflect.Type) (*EntityMeta, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: invalid entity type %s (expected struct)", t.Kind())
	}
	if meta, ok := entityCache.Load(t); ok {
		return meta.(*EntityMeta), nil
	}
	meta, err := buildMeta(t)
	if err != nil {
		return nil, err
	}
	entityCache.Store(t, meta)
	return meta, nil
}

func buildMeta(t reflect.Type) (*EntityMeta, error) {
	parser := newTagParser()
	numFields := t.NumField()

	meta := &EntityMeta{
		Type:      t,
		Name:      t.Name(),
		Fields:    make([]*FieldMeta, 0, numFields),
		FieldMap:  make(map[string]*FieldMeta, numFields),
		ColumnMap: make(map[string]*FieldMeta, numFields),
	}

	if tn, ok := reflect.New(t).Interface().(TableNamer); ok {
		meta.TableName = tn.TableName()
		meta.HasCustomTableName = true
	} else {
		meta.TableName = tableName(t.Name())
	}

	for i := 0; i < numFields; i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}

		tag, err := parser.Parse(f.Name, f.Tag)
		if err != nil {
			return nil, fmt.Errorf("schema: %s.%s: %w", t.Name(), f.Name, err)
		}
		if tag.Skip {
			continue
		}

		fm := &FieldMeta{
			Name:   f.Name,
			DBName: tag.ColumnName,
			Type:   f.Type,
			Index:  f.Index,
			Tag:    tag,
			Kind:   fieldKind(f.Type),
		}
		if fm.Kind != KindScalar {
			fm.Elem = elemStruct(f.Type)
		}
		fm.IsID = tag.Primary || (f.Name == "ID" && fm.Kind == KindScalar)
		if tag.Generator != "" {
			gen, err := GeneratorFor(tag.Generator)
			if err != nil {
				return nil, fmt.Errorf("schema: %s.%s: %w", t.Name(), f.Name, err)
			}
			fm.Generator = gen
		}

		meta.Fields = append(meta.Fields, fm)
		meta.FieldMap[f.Name] = fm
		meta.ColumnMap[fm.DBName] = fm
		if fm.IsID && meta.IDField == nil {
			meta.IDField = fm
		}
	}

	return meta, nil
}

// fieldKind decides whether a field is a column value or a nested
// entity. Anything scannable by database/sql stays scalar.
func fieldKind(t reflect.Type) FieldKind {
	if t == timeType || t.Implements(scannerType) || reflect.PtrTo(t).Implements(scannerType) {
		return KindScalar
	}
	switch t.Kind() {
	case reflect.Struct:
		return KindOne
	case reflect.Ptr:
		if t.Elem().Kind() == reflect.Struct && t.Elem() != timeType {
			return KindOne
		}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return KindScalar // []byte
		}
		e := t.Elem()
		if e.Kind() == reflect.Ptr {
			e = e.Elem()
		}
		if e.Kind() == reflect.Struct && e != timeType {
			return KindMany
		}
	}
	return KindScalar
}

func elemStruct(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	return t
}
