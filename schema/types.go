package schema

import "reflect"

// FieldKind classifies how a struct field participates in an object
// graph.
type FieldKind int

const (
	// KindScalar is a plain column value (includes time.Time, []byte
	// and types implementing sql.Scanner).
	KindScalar FieldKind = iota
	// KindOne is a nested entity: a struct or pointer-to-struct field.
	KindOne
	// KindMany is a collection of nested entities: a slice of structs
	// or of pointers to structs.
	KindMany
)

// EntityMeta is the cached reflection metadata for an entity struct.
type EntityMeta struct {
	Type               reflect.Type
	Name               string
	TableName          string
	HasCustomTableName bool

	Fields    []*FieldMeta
	FieldMap  map[string]*FieldMeta // Go field name -> FieldMeta
	ColumnMap map[string]*FieldMeta // DB column name -> FieldMeta

	// IDField is the primary key field (tag option "primary" or a field
	// named ID); nil when the entity has none.
	IDField *FieldMeta
}

// FieldMeta describes one exported struct field.
type FieldMeta struct {
	Name   string
	DBName string
	Type   reflect.Type
	Index  []int
	Kind   FieldKind
	Tag    *ParsedTag
	IsID   bool

	// Generator is non-nil when the tag requests auto-generated values.
	Generator IDGenerator

	// Elem is the entity struct type for KindOne/KindMany fields, with
	// pointer and slice wrappers stripped.
	Elem reflect.Type
}

// TableNamer lets an entity override the derived table name.
type TableNamer interface {
	TableName() string
}
