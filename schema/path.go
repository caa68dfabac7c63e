package schema

import (
	"fmt"
	"strings"
)

// Step is one relation hop in a property path.
type Step struct {
	Field *FieldMeta
	Meta  *EntityMeta // metadata of the entity the step leads to
}

// Path is a resolved property path such as "order.customer.name": zero
// or more relation steps followed by a scalar terminal field.
type Path struct {
	Spec     string
	Steps    []Step
	Terminal *FieldMeta

	// ManyIndex is the position of the first slice step, -1 when the
	// path crosses no collection.
	ManyIndex int
}

// ResolvePath walks spec through the entity graph starting at meta.
// Segments match Go field names (case-insensitively) or DB column
// names; intermediate segments must be nested entities and the final
// segment a scalar field.
func ResolvePath(meta *EntityMeta, spec string) (*Path, error) {
	segs := strings.Split(spec, ".")
	p := &Path{Spec: spec, ManyIndex: -1}

	cur := meta
	for i, seg := range segs {
		fm := findField(cur, seg)
		if fm == nil {
			return nil, fmt.Errorf("schema: %s has no property %q (path %q)", cur.Name, seg, spec)
		}
		last := i == len(segs)-1
		if last {
			if fm.Kind != KindScalar {
				return nil, fmt.Errorf("schema: path %q ends on nested entity %s.%s", spec, cur.Name, fm.Name)
			}
			p.Terminal = fm
			return p, nil
		}
		if fm.Kind == KindScalar {
			return nil, fmt.Errorf("schema: %s.%s is not a nested entity (path %q)", cur.Name, fm.Name, spec)
		}
		next, err := Introspect(fm.Elem)
		if err != nil {
			return nil, err
		}
		if fm.Kind == KindMany && p.ManyIndex < 0 {
			p.ManyIndex = len(p.Steps)
		}
		p.Steps = append(p.Steps, Step{Field: fm, Meta: next})
		cur = next
	}
	return nil, fmt.Errorf("schema: empty path")
}

// ResolveEntityPath resolves a path whose every segment is a relation,
// e.g. a fetch path like "order.customer". It returns the steps and the
// metadata of the entity the path lands on.
func ResolveEntityPath(meta *EntityMeta, spec string) ([]Step, *EntityMeta, error) {
	if spec == "" {
		return nil, nil, fmt.Errorf("schema: empty path")
	}
	var steps []Step
	cur := meta
	for _, seg := range strings.Split(spec, ".") {
		fm := findField(cur, seg)
		if fm == nil {
			return nil, nil, fmt.Errorf("schema: %s has no property %q (path %q)", cur.Name, seg, spec)
		}
		if fm.Kind == KindScalar {
			return nil, nil, fmt.Errorf("schema: %s.%s is not a nested entity (path %q)", cur.Name, fm.Name, spec)
		}
		next, err := Introspect(fm.Elem)
		if err != nil {
			return nil, nil, err
		}
		steps = append(steps, Step{Field: fm, Meta: next})
		cur = next
	}
	return steps, cur, nil
}

func findField(meta *EntityMeta, seg string) *FieldMeta {
	if fm, ok := meta.FieldMap[seg]; ok {
		return fm
	}
	if fm, ok := meta.ColumnMap[seg]; ok {
		return fm
	}
	for _, fm := range meta.Fields {
		if strings.EqualFold(fm.Name, seg) {
			return fm
		}
	}
	return nil
}
