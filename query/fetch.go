package query

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/corvid-labs/rawsql/schema"
)

// runFetch loads the requested properties of the entities at the fetch
// path. The partially built instances are walked out of the bound
// graph, their IDs batched into in-clauses against the target table,
// and the selected values written back onto the same instances.
func (q *Query) runFetch(ctx context.Context, meta *schema.EntityMeta, f *fetchSpec, roots reflect.Value, qid string) error {
	steps, target, err := schema.ResolveEntityPath(meta, f.path)
	if err != nil {
		return err
	}
	if target.IDField == nil {
		return fmt.Errorf("query: fetch %q: entity %s has no ID field", f.path, target.Name)
	}

	props := make([]*schema.FieldMeta, len(f.props))
	for i, name := range f.props {
		p, err := schema.ResolvePath(target, name)
		if err != nil {
			return fmt.Errorf("query: fetch %q: %w", f.path, err)
		}
		if len(p.Steps) != 0 {
			return fmt.Errorf("query: fetch %q: property %q is not a direct field of %s", f.path, name, target.Name)
		}
		props[i] = p.Terminal
	}

	// Group instances by ID. An instance whose ID the main query did
	// not populate cannot be fetched and is skipped.
	byID := make(map[string][]reflect.Value)
	var ids []any
	for i := 0; i < roots.Len(); i++ {
		rv := roots.Index(i)
		if rv.Kind() == reflect.Ptr {
			if rv.IsNil() {
				continue
			}
			rv = rv.Elem()
		}
		for _, inst := range instancesAt(rv, steps) {
			idv := inst.FieldByIndex(target.IDField.Index)
			if idv.IsZero() {
				continue
			}
			key := fmt.Sprintf("%v", idv.Interface())
			if _, seen := byID[key]; !seen {
				ids = append(ids, idv.Interface())
			}
			byID[key] = append(byID[key], inst)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	base := q.fetchSelect(target, props)
	bindType := sqlx.BindType(q.ex.dialect.Name())

	for start := 0; start < len(ids); start += f.cfg.BatchSize {
		end := start + f.cfg.BatchSize
		if end > len(ids) {
			end = len(ids)
		}
		stmt, args, err := sqlx.In(base, ids[start:end])
		if err != nil {
			return fmt.Errorf("query: fetch %q: %w", f.path, err)
		}
		stmt = sqlx.Rebind(bindType, stmt)
		q.ex.trace("execute fetch", "qid", qid, "path", f.path, "sql", stmt, "ids", end-start)

		if err := q.fetchBatch(ctx, stmt, args, props, byID); err != nil {
			return fmt.Errorf("query: fetch %q: %w", f.path, err)
		}
	}
	return nil
}

func (q *Query) fetchSelect(target *schema.EntityMeta, props []*schema.FieldMeta) string {
	d := q.ex.dialect
	var sb strings.Builder
	sb.WriteString("select ")
	sb.WriteString(d.QuoteIdentifier(target.IDField.DBName))
	for _, fm := range props {
		sb.WriteString(", ")
		sb.WriteString(d.QuoteIdentifier(fm.DBName))
	}
	sb.WriteString(" from ")
	sb.WriteString(d.QuoteIdentifier(target.TableName))
	sb.WriteString(" where ")
	sb.WriteString(d.QuoteIdentifier(target.IDField.DBName))
	sb.WriteString(" in (?)")
	return sb.String()
}

func (q *Query) fetchBatch(ctx context.Context, stmt string, args []any, props []*schema.FieldMeta, byID map[string][]reflect.Value) error {
	rows, err := q.ex.db.QueryxContext(ctx, stmt, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	vals := make([]any, 1+len(props))
	ptrs := make([]any, len(vals))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		idVal := vals[0]
		if b, ok := idVal.([]byte); ok {
			idVal = string(b)
		}
		for _, inst := range byID[fmt.Sprintf("%v", idVal)] {
			for i, fm := range props {
				if err := schema.ConvertAssign(inst.FieldByIndex(fm.Index), vals[1+i]); err != nil {
					return fmt.Errorf("column %q: %w", fm.DBName, err)
				}
			}
		}
	}
	return rows.Err()
}

// instancesAt walks one relation path below root and returns every
// entity instance it lands on.
func instancesAt(root reflect.Value, steps []schema.Step) []reflect.Value {
	if len(steps) == 0 {
		return []reflect.Value{root}
	}
	fv := root.FieldByIndex(steps[0].Field.Index)

	switch steps[0].Field.Kind {
	case schema.KindOne:
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				return nil
			}
			fv = fv.Elem()
		}
		return instancesAt(fv, steps[1:])

	case schema.KindMany:
		var out []reflect.Value
		for i := 0; i < fv.Len(); i++ {
			ev := fv.Index(i)
			if ev.Kind() == reflect.Ptr {
				if ev.IsNil() {
					continue
				}
				ev = ev.Elem()
			}
			out = append(out, instancesAt(ev, steps[1:])...)
		}
		return out
	}
	return nil
}
