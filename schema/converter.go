package schema

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// ConvertAssign writes a driver-supplied value into a struct field,
// converting between the loose types drivers hand back (int64, float64,
// []byte, string, time.Time) and the declared field type.
func ConvertAssign(dst reflect.Value, val any) error {
	if val == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	// Pointer destination: allocate and convert into the element.
	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return ConvertAssign(dst.Elem(), val)
	}

	// sql.Scanner destination handles its own conversion.
	if scanner, ok := dst.Addr().Interface().(sql.Scanner); ok {
		return scanner.Scan(val)
	}

	src := reflect.ValueOf(val)
	if src.Type() == dst.Type() {
		dst.Set(src)
		return nil
	}
	if src.Kind() == reflect.Ptr {
		if src.IsNil() {
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		return ConvertAssign(dst, src.Elem().Interface())
	}

	switch dst.Kind() {
	case reflect.String:
		switch v := val.(type) {
		case []byte:
			dst.SetString(string(v))
			return nil
		case string:
			dst.SetString(v)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch v := val.(type) {
		case int64:
			dst.SetInt(v)
			return nil
		case float64:
			dst.SetInt(int64(v))
			return nil
		case []byte:
			n, err := strconv.ParseInt(string(v), 10, 64)
			if err != nil {
				return fmt.Errorf("schema: cannot convert %q to %s: %w", v, dst.Type(), err)
			}
			dst.SetInt(n)
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		switch v := val.(type) {
		case int64:
			dst.SetUint(uint64(v))
			return nil
		case float64:
			dst.SetUint(uint64(v))
			return nil
		case []byte:
			n, err := strconv.ParseUint(string(v), 10, 64)
			if err != nil {
				return fmt.Errorf("schema: cannot convert %q to %s: %w", v, dst.Type(), err)
			}
			dst.SetUint(n)
			return nil
		}
	case reflect.Float32, reflect.Float64:
		switch v := val.(type) {
		case float64:
			dst.SetFloat(v)
			return nil
		case int64:
			dst.SetFloat(float64(v))
			return nil
		case []byte:
			f, err := strconv.ParseFloat(string(v), 64)
			if err != nil {
				return fmt.Errorf("schema: cannot convert %q to %s: %w", v, dst.Type(), err)
			}
			dst.SetFloat(f)
			return nil
		}
	case reflect.Bool:
		switch v := val.(type) {
		case bool:
			dst.SetBool(v)
			return nil
		case int64:
			dst.SetBool(v != 0)
			return nil
		case float64:
			dst.SetBool(v != 0)
			return nil
		}
	case reflect.Slice:
		if dst.Type().Elem().Kind() == reflect.Uint8 {
			switch v := val.(type) {
			case []byte:
				b := make([]byte, len(v))
				copy(b, v)
				dst.SetBytes(b)
				return nil
			case string:
				dst.SetBytes([]byte(v))
				return nil
			}
		}
	case reflect.Struct:
		if dst.Type() == timeType {
			switch v := val.(type) {
			case time.Time:
				dst.Set(reflect.ValueOf(v))
				return nil
			case string:
				return assignTimeString(dst, v)
			case []byte:
				return assignTimeString(dst, string(v))
			}
		}
	}

	if src.Type().ConvertibleTo(dst.Type()) {
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("schema: cannot convert %T to %s", val, dst.Type())
}

// Time columns come back as text from sqlite.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func assignTimeString(dst reflect.Value, s string) error {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			dst.Set(reflect.ValueOf(ts))
			return nil
		}
	}
	return fmt.Errorf("schema: cannot parse %q as time.Time", s)
}
