package schema

import (
	"strings"
	"unicode"

	pluralizer "github.com/gertd/go-pluralize"
)

var pluralizeClient = pluralizer.NewClient()

// Acronyms that snake_case conversion would otherwise mangle.
var snakeSpecials = map[string]string{
	"ID":   "id",
	"UUID": "uuid",
	"URL":  "url",
	"API":  "api",
	"JSON": "json",
	"SQL":  "sql",
	"HTML": "html",
}

// columnName converts a Go field name to its default database column
// name (snake_case).
func columnName(fieldName string) string {
	return toSnakeCase(fieldName)
}

// tableName converts a Go struct name to its default table name
// (snake_case, pluralized): OrderLine -> order_lines.
func tableName(structName string) string {
	return pluralizeClient.Pluralize(toSnakeCase(structName), 2, false)
}

func toSnakeCase(name string) string {
	if name == "" {
		return ""
	}
	if s, ok := snakeSpecials[name]; ok {
		return s
	}
	// Already snake_case.
	if strings.Contains(name, "_") && strings.ToLower(name) == name {
		return name
	}

	var b strings.Builder
	b.Grow(len(name) + 4)
	runes := []rune(name)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			// aB -> a_b; ABc -> a_bc
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				b.WriteByte('_')
			} else if unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
