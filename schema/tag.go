package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// ParsedTag is the parsed `db` struct tag configuration.
//
// Supported syntax:
//
//	`db:"column_name"`          // explicit column name
//	`db:"-"`                    // skip field entirely
//	`db:"column:name;primary"`  // option list
//	`db:"primary"`
//	`db:"generator:uuid"`       // auto-generated value (uuid, ulid)
type ParsedTag struct {
	ColumnName string
	Skip       bool
	Primary    bool
	Generator  string
}

// tagParser caches parsed tags; identical tags across entities are
// common enough that re-parsing shows up in introspection cost.
type tagParser struct {
	mu    sync.RWMutex
	cache map[string]*ParsedTag
}

func newTagParser() *tagParser {
	return &tagParser{cache: make(map[string]*ParsedTag, 64)}
}

func (p *tagParser) Parse(fieldName string, tag reflect.StructTag) (*ParsedTag, error) {
	tagValue := tag.Get("db")
	if tagValue == "" {
		return &ParsedTag{ColumnName: columnName(fieldName)}, nil
	}

	cacheKey := fieldName + ":" + tagValue
	p.mu.RLock()
	if cached, ok := p.cache[cacheKey]; ok {
		p.mu.RUnlock()
		return cached, nil
	}
	p.mu.RUnlock()

	parsed, err := p.parseValue(fieldName, tagValue)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[cacheKey] = parsed
	p.mu.Unlock()
	return parsed, nil
}

func (p *tagParser) parseValue(fieldName, tagValue string) (*ParsedTag, error) {
	if tagValue == "-" {
		return &ParsedTag{Skip: true}, nil
	}

	parsed := &ParsedTag{ColumnName: columnName(fieldName)}
	if !strings.ContainsAny(tagValue, ";:") {
		parsed.ColumnName = tagValue
		return parsed, nil
	}

	for _, opt := range strings.Split(tagValue, ";") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		key, val := opt, ""
		if i := strings.IndexByte(opt, ':'); i >= 0 {
			key, val = opt[:i], opt[i+1:]
		}
		switch key {
		case "column":
			if val == "" {
				return nil, fmt.Errorf("empty column name in tag %q", tagValue)
			}
			parsed.ColumnName = val
		case "primary":
			parsed.Primary = true
		case "generator":
			if val == "" {
				return nil, fmt.Errorf("empty generator name in tag %q", tagValue)
			}
			parsed.Generator = val
		default:
			return nil, fmt.Errorf("unknown tag option %q", key)
		}
	}
	return parsed, nil
}
