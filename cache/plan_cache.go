package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	rawsql "github.com/corvid-labs/rawsql"
)

// PlanCache memoizes built RawSql plans by statement fingerprint, so
// hot statements skip re-parsing.
type PlanCache struct {
	cache *lru.Cache[uint64, *rawsql.RawSql]
}

func NewPlanCache(size int) *PlanCache {
	c, _ := lru.New[uint64, *rawsql.RawSql](size)
	return &PlanCache{cache: c}
}

func (p *PlanCache) Get(key uint64) (*rawsql.RawSql, bool) {
	return p.cache.Get(key)
}

func (p *PlanCache) Set(key uint64, raw *rawsql.RawSql) {
	p.cache.Add(key, raw)
}

// GetOrBuild returns the cached plan for key or builds, caches and
// returns a fresh one.
func (p *PlanCache) GetOrBuild(key uint64, build func() (*rawsql.RawSql, error)) (*rawsql.RawSql, error) {
	if raw, ok := p.cache.Get(key); ok {
		return raw, nil
	}
	raw, err := build()
	if err != nil {
		return nil, err
	}
	p.cache.Add(key, raw)
	return raw, nil
}
