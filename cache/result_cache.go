package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/corvid-labs/rawsql/utils"
)

// RowSet is a materialized query result: column names plus rows of
// driver values. It is what the result cache stores and what the graph
// binder replays on a cache hit.
//
// Values are normalized before caching: []byte becomes string so the
// JSON round trip is stable.
type RowSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Capture drains rows into a RowSet. The caller still owns rows.Close.
func Capture(rows *sqlx.Rows) (*RowSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	rs := &RowSet{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// Iter returns a cursor over the row set with the same Next/Scan/Err
// shape as sql.Rows.
func (rs *RowSet) Iter() *RowIter {
	return &RowIter{rs: rs}
}

type RowIter struct {
	rs  *RowSet
	pos int
}

func (it *RowIter) Next() bool {
	it.pos++
	return it.pos <= len(it.rs.Rows)
}

func (it *RowIter) Err() error { return nil }

func (it *RowIter) Scan(dest ...any) error {
	row := it.rs.Rows[it.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("cache: scan expects %d values, row has %d", len(dest), len(row))
	}
	for i, d := range dest {
		p, ok := d.(*any)
		if !ok {
			return fmt.Errorf("cache: scan destination %d is %T, want *any", i, d)
		}
		*p = row[i]
	}
	return nil
}

// ResultCache stores row sets keyed by query fingerprint.
type ResultCache interface {
	Get(ctx context.Context, key string) (*RowSet, bool, error)
	Set(ctx context.Context, key string, rs *RowSet) error
}

// ResultKey builds the cache key for a plan/arguments pair.
func ResultKey(planKey, argsHash uint64) string {
	return fmt.Sprintf("rawsql:q:%016x", utils.Mix64(planKey, argsHash))
}

// redisResultCache keeps row sets in redis with a TTL.
type redisResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisResultCache(client *redis.Client, ttl time.Duration) ResultCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisResultCache{client: client, ttl: ttl}
}

func (c *redisResultCache) Get(ctx context.Context, key string) (*RowSet, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: redis get: %w", err)
	}
	rs, err := decodeRowSet(data)
	if err != nil {
		return nil, false, fmt.Errorf("cache: decode row set: %w", err)
	}
	return rs, true, nil
}

// decodeRowSet is the inverse of the Set encoding. Numbers are decoded
// through json.Number and restored to int64 where they fit, so integer
// columns replay with the type and precision the driver produced;
// plain json.Unmarshal would force every number through float64 and
// truncate IDs past 2^53.
func decodeRowSet(data []byte) (*RowSet, error) {
	var rs RowSet
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rs); err != nil {
		return nil, err
	}
	for _, row := range rs.Rows {
		for i, v := range row {
			num, ok := v.(json.Number)
			if !ok {
				continue
			}
			if n, err := num.Int64(); err == nil {
				row[i] = n
			} else if f, err := num.Float64(); err == nil {
				row[i] = f
			} else {
				return nil, fmt.Errorf("bad number %q", num.String())
			}
		}
	}
	return &rs, nil
}

func (c *redisResultCache) Set(ctx context.Context, key string, rs *RowSet) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("cache: encode row set: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// memResultCache is the in-process implementation, used by tests and
// single-node setups.
type memResultCache struct {
	mu   sync.RWMutex
	data map[string]*RowSet
}

func NewMemoryResultCache() ResultCache {
	return &memResultCache{data: make(map[string]*RowSet)}
}

func (c *memResultCache) Get(_ context.Context, key string) (*RowSet, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rs, ok := c.data[key]
	return rs, ok, nil
}

func (c *memResultCache) Set(_ context.Context, key string, rs *RowSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = rs
	return nil
}
