package cache

import (
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"
)

// StatementCache keeps prepared statements on an LRU; eviction closes
// the evicted statement.
type StatementCache struct {
	cache *lru.Cache[uint64, *sqlx.Stmt]
	mu    sync.RWMutex
}

func NewStatementCache(size int) *StatementCache {
	cache, _ := lru.NewWithEvict(size, func(key uint64, stmt *sqlx.Stmt) {
		stmt.Close()
	})
	return &StatementCache{cache: cache}
}

func (s *StatementCache) Get(key uint64) (*sqlx.Stmt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if stmt, ok := s.cache.Get(key); ok {
		return stmt, nil
	}
	return nil, errors.New("key not found")
}

// GetOrPrepare returns the cached statement or prepares and caches it.
func (s *StatementCache) GetOrPrepare(key uint64, db *sqlx.DB, query string) (*sqlx.Stmt, error) {
	s.mu.RLock()
	if stmt, ok := s.cache.Get(key); ok {
		s.mu.RUnlock()
		return stmt, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if stmt, ok := s.cache.Get(key); ok {
		return stmt, nil
	}

	stmt, err := db.Preparex(query)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, stmt)
	return stmt, nil
}

func (s *StatementCache) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Purge() // evict callback closes every statement
	return nil
}
