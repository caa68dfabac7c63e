// Package connector opens and pools database connections for the query
// executor. Providers register themselves by driver name; Open looks
// the provider up and connects with optional retry.
package connector

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/corvid-labs/rawsql/dialect"
)

// Connection is one live pooled connection.
type Connection interface {
	// DB returns the sqlx handle the query executor runs on.
	DB() *sqlx.DB
	Dialect() dialect.Dialect
	Health(ctx context.Context) error
	Stats() ConnectionStats
	Close() error
}

// Provider connects to one kind of database.
type Provider interface {
	Connect(ctx context.Context, cfg Config) (Connection, error)
	Dialect() dialect.Dialect
}

var registry = struct {
	sync.RWMutex
	providers map[string]Provider
}{providers: make(map[string]Provider)}

// Register makes a provider available to Open under the given name.
func Register(name string, p Provider) {
	registry.Lock()
	defer registry.Unlock()
	registry.providers[name] = p
}

// Open connects with the named provider, retrying per cfg.Retry when
// set.
func Open(ctx context.Context, name string, cfg Config) (Connection, error) {
	registry.RLock()
	p, ok := registry.providers[name]
	registry.RUnlock()
	if !ok {
		return nil, fmt.Errorf("connector: provider %q not registered", name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	if cfg.Retry != nil {
		return retryConnect(ctx, cfg.Retry, func(ctx context.Context) (Connection, error) {
			return p.Connect(ctx, cfg)
		})
	}
	return p.Connect(ctx, cfg)
}
