// Package store provides the key-value backends behind the fetch cache.
//
// Every backend implements the same contract: Upsert returns the value stored
// under a key and calls fill only when the key is absent, so each key is
// filled at most once per store. Nothing ever expires.
package store

import (
	"context"
	"fmt"
	"path/filepath"
)

// FillFunc produces the value for a missing key. An error leaves the key absent.
type FillFunc func(ctx context.Context) ([]byte, error)

// Store is a persistent key-value namespace scoped to one channel workspace.
type Store interface {
	// Upsert returns the value under key, calling fill to create it when the
	// key is absent. created reports whether fill ran and its value was stored.
	Upsert(ctx context.Context, key string, fill FillFunc) (val []byte, created bool, err error)
	// Len returns the number of stored keys.
	Len(ctx context.Context) (int, error)
	// Flush persists pending writes. Backends that write through are no-ops.
	Flush(ctx context.Context) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendJSON     = "json"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Config selects and parameterises a backend.
type Config struct {
	Backend string
	URL     string // redis / postgres / mongo connection string
}

// Open opens the configured backend for the workspace dir. namespace (the
// channel slug) scopes keys on shared remote backends.
func Open(ctx context.Context, cfg Config, dir, namespace string) (Store, error) {
	switch cfg.Backend {
	case "", BackendJSON:
		return OpenJSON(filepath.Join(dir, "cache.json"))
	case BackendMemory:
		return NewMemory(), nil
	case BackendSQLite:
		return OpenSQLite(ctx, filepath.Join(dir, "cache.db"))
	case BackendRedis:
		return OpenRedis(ctx, cfg.URL, namespace)
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.URL, namespace)
	case BackendMongo:
		return OpenMongo(ctx, cfg.URL, namespace)
	}
	return nil, fmt.Errorf("store: unknown backend %q (valid: json, memory, sqlite, redis, postgres, mongo)", cfg.Backend)
}
