package catalog

import (
	"context"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Backends selectable via RASTAC_STORE_BACKEND.
const (
	BackendMemory = "memory"
	BackendSqlite = "sqlite"
	BackendRedis  = "redis"
)

// Options carries the backend-specific settings the factory may need.
type Options struct {
	// Path is the sqlite database file.
	Path string

	// RedisAddr is the host:port of the redis server.
	RedisAddr string
}

// New builds a store for the named backend.
func New(ctx context.Context, backend string, opts Options) (Store, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendSqlite:
		return NewSqliteStore(opts.Path)
	case BackendRedis:
		return NewRedisStore(ctx, opts.RedisAddr)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
