package kvstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// Open creates the backend described by rawURL:
//
//	memory://                  in-process map
//	sqlite://./plans.db        SQLite database file (":memory:" allowed)
//	file://./plans.json        JSON document on the local filesystem
//	redis://host:6379/0        Redis, keys prefixed with DefaultRedisPrefix
//	postgres://user@host/db    PostgreSQL kv_store table
func Open(ctx context.Context, rawURL string) (Backend, error) {
	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		return nil, fmt.Errorf("invalid backend URL %q: missing scheme", rawURL)
	}

	switch strings.ToLower(scheme) {
	case "memory", "mem":
		return NewMemoryBackend(), nil
	case "sqlite", "sqlite3":
		if rest == "" {
			return nil, fmt.Errorf("sqlite backend URL requires a path")
		}
		return NewSQLiteBackend(rest)
	case "file":
		if rest == "" {
			return nil, fmt.Errorf("file backend URL requires a path")
		}
		return NewFileBackend(afero.NewOsFs(), rest)
	case "redis", "rediss":
		return NewRedisBackend(ctx, rawURL, DefaultRedisPrefix)
	case "postgres", "postgresql":
		return NewPostgresBackend(ctx, rawURL)
	default:
		return nil, fmt.Errorf("unsupported backend scheme %q", scheme)
	}
}

// Scheme returns the lower-cased scheme of a backend URL, which is safe to log
// where the full URL may carry credentials
func Scheme(rawURL string) string {
	scheme, _, ok := strings.Cut(rawURL, "://")
	if !ok {
		return ""
	}
	return strings.ToLower(scheme)
}
