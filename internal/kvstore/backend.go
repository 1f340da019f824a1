// Package kvstore provides typed key-value storage over a pluggable durable
// backend, fronted by an in-process read-through cache.
package kvstore

import (
	"context"
	"errors"
)

// ErrClosed is returned by backends used after Close
var ErrClosed = errors.New("kvstore: backend closed")

// Backend is a durable string-keyed, string-valued store.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the value for key and whether it was present
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
	// Keys lists every stored key in ascending order
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Ensure concrete types implement the interface
var (
	_ Backend = (*MemoryBackend)(nil)
	_ Backend = (*SQLiteBackend)(nil)
	_ Backend = (*PostgresBackend)(nil)
	_ Backend = (*RedisBackend)(nil)
	_ Backend = (*FileBackend)(nil)
)
