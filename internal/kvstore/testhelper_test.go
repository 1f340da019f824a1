package kvstore

import (
	"context"
	"errors"
	"sync"
)

var errInjected = errors.New("injected failure")

// countingBackend wraps a MemoryBackend, counting reads and optionally failing
type countingBackend struct {
	*MemoryBackend

	mu       sync.Mutex
	gets     map[string]int
	failGet  bool
	failSet  bool
	failKeys bool
}

func newCountingBackend() *countingBackend {
	return &countingBackend{MemoryBackend: NewMemoryBackend(), gets: make(map[string]int)}
}

func (c *countingBackend) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	c.gets[key]++
	fail := c.failGet
	c.mu.Unlock()
	if fail {
		return "", false, errInjected
	}
	return c.MemoryBackend.Get(ctx, key)
}

func (c *countingBackend) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	fail := c.failSet
	c.mu.Unlock()
	if fail {
		return errInjected
	}
	return c.MemoryBackend.Set(ctx, key, value)
}

func (c *countingBackend) Keys(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	fail := c.failKeys
	c.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return c.MemoryBackend.Keys(ctx)
}

func (c *countingBackend) getCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets[key]
}
