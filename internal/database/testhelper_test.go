package database

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/benvon/smart-trips/internal/kvstore"
)

var errInjected = errors.New("injected failure")

// flakyBackend fails Set for keys with failPrefix while armed
type flakyBackend struct {
	*kvstore.MemoryBackend

	mu         sync.Mutex
	failPrefix string
}

func (f *flakyBackend) arm(prefix string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPrefix = prefix
}

func (f *flakyBackend) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	prefix := f.failPrefix
	f.mu.Unlock()
	if prefix != "" && strings.HasPrefix(key, prefix) {
		return errInjected
	}
	return f.MemoryBackend.Set(ctx, key, value)
}

func newTestStore(t *testing.T) (*kvstore.Store, *flakyBackend) {
	t.Helper()
	backend := &flakyBackend{MemoryBackend: kvstore.NewMemoryBackend()}
	store, err := kvstore.New(backend)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store, backend
}

// gatedBackend pauses the first Set of pauseKey until resume is closed. Sets
// of other keys issued while that write is paused wait for hold to close.
type gatedBackend struct {
	*kvstore.MemoryBackend

	mu       sync.Mutex
	pauseKey string
	holding  bool

	paused chan struct{}
	resume chan struct{}
	hold   chan struct{}
}

func newGatedStore(t *testing.T) (*kvstore.Store, *gatedBackend) {
	t.Helper()
	backend := &gatedBackend{
		MemoryBackend: kvstore.NewMemoryBackend(),
		paused:        make(chan struct{}),
		resume:        make(chan struct{}),
		hold:          make(chan struct{}),
	}
	store, err := kvstore.New(backend)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store, backend
}

func (g *gatedBackend) pauseOn(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pauseKey = key
}

func (g *gatedBackend) Set(ctx context.Context, key, value string) error {
	g.mu.Lock()
	if g.pauseKey != "" && key == g.pauseKey {
		g.pauseKey = ""
		g.holding = true
		g.mu.Unlock()

		close(g.paused)
		<-g.resume

		g.mu.Lock()
		g.holding = false
		g.mu.Unlock()
		return g.MemoryBackend.Set(ctx, key, value)
	}
	holding := g.holding
	g.mu.Unlock()

	if holding {
		<-g.hold
	}
	return g.MemoryBackend.Set(ctx, key, value)
}
