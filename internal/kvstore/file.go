package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/afero"
)

// FileBackend keeps every key in one JSON object file. Each write rewrites the
// file through a temporary file and a rename, so a crash leaves either the old
// or the new document on disk.
type FileBackend struct {
	fs   afero.Fs
	path string

	mu     sync.RWMutex
	data   map[string]string
	closed bool
}

// NewFileBackend loads path from fs, creating its directory when missing.
// A missing file starts an empty store.
func NewFileBackend(fs afero.Fs, path string) (*FileBackend, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		exists, err := afero.DirExists(fs, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to stat directory %s: %w", dir, err)
		}
		if !exists {
			if err := fs.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	b := &FileBackend{fs: fs, path: path, data: make(map[string]string)}

	raw, err := afero.ReadFile(fs, path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &b.data); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return b, nil
}

// Get returns the value stored under key
func (b *FileBackend) Get(ctx context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return "", false, ErrClosed
	}
	v, ok := b.data[key]
	return v, ok, nil
}

// Set stores value under key and persists the document
func (b *FileBackend) Set(ctx context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	prev, had := b.data[key]
	b.data[key] = value
	if err := b.flushLocked(); err != nil {
		if had {
			b.data[key] = prev
		} else {
			delete(b.data, key)
		}
		return err
	}
	return nil
}

// Delete removes key and persists the document
func (b *FileBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	prev, had := b.data[key]
	if !had {
		return nil
	}
	delete(b.data, key)
	if err := b.flushLocked(); err != nil {
		b.data[key] = prev
		return err
	}
	return nil
}

// Keys lists all keys in ascending order
func (b *FileBackend) Keys(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear removes every key and persists the empty document
func (b *FileBackend) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	prev := b.data
	b.data = make(map[string]string)
	if err := b.flushLocked(); err != nil {
		b.data = prev
		return err
	}
	return nil
}

// Ping reports whether the backend is open
func (b *FileBackend) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the backend closed; the data is already on disk
func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *FileBackend) flushLocked() error {
	raw, err := json.Marshal(b.data)
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	tmp := b.path + ".tmp"
	if err := afero.WriteFile(b.fs, tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := b.fs.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", b.path, err)
	}
	return nil
}
