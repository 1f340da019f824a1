package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// DefaultCacheSize is the number of keys kept in the in-process cache
const DefaultCacheSize = 1024

// Store is the typed key-value adapter. Reads check the cache first and populate
// it from the backend; writes go to the backend and then to the cache.
// Getters never fail: a missing key, an unparseable value or a backend error all
// yield the caller's default, and errors are logged.
type Store struct {
	backend   Backend
	cache     *lru.Cache[string, string]
	cacheSize int
	logger    *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for swallowed storage errors
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCacheSize bounds the in-process cache to size keys (least recently used
// keys are evicted first). Non-positive sizes select DefaultCacheSize.
func WithCacheSize(size int) Option {
	return func(s *Store) {
		s.cacheSize = size
	}
}

// New creates a Store over backend
func New(backend Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend:   backend,
		cacheSize: DefaultCacheSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cacheSize <= 0 {
		s.cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, string](s.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

// Backend returns the durable backend behind the store
func (s *Store) Backend() Backend {
	return s.backend
}

// raw returns the stored string for key, consulting the cache first
func (s *Store) raw(ctx context.Context, key string) (string, bool) {
	if v, ok := s.cache.Get(key); ok {
		return v, true
	}
	v, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Warn("kv_get_failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	if !ok {
		return "", false
	}
	s.cache.Add(key, v)
	return v, true
}

func (s *Store) setRaw(ctx context.Context, key, value string) error {
	if err := s.backend.Set(ctx, key, value); err != nil {
		// the durable value is now unknown; force the next read to the backend
		s.cache.Remove(key)
		s.logger.Error("kv_set_failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to store %q: %w", key, err)
	}
	s.cache.Add(key, value)
	return nil
}

// SetString stores a string value
func (s *Store) SetString(ctx context.Context, key, value string) error {
	return s.setRaw(ctx, key, value)
}

// GetString returns the string stored under key or def
func (s *Store) GetString(ctx context.Context, key, def string) string {
	if v, ok := s.raw(ctx, key); ok {
		return v
	}
	return def
}

// SetNumber stores a numeric value
func (s *Store) SetNumber(ctx context.Context, key string, value float64) error {
	return s.setRaw(ctx, key, strconv.FormatFloat(value, 'f', -1, 64))
}

// GetNumber returns the number stored under key, or def when the key is missing
// or does not hold a number
func (s *Store) GetNumber(ctx context.Context, key string, def float64) float64 {
	v, ok := s.raw(ctx, key)
	if !ok {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		s.logger.Debug("kv_number_parse_failed", zap.String("key", key))
		return def
	}
	return n
}

// SetBoolean stores a boolean as "true" or "false"
func (s *Store) SetBoolean(ctx context.Context, key string, value bool) error {
	return s.setRaw(ctx, key, strconv.FormatBool(value))
}

// GetBoolean returns the boolean stored under key. Only "true" and "false" are
// recognised; anything else yields def.
func (s *Store) GetBoolean(ctx context.Context, key string, def bool) bool {
	v, ok := s.raw(ctx, key)
	if !ok {
		return def
	}
	switch v {
	case "true":
		return true
	case "false":
		return false
	default:
		return def
	}
}

// SetObject stores value as JSON
func (s *Store) SetObject(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("kv_marshal_failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to marshal %q: %w", key, err)
	}
	return s.setRaw(ctx, key, string(raw))
}

// GetObject decodes the JSON stored under key into a fresh T. It returns def
// when the key is missing or the JSON does not decode. Values are decoded on
// every call so callers never share mutable state through the cache.
func GetObject[T any](ctx context.Context, s *Store, key string, def T) T {
	v, ok := s.raw(ctx, key)
	if !ok {
		return def
	}
	var out T
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		s.logger.Warn("kv_unmarshal_failed", zap.String("key", key), zap.Error(err))
		return def
	}
	return out
}

// Contains reports whether key is cached or present in the backend
func (s *Store) Contains(ctx context.Context, key string) bool {
	if s.cache.Contains(key) {
		return true
	}
	_, ok := s.raw(ctx, key)
	return ok
}

// Delete removes key from the cache and the backend
func (s *Store) Delete(ctx context.Context, key string) error {
	s.cache.Remove(key)
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.Error("kv_delete_failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// GetAllKeys lists every durable key; errors yield an empty list
func (s *Store) GetAllKeys(ctx context.Context) []string {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		s.logger.Warn("kv_keys_failed", zap.Error(err))
		return []string{}
	}
	return keys
}

// GetKeysByPattern lists the durable keys matching pattern
func (s *Store) GetKeysByPattern(ctx context.Context, pattern *regexp.Regexp) []string {
	matched := []string{}
	for _, k := range s.GetAllKeys(ctx) {
		if pattern.MatchString(k) {
			matched = append(matched, k)
		}
	}
	return matched
}

// Clear empties the cache and the backend. It cannot be undone.
func (s *Store) Clear(ctx context.Context) error {
	s.cache.Purge()
	if err := s.backend.Clear(ctx); err != nil {
		s.logger.Error("kv_clear_failed", zap.Error(err))
		return fmt.Errorf("failed to clear store: %w", err)
	}
	return nil
}

// ClearCache drops every cached value without touching the backend
func (s *Store) ClearCache() {
	s.cache.Purge()
}

// ClearCacheForKey drops the cached value of key without touching the backend
func (s *Store) ClearCacheForKey(key string) {
	s.cache.Remove(key)
}

// GetSize approximates the storage footprint as the sum of key and value lengths
func (s *Store) GetSize(ctx context.Context) int {
	total := 0
	for _, k := range s.GetAllKeys(ctx) {
		v, _ := s.raw(ctx, k)
		total += len(k) + len(v)
	}
	return total
}

// Ping checks the backend
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close closes the backend
func (s *Store) Close() error {
	return s.backend.Close()
}
