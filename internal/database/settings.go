package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/benvon/smart-trips/internal/kvstore"
	"github.com/benvon/smart-trips/internal/models"
)

// Settings are single-document records that running servers poll. Reads drop
// the cached copy first so that edits from planctl or another instance sharing
// the backend are seen on the next reload.

func loadSetting[T any](ctx context.Context, store *kvstore.Store, key string) *T {
	store.ClearCacheForKey(key)
	return kvstore.GetObject[*T](ctx, store, key, nil)
}

// CorsConfigRepository stores the CORS policy
type CorsConfigRepository struct {
	store *kvstore.Store
}

// NewCorsConfigRepository creates a new CORS config repository
func NewCorsConfigRepository(store *kvstore.Store) *CorsConfigRepository {
	return &CorsConfigRepository{store: store}
}

// Get returns the stored policy, or nil when none has been stored
func (r *CorsConfigRepository) Get(ctx context.Context) (*models.CorsConfig, error) {
	return loadSetting[models.CorsConfig](ctx, r.store, CorsConfigKey), nil
}

// Set validates and stores the policy. Every origin must be "*" or an http(s)
// origin without a path.
func (r *CorsConfigRepository) Set(ctx context.Context, c *models.CorsConfig) error {
	origins := c.Origins()
	if len(origins) == 0 {
		return fmt.Errorf("allowed_origins cannot be empty")
	}
	for _, origin := range origins {
		if err := validateOrigin(origin); err != nil {
			return err
		}
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("max_age cannot be negative")
	}

	c.AllowedOrigins = strings.Join(origins, ",")
	c.UpdatedAt = time.Now().UTC()
	if err := r.store.SetObject(ctx, CorsConfigKey, c); err != nil {
		return fmt.Errorf("failed to store cors config: %w", err)
	}
	return nil
}

func validateOrigin(origin string) error {
	if origin == "*" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid origin %q: expected scheme://host[:port]", origin)
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("invalid origin %q: origins carry no path, query or fragment", origin)
	}
	return nil
}

// RatelimitConfigRepository stores the API rate
type RatelimitConfigRepository struct {
	store *kvstore.Store
}

// NewRatelimitConfigRepository creates a new ratelimit config repository
func NewRatelimitConfigRepository(store *kvstore.Store) *RatelimitConfigRepository {
	return &RatelimitConfigRepository{store: store}
}

// Get returns the stored rate, or nil when none has been stored
func (r *RatelimitConfigRepository) Get(ctx context.Context) (*models.RatelimitConfig, error) {
	return loadSetting[models.RatelimitConfig](ctx, r.store, RatelimitConfigKey), nil
}

// Set stores the rate. The format is checked by the limiter when servers
// reload it; an unparsable rate leaves them on their default.
func (r *RatelimitConfigRepository) Set(ctx context.Context, c *models.RatelimitConfig) error {
	c.Rate = strings.TrimSpace(c.Rate)
	if c.Rate == "" {
		return fmt.Errorf("rate cannot be empty")
	}
	c.UpdatedAt = time.Now().UTC()
	if err := r.store.SetObject(ctx, RatelimitConfigKey, c); err != nil {
		return fmt.Errorf("failed to store ratelimit config: %w", err)
	}
	return nil
}
