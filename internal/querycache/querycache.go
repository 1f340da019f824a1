// Package querycache memoizes plan read operations with per-operation
// staleness windows. Every mutation reported by the source drops all entries.
package querycache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/benvon/smart-trips/internal/models"
	"github.com/benvon/smart-trips/internal/services/plans"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// Staleness windows per operation family
const (
	ByIDTTL      = 10 * time.Minute
	ListTTL      = 5 * time.Minute
	SearchTTL    = time.Minute
	StatsTTL     = time.Minute
	SyncStateTTL = 30 * time.Second

	// DefaultSize bounds each family's entry count
	DefaultSize = 256
)

// Source is the set of plan reads the cache wraps
type Source interface {
	GetPlanByID(ctx context.Context, id string) *models.Plan
	GetAllPlans(ctx context.Context) []*models.Plan
	GetPlans(ctx context.Context, filter *models.FilterOptions, sort *models.SortOptions) []*models.Plan
	GetPlansByDate(ctx context.Context, date string) []*models.Plan
	GetPlansByDateRange(ctx context.Context, start, end string) []*models.Plan
	SearchPlans(ctx context.Context, query string) []*models.Plan
	GetPlansByTag(ctx context.Context, tag string) []*models.Plan
	GetPlanStats(ctx context.Context) *models.PlanStats
	GetSyncState(ctx context.Context) *models.SyncState
	OnChange(h plans.ChangeHandler)
}

var _ Source = (*plans.Service)(nil)

// Cache wraps a Source. Results are copied on the way out, so callers may
// modify what they receive.
type Cache struct {
	src    Source
	logger *zap.Logger

	// gen is bumped on invalidation; a load started under an older
	// generation is returned but not stored. mu covers gen together with
	// the purge and every store.
	mu  sync.Mutex
	gen uint64

	byID   *expirable.LRU[string, *models.Plan]
	lists  *expirable.LRU[string, []*models.Plan]
	search *expirable.LRU[string, []*models.Plan]
	stats  *expirable.LRU[string, *models.PlanStats]
	sync   *expirable.LRU[string, *models.SyncState]
}

// Option configures a Cache
type Option func(*config)

type config struct {
	size   int
	logger *zap.Logger
}

// WithSize sets the entry bound of each operation family
func WithSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithLogger sets the cache logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New wraps src and subscribes to its change notifications
func New(src Source, opts ...Option) *Cache {
	cfg := config{size: DefaultSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Cache{
		src:    src,
		logger: cfg.logger,
		byID:   expirable.NewLRU[string, *models.Plan](cfg.size, nil, ByIDTTL),
		lists:  expirable.NewLRU[string, []*models.Plan](cfg.size, nil, ListTTL),
		search: expirable.NewLRU[string, []*models.Plan](cfg.size, nil, SearchTTL),
		stats:  expirable.NewLRU[string, *models.PlanStats](1, nil, StatsTTL),
		sync:   expirable.NewLRU[string, *models.SyncState](1, nil, SyncStateTTL),
	}
	src.OnChange(func(ctx context.Context, change plans.Change) {
		c.InvalidateAll()
	})
	return c
}

// InvalidateAll drops every cached result
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.gen++
	c.byID.Purge()
	c.lists.Purge()
	c.search.Purge()
	c.stats.Purge()
	c.sync.Purge()
	c.mu.Unlock()
	c.logger.Debug("query_cache_invalidated")
}

func (c *Cache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// storeIfCurrent adds v under k unless an invalidation happened since gen
func storeIfCurrent[V any](c *Cache, gen uint64, lru *expirable.LRU[string, V], k string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		lru.Add(k, v)
	}
}

// GetPlanByID returns the plan with id, or nil. Misses are not cached.
func (c *Cache) GetPlanByID(ctx context.Context, id string) *models.Plan {
	if p, ok := c.byID.Get(id); ok {
		return p.Clone()
	}
	gen := c.generation()
	p := c.src.GetPlanByID(ctx, id)
	if p != nil {
		storeIfCurrent(c, gen, c.byID, id, p.Clone())
	}
	return p
}

// GetAllPlans returns every non-deleted plan
func (c *Cache) GetAllPlans(ctx context.Context) []*models.Plan {
	return c.listFrom(c.lists, "all", func() []*models.Plan {
		return c.src.GetAllPlans(ctx)
	})
}

// GetPlans returns the filtered and sorted plans
func (c *Cache) GetPlans(ctx context.Context, filter *models.FilterOptions, sort *models.SortOptions) []*models.Plan {
	return c.listFrom(c.lists, key("plans", filter, sort), func() []*models.Plan {
		return c.src.GetPlans(ctx, filter, sort)
	})
}

// GetPlansByDate returns the plans starting on date
func (c *Cache) GetPlansByDate(ctx context.Context, date string) []*models.Plan {
	return c.listFrom(c.lists, key("byDate", date), func() []*models.Plan {
		return c.src.GetPlansByDate(ctx, date)
	})
}

// GetPlansByDateRange returns the plans starting within [start, end]
func (c *Cache) GetPlansByDateRange(ctx context.Context, start, end string) []*models.Plan {
	return c.listFrom(c.lists, key("byDateRange", start, end), func() []*models.Plan {
		return c.src.GetPlansByDateRange(ctx, start, end)
	})
}

// GetPlansByTag returns the plans carrying tag
func (c *Cache) GetPlansByTag(ctx context.Context, tag string) []*models.Plan {
	return c.listFrom(c.lists, key("byTag", strings.ToLower(tag)), func() []*models.Plan {
		return c.src.GetPlansByTag(ctx, tag)
	})
}

// SearchPlans returns the plans matching query
func (c *Cache) SearchPlans(ctx context.Context, query string) []*models.Plan {
	return c.listFrom(c.search, key("search", strings.ToLower(strings.TrimSpace(query))), func() []*models.Plan {
		return c.src.SearchPlans(ctx, query)
	})
}

// GetPlanStats returns the plan summary
func (c *Cache) GetPlanStats(ctx context.Context) *models.PlanStats {
	if s, ok := c.stats.Get("stats"); ok {
		return cloneStats(s)
	}
	gen := c.generation()
	s := c.src.GetPlanStats(ctx)
	storeIfCurrent(c, gen, c.stats, "stats", cloneStats(s))
	return s
}

// GetSyncState returns the sync summary
func (c *Cache) GetSyncState(ctx context.Context) *models.SyncState {
	if s, ok := c.sync.Get("syncState"); ok {
		cp := *s
		return &cp
	}
	gen := c.generation()
	s := c.src.GetSyncState(ctx)
	cp := *s
	storeIfCurrent(c, gen, c.sync, "syncState", &cp)
	return s
}

func (c *Cache) listFrom(lru *expirable.LRU[string, []*models.Plan], k string, load func() []*models.Plan) []*models.Plan {
	if v, ok := lru.Get(k); ok {
		return clonePlans(v)
	}
	gen := c.generation()
	v := load()
	storeIfCurrent(c, gen, lru, k, clonePlans(v))
	return v
}

// key builds a cache key from the operation name and its JSON-encoded arguments
func key(op string, args ...any) string {
	raw, err := json.Marshal(args)
	if err != nil {
		return op
	}
	return op + ":" + string(raw)
}

func clonePlans(in []*models.Plan) []*models.Plan {
	out := make([]*models.Plan, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}

func cloneStats(s *models.PlanStats) *models.PlanStats {
	cp := *s
	cp.ByStatus = make(map[models.PlanStatus]int, len(s.ByStatus))
	for k, v := range s.ByStatus {
		cp.ByStatus[k] = v
	}
	cp.ByCategory = make(map[string]int, len(s.ByCategory))
	for k, v := range s.ByCategory {
		cp.ByCategory[k] = v
	}
	cp.ByPriority = make(map[string]int, len(s.ByPriority))
	for k, v := range s.ByPriority {
		cp.ByPriority[k] = v
	}
	return &cp
}
