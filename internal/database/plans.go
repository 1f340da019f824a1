package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/benvon/smart-trips/internal/kvstore"
	"github.com/benvon/smart-trips/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Persisted key layout
const (
	PlansKey           = "plans"
	PlanKeyPrefix      = "plan_"
	PlansWALKey        = "plans_wal"
	DraftsKey          = "plan_drafts"
	PreferencesKey     = "user_preferences"
	LastSyncKey        = "last_sync"
	CorsConfigKey      = "cors_config"
	RatelimitConfigKey = "ratelimit_config"
)

// maxMirrorWriters bounds the concurrent per-id mirror writes of one batch
const maxMirrorWriters = 16

// PlanKey returns the mirror key of one plan
func PlanKey(id string) string {
	return PlanKeyPrefix + id
}

// PlanRepository stores the plan collection under PlansKey and mirrors each
// plan under PlanKey(id) for point lookups.
//
// The canonical write and the mirror writes are not atomic. SaveBatch records
// the ids it is about to write under PlansWALKey and removes the marker only
// after every mirror landed; LoadBatch repairs the mirrors when it finds a
// leftover marker. Batch writes and repairs hold mu so a repair never
// overwrites mirrors from a newer batch.
type PlanRepository struct {
	store  *kvstore.Store
	logger *zap.Logger

	mu sync.Mutex
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(store *kvstore.Store) *PlanRepository {
	return &PlanRepository{store: store, logger: zap.NewNop()}
}

// SetLogger sets the logger for the repository
func (r *PlanRepository) SetLogger(logger *zap.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// SaveBatch writes the whole collection and then every mirror concurrently,
// returning once all writes have completed
func (r *PlanRepository) SaveBatch(ctx context.Context, plans []*models.Plan) error {
	if plans == nil {
		plans = []*models.Plan{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(plans))
	for _, p := range plans {
		ids = append(ids, p.ID)
	}
	if err := r.store.SetObject(ctx, PlansWALKey, ids); err != nil {
		return fmt.Errorf("failed to write plans marker: %w", err)
	}

	if err := r.store.SetObject(ctx, PlansKey, plans); err != nil {
		return fmt.Errorf("failed to save plans: %w", err)
	}

	if err := r.writeMirrors(ctx, plans); err != nil {
		// marker stays behind so the next load repairs the mirrors
		return err
	}

	if err := r.store.Delete(ctx, PlansWALKey); err != nil {
		r.logger.Warn("failed_to_clear_plans_marker", zap.Error(err))
	}
	return nil
}

func (r *PlanRepository) writeMirrors(ctx context.Context, plans []*models.Plan) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxMirrorWriters)
	for _, p := range plans {
		g.Go(func() error {
			if err := r.store.SetObject(gctx, PlanKey(p.ID), p); err != nil {
				return fmt.Errorf("failed to mirror plan %s: %w", p.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// LoadBatch returns the whole collection, or an empty slice when none is stored
func (r *PlanRepository) LoadBatch(ctx context.Context) []*models.Plan {
	plans := kvstore.GetObject(ctx, r.store, PlansKey, []*models.Plan{})
	if plans == nil {
		plans = []*models.Plan{}
	}

	if r.store.Contains(ctx, PlansWALKey) {
		return r.repair(ctx, plans)
	}
	return plans
}

// repair rewrites the mirrors of an interrupted batch. The collection and the
// marker are read again under the lock; a batch that completed in the
// meantime has already written its own mirrors and cleared the marker.
func (r *PlanRepository) repair(ctx context.Context, stale []*models.Plan) []*models.Plan {
	r.mu.Lock()
	defer r.mu.Unlock()

	plans := kvstore.GetObject(ctx, r.store, PlansKey, stale)
	if plans == nil {
		plans = []*models.Plan{}
	}
	if !r.store.Contains(ctx, PlansWALKey) {
		return plans
	}

	r.logger.Warn("repairing_plan_mirrors", zap.Int("plans", len(plans)))
	if err := r.writeMirrors(ctx, plans); err != nil {
		r.logger.Error("failed_to_repair_plan_mirrors", zap.Error(err))
		return plans
	}
	if err := r.store.Delete(ctx, PlansWALKey); err != nil {
		r.logger.Warn("failed_to_clear_plans_marker", zap.Error(err))
	}
	return plans
}

// GetByID reads the mirror of one plan directly. The mirror may lag behind the
// collection or be missing; nil is returned when it is absent. Soft-deleted
// plans are returned as stored.
func (r *PlanRepository) GetByID(ctx context.Context, id string) *models.Plan {
	return kvstore.GetObject[*models.Plan](ctx, r.store, PlanKey(id), nil)
}

// InvalidateCache drops cached copies of the collection and the given mirrors,
// forcing the next read to the backend
func (r *PlanRepository) InvalidateCache(ids ...string) {
	r.store.ClearCacheForKey(PlansKey)
	r.store.ClearCacheForKey(PlansWALKey)
	for _, id := range ids {
		r.store.ClearCacheForKey(PlanKey(id))
	}
}
