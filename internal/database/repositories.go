package database

import (
	"context"

	"github.com/benvon/smart-trips/internal/models"
)

// PlanRepositoryInterface defines the interface for plan repository operations
// This interface enables better testability by allowing mock implementations
type PlanRepositoryInterface interface {
	SaveBatch(ctx context.Context, plans []*models.Plan) error
	LoadBatch(ctx context.Context) []*models.Plan
	GetByID(ctx context.Context, id string) *models.Plan
}

// DraftRepositoryInterface defines the interface for draft repository operations
type DraftRepositoryInterface interface {
	Save(ctx context.Context, draft *models.Draft) error
	List(ctx context.Context) []*models.Draft
	Delete(ctx context.Context, id string) (bool, error)
}

// PreferencesRepositoryInterface defines the interface for preferences repository operations
type PreferencesRepositoryInterface interface {
	Get(ctx context.Context) *models.Preferences
	Set(ctx context.Context, prefs *models.Preferences) error
}

// SyncStateRepositoryInterface defines the interface for sync bookkeeping reads
type SyncStateRepositoryInterface interface {
	LastSyncAt(ctx context.Context) string
}

// Ensure concrete types implement the interfaces
var (
	_ PlanRepositoryInterface        = (*PlanRepository)(nil)
	_ DraftRepositoryInterface       = (*DraftRepository)(nil)
	_ PreferencesRepositoryInterface = (*PreferencesRepository)(nil)
	_ SyncStateRepositoryInterface   = (*SyncStateRepository)(nil)
)
