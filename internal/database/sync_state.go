package database

import (
	"context"

	"github.com/benvon/smart-trips/internal/kvstore"
)

// SyncStateRepository reads the bookkeeping of the (not yet implemented) remote sync
type SyncStateRepository struct {
	store *kvstore.Store
}

// NewSyncStateRepository creates a new sync state repository
func NewSyncStateRepository(store *kvstore.Store) *SyncStateRepository {
	return &SyncStateRepository{store: store}
}

// LastSyncAt returns the timestamp of the last completed sync, or "" if none
func (r *SyncStateRepository) LastSyncAt(ctx context.Context) string {
	return r.store.GetString(ctx, LastSyncKey, "")
}
