package database

import (
	"context"
	"fmt"
	"sort"

	"github.com/benvon/smart-trips/internal/kvstore"
	"github.com/benvon/smart-trips/internal/models"
)

// DraftRepository keeps unsaved plan forms as a map under DraftsKey
type DraftRepository struct {
	store *kvstore.Store
}

// NewDraftRepository creates a new draft repository
func NewDraftRepository(store *kvstore.Store) *DraftRepository {
	return &DraftRepository{store: store}
}

func (r *DraftRepository) load(ctx context.Context) map[string]*models.Draft {
	drafts := kvstore.GetObject(ctx, r.store, DraftsKey, map[string]*models.Draft{})
	if drafts == nil {
		drafts = map[string]*models.Draft{}
	}
	return drafts
}

// Save stores draft, replacing any draft with the same id
func (r *DraftRepository) Save(ctx context.Context, draft *models.Draft) error {
	drafts := r.load(ctx)
	drafts[draft.ID] = draft
	if err := r.store.SetObject(ctx, DraftsKey, drafts); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// List returns every draft, most recently saved first
func (r *DraftRepository) List(ctx context.Context) []*models.Draft {
	drafts := r.load(ctx)
	out := make([]*models.Draft, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SavedAt.Equal(out[j].SavedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SavedAt.After(out[j].SavedAt)
	})
	return out
}

// Delete removes the draft with id and reports whether it existed
func (r *DraftRepository) Delete(ctx context.Context, id string) (bool, error) {
	drafts := r.load(ctx)
	if _, ok := drafts[id]; !ok {
		return false, nil
	}
	delete(drafts, id)
	if err := r.store.SetObject(ctx, DraftsKey, drafts); err != nil {
		return false, fmt.Errorf("failed to delete draft: %w", err)
	}
	return true, nil
}
