package database

import (
	"context"
	"fmt"

	"github.com/benvon/smart-trips/internal/kvstore"
	"github.com/benvon/smart-trips/internal/models"
)

// PreferencesRepository stores user preferences under PreferencesKey
type PreferencesRepository struct {
	store *kvstore.Store
}

// NewPreferencesRepository creates a new preferences repository
func NewPreferencesRepository(store *kvstore.Store) *PreferencesRepository {
	return &PreferencesRepository{store: store}
}

// Get returns the stored preferences, or empty preferences when none exist
func (r *PreferencesRepository) Get(ctx context.Context) *models.Preferences {
	prefs := kvstore.GetObject[*models.Preferences](ctx, r.store, PreferencesKey, nil)
	if prefs == nil {
		return &models.Preferences{}
	}
	return prefs
}

// Set replaces the stored preferences
func (r *PreferencesRepository) Set(ctx context.Context, prefs *models.Preferences) error {
	if err := r.store.SetObject(ctx, PreferencesKey, prefs); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
