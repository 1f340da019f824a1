package plans

import (
	"context"
	"fmt"

	"github.com/benvon/smart-trips/internal/models"
)

// SaveDraft stores an unsaved plan form. A new id is assigned when id is empty.
func (s *Service) SaveDraft(ctx context.Context, id string, form models.PlanFormData) (*models.Draft, error) {
	ctx, span := s.startSpan(ctx, "SaveDraft")
	defer span.End()

	if id == "" {
		id = s.newID()
	}
	draft := &models.Draft{ID: id, Form: form, SavedAt: s.now().UTC()}
	if err := s.repos.Drafts.Save(ctx, draft); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	return draft, nil
}

// GetDrafts returns the stored drafts, most recent first
func (s *Service) GetDrafts(ctx context.Context) []*models.Draft {
	ctx, span := s.startSpan(ctx, "GetDrafts")
	defer span.End()
	return s.repos.Drafts.List(ctx)
}

// DeleteDraft removes a draft and reports whether it existed
func (s *Service) DeleteDraft(ctx context.Context, id string) (bool, error) {
	ctx, span := s.startSpan(ctx, "DeleteDraft")
	defer span.End()

	ok, err := s.repos.Drafts.Delete(ctx, id)
	if err != nil {
		recordError(span, err)
		return false, err
	}
	return ok, nil
}

// GetPreferences returns the stored listing preferences
func (s *Service) GetPreferences(ctx context.Context) *models.Preferences {
	ctx, span := s.startSpan(ctx, "GetPreferences")
	defer span.End()
	return s.repos.Preferences.Get(ctx)
}

// SetPreferences replaces the listing preferences
func (s *Service) SetPreferences(ctx context.Context, prefs *models.Preferences) error {
	ctx, span := s.startSpan(ctx, "SetPreferences")
	defer span.End()

	if prefs == nil {
		prefs = &models.Preferences{}
	}
	if err := s.repos.Preferences.Set(ctx, prefs); err != nil {
		recordError(span, err)
		return err
	}
	return nil
}
