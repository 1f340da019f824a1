package plans

import (
	"context"
	"fmt"

	"github.com/benvon/smart-trips/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CreatePlan stores a new active plan built from form. The title is not
// checked here; callers enforce their own input rules.
func (s *Service) CreatePlan(ctx context.Context, form models.PlanFormData) (*models.Plan, error) {
	ctx, span := s.startSpan(ctx, "CreatePlan")
	defer span.End()

	now := s.now().UTC()
	plan := &models.Plan{
		ID:            s.newID(),
		Title:         form.Title,
		Description:   form.Description,
		Location:      form.Location,
		Notes:         form.Notes,
		StartDate:     form.StartDate.UTC(),
		EndDate:       form.EndDate.UTC(),
		StartTime:     form.StartTime,
		EndTime:       form.EndTime,
		AllDay:        form.AllDay,
		Tags:          append([]string{}, form.Tags...),
		Status:        models.PlanStatusActive,
		Attachments:   []string{},
		Notifications: []string{},
		Metadata: models.PlanMetadata{
			CreatedAt:  now,
			UpdatedAt:  now,
			Version:    1,
			SyncStatus: models.SyncStatusLocal,
		},
	}
	span.SetAttributes(attribute.String("plan.id", plan.ID))

	s.mu.Lock()
	all := s.repos.Plans.LoadBatch(ctx)
	all = append(all, plan)
	err := s.repos.Plans.SaveBatch(ctx, all)
	s.mu.Unlock()
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	s.logger.Debug("plan_created", zap.String("plan_id", plan.ID))
	s.notify(ctx, ChangeOpCreate, plan.ID)
	return plan, nil
}

// mutate applies fn to the plan with id under the collection lock and persists
// the batch. Deleted plans are only visible when includeDeleted is set. It
// returns nil when no plan matched.
func (s *Service) mutate(ctx context.Context, id string, includeDeleted bool, fn func(p *models.Plan) error) (*models.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.repos.Plans.LoadBatch(ctx)
	var target *models.Plan
	for _, p := range all {
		if p.ID == id && (includeDeleted || !p.Metadata.IsDeleted) {
			target = p
			break
		}
	}
	if target == nil {
		return nil, nil
	}

	if err := fn(target); err != nil {
		return nil, err
	}
	target.Metadata.Version++
	target.Metadata.UpdatedAt = s.timestamp(target.Metadata.UpdatedAt)
	target.Metadata.SyncStatus = models.SyncStatusPending

	if err := s.repos.Plans.SaveBatch(ctx, all); err != nil {
		return nil, fmt.Errorf("failed to save plan %s: %w", id, err)
	}
	return target, nil
}

// UpdatePlan overwrites the fields set in update. It returns nil without error
// when the plan does not exist or is deleted.
func (s *Service) UpdatePlan(ctx context.Context, id string, update models.PlanUpdate) (*models.Plan, error) {
	ctx, span := s.startSpan(ctx, "UpdatePlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", id))

	p, err := s.mutate(ctx, id, false, func(p *models.Plan) error {
		applyUpdate(p, update)
		return nil
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if p != nil {
		s.notify(ctx, ChangeOpUpdate, id)
	}
	return p, nil
}

// UpdatePlanIfVersion is UpdatePlan guarded by the version the caller last
// observed. ErrConflict is returned when the stored version differs.
func (s *Service) UpdatePlanIfVersion(ctx context.Context, id string, expectedVersion int, update models.PlanUpdate) (*models.Plan, error) {
	ctx, span := s.startSpan(ctx, "UpdatePlanIfVersion")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", id), attribute.Int("plan.expected_version", expectedVersion))

	p, err := s.mutate(ctx, id, false, func(p *models.Plan) error {
		if p.Metadata.Version != expectedVersion {
			return fmt.Errorf("%w: plan %s is at version %d, expected %d", ErrConflict, id, p.Metadata.Version, expectedVersion)
		}
		applyUpdate(p, update)
		return nil
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if p != nil {
		s.notify(ctx, ChangeOpUpdate, id)
	}
	return p, nil
}

func applyUpdate(p *models.Plan, u models.PlanUpdate) {
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Location != nil {
		p.Location = *u.Location
	}
	if u.Notes != nil {
		p.Notes = *u.Notes
	}
	if u.StartDate != nil {
		p.StartDate = u.StartDate.UTC()
	}
	if u.EndDate != nil {
		p.EndDate = u.EndDate.UTC()
	}
	if u.StartTime != nil {
		p.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		p.EndTime = *u.EndTime
	}
	if u.AllDay != nil {
		p.AllDay = *u.AllDay
	}
	if u.Tags != nil {
		p.Tags = append([]string{}, (*u.Tags)...)
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
}

// DeletePlan soft-deletes the plan and reports whether it was found
func (s *Service) DeletePlan(ctx context.Context, id string) (bool, error) {
	ctx, span := s.startSpan(ctx, "DeletePlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", id))

	p, err := s.mutate(ctx, id, false, func(p *models.Plan) error {
		p.Metadata.IsDeleted = true
		return nil
	})
	if err != nil {
		recordError(span, err)
		return false, err
	}
	if p == nil {
		return false, nil
	}
	s.logger.Debug("plan_deleted", zap.String("plan_id", id))
	s.notify(ctx, ChangeOpDelete, id)
	return true, nil
}

// CompletePlan sets the plan status to completed
func (s *Service) CompletePlan(ctx context.Context, id string) (*models.Plan, error) {
	status := models.PlanStatusCompleted
	return s.UpdatePlan(ctx, id, models.PlanUpdate{Status: &status})
}

// CancelPlan sets the plan status to cancelled
func (s *Service) CancelPlan(ctx context.Context, id string) (*models.Plan, error) {
	status := models.PlanStatusCancelled
	return s.UpdatePlan(ctx, id, models.PlanUpdate{Status: &status})
}

// RestorePlan clears the deleted flag. The version is bumped even when the
// plan was not deleted.
func (s *Service) RestorePlan(ctx context.Context, id string) (*models.Plan, error) {
	ctx, span := s.startSpan(ctx, "RestorePlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", id))

	p, err := s.mutate(ctx, id, true, func(p *models.Plan) error {
		p.Metadata.IsDeleted = false
		return nil
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if p != nil {
		s.notify(ctx, ChangeOpRestore, id)
	}
	return p, nil
}
