package plans

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/benvon/smart-trips/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// BuildExport assembles the export document for the non-deleted plans. The
// date range spans the earliest and latest start dates.
func (s *Service) BuildExport(ctx context.Context) *models.ExportData {
	ctx, span := s.startSpan(ctx, "BuildExport")
	defer span.End()

	plans := s.activePlans(ctx)
	data := &models.ExportData{
		Version:    models.ExportFormatVersion,
		ExportedAt: s.now().UTC(),
		Plans:      plans,
		Metadata:   models.ExportMetadata{TotalPlans: len(plans)},
	}

	for _, p := range plans {
		start := p.StartDate
		if data.Metadata.DateRange.Start == nil || start.Before(*data.Metadata.DateRange.Start) {
			data.Metadata.DateRange.Start = &start
		}
		if data.Metadata.DateRange.End == nil || start.After(*data.Metadata.DateRange.End) {
			data.Metadata.DateRange.End = &start
		}
	}
	span.SetAttributes(attribute.Int("plans.count", len(plans)))
	return data
}

// ExportPlans serializes the non-deleted plans into an indented JSON document
// that ImportPlans accepts
func (s *Service) ExportPlans(ctx context.Context) ([]byte, error) {
	raw, err := json.MarshalIndent(s.BuildExport(ctx), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return raw, nil
}

// ImportPlans appends the plans of an export document. Every record gets a
// fresh id and fresh timestamps; version, deletion and sync state are reset.
// Malformed input returns an error wrapping ErrImportFailed.
func (s *Service) ImportPlans(ctx context.Context, data []byte) ([]*models.Plan, error) {
	ctx, span := s.startSpan(ctx, "ImportPlans")
	defer span.End()

	incoming, err := decodeImport(data)
	if err != nil {
		recordError(span, err)
		s.logger.Warn("failed_to_parse_import", zap.Error(err))
		return nil, err
	}

	now := s.now().UTC()
	imported := make([]*models.Plan, 0, len(incoming))
	ids := make([]string, 0, len(incoming))
	for _, in := range incoming {
		if in == nil {
			continue
		}
		p := in.Clone()
		p.ID = s.newID()
		if p.Tags == nil {
			p.Tags = []string{}
		}
		if !p.Status.Valid() {
			p.Status = models.PlanStatusActive
		}
		p.Attachments = []string{}
		p.Notifications = []string{}
		p.Metadata = models.PlanMetadata{
			CreatedAt:  now,
			UpdatedAt:  now,
			Version:    1,
			SyncStatus: models.SyncStatusLocal,
		}
		imported = append(imported, p)
		ids = append(ids, p.ID)
	}

	s.mu.Lock()
	all := s.repos.Plans.LoadBatch(ctx)
	all = append(all, imported...)
	err = s.repos.Plans.SaveBatch(ctx, all)
	s.mu.Unlock()
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to save imported plans: %w", err)
	}

	span.SetAttributes(attribute.Int("plans.count", len(imported)))
	s.logger.Info("plans_imported", zap.Int("count", len(imported)))
	if len(ids) > 0 {
		s.notify(ctx, ChangeOpImport, ids...)
	}
	return imported, nil
}

func decodeImport(data []byte) ([]*models.Plan, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportFailed, err)
	}
	raw, ok := doc["plans"]
	if !ok {
		return nil, fmt.Errorf("%w: missing plans", ErrImportFailed)
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: plans is not an array", ErrImportFailed)
	}
	var plans []*models.Plan
	if err := json.Unmarshal(raw, &plans); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportFailed, err)
	}
	return plans, nil
}

