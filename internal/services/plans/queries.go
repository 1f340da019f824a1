package plans

import (
	"context"
	"sort"
	"strings"

	"github.com/benvon/smart-trips/internal/models"
	"go.opentelemetry.io/otel/attribute"
)

// GetAllPlans returns every plan that is not soft-deleted, in stored order
func (s *Service) GetAllPlans(ctx context.Context) []*models.Plan {
	ctx, span := s.startSpan(ctx, "GetAllPlans")
	defer span.End()
	return s.activePlans(ctx)
}

func (s *Service) activePlans(ctx context.Context) []*models.Plan {
	all := s.repos.Plans.LoadBatch(ctx)
	out := make([]*models.Plan, 0, len(all))
	for _, p := range all {
		if !p.Metadata.IsDeleted {
			out = append(out, p)
		}
	}
	return out
}

// GetPlanByID returns the plan with id, or nil when it is absent or deleted
func (s *Service) GetPlanByID(ctx context.Context, id string) *models.Plan {
	ctx, span := s.startSpan(ctx, "GetPlanByID")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", id))

	for _, p := range s.activePlans(ctx) {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// GetPlans filters and sorts the non-deleted plans. Either argument may be nil.
func (s *Service) GetPlans(ctx context.Context, filter *models.FilterOptions, sortOpts *models.SortOptions) []*models.Plan {
	ctx, span := s.startSpan(ctx, "GetPlans")
	defer span.End()

	plans := s.activePlans(ctx)
	if filter != nil {
		plans = s.filter(plans, filter)
	}
	if sortOpts != nil {
		sortPlans(plans, *sortOpts)
	}
	span.SetAttributes(attribute.Int("plans.count", len(plans)))
	return plans
}

func (s *Service) filter(plans []*models.Plan, f *models.FilterOptions) []*models.Plan {
	out := make([]*models.Plan, 0, len(plans))
	for _, p := range plans {
		if len(f.Status) > 0 && !p.HasStatus(f.Status) {
			continue
		}
		if f.DateRange != nil && !s.inDateRange(p.StartDate, f.DateRange.Start, f.DateRange.End) {
			continue
		}
		if len(f.Tags) > 0 && !p.HasAnyTag(f.Tags) {
			continue
		}
		if f.SearchQuery != "" && !p.MatchesQuery(f.SearchQuery) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// sortPlans orders plans in place. Equal keys keep their relative order.
func sortPlans(plans []*models.Plan, opts models.SortOptions) {
	var less func(a, b *models.Plan) bool
	switch opts.Field {
	case models.SortByTitle:
		less = func(a, b *models.Plan) bool {
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		}
	case models.SortByStartDate:
		less = func(a, b *models.Plan) bool { return a.StartDate.Before(b.StartDate) }
	case models.SortByCreatedAt:
		less = func(a, b *models.Plan) bool { return a.Metadata.CreatedAt.Before(b.Metadata.CreatedAt) }
	case models.SortByUpdatedAt:
		less = func(a, b *models.Plan) bool { return a.Metadata.UpdatedAt.Before(b.Metadata.UpdatedAt) }
	default:
		return
	}

	if opts.Direction == models.SortDesc {
		sort.SliceStable(plans, func(i, j int) bool { return less(plans[j], plans[i]) })
		return
	}
	sort.SliceStable(plans, func(i, j int) bool { return less(plans[i], plans[j]) })
}

// GetPlansByDate returns the plans whose start falls on date (YYYY-MM-DD) in
// the configured timezone
func (s *Service) GetPlansByDate(ctx context.Context, date string) []*models.Plan {
	ctx, span := s.startSpan(ctx, "GetPlansByDate")
	defer span.End()
	span.SetAttributes(attribute.String("plans.date", date))

	return s.byDateRange(ctx, date, date)
}

// GetPlansByDateRange returns the plans whose local start date lies within
// [start, end]
func (s *Service) GetPlansByDateRange(ctx context.Context, start, end string) []*models.Plan {
	ctx, span := s.startSpan(ctx, "GetPlansByDateRange")
	defer span.End()
	span.SetAttributes(attribute.String("plans.start", start), attribute.String("plans.end", end))

	return s.byDateRange(ctx, start, end)
}

func (s *Service) byDateRange(ctx context.Context, start, end string) []*models.Plan {
	out := []*models.Plan{}
	for _, p := range s.activePlans(ctx) {
		if s.inDateRange(p.StartDate, start, end) {
			out = append(out, p)
		}
	}
	return out
}

// SearchPlans matches query case-insensitively against title, description,
// location and tags
func (s *Service) SearchPlans(ctx context.Context, query string) []*models.Plan {
	ctx, span := s.startSpan(ctx, "SearchPlans")
	defer span.End()

	out := []*models.Plan{}
	for _, p := range s.activePlans(ctx) {
		if p.MatchesQuery(query) {
			out = append(out, p)
		}
	}
	return out
}

// GetPlansByTag returns the plans carrying tag, compared case-insensitively
func (s *Service) GetPlansByTag(ctx context.Context, tag string) []*models.Plan {
	ctx, span := s.startSpan(ctx, "GetPlansByTag")
	defer span.End()
	span.SetAttributes(attribute.String("plans.tag", tag))

	out := []*models.Plan{}
	for _, p := range s.activePlans(ctx) {
		if p.HasTag(tag) {
			out = append(out, p)
		}
	}
	return out
}
