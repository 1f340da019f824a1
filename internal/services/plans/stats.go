package plans

import (
	"context"

	"github.com/benvon/smart-trips/internal/models"
)

// GetPlanStats summarizes the non-deleted plans. Upcoming and overdue only
// count active plans, relative to the current time.
func (s *Service) GetPlanStats(ctx context.Context) *models.PlanStats {
	ctx, span := s.startSpan(ctx, "GetPlanStats")
	defer span.End()

	stats := &models.PlanStats{
		ByStatus:   make(map[models.PlanStatus]int, len(models.AllPlanStatuses)),
		ByCategory: map[string]int{},
		ByPriority: map[string]int{},
	}
	for _, st := range models.AllPlanStatuses {
		stats.ByStatus[st] = 0
	}

	now := s.now()
	for _, p := range s.activePlans(ctx) {
		stats.Total++
		stats.ByStatus[p.Status]++
		switch p.Status {
		case models.PlanStatusActive:
			if p.StartDate.After(now) {
				stats.Upcoming++
			} else if p.StartDate.Before(now) {
				stats.Overdue++
			}
		case models.PlanStatusCompleted:
			stats.Completed++
		}
	}
	return stats
}

// GetSyncState reports the last sync time and the number of plans awaiting
// sync or in conflict. Deleted plans are counted, since their deletion still
// has to reach the remote.
func (s *Service) GetSyncState(ctx context.Context) *models.SyncState {
	ctx, span := s.startSpan(ctx, "GetSyncState")
	defer span.End()

	state := &models.SyncState{
		LastSyncAt: s.repos.SyncState.LastSyncAt(ctx),
		IsOnline:   true,
	}
	for _, p := range s.repos.Plans.LoadBatch(ctx) {
		switch p.Metadata.SyncStatus {
		case models.SyncStatusPending:
			state.PendingChanges++
		case models.SyncStatusConflict:
			state.Conflicts++
		}
	}
	return state
}
