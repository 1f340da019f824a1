package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/benvon/smart-trips/internal/models"
)

func testPlans(n int) []*models.Plan {
	plans := make([]*models.Plan, 0, n)
	for i := 0; i < n; i++ {
		plans = append(plans, &models.Plan{
			ID:        fmt.Sprintf("id-%d", i),
			Title:     fmt.Sprintf("Plan %d", i),
			StartDate: time.Date(2024, 4, 15, i, 0, 0, 0, time.UTC),
			Tags:      []string{},
			Status:    models.PlanStatusActive,
			Metadata:  models.PlanMetadata{Version: 1, SyncStatus: models.SyncStatusLocal},
		})
	}
	return plans
}

func TestPlanRepository_SaveAndLoadBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newTestStore(t)
	repo := NewPlanRepository(store)

	if got := repo.LoadBatch(ctx); len(got) != 0 {
		t.Fatalf("Expected empty collection, got %d plans", len(got))
	}

	plans := testPlans(20)
	if err := repo.SaveBatch(ctx, plans); err != nil {
		t.Fatalf("SaveBatch() error = %v", err)
	}

	loaded := repo.LoadBatch(ctx)
	if len(loaded) != 20 {
		t.Fatalf("Expected 20 plans, got %d", len(loaded))
	}
	for i, p := range loaded {
		if p.ID != plans[i].ID {
			t.Errorf("Expected order preserved at %d: want %s, got %s", i, plans[i].ID, p.ID)
		}
	}

	for _, p := range plans {
		if !store.Contains(ctx, PlanKey(p.ID)) {
			t.Errorf("Expected mirror key for %s", p.ID)
		}
	}
	if store.Contains(ctx, PlansWALKey) {
		t.Error("Expected marker to be cleared after a complete batch")
	}
}

func TestPlanRepository_GetByIDReadsMirror(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newTestStore(t)
	repo := NewPlanRepository(store)

	plans := testPlans(3)
	plans[1].Metadata.IsDeleted = true
	if err := repo.SaveBatch(ctx, plans); err != nil {
		t.Fatalf("SaveBatch() error = %v", err)
	}

	got := repo.GetByID(ctx, "id-1")
	if got == nil {
		t.Fatal("Expected mirror for id-1")
	}
	if !got.Metadata.IsDeleted {
		t.Error("Expected raw mirror lookup to return soft-deleted plan as stored")
	}

	if repo.GetByID(ctx, "missing") != nil {
		t.Error("Expected nil for missing mirror")
	}
}

func TestPlanRepository_InterruptedBatchIsRepaired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, backend := newTestStore(t)
	repo := NewPlanRepository(store)

	if err := repo.SaveBatch(ctx, testPlans(2)); err != nil {
		t.Fatalf("SaveBatch() error = %v", err)
	}

	updated := testPlans(3)
	updated[0].Title = "Renamed"

	backend.arm(PlanKeyPrefix)
	err := repo.SaveBatch(ctx, updated)
	if !errors.Is(err, errInjected) {
		t.Fatalf("Expected injected mirror failure, got %v", err)
	}
	if !store.Contains(ctx, PlansWALKey) {
		t.Fatal("Expected marker to survive a failed mirror write")
	}
	if repo.GetByID(ctx, "id-2") != nil {
		t.Fatal("Expected mirror for the new plan to be missing before repair")
	}

	backend.arm("")
	loaded := repo.LoadBatch(ctx)
	if len(loaded) != 3 {
		t.Fatalf("Expected canonical collection of 3, got %d", len(loaded))
	}

	if p := repo.GetByID(ctx, "id-2"); p == nil {
		t.Error("Expected mirror for id-2 after repair")
	}
	if p := repo.GetByID(ctx, "id-0"); p == nil || p.Title != "Renamed" {
		t.Errorf("Expected repaired mirror for id-0 to carry new title, got %+v", p)
	}
	if store.Contains(ctx, PlansWALKey) {
		t.Error("Expected marker to be cleared after repair")
	}
}

func TestPlanRepository_RepairDuringBatchKeepsNewMirrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, backend := newGatedStore(t)
	repo := NewPlanRepository(store)

	if err := repo.SaveBatch(ctx, testPlans(2)); err != nil {
		t.Fatalf("SaveBatch() error = %v", err)
	}

	updated := testPlans(2)
	updated[0].Title = "Renamed"
	updated[0].Metadata.Version = 2

	// The writer stops after setting the marker but before the collection
	// lands, so a concurrent load sees the old collection and the marker.
	backend.pauseOn(PlansKey)
	writerDone := make(chan error, 1)
	go func() { writerDone <- repo.SaveBatch(ctx, updated) }()
	<-backend.paused

	readerDone := make(chan []*models.Plan, 1)
	go func() { readerDone <- repo.LoadBatch(ctx) }()
	time.Sleep(50 * time.Millisecond)

	close(backend.resume)
	if err := <-writerDone; err != nil {
		t.Fatalf("SaveBatch() error = %v", err)
	}
	close(backend.hold)

	loaded := <-readerDone
	if len(loaded) != 2 || loaded[0].Title != "Renamed" {
		t.Errorf("Expected the load to return the new collection, got %+v", loaded)
	}
	p := repo.GetByID(ctx, "id-0")
	if p == nil || p.Title != "Renamed" || p.Metadata.Version != 2 {
		t.Errorf("Expected mirror for id-0 at version 2, got %+v", p)
	}
	if store.Contains(ctx, PlansWALKey) {
		t.Error("Expected marker to be cleared")
	}
}

func TestPlanRepository_CanonicalWriteFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, backend := newTestStore(t)
	repo := NewPlanRepository(store)

	backend.arm(PlansKey)
	if err := repo.SaveBatch(ctx, testPlans(1)); err == nil {
		t.Fatal("Expected error when the canonical write fails")
	}
}

func TestPlanRepository_InvalidateCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, backend := newTestStore(t)
	repo := NewPlanRepository(store)

	if err := repo.SaveBatch(ctx, testPlans(1)); err != nil {
		t.Fatalf("SaveBatch() error = %v", err)
	}

	// another process rewrites the collection behind the cache
	if err := backend.MemoryBackend.Set(ctx, PlansKey, `[]`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := repo.LoadBatch(ctx); len(got) != 1 {
		t.Fatalf("Expected cached collection of 1, got %d", len(got))
	}

	repo.InvalidateCache("id-0")
	if got := repo.LoadBatch(ctx); len(got) != 0 {
		t.Errorf("Expected fresh empty collection after invalidation, got %d", len(got))
	}
}
