package plans

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benvon/smart-trips/internal/database"
	"github.com/benvon/smart-trips/internal/kvstore"
	"github.com/benvon/smart-trips/internal/models"
	"github.com/stretchr/testify/require"
)

var seoul = time.FixedZone("KST", 9*60*60)

// fakeClock is a settable clock safe for concurrent use
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	store *kvstore.Store
	repo  *database.PlanRepository
	clock *fakeClock
	svc   *Service
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	store, err := kvstore.New(kvstore.NewMemoryBackend())
	require.NoError(t, err)

	env := &testEnv{
		store: store,
		repo:  database.NewPlanRepository(store),
		clock: newFakeClock(time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)),
	}
	opts = append([]Option{WithClock(env.clock.Now), WithLocation(seoul)}, opts...)
	env.svc = NewService(env.repos(env.repo), opts...)
	return env
}

func (e *testEnv) repos(plans database.PlanRepositoryInterface) Repositories {
	return Repositories{
		Plans:       plans,
		Drafts:      database.NewDraftRepository(e.store),
		Preferences: database.NewPreferencesRepository(e.store),
		SyncState:   database.NewSyncStateRepository(e.store),
	}
}

func (e *testEnv) create(t *testing.T, form models.PlanFormData) *models.Plan {
	t.Helper()
	p, err := e.svc.CreatePlan(context.Background(), form)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func ids(plans []*models.Plan) []string {
	out := make([]string, 0, len(plans))
	for _, p := range plans {
		out = append(out, p.ID)
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}

// gatedRepository blocks the first LoadBatch until release is closed and
// counts every load
type gatedRepository struct {
	database.PlanRepositoryInterface

	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	loads int
}

func newGatedRepository(inner database.PlanRepositoryInterface) *gatedRepository {
	return &gatedRepository{
		PlanRepositoryInterface: inner,
		entered:                 make(chan struct{}),
		release:                 make(chan struct{}),
	}
}

func (g *gatedRepository) LoadBatch(ctx context.Context) []*models.Plan {
	g.mu.Lock()
	g.loads++
	first := g.loads == 1
	g.mu.Unlock()

	if first {
		close(g.entered)
		<-g.release
	}
	return g.PlanRepositoryInterface.LoadBatch(ctx)
}

func (g *gatedRepository) loadCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loads
}
