// Package plans owns the business rules for travel plans: creation, soft
// deletion, versioning, querying, import/export and the reported sync state.
package plans

import (
	"context"
	"sync"
	"time"

	"github.com/benvon/smart-trips/internal/database"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/benvon/smart-trips/internal/services/plans"

// ChangeOp names the kind of mutation reported to change handlers
type ChangeOp string

const (
	ChangeOpCreate  ChangeOp = "create"
	ChangeOpUpdate  ChangeOp = "update"
	ChangeOpDelete  ChangeOp = "delete"
	ChangeOpRestore ChangeOp = "restore"
	ChangeOpImport  ChangeOp = "import"
)

// Change describes one completed mutation
type Change struct {
	Op      ChangeOp
	PlanIDs []string
}

// ChangeHandler is invoked after every successful mutation
type ChangeHandler func(ctx context.Context, change Change)

// Repositories groups the storage the service depends on
type Repositories struct {
	Plans       database.PlanRepositoryInterface
	Drafts      database.DraftRepositoryInterface
	Preferences database.PreferencesRepositoryInterface
	SyncState   database.SyncStateRepositoryInterface
}

// Service implements the plan operations. Every load-mutate-store sequence runs
// under one collection mutex, so concurrent mutations within a process are
// serialized and never lose an update. Writers in other processes sharing the
// same backend are not covered by the mutex.
type Service struct {
	repos    Repositories
	logger   *zap.Logger
	location *time.Location
	now      func() time.Time
	newID    func() string
	tracer   trace.Tracer

	mu sync.Mutex

	handlersMu sync.RWMutex
	handlers   []ChangeHandler
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocation sets the timezone used for local-date queries
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTracerProvider traces service operations through tp instead of the global provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewService creates a plan service over repos
func NewService(repos Repositories, opts ...Option) *Service {
	s := &Service{
		repos:    repos,
		logger:   zap.NewNop(),
		location: fallbackLocation,
		now:      time.Now,
		newID:    uuid.NewString,
		tracer:   otel.Tracer(tracerName),
	}
	if loc, ok := LoadLocation(DefaultTimezone); ok {
		s.location = loc
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the timezone used for local-date queries
func (s *Service) Location() *time.Location {
	return s.location
}

// OnChange registers a handler invoked after every successful mutation
func (s *Service) OnChange(h ChangeHandler) {
	if h == nil {
		return
	}
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers = append(s.handlers, h)
}

func (s *Service) notify(ctx context.Context, op ChangeOp, ids ...string) {
	s.handlersMu.RLock()
	handlers := make([]ChangeHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.handlersMu.RUnlock()

	change := Change{Op: op, PlanIDs: ids}
	for _, h := range handlers {
		h(ctx, change)
	}
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "plans."+name)
}

func recordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// timestamp returns the current UTC time, never earlier than prev
func (s *Service) timestamp(prev time.Time) time.Time {
	now := s.now().UTC()
	if now.Before(prev) {
		return prev
	}
	return now
}
