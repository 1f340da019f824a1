package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// InvalidateFunc drops local state affected by an event from another instance
type InvalidateFunc func(ctx context.Context, event *ChangeEvent)

// Listener consumes change events and invalidates local caches for every
// event published by another instance
type Listener struct {
	bus        EventBus
	source     string
	logger     *zap.Logger
	prefetch   int
	invalidate []InvalidateFunc
}

// NewListener creates a listener that ignores events published by source
func NewListener(bus EventBus, source string, logger *zap.Logger, invalidate ...InvalidateFunc) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		bus:        bus,
		source:     source,
		logger:     logger,
		prefetch:   10,
		invalidate: invalidate,
	}
}

// SetPrefetch sets how many unacknowledged events the broker may push at once
func (l *Listener) SetPrefetch(n int) {
	if n > 0 {
		l.prefetch = n
	}
}

// Run consumes until ctx is cancelled or the delivery channel closes
func (l *Listener) Run(ctx context.Context) error {
	msgChan, errChan, err := l.bus.Consume(ctx, l.prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming events: %w", err)
	}

	l.logger.Info("change_listener_started", zap.String("source", l.source))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			l.logger.Error("change_event_error", zap.Error(err))
		case msg, ok := <-msgChan:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("change event channel closed")
			}
			l.Handle(ctx, msg)
		}
	}
}

// Handle applies one delivered event and acknowledges it
func (l *Listener) Handle(ctx context.Context, msg MessageInterface) {
	event := msg.GetEvent()
	if event != nil && !event.FromSource(l.source) {
		l.logger.Debug("change_event_received",
			zap.String("event_id", event.ID.String()),
			zap.String("op", event.Op),
			zap.String("source", event.Source),
			zap.Int("plans", len(event.PlanIDs)),
		)
		for _, fn := range l.invalidate {
			fn(ctx, event)
		}
	}
	if err := msg.Ack(); err != nil {
		l.logger.Warn("failed_to_ack_change_event", zap.Error(err))
	}
}
