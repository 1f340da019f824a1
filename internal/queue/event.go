package queue

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypePlanChanged announces that plans were mutated
	EventTypePlanChanged EventType = "plan_changed"
)

// DefaultMaxAge is how long an event stays relevant after publication
const DefaultMaxAge = time.Minute

// ChangeEvent is published after a plan mutation so other instances sharing
// the same backend can drop their caches
type ChangeEvent struct {
	ID        uuid.UUID  `json:"id"`
	Type      EventType  `json:"type"`
	Op        string     `json:"op"`
	PlanIDs   []string   `json:"planIds"`
	Source    string     `json:"source"`             // publishing instance
	NotAfter  *time.Time `json:"notAfter,omitempty"` // latest time the event is relevant
	CreatedAt time.Time  `json:"createdAt"`
}

// NewChangeEvent creates a new change event published by source
func NewChangeEvent(source, op string, planIDs []string) *ChangeEvent {
	now := time.Now().UTC()
	notAfter := now.Add(DefaultMaxAge)
	ids := make([]string, len(planIDs))
	copy(ids, planIDs)
	return &ChangeEvent{
		ID:        uuid.New(),
		Type:      EventTypePlanChanged,
		Op:        op,
		PlanIDs:   ids,
		Source:    source,
		NotAfter:  &notAfter,
		CreatedAt: now,
	}
}

// IsExpired checks if the event has outlived its relevance
func (e *ChangeEvent) IsExpired() bool {
	if e.NotAfter == nil {
		return false
	}
	return time.Now().After(*e.NotAfter)
}

// FromSource reports whether the event was published by source
func (e *ChangeEvent) FromSource(source string) bool {
	return e.Source == source
}
