package models

import (
	"time"
)

// PlanStatus represents the lifecycle state of a plan
type PlanStatus string

const (
	PlanStatusDraft     PlanStatus = "draft"
	PlanStatusActive    PlanStatus = "active"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusCancelled PlanStatus = "cancelled"
	PlanStatusArchived  PlanStatus = "archived"
)

// AllPlanStatuses lists every valid status in display order
var AllPlanStatuses = []PlanStatus{
	PlanStatusDraft,
	PlanStatusActive,
	PlanStatusCompleted,
	PlanStatusCancelled,
	PlanStatusArchived,
}

// Valid reports whether s is a known plan status
func (s PlanStatus) Valid() bool {
	switch s {
	case PlanStatusDraft, PlanStatusActive, PlanStatusCompleted, PlanStatusCancelled, PlanStatusArchived:
		return true
	default:
		return false
	}
}

// SyncStatus tracks whether local edits have been reconciled with a remote
type SyncStatus string

const (
	SyncStatusLocal    SyncStatus = "local"
	SyncStatusPending  SyncStatus = "pending"
	SyncStatusSynced   SyncStatus = "synced"
	SyncStatusConflict SyncStatus = "conflict"
)

// Plan represents a single planned travel activity
type Plan struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description,omitempty"`
	Location      string       `json:"location,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	StartDate     time.Time    `json:"startDate"`
	EndDate       time.Time    `json:"endDate"`
	StartTime     string       `json:"startTime,omitempty"` // HH:mm, display only
	EndTime       string       `json:"endTime,omitempty"`   // HH:mm, display only
	AllDay        bool         `json:"allDay"`
	Tags          []string     `json:"tags"`
	Status        PlanStatus   `json:"status"`
	Attachments   []string     `json:"attachments"`   // reserved
	Notifications []string     `json:"notifications"` // reserved
	Metadata      PlanMetadata `json:"metadata"`
}

// PlanMetadata holds bookkeeping fields maintained by the plan service
type PlanMetadata struct {
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	Version    int        `json:"version"`
	IsDeleted  bool       `json:"isDeleted"`
	SyncStatus SyncStatus `json:"syncStatus"`
}

// PlanFormData is the caller-supplied input for creating a plan
type PlanFormData struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	StartTime   string    `json:"startTime,omitempty"`
	EndTime     string    `json:"endTime,omitempty"`
	AllDay      bool      `json:"allDay"`
	Tags        []string  `json:"tags,omitempty"`
}

// PlanUpdate carries a partial update; nil fields are left untouched
type PlanUpdate struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Location    *string     `json:"location,omitempty"`
	Notes       *string     `json:"notes,omitempty"`
	StartDate   *time.Time  `json:"startDate,omitempty"`
	EndDate     *time.Time  `json:"endDate,omitempty"`
	StartTime   *string     `json:"startTime,omitempty"`
	EndTime     *string     `json:"endTime,omitempty"`
	AllDay      *bool       `json:"allDay,omitempty"`
	Tags        *[]string   `json:"tags,omitempty"`
	Status      *PlanStatus `json:"status,omitempty"`
}

// Clone returns a deep copy of the plan so callers can mutate it freely
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	c := *p
	c.Tags = cloneStrings(p.Tags)
	c.Attachments = cloneStrings(p.Attachments)
	c.Notifications = cloneStrings(p.Notifications)
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
