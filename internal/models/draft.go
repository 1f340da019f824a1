package models

import "time"

// Draft is an unsaved plan form kept so the user can resume editing
type Draft struct {
	ID      string       `json:"id"`
	Form    PlanFormData `json:"form"`
	SavedAt time.Time    `json:"savedAt"`
}

// Preferences holds per-user defaults applied to plan listings
type Preferences struct {
	DefaultSort     *SortOptions `json:"defaultSort,omitempty"`
	DefaultStatuses []PlanStatus `json:"defaultStatuses,omitempty"`
}
