package models

// DateRange is an inclusive range of local calendar dates in YYYY-MM-DD form
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FilterOptions are AND-combined plan predicates; zero values disable a predicate
type FilterOptions struct {
	Status      []PlanStatus `json:"status,omitempty"`
	DateRange   *DateRange   `json:"dateRange,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	SearchQuery string       `json:"searchQuery,omitempty"`
}

// SortField names the attribute plans are ordered by
type SortField string

const (
	SortByTitle     SortField = "title"
	SortByStartDate SortField = "startDate"
	SortByCreatedAt SortField = "createdAt"
	SortByUpdatedAt SortField = "updatedAt"
)

// SortDirection is either ascending or descending
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortOptions selects the ordering of a plan listing
type SortOptions struct {
	Field     SortField     `json:"field"`
	Direction SortDirection `json:"direction"`
}

// PlanStats summarizes the non-deleted plans
type PlanStats struct {
	Total      int                `json:"total"`
	ByStatus   map[PlanStatus]int `json:"byStatus"`
	ByCategory map[string]int     `json:"byCategory"` // reserved, always empty
	ByPriority map[string]int     `json:"byPriority"` // reserved, always empty
	Upcoming   int                `json:"upcoming"`
	Overdue    int                `json:"overdue"`
	Completed  int                `json:"completed"`
}

// SyncState reports the local view of synchronization progress
type SyncState struct {
	LastSyncAt     string `json:"lastSyncAt"`
	PendingChanges int    `json:"pendingChanges"`
	Conflicts      int    `json:"conflicts"`
	IsOnline       bool   `json:"isOnline"`
	SyncInProgress bool   `json:"syncInProgress"`
}
