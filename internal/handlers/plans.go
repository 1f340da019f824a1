package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	logpkg "github.com/benvon/smart-trips/internal/logger"
	"github.com/benvon/smart-trips/internal/models"
	"github.com/benvon/smart-trips/internal/services/plans"
	"github.com/benvon/smart-trips/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PlanQueries are the cached plan reads
type PlanQueries interface {
	GetPlanByID(ctx context.Context, id string) *models.Plan
	GetPlans(ctx context.Context, filter *models.FilterOptions, sort *models.SortOptions) []*models.Plan
	GetPlansByDate(ctx context.Context, date string) []*models.Plan
	GetPlansByDateRange(ctx context.Context, start, end string) []*models.Plan
	SearchPlans(ctx context.Context, query string) []*models.Plan
	GetPlansByTag(ctx context.Context, tag string) []*models.Plan
	GetPlanStats(ctx context.Context) *models.PlanStats
	GetSyncState(ctx context.Context) *models.SyncState
}

// PlanCommands are the plan mutations and the uncached operations
type PlanCommands interface {
	CreatePlan(ctx context.Context, form models.PlanFormData) (*models.Plan, error)
	UpdatePlan(ctx context.Context, id string, update models.PlanUpdate) (*models.Plan, error)
	UpdatePlanIfVersion(ctx context.Context, id string, expectedVersion int, update models.PlanUpdate) (*models.Plan, error)
	DeletePlan(ctx context.Context, id string) (bool, error)
	CompletePlan(ctx context.Context, id string) (*models.Plan, error)
	CancelPlan(ctx context.Context, id string) (*models.Plan, error)
	RestorePlan(ctx context.Context, id string) (*models.Plan, error)
	ExportPlans(ctx context.Context) ([]byte, error)
	ImportPlans(ctx context.Context, data []byte) ([]*models.Plan, error)
	SaveDraft(ctx context.Context, id string, form models.PlanFormData) (*models.Draft, error)
	GetDrafts(ctx context.Context) []*models.Draft
	DeleteDraft(ctx context.Context, id string) (bool, error)
	GetPreferences(ctx context.Context) *models.Preferences
	SetPreferences(ctx context.Context, prefs *models.Preferences) error
}

var _ PlanCommands = (*plans.Service)(nil)

const (
	// MaxTitleLength is the maximum length for plan titles
	MaxTitleLength = 200
	// MaxTags is the maximum number of tags on one plan
	MaxTags = 20
)

// PlanHandler handles plan, draft, preference and sync requests
type PlanHandler struct {
	commands PlanCommands
	queries  PlanQueries
	logger   *zap.Logger
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(commands PlanCommands, queries PlanQueries, logger *zap.Logger) *PlanHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanHandler{commands: commands, queries: queries, logger: logger}
}

// RegisterRoutes registers plan routes on the given router
// The router should already have the /plans prefix (e.g., from apiRouter.PathPrefix("/plans"))
func (h *PlanHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListPlans).Methods("GET")
	r.HandleFunc("", h.CreatePlan).Methods("POST")
	r.HandleFunc("/stats", h.GetStats).Methods("GET")
	r.HandleFunc("/search", h.SearchPlans).Methods("GET")
	r.HandleFunc("/by-date", h.GetPlansByDateRange).Methods("GET")
	r.HandleFunc("/by-date/{date}", h.GetPlansByDate).Methods("GET")
	r.HandleFunc("/by-tag/{tag}", h.GetPlansByTag).Methods("GET")
	r.HandleFunc("/export", h.ExportPlans).Methods("GET")
	r.HandleFunc("/import", h.ImportPlans).Methods("POST")
	r.HandleFunc("/{id}", h.GetPlan).Methods("GET")
	r.HandleFunc("/{id}", h.UpdatePlan).Methods("PATCH")
	r.HandleFunc("/{id}", h.DeletePlan).Methods("DELETE")
	r.HandleFunc("/{id}/complete", h.CompletePlan).Methods("POST")
	r.HandleFunc("/{id}/cancel", h.CancelPlan).Methods("POST")
	r.HandleFunc("/{id}/restore", h.RestorePlan).Methods("POST")
}

// CreatePlanRequest represents a create plan request
type CreatePlanRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description,omitempty" validate:"max=5000"`
	Location    string    `json:"location,omitempty" validate:"max=500"`
	Notes       string    `json:"notes,omitempty" validate:"max=5000"`
	StartDate   time.Time `json:"startDate" validate:"required"`
	EndDate     time.Time `json:"endDate"`
	StartTime   string    `json:"startTime,omitempty" validate:"omitempty,hhmm"`
	EndTime     string    `json:"endTime,omitempty" validate:"omitempty,hhmm"`
	AllDay      bool      `json:"allDay"`
	Tags        []string  `json:"tags,omitempty" validate:"max=20,dive,max=50"`
}

// UpdatePlanRequest represents a partial plan update
type UpdatePlanRequest struct {
	Title       *string            `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string            `json:"description,omitempty" validate:"omitempty,max=5000"`
	Location    *string            `json:"location,omitempty" validate:"omitempty,max=500"`
	Notes       *string            `json:"notes,omitempty" validate:"omitempty,max=5000"`
	StartDate   *time.Time         `json:"startDate,omitempty"`
	EndDate     *time.Time         `json:"endDate,omitempty"`
	StartTime   *string            `json:"startTime,omitempty" validate:"omitempty,hhmm"`
	EndTime     *string            `json:"endTime,omitempty" validate:"omitempty,hhmm"`
	AllDay      *bool              `json:"allDay,omitempty"`
	Tags        *[]string          `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=50"`
	Status      *models.PlanStatus `json:"status,omitempty" validate:"omitempty,plan_status"`
}

// ImportResponse reports the plans created by an import
type ImportResponse struct {
	Imported int            `json:"imported"`
	Plans    []*models.Plan `json:"plans"`
}

// ListPlans lists plans with optional filtering and sorting.
// Query parameters: status and tags (comma-separated), q, start, end, sort, direction.
// Preferences supply the default statuses and sort when none are given.
func (h *PlanHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := &models.FilterOptions{
		Tags:        splitList(query.Get("tags")),
		SearchQuery: validation.SanitizeText(query.Get("q")),
	}

	for _, s := range splitList(query.Get("status")) {
		if err := validation.ValidatePlanStatus(s); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		filter.Status = append(filter.Status, models.PlanStatus(s))
	}

	start, end := query.Get("start"), query.Get("end")
	for _, d := range []string{start, end} {
		if d == "" {
			continue
		}
		if err := validation.ValidateDate(d); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
	}
	if start != "" || end != "" {
		filter.DateRange = &models.DateRange{Start: start, End: end}
	}

	var sortOpts *models.SortOptions
	if field := query.Get("sort"); field != "" {
		if err := validation.ValidateSortField(field); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		direction := query.Get("direction")
		if direction == "" {
			direction = string(models.SortAsc)
		}
		if err := validation.ValidateSortDirection(direction); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		sortOpts = &models.SortOptions{Field: models.SortField(field), Direction: models.SortDirection(direction)}
	}

	statusGiven := query.Get("status") != ""
	if sortOpts == nil || !statusGiven {
		prefs := h.commands.GetPreferences(ctx)
		if sortOpts == nil {
			sortOpts = prefs.DefaultSort
		}
		if !statusGiven {
			filter.Status = prefs.DefaultStatuses
		}
	}

	respondJSON(w, http.StatusOK, h.queries.GetPlans(ctx, filter, sortOpts))
}

// CreatePlan creates a new plan
func (h *PlanHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	// Sanitize text input
	req.Title = validation.SanitizeText(req.Title)
	if req.Title == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Title is required and cannot be empty after sanitization")
		return
	}

	if req.EndDate.IsZero() {
		req.EndDate = req.StartDate
	}
	if req.EndDate.Before(req.StartDate) {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "endDate must not be before startDate")
		return
	}

	form := models.PlanFormData{
		Title:       req.Title,
		Description: validation.SanitizeText(req.Description),
		Location:    validation.SanitizeText(req.Location),
		Notes:       validation.SanitizeText(req.Notes),
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		AllDay:      req.AllDay,
		Tags:        validation.SanitizeTags(req.Tags),
	}

	plan, err := h.commands.CreatePlan(r.Context(), form)
	if err != nil {
		h.logger.Error("failed_to_create_plan", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create plan")
		return
	}

	setETag(w, plan)
	respondJSON(w, http.StatusCreated, plan)
}

// GetPlan retrieves a plan by ID
func (h *PlanHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	plan := h.queries.GetPlanByID(r.Context(), id)
	if plan == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Plan not found")
		return
	}
	setETag(w, plan)
	respondJSON(w, http.StatusOK, plan)
}

// UpdatePlan applies a partial update. An If-Match header carrying the plan
// version makes the update conditional.
func (h *PlanHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	expectedVersion, conditional, err := parseIfMatch(r.Header.Get("If-Match"))
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	var req UpdatePlanRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	update := models.PlanUpdate{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		AllDay:    req.AllDay,
		Status:    req.Status,
	}
	if req.Title != nil {
		sanitized := validation.SanitizeText(*req.Title)
		if sanitized == "" {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Title cannot be empty after sanitization")
			return
		}
		update.Title = &sanitized
	}
	update.Description = sanitizedPtr(req.Description)
	update.Location = sanitizedPtr(req.Location)
	update.Notes = sanitizedPtr(req.Notes)
	if req.Tags != nil {
		tags := validation.SanitizeTags(*req.Tags)
		update.Tags = &tags
	}

	ctx := r.Context()
	var plan *models.Plan
	if conditional {
		plan, err = h.commands.UpdatePlanIfVersion(ctx, id, expectedVersion, update)
	} else {
		plan, err = h.commands.UpdatePlan(ctx, id, update)
	}
	if err != nil {
		if errors.Is(err, plans.ErrConflict) {
			respondJSONError(w, http.StatusConflict, "Conflict", "Plan was modified by another request")
			return
		}
		h.logger.Error("failed_to_update_plan", zap.String("plan_id", logpkg.SanitizeID(id)), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update plan")
		return
	}
	if plan == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Plan not found")
		return
	}

	setETag(w, plan)
	respondJSON(w, http.StatusOK, plan)
}

// DeletePlan soft-deletes a plan
func (h *PlanHandler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ok, err := h.commands.DeletePlan(r.Context(), id)
	if err != nil {
		h.logger.Error("failed_to_delete_plan", zap.String("plan_id", logpkg.SanitizeID(id)), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete plan")
		return
	}
	if !ok {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Plan not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompletePlan marks a plan as completed
func (h *PlanHandler) CompletePlan(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "complete", h.commands.CompletePlan)
}

// CancelPlan marks a plan as cancelled
func (h *PlanHandler) CancelPlan(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel", h.commands.CancelPlan)
}

// RestorePlan undoes a soft delete
func (h *PlanHandler) RestorePlan(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "restore", h.commands.RestorePlan)
}

func (h *PlanHandler) transition(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, string) (*models.Plan, error)) {
	id := mux.Vars(r)["id"]
	plan, err := fn(r.Context(), id)
	if err != nil {
		h.logger.Error("failed_to_"+action+"_plan", zap.String("plan_id", logpkg.SanitizeID(id)), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", fmt.Sprintf("Failed to %s plan", action))
		return
	}
	if plan == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Plan not found")
		return
	}
	setETag(w, plan)
	respondJSON(w, http.StatusOK, plan)
}

// GetStats returns the plan summary
func (h *PlanHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.queries.GetPlanStats(r.Context()))
}

// SearchPlans searches plans by the q query parameter
func (h *PlanHandler) SearchPlans(w http.ResponseWriter, r *http.Request) {
	q := validation.SanitizeText(r.URL.Query().Get("q"))
	if q == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Query parameter q is required")
		return
	}
	respondJSON(w, http.StatusOK, h.queries.SearchPlans(r.Context(), q))
}

// GetPlansByDate returns the plans starting on a local calendar date
func (h *PlanHandler) GetPlansByDate(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if err := validation.ValidateDate(date); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, h.queries.GetPlansByDate(r.Context(), date))
}

// GetPlansByDateRange returns the plans starting within the start and end query dates
func (h *PlanHandler) GetPlansByDateRange(w http.ResponseWriter, r *http.Request) {
	start, end := r.URL.Query().Get("start"), r.URL.Query().Get("end")
	for _, d := range []string{start, end} {
		if err := validation.ValidateDate(d); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
	}
	if end < start {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "end must not be before start")
		return
	}
	respondJSON(w, http.StatusOK, h.queries.GetPlansByDateRange(r.Context(), start, end))
}

// GetPlansByTag returns the plans carrying a tag
func (h *PlanHandler) GetPlansByTag(w http.ResponseWriter, r *http.Request) {
	tag := validation.SanitizeText(mux.Vars(r)["tag"])
	if tag == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Tag is required")
		return
	}
	respondJSON(w, http.StatusOK, h.queries.GetPlansByTag(r.Context(), tag))
}

// ExportPlans returns the export document as a downloadable file
func (h *PlanHandler) ExportPlans(w http.ResponseWriter, r *http.Request) {
	data, err := h.commands.ExportPlans(r.Context())
	if err != nil {
		h.logger.Error("failed_to_export_plans", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to export plans")
		return
	}

	filename := fmt.Sprintf("plans-%s.json", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("failed_to_write_export", zap.Error(err))
	}
}

// ImportPlans imports an export document
func (h *PlanHandler) ImportPlans(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondBodyError(w, err)
		return
	}

	imported, err := h.commands.ImportPlans(r.Context(), body)
	if err != nil {
		if errors.Is(err, plans.ErrImportFailed) {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		h.logger.Error("failed_to_import_plans", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to import plans")
		return
	}

	respondJSON(w, http.StatusCreated, ImportResponse{Imported: len(imported), Plans: imported})
}

func setETag(w http.ResponseWriter, p *models.Plan) {
	w.Header().Set("ETag", strconv.Quote(strconv.Itoa(p.Metadata.Version)))
}

// parseIfMatch reads a plan version from an If-Match header. Weak and quoted
// forms are accepted; "*" and an empty header are unconditional.
func parseIfMatch(header string) (int, bool, error) {
	v := strings.TrimSpace(header)
	if v == "" || v == "*" {
		return 0, false, nil
	}
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	version, err := strconv.Atoi(v)
	if err != nil || version < 1 {
		return 0, false, fmt.Errorf("invalid If-Match header: %s", header)
	}
	return version, true, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := validation.SanitizeText(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func sanitizedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := validation.SanitizeText(*s)
	return &v
}
