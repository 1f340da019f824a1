package handlers

import (
	"net/http"

	logpkg "github.com/benvon/smart-trips/internal/logger"
	"github.com/benvon/smart-trips/internal/models"
	"github.com/benvon/smart-trips/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// SaveDraftRequest represents a draft save; an empty id creates a new draft
type SaveDraftRequest struct {
	ID   string              `json:"id,omitempty" validate:"omitempty,max=64"`
	Form models.PlanFormData `json:"form"`
}

// PreferencesRequest represents a preferences replacement
type PreferencesRequest struct {
	DefaultSort *struct {
		Field     string `json:"field" validate:"required,sort_field"`
		Direction string `json:"direction" validate:"required,oneof=asc desc"`
	} `json:"defaultSort,omitempty"`
	DefaultStatuses []string `json:"defaultStatuses,omitempty" validate:"dive,plan_status"`
}

// RegisterDraftRoutes registers draft routes on a router with the /drafts prefix
func (h *PlanHandler) RegisterDraftRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListDrafts).Methods("GET")
	r.HandleFunc("", h.SaveDraft).Methods("POST")
	r.HandleFunc("/{id}", h.DeleteDraft).Methods("DELETE")
}

// RegisterPreferenceRoutes registers preference routes on a router with the /preferences prefix
func (h *PlanHandler) RegisterPreferenceRoutes(r *mux.Router) {
	r.HandleFunc("", h.GetPreferences).Methods("GET")
	r.HandleFunc("", h.SetPreferences).Methods("PUT")
}

// RegisterSyncRoutes registers sync routes on a router with the /sync prefix
func (h *PlanHandler) RegisterSyncRoutes(r *mux.Router) {
	r.HandleFunc("/state", h.GetSyncState).Methods("GET")
}

// ListDrafts lists saved drafts, newest first
func (h *PlanHandler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.commands.GetDrafts(r.Context()))
}

// SaveDraft stores an unsaved plan form
func (h *PlanHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var req SaveDraftRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	req.Form.Title = validation.SanitizeText(req.Form.Title)
	req.Form.Tags = validation.SanitizeTags(req.Form.Tags)

	draft, err := h.commands.SaveDraft(r.Context(), validation.SanitizeText(req.ID), req.Form)
	if err != nil {
		h.logger.Error("failed_to_save_draft", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to save draft")
		return
	}
	respondJSON(w, http.StatusCreated, draft)
}

// DeleteDraft removes a draft
func (h *PlanHandler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ok, err := h.commands.DeleteDraft(r.Context(), id)
	if err != nil {
		h.logger.Error("failed_to_delete_draft", zap.String("draft_id", logpkg.SanitizeID(id)), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete draft")
		return
	}
	if !ok {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Draft not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPreferences returns the listing preferences
func (h *PlanHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.commands.GetPreferences(r.Context()))
}

// SetPreferences replaces the listing preferences
func (h *PlanHandler) SetPreferences(w http.ResponseWriter, r *http.Request) {
	var req PreferencesRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	prefs := &models.Preferences{}
	if req.DefaultSort != nil {
		prefs.DefaultSort = &models.SortOptions{
			Field:     models.SortField(req.DefaultSort.Field),
			Direction: models.SortDirection(req.DefaultSort.Direction),
		}
	}
	for _, s := range req.DefaultStatuses {
		prefs.DefaultStatuses = append(prefs.DefaultStatuses, models.PlanStatus(s))
	}

	if err := h.commands.SetPreferences(r.Context(), prefs); err != nil {
		h.logger.Error("failed_to_save_preferences", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to save preferences")
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

// GetSyncState reports pending and conflicting changes
func (h *PlanHandler) GetSyncState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.queries.GetSyncState(r.Context()))
}
