package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benvon/smart-trips/internal/database"
	"github.com/benvon/smart-trips/internal/kvstore"
	"github.com/benvon/smart-trips/internal/models"
	"github.com/benvon/smart-trips/internal/querycache"
	"github.com/benvon/smart-trips/internal/services/plans"
	"github.com/gorilla/mux"
)

// newTestAPI wires a memory-backed service behind the query cache and the
// plan routes, the same way the server does.
func newTestAPI(t *testing.T) *mux.Router {
	t.Helper()
	store, err := kvstore.New(kvstore.NewMemoryBackend())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	svc := plans.NewService(plans.Repositories{
		Plans:       database.NewPlanRepository(store),
		Drafts:      database.NewDraftRepository(store),
		Preferences: database.NewPreferencesRepository(store),
		SyncState:   database.NewSyncStateRepository(store),
	}, plans.WithLocation(time.FixedZone("KST", 9*60*60)))
	h := NewPlanHandler(svc, querycache.New(svc), nil)

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	h.RegisterRoutes(api.PathPrefix("/plans").Subrouter())
	h.RegisterDraftRoutes(api.PathPrefix("/drafts").Subrouter())
	h.RegisterPreferenceRoutes(api.PathPrefix("/preferences").Subrouter())
	h.RegisterSyncRoutes(api.PathPrefix("/sync").Subrouter())
	return r
}

func do(t *testing.T, r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	body := w.Body.String()
	env := decodeEnvelope(t, w)
	if !env.Success {
		t.Fatalf("expected success envelope, got %s", body)
	}
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	return out
}

func createTestPlan(t *testing.T, r http.Handler, body map[string]any) *models.Plan {
	t.Helper()
	w := do(t, r, newTestRequest(http.MethodPost, "/api/v1/plans", body))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return decodeData[*models.Plan](t, w)
}

func planBody(title, start string) map[string]any {
	return map[string]any{"title": title, "startDate": start, "tags": []string{"trip"}}
}

func TestPlanHandler_CreateAndGet(t *testing.T) {
	t.Parallel()
	r := newTestAPI(t)

	w := do(t, r, newTestRequest(http.MethodPost, "/api/v1/plans", planBody("  Jeju trip  ", "2024-05-01T00:00:00Z")))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("ETag"); got != `"1"` {
		t.Errorf("expected ETag \"1\", got %s", got)
	}
	created := decodeData[*models.Plan](t, w)
	if created.Title != "Jeju trip" {
		t.Errorf("expected sanitized title, got %q", created.Title)
	}
	if created.Status != models.PlanStatusActive {
		t.Errorf("expected active status, got %s", created.Status)
	}
	if !created.EndDate.Equal(created.StartDate) {
		t.Errorf("expected endDate to default to startDate, got %v", created.EndDate)
	}

	w = do(t, r, newTestRequest(http.MethodGet, "/api/v1/plans/"+created.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	got := decodeData[*models.Plan](t, w)
	if got.ID != created.ID || got.Title != "Jeju trip" {
		t.Errorf("unexpected plan: %+v", got)
	}
}

func TestPlanHandler_CreateValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body any
	}{
		{"missing title", map[string]any{"startDate": "2024-05-01T00:00:00Z"}},
		{"blank title", map[string]any{"title": "   ", "startDate": "2024-05-01T00:00:00Z"}},
		{"missing start date", map[string]any{"title": "Trip"}},
		{"bad start time", map[string]any{"title": "Trip", "startDate": "2024-05-01T00:00:00Z", "startTime": "25:00"}},
		{"end before start", map[string]any{"title": "Trip", "startDate": "2024-05-02T00:00:00Z", "endDate": "2024-05-01T00:00:00Z"}},
		{"too many tags", map[string]any{"title": "Trip", "startDate": "2024-05-01T00:00:00Z", "tags": make([]string, MaxTags+1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newTestAPI(t)
			w := do(t, r, newTestRequest(http.MethodPost, "/api/v1/plans", tt.body))
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()
		r := newTestAPI(t)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/plans", strings.NewReader("{"))
		if w := do(t, r, req); w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})
}

func TestPlanHandler_UpdateIfMatch(t *testing.T) {
	t.Parallel()
	r := newTestAPI(t)
	p := createTestPlan(t, r, planBody("Busan", "2024-05-01T00:00:00Z"))
	path := "/api/v1/plans/" + p.ID

	req := newTestRequest(http.MethodPatch, path, map[string]any{"title": "Busan food tour"})
	req.Header.Set("If-Match", `"1"`)
	w := do(t, r, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("ETag"); got != `"2"` {
		t.Errorf("expected ETag \"2\", got %s", got)
	}

	req = newTestRequest(http.MethodPatch, path, map[string]any{"title": "Stale"})
	req.Header.Set("If-Match", `"1"`)
	if w := do(t, r, req); w.Code != http.StatusConflict {
		t.Errorf("expected 409 for stale version, got %d", w.Code)
	}

	req = newTestRequest(http.MethodPatch, path, map[string]any{"title": "Bad"})
	req.Header.Set("If-Match", "abc")
	if w := do(t, r, req); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed If-Match, got %d", w.Code)
	}

	w = do(t, r, newTestRequest(http.MethodPatch, path, map[string]any{"status": "archived"}))
	if w.Code != http.StatusOK {
		t.Fatalf("expected unconditional update to succeed, got %d", w.Code)
	}
	updated := decodeData[*models.Plan](t, w)
	if updated.Title != "Busan food tour" || updated.Status != models.PlanStatusArchived {
		t.Errorf("unexpected plan after update: %+v", updated)
	}
	if updated.Metadata.Version != 3 {
		t.Errorf("expected version 3, got %d", updated.Metadata.Version)
	}

	w = do(t, r, newTestRequest(http.MethodPatch, path, map[string]any{"status": "bogus"}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid status, got %d", w.Code)
	}
}

func TestPlanHandler_NotFound(t *testing.T) {
	t.Parallel()
	r := newTestAPI(t)

	tests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/v1/plans/missing", nil},
		{http.MethodPatch, "/api/v1/plans/missing", map[string]any{"title": "x"}},
		{http.MethodDelete, "/api/v1/plans/missing", nil},
		{http.MethodPost, "/api/v1/plans/missing/complete", nil},
		{http.MethodPost, "/api/v1/plans/missing/cancel", nil},
		{http.MethodPost, "/api/v1/plans/missing/restore", nil},
		{http.MethodDelete, "/api/v1/drafts/missing", nil},
	}

	for _, tt := range tests {
		w := do(t, r, newTestRequest(tt.method, tt.path, tt.body))
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s: expected 404, got %d", tt.method, tt.path, w.Code)
		}
	}
}

func TestPlanHandler_DeleteRestoreAndTransitions(t *testing.T) {
	t.Parallel()
	r := newTestAPI(t)
	p := createTestPlan(t, r, planBody("Seoul", "2024-05-01T00:00:00Z"))
	path := "/api/v1/plans/" + p.ID

	if w := do(t, r, newTestRequest(http.MethodDelete, path, nil)); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := do(t, r, newTestRequest(http.MethodGet, path, nil)); w.Code != http.StatusNotFound {
		t.Errorf("expected deleted plan to be hidden, got %d", w.Code)
	}
	list := decodeData[[]*models.Plan](t, do(t, r, newTestRequest(http.MethodGet, "/api/v1/plans", nil)))
	if len(list) != 0 {
		t.Errorf("expected empty list after delete, got %d plans", len(list))
	}

	if w := do(t, r, newTestRequest(http.MethodPost, path+"/restore", nil)); w.Code != http.StatusOK {
		t.Fatalf("expected restore to succeed, got %d", w.Code)
	}

	w := do(t, r, newTestRequest(http.MethodPost, path+"/complete", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected complete to succeed, got %d", w.Code)
	}
	if got := decodeData[*models.Plan](t, w); got.Status != models.PlanStatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}

	w = do(t, r, newTestRequest(http.MethodPost, path+"/cancel", nil))
	if got := decodeData[*models.Plan](t, w); got.Status != models.PlanStatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
}

func TestPlanHandler_ListFilters(t *testing.T) {
	t.Parallel()
	r := newTestAPI(t)
	a := createTestPlan(t, r, map[string]any{"title": "Alpha", "startDate": "2024-05-01T00:00:00Z", "tags": []string{"food"}})
	b := createTestPlan(t, r, map[string]any{"title": "Bravo", "startDate": "2024-05-03T00:00:00Z", "tags": []string{"hike"}})
	do(t, r, newTestRequest(http.MethodPost, "/api/v1/plans/"+b.ID+"/complete", nil))

	tests := []struct {
		name    string
		query   string
		wantIDs []string
	}{
		{"all sorted by title desc", "?sort=title&direction=desc", []string{b.ID, a.ID}},
		{"status filter", "?status=completed", []string{b.ID}},
		{"tag filter", "?tags=food", []string{a.ID}},
		{"search", "?q=brav", []string{b.ID}},
		{"date range", "?start=2024-05-02&sort=startDate", []string{b.ID}},
	}

	for _, tt := range tests {
		w := do(t, r, newTestRequest(http.MethodGet, "/api/v1/plans"+tt.query, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tt.name, w.Code)
		}
		list := decodeData[[]*models.Plan](t, w)
		if len(list) != len(tt.wantIDs) {
			t.Fatalf("%s: expected %d plans, got %d", tt.name, len(tt.wantIDs), len(list))
		}
		for i, id := range tt.wantIDs {
			if list[i].ID != id {
				t.Errorf("%s: position %d expected %s, got %s", tt.name, i, id, list[i].ID)
			}
		}
	}

	for _, bad := range []string{"?status=bogus", "?sort=priority", "?sort=title&direction=up", "?start=05-01-2024"} {
		if w := do(t, r, newTestRequest(http.MethodGet, "/api/v1/plans"+bad, nil)); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", bad, w.Code)
		}
	}
}

func TestPlanHandler_DateQueries(t *testing.T) {
	t.Parallel()
	r := newTestAPI(t)
	// 15:30 UTC is already the next day in Seoul.
	p := createTestPlan(t, r, planBody("Late flight", "2024-04-10T15:30:00Z"))

	list := decodeData[[]*models.Plan](t, do(t, r, newTestRequest(http.MethodGet, "/api/v1/plans/by-date/2024-04-11", nil)))
	if len(list) != 1 || list[0].ID != p.ID {
		t.Errorf("expected the plan on its local date, got %d plans", len(list))
	}
	list = decodeData[[]*models.Plan](t, do(t, r, newTestRequest(http.MethodGet, "/api/v1/plans/by-date/2024-04-10", nil)))
	if len(list) != 0 {
		t.Errorf("expected no plans on the UTC date, got %d", len(list))
	}

	list = decodeData[[]*models.Plan](t, do(t, r, newTestRequest(http.MethodGet, "/api/v1/plans/by-date?start=2024-04-11&end=2024-04-12", nil)))
	if len(list) != 1 {
		t.Errorf("expected 1 plan in range, got %d", len(list))
	}

	for _, bad := range []string{
		"/api/v1/plans/by-date/not-a-date",
		"/api/v1/plans/by-date?start=2024-04-11",
		"/api/v1/plans/by-date?start=2024-04-12&end=2024-04-11",
		"/api/v1/plans/search",
	} {
		if w := do(t, r, newTestRequest(http.MethodGet, bad, nil)); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", bad, w.Code)
		}
	}

	list = decodeData[[]*models.Plan](t, do(t, r, newTestRequest(http.MethodGet, "/api/v1/plans/by-tag/trip", nil)))
	if len(list) != 1 {
		t.Errorf("expected 1 plan tagged trip, got %d", len(list))
	}
}

func TestPlanHandler_StatsAndSyncState(t *testing.T) {
	t.Parallel()
	r := newTestAPI(t)
	p := createTestPlan(t, r, planBody("Gyeongju", "2024-05-01T00:00:00Z"))

	stats := decodeData[models.PlanStats](t, do(t, r, newTestRequest(http.MethodGet, "/api/v1/plans/stats", nil)))
	if stats.Total != 1 || stats.ByStatus[models.PlanStatusActive] != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	state := decodeData[models.SyncState](t, do(t, r, newTestRequest(http.MethodGet, "/api/v1/sync/state", nil)))
	if state.PendingChanges != 0 || !state.IsOnline {
		t.Errorf("unexpected sync state before update: %+v", state)
	}

	do(t, r, newTestRequest(http.MethodPatch, "/api/v1/plans/"+p.ID, map[string]any{"notes": "bring umbrella"}))
	state = decodeData[models.SyncState](t, do(t, r, newTestRequest(http.MethodGet, "/api/v1/sync/state", nil)))
	if state.PendingChanges != 1 {
		t.Errorf("expected 1 pending change after update, got %d", state.PendingChanges)
	}
}

func TestPlanHandler_ExportImport(t *testing.T) {
	t.Parallel()
	src := newTestAPI(t)
	createTestPlan(t, src, planBody("One", "2024-05-01T00:00:00Z"))
	createTestPlan(t, src, planBody("Two", "2024-05-09T00:00:00Z"))

	w := do(t, src, newTestRequest(http.MethodGet, "/api/v1/plans/export", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("expected attachment disposition, got %q", cd)
	}
	exported := w.Body.Bytes()

	var doc models.ExportData
	if err := json.Unmarshal(exported, &doc); err != nil {
		t.Fatalf("export is not a valid document: %v", err)
	}
	if doc.Version != "1.0.0" || len(doc.Plans) != 2 {
		t.Errorf("unexpected export document: version %s, %d plans", doc.Version, len(doc.Plans))
	}

	dst := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/plans/import", bytes.NewReader(exported))
	w = do(t, dst, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	result := decodeData[ImportResponse](t, w)
	if result.Imported != 2 {
		t.Errorf("expected 2 imported plans, got %d", result.Imported)
	}
	for _, p := range result.Plans {
		if p.Metadata.Version != 1 || p.Metadata.SyncStatus != models.SyncStatusLocal {
			t.Errorf("imported plan metadata not reset: %+v", p.Metadata)
		}
	}

	for _, bad := range []string{"not json", `{"plans": 3}`, `{"version": "1.0.0"}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/plans/import", strings.NewReader(bad))
		if w := do(t, dst, req); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", bad, w.Code)
		}
	}
}

func TestPlanHandler_Drafts(t *testing.T) {
	t.Parallel()
	r := newTestAPI(t)

	w := do(t, r, newTestRequest(http.MethodPost, "/api/v1/drafts", map[string]any{
		"form": map[string]any{"title": "Half-written", "tags": []string{" a ", ""}},
	}))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	draft := decodeData[*models.Draft](t, w)
	if draft.ID == "" || len(draft.Form.Tags) != 1 || draft.Form.Tags[0] != "a" {
		t.Errorf("unexpected draft: %+v", draft)
	}

	drafts := decodeData[[]*models.Draft](t, do(t, r, newTestRequest(http.MethodGet, "/api/v1/drafts", nil)))
	if len(drafts) != 1 {
		t.Fatalf("expected 1 draft, got %d", len(drafts))
	}

	if w := do(t, r, newTestRequest(http.MethodDelete, "/api/v1/drafts/"+draft.ID, nil)); w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if w := do(t, r, newTestRequest(http.MethodDelete, "/api/v1/drafts/"+draft.ID, nil)); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", w.Code)
	}
}

func TestPlanHandler_Preferences(t *testing.T) {
	t.Parallel()
	r := newTestAPI(t)
	a := createTestPlan(t, r, planBody("Alpha", "2024-05-01T00:00:00Z"))
	b := createTestPlan(t, r, planBody("Bravo", "2024-05-02T00:00:00Z"))
	do(t, r, newTestRequest(http.MethodPost, "/api/v1/plans/"+a.ID+"/complete", nil))

	for _, bad := range []map[string]any{
		{"defaultSort": map[string]any{"field": "priority", "direction": "asc"}},
		{"defaultSort": map[string]any{"field": "title", "direction": "sideways"}},
		{"defaultStatuses": []string{"bogus"}},
	} {
		if w := do(t, r, newTestRequest(http.MethodPut, "/api/v1/preferences", bad)); w.Code != http.StatusBadRequest {
			t.Errorf("%v: expected 400, got %d", bad, w.Code)
		}
	}

	w := do(t, r, newTestRequest(http.MethodPut, "/api/v1/preferences", map[string]any{
		"defaultSort":     map[string]any{"field": "title", "direction": "desc"},
		"defaultStatuses": []string{"active"},
	}))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	prefs := decodeData[models.Preferences](t, do(t, r, newTestRequest(http.MethodGet, "/api/v1/preferences", nil)))
	if prefs.DefaultSort == nil || prefs.DefaultSort.Field != models.SortByTitle {
		t.Errorf("unexpected preferences: %+v", prefs)
	}

	list := decodeData[[]*models.Plan](t, do(t, r, newTestRequest(http.MethodGet, "/api/v1/plans", nil)))
	if len(list) != 1 || list[0].ID != b.ID {
		t.Errorf("expected default statuses to hide the completed plan, got %d plans", len(list))
	}

	list = decodeData[[]*models.Plan](t, do(t, r, newTestRequest(http.MethodGet, "/api/v1/plans?status=active,completed", nil)))
	if len(list) != 2 || list[0].ID != b.ID {
		t.Errorf("expected explicit statuses with the default title desc sort, got %v", list)
	}
}

func TestParseIfMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header      string
		version     int
		conditional bool
		wantErr     bool
	}{
		{"", 0, false, false},
		{"*", 0, false, false},
		{`"3"`, 3, true, false},
		{`W/"4"`, 4, true, false},
		{"5", 5, true, false},
		{`"0"`, 0, false, true},
		{"abc", 0, false, true},
	}

	for _, tt := range tests {
		version, conditional, err := parseIfMatch(tt.header)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: unexpected error %v", tt.header, err)
			continue
		}
		if version != tt.version || conditional != tt.conditional {
			t.Errorf("%q: got (%d, %v), want (%d, %v)", tt.header, version, conditional, tt.version, tt.conditional)
		}
	}
}
