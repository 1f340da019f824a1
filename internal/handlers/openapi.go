package handlers

import (
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// OpenAPIHandler serves the API description document
type OpenAPIHandler struct {
	fs     afero.Fs
	path   string
	logger *zap.Logger
}

// NewOpenAPIHandler serves the YAML document at docPath. The filesystem is
// normally an afero.NewBasePathFs rooted at the document directory, which
// keeps reads inside it.
func NewOpenAPIHandler(fs afero.Fs, docPath string, logger *zap.Logger) *OpenAPIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAPIHandler{fs: fs, path: path.Clean("/" + docPath), logger: logger}
}

// RegisterRoutes registers OpenAPI routes
func (h *OpenAPIHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/openapi.yaml", h.ServeYAML).Methods("GET")
	r.HandleFunc("/api/v1/openapi.json", h.ServeJSON).Methods("GET")
}

func (h *OpenAPIHandler) read(w http.ResponseWriter) ([]byte, bool) {
	if strings.Contains(h.path, "..") {
		http.Error(w, "OpenAPI specification not found", http.StatusNotFound)
		return nil, false
	}
	data, err := afero.ReadFile(h.fs, h.path)
	if err != nil {
		h.logger.Warn("openapi_document_unavailable", zap.String("path", h.path), zap.Error(err))
		http.Error(w, "OpenAPI specification not found", http.StatusNotFound)
		return nil, false
	}
	return data, true
}

// ServeYAML serves the document as stored
func (h *OpenAPIHandler) ServeYAML(w http.ResponseWriter, r *http.Request) {
	data, ok := h.read(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/x-yaml")
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("failed_to_write_openapi", zap.Error(err))
	}
}

// ServeJSON serves the document converted to JSON
func (h *OpenAPIHandler) ServeJSON(w http.ResponseWriter, r *http.Request) {
	data, ok := h.read(w)
	if !ok {
		return
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		h.logger.Error("failed_to_parse_openapi", zap.Error(err))
		http.Error(w, "Failed to parse OpenAPI specification", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		h.logger.Debug("failed_to_write_openapi", zap.Error(err))
	}
}
