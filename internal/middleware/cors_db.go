package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/benvon/smart-trips/internal/database"
	"github.com/benvon/smart-trips/internal/models"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const defaultCORSOrigin = "http://localhost:3000"

// CorsConfigSource provides the stored CORS configuration; nil means none is stored.
type CorsConfigSource interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
}

var _ CorsConfigSource = (*database.CorsConfigRepository)(nil)

// CORSReloader wraps rs/cors and periodically reloads the CORS config from the key-value store.
type CORSReloader struct {
	next     http.Handler
	repo     CorsConfigSource
	fallback string // FRONTEND_URL
	log      *zap.Logger
	interval time.Duration

	mu      sync.RWMutex
	current http.Handler
	origins []string
}

// NewCORSReloader creates a CORS middleware that loads its config from the store and hot-reloads it.
// Without a stored config the comma-separated frontendURLFallback origins are allowed.
func NewCORSReloader(repo CorsConfigSource, frontendURLFallback string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	if log == nil {
		log = zap.NewNop()
	}
	return &CORSReloader{
		repo:     repo,
		fallback: strings.TrimSpace(frontendURLFallback),
		log:      log,
		interval: reloadInterval,
	}
}

// Middleware returns a middleware that wraps next with CORS and hot-reload.
func (r *CORSReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		r.next = next
		r.Reload(context.Background())
		return r
	}
}

// Start runs the reload loop until ctx is cancelled. Call after Middleware() is applied.
func (r *CORSReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reload(ctx)
		}
	}
}

// Reload rebuilds the CORS handler from the current config.
func (r *CORSReloader) Reload(ctx context.Context) {
	if r.next == nil {
		return
	}

	origins := models.SplitOrigins(r.fallback)
	allowCreds, maxAge := true, 86400
	cfg, err := r.repo.Get(ctx)
	switch {
	case err != nil:
		r.log.Warn("failed_to_load_cors_config_using_fallback", zap.Error(err))
	case cfg != nil:
		origins = cfg.Origins()
		allowCreds = cfg.AllowCredentials
		maxAge = cfg.MaxAge
	}
	if len(origins) == 0 {
		origins = []string{defaultCORSOrigin}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: allowCreds,
		MaxAge:           maxAge,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "If-Match", "X-Request-ID"},
		ExposedHeaders:   []string{"ETag", "Content-Disposition", "X-Request-ID"},
	})
	h := c.Handler(r.next)

	r.mu.Lock()
	changed := !slices.Equal(r.origins, origins)
	r.current = h
	r.origins = origins
	r.mu.Unlock()

	if changed {
		r.log.Info("cors_config_loaded", zap.Strings("allowed_origins", origins))
	}
}

// ServeHTTP implements http.Handler.
func (r *CORSReloader) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	h := r.current
	r.mu.RUnlock()
	if h != nil {
		h.ServeHTTP(w, req)
		return
	}
	if r.next != nil {
		r.next.ServeHTTP(w, req)
	}
}
