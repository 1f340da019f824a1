package middleware

import (
	"net/http"
	"strings"
)

const (
	// DefaultMaxRequestSize is the default maximum request body size (1MB)
	DefaultMaxRequestSize int64 = 1 << 20
	// DefaultMaxImportSize bounds export documents posted to /plans/import (16MB)
	DefaultMaxImportSize int64 = 16 << 20
)

// MaxRequestSize limits request bodies to maxBytes, or to importBytes for
// paths ending in /import.
func MaxRequestSize(maxBytes, importBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}
	if importBytes <= 0 {
		importBytes = DefaultMaxImportSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit := maxBytes
			if strings.HasSuffix(r.URL.Path, "/import") {
				limit = importBytes
			}

			if r.ContentLength > limit {
				http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
