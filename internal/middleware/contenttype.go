package middleware

import (
	"net/http"
	"strings"
)

// ContentType requires application/json on POST, PUT and PATCH requests that
// carry a body. Bodiless state transitions such as /plans/{id}/complete pass.
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			next.ServeHTTP(w, r)
			return
		}

		if r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}

		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			http.Error(w, "Content-Type header is required", http.StatusBadRequest)
			return
		}
		if !strings.HasPrefix(strings.ToLower(contentType), "application/json") {
			http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
			return
		}

		next.ServeHTTP(w, r)
	})
}
