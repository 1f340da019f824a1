package middleware

import (
	"net/http"

	logpkg "github.com/benvon/smart-trips/internal/logger"
	"github.com/benvon/smart-trips/internal/request"
	"go.uber.org/zap"
)

// Audit logs rejected writes worth following up: version conflicts on plans,
// oversized bodies and rate limit violations.
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			var event string
			switch wrapped.statusCode {
			case http.StatusConflict:
				event = "plan_version_conflict"
			case http.StatusRequestEntityTooLarge:
				event = "request_too_large"
			case http.StatusTooManyRequests:
				event = "rate_limit_violation"
			default:
				return
			}

			logger.Warn(event,
				zap.Int("status_code", wrapped.statusCode),
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxGeneralStringLength)),
				zap.String("request_id", request.RequestIDFromContext(r.Context())),
			)
		})
	}
}
