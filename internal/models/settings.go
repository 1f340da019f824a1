package models

import (
	"strings"
	"time"
)

// CorsConfig is the CORS policy servers reload at runtime
type CorsConfig struct {
	AllowedOrigins   string    `json:"allowed_origins"` // comma-separated
	AllowCredentials bool      `json:"allow_credentials"`
	MaxAge           int       `json:"max_age"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Origins returns the allowed origins as a deduplicated list
func (c *CorsConfig) Origins() []string {
	if c == nil {
		return nil
	}
	return SplitOrigins(c.AllowedOrigins)
}

// SplitOrigins splits a comma-separated origin list, dropping blanks and
// repeats while keeping the first occurrence order
func SplitOrigins(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, dup := seen[origin]; dup {
			continue
		}
		seen[origin] = struct{}{}
		out = append(out, origin)
	}
	return out
}

// RatelimitConfig is the API rate servers reload at runtime, in the
// "<limit>-<period>" form such as "20-S" or "100-M"
type RatelimitConfig struct {
	Rate      string    `json:"rate"`
	UpdatedAt time.Time `json:"updated_at"`
}
