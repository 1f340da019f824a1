package logger

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Length limits applied to caller-controlled values before they reach a log line
const (
	MaxPathLength          = 500
	MaxIDLength            = 128 // uuids are 36
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
)

// SanitizePath prepares a URL path for logging
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeID prepares a caller-supplied identifier, usually a path variable,
// for logging
func SanitizeID(id string) string {
	return SanitizeString(id, MaxIDLength)
}

// SanitizeError prepares an error message for logging
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeString repairs invalid UTF-8, drops control characters other than
// whitespace and truncates the result to maxLength bytes without splitting a
// rune. A non-positive maxLength means MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
	if len(s) <= maxLength {
		return s
	}
	cut := maxLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// RedactURL hides the password of a connection URL. Values that do not parse
// as URLs are reduced to their scheme.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		scheme, _, _ := strings.Cut(raw, "://")
		return scheme + "://<redacted>"
	}
	return u.Redacted()
}
