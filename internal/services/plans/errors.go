package plans

import "errors"

var (
	// ErrImportFailed is returned when an import document is malformed
	ErrImportFailed = errors.New("import failed: invalid format")
	// ErrConflict is returned when a versioned update was based on a stale plan
	ErrConflict = errors.New("plan was modified concurrently")
)
