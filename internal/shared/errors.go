package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Catalog and transport errors
	ErrCatalogFetch       = fmt.Errorf("catalog fetch failed")
	ErrTrackUnavailable   = fmt.Errorf("track unavailable")
	ErrDownloadFailed     = fmt.Errorf("download failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Offline storage errors
	ErrInvalidTrackID = fmt.Errorf("invalid track id")
	ErrPersist        = fmt.Errorf("failed to persist offline state")
	ErrNotFound       = fmt.Errorf("not found")
	ErrLocked         = fmt.Errorf("offline directory is locked by another process")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
