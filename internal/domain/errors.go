package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no data exists for the requested key or window.
	// It is a valid empty result, not a failure.
	ErrNotFound = errors.New("no sentiment data found")

	// ErrBackendUnavailable means a tier's underlying service is
	// unreachable. Fatal for operations solely on that tier; reads that
	// can fall back to another tier treat it as non-fatal.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrMigrationConflict means an archival was attempted for a day that
	// another sweep is already archiving. Callers retry after backoff,
	// never overwrite mid-flight.
	ErrMigrationConflict = errors.New("migration already in flight for this day")
)

// ValidationError rejects a malformed record at the ingestion boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: %s %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
