package domain

import (
	"errors"
	"fmt"
)

// ErrDataUnavailable is returned when no building source could be resolved.
// Callers may substitute a synthetic dataset.
var ErrDataUnavailable = errors.New("building data unavailable")

// SchemaError reports a malformed building record. Index is the record's
// position in the source, or -1 for dataset-level problems. ID is the
// record's resolved ID, generated from Index when the source had none; it is
// empty only when the error arises before IDs are resolved.
type SchemaError struct {
	Index  int
	ID     string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Index < 0 {
		return "schema error: " + e.Reason
	}
	if e.ID != "" {
		return fmt.Sprintf("schema error: record %d (%s): %s", e.Index, e.ID, e.Reason)
	}
	return fmt.Sprintf("schema error: record %d: %s", e.Index, e.Reason)
}

// PersistenceError reports that results could not be written to Destination.
type PersistenceError struct {
	Destination string
	Err         error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist results to %s: %v", e.Destination, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
