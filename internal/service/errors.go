package service

import (
	"errors"
	"fmt"

	"github.com/portfolio/backend/internal/repository"
)

// ErrNotFound is returned when a record does not exist. It matches
// repository.ErrNotFound with errors.Is.
var ErrNotFound = fmt.Errorf("service: %w", repository.ErrNotFound)

// ErrNothingToExport is returned by Export when no message matches.
var ErrNothingToExport = errors.New("nothing to export")

// ValidationError reports a rejected input field. Code is a stable
// snake_case identifier suitable for API responses.
type ValidationError struct {
	Field string
	Code  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Code)
}

// PersistenceError wraps a storage failure. Callers should log Err and
// expose only a generic error to clients.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// storeErr maps repository errors onto the service error set.
func storeErr(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return &PersistenceError{Op: op, Err: err}
}
