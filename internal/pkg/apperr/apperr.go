package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is the sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is the sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is the sentinel for permission failures.
	ErrForbidden = errors.New("forbidden")
)

// InvalidStateTransitionError reports an illegal assignment status change.
type InvalidStateTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Entity, e.From, e.To)
}

// VersionInUseError blocks deletion of a version or snapshot that is still
// referenced by assignments.
type VersionInUseError struct {
	Entity        string
	ID            uuid.UUID
	AssignmentIDs []uuid.UUID
}

func (e *VersionInUseError) Error() string {
	return fmt.Sprintf("%s %s is referenced by %d assignment(s)", e.Entity, e.ID, len(e.AssignmentIDs))
}

// ConcurrencyConflictError reports an optimistic-lock mismatch. The caller may
// retry the read-modify-write cycle once before surfacing it.
type ConcurrencyConflictError struct {
	Entity string
	ID     uuid.UUID
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently", e.Entity, e.ID)
}

// ValidationError rejects invalid input before anything is persisted.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func Validation(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

// HTTPStatus maps a core error onto an HTTP status for the handler layer.
func HTTPStatus(err error) int {
	var (
		transition *InvalidStateTransitionError
		inUse      *VersionInUseError
		conflict   *ConcurrencyConflictError
		validation *ValidationError
	)
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.As(err, &transition), errors.As(err, &inUse), errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &validation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine-readable error code used in API envelopes.
func Code(err error) string {
	var (
		transition *InvalidStateTransitionError
		inUse      *VersionInUseError
		conflict   *ConcurrencyConflictError
		validation *ValidationError
	)
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.As(err, &transition):
		return "invalid_state_transition"
	case errors.As(err, &inUse):
		return "version_in_use"
	case errors.As(err, &conflict):
		return "concurrency_conflict"
	case errors.As(err, &validation):
		return "validation_failed"
	default:
		return "internal"
	}
}
