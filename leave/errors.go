/*
errors.go - Error types for the leave domain

PURPOSE:
  All domain error values in one place. Validation errors are returned
  before any network call; authorization errors are returned before any
  optimistic local mutation is applied.

USAGE:
  Callers branch with errors.Is():

    if errors.Is(err, leave.ErrForbidden) { ... }
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmployeeRequired is returned when a leave has no employee reference.
	ErrEmployeeRequired = errors.New("employee is required")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrLeaveNotFound is returned when a referenced leave doesn't exist.
	ErrLeaveNotFound = errors.New("leave not found")

	// ErrReasonRequired is returned when a new submission has no reason.
	ErrReasonRequired = errors.New("reason is required")

	// ErrDateRequired is returned when a leave is missing from/to dates.
	ErrDateRequired = errors.New("from and to dates are required")

	// ErrInvalidHalfDay is returned when a half-day request spans more than
	// one date or has no AM/PM session.
	ErrInvalidHalfDay = errors.New("half-day leave must cover a single date with a session")

	// ErrForbidden is returned when the acting role may not perform the action.
	ErrForbidden = errors.New("action not permitted for role")

	// ErrNotPending is returned on a status transition from a terminal status.
	ErrNotPending = errors.New("leave is not pending")
)

// ValidationError wraps a sentinel with the field it concerns, so callers
// can surface a human-readable message next to the offending input.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// RemoteError carries a server-rejected persist message verbatim. The
// mutation pipeline surfaces it to the caller without rewording.
type RemoteError struct {
	Op      string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}
