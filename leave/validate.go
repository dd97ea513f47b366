/*
validate.go - Record validation, status transitions, and role rules

PURPOSE:
  Validates and normalizes records before they reach the mutation pipeline,
  and gates status transitions on the acting session's role. Everything here
  runs before any optimistic local change or network call, so a record the
  remote would never accept is rejected synchronously.

NORMALIZATION:
  - Reversed from/to pairs are swapped, never rejected
  - Half-day entries are pinned to a single date with days = 0.5
  - A missing day count is recomputed from working days

SEE ALSO:
  - errors.go: The sentinels returned here
  - client/mutate.go: The pipeline that calls this first
*/
package leave

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-manager/calendar"
)

// NormalizeLeave validates a leave record in place and fills derived fields:
// swapped dates, recomputed day counts, default PENDING status.
// requireReason is set for new submissions.
func NormalizeLeave(l *Leave, holidays calendar.HolidaySet, requireReason bool) error {
	if l.EmployeeID == "" {
		return &ValidationError{Field: "employeeId", Err: ErrEmployeeRequired}
	}
	if l.Type == "" {
		l.Type = TypeAnnual
	}
	if l.From.IsZero() || l.To.IsZero() {
		return &ValidationError{Field: "from/to", Err: ErrDateRequired}
	}
	if l.To.Before(l.From) {
		l.From, l.To = l.To, l.From
	}

	if l.IsHalfDay {
		if !l.From.Equal(l.To) {
			return &ValidationError{Field: "to", Err: ErrInvalidHalfDay}
		}
		if l.Session != SessionAM && l.Session != SessionPM {
			return &ValidationError{Field: "session", Err: ErrInvalidHalfDay}
		}
		l.Days = halfDay
	} else {
		l.Session = ""
		if !l.Days.IsPositive() {
			l.Days = decimal.NewFromInt(int64(calendar.WorkingDays(l.From, l.To, holidays)))
		}
	}

	if requireReason && strings.TrimSpace(l.Reason) == "" {
		return &ValidationError{Field: "reason", Err: ErrReasonRequired}
	}

	if l.Status == "" {
		l.Status = StatusPending
	}
	return nil
}

// CanEditLeave reports whether the session may edit or delete the given
// leave. Elevated roles may always; an employee only while the record is
// their own and still pending.
func CanEditLeave(s Session, l Leave) error {
	if s.Role.Elevated() {
		return nil
	}
	if l.EmployeeID != s.EmployeeID {
		return ErrForbidden
	}
	if l.Status != "" && l.Status != StatusPending {
		return ErrNotPending
	}
	return nil
}

// Approve transitions a pending leave to APPROVED, recording the approver.
// Requires an elevated role.
func Approve(l *Leave, s Session, at calendar.Day) error {
	return transition(l, s, at, StatusApproved)
}

// Reject transitions a pending leave to REJECTED.
func Reject(l *Leave, s Session, at calendar.Day) error {
	return transition(l, s, at, StatusRejected)
}

func transition(l *Leave, s Session, at calendar.Day, to Status) error {
	if !s.Role.Elevated() {
		return ErrForbidden
	}
	if l.Status != "" && l.Status != StatusPending {
		return ErrNotPending
	}
	l.Status = to
	l.ApprovedBy = s.Email
	l.ApprovedAt = at.String()
	return nil
}
