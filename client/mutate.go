/*
mutate.go - The optimistic mutation pipeline

PURPOSE:
  Every create/update/delete of an employee, leave, or the holiday set runs
  the same two-phase commit: validate, apply to the local cache so the UI
  reflects it with zero latency, persist remotely, then force an immediate
  reconciliation so the cache converges on the authoritative post-write
  state (server defaults, audit side effects).

FAILURE POLICY:
  A rejected persist surfaces the server's message to the caller and does
  NOT revert the optimistic local change; the next successful
  reconciliation corrects the cache instead.

AUTHORIZATION:
  Role checks run before the optimistic apply, so the cache never holds a
  state the remote would refuse outright.

WRONG-EMPLOYEE FRICTION:
  A non-elevated user submitting leave for someone else's record must
  confirm twice. Deliberate friction against wrong-employee-context
  mistakes, not a security control.

SEE ALSO:
  - leave/validate.go: The checks run in step 1
  - engine.go: SyncNow in step 4
*/
package client

import (
	"context"

	"github.com/google/uuid"
	"github.com/warp/leave-manager/calendar"
	"github.com/warp/leave-manager/leave"
)

// ConfirmFunc asks the user a yes/no question. A nil func answers yes.
type ConfirmFunc func(prompt string) bool

// Mutator runs the mutation pipeline for one session.
type Mutator struct {
	Cache   *Cache
	Remote  Remote
	Engine  *Engine
	Session leave.Session
	Confirm ConfirmFunc
	Clock   Clock
}

func (m *Mutator) now() calendar.Day {
	if m.Clock != nil {
		return calendar.FromTime(m.Clock.Now())
	}
	return calendar.Today()
}

func (m *Mutator) confirm(prompt string) bool {
	if m.Confirm == nil {
		return true
	}
	return m.Confirm(prompt)
}

// forceSync reconciles against the authoritative post-write state. Sync
// errors are already logged and reflected in the status indicator; the
// mutation itself has succeeded.
func (m *Mutator) forceSync(ctx context.Context) {
	if m.Engine != nil {
		_ = m.Engine.SyncNow(ctx)
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// SaveEmployee upserts an employee, optionally writing one year's
// entitlement values.
func (m *Mutator) SaveEmployee(ctx context.Context, emp leave.Employee, ent *EntitlementUpdate) error {
	if !m.Session.Role.Elevated() {
		return leave.ErrForbidden
	}
	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}
	if ent != nil {
		emp.SetEntitlement(ent.Year, ent.Carry, ent.Current)
	}

	m.Cache.Mutate(func(d *leave.Dataset) {
		d.UpsertEmployee(emp)
	})

	if res := m.Remote.SaveEmployee(ctx, emp, ent); !res.OK {
		return &leave.RemoteError{Op: "save employee", Message: res.Message}
	}
	m.forceSync(ctx)
	return nil
}

// DeleteEmployee removes an employee. The cascade to its leaves happens in
// the same local mutation; the server mirrors it on its side.
func (m *Mutator) DeleteEmployee(ctx context.Context, id string) error {
	if !m.Session.Role.Elevated() {
		return leave.ErrForbidden
	}

	m.Cache.Mutate(func(d *leave.Dataset) {
		d.RemoveEmployee(id)
	})

	if res := m.Remote.DeleteEmployee(ctx, id); !res.OK {
		return &leave.RemoteError{Op: "delete employee", Message: res.Message}
	}
	m.forceSync(ctx)
	return nil
}

// =============================================================================
// LEAVES
// =============================================================================

// SubmitLeave validates and submits a new leave request.
func (m *Mutator) SubmitLeave(ctx context.Context, l leave.Leave) error {
	snapshot := m.Cache.Snapshot()

	if l.EmployeeID != "" && snapshot.Employee(l.EmployeeID) == nil {
		return leave.ErrEmployeeNotFound
	}
	if err := leave.NormalizeLeave(&l, snapshot.HolidaySet(), true); err != nil {
		return err
	}

	if !m.Session.Role.Elevated() && m.Session.EmployeeID != "" && l.EmployeeID != m.Session.EmployeeID {
		// Two separate prompts, on purpose.
		if !m.confirm("This leave is for a different employee's record. Continue?") {
			return leave.ErrForbidden
		}
		if !m.confirm("Are you sure? The entry will count against their balance.") {
			return leave.ErrForbidden
		}
	}

	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Applied.IsZero() {
		l.Applied = m.now()
	}
	l.Status = leave.StatusPending
	l.CreatedBy = m.Session.UserID

	m.Cache.Mutate(func(d *leave.Dataset) {
		d.UpsertLeave(l)
	})

	if res := m.Remote.SaveLeave(ctx, l); !res.OK {
		return &leave.RemoteError{Op: "save leave", Message: res.Message}
	}
	m.forceSync(ctx)
	return nil
}

// UpdateLeave edits an existing leave in place (same id).
func (m *Mutator) UpdateLeave(ctx context.Context, l leave.Leave) error {
	snapshot := m.Cache.Snapshot()
	existing := snapshot.LeaveByID(l.ID)
	if existing == nil {
		return leave.ErrLeaveNotFound
	}
	if err := leave.CanEditLeave(m.Session, *existing); err != nil {
		return err
	}
	if err := leave.NormalizeLeave(&l, snapshot.HolidaySet(), false); err != nil {
		return err
	}

	m.Cache.Mutate(func(d *leave.Dataset) {
		d.UpsertLeave(l)
	})

	if res := m.Remote.SaveLeave(ctx, l); !res.OK {
		return &leave.RemoteError{Op: "save leave", Message: res.Message}
	}
	m.forceSync(ctx)
	return nil
}

// ApproveLeave transitions a pending leave to APPROVED.
func (m *Mutator) ApproveLeave(ctx context.Context, id string) error {
	return m.decideLeave(ctx, id, leave.Approve)
}

// RejectLeave transitions a pending leave to REJECTED.
func (m *Mutator) RejectLeave(ctx context.Context, id string) error {
	return m.decideLeave(ctx, id, leave.Reject)
}

func (m *Mutator) decideLeave(ctx context.Context, id string, decide func(*leave.Leave, leave.Session, calendar.Day) error) error {
	snapshot := m.Cache.Snapshot()
	l := snapshot.LeaveByID(id)
	if l == nil {
		return leave.ErrLeaveNotFound
	}
	decided := *l
	if err := decide(&decided, m.Session, m.now()); err != nil {
		return err
	}

	m.Cache.Mutate(func(d *leave.Dataset) {
		d.UpsertLeave(decided)
	})

	if res := m.Remote.SaveLeave(ctx, decided); !res.OK {
		return &leave.RemoteError{Op: "save leave", Message: res.Message}
	}
	m.forceSync(ctx)
	return nil
}

// DeleteLeave removes a leave record.
func (m *Mutator) DeleteLeave(ctx context.Context, id string) error {
	snapshot := m.Cache.Snapshot()
	l := snapshot.LeaveByID(id)
	if l == nil {
		return leave.ErrLeaveNotFound
	}
	if err := leave.CanEditLeave(m.Session, *l); err != nil {
		return err
	}

	m.Cache.Mutate(func(d *leave.Dataset) {
		d.RemoveLeave(id)
	})

	if res := m.Remote.DeleteLeave(ctx, id); !res.OK {
		return &leave.RemoteError{Op: "delete leave", Message: res.Message}
	}
	m.forceSync(ctx)
	return nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// SetHolidays replaces the full holiday set.
func (m *Mutator) SetHolidays(ctx context.Context, hs []leave.Holiday) error {
	if !m.Session.Role.Elevated() {
		return leave.ErrForbidden
	}

	m.Cache.Mutate(func(d *leave.Dataset) {
		d.SetHolidays(hs)
	})

	if res := m.Remote.SetHolidays(ctx, hs); !res.OK {
		return &leave.RemoteError{Op: "set holidays", Message: res.Message}
	}
	m.forceSync(ctx)
	return nil
}
