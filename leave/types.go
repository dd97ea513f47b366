/*
Package leave defines the leave-management data model and the balance engine.

PURPOSE:
  Holds the records that make up the authoritative dataset (employees with
  per-year entitlements, leave entries, holidays) and the derivation logic
  that turns them into entitlement/taken/balance figures per employee per
  year, including carry-forward across years.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee: Person with a role and a year-keyed entitlement map
  - Leave: A dated leave entry with type, status, and day count
  - Holiday: A configured non-working date
  - Dataset: The full snapshot the client mirrors and the server persists
  - Session: The authenticated principal a caller acts as

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for day counts (half days are exact)
  2. Explicit state: every computation takes the Dataset it reads, no globals
  3. Tolerance: legacy records with no status count as approved

SEE ALSO:
  - balance.go: Entitlement lookups and totals
  - validate.go: Record validation and role rules
*/
package leave

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-manager/calendar"
)

// =============================================================================
// ROLES AND STATUSES
// =============================================================================

type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
	RoleHR       Role = "HR"
)

// Elevated reports whether the role may approve, reject, or act on records
// belonging to other employees.
func (r Role) Elevated() bool {
	return r == RoleManager || r == RoleHR
}

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// CountsAgainstBalance reports whether a leave in this status consumes
// balance. Legacy records predate the status column and carry an empty
// status; they are treated as approved.
func (s Status) CountsAgainstBalance() bool {
	return s == "" || s == StatusApproved
}

// Leave type codes. The type column is an open-ended string in practice;
// these are the codes the report card knows about.
const (
	TypeAnnual          = "ANNUAL"
	TypeSick            = "SL"
	TypeHospitalisation = "HL"
	TypeTimeChit        = "TC"
)

// Half-day sessions.
type HalfDaySession string

const (
	SessionAM HalfDaySession = "AM"
	SessionPM HalfDaySession = "PM"
)

// =============================================================================
// RECORDS
// =============================================================================

// Entitlement is the annual-leave grant for one employee in one year.
// Carry is the portion brought forward from the prior year, Current the
// portion freshly granted.
type Entitlement struct {
	Carry   decimal.Decimal `json:"carry"`
	Current decimal.Decimal `json:"current"`
}

// Total returns carry + current.
func (e Entitlement) Total() decimal.Decimal {
	return e.Carry.Add(e.Current)
}

// Employee is a person record with a year-keyed entitlement map.
type Employee struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Email        string              `json:"email,omitempty"`
	Role         Role                `json:"role,omitempty"`
	JobTitle     string              `json:"jobTitle,omitempty"`
	Department   string              `json:"department,omitempty"`
	DateJoined   calendar.Day        `json:"dateJoined,omitempty"`
	Entitlements map[int]Entitlement `json:"entitlements,omitempty"`
}

// Leave is a single leave entry. From/To are an inclusive range; Days may be
// fractional for half-day entries.
type Leave struct {
	ID         string          `json:"id"`
	EmployeeID string          `json:"employeeId"`
	Type       string          `json:"type"`
	Status     Status          `json:"status,omitempty"`
	Applied    calendar.Day    `json:"applied,omitempty"`
	From       calendar.Day    `json:"from"`
	To         calendar.Day    `json:"to"`
	Days       decimal.Decimal `json:"days"`
	IsHalfDay  bool            `json:"isHalfDay,omitempty"`
	Session    HalfDaySession  `json:"session,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	ApprovedBy string          `json:"approvedBy,omitempty"`
	ApprovedAt string          `json:"approvedAt,omitempty"`
	CreatedBy  string          `json:"createdBy,omitempty"`
}

// Holiday is a configured non-working date. The date is the unique key; the
// name is a display label and may be empty.
type Holiday struct {
	Date calendar.Day `json:"date"`
	Name string       `json:"name,omitempty"`
}

// UnmarshalJSON accepts both object-shaped entries ({"date":..,"name":..})
// and bare date strings, which older exports used.
func (h *Holiday) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d, err := calendar.ParseDay(s)
		if err != nil {
			return err
		}
		*h = Holiday{Date: d}
		return nil
	}
	type plain Holiday
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*h = Holiday(p)
	return nil
}

// Session is the authenticated principal performing an action. It is passed
// explicitly into every operation that needs it; there is no ambient
// current-user lookup.
type Session struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	EmployeeID string `json:"employeeId,omitempty"` // bound employee record, if any
}

// =============================================================================
// DATASET - The full snapshot
// =============================================================================

// Meta carries the snapshot version. UpdatedAt is a last-writer-wins
// timestamp, not a vector clock.
type Meta struct {
	UpdatedAt time.Time `json:"updatedAt"`
}

// Dataset is the complete mirrored state: every employee, leave, and holiday.
type Dataset struct {
	Employees []Employee `json:"employees"`
	Leaves    []Leave    `json:"leaves"`
	Holidays  []Holiday  `json:"holidays"`
	Meta      Meta       `json:"meta"`
}

// EmptyDataset returns a well-formed dataset with no records.
func EmptyDataset() Dataset {
	return Dataset{
		Employees: []Employee{},
		Leaves:    []Leave{},
		Holidays:  []Holiday{},
	}
}

// Employee returns the employee with the given id, or nil.
func (d *Dataset) Employee(id string) *Employee {
	for i := range d.Employees {
		if d.Employees[i].ID == id {
			return &d.Employees[i]
		}
	}
	return nil
}

// LeaveByID returns the leave with the given id, or nil.
func (d *Dataset) LeaveByID(id string) *Leave {
	for i := range d.Leaves {
		if d.Leaves[i].ID == id {
			return &d.Leaves[i]
		}
	}
	return nil
}

// HolidaySet builds the calendar lookup set for the configured holidays.
func (d *Dataset) HolidaySet() calendar.HolidaySet {
	s := make(calendar.HolidaySet, len(d.Holidays))
	for _, h := range d.Holidays {
		s.Add(h.Date)
	}
	return s
}

// UpsertEmployee inserts or replaces an employee by id.
func (d *Dataset) UpsertEmployee(e Employee) {
	for i := range d.Employees {
		if d.Employees[i].ID == e.ID {
			d.Employees[i] = e
			return
		}
	}
	d.Employees = append(d.Employees, e)
}

// RemoveEmployee deletes an employee and cascades to every leave that
// references it, mirroring the server-side cascade.
func (d *Dataset) RemoveEmployee(id string) {
	emps := d.Employees[:0]
	for _, e := range d.Employees {
		if e.ID != id {
			emps = append(emps, e)
		}
	}
	d.Employees = emps

	leaves := d.Leaves[:0]
	for _, l := range d.Leaves {
		if l.EmployeeID != id {
			leaves = append(leaves, l)
		}
	}
	d.Leaves = leaves
}

// UpsertLeave inserts or replaces a leave by id.
func (d *Dataset) UpsertLeave(l Leave) {
	for i := range d.Leaves {
		if d.Leaves[i].ID == l.ID {
			d.Leaves[i] = l
			return
		}
	}
	d.Leaves = append(d.Leaves, l)
}

// RemoveLeave deletes a leave by id.
func (d *Dataset) RemoveLeave(id string) {
	leaves := d.Leaves[:0]
	for _, l := range d.Leaves {
		if l.ID != id {
			leaves = append(leaves, l)
		}
	}
	d.Leaves = leaves
}

// SetHolidays replaces the full holiday set.
func (d *Dataset) SetHolidays(hs []Holiday) {
	d.Holidays = append([]Holiday(nil), hs...)
}

// Clone returns a deep copy of the dataset. The cache hands out clones so
// callers can never mutate the mirror behind its back.
func (d *Dataset) Clone() Dataset {
	out := Dataset{
		Employees: make([]Employee, len(d.Employees)),
		Leaves:    append([]Leave(nil), d.Leaves...),
		Holidays:  append([]Holiday(nil), d.Holidays...),
		Meta:      d.Meta,
	}
	for i, e := range d.Employees {
		copied := e
		if e.Entitlements != nil {
			copied.Entitlements = make(map[int]Entitlement, len(e.Entitlements))
			for y, ent := range e.Entitlements {
				copied.Entitlements[y] = ent
			}
		}
		out.Employees[i] = copied
	}
	return out
}
