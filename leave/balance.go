/*
balance.go - Entitlement lookups and derived balance totals

PURPOSE:
  Derives entitlement, taken, and balance per employee per year from the
  entitlement records and leave entries in a Dataset. This is the central
  calculation that answers "how many days does this employee have left?"

KEY RULES:
  - An absent-year entitlement lookup yields {carry:0, current:0}, never nil
  - Only ANNUAL leaves in APPROVED (or legacy empty) status consume balance
  - Balance may go negative; it is a displayable overdraft signal
  - Carry-forward eligibility clamps the surplus to [0, MaxCarryForwardDays]
  - Auto carry-forward never overwrites a year that already has an explicit
    entitlement record, even one with carry 0

DAY RESOLUTION (DaysInYear):
  a) half-day entirely inside the year        -> exactly 0.5
  b) stored day count, leave inside the year  -> stored value (manual
     corrections win over recomputation)
  c) otherwise                                -> working days apportioned
     to the year

SEE ALSO:
  - calendar/calendar.go: The working-day counts this builds on
*/
package leave

import (
	"github.com/shopspring/decimal"
	"github.com/warp/leave-manager/calendar"
)

// MaxCarryForwardDays caps how much unused balance may carry into the next
// year. Business policy constant, not derived.
var MaxCarryForwardDays = decimal.NewFromInt(5)

var halfDay = decimal.New(5, -1) // 0.5

// =============================================================================
// ENTITLEMENTS
// =============================================================================

// Entitlement returns the entitlement for the given year, or zeros when no
// record exists. Never nil, never an error.
func (e *Employee) Entitlement(year int) Entitlement {
	if e == nil || e.Entitlements == nil {
		return Entitlement{}
	}
	return e.Entitlements[year]
}

// HasEntitlement reports whether an explicit entitlement record exists for
// the year. Record presence is the manual-override signal that blocks auto
// carry-forward, even when the stored carry is zero.
func (e *Employee) HasEntitlement(year int) bool {
	if e == nil || e.Entitlements == nil {
		return false
	}
	_, ok := e.Entitlements[year]
	return ok
}

// SetEntitlement writes or overwrites the year's entitlement record.
func (e *Employee) SetEntitlement(year int, carry, current decimal.Decimal) {
	if e.Entitlements == nil {
		e.Entitlements = make(map[int]Entitlement)
	}
	e.Entitlements[year] = Entitlement{Carry: carry, Current: current}
}

// =============================================================================
// PER-LEAVE DAY RESOLUTION
// =============================================================================

// DaysInYear returns the day count a leave contributes to the given year.
func DaysInYear(l Leave, year int, holidays calendar.HolidaySet) decimal.Decimal {
	from, to := l.From, l.To
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		from, to = to, from
	}

	if l.IsHalfDay && !from.IsZero() && from.Year() == year && to.Year() == year {
		return halfDay
	}

	// An explicit stored count is trusted only when the whole leave sits
	// inside the queried year; cross-year spans always recompute.
	if l.Days.IsPositive() && !from.IsZero() && !to.IsZero() &&
		from.Year() == year && to.Year() == year {
		return l.Days
	}

	return decimal.NewFromInt(int64(calendar.WorkingDaysInYear(from, to, year, holidays)))
}

// =============================================================================
// TOTALS
// =============================================================================

// Totals is the annual-leave summary for one employee and year.
type Totals struct {
	Entitlement decimal.Decimal `json:"entitlement"`
	Taken       decimal.Decimal `json:"taken"`
	Balance     decimal.Decimal `json:"balance"`
}

// AnnualTotals derives the ANNUAL entitlement/taken/balance for an employee
// in a year. PENDING and REJECTED leaves never count against balance.
// Balance is not clamped; a negative value is a valid overdraft.
func (d *Dataset) AnnualTotals(employeeID string, year int) Totals {
	holidays := d.HolidaySet()
	taken := decimal.Zero
	for _, l := range d.Leaves {
		if l.EmployeeID != employeeID || l.Type != TypeAnnual {
			continue
		}
		if !l.Status.CountsAgainstBalance() {
			continue
		}
		taken = taken.Add(DaysInYear(l, year, holidays))
	}

	ent := d.Employee(employeeID).Entitlement(year)
	entitlement := ent.Total()
	return Totals{
		Entitlement: entitlement,
		Taken:       taken,
		Balance:     entitlement.Sub(taken),
	}
}

// TotalsByType sums the days taken in a year for one leave type. Used for
// the non-annual categories (sick, hospitalisation, time-chit), which have
// no entitlement or balance concept.
func (d *Dataset) TotalsByType(employeeID string, year int, leaveType string) decimal.Decimal {
	holidays := d.HolidaySet()
	total := decimal.Zero
	for _, l := range d.Leaves {
		if l.EmployeeID != employeeID || l.Type != leaveType {
			continue
		}
		if !l.Status.CountsAgainstBalance() {
			continue
		}
		total = total.Add(DaysInYear(l, year, holidays))
	}
	return total
}

// =============================================================================
// CARRY-FORWARD
// =============================================================================

// CarryForwardBalance returns the unused balance eligible to carry into
// year+1: the annual balance clamped to [0, MaxCarryForwardDays].
func (d *Dataset) CarryForwardBalance(employeeID string, year int) decimal.Decimal {
	balance := d.AnnualTotals(employeeID, year).Balance
	if balance.IsNegative() {
		return decimal.Zero
	}
	if balance.GreaterThan(MaxCarryForwardDays) {
		return MaxCarryForwardDays
	}
	return balance
}

// ApplyCarryForward writes the computed carry-forward from year into
// year+1's entitlement record. It is a no-op when year+1 already has an
// explicit record: a manually entered value, including zero, must never be
// clobbered by a background recalculation. Reports whether a write happened.
func (d *Dataset) ApplyCarryForward(employeeID string, year int) bool {
	emp := d.Employee(employeeID)
	if emp == nil {
		return false
	}
	if emp.HasEntitlement(year + 1) {
		return false
	}
	carry := d.CarryForwardBalance(employeeID, year)
	emp.SetEntitlement(year+1, carry, decimal.Zero)
	return true
}
