package leave_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-manager/calendar"
	"github.com/warp/leave-manager/leave"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func days(n float64) decimal.Decimal { return decimal.NewFromFloat(n) }

func datasetWithEmployee(id string, year int, carry, current float64) leave.Dataset {
	d := leave.EmptyDataset()
	emp := leave.Employee{ID: id, Name: "Test Person"}
	emp.SetEntitlement(year, days(carry), days(current))
	d.UpsertEmployee(emp)
	return d
}

func annualLeave(id, empID, from, to string, status leave.Status) leave.Leave {
	return leave.Leave{
		ID:         id,
		EmployeeID: empID,
		Type:       leave.TypeAnnual,
		Status:     status,
		From:       calendar.MustDay(from),
		To:         calendar.MustDay(to),
	}
}

func assertDecimal(t *testing.T, want float64, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	if !got.Equal(days(want)) {
		assert.Fail(t, "decimal mismatch: want "+days(want).String()+", got "+got.String(), msgAndArgs...)
	}
}

// =============================================================================
// ENTITLEMENT LOOKUPS
// =============================================================================

func TestEntitlement_AbsentYear_Zeros(t *testing.T) {
	emp := &leave.Employee{ID: "e1"}
	ent := emp.Entitlement(2031)
	assert.True(t, ent.Carry.IsZero())
	assert.True(t, ent.Current.IsZero())
	assert.False(t, emp.HasEntitlement(2031))

	var nilEmp *leave.Employee
	assert.True(t, nilEmp.Entitlement(2031).Total().IsZero())
}

func TestSetEntitlement_Overwrites(t *testing.T) {
	emp := &leave.Employee{ID: "e1"}
	emp.SetEntitlement(2025, days(2), days(10))
	emp.SetEntitlement(2025, days(3), days(12))
	ent := emp.Entitlement(2025)
	assertDecimal(t, 3, ent.Carry)
	assertDecimal(t, 12, ent.Current)
	assertDecimal(t, 15, ent.Total())
}

// =============================================================================
// ANNUAL TOTALS
// =============================================================================

func TestAnnualTotals_PendingAndRejectedExcluded(t *testing.T) {
	// GIVEN: entitlement {carry:2, current:10} in 2025, one APPROVED 3-day
	// leave, one PENDING 5-day leave, one REJECTED 2-day leave
	d := datasetWithEmployee("e1", 2025, 2, 10)
	d.UpsertLeave(annualLeave("l1", "e1", "2025-03-10", "2025-03-12", leave.StatusApproved)) // Mon-Wed
	d.UpsertLeave(annualLeave("l2", "e1", "2025-04-07", "2025-04-11", leave.StatusPending))
	d.UpsertLeave(annualLeave("l3", "e1", "2025-05-05", "2025-05-06", leave.StatusRejected))

	totals := d.AnnualTotals("e1", 2025)
	assertDecimal(t, 12, totals.Entitlement)
	assertDecimal(t, 3, totals.Taken)
	assertDecimal(t, 9, totals.Balance)
}

func TestAnnualTotals_LegacyEmptyStatusCounts(t *testing.T) {
	d := datasetWithEmployee("e1", 2025, 0, 14)
	d.UpsertLeave(annualLeave("l1", "e1", "2025-06-02", "2025-06-04", "")) // Mon-Wed, no status

	totals := d.AnnualTotals("e1", 2025)
	assertDecimal(t, 3, totals.Taken)
	assertDecimal(t, 11, totals.Balance)
}

func TestAnnualTotals_NegativeBalance_NotClamped(t *testing.T) {
	d := datasetWithEmployee("e1", 2025, 0, 2)
	d.UpsertLeave(annualLeave("l1", "e1", "2025-03-10", "2025-03-14", leave.StatusApproved)) // 5 days

	totals := d.AnnualTotals("e1", 2025)
	assertDecimal(t, -3, totals.Balance, "overdraft must stay visible")
}

func TestAnnualTotals_OtherTypesIgnored(t *testing.T) {
	d := datasetWithEmployee("e1", 2025, 0, 10)
	sick := annualLeave("l1", "e1", "2025-03-10", "2025-03-12", leave.StatusApproved)
	sick.Type = leave.TypeSick
	d.UpsertLeave(sick)

	assertDecimal(t, 0, d.AnnualTotals("e1", 2025).Taken)
	assertDecimal(t, 3, d.TotalsByType("e1", 2025, leave.TypeSick))
}

func TestAnnualTotals_HolidayReducesTaken(t *testing.T) {
	d := datasetWithEmployee("e1", 2025, 0, 10)
	d.SetHolidays([]leave.Holiday{{Date: calendar.MustDay("2025-03-11"), Name: "Founders Day"}})
	d.UpsertLeave(annualLeave("l1", "e1", "2025-03-10", "2025-03-12", leave.StatusApproved))

	assertDecimal(t, 2, d.AnnualTotals("e1", 2025).Taken)
}

// =============================================================================
// DAY RESOLUTION
// =============================================================================

func TestDaysInYear_HalfDay(t *testing.T) {
	l := leave.Leave{
		EmployeeID: "e1",
		Type:       leave.TypeAnnual,
		From:       calendar.MustDay("2025-03-10"),
		To:         calendar.MustDay("2025-03-10"),
		IsHalfDay:  true,
		Session:    leave.SessionAM,
		Days:       days(0.5),
	}
	assertDecimal(t, 0.5, leave.DaysInYear(l, 2025, nil))
	assertDecimal(t, 0, leave.DaysInYear(l, 2024, nil))
}

func TestDaysInYear_StoredOverrideWinsWithinYear(t *testing.T) {
	// A manual correction of 2 days over a 5-weekday span must not be
	// recomputed away.
	l := annualLeave("l1", "e1", "2025-03-10", "2025-03-14", leave.StatusApproved)
	l.Days = days(2)
	assertDecimal(t, 2, leave.DaysInYear(l, 2025, nil))
}

func TestDaysInYear_CrossYearAlwaysRecomputed(t *testing.T) {
	l := annualLeave("l1", "e1", "2024-12-30", "2025-01-03", leave.StatusApproved)
	l.Days = days(99) // stored value is ignored for cross-year spans

	assertDecimal(t, 2, leave.DaysInYear(l, 2024, nil))
	assertDecimal(t, 3, leave.DaysInYear(l, 2025, nil))
}

// =============================================================================
// CARRY-FORWARD
// =============================================================================

func TestCarryForwardBalance_CappedAtFive(t *testing.T) {
	d := datasetWithEmployee("e1", 2025, 0, 12)
	assertDecimal(t, 5, d.CarryForwardBalance("e1", 2025), "surplus of 12 caps at 5")
}

func TestCarryForwardBalance_NegativeClampedToZero(t *testing.T) {
	d := datasetWithEmployee("e1", 2025, 0, 2)
	d.UpsertLeave(annualLeave("l1", "e1", "2025-03-10", "2025-03-14", leave.StatusApproved))
	assertDecimal(t, 0, d.CarryForwardBalance("e1", 2025))
}

func TestApplyCarryForward_WritesNextYear(t *testing.T) {
	d := datasetWithEmployee("e1", 2025, 0, 8)
	d.UpsertLeave(annualLeave("l1", "e1", "2025-03-10", "2025-03-14", leave.StatusApproved))

	applied := d.ApplyCarryForward("e1", 2025)
	require.True(t, applied)

	ent := d.Employee("e1").Entitlement(2026)
	assertDecimal(t, 3, ent.Carry)
	assertDecimal(t, 0, ent.Current)
}

func TestApplyCarryForward_ManualRecordBlocks(t *testing.T) {
	// GIVEN: 2026 already has an explicit record with carry 0
	// WHEN: auto carry-forward runs with a nonzero eligible amount
	// THEN: the manual record is untouched
	d := datasetWithEmployee("e1", 2025, 0, 8)
	d.Employee("e1").SetEntitlement(2026, days(0), days(14))

	applied := d.ApplyCarryForward("e1", 2025)
	assert.False(t, applied)

	ent := d.Employee("e1").Entitlement(2026)
	assertDecimal(t, 0, ent.Carry)
	assertDecimal(t, 14, ent.Current)
}

func TestApplyCarryForward_UnknownEmployee_NoOp(t *testing.T) {
	d := leave.EmptyDataset()
	assert.False(t, d.ApplyCarryForward("ghost", 2025))
}
