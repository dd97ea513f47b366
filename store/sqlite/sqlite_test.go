package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-manager/calendar"
	"github.com/warp/leave-manager/leave"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testEmployee(id string) leave.Employee {
	emp := leave.Employee{ID: id, Name: "Ana", Email: "ana@example.com", Role: leave.RoleEmployee}
	emp.SetEntitlement(2025, decimal.NewFromInt(2), decimal.NewFromInt(12))
	return emp
}

func testLeave(id, empID string) leave.Leave {
	return leave.Leave{
		ID:         id,
		EmployeeID: empID,
		Type:       leave.TypeAnnual,
		Status:     leave.StatusPending,
		From:       calendar.MustDay("2025-03-10"),
		To:         calendar.MustDay("2025-03-14"),
		Days:       decimal.NewFromInt(5),
		Reason:     "family trip",
	}
}

func TestStore_EmployeeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveEmployee(ctx, testEmployee("e1")))

	ds, err := s.LoadAll(ctx)
	require.NoError(t, err)
	emp := ds.Employee("e1")
	require.NotNil(t, emp)
	assert.Equal(t, "Ana", emp.Name)
	assert.True(t, emp.Entitlement(2025).Carry.Equal(decimal.NewFromInt(2)))
	assert.True(t, emp.Entitlement(2025).Current.Equal(decimal.NewFromInt(12)))
}

func TestStore_SaveEmployeeReplacesEntitlementRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	emp := testEmployee("e1")
	require.NoError(t, s.SaveEmployee(ctx, emp))

	// Second save carries only 2026; the 2025 row must go with it.
	emp.Entitlements = nil
	emp.SetEntitlement(2026, decimal.NewFromInt(5), decimal.NewFromInt(14))
	require.NoError(t, s.SaveEmployee(ctx, emp))

	ds, err := s.LoadAll(ctx)
	require.NoError(t, err)
	reloaded := ds.Employee("e1")
	assert.False(t, reloaded.HasEntitlement(2025))
	assert.True(t, reloaded.Entitlement(2026).Total().Equal(decimal.NewFromInt(19)))
}

func TestStore_DeleteEmployeeCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveEmployee(ctx, testEmployee("e1")))
	require.NoError(t, s.SaveLeave(ctx, testLeave("l1", "e1")))
	require.NoError(t, s.DeleteEmployee(ctx, "e1"))

	ds, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, ds.Employees)
	assert.Empty(t, ds.Leaves, "leaves cascade with their employee")

	assert.ErrorIs(t, s.DeleteEmployee(ctx, "e1"), leave.ErrEmployeeNotFound)
}

func TestStore_LeaveUpsertAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveEmployee(ctx, testEmployee("e1")))
	l := testLeave("l1", "e1")
	require.NoError(t, s.SaveLeave(ctx, l))

	// Upsert by id: approve in place.
	l.Status = leave.StatusApproved
	l.ApprovedBy = "mgr@example.com"
	require.NoError(t, s.SaveLeave(ctx, l))

	ds, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, ds.Leaves, 1)
	assert.Equal(t, leave.StatusApproved, ds.Leaves[0].Status)
	assert.Equal(t, "mgr@example.com", ds.Leaves[0].ApprovedBy)
	assert.True(t, ds.Leaves[0].Days.Equal(decimal.NewFromInt(5)))

	require.NoError(t, s.DeleteLeave(ctx, "l1"))
	assert.ErrorIs(t, s.DeleteLeave(ctx, "l1"), leave.ErrLeaveNotFound)
}

func TestStore_HalfDayRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveEmployee(ctx, testEmployee("e1")))
	l := testLeave("l1", "e1")
	l.To = l.From
	l.IsHalfDay = true
	l.Session = leave.SessionAM
	l.Days = decimal.New(5, -1)
	require.NoError(t, s.SaveLeave(ctx, l))

	ds, err := s.LoadAll(ctx)
	require.NoError(t, err)
	got := ds.Leaves[0]
	assert.True(t, got.IsHalfDay)
	assert.Equal(t, leave.SessionAM, got.Session)
	assert.True(t, got.Days.Equal(decimal.New(5, -1)), "0.5 survives the TEXT column exactly")
}

func TestStore_ReplaceHolidaysIsWholesale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceHolidays(ctx, []leave.Holiday{
		{Date: calendar.MustDay("2025-01-01"), Name: "New Year"},
	}))
	require.NoError(t, s.ReplaceHolidays(ctx, []leave.Holiday{
		{Date: calendar.MustDay("2025-12-25"), Name: "Christmas Day"},
		{Date: calendar.MustDay("2025-12-26")},
	}))

	ds, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, ds.Holidays, 2)
	assert.False(t, ds.HolidaySet().Contains(calendar.MustDay("2025-01-01")))
}

func TestStore_LastChangeAdvancesOnEveryWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	initial, err := s.LastChange(ctx)
	require.NoError(t, err)
	require.False(t, initial.IsZero(), "migration seeds the stamp")

	require.NoError(t, s.SaveEmployee(ctx, testEmployee("e1")))
	afterEmployee, err := s.LastChange(ctx)
	require.NoError(t, err)
	assert.True(t, afterEmployee.After(initial))

	// Holiday replace touches no updated_at column; meta still advances.
	require.NoError(t, s.ReplaceHolidays(ctx, []leave.Holiday{
		{Date: calendar.MustDay("2025-12-25")},
	}))
	afterHolidays, err := s.LastChange(ctx)
	require.NoError(t, err)
	assert.True(t, afterHolidays.After(afterEmployee))
}

func TestStore_AuditTrail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendAudit(ctx, AuditEntry{
		Action: "save", EntityType: "employee", EntityID: "e1", UserEmail: "hr@example.com",
	}))
	require.NoError(t, s.AppendAudit(ctx, AuditEntry{
		Action: "delete", EntityType: "leave", EntityID: "l1",
	}))

	entries, err := s.ListAudit(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "delete", entries[0].Action, "newest first")
	assert.Equal(t, "hr@example.com", entries[1].UserEmail)
	assert.False(t, entries[0].Timestamp.IsZero())

	page, err := s.ListAudit(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "save", page[0].Action)
}

func TestStore_ResetWipesEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveEmployee(ctx, testEmployee("e1")))
	require.NoError(t, s.SaveLeave(ctx, testLeave("l1", "e1")))
	require.NoError(t, s.Reset(ctx))

	ds, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, ds.Employees)
	assert.Empty(t, ds.Leaves)
	assert.Empty(t, ds.Holidays)
}
