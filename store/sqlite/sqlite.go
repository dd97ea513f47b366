/*
Package sqlite provides the SQLite-backed authoritative store.

PURPOSE:
  Persists the canonical dataset (employees, entitlements, leaves,
  holidays) plus the change stamp and the audit trail. The same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  employees:    Person records, updated_at bumped on every write
  entitlements: (employee_id, year) -> carry/current day values
  leaves:       Leave entries, upsert-by-id
  holidays:     Configured non-working dates (full-set replaceable)
  meta:         Single row carrying last_change for the heartbeat
  audit_logs:   Append-only trail of every mutation

CHANGE STAMP:
  Every mutation bumps meta.last_change. The heartbeat answer is the
  greatest of the employees/leaves updated_at values and last_change, so
  even a holiday replace (which touches no updated_at column) is visible
  to pollers.

CASCADE:
  leaves.employee_id references employees(id) ON DELETE CASCADE; deleting
  an employee removes its leaves in the same statement. Entitlements
  cascade the same way.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and WAL mode so readers don't
  block the single writer.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil { log.Fatal(err) }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - api/handlers.go: The HTTP surface over this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-manager/calendar"
	"github.com/warp/leave-manager/leave"
)

// Store implements the authoritative persistence layer over SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at the given path and migrates the
// schema. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT DEFAULT 'EMPLOYEE',
		job_title TEXT,
		department TEXT,
		date_joined TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entitlements (
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		year INTEGER NOT NULL,
		carry TEXT NOT NULL DEFAULT '0',
		current TEXT NOT NULL DEFAULT '0',
		PRIMARY KEY (employee_id, year)
	);

	CREATE TABLE IF NOT EXISTS leaves (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		status TEXT,
		applied TEXT,
		from_date TEXT,
		to_date TEXT,
		days TEXT NOT NULL DEFAULT '0',
		is_half_day INTEGER NOT NULL DEFAULT 0,
		session TEXT,
		reason TEXT,
		approved_by TEXT,
		approved_at TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_leaves_employee ON leaves(employee_id, type);
	CREATE INDEX IF NOT EXISTS idx_leaves_from ON leaves(from_date);

	CREATE TABLE IF NOT EXISTS holidays (
		date TEXT PRIMARY KEY,
		name TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		last_change TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		user_id TEXT,
		user_email TEXT,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT,
		entity_name TEXT,
		old_value TEXT,
		new_value TEXT,
		details TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_logs(timestamp DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO meta (id, last_change) VALUES (1, ?) ON CONFLICT (id) DO NOTHING`,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// =============================================================================
// FULL-STATE SNAPSHOT
// =============================================================================

// LoadAll assembles the complete dataset: every employee with its
// entitlement map, every leave, every holiday, stamped with last_change.
func (s *Store) LoadAll(ctx context.Context) (leave.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds := leave.EmptyDataset()

	empRows, err := s.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(email,''), COALESCE(role,'EMPLOYEE'),
		        COALESCE(job_title,''), COALESCE(department,''), COALESCE(date_joined,'')
		 FROM employees ORDER BY name ASC`)
	if err != nil {
		return ds, err
	}
	defer empRows.Close()

	for empRows.Next() {
		var e leave.Employee
		var joined string
		if err := empRows.Scan(&e.ID, &e.Name, &e.Email, &e.Role, &e.JobTitle, &e.Department, &joined); err != nil {
			return ds, err
		}
		if e.DateJoined, err = calendar.ParseDay(joined); err != nil {
			return ds, fmt.Errorf("employee %s: bad date_joined: %w", e.ID, err)
		}
		ds.Employees = append(ds.Employees, e)
	}
	if err := empRows.Err(); err != nil {
		return ds, err
	}

	entRows, err := s.db.QueryContext(ctx, `SELECT employee_id, year, carry, current FROM entitlements`)
	if err != nil {
		return ds, err
	}
	defer entRows.Close()

	for entRows.Next() {
		var empID, carry, current string
		var year int
		if err := entRows.Scan(&empID, &year, &carry, &current); err != nil {
			return ds, err
		}
		if emp := ds.Employee(empID); emp != nil {
			emp.SetEntitlement(year, parseDecimal(carry), parseDecimal(current))
		}
	}
	if err := entRows.Err(); err != nil {
		return ds, err
	}

	leaveRows, err := s.db.QueryContext(ctx,
		`SELECT id, employee_id, type, COALESCE(status,''), COALESCE(applied,''),
		        COALESCE(from_date,''), COALESCE(to_date,''), days, is_half_day,
		        COALESCE(session,''), COALESCE(reason,''), COALESCE(approved_by,''),
		        COALESCE(approved_at,''), COALESCE(created_by,'')
		 FROM leaves ORDER BY from_date ASC`)
	if err != nil {
		return ds, err
	}
	defer leaveRows.Close()

	for leaveRows.Next() {
		l, err := scanLeave(leaveRows)
		if err != nil {
			return ds, err
		}
		ds.Leaves = append(ds.Leaves, l)
	}
	if err := leaveRows.Err(); err != nil {
		return ds, err
	}

	holRows, err := s.db.QueryContext(ctx, `SELECT date, COALESCE(name,'') FROM holidays ORDER BY date ASC`)
	if err != nil {
		return ds, err
	}
	defer holRows.Close()

	for holRows.Next() {
		var date, name string
		if err := holRows.Scan(&date, &name); err != nil {
			return ds, err
		}
		day, err := calendar.ParseDay(date)
		if err != nil {
			continue // tolerate a malformed legacy row rather than failing the snapshot
		}
		ds.Holidays = append(ds.Holidays, leave.Holiday{Date: day, Name: name})
	}
	if err := holRows.Err(); err != nil {
		return ds, err
	}

	last, err := s.lastChangeLocked(ctx)
	if err != nil {
		return ds, err
	}
	ds.Meta.UpdatedAt = last
	return ds, nil
}

func scanLeave(rows *sql.Rows) (leave.Leave, error) {
	var l leave.Leave
	var applied, from, to, days string
	var halfDay int
	err := rows.Scan(&l.ID, &l.EmployeeID, &l.Type, &l.Status, &applied,
		&from, &to, &days, &halfDay, &l.Session, &l.Reason,
		&l.ApprovedBy, &l.ApprovedAt, &l.CreatedBy)
	if err != nil {
		return l, err
	}
	if l.Applied, err = calendar.ParseDay(applied); err != nil {
		return l, err
	}
	if l.From, err = calendar.ParseDay(from); err != nil {
		return l, err
	}
	if l.To, err = calendar.ParseDay(to); err != nil {
		return l, err
	}
	l.Days = parseDecimal(days)
	l.IsHalfDay = halfDay != 0
	return l, nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// SaveEmployee upserts the employee row and replaces its entitlement rows
// with the record's full entitlement map.
func (s *Store) SaveEmployee(ctx context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO employees (id, name, email, role, job_title, department, date_joined, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name=excluded.name, email=excluded.email, role=excluded.role,
		   job_title=excluded.job_title, department=excluded.department,
		   date_joined=excluded.date_joined, updated_at=excluded.updated_at`,
		e.ID, e.Name, e.Email, string(e.Role), e.JobTitle, e.Department, e.DateJoined.String(), now, now)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM entitlements WHERE employee_id = ?`, e.ID); err != nil {
		return err
	}
	for year, ent := range e.Entitlements {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO entitlements (employee_id, year, carry, current) VALUES (?, ?, ?, ?)`,
			e.ID, year, ent.Carry.String(), ent.Current.String())
		if err != nil {
			return err
		}
	}

	if err := touchChange(ctx, tx, now); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteEmployee removes the employee; leaves and entitlements cascade.
func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM employees WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return leave.ErrEmployeeNotFound
	}
	if err := touchChange(ctx, tx, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// LEAVES
// =============================================================================

// SaveLeave upserts a leave record by id. The referenced employee must
// exist (foreign key).
func (s *Store) SaveLeave(ctx context.Context, l leave.Leave) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	halfDay := 0
	if l.IsHalfDay {
		halfDay = 1
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO leaves (id, employee_id, type, status, applied, from_date, to_date, days,
		                     is_half_day, session, reason, approved_by, approved_at, created_by,
		                     created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   employee_id=excluded.employee_id, type=excluded.type, status=excluded.status,
		   applied=excluded.applied, from_date=excluded.from_date, to_date=excluded.to_date,
		   days=excluded.days, is_half_day=excluded.is_half_day, session=excluded.session,
		   reason=excluded.reason, approved_by=excluded.approved_by, approved_at=excluded.approved_at,
		   updated_at=excluded.updated_at`,
		l.ID, l.EmployeeID, l.Type, string(l.Status), l.Applied.String(), l.From.String(), l.To.String(),
		l.Days.String(), halfDay, string(l.Session), l.Reason, l.ApprovedBy, l.ApprovedAt, l.CreatedBy,
		now, now)
	if err != nil {
		return err
	}

	if err := touchChange(ctx, tx, now); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteLeave removes a leave record by id.
func (s *Store) DeleteLeave(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM leaves WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return leave.ErrLeaveNotFound
	}
	if err := touchChange(ctx, tx, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// ReplaceHolidays swaps the entire holiday set in one transaction.
func (s *Store) ReplaceHolidays(ctx context.Context, hs []leave.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM holidays`); err != nil {
		return err
	}
	for _, h := range hs {
		if h.Date.IsZero() {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO holidays (date, name) VALUES (?, ?) ON CONFLICT (date) DO UPDATE SET name=excluded.name`,
			h.Date.String(), h.Name)
		if err != nil {
			return err
		}
	}

	if err := touchChange(ctx, tx, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// CHANGE STAMP
// =============================================================================

func touchChange(ctx context.Context, tx *sql.Tx, now string) error {
	_, err := tx.ExecContext(ctx, `UPDATE meta SET last_change = ? WHERE id = 1`, now)
	return err
}

// LastChange answers the heartbeat: the greatest of the row-level
// updated_at stamps and the meta stamp.
func (s *Store) LastChange(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastChangeLocked(ctx)
}

func (s *Store) lastChangeLocked(ctx context.Context) (time.Time, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT MAX(ts) FROM (
			SELECT COALESCE(MAX(updated_at), '') AS ts FROM employees
			UNION ALL
			SELECT COALESCE(MAX(updated_at), '') FROM leaves
			UNION ALL
			SELECT last_change FROM meta WHERE id = 1
		)`)
	var raw sql.NullString
	if err := row.Scan(&raw); err != nil {
		return time.Time{}, err
	}
	if !raw.Valid || raw.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw.String)
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

// AuditEntry is one row of the mutation trail.
type AuditEntry struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	UserID     string    `json:"userId,omitempty"`
	UserEmail  string    `json:"userEmail,omitempty"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId,omitempty"`
	EntityName string    `json:"entityName,omitempty"`
	OldValue   string    `json:"oldValue,omitempty"`
	NewValue   string    `json:"newValue,omitempty"`
	Details    string    `json:"details,omitempty"`
}

// AppendAudit records a trail entry. Callers treat failures as
// non-fatal: audit logging must never break the operation it describes.
func (s *Store) AppendAudit(ctx context.Context, e AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (timestamp, user_id, user_email, action, entity_type, entity_id, entity_name, old_value, new_value, details)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.Format(time.RFC3339Nano), e.UserID, e.UserEmail, e.Action,
		e.EntityType, e.EntityID, e.EntityName, e.OldValue, e.NewValue, e.Details)
	return err
}

// ListAudit returns trail entries newest-first.
func (s *Store) ListAudit(ctx context.Context, limit, offset int) ([]AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, COALESCE(user_id,''), COALESCE(user_email,''), action, entity_type,
		        COALESCE(entity_id,''), COALESCE(entity_name,''), COALESCE(old_value,''),
		        COALESCE(new_value,''), COALESCE(details,'')
		 FROM audit_logs ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.UserID, &e.UserEmail, &e.Action, &e.EntityType,
			&e.EntityID, &e.EntityName, &e.OldValue, &e.NewValue, &e.Details); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Reset wipes every table. Dev and test use only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"leaves", "entitlements", "employees", "holidays", "audit_logs"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, `UPDATE meta SET last_change = ? WHERE id = 1`,
		time.Now().UTC().Format(time.RFC3339Nano))
	return err
}
