/*
Package sqlite provides the SQL-backed roster and run-history store.

PURPOSE:
  Implements attendance.RosterStore and attendance.RunStore. SQLite
  (mattn/go-sqlite3) is the default; the same queries run on PostgreSQL
  through pgx's database/sql driver, with placeholders rebound.

KEY TABLES:
  students:            registration_id (PK), full_name, section
  periods:             id, section, weekday label, subject, start_time, end_time
  reconciliation_runs: one row per pipeline run, newest first

PERIOD FORMAT:
  weekday is the stored label (SEGUNDA-FEIRA ... DOMINGO), times are
  'HH:MM'. Rows that fail to parse are reported, never silently dropped.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. With PostgreSQL, database-level
  concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./db/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  roster, err := store.LoadRoster(ctx)

SEE ALSO:
  - attendance/store.go: Interface definitions
  - attendance/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/attendance-engine/attendance"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Store implements the roster and run stores over database/sql.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	driver string
}

// New creates a SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(DriverSQLite, dbPath+"?_foreign_keys=on&_journal_mode=WAL")
}

// Open creates a store for any supported driver and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q (want %s or %s)", driver, DriverSQLite, DriverPostgres)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if strings.HasPrefix(dsn, ":memory:") {
		// each pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, driver: driver}
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

// Ping checks connectivity (used by the health endpoint).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string { return s.driver }

// migrate creates the database schema.
func (s *Store) migrate() error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}

	schema := `
	-- Students (one row per registration id)
	CREATE TABLE IF NOT EXISTS students (
		registration_id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		section TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_students_section ON students(section);

	-- Weekly timetable
	CREATE TABLE IF NOT EXISTS periods (
		id ` + idColumn + `,
		section TEXT NOT NULL,
		weekday TEXT NOT NULL,
		subject TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_periods_slot
		ON periods(section, weekday, subject, start_time);

	-- Reconciliation run history
	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		status TEXT NOT NULL,
		report_date TEXT,
		absence_file TEXT NOT NULL,
		access_file TEXT NOT NULL,
		absentees INTEGER NOT NULL DEFAULT 0,
		anomalies INTEGER NOT NULL DEFAULT 0,
		tally_entries INTEGER NOT NULL DEFAULT 0,
		warnings INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON reconciliation_runs(started_at);
	`

	// one statement per Exec so both drivers accept the schema
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stripComments(stmt)) == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// STUDENTS (attendance.RosterStore)
// =============================================================================

// ListStudents returns all students ordered by section then name.
func (s *Store) ListStudents(ctx context.Context) ([]attendance.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listStudents(ctx, s.db)
}

func (s *Store) listStudents(ctx context.Context, q querier) ([]attendance.Student, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT registration_id, full_name, section FROM students ORDER BY section, full_name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	var students []attendance.Student
	for rows.Next() {
		var st attendance.Student
		if err := rows.Scan(&st.RegistrationID, &st.FullName, &st.Section); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// GetStudent retrieves a student by registration id.
func (s *Store) GetStudent(ctx context.Context, registrationID string) (*attendance.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st attendance.Student
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT registration_id, full_name, section FROM students WHERE registration_id = ?"),
		registrationID,
	).Scan(&st.RegistrationID, &st.FullName, &st.Section)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// CreateStudent inserts a new student.
func (s *Store) CreateStudent(ctx context.Context, st attendance.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		s.rebind("INSERT INTO students (registration_id, full_name, section) VALUES (?, ?, ?)"),
		st.RegistrationID, st.FullName, st.Section,
	)
	if isUniqueConstraintError(err) {
		return attendance.ErrDuplicateStudent
	}
	return err
}

// UpdateStudent changes name and section of an existing student.
func (s *Store) UpdateStudent(ctx context.Context, st attendance.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE students SET full_name = ?, section = ? WHERE registration_id = ?"),
		st.FullName, st.Section, st.RegistrationID,
	)
	return affectedOrNotFound(res, err, attendance.ErrStudentNotFound)
}

// DeleteStudent removes a student.
func (s *Store) DeleteStudent(ctx context.Context, registrationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM students WHERE registration_id = ?"), registrationID)
	return affectedOrNotFound(res, err, attendance.ErrStudentNotFound)
}

// CountStudents returns the number of students.
func (s *Store) CountStudents(ctx context.Context) (int, error) {
	return s.count(ctx, "students")
}

// =============================================================================
// PERIODS (attendance.RosterStore)
// =============================================================================

const periodColumns = "id, section, weekday, subject, start_time, end_time"

// ListPeriods returns all periods ordered by section, weekday, start.
func (s *Store) ListPeriods(ctx context.Context) ([]attendance.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPeriods(ctx, s.db)
}

func (s *Store) listPeriods(ctx context.Context, q querier) ([]attendance.Period, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+periodColumns+" FROM periods")
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	var periods []attendance.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// weekday is stored as a label, so order in Go rather than SQL
	sortPeriods(periods)
	return periods, nil
}

// GetPeriod retrieves a period by id.
func (s *Store) GetPeriod(ctx context.Context, id int64) (*attendance.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+periodColumns+" FROM periods WHERE id = ?"), id)
	p, err := scanPeriod(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePeriod inserts a period and sets p.ID.
func (s *Store) CreatePeriod(ctx context.Context, p *attendance.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertPeriod(ctx, s.db, p)
}

func (s *Store) insertPeriod(ctx context.Context, q querier, p *attendance.Period) error {
	err := q.QueryRowContext(ctx,
		s.rebind(`INSERT INTO periods (section, weekday, subject, start_time, end_time)
			VALUES (?, ?, ?, ?, ?) RETURNING id`),
		p.Section, p.Weekday.String(), p.Subject, p.Start.HHMM(), p.End.HHMM(),
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert period %s: %w", p, err)
	}
	return nil
}

// UpdatePeriod replaces every column of an existing period.
func (s *Store) UpdatePeriod(ctx context.Context, p attendance.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE periods SET section = ?, weekday = ?, subject = ?, start_time = ?, end_time = ?
			WHERE id = ?`),
		p.Section, p.Weekday.String(), p.Subject, p.Start.HHMM(), p.End.HHMM(), p.ID,
	)
	return affectedOrNotFound(res, err, attendance.ErrPeriodNotFound)
}

// DeletePeriod removes a period.
func (s *Store) DeletePeriod(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM periods WHERE id = ?"), id)
	return affectedOrNotFound(res, err, attendance.ErrPeriodNotFound)
}

// CountPeriods returns the number of periods.
func (s *Store) CountPeriods(ctx context.Context) (int, error) {
	return s.count(ctx, "periods")
}

// LoadRoster reads both tables inside one read transaction.
func (s *Store) LoadRoster(ctx context.Context) (attendance.Roster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: s.driver == DriverPostgres})
	if err != nil {
		return attendance.Roster{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	students, err := s.listStudents(ctx, tx)
	if err != nil {
		return attendance.Roster{}, err
	}
	periods, err := s.listPeriods(ctx, tx)
	if err != nil {
		return attendance.Roster{}, err
	}
	return attendance.Roster{Students: students, Periods: periods}, tx.Commit()
}

// =============================================================================
// ROSTER IMPORT
// =============================================================================

// ImportRoster upserts students and inserts periods atomically. With
// replace, both tables are emptied first.
func (s *Store) ImportRoster(ctx context.Context, r attendance.Roster, replace bool) (attendance.ImportStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats attendance.ImportStats
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if replace {
		for _, table := range []string{"periods", "students"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return stats, fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
	}

	for _, st := range r.Students {
		_, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO students (registration_id, full_name, section)
			VALUES (?, ?, ?)
			ON CONFLICT(registration_id) DO UPDATE SET
				full_name = excluded.full_name,
				section = excluded.section
		`), st.RegistrationID, st.FullName, st.Section)
		if err != nil {
			return stats, fmt.Errorf("failed to import student %s: %w", st.RegistrationID, err)
		}
		stats.Students++
	}

	for _, p := range r.Periods {
		res, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO periods (section, weekday, subject, start_time, end_time)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(section, weekday, subject, start_time) DO NOTHING
		`), p.Section, p.Weekday.String(), p.Subject, p.Start.HHMM(), p.End.HHMM())
		if err != nil {
			return stats, fmt.Errorf("failed to import period %s: %w", p, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			stats.Skipped++
			continue
		}
		stats.Periods++
	}

	return stats, tx.Commit()
}

// Reset empties every table: roster and run history.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"reconciliation_runs", "periods", "students"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// RUN HISTORY (attendance.RunStore)
// =============================================================================

// SaveRun records a run. Saving the same id again updates it.
func (s *Store) SaveRun(ctx context.Context, r attendance.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO reconciliation_runs (id, started_at, finished_at, status, report_date,
			absence_file, access_file, absentees, anomalies, tally_entries, warnings, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			status = excluded.status,
			report_date = excluded.report_date,
			absentees = excluded.absentees,
			anomalies = excluded.anomalies,
			tally_entries = excluded.tally_entries,
			warnings = excluded.warnings,
			error = excluded.error
	`

	var reportDate sql.NullString
	if !r.ReportDate.IsZero() {
		reportDate = nullString(r.ReportDate.Format(time.DateOnly))
	}

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		r.ID,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
		string(r.Status),
		reportDate,
		r.AbsenceFile, r.AccessFile,
		r.Absentees, r.Anomalies, r.TallyEntries, r.Warnings,
		nullString(r.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", r.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]attendance.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, started_at, finished_at, status, report_date, absence_file, access_file,
			absentees, anomalies, tally_entries, warnings, error
		FROM reconciliation_runs
		ORDER BY started_at DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []attendance.Run
	for rows.Next() {
		var r attendance.Run
		var startedAt, finishedAt, status string
		var reportDate, errText sql.NullString
		if err := rows.Scan(
			&r.ID, &startedAt, &finishedAt, &status, &reportDate, &r.AbsenceFile, &r.AccessFile,
			&r.Absentees, &r.Anomalies, &r.TallyEntries, &r.Warnings, &errText,
		); err != nil {
			return nil, err
		}
		r.Status = attendance.RunStatus(status)
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
		if reportDate.Valid {
			r.ReportDate, _ = time.Parse(time.DateOnly, reportDate.String)
		}
		r.Error = errText.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPeriod(row scanner) (attendance.Period, error) {
	var p attendance.Period
	var weekday, start, end string
	if err := row.Scan(&p.ID, &p.Section, &weekday, &p.Subject, &start, &end); err != nil {
		return p, err
	}

	var err error
	if p.Weekday, err = attendance.ParseWeekday(weekday); err != nil {
		return p, fmt.Errorf("period %d: %w", p.ID, err)
	}
	if p.Start, err = attendance.ParseClock(start); err != nil {
		return p, fmt.Errorf("period %d: start: %w", p.ID, err)
	}
	if p.End, err = attendance.ParseClock(end); err != nil {
		return p, fmt.Errorf("period %d: end: %w", p.ID, err)
	}
	return p, nil
}

func sortPeriods(ps []attendance.Period) {
	sort.Slice(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.ID < b.ID
	})
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, err
}

// rebind rewrites ? placeholders to $1, $2... for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func affectedOrNotFound(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func stripComments(stmt string) string {
	var keep []string
	for _, line := range strings.Split(stmt, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "--") {
			keep = append(keep, line)
		}
	}
	return strings.Join(keep, "\n")
}

var (
	_ attendance.RosterStore    = (*Store)(nil)
	_ attendance.RunStore       = (*Store)(nil)
	_ attendance.RosterImporter = (*Store)(nil)
)
