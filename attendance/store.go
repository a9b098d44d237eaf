/*
store.go - Persistence interfaces for the roster and run history

PURPOSE:
  The engine never queries storage. The pipeline loads a Roster snapshot
  through RosterStore once per run, and records the outcome through
  RunStore afterwards.

KEY INTERFACES:
  RosterStore:    students and periods, full CRUD plus a snapshot loader
  RosterImporter: bulk load (YAML seed files, API import)
  RunStore:       append-only history of reconciliation runs

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite (mattn/go-sqlite3) or PostgreSQL (pgx)
  - attendance/store/memory.go: in-memory for tests
*/
package attendance

import (
	"context"
	"time"
)

// =============================================================================
// ROSTER STORE
// =============================================================================

// RosterStore manages reference data. Get methods return nil, nil when the
// row does not exist; Update and Delete return ErrStudentNotFound or
// ErrPeriodNotFound.
type RosterStore interface {
	ListStudents(ctx context.Context) ([]Student, error)
	GetStudent(ctx context.Context, registrationID string) (*Student, error)
	CreateStudent(ctx context.Context, s Student) error
	UpdateStudent(ctx context.Context, s Student) error
	DeleteStudent(ctx context.Context, registrationID string) error
	CountStudents(ctx context.Context) (int, error)

	// Periods are listed by section, weekday, then start.
	ListPeriods(ctx context.Context) ([]Period, error)
	GetPeriod(ctx context.Context, id int64) (*Period, error)
	// CreatePeriod assigns p.ID.
	CreatePeriod(ctx context.Context, p *Period) error
	UpdatePeriod(ctx context.Context, p Period) error
	DeletePeriod(ctx context.Context, id int64) error
	CountPeriods(ctx context.Context) (int, error)

	// LoadRoster reads both tables in one consistent snapshot.
	LoadRoster(ctx context.Context) (Roster, error)
}

// ImportStats counts what a roster import changed.
type ImportStats struct {
	Students int `json:"students"`
	Periods  int `json:"periods"`
	Skipped  int `json:"skipped"` // periods already present
}

// RosterImporter bulk-loads a roster. Students are upserted by
// registration id; a period equal to a stored one (section, weekday,
// subject, start) is skipped. With replace, the roster is emptied first.
// Either everything is applied or nothing is.
type RosterImporter interface {
	ImportRoster(ctx context.Context, r Roster, replace bool) (ImportStats, error)
}

// =============================================================================
// RUN HISTORY
// =============================================================================

// RunStatus is the outcome of one reconciliation run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run records one pipeline invocation.
type Run struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Status       RunStatus `json:"status"`
	ReportDate   time.Time `json:"report_date,omitempty"`
	AbsenceFile  string    `json:"absence_file"`
	AccessFile   string    `json:"access_file"`
	Absentees    int       `json:"absentees"`
	Anomalies    int       `json:"anomalies"`
	TallyEntries int       `json:"tally_entries"`
	Warnings     int       `json:"warnings"`
	Error        string    `json:"error,omitempty"`
}

// RunStore persists run history. Runs are listed newest first.
type RunStore interface {
	SaveRun(ctx context.Context, r Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}
