/*
Package attendance provides the reconciliation engine for daily attendance.

PURPOSE:
  Turns two parsed daily reports (the absence roster and the badge-access
  log) plus a roster snapshot (students and weekly periods) into:
  - an AbsenceTally: missed periods per (student, subject)
  - a list of AnomalyRecords: absent, late arrival, early departure

  The package is pure compute. PDF reads and roster queries happen at the
  loader boundary (see pipeline/) before anything here runs.

KEY CONCEPTS IN THIS FILE (types.go):
  - Student: canonical roster record (registration id, name, section)
  - AbsenceRecord / AccessEvent: raw records parsed from the PDFs
  - AnomalyRecord: one detected condition per student per day
  - DayResult: everything one reconciliation run produces

SEE ALSO:
  - clock.go: Clock (time of day), report dates, weekday table
  - schedule.go: Period and ScheduleIndex
  - identity.go: IdentityResolver
  - engine.go: the reconciliation algorithm
  - session.go: multi-day accumulator owned by the caller
*/
package attendance

import "time"

// =============================================================================
// ROSTER
// =============================================================================

// Student is a canonical roster record. Immutable once loaded.
type Student struct {
	RegistrationID string `json:"registration_id" yaml:"registration_id" validate:"required,numeric"`
	FullName       string `json:"full_name" yaml:"full_name" validate:"required"`
	Section        string `json:"section" yaml:"section" validate:"required"`
}

// Roster is the read-only snapshot loaded once per run.
type Roster struct {
	Students []Student
	Periods  []Period
}

// =============================================================================
// PARSED RECORDS
// =============================================================================

// AbsenceRecord is one absentee line from the absence-roster PDF.
type AbsenceRecord struct {
	RawID   string
	RawName string
}

// AbsenceReport is the parsed absence-roster PDF.
// Date is zero when the date anchor was not found.
type AbsenceReport struct {
	Date    time.Time
	Records []AbsenceRecord
}

// Direction of a badge event.
type Direction string

const (
	Entry Direction = "Entrada"
	Exit  Direction = "Saída"
)

// AccessEvent is one badge swipe from the access-log PDF.
type AccessEvent struct {
	RawID     string
	RawName   string
	Date      time.Time
	At        Clock
	Direction Direction
}

// AccessLog is the parsed access-log PDF.
type AccessLog struct {
	Date          time.Time
	Events        []AccessEvent
	Blocks        int // student blocks found between footers
	SkippedBlocks int // blocks without a recognizable header
}

// =============================================================================
// OUTPUT
// =============================================================================

// AnomalyKind classifies an attendance irregularity.
type AnomalyKind string

const (
	KindAbsent         AnomalyKind = "FALTOU"
	KindLate           AnomalyKind = "CHEGOU ATRASADO"
	KindEarlyDeparture AnomalyKind = "SAIU CEDO"
)

// DetailNoRecord is the detail text of an Absent anomaly.
const DetailNoRecord = "no record"

// AnomalyRecord is a detected condition for one student on one day.
type AnomalyRecord struct {
	RegistrationID string      `json:"registration_id"`
	FullName       string      `json:"full_name"`
	Section        string      `json:"section"`
	Kind           AnomalyKind `json:"kind"`
	Detail         string      `json:"detail"`
}

// DayResult is the output of one successful reconciliation run.
type DayResult struct {
	Date      time.Time
	Tally     *Tally
	Anomalies []AnomalyRecord
	Warnings  []string
}

// Label returns the session key for this day (dd-mm-yyyy).
func (r *DayResult) Label() string { return DateLabel(r.Date) }
