/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON shapes of the HTTP API. Clock values travel as "HH:MM" strings and
  weekdays as their fixed Portuguese labels (SEGUNDA-FEIRA ...), the same
  text the periods table stores.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags; handlers call
  h.validate.Struct before touching the store.

SEE ALSO:
  - handlers.go: Uses these types
  - attendance/types.go: domain types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/report"
	"github.com/warp/attendance-engine/seed"
)

// =============================================================================
// ROSTER
// =============================================================================

// StudentRequest creates or updates a student. On update the id comes from
// the URL and RegistrationID is ignored.
type StudentRequest struct {
	RegistrationID string `json:"registration_id" validate:"omitempty,numeric,max=20"`
	FullName       string `json:"full_name" validate:"required,max=200"`
	Section        string `json:"section" validate:"required,max=50"`
}

// PeriodDTO is a scheduled class period.
type PeriodDTO struct {
	ID      int64  `json:"id"`
	Section string `json:"section"`
	Weekday string `json:"weekday"`
	Subject string `json:"subject"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// PeriodRequest creates or updates a period.
type PeriodRequest struct {
	Section string `json:"section" validate:"required,max=50"`
	Weekday string `json:"weekday" validate:"required"`
	Subject string `json:"subject" validate:"required,max=100"`
	Start   string `json:"start" validate:"required"`
	End     string `json:"end" validate:"required"`
}

func toPeriodDTO(p attendance.Period) PeriodDTO {
	return PeriodDTO{
		ID:      p.ID,
		Section: p.Section,
		Weekday: p.Weekday.String(),
		Subject: p.Subject,
		Start:   p.Start.HHMM(),
		End:     p.End.HHMM(),
	}
}

// toPeriod converts a validated request into a domain period.
func (r PeriodRequest) toPeriod(id int64) (attendance.Period, error) {
	return seed.PeriodInput(r).Period(id)
}

// HealthDTO reports store reachability and roster size.
type HealthDTO struct {
	Status   string `json:"status"`
	Driver   string `json:"driver,omitempty"`
	Students int    `json:"students"`
	Periods  int    `json:"periods"`
	Warning  string `json:"warning,omitempty"`
}

// =============================================================================
// RESULTS
// =============================================================================

// DayResultDTO is one reconciled day.
type DayResultDTO struct {
	Date       string                     `json:"date"`
	Weekday    string                     `json:"weekday"`
	Tally      []attendance.TallyEntry    `json:"tally"`
	TotalHours decimal.Decimal            `json:"total_hours"`
	Anomalies  []attendance.AnomalyRecord `json:"anomalies"`
	Warnings   []string                   `json:"warnings"`
}

func toDayResultDTO(r *attendance.DayResult) DayResultDTO {
	dto := DayResultDTO{
		Date:       r.Label(),
		Weekday:    attendance.WeekdayOf(r.Date).Title(),
		Tally:      r.Tally.Entries(),
		TotalHours: r.Tally.TotalHours(),
		Anomalies:  r.Anomalies,
		Warnings:   r.Warnings,
	}
	if dto.Anomalies == nil {
		dto.Anomalies = []attendance.AnomalyRecord{}
	}
	if dto.Warnings == nil {
		dto.Warnings = []string{}
	}
	return dto
}

// SessionDTO lists the days accumulated so far.
type SessionDTO struct {
	Days []string `json:"days"`
}

// SummaryDTO is the session-wide tally.
type SummaryDTO struct {
	Days    []string                `json:"days"`
	Entries []attendance.TallyEntry `json:"entries"`
}

// =============================================================================
// JOBS
// =============================================================================

// JobDTO is the pollable state of a reconciliation job.
type JobDTO struct {
	ID          string        `json:"id"`
	Status      JobStatus     `json:"status"`
	AbsenceFile string        `json:"absence_file"`
	AccessFile  string        `json:"access_file"`
	SubmittedAt string        `json:"submitted_at"`
	FinishedAt  string        `json:"finished_at,omitempty"`
	RunID       string        `json:"run_id,omitempty"`
	Date        string        `json:"date,omitempty"`
	Reports     *report.Paths `json:"reports,omitempty"`
	Warnings    []string      `json:"warnings,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}
