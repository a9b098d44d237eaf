/*
pipeline.go - The loader boundary around the reconciliation engine

PURPOSE:
  Everything that blocks happens here, before the engine runs:
    1. load the roster snapshot (students + periods) from the store
    2. extract text from both PDFs
    3. check report keywords (swapped inputs become warnings)
    4. parse both reports
    5. check the dates and reconcile
    6. store the DayResult in the session and record the run

  A fatal error at any step leaves the session untouched. The run is still
  recorded, with status "failed" and the error text.

ENTRY POINTS:
  RunFiles  - CLI: two paths on disk
  RunBytes  - API: two uploaded files
  RunText   - already-extracted text (tests, re-runs)

SEE ALSO:
  - attendance/engine.go: the algorithm itself
  - report/: workbooks written from a DayResult
*/
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/extract"
	"github.com/warp/attendance-engine/parser"
)

// Pipeline wires storage, extraction and the engine together.
type Pipeline struct {
	Roster attendance.RosterStore
	// Runs records run history when set.
	Runs attendance.RunStore
	// Session receives every successful DayResult when set.
	Session *attendance.Session
	Log     attendance.LineLogger

	// Now and NewID are replaced in tests.
	Now   func() time.Time
	NewID func() string
}

// New creates a pipeline over a store that also keeps run history.
func New(store interface {
	attendance.RosterStore
	attendance.RunStore
}, session *attendance.Session, log attendance.LineLogger) *Pipeline {
	return &Pipeline{Roster: store, Runs: store, Session: session, Log: log}
}

// Texts is one day's pair of extracted reports.
type Texts struct {
	AbsenceName string
	Absence     string
	AccessName  string
	Access      string
}

// Outcome is what one run produced. Result is nil when the run failed.
type Outcome struct {
	Run    attendance.Run
	Result *attendance.DayResult
	// Replaced is true when the session already held this date.
	Replaced bool
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// RunFiles reconciles two PDFs on disk.
func (p *Pipeline) RunFiles(ctx context.Context, absencePath, accessPath string) (*Outcome, error) {
	rec := p.begin(absencePath, accessPath)

	absence, err := extract.Extract(ctx, absencePath)
	if err != nil {
		return p.fail(ctx, rec, fmt.Errorf("absence report: %w", err))
	}
	access, err := extract.Extract(ctx, accessPath)
	if err != nil {
		return p.fail(ctx, rec, fmt.Errorf("access log: %w", err))
	}
	return p.reconcile(ctx, rec, absence, access)
}

// RunBytes reconciles two uploaded PDFs. The names are only recorded.
func (p *Pipeline) RunBytes(ctx context.Context, absenceName string, absence []byte, accessName string, access []byte) (*Outcome, error) {
	rec := p.begin(absenceName, accessName)

	absenceText, err := extract.ExtractBytes(ctx, absence)
	if err != nil {
		return p.fail(ctx, rec, fmt.Errorf("absence report: %w", err))
	}
	accessText, err := extract.ExtractBytes(ctx, access)
	if err != nil {
		return p.fail(ctx, rec, fmt.Errorf("access log: %w", err))
	}
	return p.reconcile(ctx, rec, absenceText, accessText)
}

// RunText reconciles reports whose text was already extracted.
func (p *Pipeline) RunText(ctx context.Context, in Texts) (*Outcome, error) {
	return p.reconcile(ctx, p.begin(in.AbsenceName, in.AccessName), in.Absence, in.Access)
}

// =============================================================================
// STEPS
// =============================================================================

func (p *Pipeline) reconcile(ctx context.Context, rec attendance.Run, absenceText, accessText string) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return p.fail(ctx, rec, err)
	}

	roster, err := p.Roster.LoadRoster(ctx)
	if err != nil {
		return p.fail(ctx, rec, fmt.Errorf("load roster: %w", err))
	}

	var warnings []string
	if !parser.LooksLikeAbsenceReport(absenceText) {
		warnings = append(warnings, fmt.Sprintf("absence report %s has no %q column; the inputs may be swapped", rec.AbsenceFile, parser.AbsenceKeyword))
	}
	if !parser.LooksLikeAccessLog(accessText) {
		warnings = append(warnings, fmt.Sprintf("access log %s has no %q header; the inputs may be swapped", rec.AccessFile, parser.AccessKeyword))
	}

	absence, w, err := parser.ParseAbsenceReport(absenceText)
	warnings = append(warnings, w...)
	if err != nil {
		p.logAll(warnings)
		return p.fail(ctx, rec, err)
	}
	access, w, err := parser.ParseAccessLog(accessText)
	warnings = append(warnings, w...)
	if err != nil {
		p.logAll(warnings)
		return p.fail(ctx, rec, err)
	}
	p.logAll(warnings)

	result, err := attendance.NewEngine(roster, p.log()).Reconcile(absence, access)
	if err != nil {
		return p.fail(ctx, rec, err)
	}
	result.Warnings = append(warnings, result.Warnings...)

	out := &Outcome{Result: result}
	if p.Session != nil {
		out.Replaced = p.Session.Put(result)
	}

	rec.Status = attendance.RunSucceeded
	rec.ReportDate = result.Date
	rec.Absentees = len(absence.Records)
	rec.Anomalies = len(result.Anomalies)
	rec.TallyEntries = result.Tally.Len()
	rec.Warnings = len(result.Warnings)
	out.Run = p.finish(ctx, rec)
	return out, nil
}

func (p *Pipeline) begin(absenceFile, accessFile string) attendance.Run {
	return attendance.Run{
		ID:          p.newID(),
		StartedAt:   p.now(),
		AbsenceFile: absenceFile,
		AccessFile:  accessFile,
	}
}

func (p *Pipeline) fail(ctx context.Context, rec attendance.Run, err error) (*Outcome, error) {
	rec.Status = attendance.RunFailed
	rec.Error = err.Error()
	return &Outcome{Run: p.finish(ctx, rec)}, err
}

// finish stamps and records the run. History is best effort: a failed
// write is logged and never changes the run's own outcome.
func (p *Pipeline) finish(ctx context.Context, rec attendance.Run) attendance.Run {
	rec.FinishedAt = p.now()
	if p.Runs == nil {
		return rec
	}
	// a cancelled request still gets its run recorded
	if err := p.Runs.SaveRun(context.WithoutCancel(ctx), rec); err != nil {
		p.log()(fmt.Sprintf("run history: %v", err))
	}
	return rec
}

func (p *Pipeline) logAll(lines []string) {
	log := p.log()
	for _, l := range lines {
		log(l)
	}
}

func (p *Pipeline) log() attendance.LineLogger {
	if p.Log == nil {
		return attendance.DiscardLines
	}
	return p.Log
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

func (p *Pipeline) newID() string {
	if p.NewID != nil {
		return p.NewID()
	}
	return uuid.NewString()
}
