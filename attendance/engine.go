/*
engine.go - The reconciliation algorithm

PURPOSE:
  Folds one day's absence report and access log into an absence tally and
  a list of anomalies. Pure compute over in-memory data: the roster
  snapshot and both parsed reports are loaded before Reconcile runs.

PRECONDITIONS:
  Both reports carry a date and the dates are the same calendar day.
  Otherwise the run fails with ErrDateMissing or *DateMismatchError and
  nothing is produced.

STEP A - ABSENCE PASS:
  For each absentee resolved against the roster:
    - one Absent anomaly ("no record")
    - one tally increment per period scheduled for the section that weekday

STEP B - ATTENDANCE PASS (bracketing policy):
  Events are grouped by (raw id, raw name), groups visited in sorted order.
    first_entry = min(Entry times), last_exit = max(Exit times)
    day_start   = earliest period start, day_end = latest period end
    first_entry > day_start           -> Late
    last_exit   < day_end             -> EarlyDeparture
    period.End   < first_entry        -> tally increment
    period.Start > last_exit          -> tally increment
  Equality is on time. Sections without periods that day are skipped.
  Step B never emits Absent.

SEE ALSO:
  - identity.go: how raw records become students
  - schedule.go: PeriodsFor / DayBounds
  - session.go: where finished DayResults accumulate
*/
package attendance

import (
	"fmt"
	"sort"
	"time"
)

// LineLogger receives one human-readable warning per call.
type LineLogger func(line string)

// DiscardLines drops every line.
func DiscardLines(string) {}

// Engine reconciles one day at a time. Stateless between calls.
type Engine struct {
	Roster   *Resolver
	Schedule *ScheduleIndex
	Log      LineLogger
}

// NewEngine builds an engine over a roster snapshot.
func NewEngine(roster Roster, log LineLogger) *Engine {
	if log == nil {
		log = DiscardLines
	}
	return &Engine{
		Roster:   NewResolver(roster.Students),
		Schedule: NewScheduleIndex(roster.Periods),
		Log:      log,
	}
}

// run collects warnings for one Reconcile call.
type run struct {
	log      LineLogger
	warnings []string
}

func (r *run) warn(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	r.warnings = append(r.warnings, line)
	if r.log != nil {
		r.log(line)
	}
}

// CheckDates enforces the date preconditions shared by Reconcile and the
// pipeline.
func CheckDates(absence, access time.Time) (time.Time, error) {
	switch {
	case absence.IsZero() && access.IsZero():
		return time.Time{}, fmt.Errorf("%w: absence report and access log", ErrDateMissing)
	case absence.IsZero():
		return time.Time{}, fmt.Errorf("%w: absence report", ErrDateMissing)
	case access.IsZero():
		return time.Time{}, fmt.Errorf("%w: access log", ErrDateMissing)
	case !SameDay(absence, access):
		return time.Time{}, &DateMismatchError{AbsenceDate: absence, AccessDate: access}
	}
	y, m, d := absence.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// Reconcile runs Step A then Step B. A fatal error returns a nil result.
func (e *Engine) Reconcile(absence AbsenceReport, access AccessLog) (*DayResult, error) {
	date, err := CheckDates(absence.Date, access.Date)
	if err != nil {
		return nil, err
	}

	r := &run{log: e.Log}
	result := &DayResult{Date: date, Tally: NewTally()}
	day := WeekdayOf(date)

	e.absencePass(r, result, absence.Records, day)
	e.attendancePass(r, result, access.Events, day)

	result.Warnings = r.warnings
	return result, nil
}

// =============================================================================
// STEP A
// =============================================================================

func (e *Engine) absencePass(r *run, out *DayResult, records []AbsenceRecord, day Weekday) {
	for _, rec := range records {
		student, err := e.Roster.Resolve(rec.RawID, rec.RawName)
		if err != nil {
			r.warn("absence report: %v", err)
			continue
		}
		out.Anomalies = append(out.Anomalies, anomaly(student, KindAbsent, DetailNoRecord))
		for _, p := range e.Schedule.PeriodsFor(student.Section, day) {
			out.Tally.Add(student, p)
		}
	}
}

// =============================================================================
// STEP B
// =============================================================================

type badgeKey struct {
	ID   string
	Name string
}

type presence struct {
	firstEntry Clock
	hasEntry   bool
	lastExit   Clock
	hasExit    bool
}

func (p *presence) observe(ev AccessEvent) {
	switch ev.Direction {
	case Entry:
		if !p.hasEntry || ev.At < p.firstEntry {
			p.firstEntry, p.hasEntry = ev.At, true
		}
	case Exit:
		if !p.hasExit || ev.At > p.lastExit {
			p.lastExit, p.hasExit = ev.At, true
		}
	}
}

func (e *Engine) attendancePass(r *run, out *DayResult, events []AccessEvent, day Weekday) {
	groups := make(map[badgeKey]*presence)
	for _, ev := range events {
		if !ev.Date.IsZero() && !SameDay(ev.Date, out.Date) {
			r.warn("access log: event for %s %s dated %s ignored", ev.RawID, ev.RawName, ev.Date.Format(DateLayout))
			continue
		}
		k := badgeKey{ID: ev.RawID, Name: ev.RawName}
		g, ok := groups[k]
		if !ok {
			g = &presence{}
			groups[k] = g
		}
		g.observe(ev)
	}

	keys := make([]badgeKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ID != keys[j].ID {
			return keys[i].ID < keys[j].ID
		}
		return keys[i].Name < keys[j].Name
	})

	for _, k := range keys {
		student, err := e.Roster.Resolve(k.ID, k.Name)
		if err != nil {
			r.warn("access log: %v", err)
			continue
		}
		e.bracket(out, student, groups[k], day)
	}
}

// bracket applies the late/early rules and credits periods wholly outside
// the observed presence window.
func (e *Engine) bracket(out *DayResult, s Student, p *presence, day Weekday) {
	periods := e.Schedule.PeriodsFor(s.Section, day)
	if len(periods) == 0 {
		return
	}
	dayStart, dayEnd, _ := e.Schedule.DayBounds(s.Section, day)

	if p.hasEntry && p.firstEntry > dayStart {
		out.Anomalies = append(out.Anomalies, anomaly(s, KindLate, "Entry: "+p.firstEntry.String()))
	}
	if p.hasExit && p.lastExit < dayEnd {
		out.Anomalies = append(out.Anomalies, anomaly(s, KindEarlyDeparture, "Exit: "+p.lastExit.String()))
	}

	for _, period := range periods {
		before := p.hasEntry && period.End < p.firstEntry
		after := p.hasExit && period.Start > p.lastExit
		if before || after {
			out.Tally.Add(s, period)
		}
	}
}

func anomaly(s Student, kind AnomalyKind, detail string) AnomalyRecord {
	return AnomalyRecord{
		RegistrationID: s.RegistrationID,
		FullName:       s.FullName,
		Section:        s.Section,
		Kind:           kind,
		Detail:         detail,
	}
}
