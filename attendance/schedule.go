package attendance

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PERIOD - One scheduled subject slot
// =============================================================================

// Period is one subject slot for a section on a weekday.
// ID is the roster store key; zero for periods not yet stored.
type Period struct {
	ID      int64
	Section string
	Weekday Weekday
	Subject string
	Start   Clock
	End     Clock
}

// Hours returns the period length in hours.
func (p Period) Hours() decimal.Decimal { return p.Start.HoursUntil(p.End) }

// Validate checks that the period is well formed.
func (p Period) Validate() error {
	switch {
	case p.Section == "":
		return fmt.Errorf("period: section is required")
	case p.Subject == "":
		return fmt.Errorf("period: subject is required")
	case !p.Weekday.valid():
		return fmt.Errorf("period: invalid weekday %d", int(p.Weekday))
	case !p.Start.Before(p.End):
		return fmt.Errorf("period %s %s: end %s not after start %s",
			p.Section, p.Subject, p.End.HHMM(), p.Start.HHMM())
	}
	return nil
}

func (p Period) String() string {
	return fmt.Sprintf("%s %s %s-%s %s", p.Section, p.Weekday, p.Start.HHMM(), p.End.HHMM(), p.Subject)
}

// =============================================================================
// SCHEDULE INDEX - (section, weekday) -> periods ordered by start
// =============================================================================

type slotKey struct {
	Section string
	Weekday Weekday
}

// ScheduleIndex is an in-memory view of the weekly timetable.
// Built once per run; read-only afterwards.
type ScheduleIndex struct {
	slots map[slotKey][]Period
}

// NewScheduleIndex groups periods by (section, weekday), sorted by start.
// Overlapping periods are kept as given.
func NewScheduleIndex(periods []Period) *ScheduleIndex {
	idx := &ScheduleIndex{slots: make(map[slotKey][]Period)}
	for _, p := range periods {
		k := slotKey{Section: p.Section, Weekday: p.Weekday}
		idx.slots[k] = append(idx.slots[k], p)
	}
	for _, ps := range idx.slots {
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].Start < ps[j].Start })
	}
	return idx
}

// PeriodsFor returns a copy of the day's periods, or an empty slice.
func (s *ScheduleIndex) PeriodsFor(section string, day Weekday) []Period {
	ps := s.slots[slotKey{Section: section, Weekday: day}]
	out := make([]Period, len(ps))
	copy(out, ps)
	return out
}

// DayBounds returns the earliest start and latest end for the day.
// ok is false when the section has no periods that weekday.
func (s *ScheduleIndex) DayBounds(section string, day Weekday) (start, end Clock, ok bool) {
	ps := s.slots[slotKey{Section: section, Weekday: day}]
	if len(ps) == 0 {
		return 0, 0, false
	}
	start, end = ps[0].Start, ps[0].End
	for _, p := range ps[1:] {
		if p.End > end {
			end = p.End
		}
	}
	return start, end, true
}

// Sections returns every section with at least one period, sorted.
func (s *ScheduleIndex) Sections() []string {
	seen := make(map[string]bool)
	var out []string
	for k := range s.slots {
		if !seen[k.Section] {
			seen[k.Section] = true
			out = append(out, k.Section)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of indexed periods.
func (s *ScheduleIndex) Len() int {
	n := 0
	for _, ps := range s.slots {
		n += len(ps)
	}
	return n
}
