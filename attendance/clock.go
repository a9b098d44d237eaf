package attendance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CLOCK - Time of day with second resolution
// =============================================================================

// Clock is a time of day, stored as seconds since midnight.
type Clock int

const (
	secondsPerMinute = 60
	secondsPerHour   = 3600
	secondsPerDay    = 24 * secondsPerHour
)

// NewClock builds a Clock from its parts.
func NewClock(hour, minute, second int) Clock {
	return Clock(hour*secondsPerHour + minute*secondsPerMinute + second)
}

// ParseClock accepts "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q: want HH:MM or HH:MM:SS", s)
	}
	limits := []int{23, 59, 59}
	var vals [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || len(p) != 2 || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		vals[i] = n
	}
	return NewClock(vals[0], vals[1], vals[2]), nil
}

// MustParseClock panics on malformed input. For tests and constants.
func MustParseClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) Hour() int   { return int(c) / secondsPerHour }
func (c Clock) Minute() int { return int(c) % secondsPerHour / secondsPerMinute }
func (c Clock) Second() int { return int(c) % secondsPerMinute }

func (c Clock) Before(o Clock) bool { return c < o }
func (c Clock) After(o Clock) bool  { return c > o }

// String formats as HH:MM:SS.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour(), c.Minute(), c.Second())
}

// HHMM formats as HH:MM, the roster storage format.
func (c Clock) HHMM() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// HoursUntil returns the span to end in hours. Zero if end is not after c.
func (c Clock) HoursUntil(end Clock) decimal.Decimal {
	if end <= c {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(end - c)).Div(decimal.NewFromInt(secondsPerHour))
}

// =============================================================================
// REPORT DATES
// =============================================================================

const (
	// DateLayout is the dd/mm/yyyy layout used by both PDFs.
	DateLayout = "02/01/2006"
	// LabelLayout is the session key and workbook sheet name layout.
	LabelLayout = "02-01-2006"
)

// ParseReportDate parses a dd/mm/yyyy date into a UTC calendar date.
func ParseReportDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid report date %q: %w", s, err)
	}
	return t, nil
}

// DateLabel returns the dd-mm-yyyy label for a report date.
func DateLabel(d time.Time) string { return d.Format(LabelLayout) }

// ParseDateLabel is the inverse of DateLabel.
func ParseDateLabel(s string) (time.Time, error) {
	return time.ParseInLocation(LabelLayout, s, time.UTC)
}

// SameDay compares calendar dates only.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// =============================================================================
// WEEKDAYS - Fixed index table, never locale-derived
// =============================================================================

// Weekday indexes the school week starting at Monday = 0.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// weekdayLabels are the values stored in the periods table.
var weekdayLabels = [...]string{
	"SEGUNDA-FEIRA",
	"TERÇA-FEIRA",
	"QUARTA-FEIRA",
	"QUINTA-FEIRA",
	"SEXTA-FEIRA",
	"SÁBADO",
	"DOMINGO",
}

var weekdayTitles = [...]string{
	"Segunda-feira",
	"Terça-feira",
	"Quarta-feira",
	"Quinta-feira",
	"Sexta-feira",
	"Sábado",
	"Domingo",
}

// WeekdayLabels lists every stored weekday label, Monday first.
func WeekdayLabels() []string {
	out := make([]string, len(weekdayLabels))
	copy(out, weekdayLabels[:])
	return out
}

// WeekdayOf maps a date to its school weekday.
func WeekdayOf(d time.Time) Weekday {
	// time.Weekday starts at Sunday = 0
	return Weekday((int(d.Weekday()) + 6) % 7)
}

// ParseWeekday accepts a stored label, case-insensitively.
func ParseWeekday(label string) (Weekday, error) {
	norm := strings.ToUpper(strings.TrimSpace(label))
	for i, l := range weekdayLabels {
		if l == norm {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", label)
}

func (w Weekday) valid() bool { return w >= Monday && w <= Sunday }

// String returns the stored label (e.g. SEGUNDA-FEIRA).
func (w Weekday) String() string {
	if !w.valid() {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return weekdayLabels[w]
}

// Title returns the display name used in report headings.
func (w Weekday) Title() string {
	if !w.valid() {
		return ""
	}
	return weekdayTitles[w]
}
