package attendance

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ABSENCE TALLY - Missed periods per (student, subject)
// =============================================================================

// TallyKey identifies one tally row.
type TallyKey struct {
	RegistrationID string `json:"registration_id"`
	FullName       string `json:"full_name"`
	Section        string `json:"section"`
	Subject        string `json:"subject"`
}

// TallyEntry is a tally row: how many periods were missed and how many
// hours of class that represents.
type TallyEntry struct {
	TallyKey
	Count int             `json:"count"`
	Hours decimal.Decimal `json:"hours"`
}

// Tally accumulates missed periods. Not safe for concurrent writes; the
// engine builds one per run and Session merges finished ones.
type Tally struct {
	rows map[TallyKey]*TallyEntry
}

func NewTally() *Tally {
	return &Tally{rows: make(map[TallyKey]*TallyEntry)}
}

// Add credits one missed period to the student.
func (t *Tally) Add(s Student, p Period) {
	k := TallyKey{
		RegistrationID: s.RegistrationID,
		FullName:       s.FullName,
		Section:        s.Section,
		Subject:        p.Subject,
	}
	t.add(TallyEntry{TallyKey: k, Count: 1, Hours: p.Hours()})
}

func (t *Tally) add(e TallyEntry) {
	row, ok := t.rows[e.TallyKey]
	if !ok {
		row = &TallyEntry{TallyKey: e.TallyKey, Hours: decimal.Zero}
		t.rows[e.TallyKey] = row
	}
	row.Count += e.Count
	row.Hours = row.Hours.Add(e.Hours)
}

// AddEntry adds a whole row, e.g. one read back from a saved report.
func (t *Tally) AddEntry(e TallyEntry) { t.add(e) }

// Merge adds every row of o into t.
func (t *Tally) Merge(o *Tally) {
	if o == nil {
		return
	}
	for _, e := range o.rows {
		t.add(*e)
	}
}

// Count returns the missed-period count for a key, zero if absent.
func (t *Tally) Count(k TallyKey) int {
	if row, ok := t.rows[k]; ok {
		return row.Count
	}
	return 0
}

// StudentCount sums every subject row for one registration id.
func (t *Tally) StudentCount(registrationID string) int {
	n := 0
	for k, row := range t.rows {
		if k.RegistrationID == registrationID {
			n += row.Count
		}
	}
	return n
}

// Len returns the number of distinct rows.
func (t *Tally) Len() int { return len(t.rows) }

// Total returns the sum of every count.
func (t *Tally) Total() int {
	n := 0
	for _, row := range t.rows {
		n += row.Count
	}
	return n
}

// TotalHours returns the sum of every row's hours.
func (t *Tally) TotalHours() decimal.Decimal {
	sum := decimal.Zero
	for _, row := range t.rows {
		sum = sum.Add(row.Hours)
	}
	return sum
}

// Entries returns the rows sorted by section, name, then subject.
func (t *Tally) Entries() []TallyEntry {
	out := make([]TallyEntry, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, *row)
	}
	SortEntries(out)
	return out
}

// SortEntries orders rows by section, name, subject, then id.
func SortEntries(es []TallyEntry) {
	sort.Slice(es, func(i, j int) bool {
		a, b := es[i], es[j]
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		if a.FullName != b.FullName {
			return a.FullName < b.FullName
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return a.RegistrationID < b.RegistrationID
	})
}
