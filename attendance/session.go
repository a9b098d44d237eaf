package attendance

import (
	"sort"
	"sync"
)

// =============================================================================
// SESSION - Caller-owned multi-day accumulator
// =============================================================================

// Session maps a date label (dd-mm-yyyy) to that day's result. Reprocessing
// a date replaces the earlier result. Safe for concurrent use.
type Session struct {
	mu   sync.RWMutex
	days map[string]*DayResult
}

func NewSession() *Session {
	return &Session{days: make(map[string]*DayResult)}
}

// Put stores a day result. Returns true if it replaced an earlier one.
func (s *Session) Put(r *DayResult) bool {
	if r == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	label := r.Label()
	_, replaced := s.days[label]
	s.days[label] = r
	return replaced
}

// Get returns the result for a label.
func (s *Session) Get(label string) (*DayResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.days[label]
	return r, ok
}

// Labels returns the stored labels in chronological order.
func (s *Session) Labels() []string {
	days := s.Days()
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Label()
	}
	return out
}

// Days returns the stored results in chronological order.
func (s *Session) Days() []*DayResult {
	s.mu.RLock()
	out := make([]*DayResult, 0, len(s.days))
	for _, r := range s.days {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Summary merges every day's tally. Rows are sorted.
func (s *Session) Summary() []TallyEntry {
	total := NewTally()
	for _, d := range s.Days() {
		total.Merge(d.Tally)
	}
	return total.Entries()
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.days)
}

// Reset drops every stored day.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days = make(map[string]*DayResult)
}
