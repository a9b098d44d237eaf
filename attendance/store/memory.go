// Package store provides in-memory RosterStore and RunStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	students map[string]attendance.Student
	periods  map[int64]attendance.Period
	nextID   int64
	runs     []attendance.Run
}

func NewMemory() *Memory {
	return &Memory{
		students: make(map[string]attendance.Student),
		periods:  make(map[int64]attendance.Period),
		nextID:   1,
	}
}

// Seed loads a roster, assigning period ids.
func (m *Memory) Seed(r attendance.Roster) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range r.Students {
		m.students[s.RegistrationID] = s
	}
	for _, p := range r.Periods {
		p.ID = m.nextID
		m.nextID++
		m.periods[p.ID] = p
	}
	return m
}

// =============================================================================
// STUDENTS
// =============================================================================

func (m *Memory) ListStudents(_ context.Context) ([]attendance.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.studentsLocked(), nil
}

func (m *Memory) studentsLocked() []attendance.Student {
	out := make([]attendance.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Section != out[j].Section {
			return out[i].Section < out[j].Section
		}
		return out[i].FullName < out[j].FullName
	})
	return out
}

func (m *Memory) GetStudent(_ context.Context, id string) (*attendance.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) CreateStudent(_ context.Context, s attendance.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[s.RegistrationID]; ok {
		return attendance.ErrDuplicateStudent
	}
	m.students[s.RegistrationID] = s
	return nil
}

func (m *Memory) UpdateStudent(_ context.Context, s attendance.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[s.RegistrationID]; !ok {
		return attendance.ErrStudentNotFound
	}
	m.students[s.RegistrationID] = s
	return nil
}

func (m *Memory) DeleteStudent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[id]; !ok {
		return attendance.ErrStudentNotFound
	}
	delete(m.students, id)
	return nil
}

func (m *Memory) CountStudents(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.students), nil
}

// =============================================================================
// PERIODS
// =============================================================================

func (m *Memory) ListPeriods(_ context.Context) ([]attendance.Period, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.periodsLocked(), nil
}

func (m *Memory) periodsLocked() []attendance.Period {
	out := make([]attendance.Period, 0, len(m.periods))
	for _, p := range m.periods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
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
	return out
}

func (m *Memory) GetPeriod(_ context.Context, id int64) (*attendance.Period, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.periods[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) CreatePeriod(_ context.Context, p *attendance.Period) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextID
	m.nextID++
	m.periods[p.ID] = *p
	return nil
}

func (m *Memory) UpdatePeriod(_ context.Context, p attendance.Period) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.periods[p.ID]; !ok {
		return attendance.ErrPeriodNotFound
	}
	m.periods[p.ID] = p
	return nil
}

func (m *Memory) DeletePeriod(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.periods[id]; !ok {
		return attendance.ErrPeriodNotFound
	}
	delete(m.periods, id)
	return nil
}

func (m *Memory) CountPeriods(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.periods), nil
}

// LoadRoster returns a consistent snapshot under one read lock.
func (m *Memory) LoadRoster(_ context.Context) (attendance.Roster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return attendance.Roster{Students: m.studentsLocked(), Periods: m.periodsLocked()}, nil
}

// ImportRoster applies the same rules as the SQL store.
func (m *Memory) ImportRoster(_ context.Context, r attendance.Roster, replace bool) (attendance.ImportStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats attendance.ImportStats
	if replace {
		m.students = make(map[string]attendance.Student)
		m.periods = make(map[int64]attendance.Period)
	}
	for _, s := range r.Students {
		m.students[s.RegistrationID] = s
		stats.Students++
	}
	for _, p := range r.Periods {
		if m.hasSlotLocked(p) {
			stats.Skipped++
			continue
		}
		p.ID = m.nextID
		m.nextID++
		m.periods[p.ID] = p
		stats.Periods++
	}
	return stats, nil
}

func (m *Memory) hasSlotLocked(p attendance.Period) bool {
	for _, q := range m.periods {
		if q.Section == p.Section && q.Weekday == p.Weekday && q.Subject == p.Subject && q.Start == p.Start {
			return true
		}
	}
	return false
}

// =============================================================================
// RUNS
// =============================================================================

func (m *Memory) SaveRun(_ context.Context, r attendance.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, r)
	return nil
}

func (m *Memory) ListRuns(_ context.Context, limit int) ([]attendance.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]attendance.Run, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.runs[i])
	}
	return out, nil
}

var (
	_ attendance.RosterStore    = (*Memory)(nil)
	_ attendance.RunStore       = (*Memory)(nil)
	_ attendance.RosterImporter = (*Memory)(nil)
)
