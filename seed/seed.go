// Package seed reads roster seed files: the students and weekly periods
// of a school year, written as YAML (or JSON, which YAML accepts).
//
//	students:
//	  - registration_id: "20231234"
//	    full_name: ANA CLARA SOUZA
//	    section: 1A
//	periods:
//	  - section: 1A
//	    weekday: SEGUNDA-FEIRA
//	    subject: MATEMÁTICA
//	    start: "07:00"
//	    end: "07:50"
package seed

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"

	"github.com/warp/attendance-engine/attendance"
)

// PeriodInput is the text form of a period, as typed or imported.
type PeriodInput struct {
	Section string `yaml:"section" json:"section"`
	Weekday string `yaml:"weekday" json:"weekday"`
	Subject string `yaml:"subject" json:"subject"`
	Start   string `yaml:"start" json:"start"`
	End     string `yaml:"end" json:"end"`
}

// InputOf is the inverse of Period.
func InputOf(p attendance.Period) PeriodInput {
	return PeriodInput{
		Section: p.Section,
		Weekday: p.Weekday.String(),
		Subject: p.Subject,
		Start:   p.Start.HHMM(),
		End:     p.End.HHMM(),
	}
}

// Period parses and validates the input. Weekday labels are matched
// case-insensitively; times are HH:MM or HH:MM:SS.
func (s PeriodInput) Period(id int64) (attendance.Period, error) {
	day, err := attendance.ParseWeekday(s.Weekday)
	if err != nil {
		return attendance.Period{}, err
	}
	start, err := attendance.ParseClock(s.Start)
	if err != nil {
		return attendance.Period{}, fmt.Errorf("start: %w", err)
	}
	end, err := attendance.ParseClock(s.End)
	if err != nil {
		return attendance.Period{}, fmt.Errorf("end: %w", err)
	}
	p := attendance.Period{
		ID:      id,
		Section: strings.TrimSpace(s.Section),
		Weekday: day,
		Subject: strings.TrimSpace(s.Subject),
		Start:   start,
		End:     end,
	}
	return p, p.Validate()
}

// File is the document layout.
type File struct {
	Students []attendance.Student `yaml:"students" json:"students"`
	Periods  []PeriodInput         `yaml:"periods" json:"periods"`
}

var validate = validator.New()

// TrimStudent removes surrounding blanks from every field.
func TrimStudent(s attendance.Student) attendance.Student {
	s.RegistrationID = strings.TrimSpace(s.RegistrationID)
	s.FullName = strings.TrimSpace(s.FullName)
	s.Section = strings.TrimSpace(s.Section)
	return s
}

// ValidateStudent checks the struct tags on attendance.Student.
func ValidateStudent(s attendance.Student) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid student %q: %w", s.RegistrationID, err)
	}
	return nil
}

// Parse decodes and validates a seed document. Duplicate registration ids
// are rejected; the first bad entry stops the parse.
func Parse(data []byte) (attendance.Roster, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return attendance.Roster{}, fmt.Errorf("parse roster: %w", err)
	}

	var roster attendance.Roster
	seen := make(map[string]bool, len(f.Students))
	for i, s := range f.Students {
		s = TrimStudent(s)
		if err := ValidateStudent(s); err != nil {
			return attendance.Roster{}, fmt.Errorf("students[%d]: %w", i, err)
		}
		if seen[s.RegistrationID] {
			return attendance.Roster{}, fmt.Errorf("students[%d]: %w: %s", i, attendance.ErrDuplicateStudent, s.RegistrationID)
		}
		seen[s.RegistrationID] = true
		roster.Students = append(roster.Students, s)
	}
	for i, in := range f.Periods {
		p, err := in.Period(0)
		if err != nil {
			return attendance.Roster{}, fmt.Errorf("periods[%d]: %w", i, err)
		}
		roster.Periods = append(roster.Periods, p)
	}
	return roster, nil
}

// Load reads and parses a seed file.
func Load(path string) (attendance.Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return attendance.Roster{}, fmt.Errorf("read roster file: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return attendance.Roster{}, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Encode renders a roster in the seed layout, e.g. to export the current
// database.
func Encode(r attendance.Roster) ([]byte, error) {
	f := File{Students: r.Students, Periods: make([]PeriodInput, len(r.Periods))}
	for i, p := range r.Periods {
		f.Periods[i] = InputOf(p)
	}
	return yaml.Marshal(f)
}
