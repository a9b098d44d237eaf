package seed_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/seed"
)

func TestParse_Roster(t *testing.T) {
	// GIVEN: padded names and a lowercase weekday
	doc := []byte(`students:
  - registration_id: "123"
    full_name: "  JOAO PEREIRA "
    section: T1
periods:
  - section: T1
    weekday: terça-feira
    subject: MATH
    start: "07:00"
    end: "07:50:00"
`)

	// WHEN
	r, err := seed.Parse(doc)

	// THEN: fields are normalized
	require.NoError(t, err)
	require.Len(t, r.Students, 1)
	assert.Equal(t, attendance.Student{RegistrationID: "123", FullName: "JOAO PEREIRA", Section: "T1"}, r.Students[0])
	require.Len(t, r.Periods, 1)
	assert.Equal(t, attendance.Tuesday, r.Periods[0].Weekday)
	assert.Equal(t, "07:50", r.Periods[0].End.HHMM())
}

func TestParse_AcceptsJSON(t *testing.T) {
	r, err := seed.Parse([]byte(`{"students":[{"registration_id":"1","full_name":"ANA","section":"T2"}],"periods":[]}`))
	require.NoError(t, err)
	assert.Len(t, r.Students, 1)
	assert.Empty(t, r.Periods)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"duplicate id", `students:
  - {registration_id: "1", full_name: A, section: T1}
  - {registration_id: "1", full_name: B, section: T1}
`, "already exists"},
		{"non-numeric id", `students:
  - {registration_id: "1a", full_name: A, section: T1}
`, "students[0]"},
		{"missing section", `students:
  - {registration_id: "1", full_name: A}
`, "students[0]"},
		{"end before start", `periods:
  - {section: T1, weekday: SEGUNDA-FEIRA, subject: M, start: "08:00", end: "07:00"}
`, "periods[0]"},
		{"unknown weekday", `periods:
  - {section: T1, weekday: MONDAY, subject: M, start: "07:00", end: "08:00"}
`, "unknown weekday"},
		{"not yaml", "students: [", "parse roster"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := seed.Parse([]byte(tt.doc))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestEncode_ThenParse(t *testing.T) {
	in := attendance.Roster{
		Students: []attendance.Student{{RegistrationID: "7", FullName: "LIA", Section: "T3"}},
		Periods: []attendance.Period{{Section: "T3", Weekday: attendance.Friday, Subject: "ART",
			Start: attendance.MustParseClock("10:00"), End: attendance.MustParseClock("10:50")}},
	}

	data, err := seed.Encode(in)
	require.NoError(t, err)
	out, err := seed.Parse(data)

	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoad_NamesTheFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte("periods:\n  - {section: T1}\n"), 0o644))

	_, err := seed.Load(path)
	assert.ErrorContains(t, err, path)

	_, err = seed.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read roster file")
}
