package attendance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
)

func TestTally_EntriesSorted(t *testing.T) {
	tally := attendance.NewTally()
	zeca := attendance.Student{RegistrationID: "9", FullName: "ZECA", Section: "T1"}
	bia := attendance.Student{RegistrationID: "8", FullName: "BIA", Section: "T2"}

	tally.Add(bia, period("T2", attendance.Monday, "ART", "07:00", "08:00"))
	tally.Add(zeca, period("T1", attendance.Monday, "MATH", "07:00", "08:00"))
	tally.Add(zeca, period("T1", attendance.Monday, "ART", "08:00", "08:30"))
	tally.Add(zeca, period("T1", attendance.Monday, "ART", "10:00", "10:30"))

	es := tally.Entries()
	require.Len(t, es, 3)
	assert.Equal(t, []string{"T1/ART", "T1/MATH", "T2/ART"}, []string{
		es[0].Section + "/" + es[0].Subject,
		es[1].Section + "/" + es[1].Subject,
		es[2].Section + "/" + es[2].Subject,
	})
	assert.Equal(t, 2, es[0].Count)
	assert.Equal(t, "1", es[0].Hours.String(), "two half-hour periods")
	assert.Equal(t, 4, tally.Total())
}

func TestTally_Merge(t *testing.T) {
	a, b := attendance.NewTally(), attendance.NewTally()
	p := period("T1", attendance.Monday, "MATH", "07:00", "07:30")
	a.Add(joao, p)
	b.Add(joao, p)
	b.Add(joao, period("T1", attendance.Monday, "PORT", "08:00", "09:00"))

	a.Merge(b)
	a.Merge(nil)

	assert.Equal(t, 2, a.Count(key(joao, "MATH")))
	assert.Equal(t, 1, a.Count(key(joao, "PORT")))
	assert.Equal(t, "2", a.TotalHours().String())
	assert.Equal(t, 1, b.Count(key(joao, "MATH")), "merge leaves the source untouched")
}
