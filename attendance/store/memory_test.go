package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
)

func TestMemory_RosterCRUD(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	s := attendance.Student{RegistrationID: "1", FullName: "ANA", Section: "T1"}
	require.NoError(t, m.CreateStudent(ctx, s))
	assert.ErrorIs(t, m.CreateStudent(ctx, s), attendance.ErrDuplicateStudent)

	s.Section = "T2"
	require.NoError(t, m.UpdateStudent(ctx, s))
	got, err := m.GetStudent(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "T2", got.Section)

	missing, err := m.GetStudent(ctx, "2")
	require.NoError(t, err)
	assert.Nil(t, missing)

	p := attendance.Period{Section: "T2", Weekday: attendance.Monday, Subject: "MATH",
		Start: attendance.MustParseClock("07:00"), End: attendance.MustParseClock("07:50")}
	require.NoError(t, m.CreatePeriod(ctx, &p))
	assert.NotZero(t, p.ID)

	roster, err := m.LoadRoster(ctx)
	require.NoError(t, err)
	assert.Len(t, roster.Students, 1)
	assert.Len(t, roster.Periods, 1)

	require.NoError(t, m.DeletePeriod(ctx, p.ID))
	assert.ErrorIs(t, m.DeletePeriod(ctx, p.ID), attendance.ErrPeriodNotFound)
	require.NoError(t, m.DeleteStudent(ctx, "1"))
	assert.ErrorIs(t, m.UpdateStudent(ctx, s), attendance.ErrStudentNotFound)
}

func TestMemory_RunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.SaveRun(ctx, attendance.Run{ID: id, Status: attendance.RunSucceeded}))
	}

	runs, err := m.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
}

func TestMemory_ImportRoster_SkipsKnownSlots(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	roster := attendance.Roster{
		Students: []attendance.Student{{RegistrationID: "1", FullName: "ANA", Section: "T1"}},
		Periods: []attendance.Period{{Section: "T1", Weekday: attendance.Monday, Subject: "MATH",
			Start: attendance.MustParseClock("07:00"), End: attendance.MustParseClock("07:50")}},
	}

	stats, err := m.ImportRoster(ctx, roster, false)
	require.NoError(t, err)
	assert.Equal(t, attendance.ImportStats{Students: 1, Periods: 1}, stats)

	stats, err = m.ImportRoster(ctx, roster, false)
	require.NoError(t, err)
	assert.Equal(t, attendance.ImportStats{Students: 1, Skipped: 1}, stats)

	stats, err = m.ImportRoster(ctx, attendance.Roster{}, true)
	require.NoError(t, err)
	assert.Zero(t, stats)
	n, _ := m.CountPeriods(ctx)
	assert.Zero(t, n)
}
