package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func mathPeriod(section string, day attendance.Weekday, start, end string) attendance.Period {
	return attendance.Period{
		Section: section,
		Weekday: day,
		Subject: "MATH",
		Start:   attendance.MustParseClock(start),
		End:     attendance.MustParseClock(end),
	}
}

// =============================================================================
// STUDENTS
// =============================================================================

func TestStore_StudentCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	joao := attendance.Student{RegistrationID: "123", FullName: "JOAO PEREIRA", Section: "T1"}
	require.NoError(t, store.CreateStudent(ctx, joao))

	err := store.CreateStudent(ctx, joao)
	assert.ErrorIs(t, err, attendance.ErrDuplicateStudent, "registration id is unique")

	joao.Section = "T2"
	require.NoError(t, store.UpdateStudent(ctx, joao))

	got, err := store.GetStudent(ctx, "123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, joao, *got)

	n, err := store.CountStudents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.DeleteStudent(ctx, "123"))
	got, err = store.GetStudent(ctx, "123")
	require.NoError(t, err)
	assert.Nil(t, got, "missing rows return nil, nil")

	assert.ErrorIs(t, store.DeleteStudent(ctx, "123"), attendance.ErrStudentNotFound)
	assert.ErrorIs(t, store.UpdateStudent(ctx, joao), attendance.ErrStudentNotFound)
}

// =============================================================================
// PERIODS
// =============================================================================

func TestStore_PeriodsRoundTripWeekdayLabels(t *testing.T) {
	// GIVEN: Periods saved out of order on different weekdays
	// WHEN: Listing them back
	// THEN: Weekday labels and HH:MM times survive, order is section, weekday, start

	store := newTestStore(t)
	ctx := context.Background()

	fri := mathPeriod("T1", attendance.Friday, "07:00", "07:50")
	mon2 := mathPeriod("T1", attendance.Monday, "08:00", "08:50")
	mon1 := mathPeriod("T1", attendance.Monday, "07:00", "07:50")
	mon1.Subject = "PORT"
	for _, p := range []*attendance.Period{&fri, &mon2, &mon1} {
		require.NoError(t, store.CreatePeriod(ctx, p))
		assert.NotZero(t, p.ID)
	}

	ps, err := store.ListPeriods(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.Equal(t, []int64{mon1.ID, mon2.ID, fri.ID}, []int64{ps[0].ID, ps[1].ID, ps[2].ID})
	assert.Equal(t, attendance.Monday, ps[0].Weekday)
	assert.Equal(t, "08:50", ps[1].End.HHMM())

	got, err := store.GetPeriod(ctx, fri.ID)
	require.NoError(t, err)
	assert.Equal(t, fri, *got)

	fri.End = attendance.MustParseClock("08:40")
	require.NoError(t, store.UpdatePeriod(ctx, fri))
	got, err = store.GetPeriod(ctx, fri.ID)
	require.NoError(t, err)
	assert.Equal(t, "08:40", got.End.HHMM())

	require.NoError(t, store.DeletePeriod(ctx, fri.ID))
	assert.ErrorIs(t, store.DeletePeriod(ctx, fri.ID), attendance.ErrPeriodNotFound)

	missing, err := store.GetPeriod(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_ImportRoster_ThenLoadSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	roster := attendance.Roster{
		Students: []attendance.Student{
			{RegistrationID: "1", FullName: "ANA", Section: "T1"},
			{RegistrationID: "2", FullName: "BIA", Section: "T1"},
		},
		Periods: []attendance.Period{
			mathPeriod("T1", attendance.Monday, "07:00", "07:50"),
			mathPeriod("T1", attendance.Tuesday, "07:00", "07:50"),
		},
	}

	stats, err := store.ImportRoster(ctx, roster, false)
	require.NoError(t, err)
	assert.Equal(t, attendance.ImportStats{Students: 2, Periods: 2}, stats)

	// a second import updates students and skips existing periods
	roster.Students[0].FullName = "ANA MARIA"
	stats, err = store.ImportRoster(ctx, roster, false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Skipped)

	snap, err := store.LoadRoster(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Students, 2)
	assert.Len(t, snap.Periods, 2)
	assert.Equal(t, "ANA MARIA", snap.Students[0].FullName)

	// replace empties both tables first
	_, err = store.ImportRoster(ctx, attendance.Roster{Students: roster.Students[:1]}, true)
	require.NoError(t, err)
	n, err := store.CountPeriods(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// =============================================================================
// RUN HISTORY
// =============================================================================

func TestStore_RunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	ok := attendance.Run{
		ID: "run-1", StartedAt: base, FinishedAt: base.Add(time.Second),
		Status: attendance.RunSucceeded, ReportDate: time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
		AbsenceFile: "a.pdf", AccessFile: "b.pdf", Absentees: 3, Anomalies: 5, TallyEntries: 12, Warnings: 1,
	}
	failed := attendance.Run{
		ID: "run-2", StartedAt: base.Add(time.Minute), FinishedAt: base.Add(time.Minute),
		Status: attendance.RunFailed, AbsenceFile: "a.pdf", AccessFile: "c.pdf",
		Error: "report dates do not match",
	}
	require.NoError(t, store.SaveRun(ctx, ok))
	require.NoError(t, store.SaveRun(ctx, failed))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.True(t, runs[0].ReportDate.IsZero())
	assert.Equal(t, "report dates do not match", runs[0].Error)
	assert.Equal(t, ok, runs[1])

	runs, err = store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := sqlite.Open("mysql", "whatever")
	assert.Error(t, err)
}
