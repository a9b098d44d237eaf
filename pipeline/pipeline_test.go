package pipeline_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
	"github.com/warp/attendance-engine/pipeline"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

var (
	march10 = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	noon    = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
)

func roster() attendance.Roster {
	clk := attendance.MustParseClock
	return attendance.Roster{
		Students: []attendance.Student{
			{RegistrationID: "123", FullName: "JOAO PEREIRA", Section: "T1"},
			{RegistrationID: "456", FullName: "ANA SILVA SANTOS", Section: "T1"},
		},
		Periods: []attendance.Period{
			{Section: "T1", Weekday: attendance.Monday, Subject: "MATH", Start: clk("07:00"), End: clk("07:50")},
			{Section: "T1", Weekday: attendance.Monday, Subject: "PORT", Start: clk("07:50"), End: clk("08:40")},
		},
	}
}

func absenceText(date string) string {
	return fmt.Sprintf("Período: de %s a %s\nMatrícula Nome Perfil\n456 ANA SILVA SANTOS ALUNO\n", date, date)
}

func accessText(date string) string {
	return fmt.Sprintf(`Período: de %[1]s até %[1]s
Crachá: 123 Nome: JOAO PEREIRA
%[1]s 07:10:00 Entrada
%[1]s 08:40:00 Saída
Total de Acessos do Pedestre: 2
`, date)
}

type harness struct {
	store   *store.Memory
	session *attendance.Session
	lines   []string
	p       *pipeline.Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: store.NewMemory().Seed(roster()), session: attendance.NewSession()}
	h.p = pipeline.New(h.store, h.session, func(line string) { h.lines = append(h.lines, line) })
	h.p.Now = func() time.Time { return noon }
	n := 0
	h.p.NewID = func() string { n++; return fmt.Sprintf("run-%d", n) }
	return h
}

func (h *harness) runs(t *testing.T) []attendance.Run {
	t.Helper()
	runs, err := h.store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	return runs
}

// =============================================================================
// SUCCESS
// =============================================================================

func TestRunText_ReconcilesAndRecords(t *testing.T) {
	// GIVEN: ANA on the absence roster and JOAO badging in at 07:10
	// WHEN: Running the pipeline on both texts
	// THEN: ANA is absent for both periods, JOAO is late, the session and run history are updated

	h := newHarness(t)

	out, err := h.p.RunText(context.Background(), pipeline.Texts{
		AbsenceName: "ausentes.pdf", Absence: absenceText("10/03/2025"),
		AccessName: "acessos.pdf", Access: accessText("10/03/2025"),
	})
	require.NoError(t, err)
	require.NotNil(t, out.Result)

	assert.Equal(t, march10, out.Result.Date)
	require.Len(t, out.Result.Anomalies, 2)
	assert.Equal(t, attendance.KindAbsent, out.Result.Anomalies[0].Kind)
	assert.Equal(t, "456", out.Result.Anomalies[0].RegistrationID)
	assert.Equal(t, attendance.KindLate, out.Result.Anomalies[1].Kind)
	assert.Equal(t, 2, out.Result.Tally.StudentCount("456"))
	assert.Zero(t, out.Result.Tally.StudentCount("123"))
	assert.False(t, out.Replaced)

	_, ok := h.session.Get("10-03-2025")
	assert.True(t, ok)

	assert.Equal(t, attendance.Run{
		ID: "run-1", StartedAt: noon, FinishedAt: noon,
		Status: attendance.RunSucceeded, ReportDate: march10,
		AbsenceFile: "ausentes.pdf", AccessFile: "acessos.pdf",
		Absentees: 1, Anomalies: 2, TallyEntries: 2,
	}, out.Run)
	assert.Equal(t, []attendance.Run{out.Run}, h.runs(t))
	assert.Empty(t, h.lines)
}

func TestRunText_SameDayTwice_ReplacesSessionEntry(t *testing.T) {
	h := newHarness(t)
	in := pipeline.Texts{Absence: absenceText("10/03/2025"), Access: accessText("10/03/2025")}

	first, err := h.p.RunText(context.Background(), in)
	require.NoError(t, err)
	second, err := h.p.RunText(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, second.Replaced)
	assert.Equal(t, 1, h.session.Len())
	assert.Equal(t, first.Result.Tally.Entries(), second.Result.Tally.Entries(), "runs are idempotent")
	assert.Len(t, h.runs(t), 2)
}

func TestRunText_SwappedInputs_WarnThenFail(t *testing.T) {
	// GIVEN: The access log passed as the absence report and vice versa
	// WHEN: Running
	// THEN: Both keyword warnings are logged and parsing the access slot fails

	h := newHarness(t)

	out, err := h.p.RunText(context.Background(), pipeline.Texts{
		Absence: accessText("10/03/2025"),
		Access:  absenceText("10/03/2025"),
	})
	require.ErrorIs(t, err, attendance.ErrNoAccessBlocks)
	assert.Nil(t, out.Result)

	require.Len(t, h.lines, 2)
	assert.Contains(t, h.lines[0], "Matrícula")
	assert.Contains(t, h.lines[1], "Crachá:")
	assert.Equal(t, attendance.RunFailed, h.runs(t)[0].Status)
}

// =============================================================================
// FATAL ERRORS
// =============================================================================

func TestRunText_DateMismatch_NoOutput(t *testing.T) {
	h := newHarness(t)

	out, err := h.p.RunText(context.Background(), pipeline.Texts{
		Absence: absenceText("10/03/2025"),
		Access:  accessText("11/03/2025"),
	})

	var mismatch *attendance.DateMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.True(t, attendance.IsFatal(err))
	assert.Nil(t, out.Result)
	assert.Zero(t, h.session.Len(), "failed runs never reach the session")

	runs := h.runs(t)
	require.Len(t, runs, 1)
	assert.Equal(t, attendance.RunFailed, runs[0].Status)
	assert.Equal(t, err.Error(), runs[0].Error)
	assert.True(t, runs[0].ReportDate.IsZero())
}

func TestRunText_MissingDate_Fails(t *testing.T) {
	h := newHarness(t)

	_, err := h.p.RunText(context.Background(), pipeline.Texts{
		Absence: "Matrícula\n456 ANA SILVA SANTOS ALUNO",
		Access:  accessText("10/03/2025"),
	})

	assert.ErrorIs(t, err, attendance.ErrDateMissing)
	require.NotEmpty(t, h.lines)
	assert.Contains(t, h.lines[0], "date anchor")
}

func TestRunFiles_MissingFile(t *testing.T) {
	h := newHarness(t)
	missing := filepath.Join(t.TempDir(), "nope.pdf")

	out, err := h.p.RunFiles(context.Background(), missing, missing)

	assert.ErrorIs(t, err, attendance.ErrFileNotFound)
	assert.Equal(t, missing, out.Run.AbsenceFile)
	assert.Equal(t, attendance.RunFailed, h.runs(t)[0].Status)
}

func TestRunText_CancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.p.RunText(ctx, pipeline.Texts{Absence: absenceText("10/03/2025"), Access: accessText("10/03/2025")})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, h.runs(t), 1, "cancelled runs are still recorded")
}
