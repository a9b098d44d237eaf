package report_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/report"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

var (
	march10 = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	march11 = time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC)

	joao = attendance.Student{RegistrationID: "123", FullName: "JOAO PEREIRA", Section: "T1"}
	ana  = attendance.Student{RegistrationID: "456", FullName: "ANA SILVA SANTOS", Section: "T2"}
)

func period(subject, start, end string) attendance.Period {
	return attendance.Period{
		Subject: subject,
		Start:   attendance.MustParseClock(start),
		End:     attendance.MustParseClock(end),
	}
}

func day(date time.Time, anomalies ...attendance.AnomalyRecord) *attendance.DayResult {
	return &attendance.DayResult{Date: date, Tally: attendance.NewTally(), Anomalies: anomalies}
}

func anomaly(s attendance.Student, kind attendance.AnomalyKind, detail string) attendance.AnomalyRecord {
	return attendance.AnomalyRecord{
		RegistrationID: s.RegistrationID, FullName: s.FullName, Section: s.Section,
		Kind: kind, Detail: detail,
	}
}

func newWriter(t *testing.T) (*report.Writer, *[]string) {
	var lines []string
	w := report.NewWriter(filepath.Join(t.TempDir(), "relatorios"), func(l string) { lines = append(lines, l) })
	return w, &lines
}

// =============================================================================
// DETAILED WORKBOOK
// =============================================================================

func TestWriteDetailed_MergesDaysAndSummarizes(t *testing.T) {
	// GIVEN: Monday written first, Tuesday written in a later run
	// WHEN: Reading the workbook back
	// THEN: Both day sheets survive and the summary totals them per subject

	w, _ := newWriter(t)

	mon := day(march10)
	mon.Tally.Add(joao, period("MATH", "07:00", "07:50"))
	mon.Tally.Add(joao, period("MATH", "07:50", "08:40"))
	path, err := w.WriteDetailed(mon)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.Dir, "relatorio_faltas_detalhado.xlsx"), path)

	tue := day(march11)
	tue.Tally.Add(joao, period("MATH", "07:00", "08:00"))
	tue.Tally.Add(ana, period("PORT", "07:00", "07:30"))
	_, err = w.WriteDetailed(tue)
	require.NoError(t, err)

	book, err := report.ReadDetailed(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"10-03-2025", "11-03-2025"}, book.Labels())
	assert.Zero(t, book.Skipped)

	require.Len(t, book.Days["10-03-2025"], 1)
	assert.Equal(t, 2, book.Days["10-03-2025"][0].Count)
	assert.Equal(t, "1.67", book.Days["10-03-2025"][0].Hours.StringFixed(2))

	require.Len(t, book.Summary, 2)
	assert.Equal(t, "JOAO PEREIRA", book.Summary[0].FullName, "T1 sorts before T2")
	assert.Equal(t, 3, book.Summary[0].Count)
	assert.Equal(t, "2.67", book.Summary[0].Hours.StringFixed(2))
	assert.Equal(t, report.StatusPending, book.Summary[0].Status)
	assert.Equal(t, "PORT", book.Summary[1].Subject)
}

func TestWrite_ConcurrentDaysAllKept(t *testing.T) {
	// GIVEN: Four days reconciled at the same time by different workers
	// WHEN: Each worker writes its day through the shared writer
	// THEN: The detailed workbook holds every day and a summary over all of them

	w, _ := newWriter(t)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := day(march10.AddDate(0, 0, i), anomaly(joao, attendance.KindAbsent, attendance.DetailNoRecord))
			d.Tally.Add(joao, period("MATH", "07:00", "08:00"))
			_, errs[i] = w.Write(d)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	book, err := report.ReadDetailed(w.DetailedPath())
	require.NoError(t, err)
	assert.Equal(t, []string{"10-03-2025", "11-03-2025", "12-03-2025", "13-03-2025"}, book.Labels())
	require.Len(t, book.Summary, 1)
	assert.Equal(t, 4, book.Summary[0].Count)
}

func TestWriteDetailed_SameDayReplacesSheet(t *testing.T) {
	w, lines := newWriter(t)

	first := day(march10)
	first.Tally.Add(joao, period("MATH", "07:00", "07:50"))
	_, err := w.WriteDetailed(first)
	require.NoError(t, err)

	again := day(march10)
	again.Tally.Add(ana, period("PORT", "07:00", "07:50"))
	path, err := w.WriteDetailed(again)
	require.NoError(t, err)

	book, err := report.ReadDetailed(path)
	require.NoError(t, err)
	require.Len(t, book.Days["10-03-2025"], 1)
	assert.Equal(t, "456", book.Days["10-03-2025"][0].RegistrationID)
	require.Len(t, book.Summary, 1, "summary recomputed, not appended")
	assert.Contains(t, (*lines)[0], "replacing sheet 10-03-2025")
}

func TestSummarize_KeepsStatusWhileTotalUnchanged(t *testing.T) {
	math := attendance.TallyEntry{
		TallyKey: attendance.TallyKey{RegistrationID: "123", FullName: "JOAO PEREIRA", Section: "T1", Subject: "MATH"},
		Count:    1,
	}
	port := math
	port.Subject = "PORT"

	previous := []report.SummaryRow{
		{TallyEntry: math, Status: report.StatusPosted},
		{TallyEntry: port, Status: report.StatusPosted},
	}
	port2 := port
	port2.Count = 2

	got := report.Summarize(map[string][]attendance.TallyEntry{
		"10-03-2025": {math, port2},
	}, previous)

	require.Len(t, got, 2)
	assert.Equal(t, report.StatusPosted, got[0].Status, "MATH total unchanged")
	assert.Equal(t, report.StatusPending, got[1].Status, "PORT total changed")
}

func TestReadDetailed_MissingFileIsEmpty(t *testing.T) {
	book, err := report.ReadDetailed(filepath.Join(t.TempDir(), "none.xlsx"))
	require.NoError(t, err)
	assert.Empty(t, book.Days)
	assert.Empty(t, book.Summary)
}

func TestWriteDetailed_UnreadableFileIsRewritten(t *testing.T) {
	w, lines := newWriter(t)
	require.NoError(t, os.MkdirAll(w.Dir, 0o755))
	require.NoError(t, os.WriteFile(w.DetailedPath(), []byte("not a workbook"), 0o644))

	d := day(march10)
	d.Tally.Add(joao, period("MATH", "07:00", "07:50"))
	_, err := w.WriteDetailed(d)
	require.NoError(t, err)

	assert.Contains(t, (*lines)[0], "could not be read")
	book, err := report.ReadDetailed(w.DetailedPath())
	require.NoError(t, err)
	assert.Len(t, book.Days, 1)
}

// =============================================================================
// SIMPLE WORKBOOK
// =============================================================================

func TestWriteSimple_GroupsBySection(t *testing.T) {
	// GIVEN: Anomalies for two sections, out of order
	// WHEN: Writing the simple workbook
	// THEN: The file is named by ddmmyy, titled with the weekday, grouped T1 then T2

	w, _ := newWriter(t)
	r := day(march10,
		anomaly(ana, attendance.KindAbsent, attendance.DetailNoRecord),
		anomaly(joao, attendance.KindLate, "Entry: 07:10:00"),
		anomaly(joao, attendance.KindEarlyDeparture, "Exit: 10:00:00"),
	)

	path, err := w.WriteSimple(r)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.Dir, "relatorio_frequencia_100325.xlsx"), path)

	title, sections, rows, err := report.ReadSimple(path)
	require.NoError(t, err)
	assert.Equal(t, "Relatório de Frequência - Segunda-feira, 10/03/2025", title)
	assert.Equal(t, []string{"T1", "T2"}, sections)
	assert.Equal(t, [][]string{
		{"123", "JOAO PEREIRA", "CHEGOU ATRASADO", "Entry: 07:10:00"},
		{"123", "JOAO PEREIRA", "SAIU CEDO", "Exit: 10:00:00"},
		{"456", "ANA SILVA SANTOS", "FALTOU", "no record"},
	}, rows)
}

func TestWriteSimple_NoAnomalies_NoFile(t *testing.T) {
	w, lines := newWriter(t)

	path, err := w.WriteSimple(day(march10))
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Len(t, *lines, 1)

	_, err = os.Stat(w.Dir)
	assert.True(t, os.IsNotExist(err), "directory not created for nothing")
}

func TestWrite_BothWorkbooks(t *testing.T) {
	w, _ := newWriter(t)
	r := day(march11, anomaly(joao, attendance.KindAbsent, attendance.DetailNoRecord))
	r.Tally.Add(joao, period("ART", "07:00", "08:00"))

	paths, err := w.Write(r)
	require.NoError(t, err)
	assert.FileExists(t, paths.Detailed)
	assert.FileExists(t, paths.Simple)
}
