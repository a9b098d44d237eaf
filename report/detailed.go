package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/attendance-engine/attendance"
)

var (
	dayColumns     = []string{"Matricula", "Nome", "Turma", "Disciplina", "Total de Faltas", "Horas"}
	summaryColumns = []string{"Matricula", "Nome", "Turma", "Disciplina", "Total na Semana", "Horas na Semana", "STATUS"}
)

// SummaryRow is one line of the summary sheet.
type SummaryRow struct {
	attendance.TallyEntry
	Status string `json:"status"`
}

// Detailed is the content of the detailed workbook.
type Detailed struct {
	// Days maps a dd-mm-yyyy label to that day's tally rows.
	Days    map[string][]attendance.TallyEntry
	Summary []SummaryRow
	// Skipped counts rows that could not be read back.
	Skipped int
}

// Labels returns the day labels in calendar order.
func (d *Detailed) Labels() []string {
	labels := make([]string, 0, len(d.Days))
	for l := range d.Days {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		a, _ := attendance.ParseDateLabel(labels[i])
		b, _ := attendance.ParseDateLabel(labels[j])
		return a.Before(b)
	})
	return labels
}

// =============================================================================
// WRITE
// =============================================================================

// WriteDetailed merges days into the detailed workbook on disk, replacing
// sheets for dates it already holds, and recomputes the summary.
func (w *Writer) WriteDetailed(days ...*attendance.DayResult) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeDetailed(days)
}

// writeDetailed is a read-merge-write of the file; callers hold w.mu.
func (w *Writer) writeDetailed(days []*attendance.DayResult) (string, error) {
	if err := w.ensureDir(); err != nil {
		return "", err
	}
	path := w.DetailedPath()

	book, err := ReadDetailed(path)
	if err != nil {
		w.warn("detailed report %s could not be read and will be rewritten: %v", path, err)
		book = &Detailed{Days: map[string][]attendance.TallyEntry{}}
	}
	if book.Skipped > 0 {
		w.warn("detailed report %s: %d unreadable rows dropped", path, book.Skipped)
	}

	for _, d := range days {
		if _, ok := book.Days[d.Label()]; ok {
			w.warn("detailed report: replacing sheet %s", d.Label())
		}
		book.Days[d.Label()] = d.Tally.Entries()
	}
	book.Summary = Summarize(book.Days, book.Summary)

	if err := saveDetailed(path, book); err != nil {
		return "", fmt.Errorf("write detailed report: %w", err)
	}
	return path, nil
}

// Summarize totals every day's rows per (student, subject). A row keeps the
// status it had in previous while its total is unchanged; anything new or
// changed is PENDENTE.
func Summarize(days map[string][]attendance.TallyEntry, previous []SummaryRow) []SummaryRow {
	totals := attendance.NewTally()
	for _, rows := range days {
		totals.Merge(tallyOf(rows))
	}

	prior := make(map[attendance.TallyKey]SummaryRow, len(previous))
	for _, p := range previous {
		prior[p.TallyKey] = p
	}

	entries := totals.Entries()
	out := make([]SummaryRow, len(entries))
	for i, e := range entries {
		status := StatusPending
		if p, ok := prior[e.TallyKey]; ok && p.Count == e.Count && p.Status != "" {
			status = p.Status
		}
		out[i] = SummaryRow{TallyEntry: e, Status: status}
	}
	return out
}

func tallyOf(rows []attendance.TallyEntry) *attendance.Tally {
	t := attendance.NewTally()
	for _, r := range rows {
		t.AddEntry(r)
	}
	return t
}

func saveDetailed(path string, book *Detailed) error {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return err
	}

	sheets := book.Labels()
	if len(book.Summary) > 0 {
		sheets = append(sheets, SummarySheet)
	}
	if len(sheets) == 0 {
		return errors.New("nothing to write")
	}

	for i, name := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return err
		}

		if name == SummarySheet {
			err = writeSummarySheet(f, st, book.Summary)
		} else {
			err = writeDaySheet(f, st, name, book.Days[name])
		}
		if err != nil {
			return fmt.Errorf("sheet %s: %w", name, err)
		}
	}

	idx, err := f.GetSheetIndex(sheets[len(sheets)-1])
	if err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	return f.SaveAs(path)
}

func writeDaySheet(f *excelize.File, st *styles, sheet string, rows []attendance.TallyEntry) error {
	table := make([][]any, len(rows))
	for i, r := range rows {
		table[i] = []any{r.RegistrationID, r.FullName, r.Section, r.Subject, r.Count, hours(r.Hours)}
	}
	return writeTable(f, st, sheet, dayColumns, table, nil)
}

func writeSummarySheet(f *excelize.File, st *styles, rows []SummaryRow) error {
	table := make([][]any, len(rows))
	rowStyles := make([]int, len(rows))
	for i, r := range rows {
		table[i] = []any{r.RegistrationID, r.FullName, r.Section, r.Subject, r.Count, hours(r.Hours), r.Status}
		rowStyles[i] = st.pending
		if r.Status == StatusPosted {
			rowStyles[i] = st.posted
		}
	}
	if err := writeTable(f, st, SummarySheet, summaryColumns, table, rowStyles); err != nil {
		return err
	}

	statusCol := len(summaryColumns)
	dv := excelize.NewDataValidation(false)
	dv.Sqref = cell(statusCol, 2) + ":" + cell(statusCol, len(rows)+1)
	if err := dv.SetDropList([]string{StatusPending, StatusPosted}); err != nil {
		return err
	}
	dv.SetError(excelize.DataValidationErrorStyleStop, "Entrada inválida", "Valor inválido")
	dv.SetInput("Status da Falta", "Selecione: "+StatusPending+" ou "+StatusPosted)
	return f.AddDataValidation(SummarySheet, dv)
}

// writeTable writes a header row and body rows, borders every cell, freezes
// the header and turns on filtering. rowStyles overrides the body style
// per row when set.
func writeTable(f *excelize.File, st *styles, sheet string, header []string, rows [][]any, rowStyles []int) error {
	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return err
	}
	last := len(header)
	if err := f.SetCellStyle(sheet, "A1", cell(last, 1), st.header); err != nil {
		return err
	}

	text := [][]string{header}
	for i, row := range rows {
		r := i + 2
		if err := f.SetSheetRow(sheet, cell(1, r), &row); err != nil {
			return err
		}
		style := st.body
		if rowStyles != nil {
			style = rowStyles[i]
		}
		if err := f.SetCellStyle(sheet, cell(1, r), cell(last, r), style); err != nil {
			return err
		}
		if rowStyles == nil {
			if err := f.SetCellStyle(sheet, cell(1, r), cell(1, r), st.centered); err != nil {
				return err
			}
		}
		text = append(text, stringify(row))
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if err := f.AutoFilter(sheet, "A1:"+cell(last, len(rows)+1), nil); err != nil {
		return err
	}
	return fitColumns(f, sheet, text, nil, nil)
}

func stringify(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = fmt.Sprint(v)
	}
	return out
}

// hours is written as a plain number with two decimals so it reads back
// exactly.
func hours(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// =============================================================================
// READ
// =============================================================================

// ReadDetailed loads a detailed workbook. A missing file is an empty
// workbook. Sheets that are neither a dd-mm-yyyy day nor the summary are
// ignored.
func ReadDetailed(path string) (*Detailed, error) {
	book := &Detailed{Days: map[string][]attendance.TallyEntry{}}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return book, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		isSummary := sheet == SummarySheet
		if _, err := attendance.ParseDateLabel(sheet); err != nil && !isSummary {
			continue
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}
		entries := make([]attendance.TallyEntry, 0, len(rows))
		for _, row := range rows[min(1, len(rows)):] {
			e, ok := parseRow(row)
			if !ok {
				book.Skipped++
				continue
			}
			if isSummary {
				status := StatusPending
				if len(row) > 6 && strings.TrimSpace(row[6]) != "" {
					status = strings.TrimSpace(row[6])
				}
				book.Summary = append(book.Summary, SummaryRow{TallyEntry: e, Status: status})
				continue
			}
			entries = append(entries, e)
		}
		if !isSummary {
			book.Days[sheet] = entries
		}
	}
	return book, nil
}

// parseRow reads Matricula, Nome, Turma, Disciplina, count and an optional
// hours column.
func parseRow(row []string) (attendance.TallyEntry, bool) {
	if len(row) < 5 {
		return attendance.TallyEntry{}, false
	}
	count, err := strconv.Atoi(strings.TrimSpace(row[4]))
	if err != nil {
		return attendance.TallyEntry{}, false
	}
	h := decimal.Zero
	if len(row) > 5 && strings.TrimSpace(row[5]) != "" {
		if h, err = decimal.NewFromString(strings.TrimSpace(row[5])); err != nil {
			return attendance.TallyEntry{}, false
		}
	}
	return attendance.TallyEntry{
		TallyKey: attendance.TallyKey{
			RegistrationID: strings.TrimSpace(row[0]),
			FullName:       row[1],
			Section:        row[2],
			Subject:        row[3],
		},
		Count: count,
		Hours: h,
	}, true
}
