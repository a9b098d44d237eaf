package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/warp/attendance-engine/attendance"
)

const sectionPrefix = "TURMA: "

var simpleColumns = []string{"Matrícula", "Nome do Aluno", "Problema", "Acesso"}

// SimpleTitle is the banner on the first row, e.g.
// "Relatório de Frequência - Segunda-feira, 10/03/2025".
func SimpleTitle(r *attendance.DayResult) string {
	return fmt.Sprintf("Relatório de Frequência - %s, %s",
		attendance.WeekdayOf(r.Date).Title(), r.Date.Format(attendance.DateLayout))
}

// WriteSimple writes the per-day anomaly workbook. A day without anomalies
// produces no file and an empty path.
func (w *Writer) WriteSimple(r *attendance.DayResult) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeSimple(r)
}

func (w *Writer) writeSimple(r *attendance.DayResult) (string, error) {
	if len(r.Anomalies) == 0 {
		w.warn("simple report: no attendance problems on %s, nothing written", r.Label())
		return "", nil
	}
	if err := w.ensureDir(); err != nil {
		return "", err
	}
	path := w.SimplePath(r)
	if err := saveSimple(path, r); err != nil {
		return "", fmt.Errorf("write simple report: %w", err)
	}
	return path, nil
}

// groupBySection orders anomalies by section then name, keeping engine
// order within one student.
func groupBySection(as []attendance.AnomalyRecord) ([]string, map[string][]attendance.AnomalyRecord) {
	sorted := append([]attendance.AnomalyRecord(nil), as...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Section != sorted[j].Section {
			return sorted[i].Section < sorted[j].Section
		}
		return sorted[i].FullName < sorted[j].FullName
	})

	var sections []string
	groups := map[string][]attendance.AnomalyRecord{}
	for _, a := range sorted {
		if _, ok := groups[a.Section]; !ok {
			sections = append(sections, a.Section)
		}
		groups[a.Section] = append(groups[a.Section], a)
	}
	return sections, groups
}

func saveSimple(path string, r *attendance.DayResult) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := r.Label()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	st, err := newStyles(f)
	if err != nil {
		return err
	}
	last := len(simpleColumns)

	title := SimpleTitle(r)
	if err := f.SetCellValue(sheet, "A1", title); err != nil {
		return err
	}
	if err := f.MergeCell(sheet, "A1", cell(last, 1)); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", cell(last, 1), st.title); err != nil {
		return err
	}

	// widths ignore the merged title and section rows
	var text [][]string
	row := 3
	sections, groups := groupBySection(r.Anomalies)
	for _, section := range sections {
		if err := f.SetCellValue(sheet, cell(1, row), sectionPrefix+section); err != nil {
			return err
		}
		if err := f.MergeCell(sheet, cell(1, row), cell(last, row)); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell(1, row), cell(last, row), st.section); err != nil {
			return err
		}
		row++

		header := make([]any, len(simpleColumns))
		for i, h := range simpleColumns {
			header[i] = h
		}
		if err := f.SetSheetRow(sheet, cell(1, row), &header); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell(1, row), cell(last, row), st.columnHeader); err != nil {
			return err
		}
		text = append(text, simpleColumns)
		row++

		for _, a := range groups[section] {
			values := []any{a.RegistrationID, a.FullName, string(a.Kind), a.Detail}
			if err := f.SetSheetRow(sheet, cell(1, row), &values); err != nil {
				return err
			}
			style, ok := st.byKind[a.Kind]
			if !ok {
				style = st.body
			}
			if err := f.SetCellStyle(sheet, cell(1, row), cell(last, row), style); err != nil {
				return err
			}
			text = append(text, stringify(values))
			row++
		}
		row++
	}

	if err := fitColumns(f, sheet, text, nil, map[int]float64{1: 2}); err != nil {
		return err
	}
	return f.SaveAs(path)
}

// ReadSimple returns the title and the data rows of a simple workbook,
// section banners and column headers excluded. Used to check output.
func ReadSimple(path string) (title string, sections []string, rows [][]string, err error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", nil, nil, err
	}
	defer f.Close()

	all, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return "", nil, nil, err
	}
	for i, r := range all {
		switch {
		case len(r) == 0:
		case i == 0:
			title = r[0]
		case strings.HasPrefix(r[0], sectionPrefix):
			sections = append(sections, strings.TrimPrefix(r[0], sectionPrefix))
		case r[0] == simpleColumns[0]:
		default:
			rows = append(rows, r)
		}
	}
	return title, sections, rows, nil
}
