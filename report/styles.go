package report

import (
	"github.com/xuri/excelize/v2"

	"github.com/warp/attendance-engine/attendance"
)

const (
	colorHeader   = "4472C4"
	colorTitle    = "008000"
	colorSection  = "E7E6E6"
	colorAbsent   = "FFC7CE"
	colorLate     = "FFEB9C"
	colorEarly    = "C6EFCE"
	colorPending  = "FFF2CC"
	colorPosted   = "C6EFCE"
	maxColumnWide = 50
)

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

func solid(color string) excelize.Fill {
	return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
}

// styles caches style ids for one workbook.
type styles struct {
	header, body, centered       int
	title, section, columnHeader int
	pending, posted              int
	byKind                       map[attendance.AnomalyKind]int
}

func newStyles(f *excelize.File) (*styles, error) {
	s := &styles{byKind: make(map[attendance.AnomalyKind]int)}
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.header, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11, Family: "Calibri"},
			Fill:      solid(colorHeader),
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
			Border:    thinBorder,
		}},
		{&s.body, &excelize.Style{Border: thinBorder}},
		{&s.centered, &excelize.Style{Border: thinBorder, Alignment: &excelize.Alignment{Horizontal: "center"}}},
		{&s.title, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 14, Family: "Calibri"},
			Fill:      solid(colorTitle),
			Alignment: &excelize.Alignment{Horizontal: "center"},
		}},
		{&s.section, &excelize.Style{
			Font:   &excelize.Font{Bold: true, Size: 12, Family: "Calibri"},
			Fill:   solid(colorSection),
			Border: thinBorder,
		}},
		{&s.columnHeader, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 11, Family: "Calibri"}, Border: thinBorder}},
		{&s.pending, &excelize.Style{Border: thinBorder, Fill: solid(colorPending)}},
		{&s.posted, &excelize.Style{Border: thinBorder, Fill: solid(colorPosted)}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return nil, err
		}
		*d.dst = id
	}

	for kind, color := range map[attendance.AnomalyKind]string{
		attendance.KindAbsent:         colorAbsent,
		attendance.KindLate:           colorLate,
		attendance.KindEarlyDeparture: colorEarly,
	} {
		id, err := f.NewStyle(&excelize.Style{Border: thinBorder, Fill: solid(color)})
		if err != nil {
			return nil, err
		}
		s.byKind[kind] = id
	}
	return s, nil
}

// cell converts 1-based coordinates to an A1 reference.
func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// fitColumns sizes each column to its longest value, skipping merged
// title rows.
func fitColumns(f *excelize.File, sheet string, rows [][]string, skip map[int]bool, extra map[int]float64) error {
	widths := map[int]int{}
	for r, row := range rows {
		if skip[r] {
			continue
		}
		for c, v := range row {
			if n := len([]rune(v)); n > widths[c] {
				widths[c] = n
			}
		}
	}
	for c, w := range widths {
		width := float64(w) + 2 + extra[c]
		if width > maxColumnWide {
			width = maxColumnWide
		}
		col, _ := excelize.ColumnNumberToName(c + 1)
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}
	return nil
}
