package extract

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// span is a run of glyphs drawn one after another on one baseline.
type span struct {
	x, y, size float64
	end        float64 // where the next glyph continues the span
	text       strings.Builder
}

// pageLines rebuilds text rows from positioned glyphs. Report generators
// place every cell and line with Td or Tm and never emit a newline, so
// rows come from the baseline: glyphs within half a font size of a row's
// Y belong to it, rows run top to bottom, spans inside a row left to right
// and are separated by one space.
func pageLines(glyphs []pdf.Text) []string {
	var spans []*span
	var cur *span
	for _, g := range glyphs {
		if g.S == "" || strings.IndexFunc(g.S, unicode.IsControl) >= 0 {
			continue
		}
		size := math.Max(math.Abs(g.FontSize), 1)
		if cur == nil || !cur.continues(g, size) {
			cur = &span{x: g.X, y: g.Y, size: size, end: g.X}
			spans = append(spans, cur)
		}
		cur.text.WriteString(g.S)
		cur.end = math.Max(cur.end, g.X+g.W)
	}
	if len(spans) == 0 {
		return nil
	}

	// stable, so spans sharing a baseline keep content order before the X sort
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].y > spans[j].y })

	var lines []string
	row := []*span{spans[0]}
	flush := func() {
		sort.SliceStable(row, func(i, j int) bool { return row[i].x < row[j].x })
		parts := make([]string, 0, len(row))
		for _, s := range row {
			parts = append(parts, s.text.String())
		}
		if line := strings.Join(strings.Fields(strings.Join(parts, " ")), " "); line != "" {
			lines = append(lines, line)
		}
	}
	for _, s := range spans[1:] {
		if math.Abs(s.y-row[0].y) <= row[0].size/2 {
			row = append(row, s)
			continue
		}
		flush()
		row = []*span{s}
	}
	flush()
	return lines
}

// continues reports whether g is drawn right where the span left off. Fonts
// without a Widths array report zero-width glyphs, so a glyph at the same X
// still continues the span.
func (s *span) continues(g pdf.Text, size float64) bool {
	if math.Abs(g.Y-s.y) > size/2 {
		return false
	}
	gap := g.X - s.end
	return gap >= -size/4 && gap <= size/4
}
