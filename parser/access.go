package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/warp/attendance-engine/attendance"
)

// BlockFooter closes every student block in the access log.
const BlockFooter = "Total de Acessos do Pedestre:"

// headerTemplate is one known block header layout. The pattern must capture
// the badge id then the name.
type headerTemplate struct {
	name    string
	pattern *regexp.Regexp
}

// headerTemplates are tried in order; the first match wins.
var headerTemplates = []headerTemplate{
	{name: "inline", pattern: regexp.MustCompile(`Crachá:\s*(\d+)\s*Nome:[ \t]*([^\n]+)`)},
	{name: "split-line", pattern: regexp.MustCompile(`Nome:[ \t]*\n[ \t]*(\d+)[ \t]*\n([^\n]+)`)},
}

var eventPattern = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})\s+(\d{2}:\d{2}:\d{2})\s+(Entrada|Saída)`)

// ParseAccessLog extracts the date and every badge event, block by block.
//
// The fragment after the last footer is not a block. Zero blocks is a
// format break (attendance.ErrNoAccessBlocks); a block without events is not.
func ParseAccessLog(text string) (attendance.AccessLog, []string, error) {
	text = normalize(text)
	var warnings []string

	date, ok := ParseReportDate(text)
	if !ok {
		warnings = append(warnings, "access log: date anchor \"Período: de dd/mm/yyyy\" not found")
	}

	parts := strings.Split(text, BlockFooter)
	blocks := parts[:len(parts)-1]
	if len(blocks) == 0 {
		return attendance.AccessLog{}, warnings, attendance.ErrNoAccessBlocks
	}

	out := attendance.AccessLog{Date: date, Blocks: len(blocks)}
	for i, block := range blocks {
		id, name, err := parseHeader(i, block)
		if err != nil {
			warnings = append(warnings, "access log: "+err.Error())
			out.SkippedBlocks++
			continue
		}
		events, bad := parseEvents(block, id, name)
		for _, b := range bad {
			warnings = append(warnings, fmt.Sprintf("access log: block #%d (%s): %s", i+1, name, b))
		}
		out.Events = append(out.Events, events...)
	}
	return out, warnings, nil
}

func parseHeader(index int, block string) (id, name string, err error) {
	for _, tpl := range headerTemplates {
		m := tpl.pattern.FindStringSubmatch(block)
		if m == nil {
			continue
		}
		name = strings.Join(strings.Fields(m[2]), " ")
		if name == "" {
			continue
		}
		return m[1], name, nil
	}
	return "", "", &attendance.MalformedBlockError{Index: index, Excerpt: excerpt(block)}
}

func parseEvents(block, id, name string) ([]attendance.AccessEvent, []string) {
	var events []attendance.AccessEvent
	var bad []string
	for _, m := range eventPattern.FindAllStringSubmatch(block, -1) {
		date, err := attendance.ParseReportDate(m[1])
		if err != nil {
			bad = append(bad, err.Error())
			continue
		}
		at, err := attendance.ParseClock(m[2])
		if err != nil {
			bad = append(bad, err.Error())
			continue
		}
		events = append(events, attendance.AccessEvent{
			RawID:     id,
			RawName:   name,
			Date:      date,
			At:        at,
			Direction: attendance.Direction(m[3]),
		})
	}
	return events, bad
}

func excerpt(block string) string {
	s := strings.Join(strings.Fields(block), " ")
	if r := []rune(s); len(r) > 40 {
		return string(r[:40]) + "..."
	}
	return s
}
