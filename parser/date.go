/*
Package parser turns extracted PDF text into attendance records.

REPORTS:
  - Absence roster: a "Período: de dd/mm/yyyy" anchor and one
    "<digits> <NAME> ALUNO" run per absentee
  - Access log: per-student blocks, each closed by the footer
    "Total de Acessos do Pedestre:", holding "dd/mm/yyyy HH:MM:SS Entrada|Saída"
    events

Parsers never read files and never touch the roster. Problems that only
affect one record come back as warnings; problems that make the whole text
unusable come back as errors wrapping attendance.ErrExtractionFailure.
*/
package parser

import (
	"regexp"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/warp/attendance-engine/attendance"
)

var dateAnchor = regexp.MustCompile(`Período:\s*de\s+(\d{2}/\d{2}/\d{4})`)

// ParseReportDate finds the report date anchor. ok is false if there is
// none or it does not hold a real calendar date.
func ParseReportDate(text string) (date time.Time, ok bool) {
	m := dateAnchor.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	d, err := attendance.ParseReportDate(m[1])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func normalize(text string) string { return norm.NFC.String(text) }
