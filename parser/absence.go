package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/warp/attendance-engine/attendance"
)

// absenteePattern matches "<digits> <NAME> ALUNO". The name is uppercase
// (accents included) and may span lines.
var absenteePattern = regexp.MustCompile(`(\d+)\s+(\p{Lu}[\p{Lu}\s.'’\-]*?)\s+ALUNO\b`)

// ParseAbsenceReport extracts the date and the absentee list.
//
// A missing date is a warning here; the caller decides whether it is fatal.
// A text with neither a date nor any absentee is a format break.
func ParseAbsenceReport(text string) (attendance.AbsenceReport, []string, error) {
	text = normalize(text)
	var warnings []string

	date, ok := ParseReportDate(text)
	if !ok {
		warnings = append(warnings, "absence report: date anchor \"Período: de dd/mm/yyyy\" not found")
	}

	var records []attendance.AbsenceRecord
	for _, m := range absenteePattern.FindAllStringSubmatch(text, -1) {
		records = append(records, attendance.AbsenceRecord{
			RawID:   m[1],
			RawName: strings.Join(strings.Fields(m[2]), " "),
		})
	}

	if !ok && len(records) == 0 {
		return attendance.AbsenceReport{}, warnings,
			fmt.Errorf("%w: absence report has no date and no absentee records", attendance.ErrExtractionFailure)
	}
	return attendance.AbsenceReport{Date: date, Records: records}, warnings, nil
}
