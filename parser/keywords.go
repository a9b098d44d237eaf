package parser

import "strings"

// Keywords that identify each report. Used to catch swapped inputs before
// parsing produces confusing errors.
const (
	AbsenceKeyword = "Matrícula"
	AccessKeyword  = "Crachá:"
	legacyAccess   = "Nome:"
)

// LooksLikeAbsenceReport reports whether text carries the absence roster keyword.
func LooksLikeAbsenceReport(text string) bool {
	return strings.Contains(normalize(text), AbsenceKeyword)
}

// LooksLikeAccessLog reports whether text carries an access log header.
func LooksLikeAccessLog(text string) bool {
	t := normalize(text)
	return strings.Contains(t, AccessKeyword) || (strings.Contains(t, legacyAccess) && strings.Contains(t, BlockFooter))
}
