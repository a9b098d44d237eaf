/*
errors.go - Centralized error types for the reconciliation engine

ERROR CATEGORIES:
  1. Fatal, per run: the submission is rejected and nothing is reported
     (ErrFileNotFound, ErrExtractionFailure, ErrDateMissing, ErrDateMismatch)
  2. Recoverable, per record: logged as a warning and skipped
     (ErrIdentityNotFound, ErrIdentityAmbiguous, ErrMalformedBlock)

USAGE:
  if attendance.IsFatal(err) {
      // discard the run, write no output
  }
*/
package attendance

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrFileNotFound is returned when an input PDF does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrExtractionFailure is returned when a PDF cannot be read, or when its
	// text shows neither the date anchor nor any record (format break).
	ErrExtractionFailure = errors.New("extraction failure")

	// ErrNoAccessBlocks is returned when the access log contains no student
	// block at all. Distinct from blocks that hold zero events.
	ErrNoAccessBlocks = fmt.Errorf("%w: no access blocks found", ErrExtractionFailure)

	// ErrDateMissing is returned when a report lacks a recognizable date.
	ErrDateMissing = errors.New("report date missing")

	// ErrDateMismatch is returned when the two reports carry different dates.
	ErrDateMismatch = errors.New("report dates do not match")

	// ErrIdentityNotFound is returned when no roster student matches a record.
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrIdentityAmbiguous is returned when several roster students match.
	ErrIdentityAmbiguous = errors.New("identity ambiguous")

	// ErrMalformedBlock is returned for an access block without a known header.
	ErrMalformedBlock = errors.New("malformed access block")

	// ErrStudentNotFound is returned by roster stores on a missing student.
	ErrStudentNotFound = errors.New("student not found")

	// ErrPeriodNotFound is returned by roster stores on a missing period.
	ErrPeriodNotFound = errors.New("period not found")

	// ErrDuplicateStudent is returned when a registration id already exists.
	ErrDuplicateStudent = errors.New("registration id already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DateMismatchError reports the two differing dates.
type DateMismatchError struct {
	AbsenceDate time.Time
	AccessDate  time.Time
}

func (e *DateMismatchError) Error() string {
	return fmt.Sprintf("report dates do not match: absence report %s, access log %s",
		e.AbsenceDate.Format(DateLayout), e.AccessDate.Format(DateLayout))
}

func (e *DateMismatchError) Unwrap() error { return ErrDateMismatch }

// AmbiguousIdentityError lists every roster candidate for a query.
type AmbiguousIdentityError struct {
	Query      string
	Candidates []Student
}

func (e *AmbiguousIdentityError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = fmt.Sprintf("%s (%s)", c.FullName, c.RegistrationID)
	}
	return fmt.Sprintf("identity ambiguous for %q: %s", e.Query, strings.Join(names, ", "))
}

func (e *AmbiguousIdentityError) Unwrap() error { return ErrIdentityAmbiguous }

// MalformedBlockError identifies a skipped access block by position.
type MalformedBlockError struct {
	Index   int
	Excerpt string
}

func (e *MalformedBlockError) Error() string {
	return fmt.Sprintf("malformed access block #%d: no known header near %q", e.Index+1, e.Excerpt)
}

func (e *MalformedBlockError) Unwrap() error { return ErrMalformedBlock }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsFatal returns true if the error must abort the whole run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFileNotFound) ||
		errors.Is(err, ErrExtractionFailure) ||
		errors.Is(err, ErrDateMissing) ||
		errors.Is(err, ErrDateMismatch)
}

// IsRecoverable returns true if the error only skips a single record.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrIdentityNotFound) ||
		errors.Is(err, ErrIdentityAmbiguous) ||
		errors.Is(err, ErrMalformedBlock)
}

// IsNotFound returns true if the error indicates a missing roster entry.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStudentNotFound) || errors.Is(err, ErrPeriodNotFound)
}
