package attendance

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// NAME NORMALIZATION
// =============================================================================

// NormalizeName uppercases (pt-BR rules), composes accents and collapses
// internal whitespace. Both roster names and PDF names go through it.
func NormalizeName(s string) string {
	upper := cases.Upper(language.BrazilianPortuguese).String(norm.NFC.String(s))
	return strings.Join(strings.Fields(upper), " ")
}

// =============================================================================
// IDENTITY RESOLVER - Ranked strategies plus one ambiguity check
// =============================================================================

type identityQuery struct {
	ID     string
	Name   string // normalized
	Tokens []string
}

// matchStrategy returns every roster candidate it accepts, or nothing.
type matchStrategy struct {
	name  string
	match func(q identityQuery) []Student
}

// Resolver maps raw (id, name) pairs from either PDF to roster students.
// Safe for concurrent use once built.
type Resolver struct {
	students   []Student
	tokens     [][]string
	byID       map[string][]int
	byName     map[string][]int
	strategies []matchStrategy
}

// NewResolver indexes a roster snapshot.
func NewResolver(students []Student) *Resolver {
	r := &Resolver{
		students: make([]Student, len(students)),
		tokens:   make([][]string, len(students)),
		byID:     make(map[string][]int),
		byName:   make(map[string][]int),
	}
	copy(r.students, students)
	for i, s := range r.students {
		id := strings.TrimSpace(s.RegistrationID)
		r.byID[id] = append(r.byID[id], i)
		n := NormalizeName(s.FullName)
		r.byName[n] = append(r.byName[n], i)
		r.tokens[i] = strings.Fields(n)
	}
	r.strategies = []matchStrategy{
		{name: "registration id", match: r.matchID},
		{name: "exact name", match: r.matchName},
		{name: "token prefix", match: r.matchPrefix},
	}
	return r
}

// Len returns the number of indexed students.
func (r *Resolver) Len() int { return len(r.students) }

// Resolve runs the strategies in rank order and stops at the first one
// with candidates. One candidate is a match; several is ambiguous.
func (r *Resolver) Resolve(id, name string) (Student, error) {
	q := identityQuery{ID: strings.TrimSpace(id), Name: NormalizeName(name)}
	q.Tokens = strings.Fields(q.Name)

	for _, st := range r.strategies {
		candidates := st.match(q)
		switch len(candidates) {
		case 0:
			continue
		case 1:
			return candidates[0], nil
		default:
			return Student{}, &AmbiguousIdentityError{Query: q.display(), Candidates: candidates}
		}
	}
	return Student{}, &identityNotFoundError{query: q.display()}
}

func (q identityQuery) display() string {
	switch {
	case q.ID != "" && q.Name != "":
		return q.ID + " " + q.Name
	case q.ID != "":
		return q.ID
	}
	return q.Name
}

func (r *Resolver) matchID(q identityQuery) []Student {
	if q.ID == "" {
		return nil
	}
	return r.pick(r.byID[q.ID])
}

func (r *Resolver) matchName(q identityQuery) []Student {
	if q.Name == "" {
		return nil
	}
	return r.pick(r.byName[q.Name])
}

// matchPrefix handles names truncated by a PDF column: every query token
// but the last must be equal, the last must prefix the roster token.
func (r *Resolver) matchPrefix(q identityQuery) []Student {
	n := len(q.Tokens)
	if n < 2 {
		return nil
	}
	var hits []int
	for i, rt := range r.tokens {
		if len(rt) < n {
			continue
		}
		ok := true
		for j := 0; j < n-1; j++ {
			if rt[j] != q.Tokens[j] {
				ok = false
				break
			}
		}
		if ok && strings.HasPrefix(rt[n-1], q.Tokens[n-1]) {
			hits = append(hits, i)
		}
	}
	return r.pick(hits)
}

func (r *Resolver) pick(idx []int) []Student {
	if len(idx) == 0 {
		return nil
	}
	out := make([]Student, len(idx))
	for i, j := range idx {
		out[i] = r.students[j]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegistrationID < out[j].RegistrationID })
	return out
}

type identityNotFoundError struct{ query string }

func (e *identityNotFoundError) Error() string {
	return fmt.Sprintf("identity not found: no roster student matches %q", e.query)
}

func (e *identityNotFoundError) Unwrap() error { return ErrIdentityNotFound }
