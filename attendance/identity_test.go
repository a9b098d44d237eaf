package attendance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
)

func newResolver() *attendance.Resolver {
	return attendance.NewResolver([]attendance.Student{
		{RegistrationID: "100", FullName: "ANA SILVA SANTOS", Section: "T1"},
		{RegistrationID: "101", FullName: "ANA SILVA SOUZA", Section: "T1"},
		{RegistrationID: "200", FullName: "João Pereira", Section: "T2"},
		{RegistrationID: "300", FullName: "MARIA DAS GRAÇAS LIMA", Section: "T3"},
	})
}

func TestResolver_ExactID_Wins(t *testing.T) {
	r := newResolver()

	s, err := r.Resolve("100", "SOMEONE ELSE ENTIRELY")
	require.NoError(t, err)
	assert.Equal(t, "ANA SILVA SANTOS", s.FullName, "registration id is the strongest key")
}

func TestResolver_ExactName_IgnoresCaseAndSpacing(t *testing.T) {
	r := newResolver()

	s, err := r.Resolve("", "  joão   PEREIRA ")
	require.NoError(t, err)
	assert.Equal(t, "200", s.RegistrationID)

	// decomposed accent (PDF fonts) matches the composed roster name
	s, err = r.Resolve("", "JOA\u0303O PEREIRA")
	require.NoError(t, err)
	assert.Equal(t, "200", s.RegistrationID)
}

func TestResolver_UnknownID_FallsBackToName(t *testing.T) {
	r := newResolver()

	s, err := r.Resolve("99999", "MARIA DAS GRAÇAS LIMA")
	require.NoError(t, err)
	assert.Equal(t, "300", s.RegistrationID)
}

func TestResolver_TruncatedName_PrefixMatch(t *testing.T) {
	// GIVEN: A PDF column cut "MARIA DAS GRAÇAS LIMA" to "MARIA DAS GRA"
	// WHEN: Resolving by name
	// THEN: The unique prefix candidate is returned

	r := newResolver()
	s, err := r.Resolve("", "MARIA DAS GRA")
	require.NoError(t, err)
	assert.Equal(t, "300", s.RegistrationID)
}

func TestResolver_AmbiguousPrefix_ReturnsNone(t *testing.T) {
	// GIVEN: "ANA SILVA SANTOS" and "ANA SILVA SOUZA"
	// WHEN: Resolving "ANA SILVA S"
	// THEN: Ambiguous, both candidates listed, no arbitrary pick

	r := newResolver()
	s, err := r.Resolve("", "ANA SILVA S")

	assert.Equal(t, attendance.Student{}, s)
	var amb *attendance.AmbiguousIdentityError
	require.ErrorAs(t, err, &amb)
	assert.ErrorIs(t, err, attendance.ErrIdentityAmbiguous)
	require.Len(t, amb.Candidates, 2)
	assert.Equal(t, "100", amb.Candidates[0].RegistrationID)
	assert.Equal(t, "101", amb.Candidates[1].RegistrationID)
	assert.Contains(t, err.Error(), "ANA SILVA SANTOS (100)")
	assert.Contains(t, err.Error(), "ANA SILVA SOUZA (101)")
	assert.True(t, attendance.IsRecoverable(err))
}

func TestResolver_DuplicateExactNames_Ambiguous(t *testing.T) {
	r := attendance.NewResolver([]attendance.Student{
		{RegistrationID: "1", FullName: "PEDRO ALVES", Section: "T1"},
		{RegistrationID: "2", FullName: "PEDRO ALVES", Section: "T2"},
	})

	_, err := r.Resolve("", "PEDRO ALVES")
	assert.ErrorIs(t, err, attendance.ErrIdentityAmbiguous)
}

func TestResolver_SingleTokenQuery_NoPrefixMatch(t *testing.T) {
	r := newResolver()

	_, err := r.Resolve("", "MAR")
	assert.ErrorIs(t, err, attendance.ErrIdentityNotFound)
}

func TestResolver_QueryLongerThanRosterName_NotFound(t *testing.T) {
	r := newResolver()

	_, err := r.Resolve("", "ANA SILVA SANTOS FILHA")
	assert.ErrorIs(t, err, attendance.ErrIdentityNotFound)
	assert.False(t, attendance.IsFatal(err))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "JOSÉ D'ÁVILA-NETO", attendance.NormalizeName(" josé\n d'ávila-neto  "))
}
