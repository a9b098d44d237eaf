package extract_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/extract"
	"github.com/warp/attendance-engine/parser"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

// Helvetica without a Widths array: every glyph reports zero width. Byte 200
// maps to a combining acute accent.
const plainFont = `<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding << /Type /Encoding /Differences [200 /acutecomb] >> >>`

// monoFont advances 600/1000 of the font size per glyph, like Courier.
var monoFont = `<< /Type /Font /Subtype /Type1 /BaseFont /Courier /FirstChar 32 /LastChar 255 /Widths [` +
	strings.TrimSpace(strings.Repeat("600 ", 224)) +
	`] /Encoding << /Type /Encoding /Differences [200 /acutecomb] >> >>`

// buildPDF assembles a PDF with one content stream per page, all pages
// sharing font as /F1.
func buildPDF(font string, pages ...string) []byte {
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		font,
	}
	for i, content := range pages {
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

// One Tj per line or cell, placed with Td, as report generators emit them.
const absencePage = `BT /F1 12 Tf 72 780 Td
(RELAT\323RIO DE ALUNOS AUSENTES) Tj
0 -14 Td (Per\355odo: de 10/03/2025 a 10/03/2025) Tj
0 -14 Td (Matricula) Tj 80 0 Td (Nome) Tj 200 0 Td (Perfil) Tj
-280 -14 Td (123) Tj 80 0 Td (JOAO PEREIRA) Tj 200 0 Td (ALUNO) Tj
-280 -14 Td (456) Tj 80 0 Td (ANA SILVA SANTOS) Tj 200 0 Td (ALUNO) Tj
ET`

const accessPage1 = `BT /F1 10 Tf 40 800 Td
(Relat\363rio de Acessos por Pedestre) Tj
0 -12 Td (Per\355odo: de 10/03/2025 at\351 10/03/2025) Tj
0 -12 Td (Nome:) Tj
0 -12 Td (123) Tj
0 -12 Td (JOAO PEREIRA) Tj
0 -12 Td (10/03/2025) Tj 90 0 Td (07:10:00) Tj 60 0 Td (Entrada) Tj
-150 -12 Td (10/03/2025) Tj 90 0 Td (12:00:00) Tj 60 0 Td (Sa\355da) Tj
-150 -12 Td (Total de Acessos do Pedestre: 2) Tj
ET`

const accessPage2 = `BT /F1 10 Tf 40 800 Td
(Crach\341: 456 Nome: ANA SILVA SANTOS) Tj
0 -12 Td (10/03/2025) Tj 90 0 Td (07:05:00) Tj 60 0 Td (Entrada) Tj
-150 -12 Td (Total de Acessos do Pedestre: 1) Tj
ET`

// =============================================================================
// TEXT LAYOUT
// =============================================================================

func TestExtract_TdLinesBecomeRows(t *testing.T) {
	// GIVEN: An absence roster whose lines and cells are placed with Td
	// WHEN: Extracting it from disk
	// THEN: Each baseline is one line, cells joined by a space

	path := filepath.Join(t.TempDir(), "ausentes.pdf")
	require.NoError(t, os.WriteFile(path, buildPDF(plainFont, absencePage), 0o600))

	text, err := extract.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "RELATÓRIO DE ALUNOS AUSENTES\n"+
		"Período: de 10/03/2025 a 10/03/2025\n"+
		"Matricula Nome Perfil\n"+
		"123 JOAO PEREIRA ALUNO\n"+
		"456 ANA SILVA SANTOS ALUNO", text)

	// AND: The absence parser finds both records
	rep, warnings, err := parser.ParseAbsenceReport(text)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, []attendance.AbsenceRecord{
		{RawID: "123", RawName: "JOAO PEREIRA"},
		{RawID: "456", RawName: "ANA SILVA SANTOS"},
	}, rep.Records)
}

func TestExtractBytes_TableCellsAndPageOrder(t *testing.T) {
	// GIVEN: A two-page access log in a font with real glyph widths
	// WHEN: Extracting it
	// THEN: Pages follow each other in order and the access parser sees every event

	text, err := extract.ExtractBytes(context.Background(), buildPDF(monoFont, accessPage1, accessPage2))
	require.NoError(t, err)

	lines := strings.Split(text, "\n")
	require.Len(t, lines, 11)
	assert.Equal(t, "Nome:", lines[2])
	assert.Equal(t, "10/03/2025 12:00:00 Saída", lines[6])
	assert.Equal(t, "Total de Acessos do Pedestre: 2", lines[7])
	assert.Equal(t, "Crachá: 456 Nome: ANA SILVA SANTOS", lines[8], "page 2 follows page 1")

	log, warnings, err := parser.ParseAccessLog(text)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 2, log.Blocks)
	assert.Zero(t, log.SkippedBlocks)
	require.Len(t, log.Events, 3)
	assert.Equal(t, "123", log.Events[0].RawID)
	assert.Equal(t, "JOAO PEREIRA", log.Events[0].RawName)
	assert.Equal(t, attendance.Exit, log.Events[1].Direction)
	assert.Equal(t, attendance.MustParseClock("12:00:00"), log.Events[1].At)
	assert.Equal(t, "456", log.Events[2].RawID)
}

func TestExtractBytes_RowsOrderedByPosition(t *testing.T) {
	// the lower line is drawn first
	page := `BT /F1 12 Tf 1 0 0 1 72 600 Tm (second) Tj 1 0 0 1 72 700 Tm (first) Tj ET`

	text, err := extract.ExtractBytes(context.Background(), buildPDF(plainFont, page))
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", text)
}

func TestExtractBytes_ComposesAccents(t *testing.T) {
	// GIVEN: A name drawn as E followed by a combining acute accent
	page := `BT /F1 12 Tf 72 700 Td (JOSE\310 DA SILVA) Tj ET`

	text, err := extract.ExtractBytes(context.Background(), buildPDF(plainFont, page))

	// THEN: The accent is composed onto the letter
	require.NoError(t, err)
	assert.Equal(t, "JOSÉ DA SILVA", text)
	assert.True(t, norm.NFC.IsNormalString(text))
}

// =============================================================================
// FAILURES
// =============================================================================

func TestExtract_MissingFile(t *testing.T) {
	_, err := extract.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))

	assert.ErrorIs(t, err, attendance.ErrFileNotFound)
	assert.True(t, attendance.IsFatal(err))
}

func TestExtract_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	assert.NoError(t, os.WriteFile(path, []byte("this is plain text, not a pdf"), 0o600))

	_, err := extract.Extract(context.Background(), path)
	assert.ErrorIs(t, err, attendance.ErrExtractionFailure)
}

func TestExtract_Directory(t *testing.T) {
	_, err := extract.Extract(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, attendance.ErrExtractionFailure)
}

func TestExtractBytes_Empty(t *testing.T) {
	_, err := extract.ExtractBytes(context.Background(), nil)
	assert.ErrorIs(t, err, attendance.ErrExtractionFailure)
}

func TestExtractBytes_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := extract.ExtractBytes(ctx, buildPDF(plainFont, absencePage))
	assert.ErrorIs(t, err, context.Canceled)
}
