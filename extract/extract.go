// Package extract reads the plain text of a PDF report.
//
// Lines are rebuilt from glyph positions (see layout.go), one per text row,
// and pages are concatenated in order with a newline between them. Text is
// NFC-normalized so accents that PDF fonts emit as combining marks compare
// equal to roster names.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"

	"github.com/warp/attendance-engine/attendance"
)

// Extract opens the PDF at path and returns its text.
func Extract(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", attendance.ErrFileNotFound, path)
		}
		return "", fmt.Errorf("%w: open %s: %v", attendance.ErrExtractionFailure, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: stat %s: %v", attendance.ErrExtractionFailure, path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", attendance.ErrExtractionFailure, path)
	}

	text, err := ExtractReader(ctx, f, info.Size())
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return text, nil
}

// ExtractBytes extracts text from an in-memory PDF (uploads).
func ExtractBytes(ctx context.Context, content []byte) (string, error) {
	return ExtractReader(ctx, bytes.NewReader(content), int64(len(content)))
}

// ExtractReader extracts text from any random-access PDF source.
func ExtractReader(ctx context.Context, r io.ReaderAt, size int64) (text string, err error) {
	if size == 0 {
		return "", fmt.Errorf("%w: empty document", attendance.ErrExtractionFailure)
	}

	// the pdf package panics on malformed streams and unknown operands
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("%w: %v", attendance.ErrExtractionFailure, p)
		}
	}()

	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("%w: %v", attendance.ErrExtractionFailure, err)
	}

	var b strings.Builder
	for i := 1; i <= doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		lines := pageLines(page.Content().Text)
		if len(lines) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Join(lines, "\n"))
	}

	return norm.NFC.String(b.String()), nil
}
