// Package extracttest builds document fixtures for tests.
package extracttest

import (
	"bytes"
	"testing"

	"github.com/go-pdf/fpdf"
)

// PDF renders one page per element of pages. Each string in a page becomes
// its own line, so extracted text keeps the words of every line intact.
func PDF(t testing.TB, pages ...[]string) []byte {
	t.Helper()

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for _, lines := range pages {
		doc.AddPage()
		for _, line := range lines {
			doc.Cell(0, 8, line)
			doc.Ln(8)
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	return buf.Bytes()
}

// BlankPDF renders n pages without any text.
func BlankPDF(t testing.TB, n int) []byte {
	t.Helper()
	pages := make([][]string, n)
	return PDF(t, pages...)
}
