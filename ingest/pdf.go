// Package ingest extracts text from source documents and splits it into
// embedder-sized passages.
package ingest

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPDF extracts the plain text of every page of a PDF file,
// concatenated in page order. Pages that fail to extract are skipped.
func ExtractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	totalPages := reader.NumPage()
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		b.WriteString(text)
		b.WriteByte('\n')
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("no extractable text in PDF")
	}
	return out, nil
}
