// Package pdftext extracts plain text from PDF documents.
package pdftext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extract returns the concatenated plain text of all pages, trimmed.
// Pages whose content streams cannot be decoded are skipped rather than
// failing the whole document. An empty result means the PDF carries no
// extractable text (scanned images, for example).
func Extract(data []byte) (text string, err error) {
	// The parser panics on some malformed files; treat that as a parse error
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("failed to parse PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		builder.WriteString(pageText)
		builder.WriteString("\n")
	}

	return strings.TrimSpace(builder.String()), nil
}
