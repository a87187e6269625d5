// Package pdftext turns payslip PDF bytes into plain text for the pattern
// cascade. Extraction failures are parsing errors; a payslip whose text layer
// cannot be read still has the AI path available.
package pdftext

import (
	"context"

	"github.com/rotisserie/eris"
)

// Extractor extracts plain text from PDF bytes. Multi-page documents are
// returned as one string with pages joined by newlines.
type Extractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// NewExtractor creates an Extractor for the given provider. The native reader
// needs no external tooling; "pdftotext" shells out to poppler and keeps
// column layout, which helps the tabular recap patterns.
func NewExtractor(provider, binPath string) (Extractor, error) {
	switch provider {
	case "native", "":
		return NewNative(), nil
	case "pdftotext":
		return NewPdfToText(binPath), nil
	default:
		return nil, eris.Errorf("pdftext: unknown provider %q", provider)
	}
}
