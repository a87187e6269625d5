package pdftext

import (
	"bytes"
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

// Native reads the PDF text layer in-process.
type Native struct{}

func NewNative() *Native { return &Native{} }

// ExtractText returns the text of every page, joined by newlines.
func (n *Native) ExtractText(_ context.Context, data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", eris.Wrap(err, "parse pdf document")
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", eris.Wrapf(err, "parse pdf page %d", i)
		}
		pages = append(pages, text)
	}
	if len(pages) == 0 {
		return "", eris.New("parse pdf document: no readable pages")
	}
	return strings.Join(pages, "\n"), nil
}
