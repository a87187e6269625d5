// Package ai implements the generative fallback for payslips the pattern
// cascade cannot fully read. The provider sends the document inline with a
// fixed instruction set and expects a single JSON object back.
package ai

import (
	"context"

	"github.com/monbulletin/payslip-cli/internal/fetcher"
	"github.com/monbulletin/payslip-cli/internal/model"
)

// Result is one provider answer: the extracted fields plus everything the
// audit log wants to know about how they were obtained.
type Result struct {
	Fields       model.ExtractedFields
	Model        string
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
	// RawResponse preserves the provider's text verbatim for debugging,
	// also when parsing failed.
	RawResponse string
}

// Provider analyzes a payslip document. Implementations must keep RawResponse
// populated on parse failures so the attempt can be diagnosed from the audit
// log alone.
type Provider interface {
	Analyze(ctx context.Context, doc *fetcher.Document) (*Result, error)
}
