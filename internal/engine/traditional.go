package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/monbulletin/payslip-cli/internal/extractor"
	"github.com/monbulletin/payslip-cli/internal/fetcher"
	"github.com/monbulletin/payslip-cli/internal/model"
)

// extractTraditional runs one pattern-layer attempt: fetch, text extraction,
// regex cascade, completeness check, schema validation. The audit entry stores
// the extracted plain text as the raw response so failed attempts can be
// replayed against improved patterns.
func (e *Engine) extractTraditional(ctx context.Context, fileURL string, meta model.FileInfo, persist bool) (res *model.ExtractionResult, err error) {
	entry := &model.ExtractionLogEntry{File: meta, Method: model.MethodTraditional}
	start := time.Now()
	defer e.writeLog(ctx, entry, start)

	doc, err := e.fetcher.Fetch(ctx, fileURL)
	if err != nil {
		return nil, fail(entry, err)
	}
	fillFileInfo(&entry.File, doc)

	text, err := e.text.ExtractText(ctx, doc.Data)
	if err != nil {
		return nil, fail(entry, err)
	}
	entry.RawResponse = text

	fields := extractor.Extract(text)
	entry.ExtractedData = fields

	if err := e.checkCandidate(fields); err != nil {
		return nil, fail(entry, err)
	}
	entry.Success = true

	if persist {
		if _, perr := e.persist(ctx, entry, fileURL, *fields); perr != nil {
			zap.L().Warn("payslip persist failed",
				zap.String("file", entry.File.Name),
				zap.Error(perr),
			)
		}
	}

	return &model.ExtractionResult{
		ExtractedFields: *fields,
		Method:          model.MethodTraditional,
		PayslipID:       entry.PayslipID,
	}, nil
}

// fillFileInfo completes caller-supplied metadata with what the fetch learned.
func fillFileInfo(info *model.FileInfo, doc *fetcher.Document) {
	if info.Name == "" {
		info.Name = doc.Name
	}
	if info.Size == 0 {
		info.Size = doc.Size
	}
	if info.MimeType == "" {
		info.MimeType = doc.MimeType
	}
	if info.URL == "" {
		info.URL = doc.URL
	}
}
