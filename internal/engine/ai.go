package engine

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/monbulletin/payslip-cli/internal/model"
	"github.com/monbulletin/payslip-cli/internal/resilience"
)

// analyzeWithRetry wraps analyzeOnce in the uniform retry policy. Each attempt
// fetches the document and gets its own audit row.
func (e *Engine) analyzeWithRetry(ctx context.Context, fileURL string, meta model.FileInfo, persist bool) (*model.ExtractionResult, error) {
	if e.provider == nil {
		return nil, eris.New("api: no ai provider configured")
	}

	cfg := e.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("anthropic", "analyze_document")
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*model.ExtractionResult, error) {
		return e.analyzeOnce(ctx, fileURL, meta, persist)
	})
}

// analyzeOnce runs one AI-layer attempt: fetch, provider call, completeness
// check, schema validation. Token usage and the raw model response are kept on
// the audit entry even when parsing or validation rejects the answer.
func (e *Engine) analyzeOnce(ctx context.Context, fileURL string, meta model.FileInfo, persist bool) (*model.ExtractionResult, error) {
	entry := &model.ExtractionLogEntry{File: meta, Method: model.MethodAI}
	start := time.Now()
	defer e.writeLog(ctx, entry, start)

	doc, err := e.fetcher.Fetch(ctx, fileURL)
	if err != nil {
		return nil, fail(entry, err)
	}
	fillFileInfo(&entry.File, doc)

	aiRes, err := e.provider.Analyze(ctx, doc)
	if aiRes != nil {
		entry.AIModel = aiRes.Model
		entry.RawResponse = aiRes.RawResponse
		entry.InputTokens = aiRes.InputTokens
		entry.OutputTokens = aiRes.OutputTokens
		entry.CostUSD = aiRes.CostUSD
	}
	if err != nil {
		return nil, fail(entry, err)
	}

	fields := aiRes.Fields
	entry.ExtractedData = &fields

	if err := e.checkCandidate(&fields); err != nil {
		return nil, fail(entry, err)
	}
	entry.Success = true

	if persist {
		if _, perr := e.persist(ctx, entry, fileURL, fields); perr != nil {
			zap.L().Warn("payslip persist failed",
				zap.String("file", entry.File.Name),
				zap.Error(perr),
			)
		}
	}

	return &model.ExtractionResult{
		ExtractedFields: fields,
		Method:          model.MethodAI,
		Model:           aiRes.Model,
		InputTokens:     aiRes.InputTokens,
		OutputTokens:    aiRes.OutputTokens,
		CostUSD:         aiRes.CostUSD,
		PayslipID:       entry.PayslipID,
	}, nil
}
