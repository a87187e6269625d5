// Package engine orchestrates hybrid payslip extraction: the deterministic
// pattern cascade runs first, the AI provider is invoked only when patterns
// cannot produce a complete, schema-valid result. Every attempt is written to
// the audit log exactly once, tagged with the layer that actually ran.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/monbulletin/payslip-cli/internal/ai"
	"github.com/monbulletin/payslip-cli/internal/fetcher"
	"github.com/monbulletin/payslip-cli/internal/model"
	"github.com/monbulletin/payslip-cli/internal/pdftext"
	"github.com/monbulletin/payslip-cli/internal/resilience"
	"github.com/monbulletin/payslip-cli/internal/schema"
	"github.com/monbulletin/payslip-cli/internal/store"
)

// Config wires the engine's collaborators. Fetcher, Text, Validator are
// required; Provider may be nil to disable the AI layer and Store may be nil
// to run without persistence (audit writes are then skipped).
type Config struct {
	Fetcher   fetcher.Fetcher
	Text      pdftext.Extractor
	Provider  ai.Provider
	Validator *schema.Validator
	Store     store.Store
	Retry     resilience.RetryConfig
}

// Engine is stateless across requests; concurrent extractions share only the
// store, which handles its own synchronization.
type Engine struct {
	fetcher   fetcher.Fetcher
	text      pdftext.Extractor
	provider  ai.Provider
	validator *schema.Validator
	store     store.Store
	retry     resilience.RetryConfig
}

func New(cfg Config) *Engine {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	return &Engine{
		fetcher:   cfg.Fetcher,
		text:      cfg.Text,
		provider:  cfg.Provider,
		validator: cfg.Validator,
		store:     cfg.Store,
		retry:     cfg.Retry,
	}
}

// ExtractDataTraditional runs only the pattern layer. nil means "could not
// complete"; the reason is already in the audit log.
func (e *Engine) ExtractDataTraditional(ctx context.Context, fileURL string, meta model.FileInfo) *model.ExtractedFields {
	res, err := e.extractTraditional(ctx, fileURL, meta, false)
	if err != nil {
		return nil
	}
	f := res.ExtractedFields
	return &f
}

// AnalyzeDocument runs only the AI layer, with the uniform retry policy.
func (e *Engine) AnalyzeDocument(ctx context.Context, fileURL string, meta model.FileInfo) (*model.ExtractionResult, error) {
	return e.analyzeWithRetry(ctx, fileURL, meta, false)
}

// AnalyzeDocumentHybrid is the single entry point callers should use. It
// fails only when both layers fail, in which case the AI layer's error is
// surfaced.
func (e *Engine) AnalyzeDocumentHybrid(ctx context.Context, fileURL string, meta model.FileInfo) (*model.ExtractionResult, error) {
	res, err := e.extractTraditional(ctx, fileURL, meta, true)
	if err == nil {
		return res, nil
	}

	zap.L().Info("traditional extraction insufficient, falling back to ai",
		zap.String("file", meta.Name),
		zap.String("reason", err.Error()),
	)
	return e.analyzeWithRetry(ctx, fileURL, meta, true)
}

// writeLog finalizes and appends the audit entry for one attempt. It runs on
// a context detached from cancellation: an attempt that failed on a canceled
// context still gets its audit row. Store failures are logged and swallowed;
// the audit log must never fail the extraction it documents.
func (e *Engine) writeLog(ctx context.Context, entry *model.ExtractionLogEntry, start time.Time) {
	entry.ProcessingTimeMs = time.Since(start).Milliseconds()
	if e.store == nil {
		return
	}
	if err := e.store.AppendLog(context.WithoutCancel(ctx), entry); err != nil {
		zap.L().Warn("audit log write failed",
			zap.String("file", entry.File.Name),
			zap.String("method", string(entry.Method)),
			zap.Error(err),
		)
	}
}

// fail records a failure on the entry and returns the error unchanged.
func fail(entry *model.ExtractionLogEntry, err error) error {
	entry.Success = false
	entry.ErrorType = model.ClassifyError(err)
	entry.ErrorMessage = err.Error()
	entry.ErrorStack = eris.ToString(err, true)

	var se *schema.Error
	if errors.As(err, &se) {
		entry.ValidationErrors = se.Violations
	}
	var ie *schema.IncompleteError
	if errors.As(err, &ie) {
		for _, f := range ie.Missing {
			entry.ValidationErrors = append(entry.ValidationErrors,
				model.FieldViolation{Field: f, Message: "missing required field"})
		}
	}
	return err
}

// checkCandidate enforces completeness before full schema validation; an
// incomplete candidate is rejected without even compiling violations.
func (e *Engine) checkCandidate(f *model.ExtractedFields) error {
	if missing := f.MissingFields(); len(missing) > 0 {
		return &schema.IncompleteError{Missing: missing}
	}
	return e.validator.Validate(f)
}

// persist stores the payslip record a successful attempt produced and links
// the audit entry to it.
func (e *Engine) persist(ctx context.Context, entry *model.ExtractionLogEntry, fileURL string, f model.ExtractedFields) (string, error) {
	if e.store == nil {
		return "", nil
	}
	p := &model.Payslip{
		FileName: entry.File.Name,
		FileURL:  fileURL,
		Fields:   f,
	}
	if err := e.store.CreatePayslip(ctx, p); err != nil {
		return "", eris.Wrap(err, "persist payslip")
	}
	entry.PayslipID = p.ID
	return p.ID, nil
}
