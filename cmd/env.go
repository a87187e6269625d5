package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/monbulletin/payslip-cli/internal/ai"
	"github.com/monbulletin/payslip-cli/internal/config"
	"github.com/monbulletin/payslip-cli/internal/cost"
	"github.com/monbulletin/payslip-cli/internal/engine"
	"github.com/monbulletin/payslip-cli/internal/fetcher"
	"github.com/monbulletin/payslip-cli/internal/pdftext"
	"github.com/monbulletin/payslip-cli/internal/resilience"
	"github.com/monbulletin/payslip-cli/internal/schema"
	"github.com/monbulletin/payslip-cli/internal/store"
	"github.com/monbulletin/payslip-cli/pkg/anthropic"
)

// appEnv holds the wired extraction environment shared by the commands.
type appEnv struct {
	Engine *engine.Engine
	Store  store.Store
}

func (e *appEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("closing store", zap.Error(err))
		}
	}
}

// openStore builds the configured storage backend.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEngine wires the full extraction environment from configuration. When
// no Anthropic key is configured the AI layer is disabled and only pattern
// extraction is available.
func initEngine(ctx context.Context) (*appEnv, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	textExtractor, err := pdftext.NewExtractor(cfg.Extraction.PDFProvider, cfg.Extraction.PdfToTextPath)
	if err != nil {
		st.Close()
		return nil, err
	}

	var provider ai.Provider
	if cfg.Anthropic.Key != "" {
		calc := cost.NewCalculator(pricingRates(cfg))
		provider = ai.NewAnthropicProvider(anthropic.NewClient(cfg.Anthropic.Key), ai.Options{
			Model:      cfg.Anthropic.Model,
			MaxTokens:  cfg.Anthropic.MaxTokens,
			Calculator: calc,
		})
	} else {
		zap.L().Warn("no anthropic key configured, ai extraction disabled")
	}

	validator, err := schema.NewValidator()
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "compile schema")
	}

	eng := engine.New(engine.Config{
		Fetcher: fetcher.New(fetcher.Options{
			UserAgent: cfg.Fetch.UserAgent,
			Timeout:   cfg.Fetch.Timeout(),
			MaxSize:   cfg.Fetch.MaxSize(),
			RateLimit: rate.Limit(cfg.Fetch.RateLimit),
			Burst:     cfg.Fetch.Burst,
		}),
		Text:      textExtractor,
		Provider:  provider,
		Validator: validator,
		Store:     st,
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.Extraction.MaxAttempts,
			InitialBackoff: cfg.Extraction.Backoff(),
		},
	})

	return &appEnv{Engine: eng, Store: st}, nil
}

// pricingRates converts the pricing section into calculator rates.
func pricingRates(cfg *config.Config) cost.Rates {
	if len(cfg.Pricing.Anthropic) == 0 {
		return cost.DefaultRates()
	}
	rates := cost.Rates{Anthropic: make(map[string]cost.ModelRate, len(cfg.Pricing.Anthropic))}
	for model, p := range cfg.Pricing.Anthropic {
		rates.Anthropic[model] = cost.ModelRate{
			Input:         p.Input,
			Output:        p.Output,
			CacheWriteMul: p.CacheWriteMul,
			CacheReadMul:  p.CacheReadMul,
		}
	}
	return rates
}
