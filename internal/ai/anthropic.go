package ai

import (
	"context"

	"go.uber.org/zap"

	"github.com/monbulletin/payslip-cli/internal/cost"
	"github.com/monbulletin/payslip-cli/internal/fetcher"
	"github.com/monbulletin/payslip-cli/pkg/anthropic"
)

// AnthropicProvider implements Provider over the Anthropic message API.
type AnthropicProvider struct {
	client    anthropic.Client
	calc      *cost.Calculator
	model     string
	maxTokens int64
}

// Options configures the Anthropic provider.
type Options struct {
	Model     string
	MaxTokens int64
	// Calculator prices each call from configured rates. When nil the
	// SDK wrapper's built-in rates are used.
	Calculator *cost.Calculator
}

func NewAnthropicProvider(client anthropic.Client, opts Options) *AnthropicProvider {
	if opts.Model == "" {
		opts.Model = "claude-haiku-4-5-20251001"
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 2048
	}
	return &AnthropicProvider{
		client:    client,
		calc:      opts.Calculator,
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
	}
}

func (p *AnthropicProvider) price(u anthropic.TokenUsage) float64 {
	if p.calc != nil {
		return p.calc.Claude(p.model, u.InputTokens, u.OutputTokens,
			u.CacheCreationInputTokens, u.CacheReadInputTokens)
	}
	return u.EstimateCost(p.model)
}

// Analyze sends the document inline and parses the JSON answer. On a parse
// failure the returned Result still carries the raw response and token usage
// so the caller can log the attempt fully.
func (p *AnthropicProvider) Analyze(ctx context.Context, doc *fetcher.Document) (*Result, error) {
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System: []anthropic.SystemBlock{
			{Text: SystemPrompt(), CacheControl: &anthropic.CacheControl{TTL: "5m"}},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: userPrompt, Document: doc.Data},
		},
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		Model:        p.model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		CostUSD:      p.price(resp.Usage),
		RawResponse:  resp.Text(),
	}
	resp.Usage.LogCost(p.model, "payslip_extraction")

	fields, err := parseFields(res.RawResponse)
	if err != nil {
		zap.L().Warn("ai response is not valid json",
			zap.String("model", p.model),
			zap.String("file", doc.Name),
			zap.Error(err),
		)
		return res, err
	}
	res.Fields = *fields
	return res, nil
}
