package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monbulletin/payslip-cli/internal/fetcher"
	"github.com/monbulletin/payslip-cli/internal/model"
	"github.com/monbulletin/payslip-cli/pkg/anthropic"
)

type stubClient struct {
	resp *anthropic.MessageResponse
	err  error
	req  anthropic.MessageRequest
}

func (s *stubClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.req = req
	return s.resp, s.err
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Model:   "claude-haiku-4-5-20251001",
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 1500, OutputTokens: 200},
	}
}

func testDoc() *fetcher.Document {
	return &fetcher.Document{Data: []byte("%PDF-1.4"), Name: "mars.pdf", MimeType: "application/pdf"}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", `Voici le résultat : {"a":1} merci`, `{"a":1}`},
		{"no object", "pas de json", "pas de json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}

func TestParseFields_Sanitizes(t *testing.T) {
	f, err := parseFields(`{
		"employeeName": "Monsieur Jean DUPONT",
		"employerName": "Madame Sophie MARTIN",
		"siretNumber": "123 456 789 00012",
		"cesuNumber": "Z 123 456",
		"netToPay": 1234.56,
		"taxAmount": -3
	}`)
	require.NoError(t, err)
	assert.Equal(t, "DUPONT Jean", f.EmployeeName)
	assert.Equal(t, "MARTIN Sophie", f.EmployerName)
	assert.Equal(t, "12345678900012", f.SiretNumber)
	assert.Equal(t, "Z123456", f.CesuNumber)
	assert.InDelta(t, 1234.56, f.NetToPay, 1e-9)
	assert.Zero(t, f.TaxAmount)
}

func TestParseFields_MalformedIsParsingError(t *testing.T) {
	_, err := parseFields("je ne peux pas analyser ce document")
	require.Error(t, err)
	assert.Equal(t, model.ErrKindParsing, model.ClassifyError(err))
}

func TestAnalyze_Success(t *testing.T) {
	stub := &stubClient{resp: textResponse("```json\n" + `{"employeeName":"DUPONT Jean","netToPay":1234.56}` + "\n```")}
	p := NewAnthropicProvider(stub, Options{})

	res, err := p.Analyze(context.Background(), testDoc())
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku-4-5-20251001", res.Model)
	assert.Equal(t, int64(1500), res.InputTokens)
	assert.Equal(t, int64(200), res.OutputTokens)
	assert.Greater(t, res.CostUSD, 0.0)
	assert.Equal(t, "DUPONT Jean", res.Fields.EmployeeName)
	assert.InDelta(t, 1234.56, res.Fields.NetToPay, 1e-9)

	// Document attached inline, instructions cached.
	require.Len(t, stub.req.Messages, 1)
	assert.Equal(t, []byte("%PDF-1.4"), stub.req.Messages[0].Document)
	require.Len(t, stub.req.System, 1)
	assert.NotNil(t, stub.req.System[0].CacheControl)
}

func TestAnalyze_ParseFailureKeepsRawResponse(t *testing.T) {
	stub := &stubClient{resp: textResponse("désolé, document illisible")}
	p := NewAnthropicProvider(stub, Options{})

	res, err := p.Analyze(context.Background(), testDoc())
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "désolé, document illisible", res.RawResponse)
	assert.Equal(t, int64(1500), res.InputTokens)
	assert.Equal(t, model.ErrKindParsing, model.ClassifyError(err))
}

func TestAnalyze_APIError(t *testing.T) {
	stub := &stubClient{err: errors.New("anthropic: api call: 529 overloaded")}
	p := NewAnthropicProvider(stub, Options{})

	res, err := p.Analyze(context.Background(), testDoc())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, model.ErrKindAPI, model.ClassifyError(err))
}
