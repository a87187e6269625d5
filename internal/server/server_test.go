package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monbulletin/payslip-cli/internal/engine"
	"github.com/monbulletin/payslip-cli/internal/fetcher"
	"github.com/monbulletin/payslip-cli/internal/model"
	"github.com/monbulletin/payslip-cli/internal/resilience"
	"github.com/monbulletin/payslip-cli/internal/schema"
	"github.com/monbulletin/payslip-cli/internal/store"
)

const testPayslipText = `BULLETIN DE SALAIRE
Paie du 31/03/2024
Employeur : MARTIN Sophie
Salarié : DUPONT Jean
Salaire brut 1 800,00
Net à payer 1 234,56
`

type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, rawURL string) (*fetcher.Document, error) {
	return &fetcher.Document{
		Data:     []byte("%PDF-1.4 stub"),
		Name:     "mars.pdf",
		MimeType: "application/pdf",
		URL:      rawURL,
	}, nil
}

type stubText struct{ text string }

func (s stubText) ExtractText(context.Context, []byte) (string, error) {
	return s.text, nil
}

func newTestServer(t *testing.T) (http.Handler, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	v, err := schema.NewValidator()
	require.NoError(t, err)

	eng := engine.New(engine.Config{
		Fetcher:   stubFetcher{},
		Text:      stubText{text: testPayslipText},
		Validator: v,
		Store:     st,
		Retry:     resilience.RetryConfig{MaxAttempts: 1, InitialBackoff: 1, Multiplier: 1},
	})
	return NewHandler(Deps{Engine: eng, Store: st}), st
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var status map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, "ok", status["store"])
}

func TestServer_Extract_Traditional(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/extractions", ExtractionRequest{
		URL:    "https://files.example.com/mars.pdf",
		Method: "traditional",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res model.ExtractionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, model.MethodTraditional, res.Method)
	assert.Equal(t, "DUPONT Jean", res.EmployeeName)
	assert.InDelta(t, 1234.56, res.NetToPay, 1e-9)
}

func TestServer_Extract_HybridPersistsPayslip(t *testing.T) {
	h, st := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/extractions", ExtractionRequest{
		URL: "https://files.example.com/mars.pdf",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res model.ExtractionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.PayslipID)

	p, err := st.GetPayslip(context.Background(), res.PayslipID)
	require.NoError(t, err)
	assert.Equal(t, "DUPONT Jean", p.Fields.EmployeeName)
}

func TestServer_Extract_BadRequests(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/extractions", ExtractionRequest{Method: "hybrid"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/extractions", ExtractionRequest{
		URL: "x", Method: "telepathy",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/extractions", bytes.NewBufferString("{"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Logs(t *testing.T) {
	h, st := newTestServer(t)
	ctx := context.Background()

	entry := &model.ExtractionLogEntry{
		File:      model.FileInfo{Name: "mars.pdf"},
		Method:    model.MethodAI,
		Success:   false,
		ErrorType: model.ErrKindNetwork,
	}
	require.NoError(t, st.AppendLog(ctx, entry))

	rec := doJSON(t, h, http.MethodGet, "/api/logs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []model.ExtractionLogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)

	rec = doJSON(t, h, http.MethodGet, "/api/logs?success=false&errorType=network_error", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 1)

	rec = doJSON(t, h, http.MethodGet, "/api/logs?success=notabool", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/logs/"+entry.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.ExtractionLogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, entry.ID, got.ID)

	rec = doJSON(t, h, http.MethodGet, "/api/logs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_LogStatsAndClear(t *testing.T) {
	h, st := newTestServer(t)
	ctx := context.Background()

	for range 2 {
		require.NoError(t, st.AppendLog(ctx, &model.ExtractionLogEntry{
			File:      model.FileInfo{Name: "mars.pdf"},
			Method:    model.MethodTraditional,
			ErrorType: model.ErrKindValidation,
		}))
	}

	rec := doJSON(t, h, http.MethodGet, "/api/logs/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats model.ErrorStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(2), stats.ByType[model.ErrKindValidation])

	rec = doJSON(t, h, http.MethodDelete, "/api/logs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deleted))
	assert.Equal(t, int64(2), deleted["deleted"])
}

func TestServer_Payslips(t *testing.T) {
	h, st := newTestServer(t)
	ctx := context.Background()

	p := &model.Payslip{
		FileName: "mars.pdf",
		Fields:   model.ExtractedFields{EmployeeName: "DUPONT Jean", NetToPay: 1234.56},
	}
	require.NoError(t, st.CreatePayslip(ctx, p))

	rec := doJSON(t, h, http.MethodGet, "/api/payslips", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Payslip
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = doJSON(t, h, http.MethodGet, "/api/payslips/"+p.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	p.Fields.NetToPay = 1300
	rec = doJSON(t, h, http.MethodPut, "/api/payslips/"+p.ID, p)
	require.Equal(t, http.StatusOK, rec.Code)
	got, err := st.GetPayslip(ctx, p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1300, got.Fields.NetToPay, 1e-9)

	rec = doJSON(t, h, http.MethodDelete, "/api/payslips/"+p.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/payslips/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_NoStore(t *testing.T) {
	v, err := schema.NewValidator()
	require.NoError(t, err)
	eng := engine.New(engine.Config{
		Fetcher:   stubFetcher{},
		Text:      stubText{text: testPayslipText},
		Validator: v,
	})
	h := NewHandler(Deps{Engine: eng})

	rec := doJSON(t, h, http.MethodGet, "/api/logs", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
