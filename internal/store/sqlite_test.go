package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monbulletin/payslip-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleEntry(method model.ExtractionMethod, success bool, kind model.ErrorKind) *model.ExtractionLogEntry {
	e := &model.ExtractionLogEntry{
		File:             model.FileInfo{Name: "mars.pdf", Size: 1234, MimeType: "application/pdf"},
		Method:           method,
		Success:          success,
		ProcessingTimeMs: 42,
	}
	if !success {
		e.ErrorType = kind
		e.ErrorMessage = "boom"
	}
	return e
}

func TestSQLiteStore_AppendAndGetLog(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	entry := sampleEntry(model.MethodAI, true, "")
	entry.AIModel = "claude-haiku-4-5-20251001"
	entry.RawResponse = `{"netToPay":1234.56}`
	entry.ExtractedData = &model.ExtractedFields{NetToPay: 1234.56, EmployeeName: "DUPONT Jean"}
	entry.InputTokens = 1500
	entry.OutputTokens = 200
	entry.CostUSD = 0.002
	require.NoError(t, s.AppendLog(ctx, entry))
	require.NotEmpty(t, entry.ID)

	got, err := s.GetLog(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "mars.pdf", got.File.Name)
	assert.Equal(t, model.MethodAI, got.Method)
	assert.Equal(t, "claude-haiku-4-5-20251001", got.AIModel)
	assert.True(t, got.Success)
	assert.Empty(t, got.ErrorType)
	assert.Equal(t, `{"netToPay":1234.56}`, got.RawResponse)
	require.NotNil(t, got.ExtractedData)
	assert.Equal(t, "DUPONT Jean", got.ExtractedData.EmployeeName)
	assert.InDelta(t, 1234.56, got.ExtractedData.NetToPay, 1e-9)
	assert.Equal(t, int64(1500), got.InputTokens)
}

func TestSQLiteStore_GetLog_NotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.GetLog(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListLogs_Filters(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.AppendLog(ctx, sampleEntry(model.MethodTraditional, false, model.ErrKindValidation)))
	require.NoError(t, s.AppendLog(ctx, sampleEntry(model.MethodAI, false, model.ErrKindNetwork)))
	require.NoError(t, s.AppendLog(ctx, sampleEntry(model.MethodAI, true, "")))

	all, err := s.ListLogs(ctx, LogFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	failed := false
	failures, err := s.ListLogs(ctx, LogFilter{Success: &failed})
	require.NoError(t, err)
	assert.Len(t, failures, 2)

	network, err := s.ListLogs(ctx, LogFilter{ErrorType: model.ErrKindNetwork})
	require.NoError(t, err)
	require.Len(t, network, 1)
	assert.Equal(t, model.MethodAI, network[0].Method)

	ai, err := s.ListLogs(ctx, LogFilter{Method: model.MethodAI})
	require.NoError(t, err)
	assert.Len(t, ai, 2)

	none, err := s.ListLogs(ctx, LogFilter{Since: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStore_ListLogs_Pagination(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for range 5 {
		require.NoError(t, s.AppendLog(ctx, sampleEntry(model.MethodTraditional, true, "")))
	}

	page, err := s.ListLogs(ctx, LogFilter{Take: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := s.ListLogs(ctx, LogFilter{Take: 10, Skip: 4})
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestSQLiteStore_AggregateErrors(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.AppendLog(ctx, sampleEntry(model.MethodTraditional, false, model.ErrKindValidation)))
	require.NoError(t, s.AppendLog(ctx, sampleEntry(model.MethodTraditional, false, model.ErrKindValidation)))
	require.NoError(t, s.AppendLog(ctx, sampleEntry(model.MethodAI, false, model.ErrKindAPI)))
	require.NoError(t, s.AppendLog(ctx, sampleEntry(model.MethodAI, true, "")))

	stats, err := s.AggregateErrors(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.ByType[model.ErrKindValidation])
	assert.Equal(t, int64(1), stats.ByType[model.ErrKindAPI])
	assert.Equal(t, int64(2), stats.ByMethod[model.MethodTraditional])
	assert.Equal(t, int64(1), stats.ByMethod[model.MethodAI])
}

func TestSQLiteStore_DeleteAllLogs(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.AppendLog(ctx, sampleEntry(model.MethodAI, true, "")))
	require.NoError(t, s.AppendLog(ctx, sampleEntry(model.MethodAI, true, "")))

	n, err := s.DeleteAllLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	all, err := s.ListLogs(ctx, LogFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLiteStore_PayslipRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	p := &model.Payslip{
		FileName: "mars.pdf",
		FileURL:  "https://files.example.com/mars.pdf",
		Fields: model.ExtractedFields{
			EmployeeName: "DUPONT Jean",
			EmployerName: "MARTIN Sophie",
			PeriodMonth:  3,
			PeriodYear:   2024,
			NetToPay:     1234.56,
			GrossSalary:  1600,
		},
	}
	require.NoError(t, s.CreatePayslip(ctx, p))
	require.NotEmpty(t, p.ID)

	got, err := s.GetPayslip(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "mars.pdf", got.FileName)
	assert.Equal(t, "DUPONT Jean", got.Fields.EmployeeName)
	assert.InDelta(t, 1234.56, got.Fields.NetToPay, 1e-9)

	list, err := s.ListPayslips(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	got.Fields.NetToPay = 1300
	require.NoError(t, s.UpdatePayslip(ctx, got))
	updated, err := s.GetPayslip(ctx, p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1300, updated.Fields.NetToPay, 1e-9)

	missing := &model.Payslip{ID: "missing", FileName: "x.pdf"}
	assert.ErrorIs(t, s.UpdatePayslip(ctx, missing), ErrNotFound)

	require.NoError(t, s.DeletePayslip(ctx, p.ID))
	_, err = s.GetPayslip(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeletePayslip(ctx, p.ID), ErrNotFound)
}
