package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monbulletin/payslip-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_AppendLog(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO extraction_logs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "ai", pgxmock.AnyArg(), true,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	entry := &model.ExtractionLogEntry{
		File:    model.FileInfo{Name: "mars.pdf"},
		Method:  model.MethodAI,
		AIModel: "claude-haiku-4-5-20251001",
		Success: true,
	}
	err := s.AppendLog(context.Background(), entry)
	require.NoError(t, err)

	// Identity and timestamp are assigned at append time.
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLog_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM extraction_logs WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetLog(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListLogs_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	success := false
	mock.ExpectQuery(`FROM extraction_logs WHERE 1=1 AND success = \$1 AND error_type = \$2 ORDER BY created_at DESC LIMIT \$3`).
		WithArgs(false, "network_error", 50).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "file", "method", "ai_model", "success", "error_type", "error_message",
			"error_stack", "raw_response", "extracted_data", "validation_errors",
			"input_tokens", "output_tokens", "cost_usd", "processing_time_ms", "payslip_id", "created_at",
		}))

	entries, err := s.ListLogs(context.Background(), LogFilter{
		Success:   &success,
		ErrorType: model.ErrKindNetwork,
		Take:      50,
	})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AggregateErrors(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT error_type, COUNT\(\*\) FROM extraction_logs WHERE success = false GROUP BY error_type`).
		WillReturnRows(pgxmock.NewRows([]string{"error_type", "count"}).
			AddRow("network_error", int64(3)).
			AddRow("parsing_error", int64(2)))
	mock.ExpectQuery(`SELECT method, COUNT\(\*\) FROM extraction_logs WHERE success = false GROUP BY method`).
		WillReturnRows(pgxmock.NewRows([]string{"method", "count"}).
			AddRow("traditional", int64(4)).
			AddRow("ai", int64(1)))

	stats, err := s.AggregateErrors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Total)
	assert.Equal(t, int64(3), stats.ByType[model.ErrKindNetwork])
	assert.Equal(t, int64(2), stats.ByType[model.ErrKindParsing])
	assert.Equal(t, int64(4), stats.ByMethod[model.MethodTraditional])
	assert.Equal(t, int64(1), stats.ByMethod[model.MethodAI])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteAllLogs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM extraction_logs`).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := s.DeleteAllLogs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeletePayslip_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM payslips WHERE id = \$1`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeletePayslip(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
