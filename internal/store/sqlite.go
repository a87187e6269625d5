package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/monbulletin/payslip-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS extraction_logs (
	id                 TEXT PRIMARY KEY,
	file               TEXT NOT NULL,
	method             TEXT NOT NULL,
	ai_model           TEXT,
	success            BOOLEAN NOT NULL,
	error_type         TEXT,
	error_message      TEXT,
	error_stack        TEXT,
	raw_response       TEXT,
	extracted_data     TEXT,
	validation_errors  TEXT,
	input_tokens       INTEGER NOT NULL DEFAULT 0,
	output_tokens      INTEGER NOT NULL DEFAULT 0,
	cost_usd           REAL NOT NULL DEFAULT 0,
	processing_time_ms INTEGER NOT NULL DEFAULT 0,
	payslip_id         TEXT,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_extraction_logs_success ON extraction_logs(success);
CREATE INDEX IF NOT EXISTS idx_extraction_logs_error_type ON extraction_logs(error_type);
CREATE INDEX IF NOT EXISTS idx_extraction_logs_method ON extraction_logs(method);
CREATE INDEX IF NOT EXISTS idx_extraction_logs_created_at ON extraction_logs(created_at);

CREATE TABLE IF NOT EXISTS payslips (
	id         TEXT PRIMARY KEY,
	file_name  TEXT NOT NULL,
	file_url   TEXT,
	fields     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_payslips_created_at ON payslips(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AppendLog(ctx context.Context, entry *model.ExtractionLogEntry) error {
	prepareEntry(entry)

	fileJSON, dataJSON, violationsJSON, err := marshalLogEntry(entry)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extraction_logs
		 (id, file, method, ai_model, success, error_type, error_message, error_stack, raw_response,
		  extracted_data, validation_errors, input_tokens, output_tokens, cost_usd, processing_time_ms,
		  payslip_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(fileJSON), string(entry.Method), nullStr(entry.AIModel), entry.Success,
		nullStr(string(entry.ErrorType)), nullStr(entry.ErrorMessage), nullStr(entry.ErrorStack),
		nullStr(entry.RawResponse), dataJSON, violationsJSON,
		entry.InputTokens, entry.OutputTokens, entry.CostUSD, entry.ProcessingTimeMs,
		nullStr(entry.PayslipID), entry.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append extraction log")
}

func (s *SQLiteStore) GetLog(ctx context.Context, id string) (*model.ExtractionLogEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file, method, ai_model, success, error_type, error_message, error_stack,
		 raw_response, extracted_data, validation_errors, input_tokens, output_tokens, cost_usd,
		 processing_time_ms, payslip_id, created_at FROM extraction_logs WHERE id = ?`, id)
	entry, err := scanLogEntry(row)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get extraction log %s", id)
	}
	return entry, nil
}

func (s *SQLiteStore) ListLogs(ctx context.Context, filter LogFilter) ([]model.ExtractionLogEntry, error) {
	query := `SELECT id, file, method, ai_model, success, error_type, error_message, error_stack,
		raw_response, extracted_data, validation_errors, input_tokens, output_tokens, cost_usd,
		processing_time_ms, payslip_id, created_at FROM extraction_logs WHERE 1=1`
	var args []any

	if filter.Success != nil {
		query += ` AND success = ?`
		args = append(args, *filter.Success)
	}
	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, string(filter.ErrorType))
	}
	if filter.Method != "" {
		query += ` AND method = ?`
		args = append(args, string(filter.Method))
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since)
	}
	query += ` ORDER BY created_at DESC`

	take := filter.Take
	if take <= 0 {
		take = 100
	}
	query += ` LIMIT ?`
	args = append(args, take)
	if filter.Skip > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Skip)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list extraction logs")
	}
	defer rows.Close()

	var entries []model.ExtractionLogEntry
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan extraction log")
		}
		entries = append(entries, *entry)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list extraction logs iterate")
}

func (s *SQLiteStore) AggregateErrors(ctx context.Context) (*model.ErrorStats, error) {
	stats := &model.ErrorStats{
		ByType:   make(map[model.ErrorKind]int64),
		ByMethod: make(map[model.ExtractionMethod]int64),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT error_type, COUNT(*) FROM extraction_logs WHERE success = 0 GROUP BY error_type`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: aggregate errors by type")
	}
	defer rows.Close()
	for rows.Next() {
		var kind sql.NullString
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan error type count")
		}
		k := model.ErrKindUnknown
		if kind.String != "" {
			k = model.ErrorKind(kind.String)
		}
		stats.ByType[k] += count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: aggregate errors by type iterate")
	}

	mrows, err := s.db.QueryContext(ctx,
		`SELECT method, COUNT(*) FROM extraction_logs WHERE success = 0 GROUP BY method`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: aggregate errors by method")
	}
	defer mrows.Close()
	for mrows.Next() {
		var method string
		var count int64
		if err := mrows.Scan(&method, &count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan method count")
		}
		stats.ByMethod[model.ExtractionMethod(method)] = count
	}
	return stats, eris.Wrap(mrows.Err(), "sqlite: aggregate errors by method iterate")
}

func (s *SQLiteStore) DeleteAllLogs(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM extraction_logs`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete extraction logs")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) CreatePayslip(ctx context.Context, p *model.Payslip) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	fieldsJSON, err := json.Marshal(p.Fields)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal payslip fields")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO payslips (id, file_name, file_url, fields, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.FileName, nullStr(p.FileURL), string(fieldsJSON), p.CreatedAt)
	return eris.Wrap(err, "sqlite: insert payslip")
}

func (s *SQLiteStore) GetPayslip(ctx context.Context, id string) (*model.Payslip, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file_name, file_url, fields, created_at FROM payslips WHERE id = ?`, id)
	p, err := scanPayslip(row)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get payslip %s", id)
	}
	return p, nil
}

func (s *SQLiteStore) ListPayslips(ctx context.Context, limit, offset int) ([]model.Payslip, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name, file_url, fields, created_at FROM payslips ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list payslips")
	}
	defer rows.Close()

	var payslips []model.Payslip
	for rows.Next() {
		p, err := scanPayslip(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan payslip")
		}
		payslips = append(payslips, *p)
	}
	return payslips, eris.Wrap(rows.Err(), "sqlite: list payslips iterate")
}

func (s *SQLiteStore) UpdatePayslip(ctx context.Context, p *model.Payslip) error {
	fieldsJSON, err := json.Marshal(p.Fields)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal payslip fields")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE payslips SET file_name = ?, file_url = ?, fields = ? WHERE id = ?`,
		p.FileName, nullStr(p.FileURL), string(fieldsJSON), p.ID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update payslip %s", p.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeletePayslip(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM payslips WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete payslip %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
