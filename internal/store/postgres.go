package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/monbulletin/payslip-cli/internal/db"
	"github.com/monbulletin/payslip-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for the
// hot store operations.
var preparedStatements = map[string]string{
	"append_log": `INSERT INTO extraction_logs
		(id, file, method, ai_model, success, error_type, error_message, error_stack, raw_response,
		 extracted_data, validation_errors, input_tokens, output_tokens, cost_usd, processing_time_ms,
		 payslip_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
	"get_log": `SELECT id, file, method, ai_model, success, error_type, error_message, error_stack,
		raw_response, extracted_data, validation_errors, input_tokens, output_tokens, cost_usd,
		processing_time_ms, payslip_id, created_at FROM extraction_logs WHERE id = $1`,
	"insert_payslip": `INSERT INTO payslips (id, file_name, file_url, fields, created_at) VALUES ($1, $2, $3, $4, $5)`,
	"get_payslip":    `SELECT id, file_name, file_url, fields, created_at FROM payslips WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS extraction_logs (
	id                 TEXT PRIMARY KEY,
	file               JSONB NOT NULL,
	method             TEXT NOT NULL,
	ai_model           TEXT,
	success            BOOLEAN NOT NULL,
	error_type         TEXT,
	error_message      TEXT,
	error_stack        TEXT,
	raw_response       TEXT,
	extracted_data     JSONB,
	validation_errors  JSONB,
	input_tokens       BIGINT NOT NULL DEFAULT 0,
	output_tokens      BIGINT NOT NULL DEFAULT 0,
	cost_usd           DOUBLE PRECISION NOT NULL DEFAULT 0,
	processing_time_ms BIGINT NOT NULL DEFAULT 0,
	payslip_id         TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_extraction_logs_success ON extraction_logs(success);
CREATE INDEX IF NOT EXISTS idx_extraction_logs_error_type ON extraction_logs(error_type);
CREATE INDEX IF NOT EXISTS idx_extraction_logs_method ON extraction_logs(method);
CREATE INDEX IF NOT EXISTS idx_extraction_logs_created_at ON extraction_logs(created_at DESC);

CREATE TABLE IF NOT EXISTS payslips (
	id         TEXT PRIMARY KEY,
	file_name  TEXT NOT NULL,
	file_url   TEXT,
	fields     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_payslips_created_at ON payslips(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) AppendLog(ctx context.Context, entry *model.ExtractionLogEntry) error {
	prepareEntry(entry)

	fileJSON, dataJSON, violationsJSON, err := marshalLogEntry(entry)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, preparedStatements["append_log"],
		entry.ID, fileJSON, string(entry.Method), nullStr(entry.AIModel), entry.Success,
		nullStr(string(entry.ErrorType)), nullStr(entry.ErrorMessage), nullStr(entry.ErrorStack),
		nullStr(entry.RawResponse), dataJSON, violationsJSON,
		entry.InputTokens, entry.OutputTokens, entry.CostUSD, entry.ProcessingTimeMs,
		nullStr(entry.PayslipID), entry.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append extraction log")
}

func (s *PostgresStore) GetLog(ctx context.Context, id string) (*model.ExtractionLogEntry, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["get_log"], id)
	entry, err := scanLogEntry(row)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get extraction log %s", id)
	}
	return entry, nil
}

func (s *PostgresStore) ListLogs(ctx context.Context, filter LogFilter) ([]model.ExtractionLogEntry, error) {
	query := `SELECT id, file, method, ai_model, success, error_type, error_message, error_stack,
		raw_response, extracted_data, validation_errors, input_tokens, output_tokens, cost_usd,
		processing_time_ms, payslip_id, created_at FROM extraction_logs WHERE 1=1`
	var args []any

	if filter.Success != nil {
		args = append(args, *filter.Success)
		query += fmt.Sprintf(" AND success = $%d", len(args))
	}
	if filter.ErrorType != "" {
		args = append(args, string(filter.ErrorType))
		query += fmt.Sprintf(" AND error_type = $%d", len(args))
	}
	if filter.Method != "" {
		args = append(args, string(filter.Method))
		query += fmt.Sprintf(" AND method = $%d", len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	take := filter.Take
	if take <= 0 {
		take = 100
	}
	args = append(args, take)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Skip > 0 {
		args = append(args, filter.Skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list extraction logs")
	}
	defer rows.Close()

	var entries []model.ExtractionLogEntry
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan extraction log")
		}
		entries = append(entries, *entry)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list extraction logs iterate")
}

func (s *PostgresStore) AggregateErrors(ctx context.Context) (*model.ErrorStats, error) {
	stats := &model.ErrorStats{
		ByType:   make(map[model.ErrorKind]int64),
		ByMethod: make(map[model.ExtractionMethod]int64),
	}

	rows, err := s.pool.Query(ctx,
		`SELECT error_type, COUNT(*) FROM extraction_logs WHERE success = false GROUP BY error_type`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: aggregate errors by type")
	}
	defer rows.Close()
	for rows.Next() {
		var kind sql.NullString
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan error type count")
		}
		k := model.ErrKindUnknown
		if kind.String != "" {
			k = model.ErrorKind(kind.String)
		}
		stats.ByType[k] += count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: aggregate errors by type iterate")
	}

	mrows, err := s.pool.Query(ctx,
		`SELECT method, COUNT(*) FROM extraction_logs WHERE success = false GROUP BY method`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: aggregate errors by method")
	}
	defer mrows.Close()
	for mrows.Next() {
		var method string
		var count int64
		if err := mrows.Scan(&method, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan method count")
		}
		stats.ByMethod[model.ExtractionMethod(method)] = count
	}
	return stats, eris.Wrap(mrows.Err(), "postgres: aggregate errors by method iterate")
}

func (s *PostgresStore) DeleteAllLogs(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM extraction_logs`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete extraction logs")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CreatePayslip(ctx context.Context, p *model.Payslip) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	fieldsJSON, err := json.Marshal(p.Fields)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal payslip fields")
	}
	_, err = s.pool.Exec(ctx, preparedStatements["insert_payslip"],
		p.ID, p.FileName, nullStr(p.FileURL), fieldsJSON, p.CreatedAt)
	return eris.Wrap(err, "postgres: insert payslip")
}

func (s *PostgresStore) GetPayslip(ctx context.Context, id string) (*model.Payslip, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["get_payslip"], id)
	p, err := scanPayslip(row)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get payslip %s", id)
	}
	return p, nil
}

func (s *PostgresStore) ListPayslips(ctx context.Context, limit, offset int) ([]model.Payslip, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, file_name, file_url, fields, created_at FROM payslips ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list payslips")
	}
	defer rows.Close()

	var payslips []model.Payslip
	for rows.Next() {
		p, err := scanPayslip(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan payslip")
		}
		payslips = append(payslips, *p)
	}
	return payslips, eris.Wrap(rows.Err(), "postgres: list payslips iterate")
}

func (s *PostgresStore) UpdatePayslip(ctx context.Context, p *model.Payslip) error {
	fieldsJSON, err := json.Marshal(p.Fields)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal payslip fields")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE payslips SET file_name = $2, file_url = $3, fields = $4 WHERE id = $1`,
		p.ID, p.FileName, nullStr(p.FileURL), fieldsJSON)
	if err != nil {
		return eris.Wrapf(err, "postgres: update payslip %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeletePayslip(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM payslips WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete payslip %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- shared helpers ---

// prepareEntry fills identity and timestamp before the append. Entries are
// immutable afterwards.
func prepareEntry(entry *model.ExtractionLogEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
}

// marshalLogEntry serializes the JSON columns. A nil slice is stored as NULL.
func marshalLogEntry(entry *model.ExtractionLogEntry) (fileJSON, dataJSON, violationsJSON []byte, err error) {
	fileJSON, err = json.Marshal(entry.File)
	if err != nil {
		return nil, nil, nil, eris.Wrap(err, "marshal log file info")
	}
	if entry.ExtractedData != nil {
		dataJSON, err = json.Marshal(entry.ExtractedData)
		if err != nil {
			return nil, nil, nil, eris.Wrap(err, "marshal log extracted data")
		}
	}
	if len(entry.ValidationErrors) > 0 {
		violationsJSON, err = json.Marshal(entry.ValidationErrors)
		if err != nil {
			return nil, nil, nil, eris.Wrap(err, "marshal log validation errors")
		}
	}
	return fileJSON, dataJSON, violationsJSON, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLogEntry(row scannable) (*model.ExtractionLogEntry, error) {
	var entry model.ExtractionLogEntry
	var method string
	var aiModel, errorType, errorMessage, errorStack, rawResponse, payslipID sql.NullString
	var fileJSON []byte
	var dataJSON, violationsJSON []byte

	err := row.Scan(&entry.ID, &fileJSON, &method, &aiModel, &entry.Success,
		&errorType, &errorMessage, &errorStack, &rawResponse, &dataJSON, &violationsJSON,
		&entry.InputTokens, &entry.OutputTokens, &entry.CostUSD, &entry.ProcessingTimeMs,
		&payslipID, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}

	entry.Method = model.ExtractionMethod(method)
	entry.AIModel = aiModel.String
	entry.ErrorType = model.ErrorKind(errorType.String)
	entry.ErrorMessage = errorMessage.String
	entry.ErrorStack = errorStack.String
	entry.RawResponse = rawResponse.String
	entry.PayslipID = payslipID.String

	if err := json.Unmarshal(fileJSON, &entry.File); err != nil {
		return nil, eris.Wrap(err, "unmarshal log file info")
	}
	if len(dataJSON) > 0 {
		entry.ExtractedData = &model.ExtractedFields{}
		if err := json.Unmarshal(dataJSON, entry.ExtractedData); err != nil {
			return nil, eris.Wrap(err, "unmarshal log extracted data")
		}
	}
	if len(violationsJSON) > 0 {
		if err := json.Unmarshal(violationsJSON, &entry.ValidationErrors); err != nil {
			return nil, eris.Wrap(err, "unmarshal log validation errors")
		}
	}
	return &entry, nil
}

func scanPayslip(row scannable) (*model.Payslip, error) {
	var p model.Payslip
	var fileURL sql.NullString
	var fieldsJSON []byte

	if err := row.Scan(&p.ID, &p.FileName, &fileURL, &fieldsJSON, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.FileURL = fileURL.String
	if err := json.Unmarshal(fieldsJSON, &p.Fields); err != nil {
		return nil, eris.Wrap(err, "unmarshal payslip fields")
	}
	return &p, nil
}
