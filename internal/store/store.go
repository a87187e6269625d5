// Package store persists payslips and the extraction audit log. Two backends
// exist: Postgres for the service deployment and SQLite for single-user CLI
// work.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/monbulletin/payslip-cli/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// LogFilter specifies criteria for listing extraction log entries.
type LogFilter struct {
	Success   *bool                  `json:"success,omitempty"`
	ErrorType model.ErrorKind        `json:"errorType,omitempty"`
	Method    model.ExtractionMethod `json:"method,omitempty"`
	Since     time.Time              `json:"since,omitempty"`
	Skip      int                    `json:"skip,omitempty"`
	Take      int                    `json:"take,omitempty"`
}

// Store defines the persistence interface for the extraction engine. Log
// entries are append-only: they are written once and never updated, and the
// only way to remove them is the bulk delete.
type Store interface {
	// Extraction audit log
	AppendLog(ctx context.Context, entry *model.ExtractionLogEntry) error
	GetLog(ctx context.Context, id string) (*model.ExtractionLogEntry, error)
	ListLogs(ctx context.Context, filter LogFilter) ([]model.ExtractionLogEntry, error)
	AggregateErrors(ctx context.Context) (*model.ErrorStats, error)
	DeleteAllLogs(ctx context.Context) (int64, error)

	// Payslips
	CreatePayslip(ctx context.Context, p *model.Payslip) error
	GetPayslip(ctx context.Context, id string) (*model.Payslip, error)
	ListPayslips(ctx context.Context, limit, offset int) ([]model.Payslip, error)
	UpdatePayslip(ctx context.Context, p *model.Payslip) error
	DeletePayslip(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
