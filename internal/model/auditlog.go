package model

import "time"

// ExtractionMethod identifies which layer produced an extraction attempt.
type ExtractionMethod string

const (
	MethodTraditional ExtractionMethod = "traditional"
	MethodAI          ExtractionMethod = "ai"
	// MethodHybrid is the orchestrator's external label only; individual
	// attempts always log their true method (traditional or ai).
	MethodHybrid ExtractionMethod = "hybrid"
)

// FieldViolation is a single structured constraint violation from validation.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FileInfo identifies the source document of an extraction attempt.
type FileInfo struct {
	Name     string `json:"name,omitempty"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	URL      string `json:"url,omitempty"`
}

// ExtractionLogEntry is the append-only audit record of one extraction
// attempt. Entries are created once, never mutated, and retained until
// explicit bulk deletion.
type ExtractionLogEntry struct {
	ID               string           `json:"id"`
	File             FileInfo         `json:"file"`
	Method           ExtractionMethod `json:"method"`
	AIModel          string           `json:"aiModel,omitempty"`
	Success          bool             `json:"success"`
	ErrorType        ErrorKind        `json:"errorType,omitempty"`
	ErrorMessage     string           `json:"errorMessage,omitempty"`
	ErrorStack       string           `json:"errorStack,omitempty"`
	RawResponse      string           `json:"rawResponse,omitempty"`
	ExtractedData    *ExtractedFields `json:"extractedData,omitempty"`
	ValidationErrors []FieldViolation `json:"validationErrors,omitempty"`
	InputTokens      int64            `json:"inputTokens,omitempty"`
	OutputTokens     int64            `json:"outputTokens,omitempty"`
	CostUSD          float64          `json:"costUsd,omitempty"`
	ProcessingTimeMs int64            `json:"processingTimeMs"`
	PayslipID        string           `json:"payslipId,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// ErrorStats aggregates failed extraction attempts for the audit surface.
type ErrorStats struct {
	Total    int64                      `json:"total"`
	ByType   map[ErrorKind]int64        `json:"byType"`
	ByMethod map[ExtractionMethod]int64 `json:"byMethod"`
}
