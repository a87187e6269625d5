// Package model defines the domain types shared across the extraction
// pipeline: candidate field sets, persisted payslips, and audit log entries.
package model

import "time"

// ExtractedFields is the candidate result of one extraction attempt. A zero
// value means "not found": extraction degrades to partial output rather than
// failing, so every field is optional until the completeness check runs.
// JSON tags double as the structured-output contract sent to the AI provider.
type ExtractedFields struct {
	EmployeeName     string  `json:"employeeName,omitempty"`
	EmployerName     string  `json:"employerName,omitempty"`
	EmployeeAddress  string  `json:"employeeAddress,omitempty"`
	SiretNumber      string  `json:"siretNumber,omitempty"`
	UrssafNumber     string  `json:"urssafNumber,omitempty"`
	CesuNumber       string  `json:"cesuNumber,omitempty"`
	PeriodMonth      int     `json:"periodMonth,omitempty"`
	PeriodYear       int     `json:"periodYear,omitempty"`
	NetToPay         float64 `json:"netToPay,omitempty"`
	NetBeforeTax     float64 `json:"netBeforeTax,omitempty"`
	NetTaxable       float64 `json:"netTaxable,omitempty"`
	GrossSalary      float64 `json:"grossSalary,omitempty"`
	TaxAmount        float64 `json:"taxAmount,omitempty"`
	HoursWorked      float64 `json:"hoursWorked,omitempty"`
	HourlyNetTaxable float64 `json:"hourlyNetTaxable,omitempty"`
	IsCesu           bool    `json:"isCesu,omitempty"`
}

// MissingFields returns the names of required-for-completeness fields that
// are absent or zero. A payslip record is only usable when the employee,
// employer, pay period, net pay and gross salary are all known.
func (f *ExtractedFields) MissingFields() []string {
	var missing []string
	if f.EmployeeName == "" {
		missing = append(missing, "employeeName")
	}
	if f.EmployerName == "" {
		missing = append(missing, "employerName")
	}
	if f.PeriodMonth == 0 {
		missing = append(missing, "periodMonth")
	}
	if f.PeriodYear == 0 {
		missing = append(missing, "periodYear")
	}
	if f.NetToPay == 0 {
		missing = append(missing, "netToPay")
	}
	if f.GrossSalary == 0 {
		missing = append(missing, "grossSalary")
	}
	return missing
}

// Complete reports whether all required-for-completeness fields are set.
func (f *ExtractedFields) Complete() bool {
	return len(f.MissingFields()) == 0
}

// ExtractionResult is what the engine hands back to callers: the validated
// fields plus provenance metadata about how they were obtained.
type ExtractionResult struct {
	ExtractedFields

	Method       ExtractionMethod `json:"method"`
	Model        string           `json:"model,omitempty"`
	InputTokens  int64            `json:"inputTokens,omitempty"`
	OutputTokens int64            `json:"outputTokens,omitempty"`
	CostUSD      float64          `json:"costUsd,omitempty"`
	PayslipID    string           `json:"payslipId,omitempty"`
}

// Payslip is the persisted record created from a complete, schema-valid
// extraction.
type Payslip struct {
	ID        string          `json:"id"`
	FileName  string          `json:"fileName,omitempty"`
	FileURL   string          `json:"fileUrl,omitempty"`
	Fields    ExtractedFields `json:"fields"`
	CreatedAt time.Time       `json:"createdAt"`
}
