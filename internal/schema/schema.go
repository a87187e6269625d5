// Package schema enforces the payslip field constraints on candidate
// extraction results. Validation is pure: same candidate, same verdict.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/monbulletin/payslip-cli/internal/model"
)

// payslipSchemaJSON is the single source of truth for field constraints. The
// same document is handed to the AI provider as its structured-output
// contract, so both extraction layers answer to identical rules.
const payslipSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["netToPay", "netBeforeTax", "netTaxable", "grossSalary", "hoursWorked"],
  "properties": {
    "employeeName": {"type": "string", "maxLength": 255},
    "employerName": {"type": "string", "maxLength": 255},
    "employeeAddress": {"type": "string", "maxLength": 255},
    "siretNumber": {"type": "string", "pattern": "^[0-9]{14}$"},
    "urssafNumber": {"type": "string", "maxLength": 32},
    "cesuNumber": {"type": "string", "pattern": "^Z[0-9]+$"},
    "periodMonth": {"type": "integer", "minimum": 1, "maximum": 12},
    "periodYear": {"type": "integer", "minimum": 2000, "maximum": 2100},
    "netToPay": {"type": "number", "minimum": 0},
    "netBeforeTax": {"type": "number", "minimum": 0},
    "netTaxable": {"type": "number", "minimum": 0},
    "grossSalary": {"type": "number", "minimum": 0},
    "taxAmount": {"type": "number", "minimum": 0},
    "hoursWorked": {"type": "number", "minimum": 0, "maximum": 744},
    "hourlyNetTaxable": {"type": "number", "minimum": 0},
    "isCesu": {"type": "boolean"}
  },
  "additionalProperties": false
}`

// PayslipSchemaJSON returns the JSON Schema document shared with the AI
// provider.
func PayslipSchemaJSON() string { return payslipSchemaJSON }

// Error carries the structured constraint violations of a rejected candidate.
type Error struct {
	Violations []model.FieldViolation
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return "schema validation failed: " + strings.Join(parts, "; ")
}

// IncompleteError reports that a candidate is missing required-for-completeness
// fields. It is raised before full schema validation runs.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return "validation: incomplete extraction, missing " + strings.Join(e.Missing, ", ")
}

// Validator validates candidates against the payslip schema.
type Validator struct {
	sch *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("payslip.json", strings.NewReader(payslipSchemaJSON)); err != nil {
		return nil, eris.Wrap(err, "add payslip schema resource")
	}
	sch, err := c.Compile("payslip.json")
	if err != nil {
		return nil, eris.Wrap(err, "compile payslip schema")
	}
	return &Validator{sch: sch}, nil
}

// Validate checks f against the payslip schema. A rejection is returned as
// *Error with one violation per failed constraint; any other error is an
// internal marshaling fault.
func (v *Validator) Validate(f *model.ExtractedFields) error {
	inst, err := instance(f)
	if err != nil {
		return err
	}
	err = v.sch.Validate(inst)
	if err == nil {
		return nil
	}
	ve := &jsonschema.ValidationError{}
	if !errors.As(err, &ve) {
		return eris.Wrap(err, "validate payslip candidate")
	}
	return &Error{Violations: violations(ve)}
}

// instance builds the JSON value validated against the schema. The money
// fields and hoursWorked are written even at zero so the required-presence
// checks see them; optional identifiers are written only when set, keeping
// range rules off absent values.
func instance(f *model.ExtractedFields) (any, error) {
	m := map[string]any{
		"netToPay":     f.NetToPay,
		"netBeforeTax": f.NetBeforeTax,
		"netTaxable":   f.NetTaxable,
		"grossSalary":  f.GrossSalary,
		"hoursWorked":  f.HoursWorked,
	}
	if f.EmployeeName != "" {
		m["employeeName"] = f.EmployeeName
	}
	if f.EmployerName != "" {
		m["employerName"] = f.EmployerName
	}
	if f.EmployeeAddress != "" {
		m["employeeAddress"] = f.EmployeeAddress
	}
	if f.SiretNumber != "" {
		m["siretNumber"] = f.SiretNumber
	}
	if f.UrssafNumber != "" {
		m["urssafNumber"] = f.UrssafNumber
	}
	if f.CesuNumber != "" {
		m["cesuNumber"] = f.CesuNumber
	}
	if f.PeriodMonth != 0 {
		m["periodMonth"] = f.PeriodMonth
	}
	if f.PeriodYear != 0 {
		m["periodYear"] = f.PeriodYear
	}
	if f.TaxAmount != 0 {
		m["taxAmount"] = f.TaxAmount
	}
	if f.HourlyNetTaxable != 0 {
		m["hourlyNetTaxable"] = f.HourlyNetTaxable
	}
	if f.IsCesu {
		m["isCesu"] = true
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "marshal payslip candidate")
	}
	var inst any
	if err := json.Unmarshal(raw, &inst); err != nil {
		return nil, eris.Wrap(err, "decode payslip candidate")
	}
	return inst, nil
}

// violations flattens the compiler's error tree into per-field messages. Leaf
// causes carry the actual constraint that failed.
func violations(ve *jsonschema.ValidationError) []model.FieldViolation {
	if len(ve.Causes) == 0 {
		field := strings.TrimPrefix(ve.InstanceLocation, "/")
		if field == "" {
			field = "(root)"
		}
		return []model.FieldViolation{{Field: field, Message: ve.Message}}
	}
	var out []model.FieldViolation
	for _, c := range ve.Causes {
		out = append(out, violations(c)...)
	}
	return out
}
