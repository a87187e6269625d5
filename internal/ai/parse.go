package ai

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/monbulletin/payslip-cli/internal/model"
	"github.com/monbulletin/payslip-cli/internal/normalize"
)

// cleanJSON strips markdown code fences and trims to the outermost JSON
// object. Models occasionally wrap answers despite instructions.
func cleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

// parseFields decodes the provider's text into extracted fields and runs the
// same normalization the pattern cascade applies, so both layers produce
// identically shaped values.
func parseFields(raw string) (*model.ExtractedFields, error) {
	var f model.ExtractedFields
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &f); err != nil {
		return nil, eris.Wrap(err, "parse json response")
	}
	sanitize(&f)
	return &f, nil
}

func sanitize(f *model.ExtractedFields) {
	if f.EmployeeName != "" {
		f.EmployeeName = normalize.FormatName(f.EmployeeName)
	}
	if f.EmployerName != "" {
		f.EmployerName = normalize.FormatName(f.EmployerName)
	}
	if f.CesuNumber != "" {
		f.CesuNumber = normalize.CleanCesuNumber(f.CesuNumber)
	}
	if f.SiretNumber != "" {
		f.SiretNumber = strings.ReplaceAll(f.SiretNumber, " ", "")
	}
	for _, v := range []*float64{
		&f.NetToPay, &f.NetBeforeTax, &f.NetTaxable, &f.GrossSalary,
		&f.TaxAmount, &f.HoursWorked, &f.HourlyNetTaxable,
	} {
		if *v < 0 {
			*v = 0
		}
	}
}
