// Package extractor recovers structured payslip fields from raw document text
// using an ordered cascade of per-field patterns tuned to French payroll
// vocabulary. Output is always partial; fields the cascade cannot recover stay
// at their zero value and the caller decides whether the result is usable.
package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/monbulletin/payslip-cli/internal/model"
	"github.com/monbulletin/payslip-cli/internal/normalize"
)

var (
	// Amounts: French thousands grouping ("1 234,56"), dotted grouping
	// ("1.234,56") or plain decimals ("1234.56"). A space inside a number is
	// only accepted before a full 3-digit group so that two adjacent amounts
	// on one line are not merged into one token.
	amountRe = regexp.MustCompile(`(?:\d{1,3}(?:[\s\x{00a0}\x{202f}]\d{3})+|\d+)(?:[.,]\d+)*`)

	// Decimal-shaped amounts only. The fallback scan runs over whole lines
	// that may carry dates and counters, so it demands an explicit decimal
	// part to avoid picking up "02" out of "02/04".
	decimalAmountRe = regexp.MustCompile(`(?:\d{1,3}(?:[\s\x{00a0}\x{202f}]\d{3})+|\d+)[.,]\d{2}`)

	netPayLabelRe   = regexp.MustCompile(`net (a )?payer|net paye|net verse|montant (du )?virement`)
	netPayExcludeRe = regexp.MustCompile(`avant impot|de l.?impot`)
	netFallbackRe   = regexp.MustCompile(`net|payer|verse|virement|total`)

	netBeforeTaxRe = regexp.MustCompile(`net[a-z ]*avant impot`)
	netTaxableRe   = regexp.MustCompile(`net imposable|net fiscal`)
	grossRe        = regexp.MustCompile(`salaire brut|total brut|brut total|montant brut|remuneration brute`)
	taxRe          = regexp.MustCompile(`impot sur le revenu preleve a la source|preleve a la source|montant de l.?impot`)
	hoursRe        = regexp.MustCompile(`nombre d.?heures|heures (travaillees|remunerees|normales|payees)|total (des )?heures`)
	hourlyRe       = regexp.MustCompile(`(salaire|taux) horaire( net)?`)

	employeeLabelRe = regexp.MustCompile(`(nom (et prenom|du salarie)|salarie(e)?|employe(e)?)\s*:?\s*`)
	employerLabelRe = regexp.MustCompile(`(nom de l.?employeur|employeur|raison sociale)\s*:?\s*`)
	addressLabelRe  = regexp.MustCompile(`adresse( du salarie)?\s*:?\s*`)

	siretRe  = regexp.MustCompile(`siret\D{0,10}(\d[\d ]{12,20}\d)`)
	urssafRe = regexp.MustCompile(`urssaf\D{0,10}(\d[\d ]{0,18})`)
	cesuRe   = regexp.MustCompile(`cesu`)

	periodHeaderRe = regexp.MustCompile(`(paie du|periode du|bulletin de salaire|bulletin de paie)[^0-9]{0,60}([0-3]?\d)/([01]?\d)/(20\d{2})`)
	periodLooseRe  = regexp.MustCompile(`(^|\s)(du|periode|mois)(\s+de)?\s*:?\s*([01]?\d)/(20\d{2})`)

	mensuelRe   = regexp.MustCompile(`^\s*mensuel\b(.*)$`)
	numTokenRe  = regexp.MustCompile(`^\d[\d.,]*$`)
	digitOnlyRe = regexp.MustCompile(`\D`)
)

// document pairs each raw text line with its folded form (lowercased,
// diacritics stripped). Patterns match on the folded line; name fields are
// read back from the raw line so casing survives for normalization.
type document struct {
	raw    []string
	folded []string
}

func newDocument(text string) *document {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	folded := make([]string, len(raw))
	for i, line := range raw {
		folded[i] = normalize.Fold(line)
	}
	return &document{raw: raw, folded: folded}
}

// rawAfter returns the raw-line suffix corresponding to the folded-line
// suffix starting at byte offset off. Folding preserves rune counts, so the
// mapping is done in runes.
func (d *document) rawAfter(i, off int) string {
	n := utf8.RuneCountInString(d.folded[i][:off])
	r := []rune(d.raw[i])
	if n >= len(r) {
		return ""
	}
	return strings.TrimSpace(string(r[n:]))
}

// fieldExtractors run in priority order. Each is pure over the document and
// fills only the fields it owns; later entries (Mensuel recap, CESU override)
// may only fill gaps or reinterpret identifiers, never clobber an amount an
// earlier pattern already found.
var fieldExtractors = []struct {
	name string
	fn   func(*document, *model.ExtractedFields)
}{
	{"employeeName", extractEmployeeName},
	{"employerName", extractEmployerName},
	{"employeeAddress", extractAddress},
	{"siretNumber", extractSiret},
	{"urssafNumber", extractUrssaf},
	{"cesuNumber", extractCesu},
	{"period", extractPeriod},
	{"netBeforeTax", extractNetBeforeTax},
	{"netToPay", extractNetToPay},
	{"netTaxable", extractNetTaxable},
	{"grossSalary", extractGross},
	{"taxAmount", extractTax},
	{"hoursWorked", extractHours},
	{"hourlyNetTaxable", extractHourly},
	{"mensuelRecap", applyMensuelRow},
	{"cesuOverride", applyCesuOverride},
}

// Extract runs the full cascade over documentText and returns the partial
// result. It never fails; an unreadable document simply yields an empty
// struct.
func Extract(documentText string) *model.ExtractedFields {
	doc := newDocument(documentText)
	fields := &model.ExtractedFields{}
	for _, fe := range fieldExtractors {
		fe.fn(doc, fields)
	}
	return fields
}

func firstAmount(s string) float64 {
	m := amountRe.FindString(s)
	if m == "" {
		return 0
	}
	return normalize.ParseAmount(m)
}

// labeledAmount finds the first line whose folded form matches labelRe and
// returns the first amount after the label, skipping lines matched by
// excludeRe.
func labeledAmount(d *document, labelRe, excludeRe *regexp.Regexp) float64 {
	for _, line := range d.folded {
		loc := labelRe.FindStringIndex(line)
		if loc == nil {
			continue
		}
		if excludeRe != nil && excludeRe.MatchString(line) {
			continue
		}
		if v := firstAmount(line[loc[1]:]); v > 0 {
			return v
		}
	}
	return 0
}

func extractEmployeeName(d *document, f *model.ExtractedFields) {
	for i, line := range d.folded {
		// Employer labels also contain "employe"; keep them out.
		if employerLabelRe.MatchString(line) {
			continue
		}
		loc := employeeLabelRe.FindStringIndex(line)
		if loc == nil {
			continue
		}
		if name := normalize.FormatName(d.rawAfter(i, loc[1])); name != "" {
			f.EmployeeName = name
			return
		}
	}
}

func extractEmployerName(d *document, f *model.ExtractedFields) {
	for i, line := range d.folded {
		loc := employerLabelRe.FindStringIndex(line)
		if loc == nil {
			continue
		}
		if name := normalize.FormatName(d.rawAfter(i, loc[1])); name != "" {
			f.EmployerName = name
			return
		}
	}
}

func extractAddress(d *document, f *model.ExtractedFields) {
	for i, line := range d.folded {
		loc := addressLabelRe.FindStringIndex(line)
		if loc == nil {
			continue
		}
		if addr := d.rawAfter(i, loc[1]); addr != "" {
			f.EmployeeAddress = addr
			return
		}
	}
}

func extractSiret(d *document, f *model.ExtractedFields) {
	for _, line := range d.folded {
		m := siretRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		digits := digitOnlyRe.ReplaceAllString(m[1], "")
		if len(digits) == 14 {
			f.SiretNumber = digits
			return
		}
	}
}

func extractUrssaf(d *document, f *model.ExtractedFields) {
	for _, line := range d.folded {
		if m := urssafRe.FindStringSubmatch(line); m != nil {
			f.UrssafNumber = digitOnlyRe.ReplaceAllString(m[1], "")
			return
		}
	}
}

func extractCesu(d *document, f *model.ExtractedFields) {
	for i, line := range d.folded {
		if !cesuRe.MatchString(line) {
			continue
		}
		if code := normalize.CleanCesuNumber(d.raw[i]); code != "" {
			f.CesuNumber = code
			return
		}
	}
}

func extractPeriod(d *document, f *model.ExtractedFields) {
	// Patterns anchor to payslip-header vocabulary so a print date in a
	// trailing signature block is never picked up.
	for _, line := range d.folded {
		if m := periodHeaderRe.FindStringSubmatch(line); m != nil {
			if setPeriod(f, m[3], m[4]) {
				return
			}
		}
	}
	for _, line := range d.folded {
		if m := periodLooseRe.FindStringSubmatch(line); m != nil {
			if setPeriod(f, m[4], m[5]) {
				return
			}
		}
	}
}

func setPeriod(f *model.ExtractedFields, month, year string) bool {
	m, _ := strconv.Atoi(month)
	y, _ := strconv.Atoi(year)
	if m < 1 || m > 12 || y < 2000 || y > 2100 {
		return false
	}
	f.PeriodMonth = m
	f.PeriodYear = y
	return true
}

func extractNetBeforeTax(d *document, f *model.ExtractedFields) {
	f.NetBeforeTax = labeledAmount(d, netBeforeTaxRe, nil)
}

func extractNetToPay(d *document, f *model.ExtractedFields) {
	// "avant impôt" and "de l'impôt" lines carry net-before-tax, which
	// shares the net-pay vocabulary; they must not satisfy this pattern.
	if v := labeledAmount(d, netPayLabelRe, netPayExcludeRe); v > 0 {
		f.NetToPay = v
		return
	}
	// Fallback: bottom-up scan for the last recap line that looks like a
	// payment total.
	for i := len(d.folded) - 1; i >= 0; i-- {
		line := d.folded[i]
		if !netFallbackRe.MatchString(line) {
			continue
		}
		if m := decimalAmountRe.FindString(line); m != "" {
			if v := normalize.ParseAmount(m); v > 0 {
				f.NetToPay = v
				return
			}
		}
	}
}

func extractNetTaxable(d *document, f *model.ExtractedFields) {
	f.NetTaxable = labeledAmount(d, netTaxableRe, nil)
}

func extractGross(d *document, f *model.ExtractedFields) {
	f.GrossSalary = labeledAmount(d, grossRe, nil)
}

func extractTax(d *document, f *model.ExtractedFields) {
	f.TaxAmount = labeledAmount(d, taxRe, nil)
}

func extractHours(d *document, f *model.ExtractedFields) {
	f.HoursWorked = labeledAmount(d, hoursRe, nil)
}

func extractHourly(d *document, f *model.ExtractedFields) {
	f.HourlyNetTaxable = labeledAmount(d, hourlyRe, nil)
}

// applyMensuelRow parses the "Mensuel <net> <taxable> <gross> <_> <hours>
// <hourly>" recap row found on CESU and household-employer payslips. Columns
// fill only fields the labeled patterns left at zero. The column mapping is a
// heuristic observed on the CESU layout, not a general table parser.
func applyMensuelRow(d *document, f *model.ExtractedFields) {
	for _, line := range d.folded {
		m := mensuelRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		var vals []float64
		for _, tok := range strings.Fields(m[1]) {
			if !numTokenRe.MatchString(tok) {
				continue
			}
			vals = append(vals, normalize.ParseAmount(tok))
		}
		if len(vals) < 6 {
			continue
		}
		fillZero(&f.NetToPay, vals[0])
		fillZero(&f.NetTaxable, vals[1])
		fillZero(&f.GrossSalary, vals[2])
		fillZero(&f.HoursWorked, vals[4])
		fillZero(&f.HourlyNetTaxable, vals[5])
		return
	}
}

func fillZero(dst *float64, v float64) {
	if *dst == 0 {
		*dst = v
	}
}

// applyCesuOverride marks the document as a CESU payslip when a CESU code is
// present and the employer-registration signature is absent or too weak to
// belong to a registered company. The CESU code is authoritative in that
// case; partial SIRET/URSSAF captures are discarded.
func applyCesuOverride(_ *document, f *model.ExtractedFields) {
	if f.CesuNumber == "" {
		return
	}
	if f.SiretNumber == "" || len(f.UrssafNumber) <= 2 {
		f.SiretNumber = ""
		f.UrssafNumber = ""
		f.IsCesu = true
	}
}
