// Package normalize provides locale-aware cleanup of amounts, identifiers and
// person names found on French payslips.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	currencyRe = regexp.MustCompile(`(?i)€|\beuros?\b|\beur\b|\$`)
	cesuRe     = regexp.MustCompile(`(?i)Z[0-9 ]*[0-9]`)
	civilityRe = regexp.MustCompile(`(?i)\b(monsieur|madame|mademoiselle|mlle\.?|mme\.?|m\.)\s*`)

	foldT = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// ParseAmount parses a European-formatted amount string ("1 234,56",
// "1.234,56", "1234.56") into a float. Malformed input yields 0 so that
// extraction degrades gracefully instead of failing on one bad token.
func ParseAmount(raw string) float64 {
	s := currencyRe.ReplaceAllString(raw, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// Right-most separator is the decimal point; the other kind is
		// thousands grouping.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			i := strings.LastIndex(s, ",")
			s = strings.ReplaceAll(s[:i], ",", "") + "." + s[i+1:]
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	}

	// Collapse thousands-grouping artifacts: keep only the last dot.
	if strings.Count(s, ".") > 1 {
		i := strings.LastIndex(s, ".")
		s = strings.ReplaceAll(s[:i], ".", "") + s[i:]
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// CleanCesuNumber extracts a canonical CESU employer code ("Z" followed by
// digits) from free text. Spaces inside the code are dropped, trailing noise
// is discarded. Returns "" when no code is present.
func CleanCesuNumber(raw string) string {
	m := cesuRe.FindString(raw)
	if m == "" {
		return ""
	}
	var b strings.Builder
	b.WriteByte('Z')
	for _, r := range m[1:] {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatName normalizes a person name into "SURNAME Givenname" form. Civility
// titles (Monsieur, Mme, ...) are stripped. Tokens already written in full
// uppercase are treated as the surname; when none are, the first token is
// assumed to be the surname.
func FormatName(raw string) string {
	s := civilityRe.ReplaceAllString(raw, "")
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return ""
	}
	if len(tokens) == 1 {
		return strings.ToUpper(tokens[0])
	}

	var surname, given []string
	for _, tok := range tokens {
		if isUpperToken(tok) {
			surname = append(surname, strings.ToUpper(tok))
		} else {
			given = append(given, titleCase(tok))
		}
	}
	if len(surname) == 0 {
		surname = []string{strings.ToUpper(tokens[0])}
		given = given[:0]
		for _, tok := range tokens[1:] {
			given = append(given, titleCase(tok))
		}
	}
	if len(given) == 0 {
		return strings.Join(surname, " ")
	}
	return strings.Join(surname, " ") + " " + strings.Join(given, " ")
}

// Fold lowercases s and strips diacritics, so that patterns written in plain
// ASCII match accented French payslip vocabulary ("Période", "payé", ...).
func Fold(s string) string {
	out, _, err := transform.String(foldT, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// isUpperToken reports whether tok is an all-uppercase word of length > 1
// (e.g. a surname written in capitals on the payslip).
func isUpperToken(tok string) bool {
	if len([]rune(tok)) < 2 {
		return false
	}
	hasLetter := false
	for _, r := range tok {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func titleCase(tok string) string {
	r := []rune(strings.ToLower(tok))
	if len(r) == 0 {
		return ""
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
