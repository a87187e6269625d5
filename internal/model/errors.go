package model

import "strings"

// ErrorKind buckets extraction failures for the audit log. The taxonomy is
// uniform across both extraction layers.
type ErrorKind string

const (
	ErrKindNetwork    ErrorKind = "network_error"
	ErrKindParsing    ErrorKind = "parsing_error"
	ErrKindValidation ErrorKind = "validation_error"
	ErrKindAPI        ErrorKind = "api_error"
	ErrKindUnknown    ErrorKind = "unknown_error"
)

// keyword families checked in order; the first matching family wins.
var errorKeywords = []struct {
	kind     ErrorKind
	keywords []string
}{
	{ErrKindNetwork, []string{"fetch", "network", "timeout"}},
	{ErrKindParsing, []string{"json", "parse"}},
	{ErrKindValidation, []string{"validation", "schema"}},
	{ErrKindAPI, []string{"api", "quota", "rate limit"}},
}

// ClassifyError maps an error onto an ErrorKind by inspecting its lower-cased
// message for keyword families. This is a best-effort heuristic with an
// explicit fallback bucket, not a typed error hierarchy.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrKindUnknown
	}
	msg := strings.ToLower(err.Error())
	for _, family := range errorKeywords {
		for _, kw := range family.keywords {
			if strings.Contains(msg, kw) {
				return family.kind
			}
		}
	}
	return ErrKindUnknown
}
