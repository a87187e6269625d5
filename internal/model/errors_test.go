package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want ErrorKind
	}{
		{"fetch timeout", "fetch failed: timeout", ErrKindNetwork},
		{"network refused", "network unreachable", ErrKindNetwork},
		{"json token", "Unexpected token in JSON", ErrKindParsing},
		{"parse failure", "cannot parse response body", ErrKindParsing},
		{"schema violation", "schema validation failed", ErrKindValidation},
		{"validation only", "validation: incomplete extraction", ErrKindValidation},
		{"api quota", "quota exceeded for project", ErrKindAPI},
		{"rate limit", "rate limit reached, retry later", ErrKindAPI},
		{"provider api", "anthropic: api call: 500", ErrKindAPI},
		{"unknown", "something odd happened", ErrKindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(errors.New(tt.msg)))
		})
	}
}

func TestClassifyError_FirstFamilyWins(t *testing.T) {
	// "timeout" (network) and "json" (parsing) both present; network is
	// checked first.
	err := errors.New("timeout while reading json body")
	assert.Equal(t, ErrKindNetwork, ClassifyError(err))
}

func TestClassifyError_Nil(t *testing.T) {
	assert.Equal(t, ErrKindUnknown, ClassifyError(nil))
}
