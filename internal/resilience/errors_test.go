package resilience

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"wrapped transient", NewTransientError(errors.New("503"), 503), true},
		{"deeply wrapped", fmt.Errorf("call: %w", NewTransientError(errors.New("429"), 429)), true},
		{"io timeout string", errors.New("read tcp: i/o timeout"), true},
		{"no such host", errors.New("dial tcp: lookup api: no such host"), true},
		{"plain error", errors.New("invalid document"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	base := errors.New("base")
	te := NewTransientError(base, 502)
	assert.True(t, errors.Is(te, base))
	assert.Equal(t, 502, te.StatusCode)
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 400, 401, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}
