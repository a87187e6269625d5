package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculator_Claude(t *testing.T) {
	c := NewCalculator(DefaultRates())

	// 1M input + 1M output on haiku.
	got := c.Claude("claude-haiku-4-5-20251001", 1_000_000, 1_000_000, 0, 0)
	assert.InDelta(t, 4.80, got, 1e-9)

	// Cache write at 1.25x input, cache read at 0.1x input.
	got = c.Claude("claude-haiku-4-5-20251001", 0, 0, 1_000_000, 1_000_000)
	assert.InDelta(t, 1.08, got, 1e-9)
}

func TestCalculator_UnknownModel(t *testing.T) {
	c := NewCalculator(DefaultRates())
	assert.Zero(t, c.Claude("mystery-model", 1000, 1000, 0, 0))
}

func TestCalculator_CustomRates(t *testing.T) {
	c := NewCalculator(Rates{Anthropic: map[string]ModelRate{
		"m": {Input: 1, Output: 2},
	}})
	assert.InDelta(t, 3.0, c.Claude("m", 1_000_000, 1_000_000, 0, 0), 1e-9)
}
