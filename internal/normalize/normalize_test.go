package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"french thousands", "1 234,56", 1234.56},
		{"german style", "1.234,56", 1234.56},
		{"plain decimal", "1234.56", 1234.56},
		{"narrow nbsp", "1 234,56 €", 1234.56},
		{"nbsp grouping", "12 345,00", 12345},
		{"currency word", "1500 euros", 1500},
		{"comma decimal", "98,50", 98.5},
		{"us thousands", "1,234.56", 1234.56},
		{"multi dot grouping", "1.234.567", 1234.567},
		{"integer", "1800", 1800},
		{"garbage", "n/a", 0},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseAmount(tt.in), 1e-9)
		})
	}
}

func TestCleanCesuNumber(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Z123456789", "Z123456789"},
		{"spaced", "Z 123 456 789", "Z123456789"},
		{"lowercase", "n° z1234", "Z1234"},
		{"embedded", "Employeur CESU Z 987 654 - Paris", "Z987654"},
		{"no code", "SIRET 123 456 789 00012", ""},
		{"bare z", "zone", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanCesuNumber(tt.in))
		})
	}
}

func TestFormatName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"civility upper surname", "Monsieur Jean DUPONT", "DUPONT Jean"},
		{"surname first", "DUPONT Jean", "DUPONT Jean"},
		{"madame", "Madame Sophie MARTIN", "MARTIN Sophie"},
		{"abbreviated civility", "M. Pierre DURAND", "DURAND Pierre"},
		{"no upper token", "Jean Dupont", "JEAN Dupont"},
		{"compound surname", "Marie LE GALL", "LE GALL Marie"},
		{"single token", "Dupont", "DUPONT"},
		{"upper given name normalized", "DUPONT JEAN", "DUPONT JEAN"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatName(tt.in))
		})
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "periode du 01/03/2024", Fold("Période du 01/03/2024"))
	assert.Equal(t, "net a payer avant impot", Fold("NET À PAYER AVANT IMPÔT"))
	assert.Equal(t, "salaire", Fold("salaire"))
}
