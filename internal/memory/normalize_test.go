package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeNumber(t *testing.T) {
	confusions := DefaultSnapshot().DigitConfusions

	tests := []struct {
		raw  string
		want float64
	}{
		{"1,S00.OO", 1500},
		{"$ 1,234.56", 1234.56},
		{"1.234,56", 1234.56},
		{"12,5", 12.5},
		{"1,234", 1234},
		{"1,234,567", 1234567},
		{"1.234.567", 1234567},
		{"$ 1.500.000", 1500000},
		{"-350.25", -350.25},
		{"", 0},
		{"abc", 0},
		{"--", 0},
		{"$ 0.00", 0},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeNumber(tt.raw, confusions))
		})
	}
}

func TestNormalizeNumber_Idempotent(t *testing.T) {
	confusions := DefaultSnapshot().DigitConfusions
	for _, raw := range []string{"1,S00.OO", "1.234,56", "98765.4321", "-12", "0.5", "1,234,567", "7"} {
		once := NormalizeNumber(raw, confusions)
		assert.Equal(t, once, NormalizeNumber(FormatNumber(once), confusions), raw)
	}
}

func TestNormalizeNumber_MultiCharacterConfusion(t *testing.T) {
	confusions := map[string]string{"O": "0", "OO": "00"}
	assert.Equal(t, 100.0, NormalizeNumber("1OO", confusions))
}

func TestCleanCode(t *testing.T) {
	assert.Equal(t, "123456", CleanCode("12-34 56"))
	assert.Equal(t, "12 345", CleanCode("12 345"))
	assert.Equal(t, "AB12", CleanCode("AB12"))
	assert.Equal(t, "", CleanCode(""))
}

func TestCleanTaxID(t *testing.T) {
	assert.Equal(t, "900123456-7", CleanTaxID("NIT 900.123.456-7"))
}
