package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFiatConverter_Rate(t *testing.T) {
	fiat := NewFiatConverter(map[string]float64{"EUR": 0.92, "jpy": 149.50})

	tests := []struct {
		name     string
		currency string
		want     float64
	}{
		{"usd is always 1", "USD", 1},
		{"known code", "EUR", 0.92},
		{"codes are case-insensitive", "eur", 0.92},
		{"table keys are upper-cased on load", "JPY", 149.50},
		{"unknown code falls back to usd", "XYZ", 1},
		{"empty code falls back to usd", "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fiat.Rate(tt.currency))
		})
	}
}

func TestFiatConverter_Convert(t *testing.T) {
	fiat := NewFiatConverter(map[string]float64{"EUR": 0.92})

	assert.InDelta(t, 10.0/0.92, fiat.Convert(10, "EUR"), 1e-12)
	assert.Equal(t, 10.0, fiat.Convert(10, "USD"))
	assert.Equal(t, 10.0, fiat.Convert(10, "XYZ"))
}

func TestFiatConverter_NonPositiveRateIgnored(t *testing.T) {
	fiat := NewFiatConverter(map[string]float64{"BAD": 0, "NEG": -2})

	assert.Equal(t, 1.0, fiat.Rate("BAD"))
	assert.Equal(t, 1.0, fiat.Rate("NEG"))
}

func TestFiatConverter_Currencies(t *testing.T) {
	fiat := NewFiatConverter(map[string]float64{"EUR": 0.92, "GBP": 0.79})

	assert.Equal(t, []string{"EUR", "GBP", "USD"}, fiat.Currencies())
}

func TestFiatConverter_RatesCopy(t *testing.T) {
	fiat := NewFiatConverter(map[string]float64{"EUR": 0.92})

	rates := fiat.Rates()
	rates["EUR"] = 99

	assert.Equal(t, 0.92, fiat.Rate("EUR"), "returned table must be a copy")
}
