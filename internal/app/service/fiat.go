package service

import (
	"sort"
	"strings"
)

// FiatConverter converts USD prices into other currencies using a static,
// config-injected rate table. Stateless beyond the table itself.
type FiatConverter struct {
	rates map[string]float64
}

// NewFiatConverter copies the given rate table. USD всегда равен 1.
func NewFiatConverter(rates map[string]float64) *FiatConverter {
	copied := make(map[string]float64, len(rates)+1)
	for code, rate := range rates {
		copied[strings.ToUpper(code)] = rate
	}
	copied["USD"] = 1
	return &FiatConverter{rates: copied}
}

// Rate returns the USD rate for a currency code. Unknown codes default to 1
// (treated as USD); callers report the applied rate via conversionRate.
func (f *FiatConverter) Rate(currency string) float64 {
	if rate, ok := f.rates[strings.ToUpper(currency)]; ok && rate > 0 {
		return rate
	}
	return 1
}

// Convert returns priceUsd expressed in the requested currency.
func (f *FiatConverter) Convert(priceUsd float64, currency string) float64 {
	return priceUsd / f.Rate(currency)
}

// Currencies returns the supported currency codes in sorted order.
func (f *FiatConverter) Currencies() []string {
	codes := make([]string, 0, len(f.rates))
	for code := range f.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Rates returns a copy of the full rate table.
func (f *FiatConverter) Rates() map[string]float64 {
	copied := make(map[string]float64, len(f.rates))
	for code, rate := range f.rates {
		copied[code] = rate
	}
	return copied
}
