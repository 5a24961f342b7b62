package entity

// Source names used as keys of AggregatedPriceResult.Sources.
const (
	SourceOnchainAMM         = "ubeswap"
	SourceExternalAggregator = "dexscreener"
)

// SourcePriceResult is one price source's independent answer. Partial failure
// of one source must never fail the other, поэтому ошибка здесь — строка в
// payload, а не error наружу.
type SourcePriceResult struct {
	Success bool `json:"success"`
	// Price is the price converted to the requested currency.
	Price    float64    `json:"price,omitempty"`
	PriceUsd float64    `json:"priceUsd,omitempty"`
	// PriceBase is the price expressed in the chain's base asset (CELO).
	PriceBase      float64    `json:"priceBase,omitempty"`
	Token          *TokenInfo `json:"token,omitempty"`
	Method         string     `json:"method,omitempty"`
	Note           string     `json:"note,omitempty"`
	Path           []string   `json:"path,omitempty"`
	LiquidityUsd   float64    `json:"liquidityUsd,omitempty"`
	Volume24h      float64    `json:"volume24h,omitempty"`
	DexID          string     `json:"dexId,omitempty"`
	ConversionRate float64    `json:"conversionRate,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// AggregatedPriceResult is the merged answer across all sources. Computed
// fresh per request (or returned from the result cache); never mutated after
// construction.
//
// PrimaryPrice is non-nil only when at least one source succeeded.
// AveragePrice and the PriceDifference fields are set only when both
// sources succeeded.
type AggregatedPriceResult struct {
	TokenAddress           string                       `json:"tokenAddress"`
	Currency               string                       `json:"currency"`
	Timestamp              int64                        `json:"timestamp"`
	Sources                map[string]SourcePriceResult `json:"sources"`
	PrimaryPrice           *float64                     `json:"primaryPrice"`
	PrimarySource          string                       `json:"primarySource,omitempty"`
	AveragePrice           *float64                     `json:"averagePrice,omitempty"`
	PriceDifference        *float64                     `json:"priceDifference,omitempty"`
	PriceDifferencePercent *float64                     `json:"priceDifferencePercent,omitempty"`
	Cached                 bool                         `json:"cached"`
}

// TokenValueResult extends an aggregated price with a position size.
type TokenValueResult struct {
	AggregatedPriceResult
	Amount     float64  `json:"amount"`
	TotalValue *float64 `json:"totalValue"`
}
