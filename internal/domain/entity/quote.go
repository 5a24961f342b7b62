package entity

import "math/big"

// Protocol versions the quote engine understands.
const (
	ProtocolV2 = "V2" // constant-product (Ubeswap V2 style)
	ProtocolV3 = "V3" // concentrated-liquidity (Ubeswap V3 style)
)

// QuoteAttempt records a single step of the fallback cascade. Ephemeral:
// produced and discarded per request, never persisted.
type QuoteAttempt struct {
	Route         []string `json:"route"`
	Protocol      string   `json:"protocol"`
	FeeTier       uint32   `json:"feeTier,omitempty"` // V3 only
	AmountIn      *big.Int `json:"-"`
	AmountOut     *big.Int `json:"-"`
	Success       bool     `json:"success"`
	FailureReason string   `json:"failureReason,omitempty"`
}

// QuoteResult is the outcome of a successful cascade run.
type QuoteResult struct {
	// Route is the token hop path, input first, output last.
	Route     []string
	Protocol  string
	FeeTier   uint32 // set only for V3 routes
	AmountIn  *big.Int
	AmountOut *big.Int
	// Method is the human-readable tag of how the quote was obtained,
	// e.g. "forward-swap-v2", "v3-direct-fee3000", "v3-multi-hop".
	Method string
	// Attempts lists every cascade step that was tried, including failures.
	Attempts []QuoteAttempt
}

// SwapQuoteResult is the API-facing shape of an arbitrary pair quote.
type SwapQuoteResult struct {
	Success   bool       `json:"success"`
	Source    string     `json:"source"`
	TokenIn   *TokenInfo `json:"tokenIn,omitempty"`
	TokenOut  *TokenInfo `json:"tokenOut,omitempty"`
	AmountIn  float64    `json:"amountIn,omitempty"`
	AmountOut float64    `json:"amountOut,omitempty"`
	// Price is amountOut/amountIn, i.e. output units per one input unit.
	Price     float64  `json:"price,omitempty"`
	Path      []string `json:"path,omitempty"`
	Method    string   `json:"method,omitempty"`
	Error     string   `json:"error,omitempty"`
	Timestamp int64    `json:"timestamp"`
}
