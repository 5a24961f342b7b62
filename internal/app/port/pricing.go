package port

import (
	"context"
	"math/big"

	"price_aggregator/internal/domain/entity"
)

// QuoteEngine finds the best available AMM route for a pair of tokens.
type QuoteEngine interface {
	// BestQuote runs the ordered fallback cascade (V2 direct, V2 via hub
	// assets, V3 per fee tier, V3 two-hop via hub assets) and stops at the
	// first success.
	// Returns an error wrapping entity.ErrNoLiquidity when every step failed.
	BestQuote(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int) (entity.QuoteResult, error)
}

// PriceSource resolves one independent price answer for a token.
// Реализации: on-chain AMM (деривация через котировки) и внешний агрегатор.
type PriceSource interface {
	Name() string
	// GetTokenPrice never returns an error: failures are captured inside the
	// result so one source can never abort another.
	GetTokenPrice(ctx context.Context, tokenAddress, currency string) entity.SourcePriceResult
}

// PriceAggregator runs all sources concurrently and merges their answers.
type PriceAggregator interface {
	GetAggregatedPrice(ctx context.Context, tokenAddress, currency string) entity.AggregatedPriceResult
	GetTokenValue(ctx context.Context, tokenAddress string, amount float64, currency string) entity.TokenValueResult
	GetSwapQuote(ctx context.Context, tokenIn, tokenOut string, amountIn float64) entity.SwapQuoteResult
}
