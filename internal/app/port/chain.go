package port

import (
	"context"
	"math/big"

	"price_aggregator/internal/domain/entity"
)

// ChainClient defines the read-only blockchain surface the pricing core needs.
// Implementations are specific to the chain family (EVM here); все вызовы
// должны быть ограничены по времени через ctx.
type ChainClient interface {
	// GetTokenInfo fetches decimals/symbol/name for a token contract.
	// Returns an error wrapping entity.ErrInvalidToken if the address has no
	// contract code or does not implement the minimal ERC20 read interface.
	GetTokenInfo(ctx context.Context, tokenAddress string) (entity.TokenInfo, error)

	// GetAmountsOut simulates a constant-product (V2) swap along path and
	// returns the router's amounts, one per hop, input amount first.
	GetAmountsOut(ctx context.Context, amountIn *big.Int, path []string) ([]*big.Int, error)

	// QuoteExactInputSingle simulates a concentrated-liquidity (V3) single
	// pool swap at the given fee tier. A revert means no pool exists for the
	// pair/tier combination.
	QuoteExactInputSingle(ctx context.Context, tokenIn, tokenOut string, feeTier uint32, amountIn *big.Int) (*big.Int, error)
}
