package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"price_aggregator/internal/app/port"
	"price_aggregator/internal/domain/entity"
	"price_aggregator/internal/infrastructure/configloader"
)

// quoteEngine implements port.QuoteEngine: an ordered fallback cascade over
// the configured protocol versions, routes and fee tiers.
//
// Порядок имеет значение: прямые пулы предпочтительнее мульти-хопа (мульти-хоп
// накапливает slippage), а предпочтение версии протокола — настраиваемая
// политика, не константа.
type quoteEngine struct {
	chain   port.ChainClient
	routing configloader.RoutingConfig
	logger  port.Logger
}

// NewQuoteEngine creates a new quote engine over the given chain client.
func NewQuoteEngine(chain port.ChainClient, routing configloader.RoutingConfig, l port.Logger) port.QuoteEngine {
	return &quoteEngine{
		chain:   chain,
		routing: routing,
		logger:  l,
	}
}

// BestQuote implements port.QuoteEngine. Stops at the first successful step;
// every failed step is recorded and the cascade moves on. Only a fully
// exhausted cascade returns an error (wrapping entity.ErrNoLiquidity).
func (e *quoteEngine) BestQuote(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int) (entity.QuoteResult, error) {
	var attempts []entity.QuoteAttempt

	for _, version := range e.routing.ProtocolOrder {
		var (
			result entity.QuoteResult
			ok     bool
		)
		switch version {
		case entity.ProtocolV2:
			result, ok = e.tryV2(ctx, tokenIn, tokenOut, amountIn, &attempts)
		case entity.ProtocolV3:
			result, ok = e.tryV3(ctx, tokenIn, tokenOut, amountIn, &attempts)
		default:
			// Валидируется при загрузке конфига; сюда попадать не должно.
			e.logger.Warn("Unknown protocol version in cascade, skipping", "version", version)
			continue
		}
		if ok {
			result.Attempts = attempts
			return result, nil
		}
	}

	return entity.QuoteResult{Attempts: attempts},
		fmt.Errorf("%w: %s -> %s after %d attempts", entity.ErrNoLiquidity, tokenIn, tokenOut, len(attempts))
}

// tryV2 attempts the constant-product routes: direct, then one hop through
// each usable hub asset.
func (e *quoteEngine) tryV2(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int, attempts *[]entity.QuoteAttempt) (entity.QuoteResult, bool) {
	routes := [][]string{{tokenIn, tokenOut}}
	for _, hub := range e.hubs(tokenIn, tokenOut) {
		routes = append(routes, []string{tokenIn, hub, tokenOut})
	}

	for _, route := range routes {
		amounts, err := e.chain.GetAmountsOut(ctx, amountIn, route)
		if err != nil {
			// Ревёрт = нет пула на этом маршруте, идем дальше.
			*attempts = append(*attempts, entity.QuoteAttempt{
				Route:         route,
				Protocol:      entity.ProtocolV2,
				AmountIn:      amountIn,
				FailureReason: err.Error(),
			})
			continue
		}
		amountOut := amounts[len(amounts)-1]
		*attempts = append(*attempts, entity.QuoteAttempt{
			Route:     route,
			Protocol:  entity.ProtocolV2,
			AmountIn:  amountIn,
			AmountOut: amountOut,
			Success:   true,
		})

		method := "swap-v2"
		if len(route) > 2 {
			method = "swap-v2-multi"
		}
		return entity.QuoteResult{
			Route:     route,
			Protocol:  entity.ProtocolV2,
			AmountIn:  amountIn,
			AmountOut: amountOut,
			Method:    method,
		}, true
	}
	return entity.QuoteResult{}, false
}

// tryV3 attempts the concentrated-liquidity routes: direct pair per fee tier
// (ascending), then a two-hop through each usable hub asset where the second
// hop spends exactly what the first hop produced.
func (e *quoteEngine) tryV3(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int, attempts *[]entity.QuoteAttempt) (entity.QuoteResult, bool) {
	if amountOut, feeTier, ok := e.v3SingleHop(ctx, tokenIn, tokenOut, amountIn, attempts); ok {
		return entity.QuoteResult{
			Route:     []string{tokenIn, tokenOut},
			Protocol:  entity.ProtocolV3,
			FeeTier:   feeTier,
			AmountIn:  amountIn,
			AmountOut: amountOut,
			Method:    fmt.Sprintf("v3-direct-fee%d", feeTier),
		}, true
	}

	for _, hub := range e.hubs(tokenIn, tokenOut) {
		intermediate, _, ok := e.v3SingleHop(ctx, tokenIn, hub, amountIn, attempts)
		if !ok {
			continue
		}
		amountOut, feeTier, ok := e.v3SingleHop(ctx, hub, tokenOut, intermediate, attempts)
		if !ok {
			continue
		}

		return entity.QuoteResult{
			Route:     []string{tokenIn, hub, tokenOut},
			Protocol:  entity.ProtocolV3,
			FeeTier:   feeTier,
			AmountIn:  amountIn,
			AmountOut: amountOut,
			Method:    "v3-multi-hop",
		}, true
	}
	return entity.QuoteResult{}, false
}

// v3SingleHop tries each configured fee tier in ascending order and stops at
// the first non-reverting simulation.
func (e *quoteEngine) v3SingleHop(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int, attempts *[]entity.QuoteAttempt) (*big.Int, uint32, bool) {
	for _, feeTier := range e.routing.FeeTiers {
		amountOut, err := e.chain.QuoteExactInputSingle(ctx, tokenIn, tokenOut, feeTier, amountIn)
		if err != nil {
			*attempts = append(*attempts, entity.QuoteAttempt{
				Route:         []string{tokenIn, tokenOut},
				Protocol:      entity.ProtocolV3,
				FeeTier:       feeTier,
				AmountIn:      amountIn,
				FailureReason: err.Error(),
			})
			continue
		}
		*attempts = append(*attempts, entity.QuoteAttempt{
			Route:     []string{tokenIn, tokenOut},
			Protocol:  entity.ProtocolV3,
			FeeTier:   feeTier,
			AmountIn:  amountIn,
			AmountOut: amountOut,
			Success:   true,
		})
		return amountOut, feeTier, true
	}
	return nil, 0, false
}

// hubs returns the intermediate assets usable for the pair, base asset first.
// Хаб, совпадающий с одной из сторон пары, исключается.
func (e *quoteEngine) hubs(tokenIn, tokenOut string) []string {
	var usable []string
	for _, hub := range []string{e.routing.BaseAsset, e.routing.StableAsset} {
		if strings.EqualFold(tokenIn, hub) || strings.EqualFold(tokenOut, hub) {
			continue
		}
		usable = append(usable, hub)
	}
	return usable
}
