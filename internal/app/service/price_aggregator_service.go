package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"price_aggregator/internal/app/port"
	"price_aggregator/internal/domain/entity"
	"price_aggregator/internal/pkg/metrics"
	"price_aggregator/internal/pkg/utils"
)

// priceAggregatorService runs the on-chain AMM source and the external
// aggregator concurrently and reconciles their answers.
//
// Источники независимы: падение одного никогда не валит другой. Сбор — это
// "best-effort all": каждая горутина кладет свой результат (успех или
// захваченную ошибку) в карту, никакого fail-fast.
type priceAggregatorService struct {
	onchain  port.PriceSource
	external port.PriceSource
	chain    port.ChainClient
	engine   port.QuoteEngine
	logger   port.Logger
}

// NewPriceAggregatorService creates the aggregator over the two sources.
func NewPriceAggregatorService(
	onchain port.PriceSource,
	external port.PriceSource,
	chain port.ChainClient,
	engine port.QuoteEngine,
	l port.Logger,
) port.PriceAggregator {
	return &priceAggregatorService{
		onchain:  onchain,
		external: external,
		chain:    chain,
		engine:   engine,
		logger:   l,
	}
}

// GetAggregatedPrice implements port.PriceAggregator.
func (s *priceAggregatorService) GetAggregatedPrice(ctx context.Context, tokenAddress, currency string) entity.AggregatedPriceResult {
	sources := []port.PriceSource{s.onchain, s.external}
	results := make([]entity.SourcePriceResult, len(sources))

	var wg sync.WaitGroup
	for i, source := range sources {
		wg.Add(1)
		go func(i int, source port.PriceSource) {
			defer wg.Done()
			results[i] = source.GetTokenPrice(ctx, tokenAddress, currency)
		}(i, source)
	}
	wg.Wait()

	response := entity.AggregatedPriceResult{
		TokenAddress: tokenAddress,
		Currency:     currency,
		Timestamp:    time.Now().UnixMilli(),
		Sources:      make(map[string]entity.SourcePriceResult, len(sources)),
	}

	for i, source := range sources {
		response.Sources[source.Name()] = results[i]
		if !results[i].Success {
			metrics.SourceFailuresTotal.WithLabelValues(source.Name()).Inc()
		}
	}

	// Primary: on-chain, если он успешен, иначе внешний агрегатор. Если оба
	// упали — primaryPrice остается nil, это штатный частичный результат.
	onchainResult := response.Sources[s.onchain.Name()]
	externalResult := response.Sources[s.external.Name()]
	switch {
	case onchainResult.Success:
		price := onchainResult.Price
		response.PrimaryPrice = &price
		response.PrimarySource = s.onchain.Name()
	case externalResult.Success:
		price := externalResult.Price
		response.PrimaryPrice = &price
		response.PrimarySource = s.external.Name()
	default:
		s.logger.Warn("All price sources failed", "token", tokenAddress, "currency", currency)
	}

	if onchainResult.Success && externalResult.Success {
		average := (onchainResult.Price + externalResult.Price) / 2
		difference := math.Abs(onchainResult.Price - externalResult.Price)
		response.AveragePrice = &average
		response.PriceDifference = &difference
		if average > 0 {
			percent := difference / average * 100
			response.PriceDifferencePercent = &percent
			metrics.PriceDivergencePercent.Set(percent)
			if percent > 10 {
				// Сильное расхождение — главный сигнал манипуляции или
				// протухшей ликвидности.
				s.logger.Warn("Large cross-source price divergence",
					"token", tokenAddress, "percent", percent,
					"onchain", onchainResult.Price, "external", externalResult.Price)
			}
		}
	}

	return response
}

// GetTokenValue implements port.PriceAggregator.
func (s *priceAggregatorService) GetTokenValue(ctx context.Context, tokenAddress string, amount float64, currency string) entity.TokenValueResult {
	priceData := s.GetAggregatedPrice(ctx, tokenAddress, currency)

	result := entity.TokenValueResult{
		AggregatedPriceResult: priceData,
		Amount:                amount,
	}
	if priceData.PrimaryPrice != nil {
		total := *priceData.PrimaryPrice * amount
		result.TotalValue = &total
	}
	return result
}

// GetSwapQuote implements port.PriceAggregator: an arbitrary pair quote over
// the same fallback cascade the pricing path uses.
func (s *priceAggregatorService) GetSwapQuote(ctx context.Context, tokenIn, tokenOut string, amountIn float64) entity.SwapQuoteResult {
	now := time.Now().UnixMilli()

	tokenInInfo, err := s.chain.GetTokenInfo(ctx, tokenIn)
	if err != nil {
		return entity.SwapQuoteResult{Success: false, Source: "amm", Error: err.Error(), Timestamp: now}
	}
	tokenOutInfo, err := s.chain.GetTokenInfo(ctx, tokenOut)
	if err != nil {
		return entity.SwapQuoteResult{Success: false, Source: "amm", Error: err.Error(), Timestamp: now}
	}

	rawAmountIn, err := utils.ParseUnits(amountIn, tokenInInfo.Decimals)
	if err != nil {
		return entity.SwapQuoteResult{Success: false, Source: "amm", Error: fmt.Sprintf("invalid amountIn: %v", err), Timestamp: now}
	}

	quote, err := s.engine.BestQuote(ctx, tokenIn, tokenOut, rawAmountIn)
	if err != nil {
		return entity.SwapQuoteResult{Success: false, Source: "amm", Error: err.Error(), Timestamp: now}
	}

	amountOut := utils.FormatUnitsFloat(quote.AmountOut, tokenOutInfo.Decimals)
	if humanOut, ferr := utils.FormatBigInt(quote.AmountOut, tokenOutInfo.Decimals); ferr == nil {
		s.logger.Debug("Котировка свопа получена",
			"tokenIn", tokenInInfo.Symbol, "tokenOut", tokenOutInfo.Symbol,
			"amountOut", humanOut, "method", quote.Method)
	}
	result := entity.SwapQuoteResult{
		Success:   true,
		Source:    "amm",
		TokenIn:   &tokenInInfo,
		TokenOut:  &tokenOutInfo,
		AmountIn:  amountIn,
		AmountOut: amountOut,
		Path:      quote.Route,
		Method:    quote.Method,
		Timestamp: now,
	}
	if amountIn > 0 {
		result.Price = amountOut / amountIn
	}
	return result
}
