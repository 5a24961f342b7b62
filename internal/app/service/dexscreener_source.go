package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"price_aggregator/internal/app/port"
	"price_aggregator/internal/client"
	"price_aggregator/internal/domain/entity"
	dex_types "price_aggregator/internal/entity"
	"price_aggregator/internal/pkg/utils"
)

// dexScreenerSource is the external aggregator price source. Independent of
// any local AMM: queries the cross-DEX index by token address, filters to the
// target chain and picks the most liquid pair as the canonical reference.
type dexScreenerSource struct {
	client  client.DEXScreenerClient
	chainID string
	timeout time.Duration
	fiat    *FiatConverter
	logger  port.Logger
}

// NewDexScreenerSource creates the external aggregator source.
func NewDexScreenerSource(c client.DEXScreenerClient, chainID string, timeout time.Duration, fiat *FiatConverter, l port.Logger) port.PriceSource {
	return &dexScreenerSource{
		client:  c,
		chainID: chainID,
		timeout: timeout,
		fiat:    fiat,
		logger:  l,
	}
}

// Name implements port.PriceSource.
func (s *dexScreenerSource) Name() string {
	return entity.SourceExternalAggregator
}

// GetTokenPrice implements port.PriceSource. Никогда не ретраит: пустая
// выдача, несовпадение сети и таймаут — все это {success:false}.
func (s *dexScreenerSource) GetTokenPrice(ctx context.Context, tokenAddress, currency string) entity.SourcePriceResult {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pairs, err := s.client.SearchPairs(reqCtx, tokenAddress)
	if err != nil {
		s.logger.Warn("DexScreener lookup failed", "token", tokenAddress, "error", err)
		return entity.SourcePriceResult{Success: false, Error: err.Error()}
	}
	if len(pairs) == 0 {
		// Поиск индексирует не все токены; /tokens/<addr> — прямая выборка.
		pairs, err = s.client.GetTokenPairs(reqCtx, tokenAddress)
		if err != nil {
			s.logger.Warn("DexScreener token lookup failed", "token", tokenAddress, "error", err)
			return entity.SourcePriceResult{Success: false, Error: err.Error()}
		}
	}
	if len(pairs) == 0 {
		return entity.SourcePriceResult{Success: false, Error: "no data found"}
	}

	best := s.selectBestPair(pairs)
	if best == nil {
		return entity.SourcePriceResult{Success: false, Error: fmt.Sprintf("no pairs found on %s", s.chainID)}
	}

	priceUsd, err := strconv.ParseFloat(best.PriceUsd, 64)
	if err != nil || priceUsd <= 0 {
		s.logger.Warn("Failed to parse DexScreener priceUsd",
			"token", tokenAddress, "priceUsd", best.PriceUsd)
		return entity.SourcePriceResult{Success: false, Error: "pair has no usable USD price"}
	}
	priceNative, _ := strconv.ParseFloat(best.PriceNative, 64)

	rate := s.fiat.Rate(currency)
	return entity.SourcePriceResult{
		Success:   true,
		Price:     priceUsd / rate,
		PriceUsd:  priceUsd,
		PriceBase: priceNative,
		Token: &entity.TokenInfo{
			Address: best.BaseToken.Address,
			Symbol:  best.BaseToken.Symbol,
			Name:    best.BaseToken.Name,
		},
		Method:         "aggregator-best-pair",
		LiquidityUsd:   utils.SafeDerefFloat64(best.Liquidity, func(l dex_types.DEXLiquidity) float64 { return l.Usd }),
		Volume24h:      best.Volume.H24,
		DexID:          best.DexID,
		ConversionRate: rate,
	}
}

// selectBestPair filters pairs to the target chain and returns the one with
// the highest reported USD liquidity, or nil when none match.
func (s *dexScreenerSource) selectBestPair(pairs []dex_types.PairData) *dex_types.PairData {
	var best *dex_types.PairData
	for i := range pairs {
		pair := &pairs[i]
		if !strings.EqualFold(pair.ChainID, s.chainID) {
			continue
		}
		if best == nil {
			best = pair
			continue
		}
		liquidity := utils.SafeDerefFloat64(pair.Liquidity, func(l dex_types.DEXLiquidity) float64 { return l.Usd })
		bestLiquidity := utils.SafeDerefFloat64(best.Liquidity, func(l dex_types.DEXLiquidity) float64 { return l.Usd })
		if liquidity > bestLiquidity {
			best = pair
		}
	}
	return best
}
