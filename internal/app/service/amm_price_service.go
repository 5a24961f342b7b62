package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"price_aggregator/internal/app/port"
	"price_aggregator/internal/domain/entity"
	"price_aggregator/internal/infrastructure/configloader"
	"price_aggregator/internal/pkg/utils"

	gocache "github.com/patrickmn/go-cache"
)

const baseAssetUsdCacheKey = "baseAssetUsd"

// baseAssetPrice is the cached USD reference for the base asset.
// Approximate == true, когда живой запрос не удался и использован
// сконфигурированный примерный курс.
type baseAssetPrice struct {
	Usd         float64
	Approximate bool
}

// ammPriceService is the on-chain price source: derives a token's USD price
// from AMM swap simulations against the base asset.
type ammPriceService struct {
	chain          port.ChainClient
	engine         port.QuoteEngine
	cfg            *configloader.Config
	fiat           *FiatConverter
	basePriceCache *gocache.Cache
	logger         port.Logger
}

// NewAMMPriceService creates the on-chain AMM price source.
func NewAMMPriceService(
	chain port.ChainClient,
	engine port.QuoteEngine,
	cfg *configloader.Config,
	fiat *FiatConverter,
	l port.Logger,
) port.PriceSource {
	ttl := time.Duration(cfg.Pricing.BasePriceCacheTTLSeconds) * time.Second
	return &ammPriceService{
		chain:          chain,
		engine:         engine,
		cfg:            cfg,
		fiat:           fiat,
		basePriceCache: gocache.New(ttl, 2*ttl),
		logger:         l,
	}
}

// Name implements port.PriceSource.
func (s *ammPriceService) Name() string {
	return entity.SourceOnchainAMM
}

// GetTokenPrice implements port.PriceSource. Ошибки не возвращаются наружу:
// любая неудача упаковывается в SourcePriceResult, чтобы не сорвать второй
// источник.
func (s *ammPriceService) GetTokenPrice(ctx context.Context, tokenAddress, currency string) entity.SourcePriceResult {
	// Ручной прайс имеет абсолютный приоритет: используется для токенов со
	// слишком тонкой или экзотической ликвидностью.
	if manual, ok := s.cfg.Pricing.ManualPrices[strings.ToLower(tokenAddress)]; ok {
		return s.manualResult(ctx, tokenAddress, currency, manual)
	}

	tokenInfo, err := s.chain.GetTokenInfo(ctx, tokenAddress)
	if err != nil {
		s.logger.Warn("Failed to resolve token metadata", "token", tokenAddress, "error", err)
		return entity.SourcePriceResult{Success: false, Error: err.Error()}
	}

	basePrice := s.baseAssetUsdPrice(ctx)

	priceUsd, priceBase, method, path, err := s.derive(ctx, tokenInfo, basePrice.Usd)
	if err != nil {
		s.logger.Warn("AMM price derivation failed", "token", tokenAddress, "error", err)
		return entity.SourcePriceResult{Success: false, Error: err.Error()}
	}

	rate := s.fiat.Rate(currency)
	result := entity.SourcePriceResult{
		Success:        true,
		Price:          priceUsd / rate,
		PriceUsd:       priceUsd,
		PriceBase:      priceBase,
		Token:          &tokenInfo,
		Method:         method,
		Path:           path,
		ConversionRate: rate,
	}
	if basePrice.Approximate {
		// Доступность важнее точности, но подмена курса всегда видна вызывающему.
		result.Note = fmt.Sprintf("base asset USD reference unavailable, using approximate rate %.4f", basePrice.Usd)
	}
	return result
}

// derive runs the forward cascade (spend 1 base unit) and, when it exhausts,
// the reverse cascade (price 1 token unit in base units) as a last resort.
func (s *ammPriceService) derive(ctx context.Context, tokenInfo entity.TokenInfo, baseUsd float64) (priceUsd, priceBase float64, method string, path []string, err error) {
	routing := s.cfg.Routing

	oneBase := unitAmount(routing.BaseAssetDecimals)
	forward, ferr := s.engine.BestQuote(ctx, routing.BaseAsset, tokenInfo.Address, oneBase)
	if ferr == nil {
		received := utils.FormatUnitsFloat(forward.AmountOut, tokenInfo.Decimals)
		if received > 0 {
			// 1 base => X tokens, значит 1 token = baseUsd / X.
			return baseUsd / received, 1 / received, forwardMethod(forward), forward.Route, nil
		}
		s.logger.Warn("Forward quote returned zero output, falling back to reverse", "token", tokenInfo.Address)
	}

	oneToken := unitAmount(tokenInfo.Decimals)
	reverse, rerr := s.engine.BestQuote(ctx, tokenInfo.Address, routing.BaseAsset, oneToken)
	if rerr != nil {
		return 0, 0, "", nil, fmt.Errorf("%w: both directions exhausted for %s", entity.ErrNoLiquidity, tokenInfo.Address)
	}

	// 1 token => Y base units. Цена НЕ инвертируется: Y и есть priceBase.
	baseNeeded := utils.FormatUnitsFloat(reverse.AmountOut, routing.BaseAssetDecimals)
	return baseNeeded * baseUsd, baseNeeded, reverseMethod(reverse), reverse.Route, nil
}

// baseAssetUsdPrice quotes 1 base unit against the stable asset, caching the
// answer for a short window to bound RPC load. On failure it falls back to
// the configured approximate price instead of propagating the error.
func (s *ammPriceService) baseAssetUsdPrice(ctx context.Context) baseAssetPrice {
	if cached, ok := s.basePriceCache.Get(baseAssetUsdCacheKey); ok {
		return cached.(baseAssetPrice)
	}

	routing := s.cfg.Routing
	oneBase := unitAmount(routing.BaseAssetDecimals)

	quote, err := s.engine.BestQuote(ctx, routing.BaseAsset, routing.StableAsset, oneBase)
	if err != nil {
		s.logger.Error("Failed to refresh base asset USD reference, using configured fallback",
			"fallback", s.cfg.Pricing.FallbackBaseAssetUsd, "error", err)
		// Примерный курс не кешируем: следующий запрос попробует снова.
		return baseAssetPrice{Usd: s.cfg.Pricing.FallbackBaseAssetUsd, Approximate: true}
	}

	usd := utils.FormatUnitsFloat(quote.AmountOut, routing.StableAssetDecimals)
	if usd <= 0 {
		s.logger.Error("Base asset USD reference quote returned zero, using configured fallback",
			"fallback", s.cfg.Pricing.FallbackBaseAssetUsd)
		return baseAssetPrice{Usd: s.cfg.Pricing.FallbackBaseAssetUsd, Approximate: true}
	}

	price := baseAssetPrice{Usd: usd}
	s.basePriceCache.SetDefault(baseAssetUsdCacheKey, price)
	s.logger.Info("Base asset USD reference updated", "priceUsd", usd, "method", quote.Method)
	return price
}

// manualResult builds a result from the override table, tagged distinctly so
// consumers can tell it from live-derived prices.
func (s *ammPriceService) manualResult(ctx context.Context, tokenAddress, currency string, manual configloader.ManualPrice) entity.SourcePriceResult {
	tokenInfo, err := s.chain.GetTokenInfo(ctx, tokenAddress)
	if err != nil {
		return entity.SourcePriceResult{Success: false, Error: err.Error()}
	}

	rate := s.fiat.Rate(currency)
	note := manual.Note
	if manual.LastUpdated != "" {
		note = strings.TrimSpace(note + " (last updated " + manual.LastUpdated + ")")
	}
	return entity.SourcePriceResult{
		Success:        true,
		Price:          manual.PriceUsd / rate,
		PriceUsd:       manual.PriceUsd,
		PriceBase:      manual.PriceBase,
		Token:          &tokenInfo,
		Method:         "manual-configured",
		Note:           note,
		ConversionRate: rate,
	}
}

// unitAmount returns 10^decimals, i.e. exactly one token unit in raw form.
func unitAmount(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

func forwardMethod(quote entity.QuoteResult) string {
	if quote.Protocol == entity.ProtocolV2 {
		return "forward-" + quote.Method
	}
	return quote.Method
}

func reverseMethod(quote entity.QuoteResult) string {
	if quote.Protocol == entity.ProtocolV2 {
		return "reverse-swap-v2"
	}
	if quote.Method == "v3-multi-hop" {
		return "reverse-swap-v3-multi"
	}
	return fmt.Sprintf("reverse-swap-v3-fee%d", quote.FeeTier)
}
