package pricecache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"price_aggregator/internal/app/port"
	"price_aggregator/internal/domain/entity"
	"price_aggregator/internal/pkg/metrics"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// ResultCache — короткоживущий TTL-кеш агрегированных ответов перед всем
// конвейером. Ключ: (адрес токена в нижнем регистре, валюта). Записываются
// только результаты с ненулевым primaryPrice: неудачи не кешируются, чтобы
// кратковременный сбой ликвидности самоисцелялся на следующем запросе.
type ResultCache struct {
	cache  *gocache.Cache
	group  singleflight.Group
	logger port.Logger
}

// New creates a result cache with the given TTL.
func New(ttl time.Duration, l port.Logger) *ResultCache {
	return &ResultCache{
		cache:  gocache.New(ttl, 2*ttl),
		logger: l,
	}
}

// Key builds the cache key for a (token, currency) pair.
func Key(tokenAddress, currency string) string {
	return fmt.Sprintf("price:%s:%s", strings.ToLower(tokenAddress), strings.ToUpper(currency))
}

// GetOrCompute returns the cached result for the pair, marking it cached:true,
// or computes a fresh one. Конкурентные одинаковые промахи схлопываются через
// singleflight: вычисление выполняется один раз.
//
// A cache hit never recomputes or refreshes mid-request.
func (c *ResultCache) GetOrCompute(
	ctx context.Context,
	tokenAddress, currency string,
	compute func(context.Context) entity.AggregatedPriceResult,
) entity.AggregatedPriceResult {
	key := Key(tokenAddress, currency)

	if cached, ok := c.cache.Get(key); ok {
		result := cached.(entity.AggregatedPriceResult)
		result.Cached = true
		metrics.CacheHitsTotal.Inc()
		c.logger.Debug("Result cache hit", "key", key)
		return result
	}

	value, _, _ := c.group.Do(key, func() (interface{}, error) {
		result := compute(ctx)
		if result.PrimaryPrice != nil {
			c.cache.SetDefault(key, result)
		}
		return result, nil
	})

	// Свежий (или схлопнутый по singleflight) ответ — не кеш-хит.
	result := value.(entity.AggregatedPriceResult)
	result.Cached = false
	return result
}

// ItemCount returns the number of live entries, for the health endpoint.
func (c *ResultCache) ItemCount() int {
	return c.cache.ItemCount()
}
