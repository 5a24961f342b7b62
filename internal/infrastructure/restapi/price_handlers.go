package restapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"price_aggregator/internal/app/port"
	"price_aggregator/internal/app/service"
	"price_aggregator/internal/domain/entity"
	"price_aggregator/internal/infrastructure/configloader"
	"price_aggregator/internal/infrastructure/pricecache"
	"price_aggregator/internal/pkg/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// APIErrorResponse — тело ответа для ошибок валидации входа.
type APIErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// PriceHandler обрабатывает HTTP запросы ценового API. Частичные сбои
// источников всегда отдаются как 200 с полями success/primaryPrice; 4xx
// зарезервирован за некорректным входом.
type PriceHandler struct {
	aggregator port.PriceAggregator
	cache      *pricecache.ResultCache
	fiat       *service.FiatConverter
	cfg        *configloader.Config
	logger     port.Logger
}

// NewPriceHandler создает новый экземпляр PriceHandler.
func NewPriceHandler(
	aggregator port.PriceAggregator,
	cache *pricecache.ResultCache,
	fiat *service.FiatConverter,
	cfg *configloader.Config,
	l port.Logger,
) *PriceHandler {
	return &PriceHandler{
		aggregator: aggregator,
		cache:      cache,
		fiat:       fiat,
		cfg:        cfg,
		logger:     l,
	}
}

// GetAPIIndexHandler handles GET /api: a self-describing endpoint index.
func (h *PriceHandler) GetAPIIndexHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Crypto Price Aggregator API",
		"version":     "1.0.0",
		"description": "Multi-source token price aggregation for " + h.cfg.Chain.Name,
		"endpoints": gin.H{
			"GET /price/:tokenAddress":        "Get token price in USD or other currency",
			"GET /value/:tokenAddress/:amount": "Get value of specific token amount",
			"GET /quote":                      "Get swap quote between two tokens",
			"GET /tokens":                     "List common token addresses",
			"GET /currencies":                 "List supported currencies",
			"GET /health":                     "Health check",
		},
	})
}

// GetPriceHandler handles GET /price/:tokenAddress?currency=XXX.
func (h *PriceHandler) GetPriceHandler(c *gin.Context) {
	metrics.PriceRequestsTotal.WithLabelValues("price").Inc()

	tokenAddress := c.Param("tokenAddress")
	if !common.IsHexAddress(tokenAddress) {
		c.JSON(http.StatusBadRequest, APIErrorResponse{Error: entity.ErrInvalidToken.Error()})
		return
	}
	currency := strings.ToUpper(c.DefaultQuery("currency", "USD"))

	result := h.cache.GetOrCompute(c.Request.Context(), tokenAddress, currency,
		func(ctx context.Context) entity.AggregatedPriceResult {
			return h.aggregator.GetAggregatedPrice(ctx, tokenAddress, currency)
		})

	c.JSON(http.StatusOK, result)
}

// GetValueHandler handles GET /value/:tokenAddress/:amount?currency=XXX.
func (h *PriceHandler) GetValueHandler(c *gin.Context) {
	metrics.PriceRequestsTotal.WithLabelValues("value").Inc()

	tokenAddress := c.Param("tokenAddress")
	if !common.IsHexAddress(tokenAddress) {
		c.JSON(http.StatusBadRequest, APIErrorResponse{Error: entity.ErrInvalidToken.Error()})
		return
	}

	amount, err := strconv.ParseFloat(c.Param("amount"), 64)
	if err != nil || amount <= 0 {
		c.JSON(http.StatusBadRequest, APIErrorResponse{Error: "invalid amount"})
		return
	}
	currency := strings.ToUpper(c.DefaultQuery("currency", "USD"))

	result := h.aggregator.GetTokenValue(c.Request.Context(), tokenAddress, amount, currency)
	c.JSON(http.StatusOK, result)
}

// GetQuoteHandler handles GET /quote?tokenIn=&tokenOut=&amountIn=.
func (h *PriceHandler) GetQuoteHandler(c *gin.Context) {
	metrics.PriceRequestsTotal.WithLabelValues("quote").Inc()

	tokenIn := c.Query("tokenIn")
	tokenOut := c.Query("tokenOut")
	if !common.IsHexAddress(tokenIn) || !common.IsHexAddress(tokenOut) {
		c.JSON(http.StatusBadRequest, APIErrorResponse{Error: "tokenIn and tokenOut must be valid addresses"})
		return
	}

	amountIn := 1.0
	if raw := c.Query("amountIn"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, APIErrorResponse{Error: "invalid amountIn"})
			return
		}
		amountIn = parsed
	}

	result := h.aggregator.GetSwapQuote(c.Request.Context(), tokenIn, tokenOut, amountIn)
	c.JSON(http.StatusOK, result)
}

// GetTokensHandler handles GET /tokens: well-known token addresses from config.
func (h *PriceHandler) GetTokensHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"chain":  h.cfg.Chain.Name,
		"tokens": h.cfg.Tokens,
	})
}

// GetCurrenciesHandler handles GET /currencies.
func (h *PriceHandler) GetCurrenciesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"currencies": h.fiat.Currencies(),
		"rates":      h.fiat.Rates(),
		"note":       "rates are static approximations relative to USD; unknown codes are treated as USD",
	})
}

// GetHealthHandler handles GET /health.
func (h *PriceHandler) GetHealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"chain":        h.cfg.Chain.Name,
		"cacheEntries": h.cache.ItemCount(),
		"timestamp":    time.Now().UnixMilli(),
	})
}
