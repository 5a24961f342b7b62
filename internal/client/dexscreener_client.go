package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"price_aggregator/internal/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DEXScreenerClient defines the interface for interacting with the
// DexScreener API.
type DEXScreenerClient interface {
	// SearchPairs queries GET /search?q=<query> and returns the raw pairs.
	SearchPairs(ctx context.Context, query string) ([]entity.PairData, error)
	// GetTokenPairs queries GET /tokens/<address> and returns the raw pairs.
	GetTokenPairs(ctx context.Context, tokenAddress string) ([]entity.PairData, error)
}

// dexScreenerClientImpl is the implementation of DEXScreenerClient.
type dexScreenerClientImpl struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewDEXScreenerClient creates a new instance of dexScreenerClientImpl.
// ratePerSecond ограничивает частоту обращений к публичному API.
func NewDEXScreenerClient(baseURL string, timeout time.Duration, ratePerSecond float64, logger *zap.Logger) DEXScreenerClient {
	return &dexScreenerClientImpl{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), 1),
		logger:  logger.Named("DEXScreenerClient"),
	}
}

// SearchPairs implements the DEXScreenerClient interface.
func (c *dexScreenerClientImpl) SearchPairs(ctx context.Context, query string) ([]entity.PairData, error) {
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	requestURL := fmt.Sprintf("%s/search?q=%s", c.baseURL, url.QueryEscape(query))
	return c.fetchPairs(ctx, requestURL)
}

// GetTokenPairs implements the DEXScreenerClient interface.
func (c *dexScreenerClientImpl) GetTokenPairs(ctx context.Context, tokenAddress string) ([]entity.PairData, error) {
	if tokenAddress == "" {
		return nil, fmt.Errorf("tokenAddress cannot be empty")
	}
	requestURL := fmt.Sprintf("%s/tokens/%s", c.baseURL, url.PathEscape(tokenAddress))
	return c.fetchPairs(ctx, requestURL)
}

func (c *dexScreenerClientImpl) fetchPairs(ctx context.Context, requestURL string) ([]entity.PairData, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait aborted for %s: %w", requestURL, err)
	}

	c.logger.Debug("Requesting pairs from DexScreener", zap.String("url", requestURL))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetContentTypeBytes([]byte("application/json"))

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	// Дедлайн контекста имеет приоритет над собственным таймаутом клиента.
	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			c.logger.Error("Failed to execute request to DexScreener", zap.String("url", requestURL), zap.Error(err))
			return nil, c.classify(requestURL, err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			c.logger.Error("Failed to execute request to DexScreener (with default timeout)", zap.String("url", requestURL), zap.Error(err))
			return nil, c.classify(requestURL, err)
		}
	}

	rawBody := resp.Body()

	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("DexScreener API request failed",
			zap.String("url", requestURL),
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", rawBody),
		)
		return nil, fmt.Errorf("DexScreener API request to %s failed with status %d: %s", requestURL, resp.StatusCode(), string(rawBody))
	}

	var wrapper entity.DEXSearchResponse
	if err := json.Unmarshal(rawBody, &wrapper); err != nil {
		c.logger.Error("Failed to unmarshal DexScreener response",
			zap.String("url", requestURL),
			zap.ByteString("responseBody", rawBody),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to unmarshal DexScreener response from %s: %w", requestURL, err)
	}

	if len(wrapper.Pairs) == 0 {
		c.logger.Warn("DexScreener returned 200 OK with 0 pairs",
			zap.String("url", requestURL))
	} else {
		c.logger.Debug("Successfully unmarshalled DexScreener response",
			zap.Int("pairCount", len(wrapper.Pairs)))
	}
	return wrapper.Pairs, nil
}

func (c *dexScreenerClientImpl) classify(requestURL string, err error) error {
	if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request to %s timed out: %w", requestURL, err)
	}
	return fmt.Errorf("failed to execute request to %s: %w", requestURL, err)
}
