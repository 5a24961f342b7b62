package service

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price_aggregator/internal/domain/entity"
)

// fakeSource returns a canned result under a fixed source name.
type fakeSource struct {
	name   string
	result entity.SourcePriceResult
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) GetTokenPrice(_ context.Context, _, _ string) entity.SourcePriceResult {
	return f.result
}

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	debugArgs [][]any
}

func (r *recordingLogger) Info(msg string, args ...any) {}
func (r *recordingLogger) Debug(msg string, args ...any) {
	r.debugArgs = append(r.debugArgs, args)
}
func (r *recordingLogger) Warn(msg string, args ...any)  {}
func (r *recordingLogger) Error(msg string, args ...any) {}

func okSource(name string, price float64) *fakeSource {
	return &fakeSource{name: name, result: entity.SourcePriceResult{
		Success: true, Price: price, PriceUsd: price, ConversionRate: 1,
	}}
}

func failedSource(name, reason string) *fakeSource {
	return &fakeSource{name: name, result: entity.SourcePriceResult{Success: false, Error: reason}}
}

func TestAggregatedPrice_BothSourcesAgree(t *testing.T) {
	aggregator := NewPriceAggregatorService(
		okSource(entity.SourceOnchainAMM, 0.50),
		okSource(entity.SourceExternalAggregator, 0.54),
		&fakeChainClient{}, &fakeQuoteEngine{}, nopLogger{},
	)

	result := aggregator.GetAggregatedPrice(context.Background(), testTokenA, "USD")

	require.NotNil(t, result.PrimaryPrice)
	assert.Equal(t, 0.50, *result.PrimaryPrice, "on-chain wins when both succeed")
	assert.Equal(t, entity.SourceOnchainAMM, result.PrimarySource)

	require.NotNil(t, result.AveragePrice)
	assert.InDelta(t, 0.52, *result.AveragePrice, 1e-12)
	require.NotNil(t, result.PriceDifference)
	assert.InDelta(t, 0.04, *result.PriceDifference, 1e-12)
	require.NotNil(t, result.PriceDifferencePercent)
	assert.InDelta(t, 0.04/0.52*100, *result.PriceDifferencePercent, 1e-9)

	assert.Len(t, result.Sources, 2)
	assert.False(t, result.Cached)
	assert.NotZero(t, result.Timestamp)
}

func TestAggregatedPrice_OnchainFailureFallsBackToExternal(t *testing.T) {
	aggregator := NewPriceAggregatorService(
		failedSource(entity.SourceOnchainAMM, "no liquidity path found"),
		okSource(entity.SourceExternalAggregator, 0.54),
		&fakeChainClient{}, &fakeQuoteEngine{}, nopLogger{},
	)

	result := aggregator.GetAggregatedPrice(context.Background(), testTokenA, "USD")

	require.NotNil(t, result.PrimaryPrice)
	assert.Equal(t, 0.54, *result.PrimaryPrice)
	assert.Equal(t, entity.SourceExternalAggregator, result.PrimarySource)
	assert.Nil(t, result.AveragePrice, "no comparison with a single surviving source")
	assert.Equal(t, "no liquidity path found", result.Sources[entity.SourceOnchainAMM].Error)
}

func TestAggregatedPrice_AllSourcesFailed(t *testing.T) {
	aggregator := NewPriceAggregatorService(
		failedSource(entity.SourceOnchainAMM, "no liquidity path found"),
		failedSource(entity.SourceExternalAggregator, "no data found"),
		&fakeChainClient{}, &fakeQuoteEngine{}, nopLogger{},
	)

	result := aggregator.GetAggregatedPrice(context.Background(), testTokenA, "USD")

	assert.Nil(t, result.PrimaryPrice, "partial result, not an error")
	assert.Empty(t, result.PrimarySource)
	assert.Nil(t, result.AveragePrice)
	assert.Len(t, result.Sources, 2)
}

func TestTokenValue(t *testing.T) {
	aggregator := NewPriceAggregatorService(
		okSource(entity.SourceOnchainAMM, 0.50),
		failedSource(entity.SourceExternalAggregator, "no data found"),
		&fakeChainClient{}, &fakeQuoteEngine{}, nopLogger{},
	)

	result := aggregator.GetTokenValue(context.Background(), testTokenA, 12.5, "USD")

	assert.Equal(t, 12.5, result.Amount)
	require.NotNil(t, result.TotalValue)
	assert.InDelta(t, 6.25, *result.TotalValue, 1e-12)
}

func TestTokenValue_NoPrimaryPrice(t *testing.T) {
	aggregator := NewPriceAggregatorService(
		failedSource(entity.SourceOnchainAMM, "x"),
		failedSource(entity.SourceExternalAggregator, "y"),
		&fakeChainClient{}, &fakeQuoteEngine{}, nopLogger{},
	)

	result := aggregator.GetTokenValue(context.Background(), testTokenA, 12.5, "USD")

	assert.Nil(t, result.TotalValue)
}

func TestSwapQuote(t *testing.T) {
	engine := &fakeQuoteEngine{
		bestQuote: func(_ context.Context, tokenIn, tokenOut string, amountIn *big.Int) (entity.QuoteResult, error) {
			return entity.QuoteResult{
				Route: []string{tokenIn, tokenOut}, Protocol: entity.ProtocolV2,
				AmountIn: amountIn, AmountOut: tokenUnits(5, 18), Method: "swap-v2",
			}, nil
		},
	}
	log := &recordingLogger{}
	aggregator := NewPriceAggregatorService(
		okSource(entity.SourceOnchainAMM, 1),
		okSource(entity.SourceExternalAggregator, 1),
		&fakeChainClient{}, engine, log,
	)

	result := aggregator.GetSwapQuote(context.Background(), testTokenA, testTokenB, 2.0)

	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, "amm", result.Source)
	assert.Equal(t, 2.0, result.AmountIn)
	assert.InDelta(t, 5.0, result.AmountOut, 1e-12)
	assert.InDelta(t, 2.5, result.Price, 1e-12)
	assert.Equal(t, "swap-v2", result.Method)
	assert.Equal(t, []string{testTokenA, testTokenB}, result.Path)

	// Debug log carries the raw output rendered human-readable.
	require.Len(t, log.debugArgs, 1)
	assert.Contains(t, log.debugArgs[0], "5")
}

func TestSwapQuote_NoRoute(t *testing.T) {
	engine := &fakeQuoteEngine{
		bestQuote: func(_ context.Context, _, _ string, _ *big.Int) (entity.QuoteResult, error) {
			return entity.QuoteResult{}, errors.New("no liquidity path found: exhausted")
		},
	}
	aggregator := NewPriceAggregatorService(
		okSource(entity.SourceOnchainAMM, 1),
		okSource(entity.SourceExternalAggregator, 1),
		&fakeChainClient{}, engine, nopLogger{},
	)

	result := aggregator.GetSwapQuote(context.Background(), testTokenA, testTokenB, 1.0)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no liquidity path found")
}
