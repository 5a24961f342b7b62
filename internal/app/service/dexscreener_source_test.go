package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dex_types "price_aggregator/internal/entity"
)

type fakeDEXClient struct {
	pairs      []dex_types.PairData
	tokenPairs []dex_types.PairData
	err        error
}

func (f *fakeDEXClient) SearchPairs(_ context.Context, _ string) ([]dex_types.PairData, error) {
	return f.pairs, f.err
}

func (f *fakeDEXClient) GetTokenPairs(_ context.Context, _ string) ([]dex_types.PairData, error) {
	return f.tokenPairs, f.err
}

func celoPair(dexID, priceUsd string, liquidityUsd float64) dex_types.PairData {
	return dex_types.PairData{
		ChainID:     "celo",
		DexID:       dexID,
		BaseToken:   dex_types.DEXToken{Address: testTokenA, Symbol: "TKN", Name: "Token"},
		PriceNative: "0.02",
		PriceUsd:    priceUsd,
		Volume:      dex_types.PairVolume{H24: 12345.6},
		Liquidity:   &dex_types.DEXLiquidity{Usd: liquidityUsd},
	}
}

func newDexSource(c *fakeDEXClient) *dexScreenerSource {
	return NewDexScreenerSource(c, "celo", 5*time.Second, NewFiatConverter(nil), nopLogger{}).(*dexScreenerSource)
}

func TestDexScreener_PicksMostLiquidPairOnChain(t *testing.T) {
	otherChain := celoPair("uniswap", "9.99", 9_000_000)
	otherChain.ChainID = "ethereum"

	client := &fakeDEXClient{pairs: []dex_types.PairData{
		otherChain,
		celoPair("ubeswap", "0.0101", 50_000),
		celoPair("sushiswap", "0.0100", 250_000),
	}}

	result := newDexSource(client).GetTokenPrice(context.Background(), testTokenA, "USD")

	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, "sushiswap", result.DexID, "liquidity outranks listing order and other chains")
	assert.InDelta(t, 0.01, result.PriceUsd, 1e-12)
	assert.InDelta(t, 0.02, result.PriceBase, 1e-12)
	assert.Equal(t, "aggregator-best-pair", result.Method)
	assert.Equal(t, 250_000.0, result.LiquidityUsd)
	assert.Equal(t, 12345.6, result.Volume24h)
}

func TestDexScreener_ChainFilterCaseInsensitive(t *testing.T) {
	pair := celoPair("ubeswap", "0.5", 1000)
	pair.ChainID = "Celo"

	result := newDexSource(&fakeDEXClient{pairs: []dex_types.PairData{pair}}).
		GetTokenPrice(context.Background(), testTokenA, "USD")

	assert.True(t, result.Success)
}

func TestDexScreener_NilLiquidityRanksLowest(t *testing.T) {
	noLiquidity := celoPair("ubeswap", "0.02", 0)
	noLiquidity.Liquidity = nil

	result := newDexSource(&fakeDEXClient{pairs: []dex_types.PairData{
		noLiquidity,
		celoPair("sushiswap", "0.01", 100),
	}}).GetTokenPrice(context.Background(), testTokenA, "USD")

	require.True(t, result.Success)
	assert.Equal(t, "sushiswap", result.DexID)
}

func TestDexScreener_TokenLookupFallback(t *testing.T) {
	// Search misses the token; the direct /tokens lookup still answers.
	client := &fakeDEXClient{
		tokenPairs: []dex_types.PairData{celoPair("ubeswap", "0.03", 1000)},
	}

	result := newDexSource(client).GetTokenPrice(context.Background(), testTokenA, "USD")

	require.True(t, result.Success, "error: %s", result.Error)
	assert.InDelta(t, 0.03, result.PriceUsd, 1e-12)
}

func TestDexScreener_EmptyResult(t *testing.T) {
	result := newDexSource(&fakeDEXClient{}).GetTokenPrice(context.Background(), testTokenA, "USD")

	assert.False(t, result.Success)
	assert.Equal(t, "no data found", result.Error)
}

func TestDexScreener_NoPairsOnTargetChain(t *testing.T) {
	pair := celoPair("uniswap", "1.0", 1000)
	pair.ChainID = "ethereum"

	result := newDexSource(&fakeDEXClient{pairs: []dex_types.PairData{pair}}).
		GetTokenPrice(context.Background(), testTokenA, "USD")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no pairs found on celo")
}

func TestDexScreener_UpstreamError(t *testing.T) {
	result := newDexSource(&fakeDEXClient{err: errors.New("connection refused")}).
		GetTokenPrice(context.Background(), testTokenA, "USD")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "connection refused")
}

func TestDexScreener_UnusablePrice(t *testing.T) {
	for _, priceUsd := range []string{"", "not-a-number", "0"} {
		result := newDexSource(&fakeDEXClient{pairs: []dex_types.PairData{
			celoPair("ubeswap", priceUsd, 1000),
		}}).GetTokenPrice(context.Background(), testTokenA, "USD")

		assert.False(t, result.Success, "priceUsd=%q must be rejected", priceUsd)
		assert.Equal(t, "pair has no usable USD price", result.Error)
	}
}

func TestDexScreener_CurrencyConversion(t *testing.T) {
	source := NewDexScreenerSource(
		&fakeDEXClient{pairs: []dex_types.PairData{celoPair("ubeswap", "1.84", 1000)}},
		"celo", 5*time.Second,
		NewFiatConverter(map[string]float64{"EUR": 0.92}),
		nopLogger{},
	)

	result := source.GetTokenPrice(context.Background(), testTokenA, "eur")

	require.True(t, result.Success)
	assert.InDelta(t, 2.0, result.Price, 1e-12)
	assert.Equal(t, 0.92, result.ConversionRate)
}
