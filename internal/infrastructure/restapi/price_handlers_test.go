package restapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price_aggregator/internal/app/service"
	"price_aggregator/internal/domain/entity"
	"price_aggregator/internal/infrastructure/configloader"
	"price_aggregator/internal/infrastructure/pricecache"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const testToken = "0x00Be915B9dCf56a3CBE739D9B9c202ca692409EC"

type nopLogger struct{}

func (nopLogger) Info(msg string, args ...any)  {}
func (nopLogger) Debug(msg string, args ...any) {}
func (nopLogger) Warn(msg string, args ...any)  {}
func (nopLogger) Error(msg string, args ...any) {}

// fakeAggregator serves canned answers and counts invocations so the tests
// can observe cache behavior through the HTTP surface.
type fakeAggregator struct {
	priceCalls int
	price      *float64
}

func (f *fakeAggregator) GetAggregatedPrice(_ context.Context, tokenAddress, currency string) entity.AggregatedPriceResult {
	f.priceCalls++
	return entity.AggregatedPriceResult{
		TokenAddress: tokenAddress,
		Currency:     currency,
		Timestamp:    time.Now().UnixMilli(),
		Sources: map[string]entity.SourcePriceResult{
			entity.SourceOnchainAMM:         {Success: f.price != nil},
			entity.SourceExternalAggregator: {Success: false, Error: "no data found"},
		},
		PrimaryPrice:  f.price,
		PrimarySource: entity.SourceOnchainAMM,
	}
}

func (f *fakeAggregator) GetTokenValue(ctx context.Context, tokenAddress string, amount float64, currency string) entity.TokenValueResult {
	result := entity.TokenValueResult{
		AggregatedPriceResult: f.GetAggregatedPrice(ctx, tokenAddress, currency),
		Amount:                amount,
	}
	if result.PrimaryPrice != nil {
		total := *result.PrimaryPrice * amount
		result.TotalValue = &total
	}
	return result
}

func (f *fakeAggregator) GetSwapQuote(_ context.Context, tokenIn, tokenOut string, amountIn float64) entity.SwapQuoteResult {
	return entity.SwapQuoteResult{
		Success:   true,
		Source:    "amm",
		AmountIn:  amountIn,
		AmountOut: amountIn * 2,
		Price:     2,
		Path:      []string{tokenIn, tokenOut},
		Method:    "swap-v2",
		Timestamp: time.Now().UnixMilli(),
	}
}

func newTestRouter(aggregator *fakeAggregator) *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := &configloader.Config{
		Chain:     configloader.ChainConfig{Name: "celo"},
		Tokens:    map[string]string{"CELO": "0x471EcE3750Da237f93B8E339c536989b8978a438"},
		FiatRates: map[string]float64{"USD": 1, "EUR": 0.92},
	}
	handler := NewPriceHandler(
		aggregator,
		pricecache.New(30*time.Second, nopLogger{}),
		service.NewFiatConverter(cfg.FiatRates),
		cfg,
		nopLogger{},
	)
	return SetupRouter(handler)
}

func doRequest(t *testing.T, router *gin.Engine, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(recorder, request)

	var body map[string]any
	if recorder.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	}
	return recorder, body
}

func TestGetPrice_MalformedAddress(t *testing.T) {
	router := newTestRouter(&fakeAggregator{})

	recorder, body := doRequest(t, router, "/price/not-an-address")

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, false, body["success"])
}

func TestGetPrice_SuccessAndCacheHit(t *testing.T) {
	price := 0.5
	aggregator := &fakeAggregator{price: &price}
	router := newTestRouter(aggregator)

	first, firstBody := doRequest(t, router, "/price/"+testToken+"?currency=eur")
	second, secondBody := doRequest(t, router, "/price/"+testToken+"?currency=EUR")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1, aggregator.priceCalls, "second request must be served from cache")
	assert.Equal(t, false, firstBody["cached"])
	assert.Equal(t, true, secondBody["cached"])
	assert.Equal(t, "EUR", firstBody["currency"], "currency is normalized to upper case")
}

func TestGetPrice_PartialFailureStill200(t *testing.T) {
	// All sources down: still a 200 with primaryPrice null, never a 5xx.
	router := newTestRouter(&fakeAggregator{})

	recorder, body := doRequest(t, router, "/price/"+testToken)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Nil(t, body["primaryPrice"])
}

func TestGetValue(t *testing.T) {
	price := 0.5
	router := newTestRouter(&fakeAggregator{price: &price})

	recorder, body := doRequest(t, router, "/value/"+testToken+"/10")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 10.0, body["amount"])
	assert.Equal(t, 5.0, body["totalValue"])
}

func TestGetValue_InvalidAmount(t *testing.T) {
	router := newTestRouter(&fakeAggregator{})

	for _, amount := range []string{"abc", "0", "-5"} {
		recorder, _ := doRequest(t, router, "/value/"+testToken+"/"+amount)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, "amount=%q", amount)
	}
}

func TestGetQuote(t *testing.T) {
	router := newTestRouter(&fakeAggregator{})
	tokenOut := "0x765DE816845861e75A25fCA122bb6898B8B1282a"

	recorder, body := doRequest(t, router, "/quote?tokenIn="+testToken+"&tokenOut="+tokenOut+"&amountIn=3")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 3.0, body["amountIn"])
	assert.Equal(t, 6.0, body["amountOut"])
}

func TestGetQuote_MissingAddresses(t *testing.T) {
	router := newTestRouter(&fakeAggregator{})

	recorder, _ := doRequest(t, router, "/quote?tokenIn="+testToken)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetTokens(t *testing.T) {
	router := newTestRouter(&fakeAggregator{})

	recorder, body := doRequest(t, router, "/tokens")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "celo", body["chain"])
	tokens, ok := body["tokens"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, tokens, "CELO")
}

func TestGetCurrencies(t *testing.T) {
	router := newTestRouter(&fakeAggregator{})

	recorder, body := doRequest(t, router, "/currencies")

	assert.Equal(t, http.StatusOK, recorder.Code)
	currencies, ok := body["currencies"].([]any)
	require.True(t, ok)
	assert.Contains(t, currencies, "USD")
	assert.Contains(t, currencies, "EUR")
}

func TestGetHealth(t *testing.T) {
	router := newTestRouter(&fakeAggregator{})

	recorder, body := doRequest(t, router, "/health")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "cacheEntries")
}

func TestGetAPIIndex(t *testing.T) {
	router := newTestRouter(&fakeAggregator{})

	recorder, body := doRequest(t, router, "/api")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, body, "endpoints")
}
