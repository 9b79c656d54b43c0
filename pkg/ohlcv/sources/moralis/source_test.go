package moralis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartfeed/pkg/ohlcv"
)

const (
	pepeAddr = "0x6982508145454ce325ddbe47a25d4ec3d2311933"
	poolAddr = "0xa43fe16908251ee70ef74718545e4fe6c5ccec9f"
)

func newTestSource(t *testing.T, handler http.Handler) *Source {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	source, err := NewSource("test-key", WithBaseURL(server.URL))
	require.NoError(t, err)
	return source
}

func priceBody(pair string, liquidity interface{}) string {
	payload := map[string]interface{}{
		"tokenAddress":          pepeAddr,
		"tokenSymbol":           "PEPE",
		"tokenName":             "Pepe",
		"tokenDecimals":         18,
		"usdPrice":              0.0000012,
		"pairAddress":           pair,
		"pairTotalLiquidityUsd": liquidity,
		"exchangeName":          "Uniswap v3",
		"exchangeAddress":       "0x1f98431c8ad98523631ae4a59f267346ea31f984",
	}
	body, _ := json.Marshal(payload)
	return string(body)
}

func TestNewSourceRequiresAPIKey(t *testing.T) {
	_, err := NewSource("")
	assert.ErrorIs(t, err, ohlcv.ErrMissingAPIKey)

	_, err = NewSource("   ")
	assert.ErrorIs(t, err, ohlcv.ErrMissingAPIKey)
}

func TestFetchPair(t *testing.T) {
	var calls int32
	var gotKey atomic.Value
	source := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		gotKey.Store(r.Header.Get("X-API-Key"))
		assert.Equal(t, "/erc20/"+pepeAddr+"/price", r.URL.Path)
		assert.Equal(t, "eth", r.URL.Query().Get("chain"))
		fmt.Fprint(w, priceBody(poolAddr, 1234567.89))
	}))

	pair, err := source.FetchPair(context.Background(), 1, pepeAddr, "")
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, poolAddr, pair.PoolAddress)
	assert.Equal(t, "PEPE", pair.BaseSymbol)
	assert.Equal(t, "Uniswap v3", pair.ExchangeName)
	assert.InDelta(t, 1234567.89, pair.LiquidityUSD, 0.01)
	assert.Equal(t, "test-key", gotKey.Load())

	// Second lookup is served from the discovery cache.
	_, err = source.FetchPair(context.Background(), 1, pepeAddr, "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchPairStringLiquidity(t *testing.T) {
	source := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, priceBody(poolAddr, "987654.32"))
	}))

	pair, err := source.FetchPair(context.Background(), 1, pepeAddr, "")
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.InDelta(t, 987654.32, pair.LiquidityUSD, 0.01, "quoted liquidity strings decode too")
}

func TestFetchPairNegativeCache(t *testing.T) {
	var calls int32
	source := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"No pools found"}`)
	}))

	pair, err := source.FetchPair(context.Background(), 1, pepeAddr, "")
	require.NoError(t, err, "404 is a soft miss, not an error")
	assert.Nil(t, pair)

	pair, err = source.FetchPair(context.Background(), 1, pepeAddr, "")
	require.NoError(t, err)
	assert.Nil(t, pair)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "the miss itself is cached")
}

func TestFetchPairServerErrorIsHard(t *testing.T) {
	source := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := source.FetchPair(context.Background(), 1, pepeAddr, "")
	require.Error(t, err, "5xx is not a miss")
}

func TestFetchPairUnsupportedChain(t *testing.T) {
	source := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an unsupported chain")
	}))

	pair, err := source.FetchPair(context.Background(), 999999, pepeAddr, "")
	require.NoError(t, err)
	assert.Nil(t, pair)
}

func TestFetchTokenInfo(t *testing.T) {
	var calls int32
	source := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/erc20/metadata", r.URL.Path)
		assert.Equal(t, pepeAddr, r.URL.Query().Get("addresses[0]"))
		fmt.Fprintf(w, `[{"address":%q,"symbol":"PEPE","name":"Pepe","decimals":"18","logo":"https://cdn.example.com/pepe.png"}]`, pepeAddr)
	}))

	info, err := source.FetchTokenInfo(context.Background(), 1, pepeAddr)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "PEPE", info.Symbol)
	assert.Equal(t, 18, info.Decimals)
	assert.Equal(t, pepeAddr, info.Address)

	_, err = source.FetchTokenInfo(context.Background(), 1, pepeAddr)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func ohlcvPage(from, count int64, stepSec int64) string {
	bars := make([]map[string]interface{}, 0, count)
	// Newest first, the way the vendor answers.
	for i := count - 1; i >= 0; i-- {
		ts := from + i*stepSec
		bars = append(bars, map[string]interface{}{
			"timestamp": time.Unix(ts, 0).UTC().Format(time.RFC3339),
			"open":      1.0, "high": 2.0, "low": 0.5, "close": 1.5,
			"volume": 100.0, "trades": 7,
		})
	}
	payload, _ := json.Marshal(map[string]interface{}{"page": 1, "result": bars})
	return string(payload)
}

func TestFetchOHLCV(t *testing.T) {
	var priceCalls, ohlcvCalls int32
	source := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/erc20/"+pepeAddr+"/price":
			atomic.AddInt32(&priceCalls, 1)
			fmt.Fprint(w, priceBody(poolAddr, 1000000))
		case r.URL.Path == "/pairs/"+poolAddr+"/ohlcv":
			atomic.AddInt32(&ohlcvCalls, 1)
			assert.Equal(t, "1h", r.URL.Query().Get("timeframe"))
			assert.Equal(t, "usd", r.URL.Query().Get("currency"))
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			toDate, err := time.Parse(time.RFC3339, r.URL.Query().Get("toDate"))
			require.NoError(t, err)
			end := toDate.Unix() - toDate.Unix()%3600
			fmt.Fprint(w, ohlcvPage(end-int64(limit-1)*3600, int64(limit), 3600))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	candles, err := source.FetchOHLCV(context.Background(), ohlcv.Query{
		ChainID: 1, Address: pepeAddr, Interval: ohlcv.Interval1h,
		Limit: 50, End: 1700000000,
	})
	require.NoError(t, err)
	require.Len(t, candles, 50)
	assert.Equal(t, int32(1), atomic.LoadInt32(&priceCalls), "discovery precedes candles")
	assert.Equal(t, int32(1), atomic.LoadInt32(&ohlcvCalls))
	for i := 1; i < len(candles); i++ {
		assert.Greater(t, candles[i].Time, candles[i-1].Time, "ascending output")
	}
	assert.Equal(t, "USD", source.QuoteLabel())
}

func TestFetchOHLCVPaginates(t *testing.T) {
	var ohlcvCalls int32
	source := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/erc20/"+pepeAddr+"/price" {
			fmt.Fprint(w, priceBody(poolAddr, 1000000))
			return
		}
		atomic.AddInt32(&ohlcvCalls, 1)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		toDate, _ := time.Parse(time.RFC3339, r.URL.Query().Get("toDate"))
		end := toDate.Unix() - toDate.Unix()%3600
		fmt.Fprint(w, ohlcvPage(end-int64(limit-1)*3600, int64(limit), 3600))
	}))

	candles, err := source.FetchOHLCV(context.Background(), ohlcv.Query{
		ChainID: 1, Address: pepeAddr, Interval: ohlcv.Interval1h,
		Limit: 300, End: 1700000000,
	})
	require.NoError(t, err)
	require.Len(t, candles, 300, "300 candles need two 200-bar pages stitched")
	assert.Equal(t, int32(2), atomic.LoadInt32(&ohlcvCalls))
	for i := 1; i < len(candles); i++ {
		assert.Equal(t, candles[i-1].Time+3600, candles[i].Time, "no gaps across the page seam")
	}
}

func TestFetchOHLCVSoftFailures(t *testing.T) {
	source := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	candles, err := source.FetchOHLCV(context.Background(), ohlcv.Query{
		ChainID: 1, Address: pepeAddr, Interval: ohlcv.Interval1h, Limit: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, candles)

	candles, err = source.FetchOHLCV(context.Background(), ohlcv.Query{
		ChainID: 999999, Address: pepeAddr, Interval: ohlcv.Interval1h, Limit: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, candles, "unsupported chain soft-fails")
}

func TestTimeframesRoundUp(t *testing.T) {
	native := map[string]time.Duration{
		"1min": time.Minute, "5min": 5 * time.Minute, "10min": 10 * time.Minute,
		"30min": 30 * time.Minute, "1h": time.Hour, "4h": 4 * time.Hour,
		"12h": 12 * time.Hour, "1d": 24 * time.Hour, "1w": 7 * 24 * time.Hour,
		"1M": 30 * 24 * time.Hour,
	}
	for _, iv := range ohlcv.Intervals {
		tf, ok := ohlcv.MapInterval(iv, Timeframes())
		require.True(t, ok, "interval %s must be servable", iv)
		width, known := native[tf]
		require.True(t, known, "unknown timeframe %q", tf)
		assert.GreaterOrEqual(t, width, iv.Duration(), "interval %s must not map finer", iv)
	}
}
