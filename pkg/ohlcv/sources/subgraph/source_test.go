package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartfeed/pkg/ohlcv"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

const (
	uniAddr  = "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984"
	usdcAddr = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	wethAddr = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	poolAddr = "0x1d42064fc4beb5f8aaf85f4617ae8b3b5b8bd801"
)

func graphHandler(t *testing.T, respond func(req graphQLRequest) string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		fmt.Fprint(w, respond(req))
	})
}

func newTestSource(t *testing.T, handler http.Handler) *Source {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewSource(NewClient(map[int64][]string{1: {server.URL}}))
}

func poolJSON(address, token0, token1, tvl string) string {
	return fmt.Sprintf(`{
		"id": %q, "totalValueLockedUSD": %q, "feeTier": "3000",
		"token0": {"id": %q, "symbol": "T0", "decimals": "18"},
		"token1": {"id": %q, "symbol": "T1", "decimals": "6"}
	}`, address, tvl, token0, token1)
}

func poolsResponse(asToken0, asToken1 []string) string {
	return fmt.Sprintf(`{"data": {"asToken0": [%s], "asToken1": [%s]}}`,
		strings.Join(asToken0, ","), strings.Join(asToken1, ","))
}

func TestSelectDeepestPool(t *testing.T) {
	shallow := "0x1111111111111111111111111111111111111111"
	pools := []graphPool{
		{
			ID: shallow, TotalValueLockedUSD: "50000",
			Token0: graphToken{ID: uniAddr, Symbol: "UNI"},
			Token1: graphToken{ID: usdcAddr, Symbol: "USDC"},
		},
		{
			ID: poolAddr, TotalValueLockedUSD: "9000000.5",
			Token0: graphToken{ID: wethAddr, Symbol: "WETH"},
			Token1: graphToken{ID: uniAddr, Symbol: "UNI"},
		},
	}

	best := selectDeepestPool(pools, uniAddr)
	require.NotNil(t, best)
	assert.Equal(t, poolAddr, best.PoolAddress)
	assert.Equal(t, "uniswap-v3", best.ExchangeName)
	assert.False(t, best.IsToken0, "queried token sits in the token1 slot")
	assert.Equal(t, uniAddr, best.BaseToken)
	assert.Equal(t, wethAddr, best.QuoteToken)
	assert.Equal(t, "UNI", best.BaseSymbol)
	assert.Equal(t, "WETH", best.QuoteSymbol)
	assert.InDelta(t, 9000000.5, best.LiquidityUSD, 0.01)
}

func TestSelectDeepestPoolSkipsJunk(t *testing.T) {
	pools := []graphPool{
		{ID: "not-an-address", TotalValueLockedUSD: "1000000"},
	}
	assert.Nil(t, selectDeepestPool(pools, uniAddr))
	assert.Nil(t, selectDeepestPool(nil, uniAddr))
}

func TestFetchPairCachesDiscovery(t *testing.T) {
	var calls int32
	source := newTestSource(t, graphHandler(t, func(req graphQLRequest) string {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, uniAddr, req.Variables["token"])
		return poolsResponse([]string{poolJSON(poolAddr, uniAddr, wethAddr, "500000")}, nil)
	}))

	pair, err := source.FetchPair(context.Background(), 1, uniAddr, "")
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, poolAddr, pair.PoolAddress)
	assert.True(t, pair.IsToken0)

	_, err = source.FetchPair(context.Background(), 1, uniAddr, "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "discovery is cached")
}

func TestFetchPairPinnedQuote(t *testing.T) {
	source := newTestSource(t, graphHandler(t, func(req graphQLRequest) string {
		quotes, ok := req.Variables["quotes"].([]interface{})
		require.True(t, ok)
		require.Len(t, quotes, 1)
		assert.Equal(t, wethAddr, quotes[0])
		return poolsResponse(nil, nil)
	}))

	pair, err := source.FetchPair(context.Background(), 1, uniAddr, wethAddr)
	require.NoError(t, err)
	assert.Nil(t, pair, "no pool against the pinned quote")
}

func TestFetchPairUnknownChain(t *testing.T) {
	source := NewSource(NewClient(nil))
	pair, err := source.FetchPair(context.Background(), 8453, uniAddr, "")
	require.NoError(t, err)
	assert.Nil(t, pair)
	assert.False(t, source.Supports(8453))
}

func TestNormalizeAggregatesInverted(t *testing.T) {
	rows := []preAggregate{
		{
			bucketStart: 1700000000,
			open:        "4000", high: "5000", low: "2000", close: "2500",
			volume0: "12.5", volume1: "31250",
		},
	}

	candles := normalizeAggregates(rows, false)
	require.Len(t, candles, 1)
	// Inverting the bar swaps the extremes: 1/low becomes the high.
	assert.Equal(t, "0.00025", candles[0].Open)
	assert.Equal(t, "0.0005", candles[0].High)
	assert.Equal(t, "0.0002", candles[0].Low)
	assert.Equal(t, "0.0004", candles[0].Close)
	assert.Equal(t, "31250", candles[0].Volume)

	straight := normalizeAggregates(rows, true)
	require.Len(t, straight, 1)
	assert.Equal(t, "4000", straight[0].Open)
	assert.Equal(t, "12.5", straight[0].Volume)
}

func TestNormalizeAggregatesDropsMalformed(t *testing.T) {
	rows := []preAggregate{
		{bucketStart: 100, open: "abc", high: "2", low: "1", close: "1.5", volume0: "1"},
		{bucketStart: 200, open: "1.1", high: "2", low: "1", close: "1.5", volume0: "3"},
	}
	candles := normalizeAggregates(rows, true)
	require.Len(t, candles, 1)
	assert.Equal(t, int64(200), candles[0].Time)
}

func TestAggregateSwaps(t *testing.T) {
	swaps := []rawSwap{
		{timestamp: 900, price: 10, amount: dec("5")},
		{timestamp: 1000, price: 14, amount: dec("2")},
		{timestamp: 1100, price: 8, amount: dec("1")},
		{timestamp: 1199, price: 12, amount: dec("4")},
		// Second bucket at a 300s width.
		{timestamp: 1300, price: 13, amount: dec("7")},
	}

	candles := aggregateSwaps(swaps, 300, 0)
	require.Len(t, candles, 2)

	first := candles[0]
	assert.Equal(t, int64(900), first.Time)
	assert.Equal(t, "10", first.Open)
	assert.Equal(t, "14", first.High)
	assert.Equal(t, "8", first.Low)
	assert.Equal(t, "12", first.Close)
	assert.Equal(t, "12", first.Volume)

	second := candles[1]
	assert.Equal(t, int64(1200), second.Time)
	assert.Equal(t, "13", second.Open)
	assert.Equal(t, "7", second.Volume)
}

func TestAggregateSwapsKeepsNewest(t *testing.T) {
	swaps := []rawSwap{
		{timestamp: 0, price: 1, amount: dec("1")},
		{timestamp: 60, price: 2, amount: dec("1")},
		{timestamp: 120, price: 3, amount: dec("1")},
	}
	candles := aggregateSwaps(swaps, 60, 2)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(60), candles[0].Time)
	assert.Equal(t, int64(120), candles[1].Time)

	assert.Nil(t, aggregateSwaps(nil, 60, 10))
	assert.Nil(t, aggregateSwaps(swaps, 0, 10))
}

func TestParseSwapOrientation(t *testing.T) {
	swap := graphSwap{
		Timestamp:    "1700000123",
		Amount0:      "-250.5",
		Amount1:      "0.125",
		SqrtPriceX96: "79228162514264337593543950336", // exactly 2^96, price 1
	}

	asToken0, ok := parseSwap(swap, true)
	require.True(t, ok)
	assert.Equal(t, int64(1700000123), asToken0.timestamp)
	assert.InDelta(t, 1.0, asToken0.price, 1e-12)
	assert.Equal(t, "250.5", asToken0.amount.String(), "base leg is absolute")

	asToken1, ok := parseSwap(swap, false)
	require.True(t, ok)
	assert.InDelta(t, 1.0, asToken1.price, 1e-12)
	assert.Equal(t, "0.125", asToken1.amount.String())

	_, ok = parseSwap(graphSwap{Timestamp: "nope"}, true)
	assert.False(t, ok)
	_, ok = parseSwap(graphSwap{Timestamp: "1", Amount0: "1", SqrtPriceX96: "0"}, true)
	assert.False(t, ok, "zero price is unusable")
}

func TestFetchOHLCVHourly(t *testing.T) {
	source := newTestSource(t, graphHandler(t, func(req graphQLRequest) string {
		if strings.Contains(req.Query, "asToken0") {
			return poolsResponse([]string{poolJSON(poolAddr, uniAddr, wethAddr, "500000")}, nil)
		}
		require.Contains(t, req.Query, "poolHourDatas")
		assert.Equal(t, poolAddr, req.Variables["pool"])
		return `{"data": {"poolHourDatas": [
			{"periodStartUnix": 1700003600, "open": "7.2", "high": "7.5", "low": "7.0", "close": "7.4", "volumeToken0": "120", "volumeToken1": "864"},
			{"periodStartUnix": 1700000000, "open": "7.0", "high": "7.3", "low": "6.9", "close": "7.2", "volumeToken0": "90", "volumeToken1": "630"}
		]}}`
	}))

	candles, err := source.FetchOHLCV(context.Background(), ohlcv.Query{
		ChainID:  1,
		Address:  uniAddr,
		Interval: ohlcv.Interval1h,
		Start:    1699990000,
		End:      1700010000,
	})
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1700000000), candles[0].Time, "series is ascending")
	assert.Equal(t, "7.2", candles[1].Open)
	assert.Equal(t, "120", candles[1].Volume)
}

func TestFetchOHLCVSubHourUsesSwaps(t *testing.T) {
	source := newTestSource(t, graphHandler(t, func(req graphQLRequest) string {
		if strings.Contains(req.Query, "asToken0") {
			return poolsResponse([]string{poolJSON(poolAddr, uniAddr, wethAddr, "500000")}, nil)
		}
		require.Contains(t, req.Query, "swaps")
		return `{"data": {"swaps": [
			{"timestamp": "1700000100", "amount0": "-10", "amount1": "1", "sqrtPriceX96": "79228162514264337593543950336"},
			{"timestamp": "1700000400", "amount0": "4", "amount1": "-0.4", "sqrtPriceX96": "79228162514264337593543950336"}
		]}}`
	}))

	candles, err := source.FetchOHLCV(context.Background(), ohlcv.Query{
		ChainID:  1,
		Address:  uniAddr,
		Interval: ohlcv.Interval5m,
		Start:    1700000000,
		End:      1700000700,
	})
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1700000100), candles[0].Time)
	assert.Equal(t, "10", candles[0].Volume)
	assert.Equal(t, int64(1700000400), candles[1].Time)
}

func TestFetchOHLCVUnsupported(t *testing.T) {
	source := newTestSource(t, graphHandler(t, func(req graphQLRequest) string {
		return poolsResponse([]string{poolJSON(poolAddr, uniAddr, wethAddr, "500000")}, nil)
	}))

	candles, err := source.FetchOHLCV(context.Background(), ohlcv.Query{
		ChainID: 1, Address: uniAddr, Interval: ohlcv.Interval1w,
	})
	require.NoError(t, err)
	assert.Nil(t, candles, "weekly bars have no pre-aggregate")

	candles, err = source.FetchOHLCV(context.Background(), ohlcv.Query{
		ChainID: 137, Address: uniAddr, Interval: ohlcv.Interval1h,
	})
	require.NoError(t, err)
	assert.Nil(t, candles, "chain has no configured endpoint")
}

func TestFetchOHLCVVendorErrorSoftFails(t *testing.T) {
	source := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	candles, err := source.FetchOHLCV(context.Background(), ohlcv.Query{
		ChainID: 1, Address: uniAddr, Interval: ohlcv.Interval1h,
	})
	require.NoError(t, err)
	assert.Nil(t, candles)
}

func TestTimeframesNeverFiner(t *testing.T) {
	tf, ok := ohlcv.MapInterval(ohlcv.Interval4h, Timeframes())
	require.True(t, ok)
	assert.Equal(t, "day", tf)

	tf, ok = ohlcv.MapInterval(ohlcv.Interval1h, Timeframes())
	require.True(t, ok)
	assert.Equal(t, "hour", tf)

	_, ok = ohlcv.MapInterval(ohlcv.Interval1M, Timeframes())
	assert.False(t, ok)
}
