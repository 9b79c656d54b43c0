package subgraph

import (
	"context"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"chartfeed/pkg/ohlcv"
	"chartfeed/pkg/ohlcv/dexmath"
)

const (
	// swapsPageCap is the indexer's hard first: ceiling.
	swapsPageCap = 1000
	// maxSwapPages bounds one aggregation request; with full pages that is
	// a few thousand trades of CPU work, well inside one request budget.
	maxSwapPages = 5
)

const swapsQuery = `query ($pool: String!, $start: Int!, $end: Int!, $limit: Int!) {
  swaps(first: $limit, orderBy: timestamp, orderDirection: asc,
    where: { pool: $pool, timestamp_gte: $start, timestamp_lte: $end }) {
    timestamp amount0 amount1 sqrtPriceX96
  }
}`

// rawSwap is one trade after vendor-shape parsing: a timestamp, the trade's
// instantaneous price already oriented for the queried token, and the
// absolute base-leg size.
type rawSwap struct {
	timestamp int64
	price     float64
	amount    decimal.Decimal
}

// fetchSwapCandles serves sub-hour resolutions the indexer has no
// pre-aggregates for: it pulls raw trades for the window and buckets them
// at the exact requested interval.
func (s *Source) fetchSwapCandles(ctx context.Context, chainID int64, pair *ohlcv.PairInfo, q ohlcv.Query) ([]ohlcv.Candle, error) {
	swaps, err := s.fetchSwaps(ctx, chainID, pair, q.Start, q.End)
	if err != nil {
		return nil, err
	}
	return aggregateSwaps(swaps, q.Interval.Seconds(), q.Limit), nil
}

func (s *Source) fetchSwaps(ctx context.Context, chainID int64, pair *ohlcv.PairInfo, start, end int64) ([]rawSwap, error) {
	var out []rawSwap
	cursor := start
	for page := 0; page < maxSwapPages; page++ {
		var data swapsData
		err := s.client.query(ctx, chainID, swapsQuery, map[string]interface{}{
			"pool": pair.PoolAddress, "start": cursor, "end": end, "limit": swapsPageCap,
		}, &data)
		if err != nil {
			return nil, err
		}
		last := int64(0)
		for _, swap := range data.Swaps {
			parsed, ok := parseSwap(swap, pair.IsToken0)
			if !ok {
				continue
			}
			out = append(out, parsed)
			last = parsed.timestamp
		}
		if len(data.Swaps) < swapsPageCap || last >= end || last == 0 {
			break
		}
		// Trades sharing the boundary second with the last one read may
		// be skipped; re-reading them would double-count volume instead.
		cursor = last + 1
	}
	return out, nil
}

func parseSwap(swap graphSwap, isToken0 bool) (rawSwap, bool) {
	timestamp, err := strconv.ParseInt(swap.Timestamp, 10, 64)
	if err != nil {
		return rawSwap{}, false
	}
	price := dexmath.PriceFromSqrtX96(swap.SqrtPriceX96)
	if !isToken0 {
		price = dexmath.Invert(price)
	}
	if price == 0 {
		return rawSwap{}, false
	}
	leg := swap.Amount0
	if !isToken0 {
		leg = swap.Amount1
	}
	amount, err := decimal.NewFromString(leg)
	if err != nil {
		return rawSwap{}, false
	}
	return rawSwap{timestamp: timestamp, price: price, amount: amount.Abs()}, true
}

// swapBucket accumulates one candle's running state.
type swapBucket struct {
	open, high, low, close float64
	volume                 decimal.Decimal
}

// aggregateSwaps buckets trades into OHLCV bars of intervalSec width. One
// O(n) pass: the first trade of a bucket seeds all four prices, later
// trades raise the high, lower the low and move the close; volume sums the
// absolute base-leg amounts. Only the newest maxCandles buckets survive.
func aggregateSwaps(swaps []rawSwap, intervalSec int64, maxCandles int) []ohlcv.Candle {
	if intervalSec <= 0 || len(swaps) == 0 {
		return nil
	}
	buckets := make(map[int64]*swapBucket)
	for _, swap := range swaps {
		bucketStart := swap.timestamp / intervalSec * intervalSec
		bucket, ok := buckets[bucketStart]
		if !ok {
			buckets[bucketStart] = &swapBucket{
				open: swap.price, high: swap.price, low: swap.price, close: swap.price,
				volume: swap.amount,
			}
			continue
		}
		if swap.price > bucket.high {
			bucket.high = swap.price
		}
		if swap.price < bucket.low {
			bucket.low = swap.price
		}
		bucket.close = swap.price
		bucket.volume = bucket.volume.Add(swap.amount)
	}

	starts := make([]int64, 0, len(buckets))
	for start := range buckets {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })
	if maxCandles > 0 && len(starts) > maxCandles {
		starts = starts[len(starts)-maxCandles:]
	}

	out := make([]ohlcv.Candle, 0, len(starts))
	for _, start := range starts {
		bucket := buckets[start]
		out = append(out, ohlcv.Candle{
			Time:   start,
			Open:   dexmath.FormatPrice(bucket.open),
			High:   dexmath.FormatPrice(bucket.high),
			Low:    dexmath.FormatPrice(bucket.low),
			Close:  dexmath.FormatPrice(bucket.close),
			Volume: bucket.volume.String(),
		})
	}
	return ohlcv.SanitizeSeries(out)
}
