// Package subgraph implements the liquidity-pool indexer candle source,
// backed by GraphQL endpoints in the Uniswap v3 schema.
package subgraph

import (
	"context"
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"chartfeed/pkg/ohlcv"
)

const (
	poolCacheTTL    = 30 * time.Minute
	poolNegativeTTL = 2 * time.Minute

	preAggregatePageCap = 1000
)

// timeframes covers the intervals served from pre-aggregates. The indexer
// stores hourly and daily rollups only, so everything between 2h and 1d
// rounds up to daily bars; sub-hour intervals bypass this table and are
// built from raw swaps at the exact requested width.
var timeframes = ohlcv.TimeframeTable{
	ohlcv.Interval1h:  "hour",
	ohlcv.Interval2h:  "day",
	ohlcv.Interval4h:  "day",
	ohlcv.Interval6h:  "day",
	ohlcv.Interval8h:  "day",
	ohlcv.Interval12h: "day",
	ohlcv.Interval1d:  "day",
}

// Timeframes exposes the pre-aggregate table for mapping tests.
func Timeframes() ohlcv.TimeframeTable { return timeframes }

// Source serves candles from liquidity-pool indexers.
type Source struct {
	client *Client
	pools  *ohlcv.TTLCache[*ohlcv.PairInfo]
}

// NewSource constructs the indexer source.
func NewSource(client *Client) *Source {
	if client == nil {
		client = NewClient(nil)
	}
	return &Source{
		client: client,
		pools:  ohlcv.NewTTLCache[*ohlcv.PairInfo](poolCacheTTL, poolNegativeTTL),
	}
}

func init() {
	ohlcv.RegisterSource("subgraph", func(name string, cfg *ohlcv.SourceConfig) (ohlcv.Source, error) {
		opts := []Option{}
		if cfg.Timeout > 0 {
			opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
		}
		return NewSource(NewClient(cfg.Endpoints, opts...)), nil
	})
}

// Name implements ohlcv.Source.
func (s *Source) Name() string { return "subgraph" }

// Supports implements ohlcv.Source: only chains with configured endpoints.
func (s *Source) Supports(chainID int64) bool {
	return s.client.HasChain(chainID)
}

// FetchOHLCV implements ohlcv.Source. Sub-hour intervals aggregate raw
// swaps; 1h and coarser read the indexer's hourly/daily rollups.
func (s *Source) FetchOHLCV(ctx context.Context, q ohlcv.Query) ([]ohlcv.Candle, error) {
	if !s.client.HasChain(q.ChainID) {
		return nil, nil
	}
	pair, err := s.FetchPair(ctx, q.ChainID, q.Address, q.Quote)
	if err != nil {
		logx.WithContext(ctx).Errorf("subgraph: discover pool chain=%d token=%s: %v", q.ChainID, q.Address, err)
		return nil, nil
	}
	if pair == nil {
		return nil, nil
	}

	if q.Interval.Duration() < ohlcv.Interval1h.Duration() {
		candles, err := s.fetchSwapCandles(ctx, q.ChainID, pair, q)
		if err != nil {
			logx.WithContext(ctx).Errorf("subgraph: swaps chain=%d pool=%s: %v", q.ChainID, pair.PoolAddress, err)
			return nil, nil
		}
		return candles, nil
	}

	timeframe, ok := ohlcv.MapInterval(q.Interval, timeframes)
	if !ok {
		return nil, nil
	}
	fetch := s.fetchHourData
	if timeframe == "day" {
		fetch = s.fetchDayData
	}
	candles, err := fetch(ctx, q.ChainID, pair, q.Start, q.End, preAggregatePageCap)
	if err != nil {
		logx.WithContext(ctx).Errorf("subgraph: %s data chain=%d pool=%s: %v", timeframe, q.ChainID, pair.PoolAddress, err)
		return nil, nil
	}
	if q.Limit > 0 && len(candles) > q.Limit {
		candles = candles[len(candles)-q.Limit:]
	}
	return candles, nil
}
