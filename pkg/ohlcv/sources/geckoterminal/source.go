// Package geckoterminal implements the free DEX-market candle source.
package geckoterminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"chartfeed/pkg/ohlcv"
)

const (
	ohlcvPageCap = 1000

	poolCacheTTL    = 30 * time.Minute
	poolNegativeTTL = 2 * time.Minute
)

// timeframes maps canonical intervals onto "{period}:{aggregate}" pairs.
// The vendor offers minute aggregates of 1/5/15, hour aggregates of 1/4/12
// and daily bars; multi-day intervals have no coarser timeframe and are
// absent, so this source soft-fails for them.
var timeframes = ohlcv.TimeframeTable{
	ohlcv.Interval1m:  "minute:1",
	ohlcv.Interval3m:  "minute:5",
	ohlcv.Interval5m:  "minute:5",
	ohlcv.Interval15m: "minute:15",
	ohlcv.Interval30m: "hour:1",
	ohlcv.Interval1h:  "hour:1",
	ohlcv.Interval2h:  "hour:4",
	ohlcv.Interval4h:  "hour:4",
	ohlcv.Interval6h:  "hour:12",
	ohlcv.Interval8h:  "hour:12",
	ohlcv.Interval12h: "hour:12",
	ohlcv.Interval1d:  "day:1",
}

// Timeframes exposes the vendor table for mapping tests.
func Timeframes() ohlcv.TimeframeTable { return timeframes }

// Source serves pool discovery and candles from GeckoTerminal.
type Source struct {
	client *Client
	pools  *ohlcv.TTLCache[*ohlcv.PairInfo]
}

// NewSource constructs the GeckoTerminal source.
func NewSource(client *Client) *Source {
	if client == nil {
		client = NewClient()
	}
	return &Source{
		client: client,
		pools:  ohlcv.NewTTLCache[*ohlcv.PairInfo](poolCacheTTL, poolNegativeTTL),
	}
}

func init() {
	ohlcv.RegisterSource("geckoterminal", func(name string, cfg *ohlcv.SourceConfig) (ohlcv.Source, error) {
		opts := []Option{}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
		}
		return NewSource(NewClient(opts...)), nil
	})
}

// Name implements ohlcv.Source.
func (s *Source) Name() string { return "geckoterminal" }

// QuoteLabel implements ohlcv.QuoteLabeler: candles are requested with
// currency=usd whatever pool backs them.
func (s *Source) QuoteLabel() string { return "USD" }

// Supports implements ohlcv.Source.
func (s *Source) Supports(chainID int64) bool {
	chain, ok := ohlcv.ChainByID(chainID)
	return ok && chain.GeckoSlug != ""
}

// FetchPair implements ohlcv.PairSource: the token's top pools are ranked
// by USD reserve and the deepest one wins. IsToken0 records whether the
// queried token is the pool's base constituent, which picks the price side
// on subsequent OHLCV calls.
func (s *Source) FetchPair(ctx context.Context, chainID int64, token, quote string) (*ohlcv.PairInfo, error) {
	chain, ok := ohlcv.ChainByID(chainID)
	if !ok {
		return nil, nil
	}
	key := fmt.Sprintf("pool:%d:%s:%s", chainID, token, quote)
	if cached, ok, negative := s.pools.Get(key); ok {
		if negative {
			return nil, nil
		}
		return cached, nil
	}

	pools, err := s.client.getTokenPools(ctx, chain.GeckoSlug, token)
	if err != nil {
		var status *statusError
		if errors.As(err, &status) && status.softMiss() {
			s.pools.SetNegative(key)
			return nil, nil
		}
		return nil, err
	}

	best := selectDeepestPool(pools.Data, chain.GeckoSlug, token, quote)
	if best == nil {
		s.pools.SetNegative(key)
		return nil, nil
	}
	s.pools.Set(key, best)
	return best, nil
}

func selectDeepestPool(pools []poolResource, network, token, quote string) *ohlcv.PairInfo {
	var best *ohlcv.PairInfo
	bestReserve := -1.0
	for _, pool := range pools {
		address := ohlcv.NormalizeAddress(pool.Attributes.Address)
		if address == "" {
			continue
		}
		base := tokenAddressFromID(pool.Relationships.BaseToken.Data.ID, network)
		quoteToken := tokenAddressFromID(pool.Relationships.QuoteToken.Data.ID, network)
		if quote != "" && base != quote && quoteToken != quote {
			continue
		}
		reserve, err := strconv.ParseFloat(pool.Attributes.ReserveInUSD, 64)
		if err != nil {
			reserve = 0
		}
		if reserve <= bestReserve {
			continue
		}
		price, _ := strconv.ParseFloat(pool.Attributes.BaseTokenPriceUSD, 64)
		bestReserve = reserve
		best = &ohlcv.PairInfo{
			PoolAddress:  address,
			ExchangeName: pool.Relationships.Dex.Data.ID,
			BaseToken:    base,
			QuoteToken:   quoteToken,
			QuoteSymbol:  "USD",
			IsToken0:     base == token,
			PriceUSD:     price,
			LiquidityUSD: reserve,
		}
	}
	return best
}

// tokenAddressFromID strips the "{network}_" prefix from a token resource id.
func tokenAddressFromID(id, network string) string {
	return ohlcv.NormalizeAddress(strings.TrimPrefix(id, network+"_"))
}

// FetchOHLCV implements ohlcv.Source.
func (s *Source) FetchOHLCV(ctx context.Context, q ohlcv.Query) ([]ohlcv.Candle, error) {
	chain, ok := ohlcv.ChainByID(q.ChainID)
	if !ok {
		return nil, nil
	}
	tf, ok := ohlcv.MapInterval(q.Interval, timeframes)
	if !ok {
		return nil, nil
	}
	period, aggregate := splitTimeframe(tf)

	pair, err := s.FetchPair(ctx, q.ChainID, q.Address, q.Quote)
	if err != nil {
		logx.WithContext(ctx).Errorf("geckoterminal: discover pool chain=%d token=%s: %v", q.ChainID, q.Address, err)
		return nil, nil
	}
	if pair == nil {
		return nil, nil
	}
	side := "base"
	if !pair.IsToken0 {
		side = "quote"
	}

	fetch := func(ctx context.Context, start, end int64, limit int) ([]ohlcv.Candle, error) {
		page, err := s.client.getPoolOHLCV(ctx, chain.GeckoSlug, pair.PoolAddress, period, aggregate, limit, end, side)
		if err != nil {
			return nil, err
		}
		return normalizeList(page.Data.Attributes.OhlcvList, start), nil
	}

	candles, err := ohlcv.Paginate(ctx, fetch, q.Limit, ohlcvPageCap, q.Start, q.End)
	if err != nil {
		var status *statusError
		if errors.As(err, &status) && status.softMiss() {
			return nil, nil
		}
		logx.WithContext(ctx).Errorf("geckoterminal: ohlcv chain=%d pool=%s: %v", q.ChainID, pair.PoolAddress, err)
		return nil, nil
	}
	return candles, nil
}

func splitTimeframe(tf string) (string, int) {
	parts := strings.SplitN(tf, ":", 2)
	if len(parts) != 2 {
		return tf, 1
	}
	aggregate, err := strconv.Atoi(parts[1])
	if err != nil || aggregate <= 0 {
		aggregate = 1
	}
	return parts[0], aggregate
}

// normalizeList converts positional OHLCV rows, dropping bars before the
// floor; the vendor pages backwards with no lower-bound parameter.
func normalizeList(rows [][]json.Number, floorSec int64) []ohlcv.Candle {
	out := make([]ohlcv.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		ts, err := row[0].Int64()
		if err != nil {
			continue
		}
		if floorSec > 0 && ts < floorSec {
			continue
		}
		out = append(out, ohlcv.Candle{
			Time:   ts,
			Open:   row[1].String(),
			High:   row[2].String(),
			Low:    row[3].String(),
			Close:  row[4].String(),
			Volume: row[5].String(),
		})
	}
	return ohlcv.SanitizeSeries(out)
}
