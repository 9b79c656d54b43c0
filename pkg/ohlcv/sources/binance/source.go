// Package binance implements the centralized-exchange candle source.
package binance

import (
	"context"
	"net/http"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"chartfeed/pkg/ohlcv"
)

// timeframes: Binance's spot kline vocabulary covers every canonical
// interval natively, so the table is the identity mapping.
var timeframes = ohlcv.TimeframeTable{
	ohlcv.Interval1m: "1m", ohlcv.Interval3m: "3m", ohlcv.Interval5m: "5m",
	ohlcv.Interval15m: "15m", ohlcv.Interval30m: "30m",
	ohlcv.Interval1h: "1h", ohlcv.Interval2h: "2h", ohlcv.Interval4h: "4h",
	ohlcv.Interval6h: "6h", ohlcv.Interval8h: "8h", ohlcv.Interval12h: "12h",
	ohlcv.Interval1d: "1d", ohlcv.Interval3d: "3d", ohlcv.Interval1w: "1w",
	ohlcv.Interval1M: "1M",
}

// Timeframes exposes the vendor table for mapping tests.
func Timeframes() ohlcv.TimeframeTable { return timeframes }

// Source serves candles for exchange-listed tickers. It handles reference
// majors and stablecoins; address-keyed tokens belong to on-chain sources.
type Source struct {
	client       *Client
	defaultQuote string
}

// NewSource constructs the CEX source.
func NewSource(client *Client, defaultQuote string) *Source {
	if client == nil {
		client = NewClient()
	}
	if defaultQuote == "" {
		defaultQuote = "USDT"
	}
	return &Source{client: client, defaultQuote: defaultQuote}
}

func init() {
	ohlcv.RegisterSource("binance", func(name string, cfg *ohlcv.SourceConfig) (ohlcv.Source, error) {
		opts := []Option{}
		if cfg.BaseURL != "" {
			opts = append(opts, WithPrimaryEndpoint(cfg.BaseURL))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
		}
		if cfg.MaxRetries > 0 {
			opts = append(opts, WithMaxRetries(cfg.MaxRetries))
		}
		return NewSource(NewClient(opts...), ""), nil
	})
}

// Name implements ohlcv.Source.
func (s *Source) Name() string { return "binance" }

// Supports implements ohlcv.Source. Exchange tickers are chain-independent.
func (s *Source) Supports(int64) bool { return true }

// FetchOHLCV implements ohlcv.Source. Upstream failure and unknown symbols
// soft-fail to an empty series; the resilient client has already burned
// through every endpoint and retry round by the time an error lands here.
func (s *Source) FetchOHLCV(ctx context.Context, q ohlcv.Query) ([]ohlcv.Candle, error) {
	symbol := strings.ToUpper(strings.TrimSpace(q.Symbol))
	if symbol == "" {
		return nil, nil
	}
	if !strings.HasSuffix(symbol, s.defaultQuote) {
		symbol += s.defaultQuote
	}
	timeframe, ok := ohlcv.MapInterval(q.Interval, timeframes)
	if !ok {
		return nil, nil
	}
	candles, err := s.client.GetKlines(ctx, symbol, timeframe, q.Limit, q.Start, q.End)
	if err != nil {
		logx.WithContext(ctx).Errorf("binance: klines %s %s: %v", symbol, timeframe, err)
		return nil, nil
	}
	if len(candles) > q.Limit && q.Limit > 0 {
		candles = candles[len(candles)-q.Limit:]
	}
	return candles, nil
}
