// Package moralis implements the on-chain token metadata/price/OHLCV source.
package moralis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"chartfeed/pkg/ohlcv"
)

const (
	// ohlcvPageCap is the vendor's candles-per-request ceiling; larger
	// requests go through the shared pager.
	ohlcvPageCap = 200

	pairCacheTTL    = 30 * time.Minute
	pairNegativeTTL = 2 * time.Minute
)

// timeframes rounds canonical intervals up to the vendor's nearest coarser
// supported timeframe.
var timeframes = ohlcv.TimeframeTable{
	ohlcv.Interval1m:  "1min",
	ohlcv.Interval3m:  "5min",
	ohlcv.Interval5m:  "5min",
	ohlcv.Interval15m: "30min",
	ohlcv.Interval30m: "30min",
	ohlcv.Interval1h:  "1h",
	ohlcv.Interval2h:  "4h",
	ohlcv.Interval4h:  "4h",
	ohlcv.Interval6h:  "12h",
	ohlcv.Interval8h:  "12h",
	ohlcv.Interval12h: "12h",
	ohlcv.Interval1d:  "1d",
	ohlcv.Interval3d:  "1w",
	ohlcv.Interval1w:  "1w",
	ohlcv.Interval1M:  "1M",
}

// Timeframes exposes the vendor table for mapping tests.
func Timeframes() ohlcv.TimeframeTable { return timeframes }

// Source serves token metadata, pair discovery and pair candles from the
// Moralis deep-index API.
type Source struct {
	client *Client
	pairs  *ohlcv.TTLCache[*ohlcv.PairInfo]
	tokens *ohlcv.TTLCache[*ohlcv.TokenInfo]
}

// NewSource constructs the Moralis source. A missing API key is a
// configuration-class error reported here, once, not per request.
func NewSource(apiKey string, opts ...Option) (*Source, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("moralis: %w", ohlcv.ErrMissingAPIKey)
	}
	return &Source{
		client: NewClient(apiKey, opts...),
		pairs:  ohlcv.NewTTLCache[*ohlcv.PairInfo](pairCacheTTL, pairNegativeTTL),
		tokens: ohlcv.NewTTLCache[*ohlcv.TokenInfo](pairCacheTTL, pairNegativeTTL),
	}, nil
}

func init() {
	ohlcv.RegisterSource("moralis", func(name string, cfg *ohlcv.SourceConfig) (ohlcv.Source, error) {
		opts := []Option{}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
		}
		return NewSource(cfg.APIKey, opts...)
	})
}

// Name implements ohlcv.Source.
func (s *Source) Name() string { return "moralis" }

// QuoteLabel implements ohlcv.QuoteLabeler: candles are requested with
// currency=usd whatever pool backs them.
func (s *Source) QuoteLabel() string { return "USD" }

// Supports implements ohlcv.Source.
func (s *Source) Supports(chainID int64) bool {
	chain, ok := ohlcv.ChainByID(chainID)
	return ok && chain.MoralisSlug != ""
}

// FetchPair implements ohlcv.PairSource via the price-API discovery
// strategy: one call whose reply embeds the best pool. Non-2xx and
// missing-pool replies are soft misses, cached negatively.
func (s *Source) FetchPair(ctx context.Context, chainID int64, token, quote string) (*ohlcv.PairInfo, error) {
	chain, ok := ohlcv.ChainByID(chainID)
	if !ok {
		return nil, nil
	}
	key := fmt.Sprintf("pair:%d:%s:%s", chainID, token, quote)
	if cached, ok, negative := s.pairs.Get(key); ok {
		if negative {
			return nil, nil
		}
		return cached, nil
	}

	price, err := s.client.getTokenPrice(ctx, chain.MoralisSlug, token)
	if err != nil {
		var status *statusError
		if errors.As(err, &status) && status.softMiss() {
			s.pairs.SetNegative(key)
			return nil, nil
		}
		return nil, err
	}
	if price == nil || ohlcv.NormalizeAddress(price.PairAddress) == "" {
		s.pairs.SetNegative(key)
		return nil, nil
	}

	pair := &ohlcv.PairInfo{
		PoolAddress:     ohlcv.NormalizeAddress(price.PairAddress),
		ExchangeName:    price.ExchangeName,
		ExchangeAddress: ohlcv.NormalizeAddress(price.ExchangeAddress),
		BaseToken:       token,
		BaseSymbol:      price.TokenSymbol,
		QuoteSymbol:     "USD",
		PriceUSD:        price.UsdPrice,
		LiquidityUSD:    float64(price.PairTotalLiquidity),
	}
	s.pairs.Set(key, pair)
	return pair, nil
}

// FetchTokenInfo implements ohlcv.TokenInfoSource.
func (s *Source) FetchTokenInfo(ctx context.Context, chainID int64, token string) (*ohlcv.TokenInfo, error) {
	chain, ok := ohlcv.ChainByID(chainID)
	if !ok {
		return nil, nil
	}
	key := fmt.Sprintf("token:%d:%s", chainID, token)
	if cached, ok, negative := s.tokens.Get(key); ok {
		if negative {
			return nil, nil
		}
		return cached, nil
	}

	meta, err := s.client.getTokenMetadata(ctx, chain.MoralisSlug, token)
	if err != nil {
		var status *statusError
		if errors.As(err, &status) && status.softMiss() {
			s.tokens.SetNegative(key)
			return nil, nil
		}
		return nil, err
	}
	if meta == nil || meta.Symbol == "" {
		s.tokens.SetNegative(key)
		return nil, nil
	}
	decimals, _ := meta.Decimals.Int64()
	info := &ohlcv.TokenInfo{
		Address:  ohlcv.NormalizeAddress(meta.Address),
		Symbol:   meta.Symbol,
		Name:     meta.Name,
		Decimals: int(decimals),
		LogoURL:  meta.Logo,
	}
	s.tokens.Set(key, info)
	return info, nil
}

// FetchOHLCV implements ohlcv.Source. The queried address may be a token
// (pair discovered first) or a known pair address passed straight through.
func (s *Source) FetchOHLCV(ctx context.Context, q ohlcv.Query) ([]ohlcv.Candle, error) {
	chain, ok := ohlcv.ChainByID(q.ChainID)
	if !ok {
		return nil, nil
	}
	timeframe, ok := ohlcv.MapInterval(q.Interval, timeframes)
	if !ok {
		return nil, nil
	}

	pairAddress := q.Address
	pair, err := s.FetchPair(ctx, q.ChainID, q.Address, q.Quote)
	if err != nil {
		logx.WithContext(ctx).Errorf("moralis: discover pair chain=%d token=%s: %v", q.ChainID, q.Address, err)
		return nil, nil
	}
	if pair != nil {
		pairAddress = pair.PoolAddress
	}

	fetch := func(ctx context.Context, start, end int64, limit int) ([]ohlcv.Candle, error) {
		page, err := s.client.getPairOHLCV(ctx, chain.MoralisSlug, pairAddress, timeframe, limit, start, end)
		if err != nil {
			return nil, err
		}
		return normalizeBars(page.Result), nil
	}

	candles, err := ohlcv.Paginate(ctx, fetch, q.Limit, ohlcvPageCap, q.Start, q.End)
	if err != nil {
		var status *statusError
		if errors.As(err, &status) && status.softMiss() {
			return nil, nil
		}
		logx.WithContext(ctx).Errorf("moralis: ohlcv chain=%d pair=%s: %v", q.ChainID, pairAddress, err)
		return nil, nil
	}
	return candles, nil
}

func normalizeBars(bars []ohlcvBar) []ohlcv.Candle {
	out := make([]ohlcv.Candle, 0, len(bars))
	for _, bar := range bars {
		ts, err := time.Parse(time.RFC3339, bar.Timestamp)
		if err != nil {
			continue
		}
		out = append(out, ohlcv.Candle{
			Time:   ts.Unix(),
			Open:   bar.Open.String(),
			High:   bar.High.String(),
			Low:    bar.Low.String(),
			Close:  bar.Close.String(),
			Volume: bar.Volume.String(),
		})
	}
	return ohlcv.SanitizeSeries(out)
}
