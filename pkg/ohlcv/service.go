package ohlcv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

const (
	// MaxLimit caps the candle count of one logical request.
	MaxLimit     = 1000
	defaultLimit = 200
)

// Request is one logical candle request from a caller.
type Request struct {
	ChainID int64
	// Base is a token contract address, a pair/pool address, or a plain
	// exchange ticker for reference majors.
	Base     string
	Quote    string
	Interval Interval
	Limit    int
	Start    int64
	End      int64
}

// Service routes candle requests to the right source adapter: reference
// majors go to the CEX source, everything else walks the configured
// on-chain sources in preference order until one answers.
type Service struct {
	cex         Source
	onchain     []Source
	store       TokenStore
	quoteSymbol string
	series      *TTLCache[Series]
	now         func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithTokenStore wires the relational token metadata collaborator.
func WithTokenStore(store TokenStore) ServiceOption {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService assembles a service from built sources per configuration.
func NewService(cfg *Config, sources map[string]Source, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ohlcv: nil config")
	}
	svc := &Service{
		quoteSymbol: cfg.DefaultQuoteSymbol,
		series:      NewTTLCache[Series](maxCandleTTL, 0),
		now:         time.Now,
	}
	if cfg.CEX != "" {
		source, ok := sources[cfg.CEX]
		if !ok {
			return nil, fmt.Errorf("ohlcv: cex source %q not built", cfg.CEX)
		}
		svc.cex = source
	}
	for _, name := range cfg.Order {
		source, ok := sources[name]
		if !ok {
			return nil, fmt.Errorf("ohlcv: ordered source %q not built", name)
		}
		svc.onchain = append(svc.onchain, source)
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Fetch resolves and returns one candle series, oldest-first. Soft failures
// (unsupported chain, no pool, upstreams down) yield an empty series rather
// than an error; only contract violations error out.
func (s *Service) Fetch(ctx context.Context, req Request) (*Series, error) {
	if !req.Interval.Valid() {
		return nil, fmt.Errorf("ohlcv: unsupported interval %q", req.Interval)
	}
	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	// The cache key is built before window defaulting: an open-ended
	// request keeps a stable key across polls instead of minting a new
	// one for every clock reading.
	key := seriesCacheKey(req)
	if cached, ok, _ := s.series.Get(key); ok {
		copied := cached
		return &copied, nil
	}
	if req.End == 0 {
		req.End = s.now().Unix()
	}
	if req.Start == 0 {
		req.Start = req.End - req.Interval.Seconds()*int64(req.Limit)
	}

	out := &Series{
		ChainID:     req.ChainID,
		Base:        strings.TrimSpace(req.Base),
		Quote:       strings.TrimSpace(req.Quote),
		Interval:    req.Interval,
		QuoteSymbol: s.quoteSymbol,
		Candles:     []Candle{},
	}

	address := NormalizeAddress(req.Base)
	if address == "" {
		// Not an address: treat the base as an exchange ticker.
		out.BaseSymbol = strings.ToUpper(strings.TrimSpace(req.Base))
		s.fetchCEX(ctx, req, out)
		s.storeSeries(key, req, out)
		return out, nil
	}
	out.Base = address

	if _, ok := ChainByID(req.ChainID); !ok {
		return out, nil
	}

	token := s.lookupToken(ctx, req.ChainID, address)
	if token != nil {
		out.BaseSymbol = token.Symbol
	}
	if token != nil && s.isQuoteAsset(ctx, req.ChainID, address) {
		s.fetchCEX(ctx, req.withSymbol(token.Symbol), out)
		if len(out.Candles) > 0 {
			s.storeSeries(key, req, out)
			return out, nil
		}
	}

	s.fetchOnchain(ctx, req.withAddress(address), out)
	s.storeSeries(key, req, out)
	return out, nil
}

func (s *Service) fetchCEX(ctx context.Context, req Request, out *Series) {
	if s.cex == nil || out.BaseSymbol == "" {
		return
	}
	q := Query{
		ChainID:  req.ChainID,
		Symbol:   out.BaseSymbol,
		Interval: req.Interval,
		Limit:    req.Limit,
		Start:    req.Start,
		End:      req.End,
	}
	candles, err := s.cex.FetchOHLCV(ctx, q)
	if err != nil {
		logx.WithContext(ctx).Errorf("ohlcv: cex source %s: %v", s.cex.Name(), err)
		return
	}
	out.Candles = candles
}

func (s *Service) fetchOnchain(ctx context.Context, req Request, out *Series) {
	q := Query{
		ChainID:  req.ChainID,
		Address:  req.Base,
		Quote:    NormalizeAddress(req.Quote),
		Interval: req.Interval,
		Limit:    req.Limit,
		Start:    req.Start,
		End:      req.End,
	}
	for _, source := range s.onchain {
		if !source.Supports(req.ChainID) {
			continue
		}
		candles, err := source.FetchOHLCV(ctx, q)
		if err != nil {
			logx.WithContext(ctx).Errorf("ohlcv: source %s chain=%d token=%s: %v",
				source.Name(), req.ChainID, req.Base, err)
			continue
		}
		if len(candles) == 0 {
			continue
		}
		out.Candles = candles
		if out.BaseSymbol == "" {
			s.fillSymbol(ctx, source, req.ChainID, req.Base, out)
		}
		s.labelQuote(ctx, source, req, out)
		return
	}
}

// labelQuote names the denomination of the answering source's candles:
// a fixed vendor label when it declares one, otherwise the quote token of
// the discovered pool.
func (s *Service) labelQuote(ctx context.Context, source Source, req Request, out *Series) {
	if labeler, ok := source.(QuoteLabeler); ok {
		if label := labeler.QuoteLabel(); label != "" {
			out.QuoteSymbol = label
			return
		}
	}
	pairSource, ok := source.(PairSource)
	if !ok {
		return
	}
	pair, err := pairSource.FetchPair(ctx, req.ChainID, req.Base, NormalizeAddress(req.Quote))
	if err != nil || pair == nil {
		return
	}
	if pair.QuoteSymbol != "" {
		out.QuoteSymbol = pair.QuoteSymbol
	}
}

func (s *Service) fillSymbol(ctx context.Context, source Source, chainID int64, token string, out *Series) {
	infoSource, ok := source.(TokenInfoSource)
	if !ok {
		return
	}
	info, err := infoSource.FetchTokenInfo(ctx, chainID, token)
	if err != nil || info == nil {
		return
	}
	out.BaseSymbol = info.Symbol
}

func (s *Service) lookupToken(ctx context.Context, chainID int64, address string) *TokenInfo {
	if s.store == nil {
		return nil
	}
	token, err := s.store.FindToken(ctx, chainID, address)
	if err != nil {
		logx.WithContext(ctx).Errorf("ohlcv: token store chain=%d token=%s: %v", chainID, address, err)
		return nil
	}
	return token
}

func (s *Service) isQuoteAsset(ctx context.Context, chainID int64, address string) bool {
	if s.store != nil {
		ok, err := s.store.IsQuoteAsset(ctx, chainID, address)
		if err == nil {
			return ok
		}
		logx.WithContext(ctx).Errorf("ohlcv: quote lookup chain=%d token=%s: %v", chainID, address, err)
	}
	for _, quote := range BuiltinQuotes(chainID) {
		if quote == address {
			return true
		}
	}
	return false
}

// QuoteCandidates returns the reference quote assets for a chain, from the
// store when available, otherwise the built-in table.
func (s *Service) QuoteCandidates(ctx context.Context, chainID int64) []string {
	if s.store != nil {
		quotes, err := s.store.DefaultQuotes(ctx, chainID)
		if err == nil && len(quotes) > 0 {
			return quotes
		}
	}
	return BuiltinQuotes(chainID)
}

func (s *Service) storeSeries(key string, req Request, out *Series) {
	if len(out.Candles) == 0 {
		return
	}
	s.series.SetTTL(key, *out, req.Interval.CacheTTL())
}

func seriesCacheKey(req Request) string {
	return fmt.Sprintf("series:%d:%s:%s:%s:%d:%d:%d",
		req.ChainID, strings.ToLower(req.Base), strings.ToLower(req.Quote),
		req.Interval, req.Limit, req.Start, req.End)
}

func (r Request) withSymbol(symbol string) Request {
	r.Base = symbol
	return r
}

func (r Request) withAddress(address string) Request {
	r.Base = address
	return r
}
