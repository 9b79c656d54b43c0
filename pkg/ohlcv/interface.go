package ohlcv

import (
	"context"
	"errors"
)

// ErrMissingAPIKey is returned at source construction when a vendor that
// requires authentication has no key configured. Configuration-class errors
// are the only hard failures this layer surfaces; everything else soft-fails
// to an empty series.
var ErrMissingAPIKey = errors.New("ohlcv: missing api key")

// Query describes one candle request as seen by a source adapter.
type Query struct {
	ChainID int64
	// Address is the base token contract address, or a pair/pool address
	// when the caller already knows the venue.
	Address string
	// Quote optionally pins the quote token contract address.
	Quote string
	// Symbol carries the exchange ticker for CEX-backed sources; resolved
	// by the service from the token store, empty for on-chain sources.
	Symbol   string
	Interval Interval
	Limit    int
	// Start and End bound the window in unix seconds, inclusive. Zero
	// means "derive from the other bound, the interval and the limit".
	Start int64
	End   int64
}

// Series is the logical response: one normalized candle sequence plus the
// identity of what was actually charted. Interval echoes the requested
// canonical value even when the vendor answered at a coarser granularity.
type Series struct {
	ChainID     int64    `json:"chain_id"`
	Base        string   `json:"base"`
	Quote       string   `json:"quote"`
	BaseSymbol  string   `json:"base_symbol"`
	QuoteSymbol string   `json:"quote_symbol"`
	Interval    Interval `json:"interval"`
	Candles     []Candle `json:"candles"`
}

// PairInfo is a discovered trading venue for a token.
type PairInfo struct {
	PoolAddress     string
	ExchangeName    string
	ExchangeAddress string
	BaseToken       string
	QuoteToken      string
	BaseSymbol      string
	QuoteSymbol     string
	// IsToken0 records whether the queried token is the pool's first
	// constituent; when false every pool-native price must be inverted.
	IsToken0     bool
	PriceUSD     float64
	LiquidityUSD float64
}

// TokenInfo is static token metadata.
type TokenInfo struct {
	Address  string
	Symbol   string
	Name     string
	Decimals int
	LogoURL  string
}

// Source is the uniform adapter contract. FetchOHLCV never returns an error
// for "no data / unsupported chain / no pool found" - it returns an empty
// slice, so the service can try sources in order without exception-driven
// control flow. Errors are reserved for contract violations.
type Source interface {
	Name() string
	Supports(chainID int64) bool
	FetchOHLCV(ctx context.Context, q Query) ([]Candle, error)
}

// PairSource is implemented by sources that can discover the best pool for
// a token. A nil PairInfo with nil error means "no pool found".
type PairSource interface {
	Source
	FetchPair(ctx context.Context, chainID int64, token, quote string) (*PairInfo, error)
}

// TokenInfoSource is implemented by sources that can serve token metadata.
type TokenInfoSource interface {
	Source
	FetchTokenInfo(ctx context.Context, chainID int64, token string) (*TokenInfo, error)
}

// QuoteLabeler is implemented by sources whose candles carry a fixed
// denomination regardless of the pool, such as vendors that always quote
// in USD. Sources quoting in the pool's own quote token omit it and the
// label comes from pair discovery instead.
type QuoteLabeler interface {
	QuoteLabel() string
}

// TokenStore is the relational collaborator holding static token metadata
// and the per-chain default quote asset table. It is consulted before any
// network call to short-circuit known majors and stablecoins.
type TokenStore interface {
	// FindToken returns nil (not an error) when the token is unknown.
	FindToken(ctx context.Context, chainID int64, address string) (*TokenInfo, error)
	// IsQuoteAsset reports whether the address is a reference major or
	// stablecoin on the chain.
	IsQuoteAsset(ctx context.Context, chainID int64, address string) (bool, error)
	// DefaultQuotes lists reference quote token addresses for the chain,
	// preferred first.
	DefaultQuotes(ctx context.Context, chainID int64) ([]string, error)
}
