package svc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	appcache "chartfeed/internal/cache"
	"chartfeed/internal/model"
	"chartfeed/pkg/ohlcv"
)

// dbTokenStore adapts the relational models to the candle service's token
// store contract, with an in-process cache in front of Postgres so hot
// lookups skip the round trip entirely.
type dbTokenStore struct {
	tokens model.TokensModel
	quotes model.QuoteAssetsModel

	tokenCache *ohlcv.TTLCache[*ohlcv.TokenInfo]
	quoteCache *ohlcv.TTLCache[[]string]
}

func newDBTokenStore(tokens model.TokensModel, quotes model.QuoteAssetsModel, ttl appcache.TTLSet) *dbTokenStore {
	return &dbTokenStore{
		tokens:     tokens,
		quotes:     quotes,
		tokenCache: ohlcv.NewTTLCache[*ohlcv.TokenInfo](appcache.TokenTTL(ttl), appcache.PairMissTTL(ttl)),
		quoteCache: ohlcv.NewTTLCache[[]string](appcache.PairTTL(ttl), 0),
	}
}

func (s *dbTokenStore) FindToken(ctx context.Context, chainID int64, address string) (*ohlcv.TokenInfo, error) {
	key := appcache.TokenKey(chainID, address)
	if cached, ok, negative := s.tokenCache.Get(key); ok {
		if negative {
			return nil, nil
		}
		return cached, nil
	}

	row, err := s.tokens.FindOneByChainAddress(ctx, chainID, address)
	if errors.Is(err, model.ErrNotFound) {
		s.tokenCache.SetNegative(key)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("token store: find %d/%s: %w", chainID, address, err)
	}

	info := &ohlcv.TokenInfo{
		Address:  strings.ToLower(row.Address),
		Symbol:   row.Symbol,
		Name:     row.Name.String,
		Decimals: int(row.Decimals),
		LogoURL:  row.LogoUrl.String,
	}
	s.tokenCache.Set(key, info)
	return info, nil
}

func (s *dbTokenStore) IsQuoteAsset(ctx context.Context, chainID int64, address string) (bool, error) {
	quotes, err := s.DefaultQuotes(ctx, chainID)
	if err != nil {
		return false, err
	}
	needle := strings.ToLower(address)
	for _, quote := range quotes {
		if quote == needle {
			return true, nil
		}
	}
	return false, nil
}

func (s *dbTokenStore) DefaultQuotes(ctx context.Context, chainID int64) ([]string, error) {
	key := appcache.QuoteListKey(chainID)
	if cached, ok, _ := s.quoteCache.Get(key); ok {
		return cached, nil
	}

	rows, err := s.quotes.ListByChain(ctx, chainID)
	if err != nil {
		return nil, fmt.Errorf("token store: quotes chain=%d: %w", chainID, err)
	}
	quotes := make([]string, 0, len(rows))
	for _, row := range rows {
		quotes = append(quotes, strings.ToLower(row.Address))
	}
	if len(quotes) == 0 {
		quotes = ohlcv.BuiltinQuotes(chainID)
	}
	s.quoteCache.Set(key, quotes)
	return quotes, nil
}
