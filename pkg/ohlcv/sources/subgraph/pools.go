package subgraph

import (
	"context"
	"fmt"
	"strconv"

	"chartfeed/pkg/ohlcv"
)

const poolsByTokenQuery = `query ($token: String!, $quotes: [String!]!) {
  asToken0: pools(first: 20, orderBy: totalValueLockedUSD, orderDirection: desc,
    where: { token0: $token, token1_in: $quotes }) {
    id totalValueLockedUSD feeTier
    token0 { id symbol decimals }
    token1 { id symbol decimals }
  }
  asToken1: pools(first: 20, orderBy: totalValueLockedUSD, orderDirection: desc,
    where: { token1: $token, token0_in: $quotes }) {
    id totalValueLockedUSD feeTier
    token0 { id symbol decimals }
    token1 { id symbol decimals }
  }
}`

type poolsByTokenData struct {
	AsToken0 []graphPool `json:"asToken0"`
	AsToken1 []graphPool `json:"asToken1"`
}

// FetchPair implements ohlcv.PairSource via the indexer strategy: pools
// pairing the token against the chain's reference quote assets, deepest
// total-value-locked first. Whether the token is token0 is recorded because
// it decides price inversion for everything read from the pool.
func (s *Source) FetchPair(ctx context.Context, chainID int64, token, quote string) (*ohlcv.PairInfo, error) {
	if !s.client.HasChain(chainID) {
		return nil, nil
	}
	key := fmt.Sprintf("pool:%d:%s:%s", chainID, token, quote)
	if cached, ok, negative := s.pools.Get(key); ok {
		if negative {
			return nil, nil
		}
		return cached, nil
	}

	quotes := s.quoteCandidates(chainID, quote)
	if len(quotes) == 0 {
		s.pools.SetNegative(key)
		return nil, nil
	}

	var data poolsByTokenData
	err := s.client.query(ctx, chainID, poolsByTokenQuery, map[string]interface{}{
		"token":  token,
		"quotes": quotes,
	}, &data)
	if err != nil {
		return nil, err
	}

	best := selectDeepestPool(append(data.AsToken0, data.AsToken1...), token)
	if best == nil {
		s.pools.SetNegative(key)
		return nil, nil
	}
	s.pools.Set(key, best)
	return best, nil
}

func (s *Source) quoteCandidates(chainID int64, quote string) []string {
	if quote != "" {
		return []string{quote}
	}
	return ohlcv.BuiltinQuotes(chainID)
}

func selectDeepestPool(pools []graphPool, token string) *ohlcv.PairInfo {
	var best *ohlcv.PairInfo
	bestTVL := -1.0
	for _, pool := range pools {
		address := ohlcv.NormalizeAddress(pool.ID)
		if address == "" {
			continue
		}
		tvl, err := strconv.ParseFloat(pool.TotalValueLockedUSD, 64)
		if err != nil {
			tvl = 0
		}
		if tvl <= bestTVL {
			continue
		}
		isToken0 := ohlcv.NormalizeAddress(pool.Token0.ID) == token
		info := &ohlcv.PairInfo{
			PoolAddress:  address,
			ExchangeName: "uniswap-v3",
			IsToken0:     isToken0,
			LiquidityUSD: tvl,
		}
		if isToken0 {
			info.BaseToken = ohlcv.NormalizeAddress(pool.Token0.ID)
			info.QuoteToken = ohlcv.NormalizeAddress(pool.Token1.ID)
			info.BaseSymbol = pool.Token0.Symbol
			info.QuoteSymbol = pool.Token1.Symbol
		} else {
			info.BaseToken = ohlcv.NormalizeAddress(pool.Token1.ID)
			info.QuoteToken = ohlcv.NormalizeAddress(pool.Token0.ID)
			info.BaseSymbol = pool.Token1.Symbol
			info.QuoteSymbol = pool.Token0.Symbol
		}
		bestTVL = tvl
		best = info
	}
	return best
}
