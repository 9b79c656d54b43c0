package ohlcv

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Chain describes one supported network and its vendor-specific slugs.
type Chain struct {
	ID            int64
	Name          string
	MoralisSlug   string
	GeckoSlug     string
	NativeWrapped string // wrapped gas token address, lowercase
}

// Well-known EVM networks. A chain absent from this table is unsupported
// and every source soft-fails for it.
var chains = map[int64]Chain{
	1: {
		ID: 1, Name: "ethereum", MoralisSlug: "eth", GeckoSlug: "eth",
		NativeWrapped: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
	},
	10: {
		ID: 10, Name: "optimism", MoralisSlug: "optimism", GeckoSlug: "optimism",
		NativeWrapped: "0x4200000000000000000000000000000000000006",
	},
	56: {
		ID: 56, Name: "bsc", MoralisSlug: "bsc", GeckoSlug: "bsc",
		NativeWrapped: "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c",
	},
	137: {
		ID: 137, Name: "polygon", MoralisSlug: "polygon", GeckoSlug: "polygon_pos",
		NativeWrapped: "0x0d500b1d8e8ef31e21c99d1db9a6444d3adf1270",
	},
	8453: {
		ID: 8453, Name: "base", MoralisSlug: "base", GeckoSlug: "base",
		NativeWrapped: "0x4200000000000000000000000000000000000006",
	},
	42161: {
		ID: 42161, Name: "arbitrum", MoralisSlug: "arbitrum", GeckoSlug: "arbitrum",
		NativeWrapped: "0x82af49447d8a07e3bd95bd0d56f35241523fbab1",
	},
}

// ChainByID looks up a supported chain.
func ChainByID(id int64) (Chain, bool) {
	c, ok := chains[id]
	return c, ok
}

// SupportedChainIDs returns the ids of every known chain.
func SupportedChainIDs() []int64 {
	ids := make([]int64, 0, len(chains))
	for id := range chains {
		ids = append(ids, id)
	}
	return ids
}

// builtinQuotes are the reference quote assets consulted when the token
// store has no quote_assets rows for a chain. Stables first, then the
// wrapped gas token.
var builtinQuotes = map[int64][]string{
	1: {
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", // USDC
		"0xdac17f958d2ee523a2206206994597c13d831ec7", // USDT
		"0x6b175474e89094c44da98b954eedeac495271d0f", // DAI
		"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", // WETH
	},
	10: {
		"0x0b2c639c533813f4aa9d7837caf62653d097ff85", // USDC
		"0x94b008aa00579c1307b0ef2c499ad98a8ce58e58", // USDT
		"0x4200000000000000000000000000000000000006", // WETH
	},
	56: {
		"0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d", // USDC
		"0x55d398326f99059ff775485246999027b3197955", // USDT
		"0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c", // WBNB
	},
	137: {
		"0x3c499c542cef5e3811e1192ce70d8cc03d5c3359", // USDC
		"0xc2132d05d31c914a87c6611c10748aeb04b58e8f", // USDT
		"0x0d500b1d8e8ef31e21c99d1db9a6444d3adf1270", // WMATIC
	},
	8453: {
		"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", // USDC
		"0x4200000000000000000000000000000000000006", // WETH
	},
	42161: {
		"0xaf88d065e77c8cc2239327c5edb3a432268e5831", // USDC
		"0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9", // USDT
		"0x82af49447d8a07e3bd95bd0d56f35241523fbab1", // WETH
	},
}

// BuiltinQuotes returns the static reference quote assets for a chain.
func BuiltinQuotes(chainID int64) []string {
	return builtinQuotes[chainID]
}

// NormalizeAddress lowercases a hex address after checksum-agnostic
// validation; the empty string means the input was not an address.
func NormalizeAddress(addr string) string {
	trimmed := strings.TrimSpace(addr)
	if !common.IsHexAddress(trimmed) {
		return ""
	}
	return strings.ToLower(common.HexToAddress(trimmed).Hex())
}
