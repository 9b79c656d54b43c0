package moralis

import (
	"encoding/json"
	"strconv"
	"strings"
)

// tokenPriceResponse is the token price reply. Besides the price it embeds
// the most liquid pair for the token, which doubles as pool discovery.
type tokenPriceResponse struct {
	TokenAddress  string      `json:"tokenAddress"`
	TokenSymbol   string      `json:"tokenSymbol"`
	TokenName     string      `json:"tokenName"`
	TokenDecimals json.Number `json:"tokenDecimals"`
	UsdPrice      float64     `json:"usdPrice"`
	PairAddress   string      `json:"pairAddress"`
	// The vendor has shipped this both as a number and a quoted string.
	PairTotalLiquidity flexibleNumber `json:"pairTotalLiquidityUsd"`
	ExchangeName       string         `json:"exchangeName"`
	ExchangeAddress    string         `json:"exchangeAddress"`
}

// flexibleNumber decodes a JSON number or a numeric string into a float.
type flexibleNumber float64

func (f *flexibleNumber) UnmarshalJSON(data []byte) error {
	trimmed := strings.Trim(string(data), `"`)
	if trimmed == "" || trimmed == "null" {
		*f = 0
		return nil
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexibleNumber(value)
	return nil
}

// tokenMetadataResponse is one entry of the erc20 metadata reply.
type tokenMetadataResponse struct {
	Address  string      `json:"address"`
	Symbol   string      `json:"symbol"`
	Name     string      `json:"name"`
	Decimals json.Number `json:"decimals"`
	Logo     string      `json:"logo"`
}

// ohlcvResponse is the pair OHLCV reply. Prices arrive as JSON numbers;
// json.Number keeps the vendor's exact decimal text for the candle model.
type ohlcvResponse struct {
	Page   int        `json:"page"`
	Cursor string     `json:"cursor"`
	Result []ohlcvBar `json:"result"`
}

type ohlcvBar struct {
	Timestamp string      `json:"timestamp"` // RFC3339
	Open      json.Number `json:"open"`
	High      json.Number `json:"high"`
	Low       json.Number `json:"low"`
	Close     json.Number `json:"close"`
	Volume    json.Number `json:"volume"`
	Trades    int64       `json:"trades"`
}
