package subgraph

import "encoding/json"

// graphQLRequest is the POST envelope every indexer accepts.
type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// graphQLResponse is the standard reply envelope.
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// The Graph serializes BigDecimal and BigInt as strings, Int as a number.

type graphToken struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Decimals string `json:"decimals"`
}

type graphPool struct {
	ID                  string     `json:"id"`
	TotalValueLockedUSD string     `json:"totalValueLockedUSD"`
	FeeTier             string     `json:"feeTier"`
	Token0              graphToken `json:"token0"`
	Token1              graphToken `json:"token1"`
}

// poolHourData carries hourly pre-aggregates. The OHLC fields are the price
// of token0 denominated in token1.
type poolHourData struct {
	PeriodStartUnix int64  `json:"periodStartUnix"`
	Open            string `json:"open"`
	High            string `json:"high"`
	Low             string `json:"low"`
	Close           string `json:"close"`
	VolumeToken0    string `json:"volumeToken0"`
	VolumeToken1    string `json:"volumeToken1"`
}

type poolHourDatasData struct {
	PoolHourDatas []poolHourData `json:"poolHourDatas"`
}

type poolDayData struct {
	Date         int64  `json:"date"`
	Open         string `json:"open"`
	High         string `json:"high"`
	Low          string `json:"low"`
	Close        string `json:"close"`
	VolumeToken0 string `json:"volumeToken0"`
	VolumeToken1 string `json:"volumeToken1"`
}

type poolDayDatasData struct {
	PoolDayDatas []poolDayData `json:"poolDayDatas"`
}

// graphSwap is one raw trade: signed per-token amounts plus the pool price
// right after the swap, in sqrtPriceX96 fixed point.
type graphSwap struct {
	Timestamp    string `json:"timestamp"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	SqrtPriceX96 string `json:"sqrtPriceX96"`
}

type swapsData struct {
	Swaps []graphSwap `json:"swaps"`
}
