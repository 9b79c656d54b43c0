package geckoterminal

import "encoding/json"

// poolsResponse is the token top-pools reply (JSON:API shape).
type poolsResponse struct {
	Data []poolResource `json:"data"`
}

type poolResource struct {
	ID            string            `json:"id"`
	Attributes    poolAttributes    `json:"attributes"`
	Relationships poolRelationships `json:"relationships"`
}

type poolAttributes struct {
	Address           string `json:"address"`
	Name              string `json:"name"`
	ReserveInUSD      string `json:"reserve_in_usd"`
	BaseTokenPriceUSD string `json:"base_token_price_usd"`
}

type poolRelationships struct {
	BaseToken  relationship `json:"base_token"`
	QuoteToken relationship `json:"quote_token"`
	Dex        relationship `json:"dex"`
}

type relationship struct {
	Data relationshipData `json:"data"`
}

type relationshipData struct {
	// ID is "{network}_{address}" for tokens, a dex slug for dexes.
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ohlcvResponse wraps the pool OHLCV reply. Each list entry is positional:
// [timestamp(sec), open, high, low, close, volume]. json.Number keeps the
// vendor's decimal text intact.
type ohlcvResponse struct {
	Data struct {
		Attributes struct {
			OhlcvList [][]json.Number `json:"ohlcv_list"`
		} `json:"attributes"`
	} `json:"data"`
}
