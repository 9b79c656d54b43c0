package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"chartfeed/pkg/ohlcv"
)

// klinesPageCap is Binance's maximum klines per request.
const klinesPageCap = 1000

// klineRow is one positional kline array:
// [openTime(ms), open, high, low, close, volume, closeTime, ...].
type klineRow []json.RawMessage

// GetKlines fetches spot klines for symbol within [startSec, endSec].
func (c *Client) GetKlines(ctx context.Context, symbol, timeframe string, limit int, startSec, endSec int64) ([]ohlcv.Candle, error) {
	if symbol == "" {
		return nil, fmt.Errorf("binance: symbol is required")
	}
	if limit <= 0 || limit > klinesPageCap {
		limit = klinesPageCap
	}
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("interval", timeframe)
	query.Set("limit", strconv.Itoa(limit))
	if startSec > 0 {
		query.Set("startTime", strconv.FormatInt(startSec*1000, 10))
	}
	if endSec > 0 {
		query.Set("endTime", strconv.FormatInt(endSec*1000, 10))
	}

	var rows []klineRow
	if err := c.getJSON(ctx, "/api/v3/klines", query, &rows); err != nil {
		return nil, err
	}

	candles := make([]ohlcv.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := parseKlineRow(row)
		if err != nil {
			// Malformed bars are dropped, not propagated.
			continue
		}
		candles = append(candles, candle)
	}
	return ohlcv.SanitizeSeries(candles), nil
}

func parseKlineRow(row klineRow) (ohlcv.Candle, error) {
	if len(row) < 6 {
		return ohlcv.Candle{}, fmt.Errorf("binance: short kline row (%d fields)", len(row))
	}
	var openTimeMS int64
	if err := json.Unmarshal(row[0], &openTimeMS); err != nil {
		return ohlcv.Candle{}, fmt.Errorf("binance: kline open time: %w", err)
	}
	fields := make([]string, 5)
	for i := 0; i < 5; i++ {
		if err := json.Unmarshal(row[i+1], &fields[i]); err != nil {
			return ohlcv.Candle{}, fmt.Errorf("binance: kline field %d: %w", i+1, err)
		}
	}
	return ohlcv.Candle{
		Time:   openTimeMS / 1000,
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, nil
}
