package subgraph

import (
	"context"
	"strconv"

	"chartfeed/pkg/ohlcv"
	"chartfeed/pkg/ohlcv/dexmath"
)

const poolHourDatasQuery = `query ($pool: String!, $start: Int!, $end: Int!, $limit: Int!) {
  poolHourDatas(first: $limit, orderBy: periodStartUnix, orderDirection: desc,
    where: { pool: $pool, periodStartUnix_gte: $start, periodStartUnix_lte: $end }) {
    periodStartUnix open high low close volumeToken0 volumeToken1
  }
}`

const poolDayDatasQuery = `query ($pool: String!, $start: Int!, $end: Int!, $limit: Int!) {
  poolDayDatas(first: $limit, orderBy: date, orderDirection: desc,
    where: { pool: $pool, date_gte: $start, date_lte: $end }) {
    date open high low close volumeToken0 volumeToken1
  }
}`

// preAggregate is the vendor-granularity shape both readers share.
type preAggregate struct {
	bucketStart int64
	open        string
	high        string
	low         string
	close       string
	volume0     string
	volume1     string
}

func (s *Source) fetchHourData(ctx context.Context, chainID int64, pair *ohlcv.PairInfo, start, end int64, limit int) ([]ohlcv.Candle, error) {
	var data poolHourDatasData
	err := s.client.query(ctx, chainID, poolHourDatasQuery, map[string]interface{}{
		"pool": pair.PoolAddress, "start": start, "end": end, "limit": limit,
	}, &data)
	if err != nil {
		return nil, err
	}
	rows := make([]preAggregate, 0, len(data.PoolHourDatas))
	for _, row := range data.PoolHourDatas {
		rows = append(rows, preAggregate{
			bucketStart: row.PeriodStartUnix,
			open:        row.Open, high: row.High, low: row.Low, close: row.Close,
			volume0: row.VolumeToken0, volume1: row.VolumeToken1,
		})
	}
	return normalizeAggregates(rows, pair.IsToken0), nil
}

func (s *Source) fetchDayData(ctx context.Context, chainID int64, pair *ohlcv.PairInfo, start, end int64, limit int) ([]ohlcv.Candle, error) {
	var data poolDayDatasData
	err := s.client.query(ctx, chainID, poolDayDatasQuery, map[string]interface{}{
		"pool": pair.PoolAddress, "start": start, "end": end, "limit": limit,
	}, &data)
	if err != nil {
		return nil, err
	}
	rows := make([]preAggregate, 0, len(data.PoolDayDatas))
	for _, row := range data.PoolDayDatas {
		rows = append(rows, preAggregate{
			bucketStart: row.Date,
			open:        row.Open, high: row.High, low: row.Low, close: row.Close,
			volume0: row.VolumeToken0, volume1: row.VolumeToken1,
		})
	}
	return normalizeAggregates(rows, pair.IsToken0), nil
}

// normalizeAggregates converts vendor pre-aggregates to candles. The raw
// OHLC fields are token0 prices in token1; when the queried token is token1
// the whole bar is inverted, which swaps high and low. Volume reports the
// queried token's own leg.
func normalizeAggregates(rows []preAggregate, isToken0 bool) []ohlcv.Candle {
	out := make([]ohlcv.Candle, 0, len(rows))
	for _, row := range rows {
		open, err := strconv.ParseFloat(row.open, 64)
		if err != nil {
			continue
		}
		high, err := strconv.ParseFloat(row.high, 64)
		if err != nil {
			continue
		}
		low, err := strconv.ParseFloat(row.low, 64)
		if err != nil {
			continue
		}
		closePx, err := strconv.ParseFloat(row.close, 64)
		if err != nil {
			continue
		}
		volume := row.volume0
		if !isToken0 {
			open, high, low, closePx = dexmath.InvertBar(open, high, low, closePx)
			volume = row.volume1
		}
		out = append(out, ohlcv.Candle{
			Time:   row.bucketStart,
			Open:   dexmath.FormatPrice(open),
			High:   dexmath.FormatPrice(high),
			Low:    dexmath.FormatPrice(low),
			Close:  dexmath.FormatPrice(closePx),
			Volume: volume,
		})
	}
	return ohlcv.SanitizeSeries(out)
}
