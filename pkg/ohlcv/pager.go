package ohlcv

import (
	"context"
	"fmt"
)

// FetchPage loads candles inside [start, end] (unix seconds, inclusive),
// newest page first when the vendor pages backwards. Implementations return
// at most limit candles, oldest-first.
type FetchPage func(ctx context.Context, start, end int64, limit int) ([]Candle, error)

// Paginate stitches bounded vendor pages into one ascending series of up to
// limit candles ending at end.
//
// When limit fits in a single page the fetch happens once. Otherwise the
// newer bound walks backwards to just before the oldest candle of each page,
// and pages accumulate at the front of the result. The loop stops when the
// limit is reached, the time floor is crossed, or a short page signals
// exhausted history. Overshoot is trimmed from the old end: recency wins
// over completeness.
func Paginate(ctx context.Context, fetch FetchPage, limit, pageCap int, start, end int64) ([]Candle, error) {
	if limit <= 0 {
		return nil, nil
	}
	if pageCap <= 0 {
		return nil, fmt.Errorf("ohlcv: page cap must be positive, got %d", pageCap)
	}
	if limit <= pageCap {
		page, err := fetch(ctx, start, end, limit)
		if err != nil {
			return nil, err
		}
		return SanitizeSeries(page), nil
	}

	var out []Candle
	cursorEnd := end
	for len(out) < limit {
		page, err := fetch(ctx, start, cursorEnd, pageCap)
		if err != nil {
			return nil, err
		}
		page = SanitizeSeries(page)
		if len(page) == 0 {
			break
		}
		out = append(page, out...)
		if len(page) < pageCap {
			// Vendor returned less than a full page: history exhausted.
			break
		}
		cursorEnd = page[0].Time - 1
		if start != 0 && cursorEnd < start {
			break
		}
	}

	out = SanitizeSeries(out)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
