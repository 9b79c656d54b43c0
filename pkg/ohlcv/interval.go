package ohlcv

import (
	"fmt"
	"strings"
	"time"
)

// Interval is the canonical resolution vocabulary exposed to callers,
// independent of any vendor's native timeframe set.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval3d  Interval = "3d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

// Intervals lists every canonical interval, finest first.
var Intervals = []Interval{
	Interval1m, Interval3m, Interval5m, Interval15m, Interval30m,
	Interval1h, Interval2h, Interval4h, Interval6h, Interval8h, Interval12h,
	Interval1d, Interval3d, Interval1w, Interval1M,
}

var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval3m:  3 * time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
	Interval2h:  2 * time.Hour,
	Interval4h:  4 * time.Hour,
	Interval6h:  6 * time.Hour,
	Interval8h:  8 * time.Hour,
	Interval12h: 12 * time.Hour,
	Interval1d:  24 * time.Hour,
	Interval3d:  72 * time.Hour,
	Interval1w:  7 * 24 * time.Hour,
	// Calendar months vary; 30 days is the bucket width used for window
	// arithmetic and cache scaling.
	Interval1M: 30 * 24 * time.Hour,
}

// ParseInterval validates a caller-supplied interval string.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(strings.TrimSpace(s))
	if _, ok := intervalDurations[iv]; !ok {
		return "", fmt.Errorf("ohlcv: unsupported interval %q", s)
	}
	return iv, nil
}

// Duration returns the bucket width of the interval.
func (iv Interval) Duration() time.Duration {
	return intervalDurations[iv]
}

// Seconds returns the bucket width in whole seconds.
func (iv Interval) Seconds() int64 {
	return int64(intervalDurations[iv] / time.Second)
}

// Valid reports whether the interval belongs to the canonical vocabulary.
func (iv Interval) Valid() bool {
	_, ok := intervalDurations[iv]
	return ok
}

// TimeframeTable maps canonical intervals onto a vendor's native timeframe
// identifiers. Entries for intervals the vendor does not support natively
// point at the nearest coarser supported timeframe, never a finer one.
// Intervals absent from the table cannot be served by the vendor at all.
type TimeframeTable map[Interval]string

// MapInterval resolves a canonical interval against a vendor table. The
// second return is false when the vendor has no timeframe coarse enough,
// in which case the adapter soft-fails for that interval.
//
// The mapping is one-way and lossy: a caller asking for 15m from a vendor
// whose finest nearby timeframe is 30m receives 30m buckets labelled with
// the requested canonical interval.
func MapInterval(iv Interval, table TimeframeTable) (string, bool) {
	tf, ok := table[iv]
	return tf, ok
}

// Candle cache TTL bounds. Finer resolutions expire quickly so polling
// clients see fresh bars; daily and coarser bars are stable for an hour.
const (
	minCandleTTL = 30 * time.Second
	maxCandleTTL = time.Hour
)

// CacheTTL returns how long a candle series for this interval may be served
// from cache. The TTL is half a bucket width, clamped to [30s, 1h].
func (iv Interval) CacheTTL() time.Duration {
	ttl := iv.Duration() / 2
	if ttl < minCandleTTL {
		return minCandleTTL
	}
	if ttl > maxCandleTTL {
		return maxCandleTTL
	}
	return ttl
}
