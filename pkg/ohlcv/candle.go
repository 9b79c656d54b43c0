package ohlcv

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar. Prices and volume are exact decimal strings;
// tokens with many decimal places lose precision as float64, so the numeric
// payload never leaves string form inside the aggregation layer.
type Candle struct {
	Time   int64  `json:"t"` // bucket-open time, unix seconds
	Open   string `json:"o"`
	High   string `json:"h"`
	Low    string `json:"l"`
	Close  string `json:"c"`
	Volume string `json:"v"`
}

// Validate checks the bar invariants: all fields parse as decimals,
// high >= max(open, close) and low <= min(open, close).
func (c Candle) Validate() error {
	o, err := decimal.NewFromString(c.Open)
	if err != nil {
		return fmt.Errorf("ohlcv: bad open %q: %w", c.Open, err)
	}
	h, err := decimal.NewFromString(c.High)
	if err != nil {
		return fmt.Errorf("ohlcv: bad high %q: %w", c.High, err)
	}
	l, err := decimal.NewFromString(c.Low)
	if err != nil {
		return fmt.Errorf("ohlcv: bad low %q: %w", c.Low, err)
	}
	cl, err := decimal.NewFromString(c.Close)
	if err != nil {
		return fmt.Errorf("ohlcv: bad close %q: %w", c.Close, err)
	}
	if _, err := decimal.NewFromString(c.Volume); err != nil {
		return fmt.Errorf("ohlcv: bad volume %q: %w", c.Volume, err)
	}
	if h.LessThan(o) || h.LessThan(cl) || h.LessThan(l) {
		return fmt.Errorf("ohlcv: high %s below open/close/low at t=%d", c.High, c.Time)
	}
	if l.GreaterThan(o) || l.GreaterThan(cl) {
		return fmt.Errorf("ohlcv: low %s above open/close at t=%d", c.Low, c.Time)
	}
	return nil
}

// SanitizeSeries enforces the series contract every adapter must satisfy
// before candles cross its boundary: malformed bars are dropped rather than
// propagated, the result is sorted oldest-first and duplicate bucket times
// are collapsed keeping the later bar.
func SanitizeSeries(candles []Candle) []Candle {
	out := make([]Candle, 0, len(candles))
	for _, c := range candles {
		if err := c.Validate(); err != nil {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	dedup := out[:0]
	for _, c := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Time == c.Time {
			dedup[n-1] = c
			continue
		}
		dedup = append(dedup, c)
	}
	return dedup
}
