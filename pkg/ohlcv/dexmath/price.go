// Package dexmath converts pool-internal fixed-point price encodings into
// human prices.
package dexmath

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// q96 is 2^96, the scaling factor of the sqrtPriceX96 encoding used by
// concentrated-liquidity pools.
var q96 = new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 96))

// PriceFromSqrtX96 computes (sqrtPriceX96 / 2^96)^2, the pool-native
// "token1 per token0" price. The final step narrows to float64, which is
// lossy for extreme exponents; that precision ceiling is accepted, the
// decimal-string candle model keeps the loss from compounding downstream.
//
// Malformed or negative input yields 0.
func PriceFromSqrtX96(sqrtPriceX96 string) float64 {
	raw, ok := new(big.Int).SetString(sqrtPriceX96, 10)
	if !ok || raw.Sign() <= 0 {
		return 0
	}
	sqrt := new(big.Float).Quo(new(big.Float).SetInt(raw), q96)
	price, _ := new(big.Float).Mul(sqrt, sqrt).Float64()
	if math.IsInf(price, 0) || math.IsNaN(price) {
		return 0
	}
	return price
}

// Invert returns 1/x. Zero and non-finite inputs invert to 0 instead of
// propagating Inf or NaN into candle data.
func Invert(x float64) float64 {
	if x == 0 || math.IsInf(x, 0) || math.IsNaN(x) {
		return 0
	}
	return 1 / x
}

// InvertBar inverts a whole OHLC bar. Inversion reverses ordering, so the
// inverted high comes from the raw low and vice versa.
func InvertBar(open, high, low, close float64) (o, h, l, c float64) {
	return Invert(open), Invert(low), Invert(high), Invert(close)
}

// FormatPrice renders a derived float price as a decimal string for the
// candle model. Non-finite values render as "0".
func FormatPrice(x float64) string {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return "0"
	}
	return decimal.NewFromFloat(x).String()
}
