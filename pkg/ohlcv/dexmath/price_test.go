package dexmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceFromSqrtX96(t *testing.T) {
	// sqrtPriceX96 == 2^96 encodes a price of exactly 1.
	assert.Equal(t, 1.0, PriceFromSqrtX96("79228162514264337593543950336"))

	// 2 * 2^96 encodes a price of 4.
	assert.Equal(t, 4.0, PriceFromSqrtX96("158456325028528675187087900672"))

	// A realistic USDC/WETH tick: price around 5.9e-9 (token1 per token0,
	// before any decimals adjustment).
	price := PriceFromSqrtX96("6082465305126699446929209")
	assert.InDelta(t, 5.894e-9, price, 0.01e-9)
}

func TestPriceFromSqrtX96BadInput(t *testing.T) {
	assert.Equal(t, 0.0, PriceFromSqrtX96(""))
	assert.Equal(t, 0.0, PriceFromSqrtX96("not-a-number"))
	assert.Equal(t, 0.0, PriceFromSqrtX96("0"))
	assert.Equal(t, 0.0, PriceFromSqrtX96("-79228162514264337593543950336"))
}

func TestInvert(t *testing.T) {
	assert.Equal(t, 0.5, Invert(2))
	assert.Equal(t, 2.0, Invert(0.5))
	assert.Equal(t, 0.0, Invert(0))
	assert.Equal(t, 0.0, Invert(math.Inf(1)))
	assert.Equal(t, 0.0, Invert(math.NaN()))
}

func TestInvertBar(t *testing.T) {
	o, h, l, c := InvertBar(2, 4, 1, 2.5)
	assert.Equal(t, 0.5, o)
	assert.Equal(t, 1.0, h, "inverted high comes from the raw low")
	assert.Equal(t, 0.25, l, "inverted low comes from the raw high")
	assert.Equal(t, 0.4, c)
	assert.GreaterOrEqual(t, h, o)
	assert.GreaterOrEqual(t, h, c)
	assert.LessOrEqual(t, l, o)
	assert.LessOrEqual(t, l, c)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "0.5", FormatPrice(0.5))
	assert.Equal(t, "0", FormatPrice(0))
	assert.Equal(t, "0", FormatPrice(math.Inf(1)))
	assert.Equal(t, "0", FormatPrice(math.NaN()))
}
