// Package fixedmath implements the scaled-integer arithmetic used by the
// pricing engine. All computation is integer multiply-then-divide with floor
// semantics; intermediates go through 256-bit values so 64-bit operands can
// never overflow silently.
package fixedmath

import (
	"errors"

	"github.com/holiman/uint256"
)

const (
	// PriceScale is the fixed-point scale for prices: 1e9 == 1.0.
	PriceScale = uint64(1_000_000_000)
	// AprScale is the fixed-point scale for annual rates: 1e6 == 100% APR,
	// so 36_500 == 3.65%/yr.
	AprScale = uint64(1_000_000)
	// BpsDenom is the basis-point denominator.
	BpsDenom = uint64(10_000)
	// SecondsPerYear uses the non-leap-year convention.
	SecondsPerYear = uint64(365 * 24 * 3600)

	// DaysPerYear drives the APY daily-compounding conversion.
	DaysPerYear = uint64(365)
)

var (
	ErrOverflow   = errors.New("arithmetic overflow")
	ErrDivByZero  = errors.New("division by zero")
	ErrInvalidBps = errors.New("basis points out of range")
)

// MulDiv returns floor(a*b/den) with a 256-bit intermediate product.
func MulDiv(a, b, den uint64) (uint64, error) {
	if den == 0 {
		return 0, ErrDivByZero
	}
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	quotient := product.Div(product, uint256.NewInt(den))
	if !quotient.IsUint64() {
		return 0, ErrOverflow
	}
	return quotient.Uint64(), nil
}

// ApplyBps splits a gross amount into net and fee using floor division on the
// net side, so net+fee == gross exactly.
func ApplyBps(gross uint64, feeBps uint16) (net uint64, fee uint64, err error) {
	if uint64(feeBps) > BpsDenom {
		return 0, 0, ErrInvalidBps
	}
	net, err = MulDiv(gross, BpsDenom-uint64(feeBps), BpsDenom)
	if err != nil {
		return 0, 0, err
	}
	return net, gross - net, nil
}

// GrowthFactor returns the 1e9-scale compound multiplier
// 1 + apr*steps*stepSeconds/SecondsPerYear for an apr at AprScale.
func GrowthFactor(apr, steps, stepSeconds uint64) (uint64, error) {
	elapsed := new(uint256.Int).Mul(uint256.NewInt(steps), uint256.NewInt(stepSeconds))
	numerator := elapsed.Mul(elapsed, uint256.NewInt(apr))
	numerator.Mul(numerator, uint256.NewInt(PriceScale/AprScale))
	growth := numerator.Div(numerator, uint256.NewInt(SecondsPerYear))
	growth.Add(growth, uint256.NewInt(PriceScale))
	if !growth.IsUint64() {
		return 0, ErrOverflow
	}
	return growth.Uint64(), nil
}

// MulScaled multiplies two 1e9-scale values: floor(a*b/1e9).
func MulScaled(a, b uint64) (uint64, error) {
	return MulDiv(a, b, PriceScale)
}

// PowScaled raises a 1e9-scale base to an integer exponent by
// square-and-multiply, flooring after each scaled multiplication.
func PowScaled(base uint64, exp uint64) (uint64, error) {
	result := PriceScale
	square := base
	for exp > 0 {
		var err error
		if exp&1 == 1 {
			result, err = MulScaled(result, square)
			if err != nil {
				return 0, err
			}
		}
		exp >>= 1
		if exp == 0 {
			break
		}
		square, err = MulScaled(square, square)
		if err != nil {
			return 0, err
		}
	}
	return result, nil
}

// CompoundAPY converts a stored APR to APY via daily compounding,
// (1 + APR/365)^365 - 1, returned at AprScale.
func CompoundAPY(apr uint64) (uint64, error) {
	daily, err := MulDiv(apr, PriceScale/AprScale, DaysPerYear)
	if err != nil {
		return 0, err
	}
	compounded, err := PowScaled(PriceScale+daily, DaysPerYear)
	if err != nil {
		return 0, err
	}
	if compounded < PriceScale {
		return 0, nil
	}
	return (compounded - PriceScale) / (PriceScale / AprScale), nil
}

// ScaleAmount rescales an amount between token decimal precisions with floor
// semantics when scaling down.
func ScaleAmount(amount uint64, fromDecimals, toDecimals uint8) (uint64, error) {
	if fromDecimals == toDecimals {
		return amount, nil
	}
	if toDecimals > fromDecimals {
		return MulDiv(amount, pow10(toDecimals-fromDecimals), 1)
	}
	return amount / pow10(fromDecimals-toDecimals), nil
}

func pow10(n uint8) uint64 {
	out := uint64(1)
	for i := uint8(0); i < n; i++ {
		out *= 10
	}
	return out
}
