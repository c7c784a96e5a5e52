// Package numeric rounds coordinates and measurements to a fixed number of
// fractional digits for display and persistence.
//
// Values are scaled in decimal rather than binary: a float64 is taken at its
// shortest round-tripping decimal form (2.356 is "2.356", not
// 2.35599999999999987210...) before digits are dropped. This keeps results
// consistent with what a user sees printed, e.g. FixedFloatNum(1.005, 2) is
// 1.01 and FloorFloatNum(0.29, 2) is 0.29.
//
// All functions are pure and safe for concurrent use. Negative precision and
// non-finite values are programming errors and cause a panic.
package numeric

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// FloorFloatNum drops every digit after precision fractional digits. The
// result never exceeds value in magnitude; discarded digits never carry.
//
//	FloorFloatNum(2.356, 2) == 2.35
//	FloorFloatNum(-2.356, 2) == -2.35
func FloorFloatNum(value float64, precision int) float64 {
	d := toDecimal(value, precision)
	return toFloat(d.Truncate(int32(precision)))
}

// FixedFloatNum rounds value to the nearest number with precision fractional
// digits. Ties round away from zero.
//
//	FixedFloatNum(2.356, 2) == 2.36
//	FixedFloatNum(-2.345, 2) == -2.35
func FixedFloatNum(value float64, precision int) float64 {
	d := toDecimal(value, precision)
	return toFloat(d.Round(int32(precision)))
}

// FormatFixed renders value with exactly precision fractional digits using
// the same rounding as FixedFloatNum.
//
//	FormatFixed(2.356, 2) == "2.36"
//	FormatFixed(3, 2) == "3.00"
func FormatFixed(value float64, precision int) string {
	d := toDecimal(value, precision)
	return d.StringFixed(int32(precision))
}

// FormatFloor renders value with exactly precision fractional digits using
// the same truncation as FloorFloatNum.
func FormatFloor(value float64, precision int) string {
	d := toDecimal(value, precision)
	return d.Truncate(int32(precision)).StringFixed(int32(precision))
}

func toDecimal(value float64, precision int) decimal.Decimal {
	if precision < 0 {
		panic(fmt.Sprintf("numeric: negative precision %d", precision))
	}
	if precision > math.MaxInt32 {
		panic(fmt.Sprintf("numeric: precision %d out of range", precision))
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		panic(fmt.Sprintf("numeric: non-finite value %v", value))
	}
	return decimal.NewFromFloat(value)
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	// normalize -0 so callers never print "-0"
	if f == 0 {
		return 0
	}
	return f
}
