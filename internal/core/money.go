// Package core provides money parsing and rounding utilities.
//
// Amounts travel as float64 through the forecasting math. Every value that
// leaves the core goes through Round2 or FloorCents so outputs are stable
// to the cent.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Round2 rounds half away from zero to two decimal places.
//
// Examples:
//
//	Round2(1050.004) -> 1050
//	Round2(12.345)   -> 12.35
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// FloorCents truncates toward negative infinity at the cent. It is used
// where a rounded-up amount could exceed a budget.
func FloorCents(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).RoundFloor(2).Float64()
	return f
}

// NonNegative floors v at zero and rounds it to cents.
func NonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return Round2(v)
}

// ParseAmount converts a decimal string to a float amount.
//
// It accepts dot (12.34) and comma (12,34) decimal separators, an optional
// thousands separator when both appear ("1.234,56" or "1,234.56"), and
// rounds half-up to cents. Negative values are rejected.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "€₹$ ")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.IsNegative() {
		return 0, ErrInvalidAmount
	}
	f, _ := d.Round(2).Float64()
	return f, nil
}

// Sum adds amounts with decimal arithmetic and rounds the result to cents.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	f, _ := total.Round(2).Float64()
	return f
}

// ToCents converts an amount to integer cents, rounding half away from zero.
func ToCents(v float64) int64 {
	return decimal.NewFromFloat(v).Round(2).Shift(2).IntPart()
}

// FromCents converts integer cents back to an amount.
func FromCents(c int64) float64 {
	f, _ := decimal.New(c, -2).Float64()
	return f
}
