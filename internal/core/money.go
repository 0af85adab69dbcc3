// Package core provides money parsing and handling utilities.
//
// Amounts are whole Rupiah held in int64. Parsing accepts the Indonesian
// notation ("12.500", "Rp 12.500,00") as well as plain digits.
package core

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	maxAmount = decimal.NewFromInt(math.MaxInt64)
	minAmount = decimal.NewFromInt(math.MinInt64)
)

// ParseRupiah converts user input to whole Rupiah, rounding half away from zero.
//
// A dot followed by exactly three digits is a thousands separator; a comma is
// the decimal separator. Negative values are rejected.
//
// Examples:
//
//	ParseRupiah("12500")        -> 12500, nil
//	ParseRupiah("12.500")       -> 12500, nil
//	ParseRupiah("Rp 1.250.000") -> 1250000, nil
//	ParseRupiah("7.500,50")     -> 7501, nil
//	ParseRupiah("2.5")          -> 3, nil
func ParseRupiah(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "Rp"), "rp")
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}

	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1 || isThousandsGrouped(s):
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	d = d.Round(0)
	if d.IsNegative() || d.GreaterThan(maxAmount) {
		return 0, ErrInvalidAmount
	}
	return d.IntPart(), nil
}

func isThousandsGrouped(s string) bool {
	i := strings.LastIndex(s, ".")
	return i > 0 && len(s)-i-1 == 3
}

// ParseQuantity parses a strictly positive whole quantity.
func ParseQuantity(s string) (int64, error) {
	q, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || q <= 0 {
		return 0, ErrInvalidQuantity
	}
	return q, nil
}

// ParseSignedQuantity parses a non-zero quantity; stock edits may be negative.
func ParseSignedQuantity(s string) (int64, error) {
	q, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || q == 0 {
		return 0, ErrInvalidQuantity
	}
	return q, nil
}

// MulAmount returns quantity × unit price, failing instead of overflowing.
func MulAmount(quantity, unitPrice int64) (int64, error) {
	p := decimal.NewFromInt(quantity).Mul(decimal.NewFromInt(unitPrice))
	if p.GreaterThan(maxAmount) || p.LessThan(minAmount) {
		return 0, ErrInvalidAmount
	}
	return p.IntPart(), nil
}

// FormatRupiah renders an amount as "Rp 1.250.000".
func FormatRupiah(amount int64) string {
	neg := amount < 0
	digits := strconv.FormatInt(amount, 10)
	if neg {
		digits = digits[1:]
	}

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}

	if neg {
		return "-Rp " + b.String()
	}
	return "Rp " + b.String()
}
