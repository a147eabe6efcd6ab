// Package core provides the transaction domain model, amount parsing and
// the aggregate computation.
//
// This file contains functions for parsing monetary amounts from strings.
package core

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

const (
	// maxAmountDigits bounds the integer part of an amount, exponent applied.
	maxAmountDigits = 15
	// maxExponent bounds the exponent magnitude.
	maxExponent = 30
)

var maxAmount = decimal.New(1, maxAmountDigits)

// ParseAmount converts a decimal string into a signed decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, an
// optional leading sign and an exponent (1e3, 1.5E-2), which JSON numbers
// may carry. Thousands separators are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("-12,34") -> -12.34, nil
//	ParseAmount("1e3")    -> 1000, nil
//	ParseAmount("1 000")  -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	mantissa, exp, hasExp := strings.Cut(strings.ToLower(s), "e")
	digits := strings.TrimLeft(mantissa, "+-")
	if len(mantissa)-len(digits) > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	intPart, fracPart, _ := strings.Cut(digits, ".")
	if intPart == "" && fracPart == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if !allDigits(intPart) || !allDigits(fracPart) || len(strings.TrimLeft(intPart, "0")) > maxAmountDigits {
		return decimal.Zero, ErrInvalidAmount
	}

	shift := 0
	if hasExp {
		n, err := strconv.Atoi(exp)
		if err != nil || n > maxExponent || n < -maxExponent {
			return decimal.Zero, ErrInvalidAmount
		}
		shift = n
	}

	d, err := decimal.NewFromString(mantissa)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if shift != 0 {
		d = d.Shift(int32(shift))
	}
	if d.Abs().GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
