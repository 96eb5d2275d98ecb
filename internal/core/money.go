// Package core holds the ledger domain model and the merge rules that keep
// each month's totals consistent with its rows.
//
// This file contains amount parsing. Amounts are exact decimals so that sums
// never drift the way float totals do.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// maxAmountDigits bounds the integer part of a parsed amount.
	maxAmountDigits = 15
	// maxExponentDigits keeps 1e-99 the smallest expressible step.
	maxExponentDigits = 2
)

// ParseAmount converts a decimal string to a non-negative amount.
//
// Both dot (12.34) and comma (12,34) separators are accepted, as is a
// decimal exponent (1e3, 2.5E-1) so JSON numbers parse as written. Negative
// values, NaN and infinities are rejected.
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,5")  -> 12.5, nil
//	ParseAmount("1e3")   -> 1000, nil
//	ParseAmount("-5")    -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, NewValidationError("amount", "is required")
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "-") {
		return decimal.Zero, NewValidationError("amount", "must not be negative")
	}
	s = strings.TrimPrefix(s, "+")

	mantissa, exp, hasExp := strings.Cut(strings.ToLower(s), "e")
	if hasExp && !validExponent(exp) {
		return decimal.Zero, NewValidationError("amount", "must be a number")
	}
	intPart, fracPart, _ := strings.Cut(mantissa, ".")
	if intPart == "" && fracPart == "" {
		return decimal.Zero, NewValidationError("amount", "must be a number")
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return decimal.Zero, NewValidationError("amount", "must be a number")
	}
	if intPart == "" {
		intPart = "0"
	}
	normalized := intPart
	if fracPart != "" {
		normalized += "." + fracPart
	}
	if hasExp {
		normalized += "e" + exp
	}
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, NewValidationError("amount", "must be a number")
	}
	if len(d.Truncate(0).String()) > maxAmountDigits {
		return decimal.Zero, NewValidationError("amount", "is too large")
	}
	return d, nil
}

// validExponent accepts an optionally signed exponent of at most
// maxExponentDigits digits.
func validExponent(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "+"), "-")
	return s != "" && len(s) <= maxExponentDigits && allDigits(s)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
