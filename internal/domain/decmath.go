package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// tokenPrecision is the maximum number of decimal places carried by token
// amounts. SPL token mints use up to 9 decimals; wrapped EVM assets go to 18.
const tokenPrecision = 18

// NaN is the result of arithmetic on malformed decimal strings. It never
// parses back as a valid decimal, so it propagates through any further
// arithmetic instead of silently producing a wrong amount.
const NaN = "NaN"

// IsValidDecimal reports whether s parses as a decimal number. It never
// panics or returns an error; malformed input simply yields false.
func IsValidDecimal(s string) bool {
	if s == "" {
		return false
	}
	_, err := decimal.NewFromString(s)
	return err == nil
}

// Add returns a+b as a decimal string, or NaN if either operand is malformed.
func Add(a, b string) string {
	da, db, ok := parsePair(a, b)
	if !ok {
		return NaN
	}
	return format(da.Add(db))
}

// Subtract returns a-b as a decimal string, or NaN if either operand is malformed.
func Subtract(a, b string) string {
	da, db, ok := parsePair(a, b)
	if !ok {
		return NaN
	}
	return format(da.Sub(db))
}

// Multiply returns a*b as a decimal string, or NaN if either operand is malformed.
func Multiply(a, b string) string {
	da, db, ok := parsePair(a, b)
	if !ok {
		return NaN
	}
	return format(da.Mul(db))
}

// Divide returns a/b rounded to token precision, stripping trailing zeros.
// Division by zero or malformed input yields NaN.
func Divide(a, b string) string {
	da, db, ok := parsePair(a, b)
	if !ok || db.IsZero() {
		return NaN
	}
	return format(da.DivRound(db, tokenPrecision))
}

// PercentageOf returns amount*pct/100, or NaN on malformed input.
func PercentageOf(amount, pct string) string {
	da, db, ok := parsePair(amount, pct)
	if !ok {
		return NaN
	}
	return format(da.Mul(db).DivRound(decimal.NewFromInt(100), tokenPrecision))
}

// IsGreaterOrEqual reports a >= b. Malformed input yields false.
func IsGreaterOrEqual(a, b string) bool {
	da, db, ok := parsePair(a, b)
	return ok && da.GreaterThanOrEqual(db)
}

// IsLessThan reports a < b. Malformed input yields false.
func IsLessThan(a, b string) bool {
	da, db, ok := parsePair(a, b)
	return ok && da.LessThan(db)
}

// IsPositive reports a > 0. Malformed input yields false.
func IsPositive(a string) bool {
	d, err := decimal.NewFromString(a)
	return err == nil && d.IsPositive()
}

// IsZero reports whether a equals zero. Malformed input yields false.
func IsZero(a string) bool {
	d, err := decimal.NewFromString(a)
	return err == nil && d.IsZero()
}

// Equal reports numeric equality of two decimal strings ("1.10" == "1.1").
// Malformed input yields false.
func Equal(a, b string) bool {
	da, db, ok := parsePair(a, b)
	return ok && da.Equal(db)
}

// SafeParse parses a decimal string, returning zero for malformed or empty
// input. Used on read paths where a missing value degrades to zero.
func SafeParse(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Format renders a decimal at token precision with trailing zeros stripped.
func Format(d decimal.Decimal) string {
	return format(d)
}

func parsePair(a, b string) (decimal.Decimal, decimal.Decimal, bool) {
	da, errA := decimal.NewFromString(a)
	db, errB := decimal.NewFromString(b)
	if errA != nil || errB != nil {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	return da, db, true
}

// format rounds to token precision and strips trailing zeros.
func format(d decimal.Decimal) string {
	s := d.Round(tokenPrecision).String()
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
