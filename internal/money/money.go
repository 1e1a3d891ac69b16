/**
 * @description
 * This package provides the fixed-point decimal amount type used for every
 * currency and rate value in the service. Amounts are exact to eight decimal
 * places; binary floating point is never used for money.
 *
 * Key features:
 * - All arithmetic stays at a fixed scale of 8, matching the precision the
 *   platform exposes to users.
 * - Multiplication and prorating round half-to-even and return the rounding
 *   remainder instead of silently discarding it, so callers can account for
 *   every fraction of a unit.
 *
 * @dependencies
 * - github.com/shopspring/decimal: The arbitrary-precision decimal type.
 */

package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places every amount is kept at.
const Scale = 8

// divPrecision is the working precision for divisions before rounding back
// down to Scale. It leaves enough headroom that the half-even rounding of the
// final result is decided by real digits, not division truncation.
const divPrecision = Scale + 12

// Amount is an exact fixed-point decimal currency value.
// The zero value is a valid amount of zero.
type Amount struct {
	dec decimal.Decimal
}

// Zero returns an amount of zero.
func Zero() Amount {
	return Amount{}
}

// New parses a decimal string (e.g. "1000.50") into an Amount.
// The value is rounded half-to-even to Scale if it carries more digits.
func New(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{dec: d.RoundBank(Scale)}, nil
}

// MustNew is New for trusted literals; it panics on a malformed input.
func MustNew(s string) Amount {
	a, err := New(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromInt returns an amount representing a whole number of units.
func FromInt(n int64) Amount {
	return Amount{dec: decimal.NewFromInt(n)}
}

// Add returns a + b. Addition at a common scale is always exact.
func (a Amount) Add(b Amount) Amount {
	return Amount{dec: a.dec.Add(b.dec)}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{dec: a.dec.Sub(b.dec)}
}

// Mul returns a * b rounded half-to-even to Scale, along with the rounding
// remainder (exact - rounded). The remainder is zero when the product fits
// the scale exactly.
func (a Amount) Mul(b Amount) (Amount, Amount) {
	exact := a.dec.Mul(b.dec)
	rounded := exact.RoundBank(Scale)
	return Amount{dec: rounded}, Amount{dec: exact.Sub(rounded)}
}

// MulInt returns a * n. Exact, no rounding involved.
func (a Amount) MulInt(n int64) Amount {
	return Amount{dec: a.dec.Mul(decimal.NewFromInt(n))}
}

// DivInt returns a / n rounded half-to-even to Scale, along with the rounding
// remainder relative to the high-precision quotient.
func (a Amount) DivInt(n int64) (Amount, Amount) {
	quotient := a.dec.DivRound(decimal.NewFromInt(n), divPrecision)
	rounded := quotient.RoundBank(Scale)
	return Amount{dec: rounded}, Amount{dec: quotient.Sub(rounded)}
}

// Prorate computes (principal * rate * periods) / denominator with a single
// half-to-even rounding of the final result to Scale. The second return value
// is the rounding remainder (high-precision quotient minus the rounded
// result). Keeping the rounding to one step is what lets repeated small
// prorations agree with one large proration over the same span.
func Prorate(principal, rate Amount, periods, denominator int64) (Amount, Amount) {
	exact := principal.dec.Mul(rate.dec).Mul(decimal.NewFromInt(periods))
	quotient := exact.DivRound(decimal.NewFromInt(denominator), divPrecision)
	rounded := quotient.RoundBank(Scale)
	return Amount{dec: rounded}, Amount{dec: quotient.Sub(rounded)}
}

// Cmp compares a and b: -1 if a < b, 0 if equal, +1 if a > b.
func (a Amount) Cmp(b Amount) int {
	return a.dec.Cmp(b.dec)
}

// Equal reports whether a and b are numerically equal.
func (a Amount) Equal(b Amount) bool {
	return a.dec.Equal(b.dec)
}

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool {
	return a.dec.LessThan(b.dec)
}

// GreaterThan reports whether a > b.
func (a Amount) GreaterThan(b Amount) bool {
	return a.dec.GreaterThan(b.dec)
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool {
	return a.dec.IsZero()
}

// IsNegative reports whether the amount is below zero.
func (a Amount) IsNegative() bool {
	return a.dec.IsNegative()
}

// IsPositive reports whether the amount is above zero.
func (a Amount) IsPositive() bool {
	return a.dec.IsPositive()
}

// Abs returns the absolute value of the amount.
func (a Amount) Abs() Amount {
	return Amount{dec: a.dec.Abs()}
}

// String renders the amount with exactly Scale decimal places, e.g.
// "1000.50000000". This is also the wire and database representation.
func (a Amount) String() string {
	return a.dec.StringFixedBank(Scale)
}

// Decimal exposes the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return a.dec
}

// MarshalJSON renders the amount as a JSON string to preserve precision.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either a JSON string or a bare JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Fall back to a bare number literal.
		s = string(data)
	}
	parsed, err := New(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer so amounts can be written to NUMERIC columns.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns read back as text.
func (a *Amount) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		parsed, err := New(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case []byte:
		parsed, err := New(string(v))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into money.Amount", src)
	}
}
