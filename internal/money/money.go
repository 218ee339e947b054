// Package money implements the fixed-point amounts used for every price,
// subtotal and total. Values are exact decimals; results of Multiply and Sum
// are rounded half-up to two fractional digits.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits kept after rounding.
const Places = 2

// ErrArithmetic reports an amount that cannot be represented, such as a
// negative quantity or a result wider than the ledger columns.
var ErrArithmetic = errors.New("money arithmetic error")

// MaxAmount bounds a rounded sale total or subtotal from above, exclusive:
// NUMERIC(14,2) holds at most 999999999999.99.
var MaxAmount = decimal.New(1, 12)

// PricePlaces is the number of fractional digits a stored unit price keeps
// (NUMERIC(14,4)).
const PricePlaces = 4

// MaxPrice bounds a stored unit price from above, exclusive.
var MaxPrice = decimal.New(1, 10)

// Money is an exact decimal amount. The zero value is 0.
type Money struct {
	d decimal.Decimal
}

// Zero is 0.00.
var Zero = Money{}

// Parse reads a decimal string such as "10.50" or "3.335". Unit prices keep
// their full precision; only computed amounts are rounded.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}
	return Money{d: d}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromCents builds an amount from an integer number of cents.
func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -Places)}
}

// Multiply returns unitPrice × quantity rounded half-up to two places.
func Multiply(unitPrice Money, quantity int) (Money, error) {
	if quantity < 0 {
		return Money{}, fmt.Errorf("%w: negative quantity %d", ErrArithmetic, quantity)
	}
	out := round(unitPrice.d.Mul(decimal.NewFromInt(int64(quantity))))
	if out.Abs().GreaterThanOrEqual(MaxAmount) {
		return Money{}, fmt.Errorf("%w: %s x %d exceeds %s", ErrArithmetic, unitPrice, quantity, MaxAmount)
	}
	return Money{d: out}, nil
}

// Sum adds the amounts, rounding the running total after every addition.
func Sum(amounts ...Money) (Money, error) {
	total := decimal.Zero
	for _, a := range amounts {
		total = round(total.Add(a.d))
		if total.Abs().GreaterThanOrEqual(MaxAmount) {
			return Money{}, fmt.Errorf("%w: total exceeds %s", ErrArithmetic, MaxAmount)
		}
	}
	return Money{d: total}, nil
}

func round(d decimal.Decimal) decimal.Decimal {
	// Round is half away from zero, which is half-up for till amounts.
	return d.Round(Places)
}

// Round returns m rounded half-up to two places.
func (m Money) Round() Money { return Money{d: round(m.d)} }

func (m Money) Cmp(other Money) int { return m.d.Cmp(other.d) }
func (m Money) Equal(other Money) bool { return m.d.Equal(other.d) }
func (m Money) IsZero() bool { return m.d.IsZero() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }
func (m Money) Decimal() decimal.Decimal { return m.d }

// FitsPlaces reports whether m has no significant digits beyond places
// fractional digits. Trailing zeros do not count.
func (m Money) FitsPlaces(places int32) bool { return m.d.Equal(m.d.Truncate(places)) }

// IsValidPrice reports whether m can be stored as a unit price without
// rounding or overflow.
func (m Money) IsValidPrice() bool {
	return !m.d.IsNegative() && m.FitsPlaces(PricePlaces) && m.d.LessThan(MaxPrice)
}

// String renders at least two fractional digits ("10.00", "3.335").
func (m Money) String() string {
	if m.d.Exponent() >= -Places {
		return m.d.StringFixed(Places)
	}
	return m.d.String()
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a quoted decimal or a bare JSON number.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*m = Money{}
		return nil
	}
	s = strings.Trim(s, `"`)
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value stores the amount as its decimal text so NUMERIC columns receive it
// without a float conversion.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

func (m *Money) Scan(src any) error {
	return m.d.Scan(src)
}
