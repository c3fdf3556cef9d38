package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gmelo/transferapi/internal/apperrors"
)

const (
	// DefaultCurrency is the only currency the system moves today.
	// The type still carries the tag so cross-currency arithmetic fails fast.
	DefaultCurrency = "BRL"

	// Scale is the number of fractional digits every amount is kept at
	Scale = 2
)

// Money is an immutable fixed-point amount with a currency tag.
// Every construction and every arithmetic result is rounded to Scale digits
// with banker's rounding (round half to even).
type Money struct {
	amount   decimal.Decimal
	currency string
}

// Parse builds Money from a decimal string like "150.00".
// Malformed input returns an InvalidAmount validation error.
func Parse(value string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return Money{}, apperrors.InvalidAmount(value)
	}

	return FromDecimal(d), nil
}

// FromDecimal builds Money in the default currency, rounding to scale
func FromDecimal(d decimal.Decimal) Money {
	return Money{
		amount:   d.RoundBank(Scale),
		currency: DefaultCurrency,
	}
}

// MustParse is Parse that panics; for constants in tests and seeds
func MustParse(value string) Money {
	m, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return m
}

func Zero() Money {
	return FromDecimal(decimal.Zero)
}

func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{amount: m.amount.Add(other.amount).RoundBank(Scale), currency: m.currency}
}

func (m Money) Sub(other Money) Money {
	m.assertSameCurrency(other)
	return Money{amount: m.amount.Sub(other.amount).RoundBank(Scale), currency: m.currency}
}

func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor).RoundBank(Scale), currency: m.currency}
}

func (m Money) LessThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.amount.LessThan(other.amount)
}

func (m Money) GreaterThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.amount.GreaterThan(other.amount)
}

func (m Money) GreaterThanOrEqual(other Money) bool {
	m.assertSameCurrency(other)
	return m.amount.GreaterThanOrEqual(other.amount)
}

func (m Money) Equal(other Money) bool {
	m.assertSameCurrency(other)
	return m.amount.Equal(other.amount)
}

func (m Money) IsPositive() bool { return m.amount.IsPositive() }
func (m Money) IsNegative() bool { return m.amount.IsNegative() }
func (m Money) IsZero() bool     { return m.amount.IsZero() }

// Decimal returns the underlying amount at fixed scale
func (m Money) Decimal() decimal.Decimal {
	return m.amount.RoundBank(Scale)
}

func (m Money) Currency() string {
	if m.currency == "" {
		return DefaultCurrency
	}
	return m.currency
}

// String renders the plain amount, e.g. "1234.50"
func (m Money) String() string {
	return m.amount.StringFixedBank(Scale)
}

// Formatted renders the amount for display in pt-BR convention,
// e.g. "R$ 1.234,56"
func (m Money) Formatted() string {
	fixed := m.amount.Abs().StringFixedBank(Scale)

	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	sign := ""
	if m.amount.IsNegative() {
		sign = "-"
	}

	return fmt.Sprintf("%sR$ %s,%s", sign, b.String(), fracPart)
}

// assertSameCurrency panics on mismatch: in a single-currency system two
// different tags mean corrupted construction, not a business condition
func (m Money) assertSameCurrency(other Money) {
	if m.Currency() != other.Currency() {
		panic(fmt.Sprintf("money: currency mismatch: %s and %s", m.Currency(), other.Currency()))
	}
}
