package money

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
)

// Money keeps amounts in minor units (cents) to avoid floating point issues.
type Money struct {
	Amount   int64
	Currency string
}

// New constructs a Money value validating minimal invariants.
func New(amount int64, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	currency = strings.ToUpper(currency)
	return Money{Amount: amount, Currency: currency}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// FromMajor converts a whole-unit amount (20 -> 2000 cents).
func FromMajor(units int64, currency string) (Money, error) {
	return New(units*100, currency)
}

// Add adds two money values ensuring currencies match.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// IsPositive returns true if the amount is above zero.
func (m Money) IsPositive() bool {
	return m.Amount > 0
}

// Major renders the amount in major units, dropping a zero fraction: 2000 -> "20", 2050 -> "20.50".
func (m Money) Major() string {
	sign := ""
	amount := m.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	whole, cents := amount/100, amount%100
	if cents == 0 {
		return fmt.Sprintf("%s%d", sign, whole)
	}
	return fmt.Sprintf("%s%d.%02d", sign, whole, cents)
}

// String renders the amount with a currency symbol where one is common.
func (m Money) String() string {
	switch m.Currency {
	case "USD":
		return "$" + m.Major()
	case "EUR":
		return "€" + m.Major()
	case "GBP":
		return "£" + m.Major()
	case "PLN":
		return m.Major() + " zł"
	default:
		return strings.TrimSpace(m.Major() + " " + m.Currency)
	}
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}
