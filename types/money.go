// Package types provides the value types shared across rebill.
package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in the smallest currency unit (cents, pence, yen).
// Arithmetic stays integral; ratios go through decimal and are rounded
// half-even back to the minor unit.
type Money struct {
	Amount   int64  `json:"amount"   yaml:"amount"   bson:"amount"`
	Currency string `json:"currency" yaml:"currency" bson:"currency"`
}

// USD creates a Money value in US cents.
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// EUR creates a Money value in euro cents.
func EUR(cents int64) Money { return Money{Amount: cents, Currency: "eur"} }

// Zero returns zero in the given currency.
func Zero(currency string) Money { return Money{Currency: strings.ToLower(currency)} }

// Add returns m + other. Panics on currency mismatch.
func (m Money) Add(other Money) Money {
	m.mustMatch(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.currency(other)}
}

// Subtract returns m - other. Panics on currency mismatch.
func (m Money) Subtract(other Money) Money {
	return m.Add(other.Negate())
}

// Negate returns -m.
func (m Money) Negate() Money { return Money{Amount: -m.Amount, Currency: m.Currency} }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal reports whether amount and currency both match.
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// Prorate returns m * num / den rounded half-even to the minor unit.
// It returns an error when den is not positive.
func (m Money) Prorate(num, den int64) (Money, error) {
	if den <= 0 {
		return Money{}, fmt.Errorf("rebill: prorate %s by %d/%d: non-positive denominator", m, num, den)
	}
	v := decimal.NewFromInt(m.Amount).
		Mul(decimal.NewFromInt(num)).
		Div(decimal.NewFromInt(den)).
		RoundBank(0)
	return Money{Amount: v.IntPart(), Currency: m.Currency}, nil
}

// Decimal returns the amount in major units, e.g. 12.00 for USD(1200).
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -int32(currencyDecimals(m.Currency)))
}

// String renders the amount with its currency symbol, e.g. "$12.00".
func (m Money) String() string {
	return currencySymbol(m.Currency) + m.Decimal().StringFixed(int32(currencyDecimals(m.Currency)))
}

// MarshalJSON adds a display field next to amount and currency.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{m.Amount, m.Currency, m.String()})
}

// Sum adds values of one currency. An empty call returns zero USD.
func Sum(values ...Money) Money {
	if len(values) == 0 {
		return Zero("usd")
	}
	total := values[0]
	for _, v := range values[1:] {
		total = total.Add(v)
	}
	return total
}

// An empty currency adopts the other side's, so a zero Money{} can seed sums.
func (m Money) mustMatch(other Money) {
	if m.Currency != "" && other.Currency != "" && m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

func (m Money) currency(other Money) string {
	if m.Currency != "" {
		return m.Currency
	}
	return other.Currency
}

func currencySymbol(currency string) string {
	switch strings.ToLower(currency) {
	case "usd":
		return "$"
	case "eur":
		return "€"
	case "gbp":
		return "£"
	case "jpy":
		return "¥"
	case "":
		return ""
	}
	return strings.ToUpper(currency) + " "
}

func currencyDecimals(currency string) int {
	switch strings.ToLower(currency) {
	case "jpy", "krw", "vnd", "clp":
		return 0
	}
	return 2
}
