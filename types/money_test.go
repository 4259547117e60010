package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return USD(1200).Add(USD(-1200)) }, USD(0)},
		{"Subtract", func() Money { return USD(1485).Subtract(USD(485)) }, USD(1000)},
		{"Negate", func() Money { return USD(1200).Negate() }, USD(-1200)},
		{"Zero seed", func() Money { return Money{}.Add(EUR(50)) }, EUR(50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op(); !got.Equal(tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for currency mismatch")
		}
	}()

	_ = USD(100).Add(EUR(100))
}

func TestMoneyProrate(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		num, den int64
		expected Money
	}{
		{"22 of 31 days", USD(1200), 22, 31, USD(852)},
		{"9 of 31 days", USD(1200), 9, 31, USD(348)},
		{"whole period", USD(1485), 31, 31, USD(1485)},
		{"half-even down", USD(5), 1, 2, USD(2)},
		{"half-even up", USD(7), 1, 2, USD(4)},
		{"negative", USD(-1200), 9, 31, USD(-348)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.money.Prorate(tt.num, tt.den)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMoneyProrateZeroDenominator(t *testing.T) {
	if _, err := USD(100).Prorate(1, 0); err == nil {
		t.Error("expected error for zero denominator")
	}
}

func TestMoneyString(t *testing.T) {
	tests := []struct {
		money    Money
		expected string
	}{
		{USD(1200), "$12.00"},
		{USD(1485), "$14.85"},
		{USD(-1), "$-0.01"},
		{EUR(9999), "€99.99"},
		{Money{Amount: 100, Currency: "jpy"}, "¥100"},
		{Money{Amount: 250, Currency: "chf"}, "CHF 2.50"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.money.String(); got != tt.expected {
				t.Errorf("got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(USD(1485))
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	expected := `{"amount":1485,"currency":"usd","display":"$14.85"}`
	if string(data) != expected {
		t.Errorf("got %s, want %s", data, expected)
	}
}

func TestSum(t *testing.T) {
	tests := []struct {
		name     string
		values   []Money
		expected Money
	}{
		{"Empty", nil, Zero("usd")},
		{"Charge and repair", []Money{USD(1200), USD(-1200)}, USD(0)},
		{"Pieces", []Money{USD(852), USD(1485)}, USD(2337)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sum(tt.values...); !got.Equal(tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}
