package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an exact monetary amount in a single currency. Amounts use
// decimal arithmetic so fee-challenge comparisons are exact.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney builds a Money from a decimal string, e.g. NewMoney("11.00", "USD").
// Invalid amounts produce a zero amount in the given currency.
func NewMoney(amount, currency string) Money {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		d = decimal.Zero
	}
	return Money{Amount: d, Currency: currency}
}

// Equal reports exact equality of currency and amount.
func (m Money) Equal(o Money) bool {
	return m.Currency == o.Currency && m.Amount.Equal(o.Amount)
}

// Add returns m + o. Callers must only add amounts in the same currency;
// the pricing engine guarantees this for transfer costs.
func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount.Add(o.Amount), Currency: m.Currency}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount.IsZero() }

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}
