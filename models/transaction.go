package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one executed order. Shares is positive for a buy and
// negative for a sell. Rows are only ever inserted.
type Transaction struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       uint            `gorm:"index;not null" json:"user_id"`
	Symbol       string          `gorm:"index;not null" json:"symbol"`
	Shares       int64           `gorm:"not null" json:"shares"`
	Price        decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"price"`
	TransactedAt time.Time       `gorm:"autoCreateTime" json:"transacted_at"`
}

// Side reports "buy" or "sell" from the sign of Shares.
func (t Transaction) Side() string {
	if t.Shares < 0 {
		return "sell"
	}
	return "buy"
}

// Amount is the absolute cash moved by the transaction.
func (t Transaction) Amount() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Shares)).Abs()
}
