package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockPrice is a quote observation kept for reference. It plays no part in
// cash or holdings.
type StockPrice struct {
	gorm.Model
	Symbol    string          `gorm:"index" json:"symbol"`
	Price     decimal.Decimal `gorm:"type:numeric(20,4)" json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// Quote is what a price lookup returns for a symbol.
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}
