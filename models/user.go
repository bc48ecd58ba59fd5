package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Username     string          `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string          `gorm:"not null" json:"-"`
	Cash         decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"cash"`
}
