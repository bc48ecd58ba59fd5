package database

import (
	"fmt"
	"reflect"

	"gorm.io/gorm"

	"stocks-simulator/models"
)

// Migrate creates or updates the tables the application needs.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.StockPrice{},
	)
}

var (
	ErrInvalidTransaction = fmt.Errorf("invalid transaction")
	ErrInvalidData        = fmt.Errorf("invalid data, expected slice")
)

// CreateInBatches inserts the elements of data, a slice of models, in chunks
// of batchSize inside a single transaction.
func CreateInBatches(db *gorm.DB, data interface{}, batchSize int) error {
	if batchSize <= 0 {
		return ErrInvalidTransaction
	}

	slice := reflect.ValueOf(data)
	if slice.Kind() != reflect.Slice {
		return ErrInvalidData
	}

	total := slice.Len()
	if total == 0 {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < total; i += batchSize {
			end := i + batchSize
			if end > total {
				end = total
			}

			chunk := slice.Slice(i, end).Interface()
			if err := tx.Create(chunk).Error; err != nil {
				return fmt.Errorf("batch insert failed: %w", err)
			}
		}
		return nil
	})
}
