package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stocks-simulator/models"
)

// GormStore is a Store and Accounts on top of a relational database.
type GormStore struct {
	db      *gorm.DB
	timeout time.Duration
	inUnit  bool
}

// NewGormStore wraps db. A positive timeout bounds every query issued
// outside a unit of work.
func NewGormStore(db *gorm.DB, timeout time.Duration) *GormStore {
	return &GormStore{db: db, timeout: timeout}
}

func (s *GormStore) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if s.timeout <= 0 || s.inUnit {
		return s.db.WithContext(ctx), func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func (s *GormStore) CreateUser(ctx context.Context, username, passwordHash string, cash decimal.Decimal) (models.User, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	user := models.User{Username: username, PasswordHash: passwordHash, Cash: cash}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.User{}, fmt.Errorf("%w: %s", ErrUsernameTaken, username)
		}
		return models.User{}, unavailable(err)
	}
	return user, nil
}

func (s *GormStore) FindUserByUsername(ctx context.Context, username string) (models.User, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var user models.User
	if err := db.Where("username = ?", username).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, fmt.Errorf("%w: %s", ErrNotFound, username)
		}
		return models.User{}, unavailable(err)
	}
	return user, nil
}

func (s *GormStore) GetCash(ctx context.Context, userID uint) (decimal.Decimal, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var user models.User
	if err := db.Select("id", "cash").Take(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, fmt.Errorf("%w: id %d", ErrNotFound, userID)
		}
		return decimal.Zero, unavailable(err)
	}
	return user.Cash, nil
}

func (s *GormStore) SetCash(ctx context.Context, userID uint, cash decimal.Decimal) error {
	db, cancel := s.session(ctx)
	defer cancel()

	res := db.Model(&models.User{}).Where("id = ?", userID).Update("cash", cash)
	if res.Error != nil {
		return unavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, userID)
	}
	return nil
}

func (s *GormStore) AppendTransaction(ctx context.Context, userID uint, symbol string, shares int64, price decimal.Decimal) (models.Transaction, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	tx := models.Transaction{UserID: userID, Symbol: symbol, Shares: shares, Price: price}
	if err := db.Create(&tx).Error; err != nil {
		return models.Transaction{}, unavailable(err)
	}
	return tx, nil
}

func (s *GormStore) GetTransactions(ctx context.Context, userID uint) ([]models.Transaction, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	txs := []models.Transaction{}
	if err := db.Where("user_id = ?", userID).Order("id").Find(&txs).Error; err != nil {
		return nil, unavailable(err)
	}
	return txs, nil
}

func (s *GormStore) GetHoldings(ctx context.Context, userID uint) (map[string]int64, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var rows []struct {
		Symbol      string
		TotalShares int64
	}
	err := db.Model(&models.Transaction{}).
		Select("symbol, SUM(shares) AS total_shares").
		Where("user_id = ?", userID).
		Group("symbol").
		Having("SUM(shares) > 0").
		Scan(&rows).Error
	if err != nil {
		return nil, unavailable(err)
	}

	holdings := make(map[string]int64, len(rows))
	for _, r := range rows {
		holdings[r.Symbol] = r.TotalShares
	}
	return holdings, nil
}

// Atomically runs fn inside a database transaction holding a row lock on the
// user, so concurrent units for the same user queue behind each other.
func (s *GormStore) Atomically(ctx context.Context, userID uint, fn func(Store) error) error {
	if s.inUnit {
		return fn(s)
	}

	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Take(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				fnErr = fmt.Errorf("%w: id %d", ErrNotFound, userID)
			} else {
				fnErr = unavailable(err)
			}
			return fnErr
		}
		fnErr = fn(&GormStore{db: tx, timeout: s.timeout, inUnit: true})
		return fnErr
	})
	if err != nil && !errors.Is(err, fnErr) {
		return unavailable(err)
	}
	return err
}
