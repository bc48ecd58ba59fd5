// Package ledger keeps the cash balance of every user and the append-only log
// of their transactions.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"stocks-simulator/models"
)

var (
	// ErrNotFound is returned for an unknown user.
	ErrNotFound = errors.New("user not found")
	// ErrStoreUnavailable wraps every persistence failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrUsernameTaken is returned by CreateUser on a duplicate username.
	ErrUsernameTaken = errors.New("username already exists")
)

// Store is the ledger of cash balances and transactions. Writes perform no
// validation; callers check orders before applying them.
type Store interface {
	GetCash(ctx context.Context, userID uint) (decimal.Decimal, error)
	SetCash(ctx context.Context, userID uint, cash decimal.Decimal) error
	AppendTransaction(ctx context.Context, userID uint, symbol string, shares int64, price decimal.Decimal) (models.Transaction, error)
	// GetTransactions returns the user's transactions in insertion order.
	GetTransactions(ctx context.Context, userID uint) ([]models.Transaction, error)
	// GetHoldings returns the summed shares per symbol, keeping only
	// positive totals.
	GetHoldings(ctx context.Context, userID uint) (map[string]int64, error)

	// Atomically runs fn with a Store scoped to one unit of work on userID.
	// Units for the same user never overlap. When fn fails none of its
	// writes are kept.
	Atomically(ctx context.Context, userID uint, fn func(Store) error) error
}

// Accounts registers and finds users.
type Accounts interface {
	CreateUser(ctx context.Context, username, passwordHash string, cash decimal.Decimal) (models.User, error)
	FindUserByUsername(ctx context.Context, username string) (models.User, error)
}
