package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stocks-simulator/models"
	"stocks-simulator/portfolio"
)

type memAccount struct {
	user models.User
	txs  []models.Transaction
}

// MemoryStore is a Store and Accounts kept in process memory. Units of work
// are serialised with one mutex per user.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[uint]*memAccount
	byName   map[string]uint
	locks    map[uint]*sync.Mutex
	lastUser uint
	lastTx   uint
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[uint]*memAccount),
		byName:   make(map[string]uint),
		locks:    make(map[uint]*sync.Mutex),
		now:      time.Now,
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, username, passwordHash string, cash decimal.Decimal) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[username]; ok {
		return models.User{}, fmt.Errorf("%w: %s", ErrUsernameTaken, username)
	}
	s.lastUser++
	u := models.User{Username: username, PasswordHash: passwordHash, Cash: cash}
	u.ID = s.lastUser
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	s.accounts[u.ID] = &memAccount{user: u}
	s.byName[username] = u.ID
	return u, nil
}

func (s *MemoryStore) FindUserByUsername(ctx context.Context, username string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byName[username]
	if !ok {
		return models.User{}, fmt.Errorf("%w: %s", ErrNotFound, username)
	}
	return s.accounts[id].user, nil
}

func (s *MemoryStore) GetCash(ctx context.Context, userID uint) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[userID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: id %d", ErrNotFound, userID)
	}
	return acc.user.Cash, nil
}

func (s *MemoryStore) SetCash(ctx context.Context, userID uint, cash decimal.Decimal) error {
	return s.Atomically(ctx, userID, func(tx Store) error {
		return tx.SetCash(ctx, userID, cash)
	})
}

func (s *MemoryStore) AppendTransaction(ctx context.Context, userID uint, symbol string, shares int64, price decimal.Decimal) (models.Transaction, error) {
	var out models.Transaction
	err := s.Atomically(ctx, userID, func(tx Store) error {
		var err error
		out, err = tx.AppendTransaction(ctx, userID, symbol, shares, price)
		return err
	})
	return out, err
}

func (s *MemoryStore) GetTransactions(ctx context.Context, userID uint) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[userID]
	if !ok {
		return []models.Transaction{}, nil
	}
	return append([]models.Transaction{}, acc.txs...), nil
}

func (s *MemoryStore) GetHoldings(ctx context.Context, userID uint) (map[string]int64, error) {
	txs, err := s.GetTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return portfolio.Holdings(txs), nil
}

func (s *MemoryStore) Atomically(ctx context.Context, userID uint, fn func(Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock, err := s.userLock(userID)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()

	unit := &memUnit{store: s, userID: userID}
	if err := fn(unit); err != nil {
		return err
	}
	unit.commit()
	return nil
}

func (s *MemoryStore) userLock(userID uint) (*sync.Mutex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[userID]; !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, userID)
	}
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock, nil
}

// memUnit stages the writes of one unit of work until commit.
type memUnit struct {
	store   *MemoryStore
	userID  uint
	cash    *decimal.Decimal
	pending []models.Transaction
}

func (u *memUnit) check(userID uint) error {
	if userID != u.userID {
		return fmt.Errorf("ledger: unit of work for user %d cannot touch user %d", u.userID, userID)
	}
	return nil
}

func (u *memUnit) GetCash(ctx context.Context, userID uint) (decimal.Decimal, error) {
	if err := u.check(userID); err != nil {
		return decimal.Zero, err
	}
	if u.cash != nil {
		return *u.cash, nil
	}
	return u.store.GetCash(ctx, userID)
}

func (u *memUnit) SetCash(_ context.Context, userID uint, cash decimal.Decimal) error {
	if err := u.check(userID); err != nil {
		return err
	}
	u.cash = &cash
	return nil
}

func (u *memUnit) AppendTransaction(_ context.Context, userID uint, symbol string, shares int64, price decimal.Decimal) (models.Transaction, error) {
	if err := u.check(userID); err != nil {
		return models.Transaction{}, err
	}
	u.store.mu.Lock()
	u.store.lastTx++
	t := models.Transaction{
		ID:           u.store.lastTx,
		UserID:       userID,
		Symbol:       symbol,
		Shares:       shares,
		Price:        price,
		TransactedAt: u.store.now(),
	}
	u.store.mu.Unlock()

	u.pending = append(u.pending, t)
	return t, nil
}

func (u *memUnit) GetTransactions(ctx context.Context, userID uint) ([]models.Transaction, error) {
	if err := u.check(userID); err != nil {
		return nil, err
	}
	txs, err := u.store.GetTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return append(txs, u.pending...), nil
}

func (u *memUnit) GetHoldings(ctx context.Context, userID uint) (map[string]int64, error) {
	txs, err := u.GetTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return portfolio.Holdings(txs), nil
}

func (u *memUnit) Atomically(_ context.Context, userID uint, fn func(Store) error) error {
	if err := u.check(userID); err != nil {
		return err
	}
	return fn(u)
}

func (u *memUnit) commit() {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	acc := u.store.accounts[u.userID]
	if u.cash != nil {
		acc.user.Cash = *u.cash
		acc.user.UpdatedAt = u.store.now()
	}
	acc.txs = append(acc.txs, u.pending...)
}
