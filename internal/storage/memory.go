package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"llm_billing_gateway/internal/models"
)

// MemoryUserStore keeps accounts in process memory. Returned accounts are
// copies, so callers must Save to publish changes.
type MemoryUserStore struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]*models.UserAccount
	byHash     map[string]uuid.UUID
	byTelegram map[int64]uuid.UUID
}

// NewMemoryUserStore creates a new in-memory user store
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:       make(map[uuid.UUID]*models.UserAccount),
		byHash:     make(map[string]uuid.UUID),
		byTelegram: make(map[int64]uuid.UUID),
	}
}

// FindByAPIKeyHash returns the owner of a key digest
func (s *MemoryUserStore) FindByAPIKeyHash(ctx context.Context, hash string) (*models.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[hash]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyAccount(s.byID[id]), nil
}

// FindByID returns an account by id
func (s *MemoryUserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyAccount(account), nil
}

// FindByTelegramID returns an account by telegram id
func (s *MemoryUserStore) FindByTelegramID(ctx context.Context, telegramID int64) (*models.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byTelegram[telegramID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyAccount(s.byID[id]), nil
}

// Save inserts or updates an account
func (s *MemoryUserStore) Save(ctx context.Context, account *models.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byTelegram[account.TelegramID]; ok && owner != account.ID {
		return ErrUserAlreadyExists
	}

	stored := copyAccount(account)
	s.byID[stored.ID] = stored
	s.byTelegram[stored.TelegramID] = stored.ID
	for _, k := range stored.APIKeys {
		s.byHash[k.HashedSecret] = stored.ID
	}
	return nil
}

// SaveBalance updates the balance and lock flag of a stored account
func (s *MemoryUserStore) SaveBalance(ctx context.Context, account *models.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[account.ID]
	if !ok {
		return ErrUserNotFound
	}
	stored.CachedBalance = account.CachedBalance
	stored.Locked = account.Locked
	stored.UpdatedAt = account.UpdatedAt
	return nil
}

func copyAccount(a *models.UserAccount) *models.UserAccount {
	c := *a
	c.APIKeys = make([]models.APIKeyRecord, len(a.APIKeys))
	copy(c.APIKeys, a.APIKeys)
	return &c
}

// MemoryPriceListStore keeps published price lists in memory
type MemoryPriceListStore struct {
	mu     sync.RWMutex
	active *models.PriceList
}

// NewMemoryPriceListStore creates a new in-memory price list store
func NewMemoryPriceListStore() *MemoryPriceListStore {
	return &MemoryPriceListStore{}
}

// FindActive returns the most recently saved price list
func (s *MemoryPriceListStore) FindActive(ctx context.Context) (*models.PriceList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == nil {
		return nil, ErrNoActivePriceList
	}
	return s.active, nil
}

// Save publishes a new snapshot, which becomes active
func (s *MemoryPriceListStore) Save(ctx context.Context, priceList *models.PriceList) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = priceList
	return nil
}

// MemoryTransactionStore is an in-memory append-only ledger
type MemoryTransactionStore struct {
	mu     sync.RWMutex
	byUser map[uuid.UUID][]models.Transaction
	ids    map[uuid.UUID]struct{}
}

// NewMemoryTransactionStore creates a new in-memory ledger
func NewMemoryTransactionStore() *MemoryTransactionStore {
	return &MemoryTransactionStore{
		byUser: make(map[uuid.UUID][]models.Transaction),
		ids:    make(map[uuid.UUID]struct{}),
	}
}

// Append records a transaction
func (s *MemoryTransactionStore) Append(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.ids[tx.ID]; dup {
		return ErrDuplicateTransaction
	}
	s.ids[tx.ID] = struct{}{}
	s.byUser[tx.UserID] = append(s.byUser[tx.UserID], copyTransaction(tx))
	return nil
}

// ListByUser returns copies of the user's transactions oldest first
func (s *MemoryTransactionStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.byUser[userID]
	out := make([]*models.Transaction, len(stored))
	for i := range stored {
		c := copyTransaction(&stored[i])
		out[i] = &c
	}
	return out, nil
}

func copyTransaction(tx *models.Transaction) models.Transaction {
	c := *tx
	if tx.Usage != nil {
		u := *tx.Usage
		c.Usage = &u
	}
	return c
}
