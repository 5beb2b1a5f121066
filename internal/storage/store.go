package storage

import (
	"context"

	"github.com/google/uuid"

	"llm_billing_gateway/internal/models"
)

// UserStore persists accounts together with their API key records
type UserStore interface {
	// FindByAPIKeyHash returns the owner of a key digest, whatever the key status
	FindByAPIKeyHash(ctx context.Context, hash string) (*models.UserAccount, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.UserAccount, error)
	FindByTelegramID(ctx context.Context, telegramID int64) (*models.UserAccount, error)

	// Save inserts or updates the account and its keys
	Save(ctx context.Context, account *models.UserAccount) error

	// SaveBalance writes only the running balance and lock flag; keys are left as stored
	SaveBalance(ctx context.Context, account *models.UserAccount) error
}

// PriceListStore holds published price list snapshots. The newest one is active.
type PriceListStore interface {
	FindActive(ctx context.Context) (*models.PriceList, error)
	Save(ctx context.Context, priceList *models.PriceList) error
}

// TransactionStore is the append-only ledger
type TransactionStore interface {
	Append(ctx context.Context, tx *models.Transaction) error

	// ListByUser returns the user's transactions oldest first
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Transaction, error)
}
