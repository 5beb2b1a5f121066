package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus is the lifecycle state of a ledger entry
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// TransactionType tells which payload a transaction carries
type TransactionType string

const (
	TransactionTopUp TransactionType = "top_up"
	TransactionUsage TransactionType = "usage"
)

// Transaction is one append-only ledger entry. Only completed entries count
// toward a balance.
type Transaction struct {
	ID        uuid.UUID         `json:"id" db:"id"`
	UserID    uuid.UUID         `json:"user_id" db:"user_id"`
	Timestamp time.Time         `json:"timestamp" db:"created_at"`
	Status    TransactionStatus `json:"status" db:"status"`
	Type      TransactionType   `json:"type" db:"type"`

	// Amount is set for top-ups and is always positive
	Amount int64 `json:"amount,omitempty" db:"amount"`

	// Usage and Cost are set for usage entries; Cost is <= 0
	Usage *Usage `json:"usage,omitempty" db:"-"`
	Cost  int64  `json:"cost,omitempty" db:"cost"`
}

// NewTopUp creates a top-up transaction
func NewTopUp(userID uuid.UUID, amount int64, status TransactionStatus) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}
	return &Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Status:    status,
		Type:      TransactionTopUp,
		Amount:    amount,
	}, nil
}

// NewUsageTransaction creates a usage transaction with the cost recorded at billing time
func NewUsageTransaction(userID uuid.UUID, usage Usage, cost int64, status TransactionStatus) (*Transaction, error) {
	if usage.ModelName == "" {
		return nil, ErrEmptyModelName
	}
	if cost > 0 {
		return nil, ErrPositiveUsageCost
	}
	u := usage
	return &Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Status:    status,
		Type:      TransactionUsage,
		Usage:     &u,
		Cost:      cost,
	}, nil
}

// Complete moves a pending transaction to completed
func (t *Transaction) Complete() error {
	if t.Status != TransactionPending {
		return ErrInvalidTransition
	}
	t.Status = TransactionCompleted
	return nil
}

// Fail moves a pending transaction to failed
func (t *Transaction) Fail() error {
	if t.Status != TransactionPending {
		return ErrInvalidTransition
	}
	t.Status = TransactionFailed
	return nil
}

// IsCompleted reports whether the transaction counts toward a balance
func (t *Transaction) IsCompleted() bool {
	return t.Status == TransactionCompleted
}
