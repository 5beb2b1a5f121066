package models

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxActiveAPIKeys is the number of active keys one account may hold
const MaxActiveAPIKeys = 5

// APIKeyStatus is the state of an API key record
type APIKeyStatus string

const (
	APIKeyActive  APIKeyStatus = "active"
	APIKeyRevoked APIKeyStatus = "revoked"
)

// KeyIssuer creates raw API key secrets and derives the digest that is stored.
// Hash must be deterministic so keys can be looked up by digest.
type KeyIssuer interface {
	NewSecret() (string, error)
	Hash(secret string) string
}

// APIKeyRecord is the stored form of an API key. The raw secret is never kept.
type APIKeyRecord struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	HashedSecret string       `json:"-" db:"key_hash"`
	Status       APIKeyStatus `json:"status" db:"status"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	RevokedAt    *time.Time   `json:"revoked_at,omitempty" db:"revoked_at"`
}

// IsActive reports whether the key may authenticate requests
func (k *APIKeyRecord) IsActive() bool {
	return k.Status == APIKeyActive
}

// UserAccount owns a user's API keys and the cached lock flag. The balance
// itself is derived from the transaction log; CachedBalance is only used when
// the gateway runs with cached balances.
type UserAccount struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	TelegramID    int64          `json:"telegram_id" db:"telegram_id"`
	APIKeys       []APIKeyRecord `json:"api_keys" db:"-"`
	Locked        bool           `json:"locked" db:"locked"`
	CachedBalance int64          `json:"cached_balance" db:"cached_balance"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// NewUserAccount creates an account with one active key and returns the raw
// secret of that key. The secret is not recoverable afterwards.
func NewUserAccount(telegramID int64, issuer KeyIssuer) (*UserAccount, string, error) {
	now := time.Now().UTC()
	account := &UserAccount{
		ID:         uuid.New(),
		TelegramID: telegramID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	raw, err := account.GenerateAPIKey(issuer)
	if err != nil {
		return nil, "", err
	}
	return account, raw, nil
}

// ActiveKeyCount returns the number of active keys
func (a *UserAccount) ActiveKeyCount() int {
	n := 0
	for i := range a.APIKeys {
		if a.APIKeys[i].IsActive() {
			n++
		}
	}
	return n
}

// GenerateAPIKey adds a new active key and returns its raw secret
func (a *UserAccount) GenerateAPIKey(issuer KeyIssuer) (string, error) {
	if a.ActiveKeyCount() >= MaxActiveAPIKeys {
		return "", ErrTooManyActiveKeys
	}

	raw, err := issuer.NewSecret()
	if err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}

	now := time.Now().UTC()
	a.APIKeys = append(a.APIKeys, APIKeyRecord{
		ID:           uuid.New(),
		HashedSecret: issuer.Hash(raw),
		Status:       APIKeyActive,
		CreatedAt:    now,
	})
	a.UpdatedAt = now
	return raw, nil
}

// RevokeAllActive revokes every active key. Calling it again is a no-op.
func (a *UserAccount) RevokeAllActive() {
	now := time.Now().UTC()
	for i := range a.APIKeys {
		if a.APIKeys[i].IsActive() {
			a.APIKeys[i].Status = APIKeyRevoked
			a.APIKeys[i].RevokedAt = &now
			a.UpdatedAt = now
		}
	}
}

// RevokeAPIKey revokes one key by id. Revoking an already revoked key is a no-op.
func (a *UserAccount) RevokeAPIKey(id uuid.UUID) error {
	for i := range a.APIKeys {
		if a.APIKeys[i].ID != id {
			continue
		}
		if a.APIKeys[i].IsActive() {
			now := time.Now().UTC()
			a.APIKeys[i].Status = APIKeyRevoked
			a.APIKeys[i].RevokedAt = &now
			a.UpdatedAt = now
		}
		return nil
	}
	return ErrAPIKeyNotFound
}

// HasActiveKeyHash reports whether hashed belongs to an active key. Every
// active key is compared in constant time.
func (a *UserAccount) HasActiveKeyHash(hashed string) bool {
	found := 0
	for i := range a.APIKeys {
		if !a.APIKeys[i].IsActive() {
			continue
		}
		found |= subtle.ConstantTimeCompare([]byte(a.APIKeys[i].HashedSecret), []byte(hashed))
	}
	return found == 1
}

// IsAPIKeyValid reports whether raw is one of the account's active keys
func (a *UserAccount) IsAPIKeyValid(raw string, issuer KeyIssuer) bool {
	return a.HasActiveKeyHash(issuer.Hash(raw))
}

// Debit subtracts from the cached balance. The balance may go negative, in
// which case the account is locked.
func (a *UserAccount) Debit(amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	a.CachedBalance -= amount
	a.Locked = a.CachedBalance < 0
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Credit adds to the cached balance and unlocks the account once it is no longer negative
func (a *UserAccount) Credit(amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	a.CachedBalance += amount
	a.Locked = a.CachedBalance < 0
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// RefreshLock sets Locked from a freshly derived balance and reports whether it changed
func (a *UserAccount) RefreshLock(balance int64) bool {
	locked := balance < 0
	if locked == a.Locked {
		return false
	}
	a.Locked = locked
	a.UpdatedAt = time.Now().UTC()
	return true
}
