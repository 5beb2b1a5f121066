package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"llm_billing_gateway/internal/models"
)

const userColumns = `id, telegram_id, locked, cached_balance, created_at, updated_at`

// UserRepository handles account and API key database operations
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByAPIKeyHash returns the owner of a key digest
func (r *UserRepository) FindByAPIKeyHash(ctx context.Context, hash string) (*models.UserAccount, error) {
	query := `
		SELECT u.id, u.telegram_id, u.locked, u.cached_balance, u.created_at, u.updated_at
		FROM users u
		JOIN api_keys k ON k.user_id = u.id
		WHERE k.key_hash = $1
	`
	return r.findOne(ctx, query, hash)
}

// FindByID returns an account by id
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.UserAccount, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.findOne(ctx, query, id)
}

// FindByTelegramID returns an account by telegram id
func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*models.UserAccount, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	return r.findOne(ctx, query, telegramID)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg interface{}) (*models.UserAccount, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var account models.UserAccount
	if err := r.db.conn.GetContext(ctx, &account, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	keys, err := r.listKeys(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	account.APIKeys = keys
	return &account, nil
}

func (r *UserRepository) listKeys(ctx context.Context, userID uuid.UUID) ([]models.APIKeyRecord, error) {
	query := `
		SELECT id, key_hash, status, created_at, revoked_at
		FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at, id
	`

	var keys []models.APIKeyRecord
	if err := r.db.conn.SelectContext(ctx, &keys, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	return keys, nil
}

// Save inserts or updates the account row and upserts every key record
func (r *UserRepository) Save(ctx context.Context, account *models.UserAccount) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	return r.db.inTx(ctx, func(tx *sqlx.Tx) error {
		userQuery := `
			INSERT INTO users (id, telegram_id, locked, cached_balance, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE
			SET locked = EXCLUDED.locked,
			    cached_balance = EXCLUDED.cached_balance,
			    updated_at = EXCLUDED.updated_at
		`
		_, err := tx.ExecContext(ctx, userQuery,
			account.ID, account.TelegramID, account.Locked, account.CachedBalance,
			account.CreatedAt, account.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err, "users_telegram_id_key") {
				return ErrUserAlreadyExists
			}
			return fmt.Errorf("failed to save user: %w", err)
		}

		keyQuery := `
			INSERT INTO api_keys (id, user_id, key_hash, status, created_at, revoked_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE
			SET status = EXCLUDED.status,
			    revoked_at = EXCLUDED.revoked_at
		`
		for _, k := range account.APIKeys {
			_, err := tx.ExecContext(ctx, keyQuery,
				k.ID, account.ID, k.HashedSecret, k.Status, k.CreatedAt, k.RevokedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to save API key: %w", err)
			}
		}
		return nil
	})
}

// SaveBalance updates the balance columns of an existing account row
func (r *UserRepository) SaveBalance(ctx context.Context, account *models.UserAccount) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE users
		SET locked = $2, cached_balance = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := r.db.conn.ExecContext(ctx, query,
		account.ID, account.Locked, account.CachedBalance, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}
