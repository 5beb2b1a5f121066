package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"llm_billing_gateway/internal/models"
)

// TransactionRepository is the Postgres ledger
type TransactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

type transactionRow struct {
	ID               uuid.UUID      `db:"id"`
	UserID           uuid.UUID      `db:"user_id"`
	Type             string         `db:"type"`
	Status           string         `db:"status"`
	Amount           int64          `db:"amount"`
	Cost             int64          `db:"cost"`
	ModelName        sql.NullString `db:"model_name"`
	PromptTokens     sql.NullInt64  `db:"prompt_tokens"`
	CompletionTokens sql.NullInt64  `db:"completion_tokens"`
	CreatedAt        time.Time      `db:"created_at"`
}

func (row transactionRow) toModel() *models.Transaction {
	tx := &models.Transaction{
		ID:        row.ID,
		UserID:    row.UserID,
		Timestamp: row.CreatedAt,
		Status:    models.TransactionStatus(row.Status),
		Type:      models.TransactionType(row.Type),
		Amount:    row.Amount,
		Cost:      row.Cost,
	}
	if tx.Type == models.TransactionUsage {
		tx.Usage = &models.Usage{
			PromptTokens:     uint64(row.PromptTokens.Int64),
			CompletionTokens: uint64(row.CompletionTokens.Int64),
			ModelName:        row.ModelName.String,
		}
	}
	return tx
}

// Append records a transaction. The owner's row is locked for the duration
// of the insert only; the balance check that precedes it is serialized by the
// in-process ledger lock, not by the database.
func (r *TransactionRepository) Append(ctx context.Context, t *models.Transaction) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var modelName sql.NullString
	var prompt, completion sql.NullInt64
	if t.Usage != nil {
		modelName = sql.NullString{String: t.Usage.ModelName, Valid: true}
		prompt = sql.NullInt64{Int64: int64(t.Usage.PromptTokens), Valid: true}
		completion = sql.NullInt64{Int64: int64(t.Usage.CompletionTokens), Valid: true}
	}

	return r.db.inTx(ctx, func(tx *sqlx.Tx) error {
		var locked uuid.UUID
		err := tx.GetContext(ctx, &locked, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, t.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to lock user: %w", err)
		}

		query := `
			INSERT INTO transactions
				(id, user_id, type, status, amount, cost, model_name, prompt_tokens, completion_tokens, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err = tx.ExecContext(ctx, query,
			t.ID, t.UserID, string(t.Type), string(t.Status), t.Amount, t.Cost,
			modelName, prompt, completion, t.Timestamp,
		)
		if err != nil {
			if isUniqueViolation(err, "transactions_pkey") {
				return ErrDuplicateTransaction
			}
			return fmt.Errorf("failed to append transaction: %w", err)
		}
		return nil
	})
}

// ListByUser returns the user's transactions oldest first
func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Transaction, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, type, status, amount, cost, model_name,
		       prompt_tokens, completion_tokens, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at, id
	`

	var rows []transactionRow
	if err := r.db.conn.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	out := make([]*models.Transaction, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}
