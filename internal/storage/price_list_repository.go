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

// PriceListRepository stores price list snapshots
type PriceListRepository struct {
	db *DB
}

// NewPriceListRepository creates a new price list repository
func NewPriceListRepository(db *DB) *PriceListRepository {
	return &PriceListRepository{db: db}
}

// FindActive returns the newest snapshot
func (r *PriceListRepository) FindActive(ctx context.Context) (*models.PriceList, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var header struct {
		ID        uuid.UUID `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := r.db.conn.GetContext(ctx, &header,
		`SELECT id, created_at FROM price_lists ORDER BY created_at DESC LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoActivePriceList
		}
		return nil, fmt.Errorf("failed to get price list: %w", err)
	}

	query := `
		SELECT model_name, input_price_per_1m, output_price_per_1m, is_active
		FROM price_entries
		WHERE price_list_id = $1
		ORDER BY position
	`
	var entries []models.PriceEntry
	if err := r.db.conn.SelectContext(ctx, &entries, query, header.ID); err != nil {
		return nil, fmt.Errorf("failed to list price entries: %w", err)
	}

	pl, err := models.RestorePriceList(header.ID, header.CreatedAt, entries)
	if err != nil {
		return nil, fmt.Errorf("stored price list %s is invalid: %w", header.ID, err)
	}
	return pl, nil
}

// Save publishes a new snapshot
func (r *PriceListRepository) Save(ctx context.Context, pl *models.PriceList) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	return r.db.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO price_lists (id, created_at) VALUES ($1, $2)`, pl.ID(), pl.CreatedAt())
		if err != nil {
			return fmt.Errorf("failed to save price list: %w", err)
		}

		query := `
			INSERT INTO price_entries
				(price_list_id, position, model_name, input_price_per_1m, output_price_per_1m, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		for i, e := range pl.Entries() {
			_, err := tx.ExecContext(ctx, query,
				pl.ID(), i, e.ModelName, e.InputPricePer1M, e.OutputPricePer1M, e.IsActive)
			if err != nil {
				return fmt.Errorf("failed to save price entry %s: %w", e.ModelName, err)
			}
		}
		return nil
	})
}
