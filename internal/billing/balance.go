package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"llm_billing_gateway/internal/apperr"
	"llm_billing_gateway/internal/models"
	"llm_billing_gateway/internal/storage"
)

// BalanceCalculator derives a balance from the transaction log. Usage is
// re-priced against the currently active price list, so a price change
// applies retroactively to every derived balance.
type BalanceCalculator struct {
	transactions storage.TransactionStore
	prices       storage.PriceListStore
	costs        CostCalculator
}

// NewBalanceCalculator creates a new balance calculator
func NewBalanceCalculator(transactions storage.TransactionStore, prices storage.PriceListStore) *BalanceCalculator {
	return &BalanceCalculator{transactions: transactions, prices: prices}
}

// CalculateFor folds the user's completed transactions into a balance
func (b *BalanceCalculator) CalculateFor(ctx context.Context, userID uuid.UUID) (int64, error) {
	txs, err := b.transactions.ListByUser(ctx, userID)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "failed to load transactions")
	}

	priceList, err := b.prices.FindActive(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNoActivePriceList) {
			return 0, apperr.Wrap(apperr.Internal, err, "no active price list configured")
		}
		return 0, apperr.Wrap(apperr.Internal, err, "failed to load price list")
	}

	return b.Fold(txs, priceList), nil
}

// Fold sums completed transactions; pending and failed ones are ignored
func (b *BalanceCalculator) Fold(txs []*models.Transaction, priceList *models.PriceList) int64 {
	var balance int64
	for _, tx := range txs {
		if !tx.IsCompleted() {
			continue
		}
		switch tx.Type {
		case models.TransactionTopUp:
			balance += tx.Amount
		case models.TransactionUsage:
			if tx.Usage == nil {
				continue
			}
			cost, _ := b.costs.Calculate(*tx.Usage, priceList)
			balance += cost
		}
	}
	return balance
}
