package billing

import (
	"context"
	"fmt"

	"llm_billing_gateway/internal/apperr"
	"llm_billing_gateway/internal/models"
	"llm_billing_gateway/internal/storage"
)

// BalanceMode selects where the authoritative balance is read from
type BalanceMode string

const (
	// BalanceDerived recomputes the balance from the log on every read
	BalanceDerived BalanceMode = "derived"

	// BalanceCached keeps a running balance on the account, updated on every append
	BalanceCached BalanceMode = "cached"
)

// ParseBalanceMode validates a configured mode
func ParseBalanceMode(s string) (BalanceMode, error) {
	switch m := BalanceMode(s); m {
	case BalanceDerived, BalanceCached:
		return m, nil
	default:
		return "", fmt.Errorf("unknown balance mode %q", s)
	}
}

// Ledger owns every balance mutation. Callers hold Lock for the user across
// read-check-append so there is at most one in-flight mutation per user.
type Ledger struct {
	mode         BalanceMode
	users        storage.UserStore
	transactions storage.TransactionStore
	balances     *BalanceCalculator
	locker       *KeyedLocker
}

// NewLedger creates a new ledger in the given balance mode
func NewLedger(mode BalanceMode, users storage.UserStore, transactions storage.TransactionStore, prices storage.PriceListStore) *Ledger {
	return &Ledger{
		mode:         mode,
		users:        users,
		transactions: transactions,
		balances:     NewBalanceCalculator(transactions, prices),
		locker:       NewKeyedLocker(),
	}
}

// Mode returns the balance mode
func (l *Ledger) Mode() BalanceMode {
	return l.mode
}

// Lock serializes ledger work for one user
func (l *Ledger) Lock(ctx context.Context, account *models.UserAccount) (func(), error) {
	unlock, err := l.locker.Lock(ctx, account.ID.String())
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to acquire user lock")
	}
	return unlock, nil
}

// Balance returns the user's current balance. In cached mode account must
// have been loaded after Lock.
func (l *Ledger) Balance(ctx context.Context, account *models.UserAccount) (int64, error) {
	if l.mode == BalanceCached {
		return account.CachedBalance, nil
	}
	return l.balances.CalculateFor(ctx, account.ID)
}

// Transactions returns the user's log oldest first
func (l *Ledger) Transactions(ctx context.Context, account *models.UserAccount) ([]*models.Transaction, error) {
	txs, err := l.transactions.ListByUser(ctx, account.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to load transactions")
	}
	return txs, nil
}

// Append writes tx to the log
func (l *Ledger) Append(ctx context.Context, tx *models.Transaction) error {
	if err := l.transactions.Append(ctx, tx); err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// Apply brings the account in line with an appended transaction and returns
// the resulting balance. Derived mode only refreshes the lock flag; cached
// mode moves the running balance.
func (l *Ledger) Apply(ctx context.Context, account *models.UserAccount, tx *models.Transaction) (int64, error) {
	if l.mode == BalanceCached {
		var err error
		switch {
		case tx.Type == models.TransactionTopUp:
			err = account.Credit(tx.Amount)
		case tx.Cost < 0:
			err = account.Debit(-tx.Cost)
		}
		if err != nil {
			return account.CachedBalance, fmt.Errorf("failed to apply transaction: %w", err)
		}
		if err := l.users.SaveBalance(ctx, account); err != nil {
			return account.CachedBalance, fmt.Errorf("failed to save balance: %w", err)
		}
		return account.CachedBalance, nil
	}

	balance, err := l.balances.CalculateFor(ctx, account.ID)
	if err != nil {
		return 0, err
	}
	if account.RefreshLock(balance) {
		if err := l.users.SaveBalance(ctx, account); err != nil {
			return balance, fmt.Errorf("failed to save lock flag: %w", err)
		}
	}
	return balance, nil
}
