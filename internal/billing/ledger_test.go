package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_billing_gateway/internal/auth"
	"llm_billing_gateway/internal/models"
	"llm_billing_gateway/internal/storage"
)

func TestLedger_ApplyLeavesKeysAlone(t *testing.T) {
	for _, mode := range []BalanceMode{BalanceCached, BalanceDerived} {
		t.Run(string(mode), func(t *testing.T) {
			ctx := context.Background()
			users := storage.NewMemoryUserStore()
			txs := storage.NewMemoryTransactionStore()
			prices := storage.NewMemoryPriceListStore()
			require.NoError(t, prices.Save(ctx, testPriceList(t, 1_000_000, 2_000_000)))
			ledger := NewLedger(mode, users, txs, prices)
			issuer := auth.NewAPIKeyIssuer([]byte("pepper"))

			account, oldKey, err := models.NewUserAccount(1, issuer)
			require.NoError(t, err)
			require.NoError(t, users.Save(ctx, account))

			// copy loaded before the keys change underneath it
			stale, err := users.FindByID(ctx, account.ID)
			require.NoError(t, err)

			current, err := users.FindByID(ctx, account.ID)
			require.NoError(t, err)
			current.RevokeAllActive()
			newKey, err := current.GenerateAPIKey(issuer)
			require.NoError(t, err)
			require.NoError(t, users.Save(ctx, current))

			// a usage on an empty account locks it in both modes
			usage, err := models.NewUsage(10, 20, "gpt-4o")
			require.NoError(t, err)
			tx, err := models.NewUsageTransaction(account.ID, usage, -50, models.TransactionCompleted)
			require.NoError(t, err)
			require.NoError(t, ledger.Append(ctx, tx))

			balance, err := ledger.Apply(ctx, stale, tx)
			require.NoError(t, err)
			assert.Equal(t, int64(-50), balance)

			loaded, err := users.FindByID(ctx, account.ID)
			require.NoError(t, err)
			assert.True(t, loaded.Locked)
			assert.False(t, loaded.IsAPIKeyValid(oldKey, issuer))
			assert.True(t, loaded.IsAPIKeyValid(newKey, issuer))
		})
	}
}
