package storage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_billing_gateway/internal/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewDBFromConn(sqlx.NewDb(sqlDB, "postgres"), 0), mock
}

var (
	userCols = []string{"id", "telegram_id", "locked", "cached_balance", "created_at", "updated_at"}
	keyCols  = []string{"id", "key_hash", "status", "created_at", "revoked_at"}
	txCols   = []string{"id", "user_id", "type", "status", "amount", "cost", "model_name", "prompt_tokens", "completion_tokens", "created_at"}
)

func TestUserRepository_FindByAPIKeyHash(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewUserRepository()

	userID := uuid.New()
	activeKey := uuid.New()
	revokedKey := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("JOIN api_keys k ON k.user_id = u.id WHERE k.key_hash = $1")).
		WithArgs("digest-1").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(userID.String(), int64(42), false, int64(0), now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM api_keys WHERE user_id = $1")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(keyCols).
			AddRow(revokedKey.String(), "digest-0", "revoked", now, now).
			AddRow(activeKey.String(), "digest-1", "active", now, nil))

	account, err := repo.FindByAPIKeyHash(context.Background(), "digest-1")
	require.NoError(t, err)
	assert.Equal(t, userID, account.ID)
	assert.Equal(t, int64(42), account.TelegramID)
	require.Len(t, account.APIKeys, 2)
	assert.Equal(t, models.APIKeyRevoked, account.APIKeys[0].Status)
	assert.NotNil(t, account.APIKeys[0].RevokedAt)
	assert.True(t, account.HasActiveKeyHash("digest-1"))
	assert.False(t, account.HasActiveKeyHash("digest-0"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewUserRepository()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Save(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewUserRepository()

	account, _, err := models.NewUserAccount(42, &plainIssuer{})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), int64(42), false, int64(0), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO api_keys")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), account.APIKeys[0].HashedSecret, "active", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Save(context.Background(), account))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SaveBalance(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewUserRepository()

	account, _, err := models.NewUserAccount(42, &plainIssuer{})
	require.NoError(t, err)
	require.NoError(t, account.Debit(30))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET locked = $2, cached_balance = $3, updated_at = $4 WHERE id = $1")).
		WithArgs(sqlmock.AnyArg(), true, int64(-30), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveBalance(context.Background(), account))
	assert.NoError(t, mock.ExpectationsWereMet(), "api_keys must not be written")
}

func TestUserRepository_SaveBalance_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewUserRepository()

	account, _, err := models.NewUserAccount(42, &plainIssuer{})
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.SaveBalance(context.Background(), account), ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Save_DuplicateTelegramID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewUserRepository()

	account, _, err := models.NewUserAccount(42, &plainIssuer{})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_telegram_id_key"})
	mock.ExpectRollback()

	err = repo.Save(context.Background(), account)
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_Append(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewTransactionRepository()

	userID := uuid.New()
	tx, err := models.NewUsageTransaction(userID,
		models.Usage{PromptTokens: 10, CompletionTokens: 20, ModelName: "gpt-4o"}, -50, models.TransactionCompleted)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE id = $1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(userID.String()))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "usage", "completed", int64(0), int64(-50),
			"gpt-4o", int64(10), int64(20), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Append(context.Background(), tx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_Append_UnknownUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewTransactionRepository()

	tx, err := models.NewTopUp(uuid.New(), 100, models.TransactionCompleted)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	assert.ErrorIs(t, repo.Append(context.Background(), tx), ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_ListByUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewTransactionRepository()

	userID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM transactions WHERE user_id = $1 ORDER BY created_at, id")).
		WillReturnRows(sqlmock.NewRows(txCols).
			AddRow(uuid.NewString(), userID.String(), "top_up", "completed", int64(500), int64(0), nil, nil, nil, now).
			AddRow(uuid.NewString(), userID.String(), "usage", "completed", int64(0), int64(-50), "gpt-4o", int64(10), int64(20), now))

	txs, err := repo.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, models.TransactionTopUp, txs[0].Type)
	assert.Equal(t, int64(500), txs[0].Amount)
	assert.Nil(t, txs[0].Usage)

	assert.Equal(t, models.TransactionUsage, txs[1].Type)
	require.NotNil(t, txs[1].Usage)
	assert.Equal(t, "gpt-4o", txs[1].Usage.ModelName)
	assert.Equal(t, uint64(20), txs[1].Usage.CompletionTokens)
	assert.Equal(t, int64(-50), txs[1].Cost)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceListRepository_FindActive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewPriceListRepository()

	listID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM price_lists ORDER BY created_at DESC LIMIT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(listID.String(), now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM price_entries WHERE price_list_id = $1 ORDER BY position")).
		WillReturnRows(sqlmock.NewRows([]string{"model_name", "input_price_per_1m", "output_price_per_1m", "is_active"}).
			AddRow("gpt-4o", int64(1000000), int64(2000000), true).
			AddRow("legacy", int64(1), int64(1), false))

	pl, err := repo.FindActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, listID, pl.ID())
	assert.Len(t, pl.Entries(), 2)
	assert.Len(t, pl.ActivePrices(), 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceListRepository_FindActive_None(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewPriceListRepository()

	mock.ExpectQuery(regexp.QuoteMeta("FROM price_lists")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))

	_, err := repo.FindActive(context.Background())
	assert.ErrorIs(t, err, ErrNoActivePriceList)
}

func TestPriceListRepository_Save(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewPriceListRepository()

	pl, err := models.NewPriceList([]models.PriceEntry{
		{ModelName: "a", InputPricePer1M: 1, OutputPricePer1M: 2, IsActive: true},
		{ModelName: "b", InputPricePer1M: 3, OutputPricePer1M: 4, IsActive: false},
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO price_lists")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO price_entries")).
		WithArgs(sqlmock.AnyArg(), int64(0), "a", int64(1), int64(2), true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO price_entries")).
		WithArgs(sqlmock.AnyArg(), int64(1), "b", int64(3), int64(4), false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Save(context.Background(), pl))
	assert.NoError(t, mock.ExpectationsWereMet())
}
