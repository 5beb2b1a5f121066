package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTopUp(t *testing.T) {
	userID := uuid.New()

	tx, err := NewTopUp(userID, 500, TransactionCompleted)
	require.NoError(t, err)
	assert.Equal(t, TransactionTopUp, tx.Type)
	assert.Equal(t, int64(500), tx.Amount)
	assert.Equal(t, userID, tx.UserID)
	assert.True(t, tx.IsCompleted())

	_, err = NewTopUp(userID, 0, TransactionCompleted)
	assert.ErrorIs(t, err, ErrNonPositiveAmount)

	_, err = NewTopUp(userID, -10, TransactionCompleted)
	assert.ErrorIs(t, err, ErrNonPositiveAmount)
}

func TestNewUsageTransaction(t *testing.T) {
	usage, err := NewUsage(10, 20, "gpt-4o")
	require.NoError(t, err)

	tx, err := NewUsageTransaction(uuid.New(), usage, -50, TransactionCompleted)
	require.NoError(t, err)
	assert.Equal(t, TransactionUsage, tx.Type)
	assert.Equal(t, int64(-50), tx.Cost)
	require.NotNil(t, tx.Usage)
	assert.Equal(t, uint64(30), tx.Usage.TotalTokens())

	_, err = NewUsageTransaction(uuid.New(), usage, 0, TransactionCompleted)
	assert.NoError(t, err, "unpriced usage is recorded at zero cost")

	_, err = NewUsageTransaction(uuid.New(), usage, 1, TransactionCompleted)
	assert.ErrorIs(t, err, ErrPositiveUsageCost)

	_, err = NewUsageTransaction(uuid.New(), Usage{}, -1, TransactionCompleted)
	assert.ErrorIs(t, err, ErrEmptyModelName)
}

func TestTransaction_StatusTransitions(t *testing.T) {
	tx, err := NewTopUp(uuid.New(), 1, TransactionPending)
	require.NoError(t, err)

	require.NoError(t, tx.Complete())
	assert.Equal(t, TransactionCompleted, tx.Status)
	assert.ErrorIs(t, tx.Complete(), ErrInvalidTransition)
	assert.ErrorIs(t, tx.Fail(), ErrInvalidTransition)

	tx2, err := NewTopUp(uuid.New(), 1, TransactionPending)
	require.NoError(t, err)
	require.NoError(t, tx2.Fail())
	assert.Equal(t, TransactionFailed, tx2.Status)
	assert.False(t, tx2.IsCompleted())
	assert.ErrorIs(t, tx2.Complete(), ErrInvalidTransition)
}

func TestNewUsage_RequiresModel(t *testing.T) {
	_, err := NewUsage(1, 1, "")
	assert.ErrorIs(t, err, ErrEmptyModelName)
}
