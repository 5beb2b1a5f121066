package models

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterIssuer struct {
	n int
}

func (c *counterIssuer) NewSecret() (string, error) {
	c.n++
	return fmt.Sprintf("sk-test-%d", c.n), nil
}

func (c *counterIssuer) Hash(secret string) string {
	return "h:" + secret
}

func TestNewUserAccount(t *testing.T) {
	issuer := &counterIssuer{}

	account, raw, err := NewUserAccount(42, issuer)
	require.NoError(t, err)
	assert.Equal(t, int64(42), account.TelegramID)
	assert.Equal(t, "sk-test-1", raw)
	require.Len(t, account.APIKeys, 1)
	assert.Equal(t, "h:sk-test-1", account.APIKeys[0].HashedSecret)
	assert.NotEqual(t, raw, account.APIKeys[0].HashedSecret, "raw secret must not be stored")
	assert.True(t, account.IsAPIKeyValid(raw, issuer))
	assert.False(t, account.Locked)
}

func TestUserAccount_MaxActiveKeys(t *testing.T) {
	issuer := &counterIssuer{}
	account, _, err := NewUserAccount(1, issuer)
	require.NoError(t, err)

	for i := 1; i < MaxActiveAPIKeys; i++ {
		_, err := account.GenerateAPIKey(issuer)
		require.NoError(t, err)
	}
	assert.Equal(t, MaxActiveAPIKeys, account.ActiveKeyCount())

	_, err = account.GenerateAPIKey(issuer)
	assert.ErrorIs(t, err, ErrTooManyActiveKeys)

	// revoking frees a slot
	require.NoError(t, account.RevokeAPIKey(account.APIKeys[0].ID))
	_, err = account.GenerateAPIKey(issuer)
	assert.NoError(t, err)
}

func TestUserAccount_RevokeAllActiveIsIdempotent(t *testing.T) {
	issuer := &counterIssuer{}
	account, raw, err := NewUserAccount(1, issuer)
	require.NoError(t, err)
	raw2, err := account.GenerateAPIKey(issuer)
	require.NoError(t, err)

	account.RevokeAllActive()
	assert.Equal(t, 0, account.ActiveKeyCount())
	assert.False(t, account.IsAPIKeyValid(raw, issuer))
	assert.False(t, account.IsAPIKeyValid(raw2, issuer))

	firstRevokedAt := *account.APIKeys[0].RevokedAt
	account.RevokeAllActive()
	assert.Equal(t, 0, account.ActiveKeyCount())
	assert.Equal(t, firstRevokedAt, *account.APIKeys[0].RevokedAt)
	assert.Len(t, account.APIKeys, 2)
}

func TestUserAccount_RevokeUnknownKey(t *testing.T) {
	account, _, err := NewUserAccount(1, &counterIssuer{})
	require.NoError(t, err)

	assert.ErrorIs(t, account.RevokeAPIKey(uuid.New()), ErrAPIKeyNotFound)
}

func TestUserAccount_IsAPIKeyValid(t *testing.T) {
	issuer := &counterIssuer{}
	account, raw, err := NewUserAccount(1, issuer)
	require.NoError(t, err)

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"active key", raw, true},
		{"unknown key", "sk-other", false},
		{"empty key", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := account.IsAPIKeyValid(tt.key, issuer); got != tt.want {
				t.Errorf("IsAPIKeyValid(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestUserAccount_SoftOverdraft(t *testing.T) {
	account, _, err := NewUserAccount(1, &counterIssuer{})
	require.NoError(t, err)

	require.NoError(t, account.Credit(100))
	assert.Equal(t, int64(100), account.CachedBalance)

	require.NoError(t, account.Debit(150))
	assert.Equal(t, int64(-50), account.CachedBalance)
	assert.True(t, account.Locked)

	require.NoError(t, account.Credit(50))
	assert.Equal(t, int64(0), account.CachedBalance)
	assert.False(t, account.Locked)

	assert.ErrorIs(t, account.Debit(0), ErrNonPositiveAmount)
	assert.ErrorIs(t, account.Credit(-1), ErrNonPositiveAmount)
}

func TestUserAccount_RefreshLock(t *testing.T) {
	account, _, err := NewUserAccount(1, &counterIssuer{})
	require.NoError(t, err)

	assert.False(t, account.RefreshLock(10))
	assert.True(t, account.RefreshLock(-1))
	assert.True(t, account.Locked)
	assert.False(t, account.RefreshLock(-5))
	assert.True(t, account.RefreshLock(0))
	assert.False(t, account.Locked)
}
