package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_billing_gateway/internal/models"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewLRUCache[int](2, time.Minute)

	cache.Set("a", 1)
	cache.Set("b", 2)
	_, _ = cache.Get("a")
	cache.Set("c", 3)

	_, ok := cache.Get("b")
	assert.False(t, ok, "b was least recently used")

	v, ok := cache.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, cache.Len())
}

func TestLRUCache_Expiry(t *testing.T) {
	cache := NewLRUCache[string](4, time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set("k", "v")
	_, ok := cache.Get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = cache.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestLRUCache_UpdateAndDelete(t *testing.T) {
	cache := NewLRUCache[int](2, time.Minute)
	cache.Set("a", 1)
	cache.Set("a", 2)

	v, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	cache.Delete("a")
	_, ok = cache.Get("a")
	assert.False(t, ok)
}

type countingPriceStore struct {
	MemoryPriceListStore
	finds int
}

func (c *countingPriceStore) FindActive(ctx context.Context) (*models.PriceList, error) {
	c.finds++
	return c.MemoryPriceListStore.FindActive(ctx)
}

func TestCachedPriceListStore(t *testing.T) {
	ctx := context.Background()
	inner := &countingPriceStore{}
	store := NewCachedPriceListStore(inner, time.Minute)

	_, err := store.FindActive(ctx)
	assert.ErrorIs(t, err, ErrNoActivePriceList)

	first, err := models.NewPriceList([]models.PriceEntry{{ModelName: "a", IsActive: true}})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, first))

	for i := 0; i < 3; i++ {
		pl, err := store.FindActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.ID(), pl.ID())
	}
	assert.Equal(t, 2, inner.finds, "one miss before save, one load after")

	second, err := models.NewPriceList([]models.PriceEntry{{ModelName: "b", IsActive: true}})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, second))

	pl, err := store.FindActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID(), pl.ID(), "save invalidates the cached snapshot")
}
