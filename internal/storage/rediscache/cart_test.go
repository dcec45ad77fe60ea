package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bytebuy/internal/domain/cart"
)

func setupTestCache(t *testing.T) (*CartCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCartCache(client, 15*time.Minute), mr
}

func TestCartCache_SetGet(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	in := &cart.Cart{
		UserID: "u1",
		Items: []cart.LineItem{
			{ProductID: "p1", Name: "Keyboard", Price: decimal.RequireFromString("49.99"), Quantity: 2},
		},
	}
	require.NoError(t, c.Set(ctx, in))

	got, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	require.Len(t, got.Items, 1)
	assert.True(t, decimal.RequireFromString("49.99").Equal(got.Items[0].Price))
	assert.Equal(t, 2, got.Items[0].Quantity)
}

func TestCartCache_Miss(t *testing.T) {
	c, _ := setupTestCache(t)

	got, err := c.Get(context.Background(), "nobody")
	require.ErrorIs(t, err, cart.ErrCacheMiss)
	assert.Nil(t, got)
}

func TestCartCache_InvalidJSON(t *testing.T) {
	c, mr := setupTestCache(t)
	mr.HSet(cacheKey("u1"), "v", "1", "data", `{"userId":`)

	_, err := c.Get(context.Background(), "u1")
	require.ErrorContains(t, err, "unmarshal cart")
}

func TestCartCache_TTL(t *testing.T) {
	c, mr := setupTestCache(t)

	require.NoError(t, c.Set(context.Background(), &cart.Cart{UserID: "u1"}))

	ttl := mr.TTL(cacheKey("u1"))
	assert.GreaterOrEqual(t, ttl, 15*time.Minute)
	assert.Less(t, ttl, 20*time.Minute)
}

func TestCartCache_OlderVersionIgnored(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newer := &cart.Cart{
		UserID:    "u1",
		Items:     []cart.LineItem{{ProductID: "p1", Quantity: 3}},
		UpdatedAt: t0.Add(time.Second),
	}
	older := &cart.Cart{
		UserID:    "u1",
		Items:     []cart.LineItem{{ProductID: "p1", Quantity: 1}},
		UpdatedAt: t0,
	}

	require.NoError(t, c.Set(ctx, newer))
	require.NoError(t, c.Set(ctx, older))

	got, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Items[0].Quantity)

	// Same or later versions replace the entry.
	newest := &cart.Cart{
		UserID:    "u1",
		Items:     []cart.LineItem{{ProductID: "p1", Quantity: 5}},
		UpdatedAt: t0.Add(time.Second),
	}
	require.NoError(t, c.Set(ctx, newest))
	got, err = c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Items[0].Quantity)
}

func TestCartCache_UnversionedFillAfterWrite(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &cart.Cart{
		UserID:    "u1",
		Items:     []cart.LineItem{{ProductID: "p1", Quantity: 2}},
		UpdatedAt: time.Now(),
	}))
	require.NoError(t, c.Set(ctx, &cart.Cart{UserID: "u1"}))

	got, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
}

func TestCartCache_Delete(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &cart.Cart{UserID: "u1"}))
	require.True(t, mr.Exists(cacheKey("u1")))

	require.NoError(t, c.Delete(ctx, "u1"))
	assert.False(t, mr.Exists(cacheKey("u1")))

	// Deleting a missing key is fine.
	assert.NoError(t, c.Delete(ctx, "u1"))
}

func TestCartCache_ServerDown(t *testing.T) {
	c, mr := setupTestCache(t)
	mr.Close()

	_, err := c.Get(context.Background(), "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, cart.ErrCacheMiss)
}
