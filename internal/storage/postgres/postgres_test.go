package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/xenking/bytebuy/internal/domain/auth"
	"github.com/xenking/bytebuy/internal/domain/order"
	"github.com/xenking/bytebuy/internal/domain/product"
)

func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:17-alpine",
		tcpostgres.WithDatabase("bytebuy"),
		tcpostgres.WithUsername("bytebuy"),
		tcpostgres.WithPassword("bytebuy"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestPostgres(t *testing.T) {
	pool := setupTestPool(t)

	t.Run("Products", func(t *testing.T) {
		ctx := context.Background()
		repo := NewProductRepository(pool)

		require.NoError(t, repo.Upsert(ctx, product.Product{
			ID: "b", Name: "Mouse", Price: decimal.RequireFromString("34.50"), Stock: 7, Rating: 4.2,
		}))
		require.NoError(t, repo.Upsert(ctx, product.Product{
			ID: "a", Name: "Keyboard", Price: decimal.RequireFromString("89.99"), Stock: 0,
		}))

		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "a", list[0].ID)

		p, err := repo.GetByID(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, "Mouse", p.Name)
		assert.True(t, decimal.RequireFromString("34.5").Equal(p.Price))
		assert.Equal(t, 7, p.Stock)

		_, err = repo.GetByID(ctx, "missing")
		require.ErrorIs(t, err, product.ErrNotFound)

		stock, ok, err := repo.StockOf(ctx, "b")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 7, stock)

		_, ok, err = repo.StockOf(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ProductWrites", func(t *testing.T) {
		ctx := context.Background()
		repo := NewProductRepository(pool)

		headset := product.Product{
			ID: "c", Name: "Headset", Category: "audio", Price: decimal.RequireFromString("59.00"), Stock: 3,
		}
		require.NoError(t, repo.Create(ctx, headset))
		require.ErrorIs(t, repo.Create(ctx, headset), product.ErrAlreadyExists)

		headset.Price = decimal.RequireFromString("49.00")
		headset.Stock = 10
		require.NoError(t, repo.Update(ctx, headset))

		p, err := repo.GetByID(ctx, "c")
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("49").Equal(p.Price))
		assert.Equal(t, 10, p.Stock)
		assert.Equal(t, "audio", p.Category)

		require.ErrorIs(t, repo.Update(ctx, product.Product{ID: "missing", Name: "x"}), product.ErrNotFound)
	})

	t.Run("APIKeys", func(t *testing.T) {
		ctx := context.Background()
		repo := NewAPIKeyRepository(pool)
		hash := auth.HashKeyHex("secret", []byte("pepper"))

		require.NoError(t, repo.Upsert(ctx, auth.APIKeyInfo{
			ID: "default", KeyHash: hash, Name: "Default", Scopes: []string{"cart", "checkout"},
		}))

		info, err := repo.FindByHash(ctx, hash)
		require.NoError(t, err)
		assert.Equal(t, "default", info.ID)
		assert.Equal(t, []string{"cart", "checkout"}, info.Scopes)

		_, err = repo.FindByHash(ctx, "deadbeef")
		require.ErrorIs(t, err, auth.ErrKeyNotFound)
	})

	t.Run("Orders", func(t *testing.T) {
		ctx := context.Background()
		repo := NewOrderRepository(pool)

		o := &order.Order{
			ID:        uuid.New().String(),
			UserID:    "u1",
			SessionID: "cs_test_1",
			Items:     []order.OrderItem{{ProductID: "a", Name: "Keyboard", UnitAmount: 8999, Quantity: 2}},
			Total:     decimal.RequireFromString("179.98"),
			CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		}
		require.NoError(t, repo.Create(ctx, o))

		got, err := repo.ListByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, o.ID, got[0].ID)
		assert.Equal(t, o.Items, got[0].Items)
		assert.True(t, o.Total.Equal(got[0].Total))
	})
}
