package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsight/backend/internal/domain"
)

func TestSimulatedSearch(t *testing.T) {
	catalogue := []domain.CatalogueProduct{
		{ID: "p1", Name: "Bamboo Mug", Brand: "GreenCo", CurrentPrice: 20.0, Cost: 8.0},
		{ID: "p2", Name: "Free Sample", CurrentPrice: 0},
	}
	adapter := NewSimulated("simstore", "USD", catalogue)
	ctx := context.Background()

	t.Run("prices stay within twenty percent of current", func(t *testing.T) {
		listings, err := adapter.Search(ctx, domain.ProductQuery{ProductID: "p1"})
		require.NoError(t, err)
		require.NotEmpty(t, listings)

		for _, l := range listings {
			assert.GreaterOrEqual(t, l.Price, 16.0)
			assert.LessOrEqual(t, l.Price, 24.0)
			assert.Equal(t, "simstore", l.StoreID)
			assert.Equal(t, "USD", l.Currency)
		}
	})

	t.Run("deterministic across calls", func(t *testing.T) {
		first, err := adapter.Search(ctx, domain.ProductQuery{ProductID: "p1"})
		require.NoError(t, err)
		second, err := adapter.Search(ctx, domain.ProductQuery{ProductID: "p1"})
		require.NoError(t, err)

		require.Equal(t, len(first), len(second))
		for i := range first {
			assert.Equal(t, first[i].Price, second[i].Price)
		}
	})

	t.Run("unknown or unpriced products yield nothing", func(t *testing.T) {
		listings, err := adapter.Search(ctx, domain.ProductQuery{ProductID: "p2"})
		require.NoError(t, err)
		assert.Empty(t, listings)

		listings, err = adapter.Search(ctx, domain.ProductQuery{ProductID: "missing"})
		require.NoError(t, err)
		assert.Empty(t, listings)
	})

	t.Run("offline adapter reports empty origin", func(t *testing.T) {
		assert.Equal(t, "", adapter.Origin())
	})
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewSimulated("a", "USD", nil))
	reg.Register(NewSimulated("b", "USD", nil))
	reg.Register(NewSimulated("a", "EUR", nil)) // replace

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].StoreID())
	assert.Equal(t, "b", all[1].StoreID())

	got, ok := reg.Get("b")
	require.True(t, ok)
	assert.Equal(t, "b", got.StoreID())
}
