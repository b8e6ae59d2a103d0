package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsight/backend/internal/domain"
)

func TestBuildQuery(t *testing.T) {
	t.Run("prepends brand when the name omits it", func(t *testing.T) {
		q := BuildQuery(domain.CatalogueProduct{
			ID:    "p1",
			Name:  "Dark Roast Ground Coffee, 340 g Bag",
			Brand: "Morning Peak",
		})

		assert.Equal(t, "p1", q.ProductID)
		assert.Equal(t, "Morning Peak Dark Roast Ground Coffee", q.Query)
		assert.Equal(t, "Morning Peak", q.Brand)
	})

	t.Run("keeps the name as is when the brand already leads", func(t *testing.T) {
		q := BuildQuery(domain.CatalogueProduct{
			ID:    "p2",
			Name:  "Morning Peak Espresso Beans",
			Brand: "Morning Peak",
		})

		assert.Equal(t, "Morning Peak Espresso Beans", q.Query)
	})
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"comma tail stripped", "Oat Clusters Cereal, 500 g Box", "Oat Clusters Cereal"},
		{"embedded size removed", "Sparkling Water 12 pk Value Pack", "Sparkling Water"},
		{"special characters and ampersand", "Chips & Dip #1", "Chips and Dip 1"},
		{"retail noise removed", "Chocolate Bars Party Size", "Chocolate Bars"},
		{"plain title untouched", "Bamboo Travel Mug", "Bamboo Travel Mug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanTitle(tt.title))
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"dollar price", "$24.99", 24.99},
		{"comma decimal", "5,49 €", 5.49},
		{"euro grouping with comma decimal", "€ 1.299,00", 1299.00},
		{"us grouping with dot decimal", "1,299.50", 1299.50},
		{"grouping without decimal part", "1.299", 1299},
		{"bare integer", "147", 147},
		{"surrounding text", "Now only 7.25 per unit", 7.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parsePrice(tt.text)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	t.Run("no numeric value", func(t *testing.T) {
		for _, text := range []string{"call for pricing", "sold out", ""} {
			_, ok := parsePrice(text)
			require.False(t, ok, text)
		}
	})
}
