package priors

import (
	"strings"

	"github.com/shopsight/backend/internal/domain"
)

// Table is a read-only category -> prior lookup with a default row for
// unknown categories. Loaded once at run start.
type Table struct {
	rows map[string]domain.CategoryPrior
	def  domain.CategoryPrior
}

// neutralBrandTier is the weight assigned to brands absent from a prior's
// tier lookup.
const neutralBrandTier = 0.5

// Default returns the built-in prior table. Brand tiers are empty here;
// operators supply them via FromRows. Elasticities should be recalibrated
// from sales history periodically.
func Default() *Table {
	return &Table{
		rows: map[string]domain.CategoryPrior{
			"clothing":    {Elasticity: -1.5, BaselineUnits: 100},
			"home":        {Elasticity: -1.1, BaselineUnits: 100},
			"accessories": {Elasticity: -1.3, BaselineUnits: 100},
			"electronics": {Elasticity: -1.8, BaselineUnits: 80},
			"food":        {Elasticity: -0.9, BaselineUnits: 200},
		},
		def: domain.CategoryPrior{Elasticity: -1.2, BaselineUnits: 100},
	}
}

// FromRows builds a table from externally supplied rows. Rows with a
// missing baseline inherit the default row's.
func FromRows(rows map[string]domain.CategoryPrior, def domain.CategoryPrior) *Table {
	if def.Elasticity == 0 {
		def.Elasticity = -1.2
	}
	if def.BaselineUnits <= 0 {
		def.BaselineUnits = 100
	}
	for category, row := range rows {
		if row.BaselineUnits <= 0 {
			row.BaselineUnits = def.BaselineUnits
			rows[category] = row
		}
	}
	return &Table{rows: rows, def: def}
}

// Prior resolves the prior for a category, falling back to the default row.
func (t *Table) Prior(category string) domain.CategoryPrior {
	if p, ok := t.rows[strings.ToLower(strings.TrimSpace(category))]; ok {
		return p
	}
	return t.def
}

// BrandTier resolves a brand's tier weight from a prior, defaulting to the
// neutral tier for unknown brands.
func BrandTier(prior domain.CategoryPrior, brand string) float64 {
	if brand == "" {
		return neutralBrandTier
	}
	if w, ok := prior.BrandTiers[strings.ToLower(strings.TrimSpace(brand))]; ok {
		return w
	}
	return neutralBrandTier
}
