package domain

import "math"

// ProductFeatures summarizes competitor signal for one product.
// Fully recomputed each run from the accepted match set.
type ProductFeatures struct {
	ProductID        string  `json:"productId"`
	PriceIndex       float64 `json:"priceIndex"` // central competitor price, reference currency
	CompetitorMin    float64 `json:"competitorMin"`
	CompetitorMedian float64 `json:"competitorMedian"`
	CompetitorMax    float64 `json:"competitorMax"`
	Spread           float64 `json:"spread"` // (max-min)/mean
	BrandStrength    float64 `json:"brandStrength"`
	MatchCount       int     `json:"matchCount"`
	NoCompetitorData bool    `json:"noCompetitorData,omitempty"`
}

// DemandVariant tags which demand model produced an estimate.
type DemandVariant string

const (
	DemandElastic      DemandVariant = "elastic"
	DemandHierarchical DemandVariant = "hierarchical"
)

// DemandEstimate maps price to expected units sold for one product.
type DemandEstimate struct {
	ProductID      string        `json:"productId"`
	Variant        DemandVariant `json:"variant"`
	Elasticity     float64       `json:"elasticity"`
	BaselineUnits  float64       `json:"baselineUnits"`
	ReferencePrice float64       `json:"referencePrice"`
	Fallback       bool          `json:"fallback,omitempty"` // insufficient history, priors used
}

// UnitsAt returns expected demand at the given price under the
// constant-elasticity curve demand(p) = baseline * (p/p0)^elasticity.
func (d DemandEstimate) UnitsAt(price float64) float64 {
	if price <= 0 || d.ReferencePrice <= 0 {
		return 0
	}
	return d.BaselineUnits * math.Pow(price/d.ReferencePrice, d.Elasticity)
}

// Guardrail flags attached to recommendations. A flag is present exactly
// when the named constraint was binding for the selected price.
const (
	GuardrailMarginFloor       = "margin-floor"
	GuardrailCompetitorBand    = "competitor-band"
	GuardrailInfeasibleRelaxed = "infeasible-relaxed"
)

// Recommendation is the optimizer's output for one product.
type Recommendation struct {
	ProductID      string   `json:"productId"`
	Price          float64  `json:"price"`
	ExpectedUnits  float64  `json:"expectedUnits"`
	ExpectedProfit float64  `json:"expectedProfit"`
	ExpectedMargin float64  `json:"expectedMargin"`
	Guardrails     []string `json:"guardrails,omitempty"`
	Confidence     float64  `json:"confidence"`
}

// CategoryPrior carries category-level defaults used when per-product
// signal is missing: demand priors and a brand tier lookup.
type CategoryPrior struct {
	Elasticity    float64            `json:"elasticity"`
	BaselineUnits float64            `json:"baselineUnits"`
	BrandTiers    map[string]float64 `json:"brandTiers,omitempty"`
}

// SalesObservation is one historical (price, units) point for a product.
type SalesObservation struct {
	Price float64 `json:"price"`
	Units float64 `json:"units"`
}
