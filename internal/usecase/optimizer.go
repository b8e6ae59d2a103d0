package usecase

import (
	"math"
	"sort"

	"github.com/shopsight/backend/internal/domain"
)

const priceEpsilon = 1e-9

// OptimizerConfig holds the pricing constraints and grid shape.
type OptimizerConfig struct {
	MarginFloor        float64   // minimum margin over cost, fractional
	GridStep           float64   // candidate grid spacing in currency units
	GuardrailTolerance float64   // competitor band slack, fractional
	Endings            []float64 // psychological price endings, e.g. 0.99
}

// Optimizer searches a discrete price grid for the profit-maximizing
// price subject to the margin floor and competitor band. Candidates are
// snapped to psychological endings before evaluation, so the output is
// always a display-ready price.
type Optimizer struct {
	marginFloor float64
	gridStep    float64
	tolerance   float64
	endings     []float64
}

// NewOptimizer creates an optimizer, substituting safe defaults for
// missing configuration.
func NewOptimizer(cfg OptimizerConfig) *Optimizer {
	step := cfg.GridStep
	if step <= 0 {
		step = 0.50
	}
	tolerance := cfg.GuardrailTolerance
	if tolerance <= 0 {
		tolerance = 0.20
	}
	endings := cfg.Endings
	if len(endings) == 0 {
		endings = []float64{0.99, 0.95}
	}

	return &Optimizer{
		marginFloor: cfg.MarginFloor,
		gridStep:    step,
		tolerance:   tolerance,
		endings:     endings,
	}
}

// Optimize selects a price for the product. It always returns a
// recommendation: when the constraints admit no candidate at all the
// price is relaxed to the cheapest ending at or above the margin floor
// and flagged accordingly.
func (o *Optimizer) Optimize(product domain.CatalogueProduct, features domain.ProductFeatures, demand domain.DemandEstimate) domain.Recommendation {
	floorPrice := product.Cost * (1 + o.marginFloor)

	hasBand := !features.NoCompetitorData && features.CompetitorMin > 0
	bandLo, bandHi := 0.0, 0.0
	if hasBand {
		bandLo = features.CompetitorMin * (1 - o.tolerance)
		bandHi = features.CompetitorMax * (1 + o.tolerance)
	}

	lo, hi := o.gridBounds(product, floorPrice, hasBand, bandLo, bandHi)
	candidates := o.candidates(lo, hi)

	admissible := func(p float64) bool {
		if p < floorPrice-priceEpsilon {
			return false
		}
		if hasBand && (p < bandLo-priceEpsilon || p > bandHi+priceEpsilon) {
			return false
		}
		return true
	}

	best, bestOK := o.pickBest(candidates, product, demand, admissible)
	unconstrained, unconstrainedOK := o.pickBest(candidates, product, demand, func(float64) bool { return true })

	rec := domain.Recommendation{ProductID: product.ID}

	if !bestOK {
		price := o.ceilToEnding(floorPrice)
		rec.Price = price
		rec.Guardrails = append(rec.Guardrails, domain.GuardrailInfeasibleRelaxed)
		o.fill(&rec, product, demand, price)
		rec.Confidence = o.confidence(features, demand, true)
		return rec
	}

	rec.Price = best
	o.fill(&rec, product, demand, best)

	if unconstrainedOK && math.Abs(unconstrained-best) > priceEpsilon {
		if unconstrained < floorPrice-priceEpsilon {
			rec.Guardrails = append(rec.Guardrails, domain.GuardrailMarginFloor)
		}
		if hasBand && (unconstrained < bandLo-priceEpsilon || unconstrained > bandHi+priceEpsilon) {
			rec.Guardrails = append(rec.Guardrails, domain.GuardrailCompetitorBand)
		}
	}

	rec.Confidence = o.confidence(features, demand, false)
	return rec
}

// gridBounds determines the search interval. The band anchors it when
// competitor data exists; otherwise the interval stretches from the
// margin floor toward a generous multiple of the current price.
func (o *Optimizer) gridBounds(product domain.CatalogueProduct, floorPrice float64, hasBand bool, bandLo, bandHi float64) (float64, float64) {
	if hasBand {
		lo := math.Min(floorPrice, bandLo)
		return lo, bandHi
	}

	hi := floorPrice * 1.5
	if product.CurrentPrice*1.5 > hi {
		hi = product.CurrentPrice * 1.5
	}
	return floorPrice, hi
}

// candidates walks the grid with the configured step and snaps every
// point down to each ending, deduplicating and keeping only prices
// inside [lo, hi].
func (o *Optimizer) candidates(lo, hi float64) []float64 {
	if hi < lo {
		return nil
	}

	seen := make(map[int64]bool)
	var out []float64
	for p := lo; p <= hi+priceEpsilon; p += o.gridStep {
		for _, ending := range o.endings {
			c := math.Floor(p) + ending
			if c < lo-priceEpsilon || c > hi+priceEpsilon {
				continue
			}
			cents := int64(math.Round(c * 100))
			if seen[cents] {
				continue
			}
			seen[cents] = true
			out = append(out, float64(cents)/100)
		}
	}
	sort.Float64s(out)
	return out
}

// pickBest evaluates profit at every candidate passing the filter.
// Profit ties resolve toward the price closest to the current catalogue
// price, keeping recommendations stable run to run.
func (o *Optimizer) pickBest(candidates []float64, product domain.CatalogueProduct, demand domain.DemandEstimate, ok func(float64) bool) (float64, bool) {
	bestPrice := 0.0
	bestProfit := math.Inf(-1)
	found := false

	for _, p := range candidates {
		if !ok(p) {
			continue
		}
		profit := (p - product.Cost) * demand.UnitsAt(p)
		switch {
		case !found || profit > bestProfit+priceEpsilon:
			bestPrice, bestProfit, found = p, profit, true
		case math.Abs(profit-bestProfit) <= priceEpsilon:
			if math.Abs(p-product.CurrentPrice) < math.Abs(bestPrice-product.CurrentPrice) {
				bestPrice = p
			}
		}
	}

	return bestPrice, found
}

// ceilToEnding returns the cheapest ending-snapped price at or above p.
func (o *Optimizer) ceilToEnding(p float64) float64 {
	best := math.Inf(1)
	for _, ending := range o.endings {
		c := math.Floor(p) + ending
		if c < p-priceEpsilon {
			c = math.Floor(p) + 1 + ending
		}
		if c < best {
			best = c
		}
	}
	return roundCents(best)
}

func (o *Optimizer) fill(rec *domain.Recommendation, product domain.CatalogueProduct, demand domain.DemandEstimate, price float64) {
	units := demand.UnitsAt(price)
	rec.ExpectedUnits = units
	rec.ExpectedProfit = (price - product.Cost) * units
	if price > 0 {
		rec.ExpectedMargin = (price - product.Cost) / price
	}
}

// confidence is a coarse self-assessment of the recommendation, not a
// statistical interval. It starts high and is docked for missing
// competitor data, prior-only demand, and constraint relaxation.
func (o *Optimizer) confidence(features domain.ProductFeatures, demand domain.DemandEstimate, infeasible bool) float64 {
	c := 0.9
	if features.NoCompetitorData {
		c -= 0.3
	}
	if demand.Fallback {
		c -= 0.2
	}
	if infeasible {
		c -= 0.2
	}
	if c < 0.1 {
		c = 0.1
	}
	return c
}
