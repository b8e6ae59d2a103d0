package usecase

import (
	"math"
	"sort"

	"github.com/shopsight/backend/internal/domain"
	"github.com/shopsight/backend/internal/infrastructure/priors"
)

// FeatureBuilder derives per-product competitive features from accepted
// matches. Rejected matches never contribute. The builder is pure: it
// holds only configuration and mutates nothing it is handed.
type FeatureBuilder struct {
	indexStat string // "mean" or "median"
	priors    domain.PriorSource
}

// NewFeatureBuilder creates a feature builder. indexStat selects how the
// price index aggregates competitor prices; anything other than "mean"
// falls back to the median, which is robust to a single outlier store.
func NewFeatureBuilder(indexStat string, priorSource domain.PriorSource) *FeatureBuilder {
	if indexStat != "mean" {
		indexStat = "median"
	}
	return &FeatureBuilder{indexStat: indexStat, priors: priorSource}
}

// Build computes features for one product from the full match set.
func (b *FeatureBuilder) Build(product domain.CatalogueProduct, matches []domain.Match) domain.ProductFeatures {
	var prices []float64
	var confidenceSum float64
	for _, m := range matches {
		if m.Rejected || m.ProductID != product.ID {
			continue
		}
		prices = append(prices, m.Price)
		confidenceSum += m.Confidence
	}

	prior := b.priors.Prior(product.Category)
	tier := priors.BrandTier(prior, product.Brand)

	if len(prices) == 0 {
		return domain.ProductFeatures{
			ProductID:        product.ID,
			BrandStrength:    tier,
			NoCompetitorData: true,
		}
	}

	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	mean := meanOf(sorted)
	index := mean
	if b.indexStat == "median" {
		index = medianOf(sorted)
	}

	spread := 0.0
	if mean > 0 {
		spread = (sorted[len(sorted)-1] - sorted[0]) / mean
	}

	meanConfidence := confidenceSum / float64(len(prices))

	return domain.ProductFeatures{
		ProductID:        product.ID,
		PriceIndex:       index,
		CompetitorMin:    sorted[0],
		CompetitorMedian: medianOf(sorted),
		CompetitorMax:    sorted[len(sorted)-1],
		Spread:           spread,
		BrandStrength:    tier*0.6 + meanConfidence*0.4,
		MatchCount:       len(prices),
	}
}

func meanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// medianOf expects vals sorted ascending.
func medianOf(vals []float64) float64 {
	n := len(vals)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

// roundCents truncates noise below a tenth of a cent and rounds to the
// nearest cent.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
