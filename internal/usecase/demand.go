package usecase

import (
	"math"

	"github.com/shopsight/backend/internal/domain"
)

// minHistoryForHierarchical is the observation count at which the
// partially pooled model takes over from the pure category prior.
const minHistoryForHierarchical = 8

// Elasticity fits outside this range are treated as degenerate and
// clamped before pooling.
const (
	minElasticity = -5.0
	maxElasticity = -0.1
)

// poolingPseudoCount controls how fast product-level evidence overrides
// the category prior: weight = n / (n + poolingPseudoCount).
const poolingPseudoCount = 10.0

// DemandModel estimates a constant-elasticity demand curve for a product.
// With little or no sales history it leans entirely on category priors;
// with enough observations it fits a product-level elasticity and pools
// it with the prior.
type DemandModel struct {
	priors domain.PriorSource
}

// NewDemandModel creates a demand model backed by the given priors.
func NewDemandModel(priorSource domain.PriorSource) *DemandModel {
	return &DemandModel{priors: priorSource}
}

// ChooseVariant selects the model variant from the amount of history
// available. It is deterministic in its input.
func ChooseVariant(historyLen int) domain.DemandVariant {
	if historyLen >= minHistoryForHierarchical {
		return domain.DemandHierarchical
	}
	return domain.DemandElastic
}

// Estimate builds a demand estimate for the product. The reference price
// anchors the curve: the catalogue price when present, else the
// competitive price index, else a cost-derived stand-in so the curve is
// never anchored at zero.
func (dm *DemandModel) Estimate(product domain.CatalogueProduct, features domain.ProductFeatures, history []domain.SalesObservation) domain.DemandEstimate {
	prior := dm.priors.Prior(product.Category)
	reference := referencePrice(product, features)

	variant := ChooseVariant(len(history))
	if variant == domain.DemandElastic {
		return domain.DemandEstimate{
			ProductID:      product.ID,
			Variant:        domain.DemandElastic,
			Elasticity:     prior.Elasticity,
			BaselineUnits:  prior.BaselineUnits,
			ReferencePrice: reference,
			Fallback:       true,
		}
	}

	fitted, ok := fitElasticity(history)
	if !ok {
		// Enough rows but no price variation to fit on.
		return domain.DemandEstimate{
			ProductID:      product.ID,
			Variant:        domain.DemandElastic,
			Elasticity:     prior.Elasticity,
			BaselineUnits:  baselineFromHistory(history, reference, prior.Elasticity, prior.BaselineUnits),
			ReferencePrice: reference,
			Fallback:       true,
		}
	}

	n := float64(len(history))
	weight := n / (n + poolingPseudoCount)
	pooled := weight*fitted + (1-weight)*prior.Elasticity

	return domain.DemandEstimate{
		ProductID:      product.ID,
		Variant:        domain.DemandHierarchical,
		Elasticity:     pooled,
		BaselineUnits:  baselineFromHistory(history, reference, pooled, prior.BaselineUnits),
		ReferencePrice: reference,
	}
}

func referencePrice(product domain.CatalogueProduct, features domain.ProductFeatures) float64 {
	if product.CurrentPrice > 0 {
		return product.CurrentPrice
	}
	if features.PriceIndex > 0 {
		return features.PriceIndex
	}
	if product.Cost > 0 {
		return product.Cost * 1.5
	}
	return 1.0
}

// fitElasticity runs a log-log least-squares fit of units against price.
// It needs at least two distinct positive prices with positive units;
// otherwise the fit is undefined and the caller falls back to the prior.
func fitElasticity(history []domain.SalesObservation) (float64, bool) {
	var xs, ys []float64
	for _, obs := range history {
		if obs.Price <= 0 || obs.Units <= 0 {
			continue
		}
		xs = append(xs, math.Log(obs.Price))
		ys = append(ys, math.Log(obs.Units))
	}
	if len(xs) < 2 {
		return 0, false
	}

	distinct := false
	for i := 1; i < len(xs); i++ {
		if xs[i] != xs[0] {
			distinct = true
			break
		}
	}
	if !distinct {
		return 0, false
	}

	meanX := meanOf(xs)
	meanY := meanOf(ys)

	var num, den float64
	for i := range xs {
		num += (xs[i] - meanX) * (ys[i] - meanY)
		den += (xs[i] - meanX) * (xs[i] - meanX)
	}
	if den == 0 {
		return 0, false
	}

	slope := num / den
	if slope > maxElasticity {
		slope = maxElasticity
	}
	if slope < minElasticity {
		slope = minElasticity
	}
	return slope, true
}

// baselineFromHistory back-solves each observation to units at the
// reference price under the given elasticity and averages them. With no
// usable rows it keeps the prior baseline.
func baselineFromHistory(history []domain.SalesObservation, reference, elasticity, priorBaseline float64) float64 {
	if reference <= 0 {
		return priorBaseline
	}
	var sum float64
	var count int
	for _, obs := range history {
		if obs.Price <= 0 || obs.Units <= 0 {
			continue
		}
		sum += obs.Units * math.Pow(obs.Price/reference, -elasticity)
		count++
	}
	if count == 0 {
		return priorBaseline
	}
	return sum / float64(count)
}
