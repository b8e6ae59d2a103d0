package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopsight/backend/internal/domain"
	"github.com/shopsight/backend/pkg/logger"
)

// Pipeline runs the full recommendation flow: scrape, normalize, match,
// featurize, estimate demand and optimize, producing one recommendation
// per valid catalogue product. Failures along the way degrade the output
// rather than abort it; the only fatal cases are an empty catalogue and
// total normalization failure.
type Pipeline struct {
	orchestrator *Orchestrator
	normalizer   *Normalizer
	matcher      *Matcher
	features     *FeatureBuilder
	demand       *DemandModel
	optimizer    *Optimizer
}

// NewPipeline wires the stages together.
func NewPipeline(orchestrator *Orchestrator, normalizer *Normalizer, matcher *Matcher, features *FeatureBuilder, demand *DemandModel, optimizer *Optimizer) *Pipeline {
	return &Pipeline{
		orchestrator: orchestrator,
		normalizer:   normalizer,
		matcher:      matcher,
		features:     features,
		demand:       demand,
		optimizer:    optimizer,
	}
}

// InvalidProduct records a catalogue row excluded from the run.
type InvalidProduct struct {
	ProductID string `json:"productId"`
	Reason    string `json:"reason"`
}

// Diagnostics carries everything the run set aside instead of failing on.
type Diagnostics struct {
	ScrapeErrors      []domain.ScrapeError `json:"scrapeErrors,omitempty"`
	UnmatchedListings []domain.Match       `json:"unmatchedListings,omitempty"`
	InvalidProducts   []InvalidProduct     `json:"invalidProducts,omitempty"`
	DroppedListings   int                  `json:"droppedListings,omitempty"`
	StaleRates        int                  `json:"staleRates,omitempty"`
	Infeasible        int                  `json:"infeasible,omitempty"`
}

// RunResult is the pipeline output for one catalogue submission.
type RunResult struct {
	Recommendations []domain.Recommendation `json:"recommendations"`
	Diagnostics     Diagnostics             `json:"diagnostics"`
}

// Run executes the pipeline for the given catalogue. history maps
// product ids to their sales observations and may be nil.
func (p *Pipeline) Run(ctx context.Context, products []domain.CatalogueProduct, adapters []domain.StoreAdapter, history map[string][]domain.SalesObservation) (*RunResult, error) {
	if len(products) == 0 {
		return nil, domain.ErrEmptyCatalogue
	}

	result := &RunResult{}

	valid := make([]domain.CatalogueProduct, 0, len(products))
	for _, product := range products {
		if err := product.Validate(); err != nil {
			result.Diagnostics.InvalidProducts = append(result.Diagnostics.InvalidProducts, InvalidProduct{
				ProductID: product.ID,
				Reason:    err.Error(),
			})
			logger.Warn().Str("product", product.ID).Err(err).Msg("excluding invalid catalogue product")
			continue
		}
		valid = append(valid, product)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid products in catalogue: %w", domain.ErrInvalidProduct)
	}

	listings, scrapeErrors := p.orchestrator.Run(ctx, valid, adapters)
	result.Diagnostics.ScrapeErrors = scrapeErrors

	normalized, dropped, err := p.normalizer.Normalize(ctx, listings)
	result.Diagnostics.DroppedListings = dropped
	if err != nil {
		return nil, err
	}
	for _, nl := range normalized {
		if nl.RateStale {
			result.Diagnostics.StaleRates++
		}
	}

	matches := p.matcher.Match(valid, normalized)
	SortMatches(matches)
	for _, m := range matches {
		if m.Rejected {
			result.Diagnostics.UnmatchedListings = append(result.Diagnostics.UnmatchedListings, m)
		}
	}

	for _, product := range valid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		features := p.features.Build(product, matches)
		estimate := p.demand.Estimate(product, features, history[product.ID])
		rec := p.optimizer.Optimize(product, features, estimate)

		for _, g := range rec.Guardrails {
			if g == domain.GuardrailInfeasibleRelaxed {
				result.Diagnostics.Infeasible++
			}
		}

		result.Recommendations = append(result.Recommendations, rec)
	}

	sort.Slice(result.Recommendations, func(i, j int) bool {
		return result.Recommendations[i].ProductID < result.Recommendations[j].ProductID
	})

	logger.Info().
		Int("products", len(valid)).
		Int("listings", len(listings)).
		Int("recommendations", len(result.Recommendations)).
		Int("scrape_errors", len(scrapeErrors)).
		Msg("pricing run complete")

	return result, nil
}
