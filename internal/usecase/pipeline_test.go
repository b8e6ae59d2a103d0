package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopsight/backend/internal/domain"
	"github.com/shopsight/backend/internal/infrastructure/priors"
)

func newTestPipeline() *Pipeline {
	converter := &stubConverter{rates: map[string]float64{"EUR": 1.10}}
	priorTable := priors.Default()
	return NewPipeline(
		NewOrchestrator(OrchestratorConfig{Concurrency: 2, TaskTimeout: time.Second, MaxRetries: 1}),
		NewNormalizer(converter, "USD", nil),
		NewMatcher(MatcherConfig{MinConfidence: 0.55, FuzzyEditDistance: 1, SizeTolerance: 0.10}),
		NewFeatureBuilder("median", priorTable),
		NewDemandModel(priorTable),
		NewOptimizer(OptimizerConfig{MarginFloor: 0.10, GridStep: 0.50, GuardrailTolerance: 0.20, Endings: []float64{0.99, 0.95}}),
	)
}

func TestPipeline_EndToEnd(t *testing.T) {
	pipeline := newTestPipeline()

	products := []domain.CatalogueProduct{
		testProduct("p1", "Ceramic Travel Mug", "", 20.00),
	}
	adapters := []domain.StoreAdapter{
		&stubAdapter{id: "store-a", listings: []domain.Listing{
			{Title: "Ceramic Travel Mug", Price: 18.00, Currency: "USD"},
		}},
		&stubAdapter{id: "store-b", listings: []domain.Listing{
			{Title: "Ceramic Travel Mug", Price: 20.00, Currency: "EUR"},
		}},
	}

	result, err := pipeline.Run(context.Background(), products, adapters, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Recommendations) != 1 {
		t.Fatalf("expected one recommendation, got %d", len(result.Recommendations))
	}
	rec := result.Recommendations[0]
	if rec.ProductID != "p1" {
		t.Errorf("expected recommendation for p1, got %s", rec.ProductID)
	}
	if rec.Price <= 0 {
		t.Errorf("expected a positive price, got %f", rec.Price)
	}
	// cost 10, floor 0.10
	if rec.Price < 11.00-1e-9 {
		t.Errorf("expected price above margin floor, got %f", rec.Price)
	}
	if rec.Confidence <= 0 {
		t.Errorf("expected positive confidence, got %f", rec.Confidence)
	}
	if result.Diagnostics.DroppedListings != 0 {
		t.Errorf("expected no dropped listings, got %d", result.Diagnostics.DroppedListings)
	}
}

func TestPipeline_FailingStoreDoesNotSuppressOthers(t *testing.T) {
	pipeline := newTestPipeline()

	products := []domain.CatalogueProduct{
		testProduct("p1", "Ceramic Travel Mug", "", 20.00),
	}
	adapters := []domain.StoreAdapter{
		&stubAdapter{id: "store-a", listings: []domain.Listing{
			{Title: "Ceramic Travel Mug", Price: 18.00, Currency: "USD"},
		}},
		&stubAdapter{id: "store-b", err: deniedErr("store-b")},
	}

	result, err := pipeline.Run(context.Background(), products, adapters, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Recommendations) != 1 {
		t.Fatalf("expected a recommendation despite the failing store, got %d", len(result.Recommendations))
	}
	if len(result.Diagnostics.ScrapeErrors) != 1 {
		t.Fatalf("expected the failure recorded, got %d", len(result.Diagnostics.ScrapeErrors))
	}
	if result.Diagnostics.ScrapeErrors[0].StoreID != "store-b" {
		t.Errorf("expected store-b in diagnostics, got %s", result.Diagnostics.ScrapeErrors[0].StoreID)
	}
}

func TestPipeline_NoMatchesFallsBackToPriors(t *testing.T) {
	pipeline := newTestPipeline()

	products := []domain.CatalogueProduct{
		testProduct("p1", "Ceramic Travel Mug", "", 20.00),
	}
	adapters := []domain.StoreAdapter{
		&stubAdapter{id: "store-a", listings: []domain.Listing{
			{Title: "Stainless Steel Water Bottle", Price: 9.99, Currency: "USD"},
		}},
	}

	result, err := pipeline.Run(context.Background(), products, adapters, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Recommendations) != 1 {
		t.Fatalf("expected a prior-based recommendation, got %d", len(result.Recommendations))
	}
	if result.Recommendations[0].Price <= 0 {
		t.Errorf("expected a usable price without matches, got %f", result.Recommendations[0].Price)
	}
	if len(result.Diagnostics.UnmatchedListings) != 1 {
		t.Errorf("expected the listing in unmatched diagnostics, got %d", len(result.Diagnostics.UnmatchedListings))
	}
}

func TestPipeline_InvalidProductsExcluded(t *testing.T) {
	pipeline := newTestPipeline()

	invalid := testProduct("", "Nameless", "", 10.00)
	products := []domain.CatalogueProduct{
		invalid,
		testProduct("p1", "Ceramic Travel Mug", "", 20.00),
	}
	adapters := []domain.StoreAdapter{
		&stubAdapter{id: "store-a", listings: []domain.Listing{
			{Title: "Ceramic Travel Mug", Price: 18.00, Currency: "USD"},
		}},
	}

	result, err := pipeline.Run(context.Background(), products, adapters, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Recommendations) != 1 || result.Recommendations[0].ProductID != "p1" {
		t.Fatalf("expected only the valid product priced, got %+v", result.Recommendations)
	}
	if len(result.Diagnostics.InvalidProducts) != 1 {
		t.Errorf("expected one invalid product recorded, got %d", len(result.Diagnostics.InvalidProducts))
	}
}

func TestPipeline_FatalCases(t *testing.T) {
	pipeline := newTestPipeline()

	t.Run("empty catalogue", func(t *testing.T) {
		_, err := pipeline.Run(context.Background(), nil, nil, nil)
		if !errors.Is(err, domain.ErrEmptyCatalogue) {
			t.Errorf("expected ErrEmptyCatalogue, got %v", err)
		}
	})

	t.Run("all products invalid", func(t *testing.T) {
		_, err := pipeline.Run(context.Background(),
			[]domain.CatalogueProduct{testProduct("", "Nameless", "", 10.00)}, nil, nil)
		if !errors.Is(err, domain.ErrInvalidProduct) {
			t.Errorf("expected ErrInvalidProduct, got %v", err)
		}
	})

	t.Run("total normalization failure", func(t *testing.T) {
		adapters := []domain.StoreAdapter{
			&stubAdapter{id: "store-a", listings: []domain.Listing{
				{Title: "Ceramic Travel Mug", Price: 18.00, Currency: "CHF"},
			}},
		}
		_, err := pipeline.Run(context.Background(),
			[]domain.CatalogueProduct{testProduct("p1", "Ceramic Travel Mug", "", 20.00)}, adapters, nil)
		if !errors.Is(err, domain.ErrNormalizationFailed) {
			t.Errorf("expected ErrNormalizationFailed, got %v", err)
		}
	})
}

func TestPipeline_HistoryDrivesHierarchicalDemand(t *testing.T) {
	pipeline := newTestPipeline()

	products := []domain.CatalogueProduct{
		testProduct("p1", "Ceramic Travel Mug", "", 20.00),
	}
	adapters := []domain.StoreAdapter{
		&stubAdapter{id: "store-a", listings: []domain.Listing{
			{Title: "Ceramic Travel Mug", Price: 19.00, Currency: "USD"},
		}},
	}

	history := map[string][]domain.SalesObservation{
		"p1": {
			{Price: 16, Units: 140}, {Price: 17, Units: 128}, {Price: 18, Units: 117},
			{Price: 19, Units: 108}, {Price: 20, Units: 100}, {Price: 21, Units: 93},
			{Price: 22, Units: 87}, {Price: 23, Units: 81},
		},
	}

	result, err := pipeline.Run(context.Background(), products, adapters, history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Recommendations) != 1 {
		t.Fatalf("expected one recommendation, got %d", len(result.Recommendations))
	}
	if result.Recommendations[0].Price <= 0 {
		t.Errorf("expected a positive price, got %f", result.Recommendations[0].Price)
	}
}
