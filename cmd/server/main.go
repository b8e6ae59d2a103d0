package main

import (
	"fmt"
	"strings"

	"github.com/shopsight/backend/config"
	"github.com/shopsight/backend/internal/domain"
	httpDelivery "github.com/shopsight/backend/internal/delivery/http"
	"github.com/shopsight/backend/internal/infrastructure/cache"
	"github.com/shopsight/backend/internal/infrastructure/fx"
	"github.com/shopsight/backend/internal/infrastructure/gate"
	"github.com/shopsight/backend/internal/infrastructure/priors"
	"github.com/shopsight/backend/internal/infrastructure/store"
	"github.com/shopsight/backend/internal/usecase"
	"github.com/shopsight/backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Init("production")
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init(cfg.Server.Environment)
	logger.Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Int("stores", len(cfg.Stores)).
		Msg("starting shopsight backend v1.0.0")

	// Infrastructure: caches, politeness gate, exchange rates, priors
	robotsCache := cache.NewMemory()
	defer robotsCache.Stop()
	ratesCache := cache.NewMemory()
	defer ratesCache.Stop()

	politenessGate := gate.New(gate.Config{
		RatePerSec: cfg.Scrape.RatePerSec,
		Burst:      cfg.Scrape.Burst,
		RobotsTTL:  cfg.Scrape.RobotsTTL,
		UserAgent:  cfg.Scrape.UserAgent,
	}, robotsCache)

	fxClient := fx.NewClient(cfg.FX.BaseURL, cfg.FX.TTL, ratesCache)
	priorTable := buildPriors(cfg.Priors)

	// Usecase layer
	pipeline := usecase.NewPipeline(
		usecase.NewOrchestrator(usecase.OrchestratorConfig{
			Concurrency: cfg.Scrape.Concurrency,
			TaskTimeout: cfg.Scrape.TaskTimeout,
			MaxRetries:  cfg.Scrape.MaxRetries,
		}),
		usecase.NewNormalizer(fxClient, cfg.Pricing.ReferenceCurrency, cfg.Pricing.Markets),
		usecase.NewMatcher(usecase.MatcherConfig{
			MinConfidence:     cfg.Match.MinConfidence,
			FuzzyEditDistance: cfg.Match.FuzzyEditDistance,
			SizeTolerance:     cfg.Match.SizeTolerance,
		}),
		usecase.NewFeatureBuilder(cfg.Pricing.IndexStat, priorTable),
		usecase.NewDemandModel(priorTable),
		usecase.NewOptimizer(usecase.OptimizerConfig{
			MarginFloor:        cfg.Pricing.MarginFloor,
			GridStep:           cfg.Pricing.GridStep,
			GuardrailTolerance: cfg.Pricing.GuardrailTolerance,
			Endings:            cfg.Pricing.Endings,
		}),
	)

	factory := store.NewFactory(cfg.Stores, politenessGate, cfg.Scrape.RenderPages, cfg.Scrape.UserAgent)

	// HTTP delivery
	handler := httpDelivery.NewHandler(pipeline, factory)
	router := httpDelivery.SetupRouter(cfg, handler)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info().Str("addr", addr).Msg("server listening")

	if err := router.Run(addr); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
}

// buildPriors turns configured prior rows into a lookup table, falling
// back to the built-in defaults when none are configured.
func buildPriors(rows []config.PriorConfig) *priors.Table {
	if len(rows) == 0 {
		return priors.Default()
	}

	byCategory := make(map[string]domain.CategoryPrior, len(rows))
	for _, row := range rows {
		byCategory[strings.ToLower(row.Category)] = domain.CategoryPrior{
			Elasticity:    row.Elasticity,
			BaselineUnits: row.BaselineUnits,
			BrandTiers:    row.BrandTiers,
		}
	}
	return priors.FromRows(byCategory, domain.CategoryPrior{})
}
