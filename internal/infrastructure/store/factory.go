package store

import (
	"fmt"

	"github.com/shopsight/backend/config"
	"github.com/shopsight/backend/internal/domain"
	"github.com/shopsight/backend/pkg/logger"
)

// Factory builds store adapters from configuration. Simulated stores
// need the catalogue being priced, so adapters are constructed per run
// rather than once at startup.
type Factory struct {
	stores      []config.StoreConfig
	gate        domain.Gate
	renderPages bool
	userAgent   string
}

// NewFactory creates an adapter factory.
func NewFactory(stores []config.StoreConfig, gate domain.Gate, renderPages bool, userAgent string) *Factory {
	return &Factory{
		stores:      stores,
		gate:        gate,
		renderPages: renderPages,
		userAgent:   userAgent,
	}
}

// Build constructs one adapter per configured store. A store whose
// configuration cannot produce an adapter is skipped with a warning so a
// single bad entry never takes down the whole run. Rendered stores are
// skipped when page rendering is disabled.
func (f *Factory) Build(catalogue []domain.CatalogueProduct) []domain.StoreAdapter {
	registry := NewRegistry()

	for _, sc := range f.stores {
		adapter, err := f.build(sc, catalogue)
		if err != nil {
			logger.Warn().Str("store", sc.ID).Err(err).Msg("skipping misconfigured store")
			continue
		}
		if adapter == nil {
			continue
		}
		registry.Register(adapter)
	}

	return registry.All()
}

func (f *Factory) build(sc config.StoreConfig, catalogue []domain.CatalogueProduct) (domain.StoreAdapter, error) {
	switch sc.Type {
	case "jsonapi":
		return NewJSONAPI(JSONAPIConfig{
			StoreID:    sc.ID,
			BaseURL:    sc.BaseURL,
			SearchPath: sc.SearchPath,
			Currency:   sc.Currency,
			UserAgent:  f.userAgent,
		}, f.gate)
	case "html":
		return NewHTML(HTMLConfig{
			StoreID:    sc.ID,
			BaseURL:    sc.BaseURL,
			SearchPath: sc.SearchPath,
			Currency:   sc.Currency,
			UserAgent:  f.userAgent,
			Selectors:  sc.Selectors,
		}, f.gate)
	case "rendered":
		if !f.renderPages {
			logger.Warn().Str("store", sc.ID).Msg("page rendering disabled, skipping rendered store")
			return nil, nil
		}
		return NewRendered(HTMLConfig{
			StoreID:    sc.ID,
			BaseURL:    sc.BaseURL,
			SearchPath: sc.SearchPath,
			Currency:   sc.Currency,
			UserAgent:  f.userAgent,
			Selectors:  sc.Selectors,
		}, f.gate)
	case "simulated":
		return NewSimulated(sc.ID, sc.Currency, catalogue), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", sc.Type)
	}
}
