package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig
	Pricing PricingConfig
	Scrape  ScrapeConfig
	Match   MatchConfig
	FX      FXConfig
	Stores  []StoreConfig
	Priors  []PriorConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// PricingConfig holds the optimizer and feature-builder settings
type PricingConfig struct {
	ReferenceCurrency  string    `mapstructure:"reference_currency"`
	Markets            []string  `mapstructure:"markets"`
	MarginFloor        float64   `mapstructure:"margin_floor"`
	GridStep           float64   `mapstructure:"grid_step"`
	GuardrailTolerance float64   `mapstructure:"guardrail_tolerance"`
	Endings            []float64 `mapstructure:"endings"`
	IndexStat          string    `mapstructure:"index_stat"` // "mean" or "median"
}

// ScrapeConfig holds orchestration and politeness-gate settings
type ScrapeConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RatePerSec  float64       `mapstructure:"rate_per_sec"`
	Burst       int           `mapstructure:"burst"`
	RobotsTTL   time.Duration `mapstructure:"robots_ttl"`
	RenderPages bool          `mapstructure:"render_pages"`
	UserAgent   string        `mapstructure:"user_agent"`
}

// MatchConfig holds product-matching thresholds
type MatchConfig struct {
	MinConfidence     float64 `mapstructure:"min_confidence"` // 0..1
	FuzzyEditDistance int     `mapstructure:"fuzzy_edit_distance"`
	SizeTolerance     float64 `mapstructure:"size_tolerance"` // fractional, e.g. 0.10
}

// FXConfig holds exchange-rate client configuration
type FXConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// PriorConfig overrides one category's demand prior. Omitted categories
// use the built-in table.
type PriorConfig struct {
	Category      string             `mapstructure:"category"`
	Elasticity    float64            `mapstructure:"elasticity"`
	BaselineUnits float64            `mapstructure:"baseline_units"`
	BrandTiers    map[string]float64 `mapstructure:"brand_tiers"`
}

// StoreConfig describes one partner store adapter to register.
type StoreConfig struct {
	ID         string            `mapstructure:"id"`
	Type       string            `mapstructure:"type"` // "jsonapi", "html", "rendered", "simulated"
	BaseURL    string            `mapstructure:"base_url"`
	SearchPath string            `mapstructure:"search_path"` // must contain {query}
	Currency   string            `mapstructure:"currency"`
	Selectors  map[string]string `mapstructure:"selectors"` // html/rendered variants
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/shopsight/")

	// Environment variable settings
	v.SetEnvPrefix("SHOPSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Pricing defaults
	v.SetDefault("pricing.reference_currency", "USD")
	v.SetDefault("pricing.markets", []string{"USD", "EUR"})
	v.SetDefault("pricing.margin_floor", 0.10)
	v.SetDefault("pricing.grid_step", 0.50)
	v.SetDefault("pricing.guardrail_tolerance", 0.20)
	v.SetDefault("pricing.endings", []float64{0.99, 0.95})
	v.SetDefault("pricing.index_stat", "median")

	// Scrape defaults
	v.SetDefault("scrape.concurrency", 8)
	v.SetDefault("scrape.task_timeout", "20s")
	v.SetDefault("scrape.max_retries", 3)
	v.SetDefault("scrape.rate_per_sec", 1.0)
	v.SetDefault("scrape.burst", 2)
	v.SetDefault("scrape.robots_ttl", "1h")
	v.SetDefault("scrape.render_pages", false)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (compatible; Shopsight/1.0)")

	// Match defaults
	v.SetDefault("match.min_confidence", 0.55)
	v.SetDefault("match.fuzzy_edit_distance", 1)
	v.SetDefault("match.size_tolerance", 0.10)

	// FX defaults
	v.SetDefault("fx.base_url", "https://open.er-api.com")
	v.SetDefault("fx.ttl", "6h")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Pricing.MarginFloor < 0 || config.Pricing.MarginFloor >= 1 {
		return fmt.Errorf("margin floor must be in [0, 1), got: %v", config.Pricing.MarginFloor)
	}

	if config.Pricing.GridStep <= 0 {
		return fmt.Errorf("grid step must be positive, got: %v", config.Pricing.GridStep)
	}

	if config.Pricing.GuardrailTolerance < 0 {
		return fmt.Errorf("guardrail tolerance must be non-negative, got: %v", config.Pricing.GuardrailTolerance)
	}

	if config.Pricing.IndexStat != "mean" && config.Pricing.IndexStat != "median" {
		return fmt.Errorf("index stat must be 'mean' or 'median', got: %s", config.Pricing.IndexStat)
	}

	for _, ending := range config.Pricing.Endings {
		if ending < 0 || ending >= 1 {
			return fmt.Errorf("psychological ending must be in [0, 1), got: %v", ending)
		}
	}

	if config.Scrape.Concurrency < 1 {
		return fmt.Errorf("scrape concurrency must be at least 1, got: %d", config.Scrape.Concurrency)
	}

	if config.Scrape.Burst < 1 {
		return fmt.Errorf("scrape burst must be at least 1, got: %d", config.Scrape.Burst)
	}

	if config.Match.MinConfidence < 0 || config.Match.MinConfidence > 1 {
		return fmt.Errorf("match confidence threshold must be in [0, 1], got: %v", config.Match.MinConfidence)
	}

	for _, prior := range config.Priors {
		if prior.Category == "" {
			return fmt.Errorf("prior row missing a category")
		}
		if prior.Elasticity >= 0 {
			return fmt.Errorf("prior elasticity for %q must be negative, got: %v", prior.Category, prior.Elasticity)
		}
	}

	for _, store := range config.Stores {
		switch store.Type {
		case "jsonapi", "html", "rendered", "simulated":
		default:
			return fmt.Errorf("unknown store type %q for store %q", store.Type, store.ID)
		}
		if store.Type != "simulated" && store.BaseURL == "" {
			return fmt.Errorf("store %q requires a base_url", store.ID)
		}
	}

	return nil
}
