package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opscart/region-cost-planner/pkg/logging"
)

// Config holds application configuration
type Config struct {
	// Pricing
	PricingProvider  string        `yaml:"pricingProvider"`
	PricingRegion    string        `yaml:"pricingRegion"`
	PricingAPIURL    string        `yaml:"pricingApiUrl"`
	PricingTimeout   time.Duration `yaml:"pricingTimeout"`
	MaxRecords       int           `yaml:"maxRecords"`
	Concurrency      int           `yaml:"concurrency"`
	PerRegionPricing bool          `yaml:"perRegionPricing"`
	FallbackHourly   float64       `yaml:"fallbackHourly"`

	// StaticPrices replaces the built-in SKU table of the static provider
	StaticPrices map[string]float64 `yaml:"staticPrices"`

	// Price cache
	CacheFile     string        `yaml:"cacheFile"`
	CacheTTL      time.Duration `yaml:"cacheTtl"`
	CacheDisabled bool          `yaml:"cacheDisabled"`

	// Quota
	SubscriptionID string        `yaml:"subscriptionId"`
	TenantID       string        `yaml:"tenantId"`
	ClientID       string        `yaml:"clientId"`
	ClientSecret   string        `yaml:"-"`
	AccessToken    string        `yaml:"-"`
	ManagementURL  string        `yaml:"managementUrl"`
	QuotaTimeout   time.Duration `yaml:"quotaTimeout"`

	// Storage
	StorageEnabled bool   `yaml:"storageEnabled"`
	DatabaseURL    string `yaml:"databaseUrl"`

	// Metrics
	MetricsFile    string `yaml:"metricsFile"`
	PushgatewayURL string `yaml:"pushgatewayUrl"`

	// Output
	OutputFormat string         `yaml:"output"` // text, json, csv
	Logging      logging.Config `yaml:"logging"`
}

// NewConfig creates a new configuration with defaults, overridden by the
// environment.
func NewConfig() *Config {
	c := defaults()
	c.applyEnv()
	return c
}

// Load applies defaults, then the YAML file at path (if any), then the
// environment.
func Load(path string) (*Config, error) {
	c := defaults()
	if path != "" {
		if err := c.LoadFile(path); err != nil {
			return nil, err
		}
	}
	c.applyEnv()
	return c, nil
}

// LoadFile overlays the settings present in a YAML file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		PricingProvider: "azure",
		PricingRegion:   "eastus",
		PricingTimeout:  10 * time.Second,
		MaxRecords:      10000,
		Concurrency:     4,
		CacheTTL:        time.Hour,
		QuotaTimeout:    8 * time.Second,
		StorageEnabled:  false,
		DatabaseURL:     "host=localhost port=5432 user=costuser password=devpassword dbname=costplanner sslmode=disable",
		OutputFormat:    "text",
		Logging:         logging.DefaultConfig(),
	}
}

func (c *Config) applyEnv() {
	c.PricingProvider = getEnv("PRICING_PROVIDER", c.PricingProvider)
	c.PricingRegion = getEnv("PRICING_REGION", c.PricingRegion)
	c.PricingAPIURL = getEnv("PRICING_API_URL", c.PricingAPIURL)
	c.PricingTimeout = getEnvDuration("PRICING_TIMEOUT", c.PricingTimeout)
	c.MaxRecords = getEnvInt("PRICING_MAX_RECORDS", c.MaxRecords)
	c.Concurrency = getEnvInt("PRICING_CONCURRENCY", c.Concurrency)
	c.PerRegionPricing = getEnvBool("PER_REGION_PRICING", c.PerRegionPricing)

	c.CacheFile = getEnv("PRICE_CACHE_FILE", c.CacheFile)
	c.CacheTTL = getEnvDuration("PRICE_CACHE_TTL", c.CacheTTL)
	c.CacheDisabled = getEnvBool("PRICE_CACHE_DISABLED", c.CacheDisabled)

	c.SubscriptionID = getEnv("AZURE_SUBSCRIPTION_ID", c.SubscriptionID)
	c.TenantID = getEnv("AZURE_TENANT_ID", c.TenantID)
	c.ClientID = getEnv("AZURE_CLIENT_ID", c.ClientID)
	c.ClientSecret = getEnv("AZURE_CLIENT_SECRET", c.ClientSecret)
	c.AccessToken = getEnv("AZURE_ACCESS_TOKEN", c.AccessToken)
	c.ManagementURL = getEnv("AZURE_MANAGEMENT_URL", c.ManagementURL)
	c.QuotaTimeout = getEnvDuration("QUOTA_TIMEOUT", c.QuotaTimeout)

	c.StorageEnabled = getEnvBool("STORAGE_ENABLED", c.StorageEnabled)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)

	c.MetricsFile = getEnv("METRICS_FILE", c.MetricsFile)
	c.PushgatewayURL = getEnv("PUSHGATEWAY_URL", c.PushgatewayURL)

	c.OutputFormat = getEnv("OUTPUT_FORMAT", c.OutputFormat)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	switch c.PricingProvider {
	case "azure", "default", "static":
	default:
		return fmt.Errorf("unknown pricing provider %q", c.PricingProvider)
	}
	if c.PricingRegion == "" {
		return fmt.Errorf("pricing region must be set")
	}
	if c.PricingTimeout <= 0 || c.QuotaTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.MaxRecords < 1 {
		return fmt.Errorf("max records must be >= 1")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.FallbackHourly < 0 {
		return fmt.Errorf("fallback price must be >= 0")
	}
	for sku, price := range c.StaticPrices {
		if price < 0 {
			return fmt.Errorf("static price for %s must be >= 0", sku)
		}
	}
	if c.StorageEnabled && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when storage is enabled")
	}
	switch c.OutputFormat {
	case "text", "json", "csv":
	default:
		return fmt.Errorf("unknown output format %q", c.OutputFormat)
	}
	return nil
}

// QuotaConfigured reports whether quota can be checked: a subscription plus
// either a token or a full service principal.
func (c *Config) QuotaConfigured() bool {
	if c.SubscriptionID == "" {
		return false
	}
	return c.AccessToken != "" || (c.TenantID != "" && c.ClientID != "" && c.ClientSecret != "")
}
