package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewConfigDefaults(t *testing.T) {
	// Clear any existing env vars
	os.Unsetenv("PRICING_REGION")
	os.Unsetenv("PRICE_CACHE_TTL")
	os.Unsetenv("PRICING_CONCURRENCY")
	os.Unsetenv("STORAGE_ENABLED")

	cfg := NewConfig()

	if cfg.PricingRegion != "eastus" {
		t.Errorf("Expected default pricing region eastus, got %s", cfg.PricingRegion)
	}

	if cfg.CacheTTL != time.Hour {
		t.Errorf("Expected cache TTL 1h, got %v", cfg.CacheTTL)
	}

	if cfg.QuotaTimeout != 8*time.Second {
		t.Errorf("Expected quota timeout 8s, got %v", cfg.QuotaTimeout)
	}

	if cfg.MaxRecords != 10000 {
		t.Errorf("Expected record cap 10000, got %d", cfg.MaxRecords)
	}

	if cfg.StorageEnabled {
		t.Error("Expected storage disabled by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate, got %v", err)
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv("PRICING_REGION", "westeurope")
	t.Setenv("PRICE_CACHE_TTL", "30m")
	t.Setenv("PRICE_CACHE_DISABLED", "1")
	t.Setenv("PRICING_CONCURRENCY", "8")
	t.Setenv("AZURE_SUBSCRIPTION_ID", "sub-1")
	t.Setenv("AZURE_ACCESS_TOKEN", "tok")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := NewConfig()

	if cfg.PricingRegion != "westeurope" {
		t.Errorf("Expected pricing region from env, got %s", cfg.PricingRegion)
	}

	if cfg.CacheTTL != 30*time.Minute {
		t.Errorf("Expected TTL 30m from env, got %v", cfg.CacheTTL)
	}

	if !cfg.CacheDisabled {
		t.Error("Expected cache disabled from env")
	}

	if cfg.Concurrency != 8 {
		t.Errorf("Expected concurrency 8, got %d", cfg.Concurrency)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Logging.Level)
	}

	if !cfg.QuotaConfigured() {
		t.Error("Expected quota configured with subscription and token")
	}
}

func TestConfigInvalidEnvKeepsDefault(t *testing.T) {
	t.Setenv("PRICE_CACHE_TTL", "soon")
	t.Setenv("PRICING_CONCURRENCY", "many")

	cfg := NewConfig()

	if cfg.CacheTTL != time.Hour {
		t.Errorf("Expected default TTL for unparsable value, got %v", cfg.CacheTTL)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Expected default concurrency for unparsable value, got %d", cfg.Concurrency)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cost-plan.yaml")
	body := `
pricingRegion: northeurope
pricingTimeout: 3s
cacheFile: /tmp/prices.json
perRegionPricing: true
output: json
staticPrices:
  Standard_D4s_v3: 0.2
  Standard_L8s_v3: 0.624
logging:
  level: warn
  format: json
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PRICING_PROVIDER", "static")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.PricingRegion != "northeurope" || cfg.PricingTimeout != 3*time.Second {
		t.Errorf("Expected file values, got %s %v", cfg.PricingRegion, cfg.PricingTimeout)
	}
	if !cfg.PerRegionPricing || cfg.OutputFormat != "json" || cfg.CacheFile != "/tmp/prices.json" {
		t.Errorf("Unexpected file overlay %+v", cfg)
	}
	if len(cfg.StaticPrices) != 2 || cfg.StaticPrices["Standard_L8s_v3"] != 0.624 {
		t.Errorf("Unexpected static prices %v", cfg.StaticPrices)
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.Format != "json" {
		t.Errorf("Unexpected logging config %+v", cfg.Logging)
	}
	// Untouched keys keep their defaults
	if cfg.QuotaTimeout != 8*time.Second {
		t.Errorf("Expected default quota timeout, got %v", cfg.QuotaTimeout)
	}
	// Environment wins over the file
	if cfg.PricingProvider != "static" {
		t.Errorf("Expected provider from env, got %s", cfg.PricingProvider)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("pricingTimeout: [1, 2"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"static provider", func(c *Config) { c.PricingProvider = "static" }, false},
		{"unknown provider", func(c *Config) { c.PricingProvider = "aws" }, true},
		{"empty region", func(c *Config) { c.PricingRegion = "" }, true},
		{"zero timeout", func(c *Config) { c.QuotaTimeout = 0 }, true},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, true},
		{"zero record cap", func(c *Config) { c.MaxRecords = 0 }, true},
		{"negative fallback", func(c *Config) { c.FallbackHourly = -1 }, true},
		{"negative static price", func(c *Config) { c.StaticPrices = map[string]float64{"Standard_B2s": -0.1} }, true},
		{"storage without url", func(c *Config) { c.StorageEnabled = true; c.DatabaseURL = "" }, true},
		{"unknown output", func(c *Config) { c.OutputFormat = "html" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestQuotaConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"nothing", Config{}, false},
		{"token without subscription", Config{AccessToken: "t"}, false},
		{"subscription and token", Config{SubscriptionID: "s", AccessToken: "t"}, true},
		{"partial principal", Config{SubscriptionID: "s", TenantID: "t", ClientID: "c"}, false},
		{"full principal", Config{SubscriptionID: "s", TenantID: "t", ClientID: "c", ClientSecret: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.QuotaConfigured(); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
