package pricing

import (
	"context"
	"testing"
)

func TestDefaultProvider(t *testing.T) {
	provider := NewDefaultProvider(nil, 0)

	if provider.Name() != "default" {
		t.Errorf("Expected provider name 'default', got %s", provider.Name())
	}

	ctx := context.Background()
	records, err := provider.Prices(ctx, CategoryVirtualMachines, "eastus", []string{"standard_d4s_v3"})
	if err != nil {
		t.Fatalf("Prices failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].PricePerHour != 0.192 {
		t.Errorf("Expected 0.192/hr, got %v", records[0].PricePerHour)
	}
	if records[0].Currency != "USD" {
		t.Errorf("Expected currency 'USD', got %s", records[0].Currency)
	}
}

func TestDefaultProviderCategoryDefaultSKU(t *testing.T) {
	provider := NewDefaultProvider(nil, 0)

	records, err := provider.Prices(context.Background(), CategoryKubernetes, "westus2", nil)
	if err != nil {
		t.Fatalf("Prices failed: %v", err)
	}
	if len(records) != 1 || records[0].SKU != "Standard_D4s_v3" {
		t.Errorf("Expected default kubernetes node SKU, got %+v", records)
	}
}

func TestDefaultProviderFallback(t *testing.T) {
	noFallback := NewDefaultProvider(map[string]float64{"a": 1}, 0)
	records, _ := noFallback.Prices(context.Background(), CategoryVirtualMachines, "eastus", []string{"unknown"})
	if len(records) != 0 {
		t.Errorf("Expected no records without fallback, got %d", len(records))
	}

	withFallback := NewDefaultProvider(map[string]float64{"a": 1}, 0.5)
	records, _ = withFallback.Prices(context.Background(), CategoryVirtualMachines, "eastus", []string{"unknown"})
	if len(records) != 1 || records[0].PricePerHour != 0.5 {
		t.Errorf("Expected fallback price 0.5, got %+v", records)
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		wantName string
		wantErr  bool
	}{
		{"nil config is azure", nil, "azure", false},
		{"azure", &Config{Provider: "azure", Azure: AzureOptions{Cache: NewPriceCache(CacheOptions{Disabled: true})}}, "azure", false},
		{"static alias", &Config{Provider: "static"}, "default", false},
		{"unknown", &Config{Provider: "oracle"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.config == nil || tt.config.Provider == "" {
				SetSharedCache(NewPriceCache(CacheOptions{Disabled: true}))
				defer SetSharedCache(nil)
			}
			p, err := NewProvider(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Expected provider %s, got %s", tt.wantName, p.Name())
			}
		})
	}
}
