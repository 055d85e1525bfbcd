package pricing

import (
	"fmt"
)

// Config selects and configures a pricing provider
type Config struct {
	Provider       string
	Azure          AzureOptions
	StaticPrices   map[string]float64
	FallbackHourly float64
}

// NewProvider creates a pricing provider by name: "azure" (default) or
// "default" for the static table.
func NewProvider(config *Config) (Provider, error) {
	if config == nil {
		config = &Config{}
	}

	switch config.Provider {
	case "azure", "":
		return NewAzureProvider(config.Azure), nil
	case "default", "static":
		return NewDefaultProvider(config.StaticPrices, config.FallbackHourly), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", config.Provider)
	}
}
