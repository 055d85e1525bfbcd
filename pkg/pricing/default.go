package pricing

import (
	"context"
	"strings"

	"github.com/opscart/region-cost-planner/pkg/models"
)

// DefaultProvider answers from a fixed SKU price table. It serves offline
// runs and regions the retail API does not cover.
type DefaultProvider struct {
	prices   map[string]float64
	fallback float64
}

// DefaultHourlyPrices is a small table of Linux pay-as-you-go prices (USD/hr)
var DefaultHourlyPrices = map[string]float64{
	"Standard_B2s":    0.0416,
	"Standard_D2s_v3": 0.096,
	"Standard_D4s_v3": 0.192,
	"Standard_D8s_v3": 0.384,
	"Standard_E4s_v3": 0.252,
	"Standard_F4s_v2": 0.169,
}

// NewDefaultProvider creates a table-backed provider. SKUs missing from
// prices are quoted at fallback, or omitted when fallback is 0.
func NewDefaultProvider(prices map[string]float64, fallback float64) *DefaultProvider {
	if prices == nil {
		prices = DefaultHourlyPrices
	}
	d := &DefaultProvider{
		prices:   make(map[string]float64, len(prices)),
		fallback: fallback,
	}
	for sku, price := range prices {
		if sku == "" || price < 0 {
			continue
		}
		d.prices[strings.ToLower(sku)] = price
	}
	return d
}

func (d *DefaultProvider) Name() string {
	return "default"
}

func (d *DefaultProvider) Prices(ctx context.Context, category Category, region string, skus []string) ([]models.PricingRecord, error) {
	if len(skus) == 0 {
		if sku := category.DefaultSKU(); sku != "" {
			skus = []string{sku}
		}
	}

	var records []models.PricingRecord
	for _, sku := range skus {
		price, ok := d.prices[strings.ToLower(sku)]
		if !ok {
			if d.fallback == 0 {
				continue
			}
			price = d.fallback
		}
		records = append(records, models.PricingRecord{
			Service:       category.Service(),
			SKU:           sku,
			Region:        region,
			PricePerHour:  price,
			RetailPrice:   price,
			Currency:      models.CurrencyUSD,
			UnitOfMeasure: "1 Hour",
			MeterName:     "static",
		})
	}
	return records, nil
}
