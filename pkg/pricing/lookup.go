package pricing

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/opscart/region-cost-planner/pkg/errors"
	"github.com/opscart/region-cost-planner/pkg/logging"
	"github.com/opscart/region-cost-planner/pkg/models"
)

// ErrNoPrice is returned when a query succeeds but yields no records
var ErrNoPrice = apperrors.New(apperrors.TypePricing, "no matching price")

// ResolvePrice queries category in region for sku and picks one record: a
// standard-tier exact SKU match, any exact match, then the first result.
// Network faults are returned as errors; an empty answer wraps ErrNoPrice.
func ResolvePrice(ctx context.Context, p Provider, category Category, region, sku string) (*models.PricingRecord, error) {
	var skus []string
	if sku != "" {
		skus = []string{sku}
	}

	records, err := p.Prices(ctx, category, region, skus)
	if err != nil {
		return nil, err
	}

	rec := pickRecord(records, sku)
	if rec == nil {
		return nil, fmt.Errorf("%s %q in %s: %w", category, sku, region, ErrNoPrice)
	}
	return rec, nil
}

func pickRecord(records []models.PricingRecord, sku string) *models.PricingRecord {
	if len(records) == 0 {
		return nil
	}

	var exact *models.PricingRecord
	for i := range records {
		if sku == "" || !strings.EqualFold(records[i].SKU, sku) {
			continue
		}
		if isStandardMeter(records[i]) {
			return &records[i]
		}
		if exact == nil {
			exact = &records[i]
		}
	}
	if exact != nil {
		return exact
	}
	return &records[0]
}

// isStandardMeter filters out spot, low priority and Windows-licensed meters.
func isStandardMeter(r models.PricingRecord) bool {
	meter := strings.ToLower(r.MeterName)
	if strings.Contains(meter, "spot") || strings.Contains(meter, "low priority") {
		return false
	}
	return !strings.Contains(strings.ToLower(r.ProductName), "windows")
}

// LookupPrice resolves the price of a resource type (vm, aks, aca, logs,
// storage, lb) and SKU in region. Pricing is advisory: every failure is
// logged and reported as nil.
func LookupPrice(ctx context.Context, p Provider, resourceType, region, sku string) *models.PricingRecord {
	logger := logging.Named(nil, "pricing")

	category, ok := CategoryForResource(resourceType)
	if !ok {
		logger.Warn("unknown resource type", zap.String("resourceType", resourceType))
		return nil
	}

	rec, err := ResolvePrice(ctx, p, category, region, sku)
	if err != nil {
		logger.Warn("price lookup failed",
			zap.String("resourceType", resourceType),
			zap.String("region", region),
			zap.String("sku", sku),
			zap.Error(err))
		return nil
	}
	return rec
}
