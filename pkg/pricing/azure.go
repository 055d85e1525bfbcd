package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/opscart/region-cost-planner/pkg/errors"
	"github.com/opscart/region-cost-planner/pkg/logging"
	"github.com/opscart/region-cost-planner/pkg/metrics"
	"github.com/opscart/region-cost-planner/pkg/models"
)

// Azure Retail Prices API
const azurePricingAPI = "https://prices.azure.com/api/retail/prices"

const (
	DefaultHTTPTimeout = 10 * time.Second
	DefaultMaxRecords  = 10000
	DefaultPageSize    = 1000
)

// AzureOptions configures an AzureProvider
type AzureOptions struct {
	BaseURL    string
	Currency   string
	Timeout    time.Duration
	MaxRecords int
	PageSize   int
	// Cache defaults to SharedCache()
	Cache      *PriceCache
	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// AzureProvider queries the Azure Retail Prices API
type AzureProvider struct {
	baseURL    string
	currency   string
	timeout    time.Duration
	maxRecords int
	pageSize   int
	cache      *PriceCache
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

type azurePriceResponse struct {
	BillingCurrency string           `json:"BillingCurrency"`
	Items           []azurePriceItem `json:"Items"`
	NextPageLink    string           `json:"NextPageLink"`
	Count           int              `json:"Count"`
}

type azurePriceItem struct {
	CurrencyCode  string  `json:"currencyCode"`
	RetailPrice   float64 `json:"retailPrice"`
	UnitPrice     float64 `json:"unitPrice"`
	UnitOfMeasure string  `json:"unitOfMeasure"`
	ServiceName   string  `json:"serviceName"`
	ProductName   string  `json:"productName"`
	SkuName       string  `json:"skuName"`
	ArmSkuName    string  `json:"armSkuName"`
	MeterName     string  `json:"meterName"`
	ArmRegionName string  `json:"armRegionName"`
	Type          string  `json:"type"`
}

func NewAzureProvider(opts AzureOptions) *AzureProvider {
	a := &AzureProvider{
		baseURL:    opts.BaseURL,
		currency:   opts.Currency,
		timeout:    opts.Timeout,
		maxRecords: opts.MaxRecords,
		pageSize:   opts.PageSize,
		cache:      opts.Cache,
		httpClient: opts.HTTPClient,
		logger:     logging.Named(opts.Logger, "azure-pricing"),
		metrics:    opts.Metrics,
	}
	if a.baseURL == "" {
		a.baseURL = azurePricingAPI
	}
	if a.currency == "" {
		a.currency = models.CurrencyUSD
	}
	if a.timeout <= 0 {
		a.timeout = DefaultHTTPTimeout
	}
	if a.maxRecords <= 0 {
		a.maxRecords = DefaultMaxRecords
	}
	if a.pageSize <= 0 {
		a.pageSize = DefaultPageSize
	}
	if a.cache == nil {
		a.cache = SharedCache()
	}
	if a.httpClient == nil {
		a.httpClient = &http.Client{}
	}
	return a
}

func (a *AzureProvider) Name() string {
	return "azure"
}

// Cache returns the cache the provider reads and writes.
func (a *AzureProvider) Cache() *PriceCache {
	return a.cache
}

func (a *AzureProvider) VirtualMachines(ctx context.Context, region string, skus []string) ([]models.PricingRecord, error) {
	return a.Prices(ctx, CategoryVirtualMachines, region, skus)
}

func (a *AzureProvider) Kubernetes(ctx context.Context, region string, skus []string) ([]models.PricingRecord, error) {
	return a.Prices(ctx, CategoryKubernetes, region, skus)
}

func (a *AzureProvider) ContainerApps(ctx context.Context, region string, skus []string) ([]models.PricingRecord, error) {
	return a.Prices(ctx, CategoryContainerApps, region, skus)
}

func (a *AzureProvider) LogIngestion(ctx context.Context, region string, skus []string) ([]models.PricingRecord, error) {
	return a.Prices(ctx, CategoryLogIngestion, region, skus)
}

func (a *AzureProvider) Storage(ctx context.Context, region string, skus []string) ([]models.PricingRecord, error) {
	return a.Prices(ctx, CategoryStorage, region, skus)
}

func (a *AzureProvider) LoadBalancer(ctx context.Context, region string, skus []string) ([]models.PricingRecord, error) {
	return a.Prices(ctx, CategoryLoadBalancer, region, skus)
}

// Prices returns the normalized consumption prices of a category in region,
// optionally restricted to skus. Results are served from and written to the
// price cache.
func (a *AzureProvider) Prices(ctx context.Context, category Category, region string, skus []string) ([]models.PricingRecord, error) {
	if !category.Valid() {
		return nil, apperrors.Newf(apperrors.TypeConfig, "unknown pricing category %q", category)
	}

	// Check cache first
	cacheKey := CacheKey(category, region, skus)
	if cached, ok := a.cache.GetRecords(cacheKey); ok {
		a.metrics.CacheLookup(string(category), true)
		return cached, nil
	}
	a.metrics.CacheLookup(string(category), false)

	filter := BuildFilter(category.Service(), region, skus)
	records, err := a.query(ctx, filter)
	if err != nil {
		a.metrics.PricingRequest(string(category), outcomeOf(err))
		return nil, fmt.Errorf("%s pricing for %s: %w", category, region, err)
	}
	a.metrics.PricingRequest(string(category), "success")
	a.metrics.PricingRecords(string(category), len(records))

	// Empty answers are not cached so a later run can pick up new SKUs
	if len(records) > 0 {
		a.cache.SetRecords(cacheKey, records)
	}
	return records, nil
}

// BuildFilter returns the OData filter for consumption prices of service in
// region.
func BuildFilter(service, region string, skus []string) string {
	parts := []string{
		fmt.Sprintf("serviceName eq '%s'", escapeOData(service)),
		fmt.Sprintf("armRegionName eq '%s'", escapeOData(region)),
		"priceType eq 'Consumption'",
	}
	if len(skus) > 0 {
		clauses := make([]string, 0, len(skus))
		for _, sku := range skus {
			clauses = append(clauses, fmt.Sprintf("armSkuName eq '%s'", escapeOData(sku)))
		}
		parts = append(parts, "("+strings.Join(clauses, " or ")+")")
	}
	return strings.Join(parts, " and ")
}

func escapeOData(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func (a *AzureProvider) query(ctx context.Context, filter string) ([]models.PricingRecord, error) {
	params := url.Values{}
	params.Set("$filter", filter)
	params.Set("currencyCode", "'"+a.currency+"'")
	params.Set("$top", strconv.Itoa(a.pageSize))
	next := a.baseURL + "?" + params.Encode()

	var records []models.PricingRecord
	pages := 0
	for next != "" {
		page, err := a.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}
		pages++

		for _, item := range page.Items {
			records = append(records, a.normalize(item))
		}
		next = page.NextPageLink

		if len(records) >= a.maxRecords {
			if len(records) > a.maxRecords || next != "" {
				a.logger.Warn("pricing record cap reached, using partial results",
					zap.Int("records", len(records)),
					zap.Int("pages", pages))
			}
			records = records[:a.maxRecords]
			break
		}
	}

	a.logger.Debug("pricing query complete",
		zap.String("filter", filter),
		zap.Int("records", len(records)),
		zap.Int("pages", pages))
	return records, nil
}

func (a *AzureProvider) fetchPage(ctx context.Context, pageURL string) (*azurePriceResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	path := pageURL
	if u, err := url.Parse(pageURL); err == nil {
		path = u.Path
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.TypeInternal, "failed to build pricing request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, a.transportError(ctx, callCtx, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apperrors.HTTPStatus(resp.StatusCode, path)
	}

	var priceResp azurePriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&priceResp); err != nil {
		if callCtx.Err() != nil {
			return nil, a.transportError(ctx, callCtx, path, err)
		}
		return nil, apperrors.Wrapf(apperrors.TypeParsing, err, "malformed pricing response from %s", path)
	}
	return &priceResp, nil
}

// transportError distinguishes a per-call timeout from other failures. A
// cancelled parent context is passed through unchanged.
func (a *AzureProvider) transportError(parent, call context.Context, path string, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	var netErr net.Error
	if errors.Is(call.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.Timeout(path, a.timeout, err)
	}
	return apperrors.Wrapf(apperrors.TypeNetwork, err, "request to %s failed", path).
		WithContext("path", path)
}

func (a *AzureProvider) normalize(item azurePriceItem) models.PricingRecord {
	sku := item.ArmSkuName
	if sku == "" {
		sku = item.SkuName
	}
	currency := item.CurrencyCode
	if currency == "" {
		currency = a.currency
	}
	return models.PricingRecord{
		Service:       item.ServiceName,
		SKU:           sku,
		Region:        item.ArmRegionName,
		PricePerHour:  NormalizeToHourly(item.RetailPrice, item.UnitOfMeasure),
		RetailPrice:   item.RetailPrice,
		Currency:      currency,
		UnitOfMeasure: item.UnitOfMeasure,
		MeterName:     item.MeterName,
		ProductName:   item.ProductName,
	}
}

func outcomeOf(err error) string {
	switch {
	case apperrors.IsType(err, apperrors.TypeTimeout):
		return "timeout"
	case apperrors.IsType(err, apperrors.TypeParsing):
		return "malformed"
	default:
		return "error"
	}
}
