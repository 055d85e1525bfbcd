package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/opscart/region-cost-planner/pkg/errors"
	"github.com/opscart/region-cost-planner/pkg/metrics"
)

type fakeRetailAPI struct {
	server *httptest.Server
	calls  atomic.Int32
	filter atomic.Value
}

// newFakeRetailAPI serves pages from pages in order; every page except the
// last links to the next one.
func newFakeRetailAPI(t *testing.T, pages ...[]azurePriceItem) *fakeRetailAPI {
	t.Helper()
	f := &fakeRetailAPI{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if q := r.URL.Query().Get("$filter"); q != "" {
			f.filter.Store(q)
		}

		page := 0
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
		resp := azurePriceResponse{BillingCurrency: "USD"}
		if page < len(pages) {
			resp.Items = pages[page]
		}
		if page+1 < len(pages) {
			resp.NextPageLink = fmt.Sprintf("%s/api/retail/prices?page=%d", f.server.URL, page+1)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func newTestAzure(t *testing.T, baseURL string, opts AzureOptions) *AzureProvider {
	t.Helper()
	opts.BaseURL = baseURL + "/api/retail/prices"
	if opts.Cache == nil {
		opts.Cache = NewPriceCache(CacheOptions{Disabled: true})
	}
	return NewAzureProvider(opts)
}

func vmItem(sku, meter string, price float64, unit string) azurePriceItem {
	return azurePriceItem{
		CurrencyCode:  "USD",
		RetailPrice:   price,
		UnitOfMeasure: unit,
		ServiceName:   "Virtual Machines",
		ProductName:   "Virtual Machines Dsv3 Series",
		SkuName:       strings.TrimPrefix(sku, "Standard_"),
		ArmSkuName:    sku,
		MeterName:     meter,
		ArmRegionName: "eastus",
		Type:          "Consumption",
	}
}

func TestBuildFilter(t *testing.T) {
	got := BuildFilter("Virtual Machines", "eastus", []string{"Standard_D2s_v3", "Standard_D4s_v3"})
	want := "serviceName eq 'Virtual Machines' and armRegionName eq 'eastus' and priceType eq 'Consumption'" +
		" and (armSkuName eq 'Standard_D2s_v3' or armSkuName eq 'Standard_D4s_v3')"
	if got != want {
		t.Errorf("Unexpected filter:\n got: %s\nwant: %s", got, want)
	}

	if got := BuildFilter("Storage", "o'brien", nil); !strings.Contains(got, "armRegionName eq 'o''brien'") {
		t.Errorf("Expected quotes to be escaped, got %s", got)
	}
}

func TestAzureProviderPaginationAndNormalization(t *testing.T) {
	api := newFakeRetailAPI(t,
		[]azurePriceItem{vmItem("Standard_D2s_v3", "D2s v3", 0.096, "1 Hour")},
		[]azurePriceItem{vmItem("Standard_D2s_v3", "D2s v3 Reserved", 30, "1 Month")},
		[]azurePriceItem{vmItem("Standard_D2s_v3", "D2s v3 Daily", 48, "1 Day")},
	)
	provider := newTestAzure(t, api.server.URL, AzureOptions{})

	records, err := provider.VirtualMachines(context.Background(), "eastus", []string{"Standard_D2s_v3"})
	if err != nil {
		t.Fatalf("VirtualMachines failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records across pages, got %d", len(records))
	}
	if api.calls.Load() != 3 {
		t.Errorf("Expected 3 page requests, got %d", api.calls.Load())
	}

	if records[0].PricePerHour != 0.096 {
		t.Errorf("Expected hourly price unchanged, got %v", records[0].PricePerHour)
	}
	if got := records[1].PricePerHour; got != 30.0/720 {
		t.Errorf("Expected monthly price / 720, got %v", got)
	}
	if got := records[2].PricePerHour; got != 2 {
		t.Errorf("Expected daily price / 24, got %v", got)
	}
	if records[0].SKU != "Standard_D2s_v3" || records[0].Region != "eastus" {
		t.Errorf("Unexpected record: %+v", records[0])
	}

	filter, _ := api.filter.Load().(string)
	if !strings.Contains(filter, "serviceName eq 'Virtual Machines'") || !strings.Contains(filter, "priceType eq 'Consumption'") {
		t.Errorf("Unexpected filter sent: %s", filter)
	}
}

func TestAzureProviderRecordCap(t *testing.T) {
	var srv *httptest.Server
	var calls atomic.Int32
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		// Never-ending continuation
		json.NewEncoder(w).Encode(azurePriceResponse{
			Items: []azurePriceItem{
				vmItem("Standard_D2s_v3", "a", 1, "1 Hour"),
				vmItem("Standard_D2s_v3", "b", 1, "1 Hour"),
			},
			NextPageLink: fmt.Sprintf("%s/api/retail/prices?page=%d", srv.URL, n),
		})
	}))
	defer srv.Close()

	provider := newTestAzure(t, srv.URL, AzureOptions{MaxRecords: 5})
	records, err := provider.VirtualMachines(context.Background(), "eastus", nil)
	if err != nil {
		t.Fatalf("Expected partial results, got error: %v", err)
	}
	if len(records) != 5 {
		t.Errorf("Expected records capped at 5, got %d", len(records))
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 page requests before the cap, got %d", calls.Load())
	}
}

func TestAzureProviderRecordCapOnFinalPage(t *testing.T) {
	page := []azurePriceItem{
		vmItem("Standard_D2s_v3", "a", 1, "1 Hour"),
		vmItem("Standard_D2s_v3", "b", 1, "1 Hour"),
		vmItem("Standard_D2s_v3", "c", 1, "1 Hour"),
	}
	api := newFakeRetailAPI(t, page, page)
	provider := newTestAzure(t, api.server.URL, AzureOptions{MaxRecords: 4})

	records, err := provider.VirtualMachines(context.Background(), "eastus", nil)
	if err != nil {
		t.Fatalf("Expected partial results, got error: %v", err)
	}
	if len(records) != 4 {
		t.Errorf("Expected records capped at 4, got %d", len(records))
	}
	if api.calls.Load() != 2 {
		t.Errorf("Expected 2 page requests, got %d", api.calls.Load())
	}
}

func TestAzureProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	m := metrics.New()
	provider := newTestAzure(t, srv.URL, AzureOptions{Metrics: m})
	_, err := provider.Storage(context.Background(), "eastus", nil)
	if err == nil {
		t.Fatal("Expected error for status 429")
	}
	if !apperrors.IsType(err, apperrors.TypeNetwork) {
		t.Fatalf("Expected network error, got %v", err)
	}
	if apperrors.IsType(err, apperrors.TypeTimeout) {
		t.Error("HTTP error must not be reported as timeout")
	}

	e, _ := apperrors.As(err)
	if e.Context["status"] != http.StatusTooManyRequests {
		t.Errorf("Expected status in error context, got %v", e.Context["status"])
	}
	if e.Context["path"] != "/api/retail/prices" {
		t.Errorf("Expected path in error context, got %v", e.Context["path"])
	}
}

func TestAzureProviderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	provider := newTestAzure(t, srv.URL, AzureOptions{Timeout: 50 * time.Millisecond})
	_, err := provider.ContainerApps(context.Background(), "eastus", nil)
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if !apperrors.IsType(err, apperrors.TypeTimeout) {
		t.Fatalf("Expected timeout error, got %v", err)
	}

	var timeoutErr *apperrors.Error
	for cur := err; cur != nil; {
		e, ok := apperrors.As(cur)
		if !ok {
			break
		}
		if e.Type == apperrors.TypeTimeout {
			timeoutErr = e
			break
		}
		cur = e.Cause
	}
	if timeoutErr == nil || timeoutErr.Context["timeout"] != 50*time.Millisecond {
		t.Errorf("Expected configured timeout in error context, got %+v", timeoutErr)
	}
}

func TestAzureProviderMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	provider := newTestAzure(t, srv.URL, AzureOptions{})
	_, err := provider.LoadBalancer(context.Background(), "eastus", nil)
	if !apperrors.IsType(err, apperrors.TypeParsing) {
		t.Errorf("Expected parsing error, got %v", err)
	}
}

func TestAzureProviderUsesCache(t *testing.T) {
	api := newFakeRetailAPI(t, []azurePriceItem{vmItem("Standard_D4s_v3", "D4s v3", 0.192, "1 Hour")})
	cache, file := newTestCache(t, time.Hour)
	provider := newTestAzure(t, api.server.URL, AzureOptions{Cache: cache})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		records, err := provider.Kubernetes(ctx, "eastus", []string{"Standard_D4s_v3"})
		if err != nil {
			t.Fatalf("Kubernetes failed: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("Expected 1 record, got %d", len(records))
		}
	}
	if api.calls.Load() != 1 {
		t.Errorf("Expected a single API call with caching, got %d", api.calls.Load())
	}

	// Categories sharing a service keep separate cache keys
	if _, err := provider.VirtualMachines(ctx, "eastus", []string{"Standard_D4s_v3"}); err != nil {
		t.Fatal(err)
	}
	if api.calls.Load() != 2 {
		t.Errorf("Expected a second call for a different category, got %d", api.calls.Load())
	}

	cache.Save()
	reloaded := NewPriceCache(CacheOptions{File: file, TTL: time.Hour})
	if _, ok := reloaded.GetRecords(CacheKey(CategoryKubernetes, "eastus", []string{"Standard_D4s_v3"})); !ok {
		t.Error("Expected records persisted under the category cache key")
	}
}

func TestAzureProviderEmptyResultNotCached(t *testing.T) {
	api := newFakeRetailAPI(t)
	cache, _ := newTestCache(t, time.Hour)
	provider := newTestAzure(t, api.server.URL, AzureOptions{Cache: cache})

	for i := 0; i < 2; i++ {
		records, err := provider.LogIngestion(context.Background(), "eastus", nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 0 {
			t.Errorf("Expected no records, got %d", len(records))
		}
	}
	if api.calls.Load() != 2 {
		t.Errorf("Expected empty answers to be re-queried, got %d calls", api.calls.Load())
	}
}

func TestAzureProviderUnknownCategory(t *testing.T) {
	provider := newTestAzure(t, "http://127.0.0.1:0", AzureOptions{})
	_, err := provider.Prices(context.Background(), Category("mainframe"), "eastus", nil)
	if !apperrors.IsType(err, apperrors.TypeConfig) {
		t.Errorf("Expected config error for unknown category, got %v", err)
	}
}

func TestCacheKeyIsOrderIndependent(t *testing.T) {
	a := CacheKey(CategoryVirtualMachines, "EastUS", []string{"b", "a"})
	b := CacheKey(CategoryVirtualMachines, "eastus", []string{"a", "b"})
	if a != b {
		t.Errorf("Expected equal keys, got %q and %q", a, b)
	}
	if a == CacheKey(CategoryKubernetes, "eastus", []string{"a", "b"}) {
		t.Error("Expected category to be part of the key")
	}
}
