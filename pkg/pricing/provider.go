package pricing

import (
	"context"
	"sort"
	"strings"

	"github.com/opscart/region-cost-planner/pkg/models"
)

// Provider defines the interface for retail pricing data
type Provider interface {
	Prices(ctx context.Context, category Category, region string, skus []string) ([]models.PricingRecord, error)
	Name() string
}

// Category is a priced resource family
type Category string

const (
	CategoryVirtualMachines Category = "virtual-machines"
	CategoryKubernetes      Category = "kubernetes"
	CategoryContainerApps   Category = "container-apps"
	CategoryLogIngestion    Category = "log-ingestion"
	CategoryStorage         Category = "storage"
	CategoryLoadBalancer    Category = "load-balancer"
)

// Categories lists every supported category
var Categories = []Category{
	CategoryVirtualMachines,
	CategoryKubernetes,
	CategoryContainerApps,
	CategoryLogIngestion,
	CategoryStorage,
	CategoryLoadBalancer,
}

// AKS node pools are billed as plain virtual machines.
var categoryServices = map[Category]string{
	CategoryVirtualMachines: "Virtual Machines",
	CategoryKubernetes:      "Virtual Machines",
	CategoryContainerApps:   "Azure Container Apps",
	CategoryLogIngestion:    "Log Analytics",
	CategoryStorage:         "Storage",
	CategoryLoadBalancer:    "Load Balancer",
}

var categoryDefaultSKUs = map[Category]string{
	CategoryVirtualMachines: "Standard_D2s_v3",
	CategoryKubernetes:      "Standard_D4s_v3",
}

// Service returns the retail service name queried for the category.
func (c Category) Service() string {
	return categoryServices[c]
}

// DefaultSKU returns the SKU assumed when a role names none, or "".
func (c Category) DefaultSKU() string {
	return categoryDefaultSKUs[c]
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categoryServices[c]
	return ok
}

var resourceCategories = map[string]Category{
	"vm":      CategoryVirtualMachines,
	"aks":     CategoryKubernetes,
	"aca":     CategoryContainerApps,
	"logs":    CategoryLogIngestion,
	"storage": CategoryStorage,
	"lb":      CategoryLoadBalancer,
}

// CategoryForResource maps a short resource type (vm, aks, aca, logs,
// storage, lb) to its category.
func CategoryForResource(resourceType string) (Category, bool) {
	c, ok := resourceCategories[strings.ToLower(resourceType)]
	return c, ok
}

// CacheKey builds the cache key for a category query.
func CacheKey(category Category, region string, skus []string) string {
	key := string(category) + "|" + strings.ToLower(region)
	if len(skus) > 0 {
		sorted := append([]string(nil), skus...)
		sort.Strings(sorted)
		key += "|" + strings.Join(sorted, ",")
	}
	return key
}
