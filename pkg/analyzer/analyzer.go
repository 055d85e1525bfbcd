// Package analyzer turns a deployment plan into a cost report: it prices every
// role placement and, when a subscription is given, checks regional quota.
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/opscart/region-cost-planner/pkg/errors"
	"github.com/opscart/region-cost-planner/pkg/logging"
	"github.com/opscart/region-cost-planner/pkg/metrics"
	"github.com/opscart/region-cost-planner/pkg/models"
	"github.com/opscart/region-cost-planner/pkg/pricing"
	"github.com/opscart/region-cost-planner/pkg/quota"
)

// DefaultConcurrency bounds parallel pricing and quota calls
const DefaultConcurrency = 4

// DefaultPeriods are reported when the caller names none
var DefaultPeriods = []models.Period{models.PeriodHour, models.PeriodDay, models.PeriodMonth}

// DefaultCategories maps a deployment target to the pricing category of its
// compute.
var DefaultCategories = map[string]pricing.Category{
	models.DeploymentAKS: pricing.CategoryKubernetes,
	models.DeploymentACA: pricing.CategoryContainerApps,
	models.DeploymentVM:  pricing.CategoryVirtualMachines,
}

// QuotaFetcher reads the quota of one region
type QuotaFetcher interface {
	FetchRegionQuota(ctx context.Context, subscriptionID, region string) *models.RegionQuota
}

// Config wires an Analyzer to its collaborators
type Config struct {
	Pricing pricing.Provider
	// Quota may be nil, in which case quota is never evaluated
	Quota     QuotaFetcher
	Evaluator *quota.Evaluator
	// Cache is saved once per run; defaults to the provider's cache
	Cache      *pricing.PriceCache
	Categories map[string]pricing.Category
	// DefaultDeployment applies to roles without a deployment target
	DefaultDeployment string
	Logger            *zap.Logger
	Metrics           *metrics.Metrics
}

// Options are the per-run settings of RunCostAnalysis
type Options struct {
	PricingRegion  string
	Periods        []models.Period
	SubscriptionID string
	Concurrency    int
	// PerRegionPricing prices each placement in its own region instead of
	// the single pricing region.
	PerRegionPricing bool
}

type Analyzer struct {
	pricing           pricing.Provider
	quota             QuotaFetcher
	evaluator         *quota.Evaluator
	cache             *pricing.PriceCache
	categories        map[string]pricing.Category
	defaultDeployment string
	logger            *zap.Logger
	metrics           *metrics.Metrics
	now               func() time.Time
}

func New(cfg Config) *Analyzer {
	a := &Analyzer{
		pricing:           cfg.Pricing,
		quota:             cfg.Quota,
		evaluator:         cfg.Evaluator,
		cache:             cfg.Cache,
		categories:        cfg.Categories,
		defaultDeployment: cfg.DefaultDeployment,
		logger:            logging.Named(cfg.Logger, "analyzer"),
		metrics:           cfg.Metrics,
		now:               time.Now,
	}
	if a.evaluator == nil {
		a.evaluator = quota.NewEvaluator(nil)
	}
	if a.categories == nil {
		a.categories = DefaultCategories
	}
	if a.defaultDeployment == "" {
		a.defaultDeployment = models.DeploymentAKS
	}
	if a.cache == nil {
		if c, ok := cfg.Pricing.(interface{ Cache() *pricing.PriceCache }); ok {
			a.cache = c.Cache()
		}
	}
	return a
}

// placement is one role in one region
type placement struct {
	role       string
	region     string
	deployment string
	category   pricing.Category
	sku        string
	instances  int
	query      priceQuery
}

// priceQuery identifies one price lookup shared by equivalent placements
type priceQuery struct {
	category pricing.Category
	region   string
	sku      string
}

type priceResult struct {
	record *models.PricingRecord
	err    error
}

// RunCostAnalysis prices every role placement of plan and, when a
// subscription is given, attaches quota shortages. A failed price marks that
// placement as an error without aborting the report. It returns an error only
// for an invalid plan, or when every placement failed and no quota could be
// read.
func (a *Analyzer) RunCostAnalysis(ctx context.Context, plan *models.DeploymentPlan, opts Options) (*models.CostReport, error) {
	start := a.now()
	defer func() { a.metrics.ObserveAnalysis(a.now().Sub(start)) }()

	if a.pricing == nil {
		return nil, apperrors.Config("analyzer has no pricing provider")
	}
	dc, err := ToDeploymentContext(plan)
	if err != nil {
		return nil, err
	}
	if opts.PricingRegion != "" {
		dc.PricingRegion = opts.PricingRegion
	}
	periods, err := resolvePeriods(opts.Periods)
	if err != nil {
		return nil, err
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	placements := a.placements(dc, opts.PerRegionPricing)

	var (
		prices map[priceQuery]priceResult
		quotas map[string]*models.RegionQuota
		wg     sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		prices = a.resolvePrices(ctx, placements, limit)
	}()
	if opts.SubscriptionID != "" && a.quota != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			quotas = a.fetchQuotas(ctx, opts.SubscriptionID, dc.Regions, limit)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &models.CostReport{
		ID:            uuid.NewString(),
		GeneratedAt:   a.now().UTC(),
		PricingRegion: dc.PricingRegion,
		Currency:      dc.Currency,
		Regions:       dc.Regions,
		Totals:        make(map[models.Period]decimal.Decimal, len(periods)),
	}

	hourly := decimal.Zero
	for _, p := range placements {
		res := prices[p.query]
		if res.err != nil {
			a.metrics.RoleFailed()
			a.logger.Warn("role pricing failed",
				zap.String("role", p.role),
				zap.String("region", p.region),
				zap.String("sku", p.sku),
				zap.Error(res.err))
			report.Errors = append(report.Errors, models.RoleError{
				Role:   p.role,
				Region: p.region,
				Error:  res.err.Error(),
			})
			continue
		}

		unit := decimal.NewFromFloat(res.record.PricePerHour)
		cost := unit.Mul(decimal.NewFromInt(int64(p.instances)))
		hourly = hourly.Add(cost)
		report.Roles = append(report.Roles, models.RoleCost{
			Role:          p.role,
			Region:        p.region,
			PricingRegion: p.query.region,
			Deployment:    p.deployment,
			Category:      string(p.category),
			SKU:           p.sku,
			Instances:     p.instances,
			UnitHourly:    unit,
			Hourly:        cost,
			MeterName:     res.record.MeterName,
		})
	}

	report.TotalHourlyCost = hourly
	report.TotalMonthlyCost = hourly.Mul(decimal.NewFromInt(models.PeriodMonth.Hours()))
	for _, period := range periods {
		report.Totals[period] = hourly.Mul(decimal.NewFromInt(period.Hours()))
	}

	if quotas != nil {
		a.attachQuota(report, dc, quotas)
	}

	if a.cache != nil {
		a.cache.Save()
	}

	if len(placements) > 0 && len(report.Roles) == 0 && !report.QuotaEvaluated {
		return nil, apperrors.Newf(apperrors.TypePricing,
			"no price resolved for any of %d role placement(s) and no quota data available", len(placements))
	}

	report.Summary = summarize(report, len(placements))
	a.logger.Info("cost analysis complete",
		zap.String("id", report.ID),
		zap.String("hourly", report.TotalHourlyCost.StringFixed(4)),
		zap.Int("placements", len(placements)),
		zap.Int("errors", len(report.Errors)),
		zap.Int("shortages", len(report.Shortages)))
	return report, nil
}

// placements expands the context into one entry per region and role, in a
// stable order. Roles with no instances are skipped.
func (a *Analyzer) placements(dc *models.DeploymentContext, perRegion bool) []placement {
	roles := make([]string, 0, len(dc.Placements))
	for role := range dc.Placements {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	var out []placement
	for _, region := range dc.Regions {
		for _, role := range roles {
			n := dc.InstanceCount(role)
			if n <= 0 {
				continue
			}
			deployment := dc.DeploymentFor(role)
			if deployment == "" {
				deployment = a.defaultDeployment
			}
			category := a.categories[deployment]
			sku := dc.SizeFor(role)
			if sku == "" {
				sku = category.DefaultSKU()
			}
			queryRegion := dc.PricingRegion
			if perRegion {
				queryRegion = region
			}
			out = append(out, placement{
				role:       role,
				region:     region,
				deployment: deployment,
				category:   category,
				sku:        sku,
				instances:  n,
				query: priceQuery{
					category: category,
					region:   strings.ToLower(queryRegion),
					sku:      sku,
				},
			})
		}
	}
	return out
}

// resolvePrices looks up each distinct query once, with at most limit calls
// in flight. A failed lookup never cancels its siblings.
func (a *Analyzer) resolvePrices(ctx context.Context, placements []placement, limit int) map[priceQuery]priceResult {
	results := make(map[priceQuery]priceResult)
	seen := make(map[priceQuery]bool)
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(limit)
	for _, p := range placements {
		q := p.query
		if seen[q] {
			continue
		}
		seen[q] = true

		g.Go(func() error {
			var res priceResult
			if q.category == "" {
				res.err = apperrors.Newf(apperrors.TypeConfig, "no pricing category for deployment %q", p.deployment)
			} else {
				res.record, res.err = pricing.ResolvePrice(ctx, a.pricing, q.category, q.region, q.sku)
			}
			mu.Lock()
			results[q] = res
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

func (a *Analyzer) fetchQuotas(ctx context.Context, subscriptionID string, regions []string, limit int) map[string]*models.RegionQuota {
	quotas := make(map[string]*models.RegionQuota, len(regions))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(limit)
	for _, region := range regions {
		g.Go(func() error {
			q := a.quota.FetchRegionQuota(ctx, subscriptionID, region)
			mu.Lock()
			quotas[region] = q
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return quotas
}

// attachQuota evaluates fetched quota. When no region answered, quota is
// unknown and the report carries no shortages.
func (a *Analyzer) attachQuota(report *models.CostReport, dc *models.DeploymentContext, quotas map[string]*models.RegionQuota) {
	available := false
	for _, q := range quotas {
		if q.Available() {
			available = true
			break
		}
	}
	if !available {
		a.logger.Warn("quota unavailable for every region, skipping evaluation")
		return
	}

	eval := a.evaluator.EvaluateRegions(dc, quotas)
	report.QuotaEvaluated = true
	report.Shortages = eval.Shortages
	report.QuotaSummary = eval.Summary
}

func resolvePeriods(periods []models.Period) ([]models.Period, error) {
	if len(periods) == 0 {
		return DefaultPeriods, nil
	}
	for _, p := range periods {
		if p.Hours() == 0 {
			return nil, apperrors.Newf(apperrors.TypeConfig, "unknown cost period %q", p)
		}
	}
	return periods, nil
}

func summarize(r *models.CostReport, placements int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Estimated %s %s/hour (%s/month) across %d region(s)",
		r.TotalHourlyCost.StringFixed(2), r.Currency, r.TotalMonthlyCost.StringFixed(2), len(r.Regions))
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "; %d of %d role placement(s) could not be priced", len(r.Errors), placements)
	}
	b.WriteString(".")
	if r.QuotaEvaluated {
		b.WriteString(" " + r.QuotaSummary)
	}
	return b.String()
}
