package quota

import (
	"fmt"

	"github.com/opscart/region-cost-planner/pkg/models"
)

const (
	// SummarySufficient is reported when no shortage was found
	SummarySufficient = "All required quotas appear sufficient."
	summaryShortages  = "%d quota shortage(s) detected."
)

// NamespaceRule derives the per-region requirement of one namespace
type NamespaceRule struct {
	Namespace models.Namespace
	// Roles whose instance counts are summed into the requirement
	Roles []string
	// Baseline is added to the role total
	Baseline float64
	// RequireData suppresses the shortage when the region returned no
	// usage records for the namespace.
	RequireData bool
}

// DefaultRules maps validators to compute and RPC nodes to network, and
// assumes one storage account per region.
var DefaultRules = []NamespaceRule{
	{Namespace: models.NamespaceCompute, Roles: []string{models.RoleValidators}},
	{Namespace: models.NamespaceNetwork, Roles: []string{models.RoleRPCNodes}},
	{Namespace: models.NamespaceStorage, Baseline: 1, RequireData: true},
}

// Evaluation is the result of comparing a plan against quota
type Evaluation struct {
	Shortages []models.QuotaShortage `json:"shortages"`
	Summary   string                 `json:"summary"`
}

// Evaluator compares required instance counts against available quota. It
// holds no state besides its rules and performs no I/O.
type Evaluator struct {
	Rules []NamespaceRule
}

// NewEvaluator returns an evaluator using rules, or DefaultRules when empty.
func NewEvaluator(rules []NamespaceRule) *Evaluator {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Evaluator{Rules: rules}
}

// EvaluateQuota evaluates a flat usage sequence using DefaultRules.
func EvaluateQuota(dc *models.DeploymentContext, usages []models.QuotaUsage) Evaluation {
	return NewEvaluator(nil).Evaluate(dc, usages)
}

// Evaluate checks every region of dc against usages. A namespace with no
// records in a region counts as zero available unless its rule requires data.
func (e *Evaluator) Evaluate(dc *models.DeploymentContext, usages []models.QuotaUsage) Evaluation {
	var shortages []models.QuotaShortage
	for _, region := range dc.Regions {
		for _, rule := range e.Rules {
			available, records := availableIn(usages, region, rule.Namespace)
			if rule.RequireData && records == 0 {
				continue
			}
			if s, ok := rule.check(dc, region, available); ok {
				shortages = append(shortages, s)
			}
		}
	}
	return newEvaluation(shortages)
}

// EvaluateRegions checks fetched region quotas. Namespaces whose fetch failed
// are unknown and never produce a shortage. A namespace that answered with no
// records is known to be empty and counts as zero available, except where its
// rule requires data.
func (e *Evaluator) EvaluateRegions(dc *models.DeploymentContext, quotas map[string]*models.RegionQuota) Evaluation {
	var shortages []models.QuotaShortage
	for _, region := range dc.Regions {
		q, ok := quotas[region]
		if !ok || q == nil {
			continue
		}
		for _, rule := range e.Rules {
			nr, ok := q.Namespaces[rule.Namespace]
			if !ok || !nr.Available {
				continue
			}
			if rule.RequireData && len(nr.Usages) == 0 {
				continue
			}
			available, _ := availableIn(nr.Usages, region, rule.Namespace)
			if s, ok := rule.check(dc, region, available); ok {
				shortages = append(shortages, s)
			}
		}
	}
	return newEvaluation(shortages)
}

// EvaluateRegionQuotas evaluates fetched region quotas using DefaultRules.
func EvaluateRegionQuotas(dc *models.DeploymentContext, quotas map[string]*models.RegionQuota) Evaluation {
	return NewEvaluator(nil).EvaluateRegions(dc, quotas)
}

func (r NamespaceRule) required(dc *models.DeploymentContext) float64 {
	need := r.Baseline
	for _, role := range r.Roles {
		need += float64(dc.InstanceCount(role))
	}
	return need
}

func (r NamespaceRule) check(dc *models.DeploymentContext, region string, available float64) (models.QuotaShortage, bool) {
	need := r.required(dc)
	if available >= need {
		return models.QuotaShortage{}, false
	}
	return models.QuotaShortage{
		Namespace: r.Namespace,
		Region:    region,
		Required:  need,
		Available: available,
		Deficit:   need - available,
	}, true
}

func availableIn(usages []models.QuotaUsage, region string, ns models.Namespace) (float64, int) {
	var sum float64
	var n int
	for _, u := range usages {
		if u.Namespace != ns || u.Region != region {
			continue
		}
		sum += u.Remaining()
		n++
	}
	return sum, n
}

func newEvaluation(shortages []models.QuotaShortage) Evaluation {
	if len(shortages) == 0 {
		return Evaluation{Summary: SummarySufficient}
	}
	return Evaluation{
		Shortages: shortages,
		Summary:   fmt.Sprintf(summaryShortages, len(shortages)),
	}
}
