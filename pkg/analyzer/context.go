package analyzer

import (
	"github.com/opscart/region-cost-planner/pkg/models"
	"github.com/opscart/region-cost-planner/pkg/topology"
)

var planValidator = topology.NewValidator()

// ToDeploymentContext maps a deployment plan onto the normalized analysis
// input. A plan without a resolved topology is a configuration error.
func ToDeploymentContext(plan *models.DeploymentPlan) (*models.DeploymentContext, error) {
	if err := planValidator.ValidatePlan(plan); err != nil {
		return nil, err
	}

	t := plan.Topology
	dc := &models.DeploymentContext{
		Regions:           append([]string(nil), t.Regions...),
		Placements:        make(map[string]models.Placement, len(t.Placements)),
		DeploymentDefault: plan.DeploymentDefault,
		SizeMap:           make(map[string]string, len(plan.SizeMap)),
		ScaleMap:          make(map[string]int, len(plan.ScaleMap)),
		PricingRegion:     plan.PricingRegion,
		Currency:          models.CurrencyUSD,
	}
	for role, p := range t.Placements {
		dc.Placements[role] = p
	}
	for role, size := range plan.SizeMap {
		dc.SizeMap[role] = size
	}
	for role, n := range plan.ScaleMap {
		dc.ScaleMap[role] = n
	}
	if dc.PricingRegion == "" {
		dc.PricingRegion = models.DefaultPricingRegion
	}
	return dc, nil
}
