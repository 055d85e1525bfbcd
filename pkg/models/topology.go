package models

// Role names with a fixed meaning in quota evaluation.
const (
	RoleValidators = "validators"
	RoleRPCNodes   = "rpcNodes"
)

// Deployment targets a role can run on.
const (
	DeploymentAKS = "aks"
	DeploymentACA = "aca"
	DeploymentVM  = "vm"
)

// Currency used for all estimates
const CurrencyUSD = "USD"

// DefaultPricingRegion is queried when the plan does not name one
const DefaultPricingRegion = "eastus"

// Placement is one role's instance count within each region of a topology
type Placement struct {
	Replicas      int    `json:"replicas,omitempty" yaml:"replicas,omitempty" validate:"gte=0"`
	InstanceCount int    `json:"instanceCount,omitempty" yaml:"instanceCount,omitempty" validate:"gte=0"`
	Deployment    string `json:"deployment,omitempty" yaml:"deployment,omitempty" validate:"omitempty,oneof=aks aca vm"`
	Size          string `json:"size,omitempty" yaml:"size,omitempty"`
}

// Count returns replicas when set, otherwise the instance count.
func (p Placement) Count() int {
	if p.Replicas > 0 {
		return p.Replicas
	}
	return p.InstanceCount
}

// ResolvedTopology is produced by the topology resolver and read-only here
type ResolvedTopology struct {
	Regions    []string             `json:"regions" yaml:"regions" validate:"required,min=1,dive,required"`
	Placements map[string]Placement `json:"placements" yaml:"placements" validate:"dive"`
}

// DeploymentPlan carries a resolved topology plus the deployment settings
// chosen alongside it.
type DeploymentPlan struct {
	Topology          *ResolvedTopology `json:"topology" yaml:"topology"`
	DeploymentDefault string            `json:"deployment,omitempty" yaml:"deployment,omitempty"`
	SizeMap           map[string]string `json:"sizes,omitempty" yaml:"sizes,omitempty"`
	ScaleMap          map[string]int    `json:"scale,omitempty" yaml:"scale,omitempty"`
	PricingRegion     string            `json:"pricingRegion,omitempty" yaml:"pricingRegion,omitempty"`
}

// DeploymentContext is the normalized input of one analysis run
type DeploymentContext struct {
	Regions           []string
	Placements        map[string]Placement
	DeploymentDefault string
	SizeMap           map[string]string
	ScaleMap          map[string]int
	PricingRegion     string
	Currency          string
}

// InstanceCount returns the per-region instance count of role, honouring
// scale overrides.
func (c *DeploymentContext) InstanceCount(role string) int {
	if n, ok := c.ScaleMap[role]; ok {
		return n
	}
	return c.Placements[role].Count()
}

// DeploymentFor returns the deployment target of role.
func (c *DeploymentContext) DeploymentFor(role string) string {
	if d := c.Placements[role].Deployment; d != "" {
		return d
	}
	return c.DeploymentDefault
}

// SizeFor returns the configured SKU of role, or "" if none.
func (c *DeploymentContext) SizeFor(role string) string {
	if s, ok := c.SizeMap[role]; ok && s != "" {
		return s
	}
	return c.Placements[role].Size
}
