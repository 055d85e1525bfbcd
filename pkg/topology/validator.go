package topology

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/opscart/region-cost-planner/pkg/errors"
	"github.com/opscart/region-cost-planner/pkg/models"
)

type Validator struct {
	validate *validator.Validate
}

// instantiate validator
func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(),
	}
}

// ValidateTopology checks regions are present and counts are non-negative.
func (v *Validator) ValidateTopology(t *models.ResolvedTopology) error {
	if t == nil {
		return apperrors.Config("deployment plan has no resolved topology")
	}
	if err := v.validate.Struct(t); err != nil {
		return apperrors.Wrap(apperrors.TypeConfig, "invalid topology: "+describe(err), err)
	}
	return nil
}

// ValidatePlan validates the topology plus the plan-level settings.
func (v *Validator) ValidatePlan(p *models.DeploymentPlan) error {
	if p == nil {
		return apperrors.Config("deployment plan is nil")
	}
	if err := v.ValidateTopology(p.Topology); err != nil {
		return err
	}
	if err := v.validate.Var(p.DeploymentDefault, "omitempty,oneof=aks aca vm"); err != nil {
		return apperrors.Newf(apperrors.TypeConfig, "invalid default deployment %q", p.DeploymentDefault)
	}
	for role, n := range p.ScaleMap {
		if n < 0 {
			return apperrors.Newf(apperrors.TypeConfig, "negative scale %d for role %s", n, role)
		}
	}
	return nil
}

// describe flattens validation errors into "Field: tag" pairs.
func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
