// Package topology loads deployment plans from YAML, JSON or HCL files.
package topology

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"

	apperrors "github.com/opscart/region-cost-planner/pkg/errors"
	"github.com/opscart/region-cost-planner/pkg/models"
)

// Format is a plan file syntax
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatHCL  Format = "hcl"
)

// FormatFor infers the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", apperrors.Newf(apperrors.TypeConfig, "unsupported plan file %s (want .yaml, .json or .hcl)", path)
	}
}

// LoadFile reads and validates a deployment plan.
func LoadFile(path string) (*models.DeploymentPlan, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.TypeConfig, err, "failed to read plan %s", path)
	}
	return Parse(data, format, path)
}

// Parse decodes data in format and validates the result. filename is only
// used in diagnostics.
func Parse(data []byte, format Format, filename string) (*models.DeploymentPlan, error) {
	var (
		plan *models.DeploymentPlan
		err  error
	)
	switch format {
	case FormatYAML, FormatJSON:
		// JSON documents are valid YAML
		plan, err = parseYAML(data)
	case FormatHCL:
		plan, err = parseHCL(data, filename)
	default:
		return nil, apperrors.Newf(apperrors.TypeConfig, "unknown plan format %q", format)
	}
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.TypeParsing, err, "failed to parse plan %s", filename)
	}

	if err := NewValidator().ValidatePlan(plan); err != nil {
		return nil, fmt.Errorf("plan %s: %w", filename, err)
	}
	return plan, nil
}

func parseYAML(data []byte) (*models.DeploymentPlan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var plan models.DeploymentPlan
	if err := dec.Decode(&plan); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		return nil, err
	}
	return &plan, nil
}

type hclPlan struct {
	Regions       []string          `hcl:"regions"`
	PricingRegion string            `hcl:"pricing_region,optional"`
	Deployment    string            `hcl:"deployment,optional"`
	Sizes         map[string]string `hcl:"sizes,optional"`
	Scale         map[string]int    `hcl:"scale,optional"`
	Placements    []hclPlacement    `hcl:"placement,block"`
}

type hclPlacement struct {
	Role          string `hcl:"role,label"`
	Replicas      int    `hcl:"replicas,optional"`
	InstanceCount int    `hcl:"instance_count,optional"`
	Deployment    string `hcl:"deployment,optional"`
	Size          string `hcl:"size,optional"`
}

func parseHCL(data []byte, filename string) (*models.DeploymentPlan, error) {
	file, diags := hclparse.NewParser().ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, diagError(diags)
	}

	var raw hclPlan
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, diagError(diags)
	}

	plan := &models.DeploymentPlan{
		Topology: &models.ResolvedTopology{
			Regions:    raw.Regions,
			Placements: make(map[string]models.Placement, len(raw.Placements)),
		},
		DeploymentDefault: raw.Deployment,
		SizeMap:           raw.Sizes,
		ScaleMap:          raw.Scale,
		PricingRegion:     raw.PricingRegion,
	}
	for _, p := range raw.Placements {
		if _, dup := plan.Topology.Placements[p.Role]; dup {
			return nil, fmt.Errorf("duplicate placement %q", p.Role)
		}
		plan.Topology.Placements[p.Role] = models.Placement{
			Replicas:      p.Replicas,
			InstanceCount: p.InstanceCount,
			Deployment:    p.Deployment,
			Size:          p.Size,
		}
	}
	return plan, nil
}

// diagError joins error diagnostics into one error
func diagError(diags hcl.Diagnostics) error {
	var msgs []string
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		msg := d.Summary
		if d.Detail != "" {
			msg += ": " + d.Detail
		}
		if d.Subject != nil {
			msg = fmt.Sprintf("line %d: %s", d.Subject.Start.Line, msg)
		}
		msgs = append(msgs, msg)
	}
	return errors.New(strings.Join(msgs, "; "))
}
