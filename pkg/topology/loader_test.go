package topology

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/opscart/region-cost-planner/pkg/errors"
	"github.com/opscart/region-cost-planner/pkg/models"
)

const yamlPlan = `
topology:
  regions: [eastus, westus2]
  placements:
    validators:
      replicas: 4
    rpcNodes:
      instanceCount: 2
      deployment: vm
      size: Standard_D2s_v3
deployment: aks
pricingRegion: eastus
scale:
  validators: 5
`

const jsonPlan = `{
  "topology": {
    "regions": ["eastus", "westus2"],
    "placements": {
      "validators": {"replicas": 4},
      "rpcNodes": {"instanceCount": 2, "deployment": "vm", "size": "Standard_D2s_v3"}
    }
  },
  "deployment": "aks",
  "pricingRegion": "eastus",
  "scale": {"validators": 5}
}`

const hclPlanSrc = `
regions        = ["eastus", "westus2"]
pricing_region = "eastus"
deployment     = "aks"
scale          = { validators = 5 }

placement "validators" {
  replicas = 4
}

placement "rpcNodes" {
  instance_count = 2
  deployment     = "vm"
  size           = "Standard_D2s_v3"
}
`

func writePlan(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"yaml", "plan.yaml", yamlPlan},
		{"yml extension", "plan.yml", yamlPlan},
		{"json", "plan.json", jsonPlan},
		{"hcl", "plan.hcl", hclPlanSrc},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := LoadFile(writePlan(t, tt.file, tt.body))
			if err != nil {
				t.Fatalf("LoadFile failed: %v", err)
			}

			topo := plan.Topology
			if len(topo.Regions) != 2 || topo.Regions[1] != "westus2" {
				t.Errorf("Unexpected regions %v", topo.Regions)
			}
			if got := topo.Placements[models.RoleValidators].Count(); got != 4 {
				t.Errorf("Expected 4 validators, got %d", got)
			}
			rpc := topo.Placements[models.RoleRPCNodes]
			if rpc.Count() != 2 || rpc.Deployment != models.DeploymentVM || rpc.Size != "Standard_D2s_v3" {
				t.Errorf("Unexpected rpcNodes placement %+v", rpc)
			}
			if plan.DeploymentDefault != models.DeploymentAKS || plan.PricingRegion != "eastus" {
				t.Errorf("Unexpected plan settings %+v", plan)
			}
			if plan.ScaleMap[models.RoleValidators] != 5 {
				t.Errorf("Expected scale override 5, got %v", plan.ScaleMap)
			}
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		body     string
		wantType apperrors.Type
	}{
		{"unsupported extension", "plan.toml", "regions = []", apperrors.TypeConfig},
		{"empty yaml", "plan.yaml", "", apperrors.TypeParsing},
		{"unknown yaml field", "plan.yaml", "topology:\n  regions: [eastus]\nbudget: 10\n", apperrors.TypeParsing},
		{"malformed json", "plan.json", `{"topology": `, apperrors.TypeParsing},
		{"malformed hcl", "plan.hcl", `regions = [`, apperrors.TypeParsing},
		{"hcl missing regions", "plan.hcl", `deployment = "aks"`, apperrors.TypeParsing},
		{"hcl duplicate placement", "plan.hcl", "regions = [\"eastus\"]\nplacement \"a\" {}\nplacement \"a\" {}\n", apperrors.TypeParsing},
		{"missing topology", "plan.yaml", "pricingRegion: eastus\n", apperrors.TypeConfig},
		{"no regions", "plan.json", `{"topology": {"regions": []}}`, apperrors.TypeConfig},
		{"bad deployment", "plan.hcl", "regions = [\"eastus\"]\nplacement \"a\" {\n  deployment = \"lambda\"\n}\n", apperrors.TypeConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writePlan(t, tt.file, tt.body))
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !apperrors.IsType(err, tt.wantType) {
				t.Errorf("Expected %s, got %v", tt.wantType, err)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if !apperrors.IsType(err, apperrors.TypeConfig) {
		t.Errorf("Expected config error for missing file, got %v", err)
	}
}
