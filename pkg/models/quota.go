package models

// Namespace is a resource category with independently tracked quota
type Namespace string

const (
	NamespaceCompute Namespace = "compute"
	NamespaceNetwork Namespace = "network"
	NamespaceStorage Namespace = "storage"
)

// Namespaces lists every quota namespace in query order
var Namespaces = []Namespace{NamespaceCompute, NamespaceNetwork, NamespaceStorage}

// QuotaUsage is one usage/limit reading in a namespace and region
type QuotaUsage struct {
	Namespace Namespace `json:"namespace"`
	Name      string    `json:"name,omitempty"`
	Limit     float64   `json:"limit"`
	Current   float64   `json:"current"`
	Unit      string    `json:"unit"`
	Region    string    `json:"region"`
}

// Remaining returns limit minus current usage.
func (u QuotaUsage) Remaining() float64 {
	return u.Limit - u.Current
}

// NamespaceResult is the outcome of querying one namespace. Available is
// false when the query failed; an available result may still hold no usages.
type NamespaceResult struct {
	Namespace Namespace    `json:"namespace"`
	Usages    []QuotaUsage `json:"usages,omitempty"`
	Available bool         `json:"available"`
	Err       string       `json:"error,omitempty"`
}

// RegionQuota groups the namespace results for one region
type RegionQuota struct {
	Region     string                        `json:"region"`
	Namespaces map[Namespace]NamespaceResult `json:"namespaces"`
}

// Usages flattens every available namespace into one sequence.
func (q *RegionQuota) Usages() []QuotaUsage {
	if q == nil {
		return nil
	}
	var out []QuotaUsage
	for _, ns := range Namespaces {
		if r, ok := q.Namespaces[ns]; ok && r.Available {
			out = append(out, r.Usages...)
		}
	}
	return out
}

// Available reports whether at least one namespace answered.
func (q *RegionQuota) Available() bool {
	if q == nil {
		return false
	}
	for _, r := range q.Namespaces {
		if r.Available {
			return true
		}
	}
	return false
}

// QuotaShortage is one detected deficiency
type QuotaShortage struct {
	Namespace Namespace `json:"namespace"`
	Region    string    `json:"region"`
	Required  float64   `json:"required"`
	Available float64   `json:"available"`
	Deficit   float64   `json:"deficit"`
}
