// Package metrics exposes Prometheus instrumentation for pricing, quota and
// analysis runs. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/expfmt"
)

const namespace = "cost_planner"

// Metrics holds the collectors of one process
type Metrics struct {
	registry *prometheus.Registry

	pricingRequests  *prometheus.CounterVec
	pricingCache     *prometheus.CounterVec
	pricingRecords   *prometheus.CounterVec
	quotaRequests    *prometheus.CounterVec
	roleFailures     prometheus.Counter
	analysisDuration prometheus.Histogram
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pricingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_requests_total",
			Help:      "Retail pricing API calls by category and outcome.",
		}, []string{"category", "outcome"}),
		pricingCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_cache_lookups_total",
			Help:      "Price cache lookups by category and result.",
		}, []string{"category", "result"}),
		pricingRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_records_total",
			Help:      "Normalized pricing records fetched, by category.",
		}, []string{"category"}),
		quotaRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_requests_total",
			Help:      "Quota usage calls by namespace and outcome.",
		}, []string{"namespace", "outcome"}),
		roleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_pricing_failures_total",
			Help:      "Role placements whose price could not be resolved.",
		}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of cost analysis runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	m.registry.MustRegister(
		m.pricingRequests,
		m.pricingCache,
		m.pricingRecords,
		m.quotaRequests,
		m.roleFailures,
		m.analysisDuration,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) PricingRequest(category, outcome string) {
	if m == nil {
		return
	}
	m.pricingRequests.WithLabelValues(category, outcome).Inc()
}

func (m *Metrics) PricingRecords(category string, n int) {
	if m == nil {
		return
	}
	m.pricingRecords.WithLabelValues(category).Add(float64(n))
}

func (m *Metrics) CacheLookup(category string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.pricingCache.WithLabelValues(category, result).Inc()
}

func (m *Metrics) QuotaRequest(ns, outcome string) {
	if m == nil {
		return
	}
	m.quotaRequests.WithLabelValues(ns, outcome).Inc()
}

func (m *Metrics) RoleFailed() {
	if m == nil {
		return
	}
	m.roleFailures.Inc()
}

func (m *Metrics) ObserveAnalysis(d time.Duration) {
	if m == nil {
		return
	}
	m.analysisDuration.Observe(d.Seconds())
}

// WriteTextfile writes the gathered metrics in text exposition format,
// suitable for the node_exporter textfile collector. The file is replaced
// atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".metrics-*")
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := expfmt.NewEncoder(tmp, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode %s: %w", mf.GetName(), err)
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Push sends the gathered metrics to a Pushgateway under job.
func Push(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	if err := push.New(url, job).Gatherer(g).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
