package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opscart/region-cost-planner/pkg/models"
)

// ErrNotFound is returned when a report ID is unknown
var ErrNotFound = errors.New("report not found")

// Store defines the interface for persistent report history
type Store interface {
	SaveReport(ctx context.Context, report *models.CostReport) error
	GetReport(ctx context.Context, id string) (*models.CostReport, error)
	ListReports(ctx context.Context, filter ListFilter) ([]*ReportSummary, error)
	DeleteReport(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}

// ListFilter narrows ListReports. Zero values match everything.
type ListFilter struct {
	PricingRegion string
	Since         time.Time
	Limit         int
}

// DefaultListLimit applies when ListFilter.Limit is not positive
const DefaultListLimit = 20

// ReportSummary is one row of report history
type ReportSummary struct {
	ID               string          `json:"id"`
	GeneratedAt      time.Time       `json:"generatedAt"`
	PricingRegion    string          `json:"pricingRegion"`
	Currency         string          `json:"currency"`
	Regions          []string        `json:"regions"`
	TotalHourlyCost  decimal.Decimal `json:"totalHourlyCost"`
	TotalMonthlyCost decimal.Decimal `json:"totalMonthlyCost"`
	RoleErrors       int             `json:"roleErrors"`
	Shortages        int             `json:"shortages"`
	QuotaEvaluated   bool            `json:"quotaEvaluated"`
	Summary          string          `json:"summary"`
}

// Summarize extracts the history row of a report.
func Summarize(r *models.CostReport) *ReportSummary {
	return &ReportSummary{
		ID:               r.ID,
		GeneratedAt:      r.GeneratedAt,
		PricingRegion:    r.PricingRegion,
		Currency:         r.Currency,
		Regions:          append([]string(nil), r.Regions...),
		TotalHourlyCost:  r.TotalHourlyCost,
		TotalMonthlyCost: r.TotalMonthlyCost,
		RoleErrors:       len(r.Errors),
		Shortages:        len(r.Shortages),
		QuotaEvaluated:   r.QuotaEvaluated,
		Summary:          r.Summary,
	}
}

func (f ListFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}
