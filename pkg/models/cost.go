package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Period is a reporting window for cost totals
type Period string

const (
	PeriodHour  Period = "hour"
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// Hours returns the number of hours in the period, or 0 if unknown.
func (p Period) Hours() int64 {
	switch p {
	case PeriodHour:
		return 1
	case PeriodDay:
		return 24
	case PeriodMonth:
		return 24 * 30
	default:
		return 0
	}
}

// PricingRecord is one normalized retail price quote
type PricingRecord struct {
	Service       string  `json:"service"`
	SKU           string  `json:"sku"`
	Region        string  `json:"region"`
	PricePerHour  float64 `json:"pricePerHour"`
	RetailPrice   float64 `json:"retailPrice"`
	Currency      string  `json:"currency"`
	UnitOfMeasure string  `json:"unitOfMeasure"`
	MeterName     string  `json:"meterName"`
	ProductName   string  `json:"productName,omitempty"`
}

// RoleCost is the priced contribution of one role in one region
type RoleCost struct {
	Role          string          `json:"role"`
	Region        string          `json:"region"`
	PricingRegion string          `json:"pricingRegion"`
	Deployment    string          `json:"deployment"`
	Category      string          `json:"category"`
	SKU           string          `json:"sku"`
	Instances     int             `json:"instances"`
	UnitHourly    decimal.Decimal `json:"unitHourly"`
	Hourly        decimal.Decimal `json:"hourly"`
	MeterName     string          `json:"meterName,omitempty"`
}

// RoleError records a role/region whose price could not be resolved
type RoleError struct {
	Role   string `json:"role"`
	Region string `json:"region"`
	Error  string `json:"error"`
}

// CostReport is the single output of a cost analysis run
type CostReport struct {
	ID               string                     `json:"id"`
	GeneratedAt      time.Time                  `json:"generatedAt"`
	PricingRegion    string                     `json:"pricingRegion"`
	Currency         string                     `json:"currency"`
	Regions          []string                   `json:"regions"`
	Roles            []RoleCost                 `json:"roles"`
	Errors           []RoleError                `json:"errors,omitempty"`
	TotalHourlyCost  decimal.Decimal            `json:"totalHourlyCost"`
	TotalMonthlyCost decimal.Decimal            `json:"totalMonthlyCost"`
	Totals           map[Period]decimal.Decimal `json:"totals"`
	Shortages        []QuotaShortage            `json:"shortages,omitempty"`
	QuotaEvaluated   bool                       `json:"quotaEvaluated"`
	QuotaSummary     string                     `json:"quotaSummary,omitempty"`
	Summary          string                     `json:"summary"`
}
