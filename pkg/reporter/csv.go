package reporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/opscart/region-cost-planner/pkg/models"
	"github.com/opscart/region-cost-planner/pkg/storage"
)

// GenerateCSV creates a CSV report
func GenerateCSV(report *models.CostReport, writer io.Writer) error {
	w := csv.NewWriter(writer)
	defer w.Flush()

	// Write header
	header := []string{
		"Region",
		"Role",
		"Deployment",
		"Category",
		"SKU",
		"Pricing Region",
		"Instances",
		"Unit Price ($/hr)",
		"Hourly Cost ($)",
		"Status",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Write priced placements
	for _, rc := range report.Roles {
		row := []string{
			rc.Region,
			rc.Role,
			rc.Deployment,
			rc.Category,
			rc.SKU,
			rc.PricingRegion,
			fmt.Sprintf("%d", rc.Instances),
			rc.UnitHourly.StringFixed(6),
			rc.Hourly.StringFixed(6),
			"ok",
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	// Failed placements carry no cost
	for _, e := range report.Errors {
		row := []string{e.Region, e.Role, "", "", "", "", "", "", "", "error: " + e.Error}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	// Write summary rows
	w.Write([]string{}) // Empty row
	w.Write([]string{"SUMMARY"})
	for _, p := range sortedPeriods(report) {
		w.Write([]string{"Total per " + string(p), report.Totals[p].StringFixed(2)})
	}
	w.Write([]string{"Unpriced Placements", fmt.Sprintf("%d", len(report.Errors))})

	if report.QuotaEvaluated {
		w.Write([]string{}) // Empty row
		w.Write([]string{"QUOTA SHORTAGES"})
		w.Write([]string{"Namespace", "Region", "Required", "Available", "Deficit"})
		for _, s := range report.Shortages {
			w.Write([]string{
				string(s.Namespace),
				s.Region,
				fmt.Sprintf("%.0f", s.Required),
				fmt.Sprintf("%.0f", s.Available),
				fmt.Sprintf("%.0f", s.Deficit),
			})
		}
	}

	return w.Error()
}

// GenerateHistoryCSV writes one row per stored report
func GenerateHistoryCSV(history []*storage.ReportSummary, writer io.Writer) error {
	w := csv.NewWriter(writer)
	defer w.Flush()

	header := []string{"ID", "Generated At", "Pricing Region", "Hourly Cost", "Monthly Cost", "Role Errors", "Shortages", "Summary"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, h := range history {
		row := []string{
			h.ID,
			h.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
			h.PricingRegion,
			h.TotalHourlyCost.StringFixed(6),
			h.TotalMonthlyCost.StringFixed(2),
			fmt.Sprintf("%d", h.RoleErrors),
			shortageCell(h.QuotaEvaluated, h.Shortages),
			h.Summary,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	return nil
}
