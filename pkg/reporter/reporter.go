package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/opscart/region-cost-planner/pkg/models"
	"github.com/opscart/region-cost-planner/pkg/storage"
)

// ReportFormat represents the output format
type ReportFormat string

const (
	FormatText ReportFormat = "text"
	FormatJSON ReportFormat = "json"
	FormatCSV  ReportFormat = "csv"
)

// ParseFormat validates a format name
func ParseFormat(s string) (ReportFormat, error) {
	switch f := ReportFormat(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or csv)", s)
	}
}

// Reporter renders cost reports
type Reporter struct {
	format ReportFormat
}

// New creates a new reporter
func New(format ReportFormat) *Reporter {
	return &Reporter{
		format: format,
	}
}

// Write renders report to w
func (r *Reporter) Write(w io.Writer, report *models.CostReport) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatCSV:
		return GenerateCSV(report, w)
	default:
		return writeText(w, report)
	}
}

// WriteHistory renders report history to w
func (r *Reporter) WriteHistory(w io.Writer, history []*storage.ReportSummary) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	case FormatCSV:
		return GenerateHistoryCSV(history, w)
	}

	if len(history) == 0 {
		_, err := fmt.Fprintln(w, "No reports found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGENERATED\tPRICING REGION\tHOURLY\tMONTHLY\tERRORS\tSHORTAGES")
	for _, h := range history {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			h.ID,
			h.GeneratedAt.Format("2006-01-02 15:04:05"),
			h.PricingRegion,
			money(h.Currency, h.TotalHourlyCost.StringFixed(4)),
			money(h.Currency, h.TotalMonthlyCost.StringFixed(2)),
			h.RoleErrors,
			shortageCell(h.QuotaEvaluated, h.Shortages))
	}
	return tw.Flush()
}

func writeText(w io.Writer, report *models.CostReport) error {
	fmt.Fprintf(w, "Cost report %s\n", report.ID)
	fmt.Fprintf(w, "Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Regions: %s (priced in %s)\n\n", strings.Join(report.Regions, ", "), report.PricingRegion)

	if len(report.Roles) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "REGION\tROLE\tDEPLOYMENT\tSKU\tINSTANCES\tUNIT/HR\tHOURLY")
		for _, rc := range report.Roles {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				rc.Region, rc.Role, rc.Deployment, rc.SKU, rc.Instances,
				rc.UnitHourly.StringFixed(4), rc.Hourly.StringFixed(4))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Totals:")
	for _, p := range sortedPeriods(report) {
		fmt.Fprintf(w, "  per %-5s %s\n", p, money(report.Currency, report.Totals[p].StringFixed(2)))
	}

	if len(report.Errors) > 0 {
		fmt.Fprintf(w, "\n[WARN] %d role placement(s) could not be priced:\n", len(report.Errors))
		for _, e := range report.Errors {
			fmt.Fprintf(w, "  - %s in %s: %s\n", e.Role, e.Region, e.Error)
		}
	}

	if report.QuotaEvaluated {
		fmt.Fprintf(w, "\nQuota: %s\n", report.QuotaSummary)
		for _, s := range report.Shortages {
			fmt.Fprintf(w, "  - %s in %s: need %.0f, available %.0f (short %.0f)\n",
				s.Namespace, s.Region, s.Required, s.Available, s.Deficit)
		}
	}

	_, err := fmt.Fprintf(w, "\n%s\n", report.Summary)
	return err
}

// sortedPeriods orders totals from the shortest period up
func sortedPeriods(report *models.CostReport) []models.Period {
	periods := make([]models.Period, 0, len(report.Totals))
	for p := range report.Totals {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool {
		return periods[i].Hours() < periods[j].Hours()
	})
	return periods
}

func money(currency, amount string) string {
	if currency == "" || currency == models.CurrencyUSD {
		return "$" + amount
	}
	return amount + " " + currency
}

func shortageCell(evaluated bool, n int) string {
	if !evaluated {
		return "-"
	}
	return fmt.Sprintf("%d", n)
}
