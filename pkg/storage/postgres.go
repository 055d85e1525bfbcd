package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/opscart/region-cost-planner/pkg/models"
)

//go:embed migrations/*.sql
var postgresFS embed.FS

// PostgresStore implements Store interface using PostgreSQL
type PostgresStore struct {
	db  *sql.DB
	dsn string
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{
		db:  db,
		dsn: dsn,
	}

	// Run migrations
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate applies every embedded schema file in name order
func (s *PostgresStore) migrate(ctx context.Context) error {
	entries, err := postgresFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}

	for _, entry := range entries {
		schema, err := postgresFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(schema)); err != nil {
			return fmt.Errorf("failed to execute %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// SaveReport stores a report, assigning an ID if it has none
func (s *PostgresStore) SaveReport(ctx context.Context, report *models.CostReport) error {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now().UTC()
	}

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	regions, err := json.Marshal(report.Regions)
	if err != nil {
		return fmt.Errorf("failed to encode regions: %w", err)
	}

	query := `
		INSERT INTO cost_reports (
			id, generated_at, pricing_region, currency, regions,
			total_hourly_cost, total_monthly_cost, role_errors, shortages,
			quota_evaluated, summary, report
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = s.db.ExecContext(ctx, query,
		report.ID, report.GeneratedAt, report.PricingRegion, report.Currency, regions,
		report.TotalHourlyCost, report.TotalMonthlyCost, len(report.Errors), len(report.Shortages),
		report.QuotaEvaluated, report.Summary, body,
	)

	return err
}

// GetReport retrieves a full report by ID
func (s *PostgresStore) GetReport(ctx context.Context, id string) (*models.CostReport, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT report FROM cost_reports WHERE id = $1`, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var report models.CostReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", id, err)
	}
	return &report, nil
}

// ListReports returns report history, newest first
func (s *PostgresStore) ListReports(ctx context.Context, filter ListFilter) ([]*ReportSummary, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.PricingRegion != "" {
		args = append(args, filter.PricingRegion)
		where = append(where, fmt.Sprintf("pricing_region = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		where = append(where, fmt.Sprintf("generated_at >= $%d", len(args)))
	}
	args = append(args, filter.limit())

	query := `
		SELECT id, generated_at, pricing_region, currency, regions,
			total_hourly_cost, total_monthly_cost, role_errors, shortages,
			quota_evaluated, summary
		FROM cost_reports
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY generated_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*ReportSummary
	for rows.Next() {
		var sum ReportSummary
		var regions []byte

		err := rows.Scan(
			&sum.ID, &sum.GeneratedAt, &sum.PricingRegion, &sum.Currency, &regions,
			&sum.TotalHourlyCost, &sum.TotalMonthlyCost, &sum.RoleErrors, &sum.Shortages,
			&sum.QuotaEvaluated, &sum.Summary,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(regions, &sum.Regions); err != nil {
			return nil, fmt.Errorf("failed to decode regions of %s: %w", sum.ID, err)
		}

		summaries = append(summaries, &sum)
	}

	return summaries, rows.Err()
}

// DeleteReport removes a report
func (s *PostgresStore) DeleteReport(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM cost_reports WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}

// Ping checks database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
