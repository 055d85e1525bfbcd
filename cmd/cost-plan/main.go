package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/opscart/region-cost-planner/pkg/analyzer"
	"github.com/opscart/region-cost-planner/pkg/config"
	"github.com/opscart/region-cost-planner/pkg/logging"
	"github.com/opscart/region-cost-planner/pkg/metrics"
	"github.com/opscart/region-cost-planner/pkg/pricing"
	"github.com/opscart/region-cost-planner/pkg/reporter"
	"github.com/opscart/region-cost-planner/pkg/storage"
	"github.com/opscart/region-cost-planner/pkg/topology"
)

var (
	// Global flags
	configFile   string
	logLevel     string
	outputFormat string
	metricsFile  string
	pushgateway  string

	// Analyze flags
	pricingRegion    string
	periods          []string
	subscriptionID   string
	concurrency      int
	perRegionPricing bool
	saveResults      bool

	// History flags
	historyLimit  int
	historyRegion string

	// Global config
	cfg *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cost-plan",
		Short: "Regional cost and quota planner",
		Long: `Estimate the running cost of a multi-region deployment plan from Azure
retail prices and check it against the subscription's regional quota.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) { logging.Sync() },
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "Output format: text, json, csv")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write run metrics to this textfile")
	rootCmd.PersistentFlags().StringVar(&pushgateway, "pushgateway", "", "Push run metrics to this Pushgateway URL")

	// Analyze command
	analyzeCmd := &cobra.Command{
		Use:   "analyze <plan-file>",
		Short: "Price a deployment plan and check regional quota",
		Long:  `Analyze a deployment plan (.yaml, .json or .hcl) and print its cost report.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	analyzeCmd.Flags().StringVar(&pricingRegion, "pricing-region", "", "Region to price every placement in (default from config)")
	analyzeCmd.Flags().StringSliceVar(&periods, "period", nil, "Reporting periods: hour, day, month (default all)")
	analyzeCmd.Flags().StringVar(&subscriptionID, "subscription", "", "Azure subscription to check quota against")
	analyzeCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Parallel pricing and quota calls (default from config)")
	analyzeCmd.Flags().BoolVar(&perRegionPricing, "per-region", false, "Price each placement in its own region")
	analyzeCmd.Flags().BoolVar(&saveResults, "save", false, "Save the report to the database (also STORAGE_ENABLED=true)")

	// Price command
	priceCmd := &cobra.Command{
		Use:   "price <resource-type> <sku>",
		Short: "Look up the hourly price of one SKU",
		Long:  `Resource types: vm, aks, aca, logs, storage, lb.`,
		Args:  cobra.ExactArgs(2),
		RunE:  runPrice,
	}
	priceCmd.Flags().StringVar(&pricingRegion, "region", "", "Region to price in (default from config)")

	// History command
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "View saved cost reports",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of reports to show")
	historyCmd.Flags().StringVar(&historyRegion, "region", "", "Only show reports priced in this region")

	showCmd := &cobra.Command{
		Use:   "show <report-id>",
		Short: "Print a saved cost report",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
	deleteCmd := &cobra.Command{
		Use:   "delete <report-id>",
		Short: "Delete a saved cost report",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}
	historyCmd.AddCommand(showCmd, deleteCmd)

	// Cache command
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local price cache",
	}
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached price",
		Args:  cobra.NoArgs,
		RunE:  runCacheClear,
	})
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show the cache file and entry count",
		Args:  cobra.NoArgs,
		RunE:  runCacheInfo,
	})

	rootCmd.AddCommand(analyzeCmd, priceCmd, historyCmd, cacheCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads config and applies global flag overrides.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if outputFormat != "" {
		cfg.OutputFormat = outputFormat
	}
	if metricsFile != "" {
		cfg.MetricsFile = metricsFile
	}
	if pushgateway != "" {
		cfg.PushgatewayURL = pushgateway
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return logging.Initialize(cfg.Logging)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if subscriptionID != "" {
		cfg.SubscriptionID = subscriptionID
	}
	if concurrency > 0 {
		cfg.Concurrency = concurrency
	}
	if cmd.Flags().Changed("per-region") {
		cfg.PerRegionPricing = perRegionPricing
	}
	if pricingRegion != "" {
		cfg.PricingRegion = pricingRegion
	}

	format, err := reporter.ParseFormat(cfg.OutputFormat)
	if err != nil {
		return err
	}
	runPeriods, err := parsePeriods(periods)
	if err != nil {
		return err
	}

	plan, err := topology.LoadFile(args[0])
	if err != nil {
		return err
	}
	// Command line overrides the plan file
	if pricingRegion != "" || plan.PricingRegion == "" {
		plan.PricingRegion = cfg.PricingRegion
	}

	if saveResults {
		cfg.StorageEnabled = true
	}
	store, err := reportStore(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	logger := logging.Logger
	m := metrics.New()
	cache := newPriceCache(cfg, logger)

	provider, err := newPricingProvider(cfg, cache, logger, m)
	if err != nil {
		return err
	}
	quotaService := newQuotaService(cfg, logger, m)
	if quotaService == nil {
		fmt.Fprintln(os.Stderr, "[INFO] Quota credentials not configured, skipping quota check")
		fmt.Fprintln(os.Stderr, "[INFO] Set AZURE_SUBSCRIPTION_ID and AZURE_ACCESS_TOKEN (or a service principal) to enable it")
	}

	a := analyzer.New(analyzer.Config{
		Pricing: provider,
		Quota:   quotaService,
		Cache:   cache,
		Logger:  logger,
		Metrics: m,
	})

	fmt.Fprintf(os.Stderr, "[INFO] Pricing %s with %s provider\n", args[0], provider.Name())
	report, err := a.RunCostAnalysis(ctx, plan, analyzer.Options{
		PricingRegion:    plan.PricingRegion,
		Periods:          runPeriods,
		SubscriptionID:   cfg.SubscriptionID,
		Concurrency:      cfg.Concurrency,
		PerRegionPricing: cfg.PerRegionPricing,
	})
	exportMetrics(ctx, m)
	if err != nil {
		return err
	}

	if err := reporter.New(format).Write(os.Stdout, report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if store != nil {
		if err := store.SaveReport(ctx, report); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		fmt.Fprintf(os.Stderr, "[INFO] Saved report (ID: %s)\n", report.ID)
	}
	return nil
}

// exportMetrics writes and pushes run metrics. Failures only warn.
func exportMetrics(ctx context.Context, m *metrics.Metrics) {
	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile, m.Registry()); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] %v\n", err)
		}
	}
	if cfg.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := metrics.Push(pushCtx, cfg.PushgatewayURL, "cost-plan", m.Registry()); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] %v\n", err)
		}
	}
}

func runPrice(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	region := cfg.PricingRegion
	if pricingRegion != "" {
		region = pricingRegion
	}

	logger := logging.Logger
	cache := newPriceCache(cfg, logger)
	defer cache.Save()

	provider, err := newPricingProvider(cfg, cache, logger, nil)
	if err != nil {
		return err
	}

	rec := pricing.LookupPrice(ctx, provider, args[0], region, args[1])
	if rec == nil {
		return fmt.Errorf("no price found for %s %s in %s", args[0], args[1], region)
	}

	fmt.Printf("%s %s in %s\n", args[0], rec.SKU, region)
	fmt.Printf("   Price: %.4f %s/hour\n", rec.PricePerHour, rec.Currency)
	fmt.Printf("   Monthly: %.2f %s\n", rec.PricePerHour*720, rec.Currency)
	if rec.MeterName != "" {
		fmt.Printf("   Meter: %s\n", rec.MeterName)
	}
	if rec.UnitOfMeasure != "" {
		fmt.Printf("   Unit: %s (retail %.4f)\n", rec.UnitOfMeasure, rec.RetailPrice)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format, err := reporter.ParseFormat(cfg.OutputFormat)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	history, err := store.ListReports(ctx, storage.ListFilter{
		PricingRegion: historyRegion,
		Limit:         historyLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	return reporter.New(format).WriteHistory(os.Stdout, history)
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format, err := reporter.ParseFormat(cfg.OutputFormat)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := store.GetReport(ctx, args[0])
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no report with ID %s", args[0])
	}
	if err != nil {
		return err
	}
	return reporter.New(format).Write(os.Stdout, report)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteReport(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("[INFO] Deleted report %s\n", args[0])
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cache := newPriceCache(cfg, logging.Logger)
	n := cache.Len()
	cache.Clear()
	cache.Save()
	fmt.Printf("[INFO] Cleared %d cached price(s) from %s\n", n, cache.File())
	return nil
}

func runCacheInfo(cmd *cobra.Command, args []string) error {
	cache := newPriceCache(cfg, logging.Logger)
	fmt.Printf("Cache file: %s\n", cache.File())
	fmt.Printf("Entries: %d\n", cache.Len())
	fmt.Printf("TTL: %s\n", cfg.CacheTTL)
	if cfg.CacheDisabled {
		fmt.Println("[WARN] Cache is disabled")
	}
	return nil
}
