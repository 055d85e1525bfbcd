package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/opscart/region-cost-planner/pkg/analyzer"
	"github.com/opscart/region-cost-planner/pkg/config"
	"github.com/opscart/region-cost-planner/pkg/metrics"
	"github.com/opscart/region-cost-planner/pkg/models"
	"github.com/opscart/region-cost-planner/pkg/pricing"
	"github.com/opscart/region-cost-planner/pkg/quota"
	"github.com/opscart/region-cost-planner/pkg/storage"
)

// newPriceCache builds the price cache from config and installs it as the
// shared cache.
func newPriceCache(cfg *config.Config, logger *zap.Logger) *pricing.PriceCache {
	opts := pricing.DefaultCacheOptions()
	if cfg.CacheFile != "" {
		opts.File = cfg.CacheFile
	}
	opts.TTL = cfg.CacheTTL
	opts.Disabled = cfg.CacheDisabled
	opts.Logger = logger

	cache := pricing.NewPriceCache(opts)
	pricing.SetSharedCache(cache)
	return cache
}

func newPricingProvider(cfg *config.Config, cache *pricing.PriceCache, logger *zap.Logger, m *metrics.Metrics) (pricing.Provider, error) {
	return pricing.NewProvider(&pricing.Config{
		Provider: cfg.PricingProvider,
		Azure: pricing.AzureOptions{
			BaseURL:    cfg.PricingAPIURL,
			Currency:   models.CurrencyUSD,
			Timeout:    cfg.PricingTimeout,
			MaxRecords: cfg.MaxRecords,
			Cache:      cache,
			Logger:     logger,
			Metrics:    m,
		},
		StaticPrices:   cfg.StaticPrices,
		FallbackHourly: cfg.FallbackHourly,
	})
}

// newCredential prefers a pre-acquired token over a service principal. It
// returns nil when neither is configured.
func newCredential(cfg *config.Config) quota.Credential {
	if cfg.AccessToken != "" {
		return quota.StaticToken(cfg.AccessToken)
	}
	if c := quota.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret); c != nil {
		return c
	}
	return nil
}

// newQuotaService returns nil when no subscription or credential is
// configured, which disables quota evaluation.
func newQuotaService(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) analyzer.QuotaFetcher {
	if !cfg.QuotaConfigured() {
		return nil
	}
	cred := newCredential(cfg)
	if cred == nil {
		return nil
	}
	return quota.NewService(quota.Options{
		BaseURL:    cfg.ManagementURL,
		Timeout:    cfg.QuotaTimeout,
		Credential: cred,
		Logger:     logger,
		Metrics:    m,
	})
}

func parsePeriods(names []string) ([]models.Period, error) {
	var periods []models.Period
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			p := models.Period(strings.ToLower(strings.TrimSpace(part)))
			if p == "" {
				continue
			}
			if p.Hours() == 0 {
				return nil, fmt.Errorf("unknown period %q (want hour, day or month)", part)
			}
			periods = append(periods, p)
		}
	}
	return periods, nil
}

// reportStore opens the history store when storage is enabled, and returns
// nil otherwise.
func reportStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if !cfg.StorageEnabled {
		return nil, nil
	}
	return openStore(ctx, cfg)
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}
