// Package quota reads regional usage/limit pairs from the Azure management API
// and evaluates them against a deployment's instance counts.
package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/opscart/region-cost-planner/pkg/errors"
	"github.com/opscart/region-cost-planner/pkg/logging"
	"github.com/opscart/region-cost-planner/pkg/metrics"
	"github.com/opscart/region-cost-planner/pkg/models"
)

const azureManagementAPI = "https://management.azure.com"

// DefaultTimeout bounds each namespace call
const DefaultTimeout = 8 * time.Second

// DefaultUnit is reported for usages that carry no unit
const DefaultUnit = "Count"

type endpoint struct {
	provider   string
	apiVersion string
}

var namespaceEndpoints = map[models.Namespace]endpoint{
	models.NamespaceCompute: {provider: "Microsoft.Compute", apiVersion: "2023-09-01"},
	models.NamespaceNetwork: {provider: "Microsoft.Network", apiVersion: "2023-09-01"},
	models.NamespaceStorage: {provider: "Microsoft.Storage", apiVersion: "2023-01-01"},
}

// Options configures a Service
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Credential Credential
	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Service fetches per-region quota across the compute, network and storage
// namespaces.
type Service struct {
	baseURL    string
	timeout    time.Duration
	credential Credential
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

type usageResponse struct {
	Value []usageItem `json:"value"`
}

type usageItem struct {
	Name *struct {
		Value          string `json:"value"`
		LocalizedValue string `json:"localizedValue"`
	} `json:"name"`
	Limit        *float64 `json:"limit"`
	CurrentValue *float64 `json:"currentValue"`
	Unit         *string  `json:"unit"`
}

func NewService(opts Options) *Service {
	s := &Service{
		baseURL:    opts.BaseURL,
		timeout:    opts.Timeout,
		credential: opts.Credential,
		httpClient: opts.HTTPClient,
		logger:     logging.Named(opts.Logger, "quota"),
		metrics:    opts.Metrics,
	}
	if s.baseURL == "" {
		s.baseURL = azureManagementAPI
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{}
	}
	return s
}

// FetchRegionQuota queries all namespaces of region concurrently. It never
// fails: a namespace whose call failed is marked unavailable, and a missing
// or failing credential marks every namespace unavailable.
func (s *Service) FetchRegionQuota(ctx context.Context, subscriptionID, region string) *models.RegionQuota {
	result := &models.RegionQuota{
		Region:     region,
		Namespaces: make(map[models.Namespace]models.NamespaceResult, len(models.Namespaces)),
	}

	token, err := s.token(ctx)
	if err != nil {
		s.logger.Warn("quota unavailable, token acquisition failed",
			zap.String("region", region),
			zap.Error(err))
		for _, ns := range models.Namespaces {
			result.Namespaces[ns] = models.NamespaceResult{Namespace: ns, Err: err.Error()}
			s.metrics.QuotaRequest(string(ns), "auth")
		}
		return result
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, ns := range models.Namespaces {
		wg.Add(1)
		go func(ns models.Namespace) {
			defer wg.Done()
			r := s.fetchNamespace(ctx, token, subscriptionID, region, ns)
			mu.Lock()
			result.Namespaces[ns] = r
			mu.Unlock()
		}(ns)
	}
	wg.Wait()

	return result
}

func (s *Service) token(ctx context.Context) (string, error) {
	if s.credential == nil {
		return "", apperrors.New(apperrors.TypeAuth, "no credential configured")
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.credential.Token(callCtx, ManagementScope)
}

func (s *Service) fetchNamespace(ctx context.Context, token, subscriptionID, region string, ns models.Namespace) models.NamespaceResult {
	usages, err := s.usages(ctx, token, subscriptionID, region, ns)
	if err != nil {
		s.logger.Warn("quota namespace unavailable",
			zap.String("namespace", string(ns)),
			zap.String("region", region),
			zap.Error(err))
		s.metrics.QuotaRequest(string(ns), outcomeOf(err))
		return models.NamespaceResult{Namespace: ns, Err: err.Error()}
	}
	s.metrics.QuotaRequest(string(ns), "success")
	return models.NamespaceResult{Namespace: ns, Usages: usages, Available: true}
}

// UsagesURL returns the usages endpoint of ns for a subscription and region.
func (s *Service) UsagesURL(subscriptionID, region string, ns models.Namespace) string {
	ep := namespaceEndpoints[ns]
	return fmt.Sprintf("%s/subscriptions/%s/providers/%s/locations/%s/usages?api-version=%s",
		s.baseURL, url.PathEscape(subscriptionID), ep.provider, url.PathEscape(region), ep.apiVersion)
}

func (s *Service) usages(ctx context.Context, token, subscriptionID, region string, ns models.Namespace) ([]models.QuotaUsage, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	u := s.UsagesURL(subscriptionID, region, ns)
	path := u
	if parsed, err := url.Parse(u); err == nil {
		path = parsed.Path
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.TypeInternal, "failed to build quota request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, s.transportError(callCtx, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apperrors.HTTPStatus(resp.StatusCode, path)
	}

	var body usageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if callCtx.Err() != nil {
			return nil, s.transportError(callCtx, path, err)
		}
		return nil, apperrors.Wrapf(apperrors.TypeParsing, err, "malformed usages response from %s", path)
	}

	usages := make([]models.QuotaUsage, 0, len(body.Value))
	for _, item := range body.Value {
		usages = append(usages, item.toUsage(ns, region))
	}
	return usages, nil
}

func (s *Service) transportError(call context.Context, path string, err error) error {
	var netErr net.Error
	if errors.Is(call.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.Timeout(path, s.timeout, err)
	}
	return apperrors.Wrapf(apperrors.TypeNetwork, err, "request to %s failed", path).
		WithContext("path", path)
}

func (item usageItem) toUsage(ns models.Namespace, region string) models.QuotaUsage {
	u := models.QuotaUsage{
		Namespace: ns,
		Region:    region,
		Unit:      DefaultUnit,
	}
	if item.Name != nil {
		u.Name = item.Name.Value
	}
	if item.Limit != nil {
		u.Limit = *item.Limit
	}
	if item.CurrentValue != nil {
		u.Current = *item.CurrentValue
	}
	if item.Unit != nil && *item.Unit != "" {
		u.Unit = *item.Unit
	}
	return u
}

func outcomeOf(err error) string {
	switch {
	case apperrors.IsType(err, apperrors.TypeTimeout):
		return "timeout"
	case apperrors.IsType(err, apperrors.TypeParsing):
		return "malformed"
	default:
		return "error"
	}
}
