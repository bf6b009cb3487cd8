// Package supabase stores plans and settings in Supabase through its
// PostgREST API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/observability"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/resilience"
)

var tracer = otel.Tracer("supabase")

const serviceName = "supabase"

// Client wraps HTTP calls to the Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	guard          *resilience.Guard
	metrics        *observability.Metrics
	logger         *zap.Logger
}

// NewClient creates a Supabase client. Every call goes through a bulkhead,
// a circuit breaker and retries configured by cfg.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cfg resilience.Config, metrics *observability.Metrics, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		guard:          resilience.NewGuard(serviceName, cfg, logger),
		metrics:        metrics,
		logger:         logger,
	}
}

// doRequest executes an authenticated request against /rest/v1/{path}.
// payload is JSON-encoded when non-nil. Client errors are marked permanent so
// they are not retried.
func (c *Client) doRequest(ctx context.Context, method, path string, payload any, prefer string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)

	var reqBody io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, resilience.Permanent(fmt.Errorf("encode %s body: %w", method, err))
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, resilience.Permanent(err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		serr := &statusError{Method: method, Status: resp.StatusCode, Body: string(body)}
		if !serr.retryable() {
			return nil, resilience.Permanent(serr)
		}
		return nil, serr
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}

// call runs fn under the guard and normalizes the error for callers:
// domain errors pass through, anything else becomes ErrExternalService.
func (c *Client) call(ctx context.Context, fn func(ctx context.Context) error) error {
	err := c.guard.Do(ctx, fn)
	if err == nil {
		return nil
	}

	var (
		notFound *domain.ErrNotFound
		corrupt  *domain.ErrCorruptRecord
		open     *domain.ErrCircuitOpen
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &corrupt):
		return err
	case errors.As(err, &open):
		c.metrics.IncrExternalError(serviceName)
		return err
	case errors.Is(err, context.Canceled):
		return err
	}

	c.metrics.IncrExternalError(serviceName)
	return &domain.ErrExternalService{Service: serviceName, Err: err}
}

// Name and Ping make the client a readiness dependency.
func (c *Client) Name() string { return serviceName }

// Ping reads a single settings row without retries.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, settingsTable+"?select=tenant_id&limit=1", nil, "")
	return err
}
