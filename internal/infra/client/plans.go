// Package client provides an HTTP client for the plans API, used by planctl.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/arrangement-plans-go/internal/arrangement"
	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/resilience"
	"github.com/boddenberg/arrangement-plans-go/internal/port"
)

var tracer = otel.Tracer("client")

const serviceName = "plans-api"

// PlansClient calls the admin plan endpoints with a bearer token.
type PlansClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	guard      *resilience.Guard
}

// NewPlansClient creates a client for the API at baseURL.
func NewPlansClient(httpClient *http.Client, baseURL, token string, cfg resilience.Config, logger *zap.Logger) *PlansClient {
	return &PlansClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      token,
		guard:      resilience.NewGuard(serviceName, cfg, logger),
	}
}

// apiError mirrors the API's error body.
type apiError struct {
	Error  string                 `json:"error"`
	Field  string                 `json:"field"`
	Reason domain.RejectionReason `json:"reason"`
}

// Create submits a plan form.
func (c *PlansClient) Create(ctx context.Context, form arrangement.PlanForm) (*domain.PlanView, error) {
	ctx, span := tracer.Start(ctx, "PlansClient.Create")
	defer span.End()
	span.SetAttributes(attribute.String("plan.type", form.PlanType))

	var view domain.PlanView
	if err := c.do(ctx, http.MethodPost, "/v1/plans", form, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// List returns the token tenant's plans matching filter.
func (c *PlansClient) List(ctx context.Context, filter port.PlanFilter) ([]domain.PlanView, error) {
	ctx, span := tracer.Start(ctx, "PlansClient.List")
	defer span.End()

	q := url.Values{}
	if filter.BalanceTier != "" {
		q.Set("tier", string(filter.BalanceTier))
	}
	if filter.PlanType != "" {
		q.Set("type", string(filter.PlanType))
	}
	path := "/v1/plans"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list domain.ListResponse[domain.PlanView]
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

func (c *PlansClient) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	err := c.guard.Do(ctx, func(ctx context.Context) error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return resilience.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return resilience.Permanent(fmt.Errorf("decode response: %w", err))
			}
			return nil
		}

		var apiErr apiError
		json.NewDecoder(resp.Body).Decode(&apiErr)
		if statusErr := errorForStatus(resp.StatusCode, apiErr, path); statusErr != nil {
			return resilience.Permanent(statusErr)
		}
		return fmt.Errorf("plans API returned status %d: %s", resp.StatusCode, apiErr.Error)
	})
	if err == nil {
		return nil
	}

	var (
		validation   *domain.ErrValidation
		notFound     *domain.ErrNotFound
		unauthorized *domain.ErrUnauthorized
		forbidden    *domain.ErrForbidden
		open         *domain.ErrCircuitOpen
	)
	if errors.As(err, &validation) || errors.As(err, &notFound) || errors.As(err, &unauthorized) ||
		errors.As(err, &forbidden) || errors.As(err, &open) || errors.Is(err, context.Canceled) {
		return err
	}
	return &domain.ErrExternalService{Service: serviceName, Err: err}
}

// errorForStatus maps non-retryable responses to domain errors. It returns nil
// for statuses worth retrying.
func errorForStatus(status int, apiErr apiError, path string) error {
	switch {
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		if apiErr.Field != "" {
			return &domain.ErrValidation{Field: apiErr.Field, Reason: apiErr.Reason, Message: apiErr.Error}
		}
		return fmt.Errorf("plans API rejected request: %s", apiErr.Error)
	case status == http.StatusNotFound:
		return &domain.ErrNotFound{Resource: "plan", ID: path}
	case status == http.StatusUnauthorized:
		return &domain.ErrUnauthorized{Message: apiErr.Error}
	case status == http.StatusForbidden:
		return &domain.ErrForbidden{Action: path}
	case status == http.StatusTooManyRequests || status >= 500:
		return nil
	default:
		return fmt.Errorf("plans API returned status %d: %s", status, apiErr.Error)
	}
}
