package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/resilience"
	"github.com/boddenberg/arrangement-plans-go/internal/port"
)

const settingsTable = "arrangement_settings"

var _ port.SettingsStore = (*Client)(nil)

type settingsRow struct {
	TenantID                      string    `json:"tenant_id"`
	DefaultMonthlyPaymentMinCents int64     `json:"default_monthly_payment_min_cents"`
	SettlementOffersEnabled       bool      `json:"settlement_offers_enabled"`
	UpdatedAt                     time.Time `json:"updated_at"`
}

func (r settingsRow) toDomain() *domain.ArrangementSettings {
	return &domain.ArrangementSettings{
		TenantID:                      r.TenantID,
		DefaultMonthlyPaymentMinCents: r.DefaultMonthlyPaymentMinCents,
		SettlementOffersEnabled:       r.SettlementOffersEnabled,
		UpdatedAt:                     r.UpdatedAt.UTC(),
	}
}

func decodeSettingsRow(body []byte) (*domain.ArrangementSettings, error) {
	if isEmpty(body) {
		return nil, nil
	}
	var rows []settingsRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, resilience.Permanent(fmt.Errorf("decode settings: %w", err))
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toDomain(), nil
}

// GetSettings returns nil without error when the tenant never saved settings.
func (c *Client) GetSettings(ctx context.Context, tenantID string) (*domain.ArrangementSettings, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetSettings")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	var saved *domain.ArrangementSettings
	err := c.call(ctx, func(ctx context.Context) error {
		body, err := c.doRequest(ctx, http.MethodGet, query(settingsTable, eq("tenant_id", tenantID), "limit=1"), nil, "")
		if err != nil {
			return err
		}
		saved, err = decodeSettingsRow(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// SaveSettings upserts the tenant's row.
func (c *Client) SaveSettings(ctx context.Context, settings domain.ArrangementSettings) (*domain.ArrangementSettings, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SaveSettings")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", settings.TenantID))

	row := settingsRow{
		TenantID:                      settings.TenantID,
		DefaultMonthlyPaymentMinCents: settings.DefaultMonthlyPaymentMinCents,
		SettlementOffersEnabled:       settings.SettlementOffersEnabled,
		UpdatedAt:                     settings.UpdatedAt,
	}

	var saved *domain.ArrangementSettings
	err := c.call(ctx, func(ctx context.Context) error {
		body, err := c.doRequest(ctx, http.MethodPost, query(settingsTable, "on_conflict=tenant_id"), row,
			"resolution=merge-duplicates,return=representation")
		if err != nil {
			return err
		}
		saved, err = decodeSettingsRow(body)
		if err == nil && saved == nil {
			return resilience.Permanent(fmt.Errorf("upsert into %s returned no rows", settingsTable))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}
