package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/arrangement-plans-go/internal/arrangement"
	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/resilience"
	"github.com/boddenberg/arrangement-plans-go/internal/port"
)

// ============================================================
// Plans: CRUD via PostgREST
// ============================================================

const plansTable = "arrangement_plans"

var _ port.PlanStore = (*Client)(nil)

// planRow maps the arrangement_plans table. The plan itself lives in the
// payload jsonb column; tier and type are copied out for filtering.
type planRow struct {
	ID          string             `json:"id"`
	TenantID    string             `json:"tenant_id"`
	BalanceTier string             `json:"balance_tier"`
	PlanType    string             `json:"plan_type"`
	Payload     domain.PlanPayload `json:"payload"`
	CreatedAt   time.Time          `json:"created_at"`
}

func rowFromStored(sp domain.StoredPlan) planRow {
	payload := domain.PayloadFromStored(sp)
	// Identity lives in its own columns.
	payload.ID = ""
	payload.CreatedAt = nil
	return planRow{
		ID:          sp.ID,
		TenantID:    sp.TenantID,
		BalanceTier: string(sp.BalanceTier),
		PlanType:    string(sp.Type()),
		Payload:     payload,
		CreatedAt:   sp.CreatedAt,
	}
}

func (r planRow) toStored() (domain.StoredPlan, error) {
	payload := r.Payload
	payload.ID = r.ID
	createdAt := r.CreatedAt.UTC()
	payload.CreatedAt = &createdAt
	return arrangement.DecodeStored(payload, r.TenantID)
}

func decodePlanRows(body []byte) ([]planRow, error) {
	if isEmpty(body) {
		return nil, nil
	}
	var rows []planRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, resilience.Permanent(fmt.Errorf("decode plans: %w", err))
	}
	return rows, nil
}

func (c *Client) CreatePlan(ctx context.Context, tenantID string, plan domain.Plan) (*domain.StoredPlan, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreatePlan")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	row := rowFromStored(domain.StoredPlan{
		Plan:      plan,
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		CreatedAt: time.Now().UTC(),
	})

	var created *domain.StoredPlan
	err := c.call(ctx, func(ctx context.Context) error {
		body, err := c.doRequest(ctx, http.MethodPost, plansTable, row, "return=representation")
		if err != nil {
			return err
		}
		rows, err := decodePlanRows(body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return resilience.Permanent(fmt.Errorf("insert into %s returned no rows", plansTable))
		}
		sp, err := rows[0].toStored()
		if err != nil {
			return resilience.Permanent(err)
		}
		created = &sp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Client) GetPlan(ctx context.Context, tenantID, planID string) (*domain.StoredPlan, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetPlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", planID))

	if _, err := uuid.Parse(planID); err != nil {
		return nil, &domain.ErrNotFound{Resource: "plan", ID: planID}
	}

	var found *domain.StoredPlan
	err := c.call(ctx, func(ctx context.Context) error {
		body, err := c.doRequest(ctx, http.MethodGet, query(plansTable, eq("tenant_id", tenantID), eq("id", planID), "limit=1"), nil, "")
		if err != nil {
			return err
		}
		rows, err := decodePlanRows(body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "plan", ID: planID})
		}
		sp, err := rows[0].toStored()
		if err != nil {
			return resilience.Permanent(err)
		}
		found = &sp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (c *Client) ListPlans(ctx context.Context, tenantID string, filter port.PlanFilter) ([]domain.StoredPlan, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListPlans")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("filter.tier", string(filter.BalanceTier)),
	)

	params := []string{eq("tenant_id", tenantID)}
	if filter.BalanceTier != "" {
		params = append(params, eq("balance_tier", string(filter.BalanceTier)))
	}
	if filter.PlanType != "" {
		params = append(params, eq("plan_type", string(filter.PlanType)))
	}
	params = append(params, "order=created_at.asc,id.asc")

	var plans []domain.StoredPlan
	err := c.call(ctx, func(ctx context.Context) error {
		body, err := c.doRequest(ctx, http.MethodGet, query(plansTable, params...), nil, "")
		if err != nil {
			return err
		}
		rows, err := decodePlanRows(body)
		if err != nil {
			return err
		}
		plans = make([]domain.StoredPlan, 0, len(rows))
		for _, r := range rows {
			sp, err := r.toStored()
			if err != nil {
				return resilience.Permanent(err)
			}
			plans = append(plans, sp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plans, nil
}

func (c *Client) DeletePlan(ctx context.Context, tenantID, planID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeletePlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", planID))

	if _, err := uuid.Parse(planID); err != nil {
		return &domain.ErrNotFound{Resource: "plan", ID: planID}
	}

	return c.call(ctx, func(ctx context.Context) error {
		body, err := c.doRequest(ctx, http.MethodDelete, query(plansTable, eq("tenant_id", tenantID), eq("id", planID)), nil, "return=representation")
		if err != nil {
			return err
		}
		if isEmpty(body) {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "plan", ID: planID})
		}
		return nil
	})
}
