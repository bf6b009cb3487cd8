// Package service provides the business logic layer (use cases) for the
// arrangement plan catalog.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/arrangement-plans-go/internal/arrangement"
	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/observability"
	"github.com/boddenberg/arrangement-plans-go/internal/port"
)

var planTracer = otel.Tracer("service/plans")

// PlanService manages a tenant's plan catalog.
type PlanService struct {
	store   port.PlanStore
	offers  *OfferCache
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewPlanService creates a plan service. offers is the cache read by
// OfferService; it is invalidated whenever the catalog changes.
func NewPlanService(store port.PlanStore, offers *OfferCache, metrics *observability.Metrics, logger *zap.Logger) *PlanService {
	return &PlanService{store: store, offers: offers, metrics: metrics, logger: logger}
}

// Create validates a raw form and stores the resulting plan.
func (s *PlanService) Create(ctx context.Context, tenantID string, form arrangement.PlanForm) (*domain.PlanView, error) {
	ctx, span := planTracer.Start(ctx, "PlanService.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("plan.type", form.PlanType),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("plan_create", time.Since(start))
	}()

	plan, err := s.validate(form)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.CreatePlan(ctx, tenantID, plan)
	if err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}

	s.metrics.IncrPlanCreated(stored.Type())
	s.offers.invalidate(offerCacheKey(tenantID, stored.BalanceTier))

	s.logger.Info("plan created",
		zap.String("tenant_id", tenantID),
		zap.String("plan_id", stored.ID),
		zap.String("plan_type", string(stored.Type())),
		zap.String("balance_tier", string(stored.BalanceTier)),
	)

	view := viewOf(*stored)
	return &view, nil
}

// Preview validates a raw form and renders it without persisting anything.
func (s *PlanService) Preview(ctx context.Context, form arrangement.PlanForm) (*domain.PlanView, error) {
	_, span := planTracer.Start(ctx, "PlanService.Preview")
	defer span.End()

	plan, err := s.validate(form)
	if err != nil {
		return nil, err
	}
	return &domain.PlanView{
		PlanPayload: domain.PayloadFromPlan(plan),
		Summary:     arrangement.Summarize(plan),
	}, nil
}

func (s *PlanService) Get(ctx context.Context, tenantID, planID string) (*domain.PlanView, error) {
	ctx, span := planTracer.Start(ctx, "PlanService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", planID))

	stored, err := s.store.GetPlan(ctx, tenantID, planID)
	if err != nil {
		return nil, err
	}
	view := viewOf(*stored)
	return &view, nil
}

// List returns the tenant's plans matching filter, oldest first.
func (s *PlanService) List(ctx context.Context, tenantID string, filter port.PlanFilter) ([]domain.PlanView, error) {
	ctx, span := planTracer.Start(ctx, "PlanService.List")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("filter.tier", string(filter.BalanceTier)),
	)

	plans, err := s.store.ListPlans(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}

	views := make([]domain.PlanView, 0, len(plans))
	for _, p := range plans {
		views = append(views, viewOf(p))
	}
	return views, nil
}

func (s *PlanService) Delete(ctx context.Context, tenantID, planID string) error {
	ctx, span := planTracer.Start(ctx, "PlanService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", planID))

	stored, err := s.store.GetPlan(ctx, tenantID, planID)
	if err != nil {
		return err
	}
	if err := s.store.DeletePlan(ctx, tenantID, planID); err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}

	s.metrics.IncrPlanDeleted()
	s.offers.invalidate(offerCacheKey(tenantID, stored.BalanceTier))
	s.logger.Info("plan deleted",
		zap.String("tenant_id", tenantID),
		zap.String("plan_id", planID),
	)
	return nil
}

func (s *PlanService) validate(form arrangement.PlanForm) (domain.Plan, error) {
	plan, err := arrangement.ValidateForm(form)
	if err != nil {
		var verr *domain.ErrValidation
		if errors.As(err, &verr) {
			s.metrics.IncrRejection(verr.Reason)
			s.logger.Debug("plan rejected",
				zap.String("field", verr.Field),
				zap.String("reason", string(verr.Reason)),
			)
		}
		return domain.Plan{}, err
	}
	return plan, nil
}

func viewOf(sp domain.StoredPlan) domain.PlanView {
	return domain.PlanView{
		PlanPayload: domain.PayloadFromStored(sp),
		Summary:     arrangement.Summarize(sp.Plan),
	}
}
