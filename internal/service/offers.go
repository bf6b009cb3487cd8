package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/arrangement-plans-go/internal/arrangement"
	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/observability"
	"github.com/boddenberg/arrangement-plans-go/internal/port"
)

var tracer = otel.Tracer("service/offers")

// OfferService resolves which plans an account is offered for its balance.
type OfferService struct {
	plans    port.PlanStore
	settings *SettingsService
	cache    *OfferCache
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewOfferService creates the offer service with all dependencies injected.
func NewOfferService(
	plans port.PlanStore,
	settings *SettingsService,
	cache *OfferCache,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *OfferService {
	return &OfferService{
		plans:    plans,
		settings: settings,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
	}
}

// ForBalance returns the offers for an account owing balanceCents.
// The tier's plans and the tenant settings are fetched concurrently; the
// rendered offers are cached per tenant and tier.
func (o *OfferService) ForBalance(ctx context.Context, tenantID string, balanceCents int64) (*domain.OfferSet, error) {
	// Bail out early if the caller already cancelled.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if balanceCents < 0 {
		return nil, &domain.ErrValidation{Field: "balance", Reason: domain.ReasonOutOfRange, Message: "balance cannot be negative"}
	}

	ctx, span := tracer.Start(ctx, "OfferService.ForBalance")
	defer span.End()

	tier := domain.TierForBalance(balanceCents)
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("balance.tier", string(tier)),
	)

	start := time.Now()
	defer func() {
		o.metrics.RecordRequestDuration("offers", time.Since(start))
	}()

	offers, err := o.offersForTier(ctx, tenantID, tier)
	if err != nil {
		return nil, err
	}
	o.metrics.IncrOfferServed(tier)

	return &domain.OfferSet{
		TenantID:     tenantID,
		BalanceCents: balanceCents,
		BalanceTier:  tier,
		Offers:       offers,
	}, nil
}

func (o *OfferService) offersForTier(ctx context.Context, tenantID string, tier domain.BalanceTier) ([]domain.Offer, error) {
	cacheKey := offerCacheKey(tenantID, tier)
	cached, gen, ok := o.cache.lookup(cacheKey)
	if ok {
		o.metrics.IncrCacheHit("offers")
		return cached, nil
	}
	o.metrics.IncrCacheMiss("offers")

	var (
		plans    []domain.StoredPlan
		settings *domain.ArrangementSettings
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := o.plans.ListPlans(gCtx, tenantID, port.PlanFilter{BalanceTier: tier})
		if err != nil {
			o.logger.Error("failed to list plans for offers",
				zap.String("tenant_id", tenantID),
				zap.String("balance_tier", string(tier)),
				zap.Error(err),
			)
			return fmt.Errorf("plans fetch: %w", err)
		}
		plans = p
		return nil
	})

	g.Go(func() error {
		s, err := o.settings.Get(gCtx, tenantID)
		if err != nil {
			o.logger.Error("failed to load settings for offers",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
			return fmt.Errorf("settings fetch: %w", err)
		}
		settings = s
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	offers := buildOffers(plans, *settings)
	if !o.cache.fill(cacheKey, gen, offers) {
		o.logger.Debug("offers changed during read; not caching",
			zap.String("tenant_id", tenantID),
			zap.String("balance_tier", string(tier)),
		)
	}
	return offers, nil
}

func buildOffers(plans []domain.StoredPlan, settings domain.ArrangementSettings) []domain.Offer {
	offers := make([]domain.Offer, 0, len(plans))
	for _, sp := range plans {
		if sp.Type() == domain.PlanTypeSettlement && !settings.SettlementOffersEnabled {
			continue
		}
		plan := arrangement.ApplyTenantDefaults(sp.Plan, settings)
		offers = append(offers, domain.Offer{
			PlanID:      sp.ID,
			Name:        plan.Name,
			Description: plan.Description,
			PlanType:    plan.Type(),
			Summary:     arrangement.Summarize(plan),
		})
	}
	return offers
}
