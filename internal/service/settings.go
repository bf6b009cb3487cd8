package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/arrangement-plans-go/internal/arrangement"
	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/port"
)

var settingsTracer = otel.Tracer("service/settings")

// SettingsService loads and commits tenant arrangement settings.
type SettingsService struct {
	store  port.SettingsStore
	offers *OfferCache
	logger *zap.Logger
	now    func() time.Time
}

func NewSettingsService(store port.SettingsStore, offers *OfferCache, logger *zap.Logger) *SettingsService {
	return &SettingsService{store: store, offers: offers, logger: logger, now: time.Now}
}

// Get returns the tenant's saved settings, or the defaults if nothing was saved.
func (s *SettingsService) Get(ctx context.Context, tenantID string) (*domain.ArrangementSettings, error) {
	ctx, span := settingsTracer.Start(ctx, "SettingsService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	saved, err := s.store.GetSettings(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if saved == nil {
		def := domain.DefaultArrangementSettings(tenantID)
		return &def, nil
	}
	return saved, nil
}

// Draft starts an edit session on the tenant's current settings.
func (s *SettingsService) Draft(ctx context.Context, tenantID string) (domain.SettingsDraft, error) {
	current, err := s.Get(ctx, tenantID)
	if err != nil {
		return domain.SettingsDraft{}, err
	}
	return domain.NewSettingsDraft(*current), nil
}

// Commit persists a draft. A draft without changes is not written and the
// settings it was built from are returned as is.
func (s *SettingsService) Commit(ctx context.Context, draft domain.SettingsDraft) (*domain.ArrangementSettings, error) {
	ctx, span := settingsTracer.Start(ctx, "SettingsService.Commit")
	defer span.End()

	if !draft.HasUnsavedChanges() {
		base := draft.Base()
		return &base, nil
	}

	pending := draft.Pending()
	if pending.DefaultMonthlyPaymentMinCents < 0 {
		return nil, &domain.ErrValidation{
			Field:   "defaultMonthlyPaymentMin",
			Reason:  domain.ReasonOutOfRange,
			Message: "default monthly minimum cannot be negative",
		}
	}
	pending.UpdatedAt = s.now().UTC()

	saved, err := s.store.SaveSettings(ctx, pending)
	if err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}

	// Both settings feed into every tier's offers.
	s.offers.invalidateTenant(saved.TenantID)

	s.logger.Info("arrangement settings saved",
		zap.String("tenant_id", saved.TenantID),
		zap.Int64("default_monthly_min_cents", saved.DefaultMonthlyPaymentMinCents),
		zap.Bool("settlement_offers_enabled", saved.SettlementOffersEnabled),
	)
	return saved, nil
}

// Apply stages a patch on the current settings and commits it.
func (s *SettingsService) Apply(ctx context.Context, tenantID string, patch domain.SettingsPatch) (*domain.ArrangementSettings, error) {
	draft, err := s.Draft(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if patch.DefaultMonthlyPaymentMin != nil {
		cents, ok := arrangement.ParseCurrency(*patch.DefaultMonthlyPaymentMin)
		if !ok {
			return nil, &domain.ErrValidation{
				Field:   "defaultMonthlyPaymentMin",
				Reason:  domain.ReasonMalformed,
				Message: "default monthly minimum must be a dollar amount",
			}
		}
		draft = draft.WithDefaultMonthlyPaymentMin(cents)
	}
	if patch.SettlementOffersEnabled != nil {
		draft = draft.WithSettlementOffersEnabled(*patch.SettlementOffersEnabled)
	}

	return s.Commit(ctx, draft)
}
