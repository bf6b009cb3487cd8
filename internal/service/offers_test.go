package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/arrangement-plans-go/internal/arrangement"
	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/cache"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/memory"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/observability"
	"github.com/boddenberg/arrangement-plans-go/internal/port"
	"github.com/boddenberg/arrangement-plans-go/internal/service"
)

// --- Mocks ---

// countingPlanStore wraps a real store and counts list calls.
type countingPlanStore struct {
	port.PlanStore
	lists int
}

func (c *countingPlanStore) ListPlans(ctx context.Context, tenantID string, f port.PlanFilter) ([]domain.StoredPlan, error) {
	c.lists++
	return c.PlanStore.ListPlans(ctx, tenantID, f)
}

// pausingPlanStore holds its first list call until release is closed.
type pausingPlanStore struct {
	port.PlanStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *pausingPlanStore) ListPlans(ctx context.Context, tenantID string, f port.PlanFilter) ([]domain.StoredPlan, error) {
	plans, err := p.PlanStore.ListPlans(ctx, tenantID, f)
	p.once.Do(func() {
		close(p.entered)
		<-p.release
	})
	return plans, err
}

type failingPlanStore struct {
	port.PlanStore
	err error
}

func (f *failingPlanStore) ListPlans(context.Context, string, port.PlanFilter) ([]domain.StoredPlan, error) {
	return nil, f.err
}

type failingSettingsStore struct{ err error }

func (f *failingSettingsStore) GetSettings(context.Context, string) (*domain.ArrangementSettings, error) {
	return nil, f.err
}

func (f *failingSettingsStore) SaveSettings(context.Context, domain.ArrangementSettings) (*domain.ArrangementSettings, error) {
	return nil, f.err
}

// --- Fixture ---

type fixture struct {
	store    *memory.Store
	offerMem *cache.InMemory[[]domain.Offer]
	cache    *service.OfferCache
	metrics  *observability.Metrics
	plans    *service.PlanService
	settings *service.SettingsService
	offers   *service.OfferService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewStore(),
		offerMem: cache.New[[]domain.Offer](5 * time.Minute),
		metrics:  observability.NewMetrics(),
	}
	t.Cleanup(f.offerMem.Close)
	f.cache = service.NewOfferCache(f.offerMem)
	logger := zap.NewNop()
	f.plans = service.NewPlanService(f.store, f.cache, f.metrics, logger)
	f.settings = service.NewSettingsService(f.store, f.cache, logger)
	f.offers = service.NewOfferService(f.store, f.settings, f.cache, f.metrics, logger)
	return f
}

func (f *fixture) mustCreate(t *testing.T, tenantID string, form arrangement.PlanForm) *domain.PlanView {
	t.Helper()
	v, err := f.plans.Create(context.Background(), tenantID, form)
	if err != nil {
		t.Fatalf("create %q: %v", form.Name, err)
	}
	return v
}

// --- Tests ---

func TestOffers_ForBalance_PicksTier(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "t1", arrangement.PlanForm{Name: "Small", BalanceTier: "under_3000", PlanType: "one_time_payment", MinimumPayment: "50"})
	f.mustCreate(t, "t1", arrangement.PlanForm{
		Name: "Short Settlement", BalanceTier: "3000_to_5000", PlanType: "settlement",
		PayoffPercentage: "60", SettlementPaymentCounts: "1,3", SettlementPaymentFrequency: "monthly",
	})

	set, err := f.offers.ForBalance(context.Background(), "t1", 420000)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if set.BalanceTier != domain.Tier3000To5000 {
		t.Errorf("expected tier 3000_to_5000, got %s", set.BalanceTier)
	}
	if len(set.Offers) != 1 || set.Offers[0].Name != "Short Settlement" {
		t.Fatalf("unexpected offers: %+v", set.Offers)
	}
	if !strings.Contains(set.Offers[0].Summary.Headline, "1 or 3 payments") {
		t.Errorf("unexpected headline %q", set.Offers[0].Summary.Headline)
	}
}

func TestOffers_AppliesTenantDefaultMinimum(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "t1", arrangement.PlanForm{Name: "Flex", BalanceTier: "under_3000", PlanType: "range", MonthlyPaymentMax: "200"})

	set, err := f.offers.ForBalance(context.Background(), "t1", 1000)
	if err != nil {
		t.Fatal(err)
	}
	// Default settings carry a $50.00 minimum.
	if got := set.Offers[0].Summary.Headline; got != "Pay $50.00–$200.00/month until paid in full" {
		t.Errorf("unexpected headline %q", got)
	}

	// The stored plan keeps its absent minimum.
	views, _ := f.plans.List(context.Background(), "t1", port.PlanFilter{})
	if views[0].MonthlyPaymentMinCents != nil {
		t.Error("tenant default must not be written into the stored plan")
	}
}

func TestOffers_SettlementToggleAndCacheInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustCreate(t, "t1", arrangement.PlanForm{
		Name: "Settle", BalanceTier: "over_10000", PlanType: "settlement",
		PayoffPercentage: "50", SettlementPaymentCounts: "1", SettlementPaymentFrequency: "weekly",
	})

	set, _ := f.offers.ForBalance(ctx, "t1", 2000000)
	if len(set.Offers) != 1 {
		t.Fatalf("expected 1 offer, got %d", len(set.Offers))
	}

	disabled := false
	if _, err := f.settings.Apply(ctx, "t1", domain.SettingsPatch{SettlementOffersEnabled: &disabled}); err != nil {
		t.Fatal(err)
	}

	set, _ = f.offers.ForBalance(ctx, "t1", 2000000)
	if len(set.Offers) != 0 {
		t.Errorf("settlement offers should be hidden once disabled, got %+v", set.Offers)
	}
}

func TestOffers_CachesPerTier(t *testing.T) {
	f := newFixture(t)
	counting := &countingPlanStore{PlanStore: f.store}
	offers := service.NewOfferService(counting, f.settings, f.cache, f.metrics, zap.NewNop())
	ctx := context.Background()

	f.mustCreate(t, "t1", arrangement.PlanForm{Name: "Once", BalanceTier: "under_3000", PlanType: "one_time_payment", MinimumPayment: "10"})

	for _, bal := range []int64{100, 200, 299999} {
		if _, err := offers.ForBalance(ctx, "t1", bal); err != nil {
			t.Fatal(err)
		}
	}
	if counting.lists != 1 {
		t.Errorf("expected one store read for the tier, got %d", counting.lists)
	}

	f.mustCreate(t, "t1", arrangement.PlanForm{Name: "Twice", BalanceTier: "under_3000", PlanType: "one_time_payment", MinimumPayment: "20"})
	set, _ := offers.ForBalance(ctx, "t1", 100)
	if counting.lists != 2 || len(set.Offers) != 2 {
		t.Errorf("creating a plan should invalidate the tier cache (lists=%d, offers=%d)", counting.lists, len(set.Offers))
	}

	if snap := f.metrics.GetPlanSnapshot(); snap.CacheHitRate <= 0 {
		t.Errorf("expected a positive cache hit rate, got %f", snap.CacheHitRate)
	}
}

func TestOffers_ReadRacingCreateDoesNotCacheStaleOffers(t *testing.T) {
	f := newFixture(t)
	paused := &pausingPlanStore{PlanStore: f.store, entered: make(chan struct{}), release: make(chan struct{})}
	offers := service.NewOfferService(paused, f.settings, f.cache, f.metrics, zap.NewNop())
	ctx := context.Background()

	f.mustCreate(t, "t1", arrangement.PlanForm{Name: "First", BalanceTier: "under_3000", PlanType: "one_time_payment", MinimumPayment: "10"})

	done := make(chan error, 1)
	go func() {
		_, err := offers.ForBalance(ctx, "t1", 100)
		done <- err
	}()

	<-paused.entered
	// The read above already holds a list without this plan.
	f.mustCreate(t, "t1", arrangement.PlanForm{Name: "Second", BalanceTier: "under_3000", PlanType: "one_time_payment", MinimumPayment: "20"})
	close(paused.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	set, err := offers.ForBalance(ctx, "t1", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Offers) != 2 {
		t.Errorf("stale offers were cached after a concurrent create, got %+v", set.Offers)
	}
}

func TestOffers_NegativeBalance(t *testing.T) {
	f := newFixture(t)
	_, err := f.offers.ForBalance(context.Background(), "t1", -1)
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) || verr.Field != "balance" {
		t.Fatalf("expected balance validation error, got %v", err)
	}
}

func TestOffers_StoreError(t *testing.T) {
	f := newFixture(t)
	offers := service.NewOfferService(&failingPlanStore{PlanStore: f.store, err: errors.New("connection refused")},
		f.settings, f.cache, f.metrics, zap.NewNop())

	if _, err := offers.ForBalance(context.Background(), "t1", 100); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestOffers_SettingsError(t *testing.T) {
	f := newFixture(t)
	settings := service.NewSettingsService(&failingSettingsStore{err: errors.New("timeout")}, f.cache, zap.NewNop())
	offers := service.NewOfferService(f.store, settings, f.cache, f.metrics, zap.NewNop())

	if _, err := offers.ForBalance(context.Background(), "t1", 100); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestOffers_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.offers.ForBalance(ctx, "t1", 100); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
