package supabase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/observability"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/resilience"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/supabase"
	"github.com/boddenberg/arrangement-plans-go/internal/port"
)

// fakePostgREST answers the handful of queries the client issues, keeping
// rows as raw JSON objects.
type fakePostgREST struct {
	mu       sync.Mutex
	plans    []map[string]any
	settings map[string]map[string]any
	requests atomic.Int32
}

func newFakePostgREST() *fakePostgREST {
	return &fakePostgREST{settings: make(map[string]map[string]any)}
}

// eqValue extracts the value of a column=eq.value filter.
func eqValue(r *http.Request, column string) (string, bool) {
	raw := r.URL.Query().Get(column)
	if raw == "" {
		return "", false
	}
	return strings.TrimPrefix(raw, "eq."), true
}

func (f *fakePostgREST) matches(r *http.Request, row map[string]any) bool {
	for _, col := range []string{"tenant_id", "id", "balance_tier", "plan_type"} {
		if want, ok := eqValue(r, col); ok && row[col] != want {
			return false
		}
	}
	return true
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	if r.Header.Get("apikey") != "anon" || r.Header.Get("Authorization") != "Bearer service" {
		http.Error(w, `{"message":"bad key"}`, http.StatusUnauthorized)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch strings.TrimPrefix(r.URL.Path, "/rest/v1/") {
	case "arrangement_plans":
		switch r.Method {
		case http.MethodPost:
			var row map[string]any
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &row)
			f.plans = append(f.plans, row)
			json.NewEncoder(w).Encode([]map[string]any{row})
		case http.MethodGet:
			out := []map[string]any{}
			for _, row := range f.plans {
				if f.matches(r, row) {
					out = append(out, row)
				}
			}
			json.NewEncoder(w).Encode(out)
		case http.MethodDelete:
			out, kept := []map[string]any{}, f.plans[:0]
			for _, row := range f.plans {
				if f.matches(r, row) {
					out = append(out, row)
				} else {
					kept = append(kept, row)
				}
			}
			f.plans = kept
			json.NewEncoder(w).Encode(out)
		}
	case "arrangement_settings":
		switch r.Method {
		case http.MethodPost:
			var row map[string]any
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &row)
			f.settings[row["tenant_id"].(string)] = row
			json.NewEncoder(w).Encode([]map[string]any{row})
		case http.MethodGet:
			out := []map[string]any{}
			if tenant, ok := eqValue(r, "tenant_id"); ok {
				if row, ok := f.settings[tenant]; ok {
					out = append(out, row)
				}
			}
			json.NewEncoder(w).Encode(out)
		}
	default:
		http.NotFound(w, r)
	}
}

func newClient(t *testing.T, h http.Handler) (*supabase.Client, *observability.Metrics) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	metrics := observability.NewMetrics()
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxConcurrency: 4}
	return supabase.NewClient(srv.Client(), srv.URL, "anon", "service", cfg, metrics, zap.NewNop()), metrics
}

func fixedPlan(name string, tier domain.BalanceTier) domain.Plan {
	return domain.Plan{
		Name:        name,
		BalanceTier: tier,
		Terms:       domain.FixedMonthlyTerms{FixedMonthlyPaymentCents: 15000},
	}
}

func TestPlans_RoundTrip(t *testing.T) {
	client, _ := newClient(t, newFakePostgREST())
	ctx := context.Background()

	created, err := client.CreatePlan(ctx, "t1", fixedPlan("Fixed", domain.TierUnder3000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("expected identity, got %+v", created)
	}

	got, err := client.GetPlan(ctx, "t1", created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	terms, ok := got.Terms.(domain.FixedMonthlyTerms)
	if !ok || terms.FixedMonthlyPaymentCents != 15000 || got.Name != "Fixed" {
		t.Errorf("unexpected plan: %+v", got)
	}

	if _, err := client.CreatePlan(ctx, "t1", fixedPlan("Other", domain.TierOver10000)); err != nil {
		t.Fatal(err)
	}
	plans, err := client.ListPlans(ctx, "t1", port.PlanFilter{BalanceTier: domain.TierUnder3000})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(plans) != 1 || plans[0].ID != created.ID {
		t.Errorf("unexpected filtered list: %+v", plans)
	}

	if err := client.DeletePlan(ctx, "t1", created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var nf *domain.ErrNotFound
	if err := client.DeletePlan(ctx, "t1", created.ID); !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := client.GetPlan(ctx, "t1", created.ID); !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPlans_OtherTenantIsNotFound(t *testing.T) {
	client, _ := newClient(t, newFakePostgREST())
	ctx := context.Background()

	created, err := client.CreatePlan(ctx, "t1", fixedPlan("Mine", domain.TierUnder3000))
	if err != nil {
		t.Fatal(err)
	}
	var nf *domain.ErrNotFound
	if _, err := client.GetPlan(ctx, "t2", created.ID); !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := client.GetPlan(ctx, "t1", "not-a-uuid"); !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound for malformed id, got %v", err)
	}
}

func TestPlans_LegacyRowIsMigrated(t *testing.T) {
	fake := newFakePostgREST()
	fake.plans = append(fake.plans, map[string]any{
		"id":           "6f1c2a34-3b7e-4c55-9a0e-1d2f3a4b5c6d",
		"tenant_id":    "t1",
		"balance_tier": "5000_to_10000",
		"plan_type":    "settlement",
		"created_at":   "2024-01-02T03:04:05Z",
		"payload": map[string]any{
			"name":                   "Old settlement",
			"balanceTier":            "5000_to_10000",
			"planType":               "settlement",
			"payoffPercentage":       60,
			"settlementPaymentCount": 3,
			"paymentFrequency":       "monthly",
		},
	})
	client, _ := newClient(t, fake)

	got, err := client.GetPlan(context.Background(), "t1", "6f1c2a34-3b7e-4c55-9a0e-1d2f3a4b5c6d")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	terms, ok := got.Terms.(domain.SettlementTerms)
	if !ok || terms.PayoffPercentageBasisPoints != 6000 || len(terms.PaymentCounts) != 1 || terms.PaymentCounts[0] != 3 {
		t.Errorf("legacy row not migrated: %+v", got.Terms)
	}
}

func TestPlans_CorruptRowSurfaces(t *testing.T) {
	fake := newFakePostgREST()
	fake.plans = append(fake.plans, map[string]any{
		"id":           "0b7f3e1c-1111-4a2b-8c3d-4e5f6a7b8c9d",
		"tenant_id":    "t1",
		"balance_tier": "under_3000",
		"plan_type":    "fixed_monthly",
		"created_at":   "2024-01-02T03:04:05Z",
		"payload":      map[string]any{"name": "Broken", "balanceTier": "under_3000", "planType": "fixed_monthly"},
	})
	client, _ := newClient(t, fake)

	_, err := client.ListPlans(context.Background(), "t1", port.PlanFilter{})
	var corrupt *domain.ErrCorruptRecord
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected ErrCorruptRecord, got %v", err)
	}
}

func TestSettings_UpsertAndRead(t *testing.T) {
	client, _ := newClient(t, newFakePostgREST())
	ctx := context.Background()

	none, err := client.GetSettings(ctx, "t1")
	if err != nil || none != nil {
		t.Fatalf("expected no settings, got %+v, %v", none, err)
	}

	updated := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if _, err := client.SaveSettings(ctx, domain.ArrangementSettings{
		TenantID: "t1", DefaultMonthlyPaymentMinCents: 7500, UpdatedAt: updated,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := client.GetSettings(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.DefaultMonthlyPaymentMinCents != 7500 || got.SettlementOffersEnabled || !got.UpdatedAt.Equal(updated) {
		t.Errorf("unexpected settings: %+v", got)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	fake := newFakePostgREST()
	var calls atomic.Int32
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		fake.ServeHTTP(w, r)
	}))

	if _, err := client.GetSettings(context.Background(), "t1"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestClient_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, metrics := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"message":"permission denied"}`, http.StatusForbidden)
	}))

	_, err := client.ListPlans(context.Background(), "t1", port.PlanFilter{})
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) || ext.Service != "supabase" {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("4xx must not be retried, got %d attempts", calls.Load())
	}
	if snap := metrics.GetPlanSnapshot(); snap.ExternalErrors != 1 {
		t.Errorf("expected external error to be counted, got %d", snap.ExternalErrors)
	}
}

func TestClient_Ping(t *testing.T) {
	client, _ := newClient(t, newFakePostgREST())
	if client.Name() != "supabase" {
		t.Errorf("unexpected name %q", client.Name())
	}
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}
