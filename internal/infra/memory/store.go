// Package memory provides process-local plan and settings stores.
// Used by tests and STORE_BACKEND=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/port"
)

// Store keeps plans and settings in maps guarded by a mutex. Plans are kept
// in their wire form so reads go through the same decode path as the
// persistent backends.
type Store struct {
	mu       sync.RWMutex
	plans    map[string]map[string]domain.PlanPayload // tenant -> id -> plan
	settings map[string]domain.ArrangementSettings
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		plans:    make(map[string]map[string]domain.PlanPayload),
		settings: make(map[string]domain.ArrangementSettings),
		now:      time.Now,
	}
}

var (
	_ port.PlanStore     = (*Store)(nil)
	_ port.SettingsStore = (*Store)(nil)
	_ port.HealthChecker = (*Store)(nil)
)

func (s *Store) CreatePlan(_ context.Context, tenantID string, plan domain.Plan) (*domain.StoredPlan, error) {
	sp := domain.StoredPlan{
		Plan:      plan,
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plans[tenantID] == nil {
		s.plans[tenantID] = make(map[string]domain.PlanPayload)
	}
	s.plans[tenantID][sp.ID] = domain.PayloadFromStored(sp)
	return &sp, nil
}

func (s *Store) GetPlan(_ context.Context, tenantID, planID string) (*domain.StoredPlan, error) {
	s.mu.RLock()
	payload, ok := s.plans[tenantID][planID]
	s.mu.RUnlock()
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "plan", ID: planID}
	}

	sp, err := payload.ToStoredPlan(tenantID)
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func (s *Store) ListPlans(_ context.Context, tenantID string, filter port.PlanFilter) ([]domain.StoredPlan, error) {
	s.mu.RLock()
	payloads := make([]domain.PlanPayload, 0, len(s.plans[tenantID]))
	for _, p := range s.plans[tenantID] {
		if filter.BalanceTier != "" && p.BalanceTier != filter.BalanceTier {
			continue
		}
		if filter.PlanType != "" && p.PlanType != filter.PlanType {
			continue
		}
		payloads = append(payloads, p)
	}
	s.mu.RUnlock()

	out := make([]domain.StoredPlan, 0, len(payloads))
	for _, p := range payloads {
		sp, err := p.ToStoredPlan(tenantID)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeletePlan(_ context.Context, tenantID, planID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[tenantID][planID]; !ok {
		return &domain.ErrNotFound{Resource: "plan", ID: planID}
	}
	delete(s.plans[tenantID], planID)
	return nil
}

func (s *Store) GetSettings(_ context.Context, tenantID string) (*domain.ArrangementSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	saved, ok := s.settings[tenantID]
	if !ok {
		return nil, nil
	}
	return &saved, nil
}

func (s *Store) SaveSettings(_ context.Context, settings domain.ArrangementSettings) (*domain.ArrangementSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settings.TenantID] = settings
	return &settings, nil
}

func (s *Store) Name() string { return "memory" }

func (s *Store) Ping(context.Context) error { return nil }
