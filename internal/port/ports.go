// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// PlanFilter narrows a plan listing. The zero value lists everything.
type PlanFilter struct {
	BalanceTier domain.BalanceTier
	PlanType    domain.PlanType
}

// PlanStore persists arrangement plans. Every call is scoped to a tenant;
// a plan owned by another tenant behaves as if it did not exist.
type PlanStore interface {
	CreatePlan(ctx context.Context, tenantID string, plan domain.Plan) (*domain.StoredPlan, error)
	GetPlan(ctx context.Context, tenantID, planID string) (*domain.StoredPlan, error)
	ListPlans(ctx context.Context, tenantID string, filter PlanFilter) ([]domain.StoredPlan, error)
	DeletePlan(ctx context.Context, tenantID, planID string) error
}

// SettingsStore persists tenant arrangement settings. GetSettings returns
// (nil, nil) when the tenant never saved any.
type SettingsStore interface {
	GetSettings(ctx context.Context, tenantID string) (*domain.ArrangementSettings, error)
	SaveSettings(ctx context.Context, settings domain.ArrangementSettings) (*domain.ArrangementSettings, error)
}

// HealthChecker reports whether a backend is reachable.
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}
