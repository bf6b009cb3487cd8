package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/observability"
	"github.com/boddenberg/arrangement-plans-go/internal/port"
	"github.com/boddenberg/arrangement-plans-go/internal/service"
)

var tracer = otel.Tracer("handler")

// healthCheckTimeout bounds each dependency ping on /healthz and /readyz.
const healthCheckTimeout = 2 * time.Second

// Services groups the use cases exposed over HTTP.
type Services struct {
	Plans    *service.PlanService
	Settings *service.SettingsService
	Offers   *service.OfferService
	Auth     *service.AuthService
}

// RouterConfig holds transport-level options.
type RouterConfig struct {
	AllowedOrigins []string
	// DevTokens mounts POST /v1/dev/token. Never enable it in production.
	DevTokens bool
	Checkers  []port.HealthChecker
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, cfg RouterConfig, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", apiKeyHeader, tenantIDHeader},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(cfg.Checkers))
	r.Get("/readyz", readyzHandler(cfg.Checkers, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Integrations resolve offers for an account balance.
		r.Group(func(r chi.Router) {
			r.Use(APIKeyMiddleware(svcs.Auth, logger))
			r.Get("/offers", offersHandler(svcs.Offers, logger))
		})

		// Admin console.
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svcs.Auth, logger))

			r.Get("/auth/me", whoAmIHandler())

			r.Get("/plans", listPlansHandler(svcs.Plans, logger))
			r.Get("/plans/{planId}", getPlanHandler(svcs.Plans, logger))
			r.Get("/settings/arrangements", getSettingsHandler(svcs.Settings, logger))
			r.Get("/metrics/plans", planMetricsHandler(metrics))

			r.Group(func(r chi.Router) {
				r.Use(RequireWrite(logger))
				r.Post("/plans", createPlanHandler(svcs.Plans, logger))
				r.Post("/plans/preview", previewPlanHandler(svcs.Plans, logger))
				r.Delete("/plans/{planId}", deletePlanHandler(svcs.Plans, logger))
				r.Patch("/settings/arrangements", patchSettingsHandler(svcs.Settings, logger))
			})
		})

		if cfg.DevTokens {
			logger.Warn("dev token endpoint enabled")
			r.Post("/dev/token", devTokenHandler(svcs.Auth, logger))
		}
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func checkAll(ctx context.Context, checkers []port.HealthChecker) []domain.ServiceHealth {
	now := time.Now().UTC().Format(time.RFC3339)
	services := []domain.ServiceHealth{
		{Name: "plans-api", Status: "healthy", LastChecked: now},
	}
	for _, c := range checkers {
		pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		start := time.Now()
		err := c.Ping(pingCtx)
		cancel()

		status := "healthy"
		if err != nil {
			status = "degraded"
		}
		services = append(services, domain.ServiceHealth{
			Name:        c.Name(),
			Status:      status,
			LatencyMs:   time.Since(start).Milliseconds(),
			LastChecked: now,
		})
	}
	return services
}

func overallStatus(services []domain.ServiceHealth) string {
	overall := "healthy"
	for _, s := range services {
		if s.Status == "unhealthy" {
			return "unhealthy"
		}
		if s.Status == "degraded" {
			overall = "degraded"
		}
	}
	return overall
}

func healthzHandler(checkers []port.HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := checkAll(r.Context(), checkers)
		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus(services),
			Services: services,
		})
	}
}

// readyzHandler fails while any dependency is unreachable.
func readyzHandler(checkers []port.HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := checkAll(r.Context(), checkers)
		if overallStatus(services) != "healthy" {
			logger.Warn("not ready", zap.Any("services", services))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func planMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetPlanSnapshot())
	}
}
