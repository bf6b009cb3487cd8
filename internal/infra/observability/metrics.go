package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
)

// Metrics holds all Prometheus metrics for the plans service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	plansCreated    *prometheus.CounterVec
	plansDeleted    prometheus.Counter
	rejections      *prometheus.CounterVec
	offersServed    *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plans_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plans_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plans_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plans_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		plansCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plans_created_total",
				Help: "Arrangement plans created, by plan type.",
			},
			[]string{"plan_type"},
		),
		plansDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "plans_deleted_total",
				Help: "Arrangement plans deleted.",
			},
		),
		rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plan_rejections_total",
				Help: "Plan submissions rejected by validation, by reason.",
			},
			[]string{"reason"},
		),
		offersServed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plans_offers_served_total",
				Help: "Offer lookups served, by balance tier.",
			},
			[]string{"balance_tier"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

func (m *Metrics) IncrPlanCreated(planType domain.PlanType) {
	m.plansCreated.WithLabelValues(string(planType)).Inc()
}

func (m *Metrics) IncrPlanDeleted() {
	m.plansDeleted.Inc()
}

func (m *Metrics) IncrRejection(reason domain.RejectionReason) {
	m.rejections.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) IncrOfferServed(tier domain.BalanceTier) {
	m.offersServed.WithLabelValues(string(tier)).Inc()
}

// GetPlanSnapshot returns the cumulative plan counters for GET /v1/metrics/plans.
func (m *Metrics) GetPlanSnapshot() *domain.PlanMetrics {
	created := make(map[string]int64, len(domain.AllPlanTypes()))
	for _, t := range domain.AllPlanTypes() {
		created[string(t)] = int64(getCounterValue(m.plansCreated, string(t)))
	}

	reasons := []domain.RejectionReason{
		domain.ReasonMissingField,
		domain.ReasonMalformed,
		domain.ReasonOutOfRange,
		domain.ReasonInvalidRange,
		domain.ReasonUnknownValue,
	}
	rejections := make(map[string]int64, len(reasons))
	for _, r := range reasons {
		rejections[string(r)] = int64(getCounterValue(m.rejections, string(r)))
	}

	hits := getCounterValue(m.cacheHits, "offers")
	misses := getCounterValue(m.cacheMisses, "offers")
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	external := float64(0)
	for _, svc := range []string{"supabase", "mongodb", "redis"} {
		external += getCounterValue(m.externalErrors, svc)
	}

	return &domain.PlanMetrics{
		PlansCreated:   created,
		Rejections:     rejections,
		PlansDeleted:   int64(metricValue(m.plansDeleted)),
		CacheHitRate:   hitRate,
		ExternalErrors: int64(external),
		Period:         "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return metricValue(cv.WithLabelValues(label))
}

func metricValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
