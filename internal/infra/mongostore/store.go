// Package mongostore stores plans and settings in MongoDB.
package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/arrangement-plans-go/internal/arrangement"
	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/observability"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/resilience"
	"github.com/boddenberg/arrangement-plans-go/internal/port"
)

var tracer = otel.Tracer("mongostore")

const (
	serviceName        = "mongodb"
	plansCollection    = "arrangement_plans"
	settingsCollection = "arrangement_settings"
	connectTimeout     = 10 * time.Second
)

// Store implements the plan and settings ports on two collections.
type Store struct {
	client   *mongo.Client
	plans    *mongo.Collection
	settings *mongo.Collection
	guard    *resilience.Guard
	metrics  *observability.Metrics
	logger   *zap.Logger
}

var (
	_ port.PlanStore     = (*Store)(nil)
	_ port.SettingsStore = (*Store)(nil)
	_ port.HealthChecker = (*Store)(nil)
)

// Connect opens a client, verifies it with a ping and ensures the plan index.
func Connect(ctx context.Context, uri, database string, cfg resilience.Config, metrics *observability.Metrics, logger *zap.Logger) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetConnectTimeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		plans:    db.Collection(plansCollection),
		settings: db.Collection(settingsCollection),
		guard:    resilience.NewGuard(serviceName, cfg, logger),
		metrics:  metrics,
		logger:   logger,
	}

	_, err = s.plans.Indexes().CreateOne(pingCtx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "tenant_id", Value: 1},
			{Key: "balance_tier", Value: 1},
			{Key: "created_at", Value: 1},
		},
	})
	if err != nil {
		logger.Warn("mongodb: could not ensure plan index", zap.Error(err))
	}

	logger.Info("mongodb connected", zap.String("database", database))
	return s, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ============================================================
// Documents
// ============================================================

// planDocument keeps the canonical payload as a subdocument, with the
// identity and filter fields lifted to the top level.
type planDocument struct {
	ID          string    `bson:"_id"`
	TenantID    string    `bson:"tenant_id"`
	BalanceTier string    `bson:"balance_tier"`
	PlanType    string    `bson:"plan_type"`
	CreatedAt   time.Time `bson:"created_at"`
	Payload     bson.D    `bson:"payload"`
}

type settingsDocument struct {
	TenantID                      string    `bson:"_id"`
	DefaultMonthlyPaymentMinCents int64     `bson:"default_monthly_payment_min_cents"`
	SettlementOffersEnabled       bool      `bson:"settlement_offers_enabled"`
	UpdatedAt                     time.Time `bson:"updated_at"`
}

func documentFromStored(sp domain.StoredPlan) (planDocument, error) {
	payload := domain.PayloadFromStored(sp)
	payload.ID = ""
	payload.CreatedAt = nil

	raw, err := json.Marshal(payload)
	if err != nil {
		return planDocument{}, fmt.Errorf("encode plan payload: %w", err)
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return planDocument{}, fmt.Errorf("convert plan payload: %w", err)
	}

	return planDocument{
		ID:          sp.ID,
		TenantID:    sp.TenantID,
		BalanceTier: string(sp.BalanceTier),
		PlanType:    string(sp.Type()),
		CreatedAt:   sp.CreatedAt,
		Payload:     doc,
	}, nil
}

func (d planDocument) toStored() (domain.StoredPlan, error) {
	raw, err := bson.MarshalExtJSON(d.Payload, false, false)
	if err != nil {
		return domain.StoredPlan{}, &domain.ErrCorruptRecord{ID: d.ID, Reason: err.Error()}
	}
	var payload domain.PlanPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.StoredPlan{}, &domain.ErrCorruptRecord{ID: d.ID, Reason: err.Error()}
	}
	payload.ID = d.ID
	createdAt := d.CreatedAt.UTC()
	payload.CreatedAt = &createdAt
	return arrangement.DecodeStored(payload, d.TenantID)
}

// ============================================================
// Plans
// ============================================================

func (s *Store) CreatePlan(ctx context.Context, tenantID string, plan domain.Plan) (*domain.StoredPlan, error) {
	ctx, span := tracer.Start(ctx, "Mongo.CreatePlan")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	sp := domain.StoredPlan{
		Plan:     plan,
		ID:       uuid.NewString(),
		TenantID: tenantID,
		// BSON dates carry milliseconds.
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	doc, err := documentFromStored(sp)
	if err != nil {
		return nil, err
	}

	err = s.call(ctx, func(ctx context.Context) error {
		_, err := s.plans.InsertOne(ctx, doc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func (s *Store) GetPlan(ctx context.Context, tenantID, planID string) (*domain.StoredPlan, error) {
	ctx, span := tracer.Start(ctx, "Mongo.GetPlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", planID))

	var doc planDocument
	err := s.call(ctx, func(ctx context.Context) error {
		err := s.plans.FindOne(ctx, bson.D{{Key: "_id", Value: planID}, {Key: "tenant_id", Value: tenantID}}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "plan", ID: planID})
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	sp, err := doc.toStored()
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func (s *Store) ListPlans(ctx context.Context, tenantID string, filter port.PlanFilter) ([]domain.StoredPlan, error) {
	ctx, span := tracer.Start(ctx, "Mongo.ListPlans")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("filter.tier", string(filter.BalanceTier)),
	)

	query := bson.D{{Key: "tenant_id", Value: tenantID}}
	if filter.BalanceTier != "" {
		query = append(query, bson.E{Key: "balance_tier", Value: string(filter.BalanceTier)})
	}
	if filter.PlanType != "" {
		query = append(query, bson.E{Key: "plan_type", Value: string(filter.PlanType)})
	}
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	var docs []planDocument
	err := s.call(ctx, func(ctx context.Context) error {
		cursor, err := s.plans.Find(ctx, query, findOpts)
		if err != nil {
			return err
		}
		return cursor.All(ctx, &docs)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.StoredPlan, 0, len(docs))
	for _, d := range docs {
		sp, err := d.toStored()
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

func (s *Store) DeletePlan(ctx context.Context, tenantID, planID string) error {
	ctx, span := tracer.Start(ctx, "Mongo.DeletePlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", planID))

	return s.call(ctx, func(ctx context.Context) error {
		res, err := s.plans.DeleteOne(ctx, bson.D{{Key: "_id", Value: planID}, {Key: "tenant_id", Value: tenantID}})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "plan", ID: planID})
		}
		return nil
	})
}

// ============================================================
// Settings
// ============================================================

func (s *Store) GetSettings(ctx context.Context, tenantID string) (*domain.ArrangementSettings, error) {
	ctx, span := tracer.Start(ctx, "Mongo.GetSettings")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	var (
		doc   settingsDocument
		found bool
	)
	err := s.call(ctx, func(ctx context.Context) error {
		err := s.settings.FindOne(ctx, bson.D{{Key: "_id", Value: tenantID}}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &domain.ArrangementSettings{
		TenantID:                      doc.TenantID,
		DefaultMonthlyPaymentMinCents: doc.DefaultMonthlyPaymentMinCents,
		SettlementOffersEnabled:       doc.SettlementOffersEnabled,
		UpdatedAt:                     doc.UpdatedAt.UTC(),
	}, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.ArrangementSettings) (*domain.ArrangementSettings, error) {
	ctx, span := tracer.Start(ctx, "Mongo.SaveSettings")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", settings.TenantID))

	settings.UpdatedAt = settings.UpdatedAt.UTC().Truncate(time.Millisecond)
	doc := settingsDocument{
		TenantID:                      settings.TenantID,
		DefaultMonthlyPaymentMinCents: settings.DefaultMonthlyPaymentMinCents,
		SettlementOffersEnabled:       settings.SettlementOffersEnabled,
		UpdatedAt:                     settings.UpdatedAt,
	}

	err := s.call(ctx, func(ctx context.Context) error {
		_, err := s.settings.ReplaceOne(ctx, bson.D{{Key: "_id", Value: settings.TenantID}}, doc, options.Replace().SetUpsert(true))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// ============================================================
// Health & errors
// ============================================================

func (s *Store) Name() string { return serviceName }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) call(ctx context.Context, fn func(ctx context.Context) error) error {
	err := s.guard.Do(ctx, fn)
	if err == nil {
		return nil
	}

	var (
		notFound *domain.ErrNotFound
		open     *domain.ErrCircuitOpen
	)
	switch {
	case errors.As(err, &notFound), errors.Is(err, context.Canceled):
		return err
	case errors.As(err, &open):
		s.metrics.IncrExternalError(serviceName)
		return err
	}

	s.metrics.IncrExternalError(serviceName)
	s.logger.Error("mongodb: operation failed", zap.Error(err))
	return &domain.ErrExternalService{Service: serviceName, Err: err}
}
