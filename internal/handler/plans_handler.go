package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/arrangement-plans-go/internal/arrangement"
	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/port"
	"github.com/boddenberg/arrangement-plans-go/internal/service"
)

// ============================================================
// Plans
// ============================================================

// decodePlanForm reads a plan form and rejects missing or unknown plan types
// as a bad request. It reports whether the handler may continue.
func decodePlanForm(w http.ResponseWriter, r *http.Request) (arrangement.PlanForm, bool) {
	var form arrangement.PlanForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return form, false
	}
	if _, ok := domain.ParsePlanType(form.PlanType); !ok {
		reason := domain.ReasonUnknownValue
		if form.PlanType == "" {
			reason = domain.ReasonMissingField
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "planType must be one of the supported plan types",
			Field:  "planType",
			Reason: reason,
		})
		return form, false
	}
	return form, true
}

func createPlanHandler(svc *service.PlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/plans")
		defer span.End()

		form, ok := decodePlanForm(w, r)
		if !ok {
			return
		}
		span.SetAttributes(attribute.String("plan.type", form.PlanType))

		view, err := svc.Create(ctx, tenantFromContext(ctx), form)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

func previewPlanHandler(svc *service.PlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/plans/preview")
		defer span.End()

		form, ok := decodePlanForm(w, r)
		if !ok {
			return
		}

		view, err := svc.Preview(ctx, form)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func listPlansHandler(svc *service.PlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/plans")
		defer span.End()

		var filter port.PlanFilter
		if raw := r.URL.Query().Get("tier"); raw != "" {
			tier, ok := domain.ParseBalanceTier(raw)
			if !ok {
				writeError(w, http.StatusBadRequest, "unknown balance tier "+raw)
				return
			}
			filter.BalanceTier = tier
		}
		if raw := r.URL.Query().Get("type"); raw != "" {
			planType, ok := domain.ParsePlanType(raw)
			if !ok {
				writeError(w, http.StatusBadRequest, "unknown plan type "+raw)
				return
			}
			filter.PlanType = planType
		}

		views, err := svc.List(ctx, tenantFromContext(ctx), filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.PlanView]{Data: views, Total: len(views)})
	}
}

func getPlanHandler(svc *service.PlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/plans/{planId}")
		defer span.End()

		planID := chi.URLParam(r, "planId")
		span.SetAttributes(attribute.String("plan.id", planID))

		view, err := svc.Get(ctx, tenantFromContext(ctx), planID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func deletePlanHandler(svc *service.PlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/plans/{planId}")
		defer span.End()

		planID := chi.URLParam(r, "planId")
		span.SetAttributes(attribute.String("plan.id", planID))

		if err := svc.Delete(ctx, tenantFromContext(ctx), planID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "plan deleted", ID: planID})
	}
}
