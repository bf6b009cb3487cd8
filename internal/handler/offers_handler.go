package handler

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/arrangement-plans-go/internal/arrangement"
	"github.com/boddenberg/arrangement-plans-go/internal/service"
)

// offersHandler serves GET /v1/offers?balance=4200.00.
func offersHandler(svc *service.OfferService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/offers")
		defer span.End()

		raw := r.URL.Query().Get("balance")
		if raw == "" {
			writeError(w, http.StatusBadRequest, "balance query parameter is required")
			return
		}
		balance, ok := arrangement.ParseCurrency(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "balance must be a dollar amount")
			return
		}
		span.SetAttributes(attribute.Int64("balance.cents", balance))

		offers, err := svc.ForBalance(ctx, tenantFromContext(ctx), balance)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, offers)
	}
}
