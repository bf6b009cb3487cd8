package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/service"
)

// ============================================================
// Dev Tools (local testing helpers)
// ============================================================

var requestValidator = validator.New(validator.WithRequiredStructEnabled())

type devTokenRequest struct {
	Subject  string      `json:"subject" validate:"required,max=200"`
	TenantID string      `json:"tenantId" validate:"required,max=200"`
	Role     domain.Role `json:"role" validate:"omitempty,oneof=admin viewer"`
}

// devTokenHandler issues a signed admin token without any credential check.
func devTokenHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /v1/dev/token")
		defer span.End()

		var req devTokenRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := requestValidator.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Role == "" {
			req.Role = domain.RoleAdmin
		}

		tok, err := authSvc.IssueToken(req.Subject, req.TenantID, req.Role)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tok)
	}
}
