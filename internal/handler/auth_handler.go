package handler

import (
	"net/http"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
)

// ============================================================
// Authentication
// ============================================================

type whoAmIResponse struct {
	Subject  string      `json:"subject"`
	TenantID string      `json:"tenantId"`
	Role     domain.Role `json:"role"`
	CanWrite bool        `json:"canWrite"`
}

// whoAmIHandler lets the admin console decide which controls to show.
func whoAmIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if p == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeJSON(w, http.StatusOK, whoAmIResponse{
			Subject:  p.Subject,
			TenantID: p.TenantID,
			Role:     p.Role,
			CanWrite: p.CanWrite(),
		})
	}
}
