package handler

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/service"
)

type contextKey string

const principalKey contextKey = "principal"

// Headers used by integrations calling the offers endpoint.
const (
	apiKeyHeader   = "X-API-Key"
	tenantIDHeader = "X-Tenant-ID"
)

// JWTAuthMiddleware validates Bearer tokens and injects the caller into context.
func JWTAuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token", zap.String("path", r.URL.Path))
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
				logger.Warn("auth: invalid token format", zap.String("path", r.URL.Path))
				writeError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			principal, err := authSvc.ValidateAccessToken(tokenString)
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
		})
	}
}

// APIKeyMiddleware authenticates integrations by API key and tenant header.
func APIKeyMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authSvc.VerifyAPIKey(r.Header.Get(apiKeyHeader), strings.TrimSpace(r.Header.Get(tenantIDHeader)))
			if err != nil {
				logger.Warn("auth: api key rejected", zap.String("path", r.URL.Path), zap.Error(err))
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
		})
	}
}

// RequireWrite rejects callers whose role may only read.
func RequireWrite(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil || !p.CanWrite() {
				handleServiceError(w, &domain.ErrForbidden{Action: r.Method + " " + r.URL.Path}, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the authenticated caller from context.
func PrincipalFromContext(ctx context.Context) *domain.Principal {
	p, _ := ctx.Value(principalKey).(*domain.Principal)
	return p
}

// tenantFromContext returns the tenant of the authenticated caller.
func tenantFromContext(ctx context.Context) string {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.TenantID
	}
	return ""
}
