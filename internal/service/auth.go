package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
)

const (
	tokenIssuer = "arrangement-plans"
	bcryptCost  = 12
)

// AuthService validates admin access tokens and integration API keys.
// Users are managed elsewhere; this service only checks credentials.
type AuthService struct {
	jwtSecret    []byte
	accessTTL    time.Duration
	apiKeyHashes [][]byte
	logger       *zap.Logger
}

// NewAuthService creates a new auth service. apiKeyHashes are bcrypt hashes
// of the keys integrations may present.
func NewAuthService(jwtSecret string, accessTTL time.Duration, apiKeyHashes []string, logger *zap.Logger) *AuthService {
	hashes := make([][]byte, 0, len(apiKeyHashes))
	for _, h := range apiKeyHashes {
		hashes = append(hashes, []byte(h))
	}
	return &AuthService{
		jwtSecret:    []byte(jwtSecret),
		accessTTL:    accessTTL,
		apiKeyHashes: hashes,
		logger:       logger,
	}
}

// ============================================================
// Access tokens
// ============================================================

// JWTClaims represents the custom claims in access tokens. The subject is
// carried in RegisteredClaims.
type JWTClaims struct {
	TenantID string      `json:"tenant_id"`
	Role     domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// ValidateAccessToken parses an HS256 token and returns the caller it names.
func (s *AuthService) ValidateAccessToken(tokenString string) (*domain.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.TenantID == "" || claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "token is missing tenant or subject"}
	}
	if claims.Role != domain.RoleAdmin && claims.Role != domain.RoleViewer {
		return nil, &domain.ErrUnauthorized{Message: "token role not recognized"}
	}

	return &domain.Principal{Subject: claims.Subject, TenantID: claims.TenantID, Role: claims.Role}, nil
}

// IssueToken signs an access token. Used by planctl and local development.
func (s *AuthService) IssueToken(subject, tenantID string, role domain.Role) (*domain.TokenResponse, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTTL)
	claims := JWTClaims{
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.logger.Info("access token issued",
		zap.String("subject", subject),
		zap.String("tenant_id", tenantID),
		zap.String("role", string(role)),
	)
	return &domain.TokenResponse{AccessToken: signed, ExpiresAt: expiresAt.UTC(), TenantID: tenantID, Role: role}, nil
}

// ============================================================
// Integration API keys
// ============================================================

// VerifyAPIKey checks a raw key against the configured hashes and returns an
// integration principal for tenantID.
func (s *AuthService) VerifyAPIKey(apiKey, tenantID string) (*domain.Principal, error) {
	if apiKey == "" {
		return nil, &domain.ErrUnauthorized{Message: "missing api key"}
	}
	if tenantID == "" {
		return nil, &domain.ErrUnauthorized{Message: "missing tenant"}
	}
	for _, h := range s.apiKeyHashes {
		if bcrypt.CompareHashAndPassword(h, []byte(apiKey)) == nil {
			return &domain.Principal{Subject: "api-key", TenantID: tenantID, Role: domain.RoleIntegration}, nil
		}
	}
	s.logger.Warn("api key rejected", zap.String("tenant_id", tenantID))
	return nil, &domain.ErrUnauthorized{Message: "invalid api key"}
}

// HashAPIKey produces the value to put in API_KEY_HASHES for a new key.
func HashAPIKey(apiKey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	return string(hash), nil
}
