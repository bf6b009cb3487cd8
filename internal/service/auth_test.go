package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/service"
)

func newAuth(t *testing.T, keys ...string) *service.AuthService {
	t.Helper()
	hashes := make([]string, 0, len(keys))
	for _, k := range keys {
		// Minimum cost keeps the test fast.
		h, err := bcrypt.GenerateFromPassword([]byte(k), bcrypt.MinCost)
		if err != nil {
			t.Fatal(err)
		}
		hashes = append(hashes, string(h))
	}
	return service.NewAuthService("test-secret", time.Hour, hashes, zap.NewNop())
}

func TestAuth_IssueAndValidate(t *testing.T) {
	auth := newAuth(t)

	tok, err := auth.IssueToken("alice", "t1", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	p, err := auth.ValidateAccessToken(tok.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if p.Subject != "alice" || p.TenantID != "t1" || !p.CanWrite() {
		t.Errorf("unexpected principal: %+v", p)
	}
}

func TestAuth_RejectsBadTokens(t *testing.T) {
	auth := newAuth(t)
	other := service.NewAuthService("other-secret", time.Hour, nil, zap.NewNop())

	foreign, _ := other.IssueToken("bob", "t1", domain.RoleAdmin)
	expired, _ := service.NewAuthService("test-secret", -time.Minute, nil, zap.NewNop()).IssueToken("bob", "t1", domain.RoleAdmin)
	noTenant, _ := auth.IssueToken("bob", "", domain.RoleAdmin)
	badRole, _ := auth.IssueToken("bob", "t1", domain.RoleIntegration)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "bob", "tenant_id": "t1", "role": "admin"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, raw := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign.AccessToken,
		"expired":      expired.AccessToken,
		"no tenant":    noTenant.AccessToken,
		"bad role":     badRole.AccessToken,
		"alg none":     unsigned,
	} {
		_, err := auth.ValidateAccessToken(raw)
		var unauth *domain.ErrUnauthorized
		if !errors.As(err, &unauth) {
			t.Errorf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}
}

func TestAuth_VerifyAPIKey(t *testing.T) {
	auth := newAuth(t, "key-one", "key-two")

	p, err := auth.VerifyAPIKey("key-two", "t9")
	if err != nil {
		t.Fatalf("expected key to verify, got %v", err)
	}
	if p.Role != domain.RoleIntegration || p.TenantID != "t9" || p.CanRead() {
		t.Errorf("unexpected principal: %+v", p)
	}

	for _, tc := range []struct{ key, tenant string }{
		{"wrong", "t9"},
		{"", "t9"},
		{"key-one", ""},
	} {
		if _, err := auth.VerifyAPIKey(tc.key, tc.tenant); err == nil {
			t.Errorf("VerifyAPIKey(%q, %q) should fail", tc.key, tc.tenant)
		}
	}
}

func TestHashAPIKey(t *testing.T) {
	hash, err := service.HashAPIKey("fresh-key")
	if err != nil {
		t.Fatal(err)
	}
	auth := service.NewAuthService("s", time.Hour, []string{hash}, zap.NewNop())
	if _, err := auth.VerifyAPIKey("fresh-key", "t1"); err != nil {
		t.Errorf("hashed key should verify: %v", err)
	}
}
