package domain

import "time"

// ============================================================
// Callers
// ============================================================

// Role is what an authenticated caller may do.
type Role string

const (
	RoleAdmin       Role = "admin"  // manages plans and settings
	RoleViewer      Role = "viewer" // reads plans and settings
	RoleIntegration Role = "integration"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	Subject  string
	TenantID string
	Role     Role
}

// CanWrite reports whether the principal may change plans or settings.
func (p Principal) CanWrite() bool {
	return p.Role == RoleAdmin
}

// CanRead reports whether the principal may read the admin catalog.
func (p Principal) CanRead() bool {
	return p.Role == RoleAdmin || p.Role == RoleViewer
}

// TokenResponse is returned when a token is issued.
type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	TenantID    string    `json:"tenantId"`
	Role        Role      `json:"role"`
}
