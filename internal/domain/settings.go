package domain

import "time"

// ============================================================
// Tenant arrangement settings
// ============================================================

// ArrangementSettings are the tenant-wide values the plan catalog depends on.
type ArrangementSettings struct {
	TenantID                      string    `json:"tenantId"`
	DefaultMonthlyPaymentMinCents int64     `json:"defaultMonthlyPaymentMinCents"`
	SettlementOffersEnabled       bool      `json:"settlementOffersEnabled"`
	UpdatedAt                     time.Time `json:"updatedAt"`
}

// DefaultArrangementSettings is what a tenant gets before saving anything.
func DefaultArrangementSettings(tenantID string) ArrangementSettings {
	return ArrangementSettings{
		TenantID:                      tenantID,
		DefaultMonthlyPaymentMinCents: 5000,
		SettlementOffersEnabled:       true,
	}
}

// SettingsDraft stages edits on top of persisted settings. Drafts are values:
// every With method returns a new draft and leaves the receiver untouched.
type SettingsDraft struct {
	base    ArrangementSettings
	pending ArrangementSettings
}

// NewSettingsDraft starts a draft with no changes.
func NewSettingsDraft(saved ArrangementSettings) SettingsDraft {
	return SettingsDraft{base: saved, pending: saved}
}

func (d SettingsDraft) WithDefaultMonthlyPaymentMin(cents int64) SettingsDraft {
	d.pending.DefaultMonthlyPaymentMinCents = cents
	return d
}

func (d SettingsDraft) WithSettlementOffersEnabled(enabled bool) SettingsDraft {
	d.pending.SettlementOffersEnabled = enabled
	return d
}

// HasUnsavedChanges reports whether the draft differs from what was loaded.
func (d SettingsDraft) HasUnsavedChanges() bool {
	return d.pending.DefaultMonthlyPaymentMinCents != d.base.DefaultMonthlyPaymentMinCents ||
		d.pending.SettlementOffersEnabled != d.base.SettlementOffersEnabled
}

// Base returns the persisted settings the draft started from.
func (d SettingsDraft) Base() ArrangementSettings { return d.base }

// Pending returns the settings as they would be after a commit.
func (d SettingsDraft) Pending() ArrangementSettings { return d.pending }

// SettingsPatch is the body of PATCH /v1/settings/arrangements. Nil fields
// are left unchanged. The default minimum is entered in dollars.
type SettingsPatch struct {
	DefaultMonthlyPaymentMin *string `json:"defaultMonthlyPaymentMin"`
	SettlementOffersEnabled  *bool   `json:"settlementOffersEnabled"`
}
