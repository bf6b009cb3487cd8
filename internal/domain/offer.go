package domain

// PlanView is a stored plan together with its rendered summary, as served to
// the admin console.
type PlanView struct {
	PlanPayload
	Summary Summary `json:"summary"`
}

// Offer is a plan presented to an account with a given balance.
type Offer struct {
	PlanID      string   `json:"planId"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	PlanType    PlanType `json:"planType"`
	Summary     Summary  `json:"summary"`
}

// OfferSet is the response of an offer lookup.
type OfferSet struct {
	TenantID     string      `json:"tenantId"`
	BalanceCents int64       `json:"balanceCents"`
	BalanceTier  BalanceTier `json:"balanceTier"`
	Offers       []Offer     `json:"offers"`
}
