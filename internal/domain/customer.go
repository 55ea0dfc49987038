package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tier is a customer's support plan level.
type Tier string

const (
	TierFree       Tier = "free"
	TierStandard   Tier = "standard"
	TierPremium    Tier = "premium"
	TierVIP        Tier = "vip"
	TierEnterprise Tier = "enterprise"
)

// ValidTier reports whether t is a known plan level.
func ValidTier(t Tier) bool {
	switch t {
	case TierFree, TierStandard, TierPremium, TierVIP, TierEnterprise:
		return true
	}
	return false
}

// PriorityBoost returns the additive priority adjustment for the tier.
func (t Tier) PriorityBoost() int {
	switch t {
	case TierFree:
		return -1
	case TierPremium:
		return 1
	case TierVIP, TierEnterprise:
		return 2
	}
	return 0
}

// SLAMultiplier scales a category's base SLA hours for the tier.
// Lower multiplier means a tighter deadline.
func (t Tier) SLAMultiplier() float64 {
	switch t {
	case TierFree:
		return 2.0
	case TierPremium:
		return 0.75
	case TierVIP:
		return 0.5
	case TierEnterprise:
		return 0.25
	}
	return 1.0
}

// IsVIP reports whether the tier gets VIP routing treatment.
func (t Tier) IsVIP() bool {
	return t == TierVIP || t == TierEnterprise
}

// Customer is the person or organization a ticket belongs to.
type Customer struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	ExternalID      string     `json:"external_id,omitempty" db:"external_id"`
	Email           string     `json:"email" db:"email"`
	Name            string     `json:"name,omitempty" db:"name"`
	Tier            Tier       `json:"tier" db:"tier"`
	Language        string     `json:"language" db:"language"`
	TotalTickets    int        `json:"total_tickets" db:"total_tickets"`
	OpenTickets     int        `json:"open_tickets" db:"open_tickets"`
	AvgSatisfaction float64    `json:"avg_satisfaction" db:"avg_satisfaction"`
	LastTicketAt    *time.Time `json:"last_ticket_at,omitempty" db:"last_ticket_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}
