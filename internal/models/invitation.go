package models

import (
	"time"

	"github.com/post-analyzer/internal/types"
)

// InvitationToken is a single-use grant of a plan at signup
type InvitationToken struct {
	Token            string            `json:"token" db:"token"`
	PlanToAssignID   string            `json:"planToAssignId" db:"plan_to_assign_id"`
	Status           types.TokenStatus `json:"status" db:"status"`
	ExpiresAt        time.Time         `json:"expiresAt" db:"expires_at"`
	RedeemedByUserID *string           `json:"redeemedByUserId,omitempty" db:"redeemed_by_user_id"`
	RedeemedAt       *time.Time        `json:"redeemedAt,omitempty" db:"redeemed_at"`
	CreatedAt        time.Time         `json:"createdAt" db:"created_at"`
}

// IsExpired reports whether the token is past its expiry at now
func (t *InvitationToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// EffectiveStatus derives the read-time status. A PENDING row past its expiry
// reads as EXPIRED even if the sweep job has not persisted it yet.
func (t *InvitationToken) EffectiveStatus(now time.Time) types.TokenStatus {
	if t.Status == types.TokenStatusPending && t.IsExpired(now) {
		return types.TokenStatusExpired
	}
	return t.Status
}
