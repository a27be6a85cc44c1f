package models

import (
	"time"

	"github.com/post-analyzer/internal/types"
)

// Integration is a user's connection to one provider
type Integration struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"userId" db:"user_id"`
	ProviderID   string    `json:"providerId" db:"provider_id"`
	ProviderName string    `json:"provider" db:"provider_name"`
	AccessToken  string    `json:"-" db:"access_token"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	IsActive     bool      `json:"isActive" db:"is_active"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// TrackedResource is a plan-bounded item other than an integration
// (a tracked keyword or a competitor handle)
type TrackedResource struct {
	ID        string             `json:"id" db:"id"`
	UserID    string             `json:"userId" db:"user_id"`
	Kind      types.ResourceKind `json:"kind" db:"kind"`
	Value     string             `json:"value" db:"value"`
	CreatedAt time.Time          `json:"createdAt" db:"created_at"`
}
