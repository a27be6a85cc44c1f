// Package models provides data models for the post analyzer system.
package models

import (
	"time"
)

// User represents an account. FeatureFlags holds per-user overrides of the
// plan's feature defaults; a nil map means no overrides.
type User struct {
	ID           string          `json:"id" db:"id"`
	Email        string          `json:"email" db:"email"`
	PasswordHash string          `json:"-" db:"password_hash"`
	PlanID       string          `json:"planId" db:"plan_id"`
	FeatureFlags map[string]bool `json:"featureFlags,omitempty" db:"feature_flags"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
}

// Plan is immutable reference data shared by many users
type Plan struct {
	ID                    string          `json:"id" db:"id"`
	Name                  string          `json:"name" db:"name"`
	Features              map[string]bool `json:"features" db:"features"`
	MaxIntegrations       int             `json:"maxIntegrations" db:"max_integrations"`
	MaxTrackedKeywords    int             `json:"maxTrackedKeywords" db:"max_tracked_keywords"`
	MaxCompetitors        int             `json:"maxCompetitors" db:"max_competitors"`
	MonthlyTokenAllowance int64           `json:"monthlyTokenAllowance" db:"monthly_token_allowance"`
}

// Provider identifies an external platform such as "youtube" or "reddit"
type Provider struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
