package service

import (
	"context"

	"github.com/post-analyzer/internal/logging"
	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/store"
)

// HasFeature resolves a feature for a user. An explicit entry in the user's
// FeatureFlags wins in both directions; otherwise the plan decides; otherwise
// the feature is off. Unknown feature names are simply false.
func HasFeature(user *models.User, plan *models.Plan, feature string) bool {
	if user != nil {
		if enabled, ok := user.FeatureFlags[feature]; ok {
			return enabled
		}
	}
	if plan != nil {
		return plan.Features[feature]
	}
	return false
}

// EntitlementResolver answers feature questions for stored users
type EntitlementResolver struct {
	store store.Store
}

// NewEntitlementResolver creates an entitlement resolver
func NewEntitlementResolver(s store.Store) *EntitlementResolver {
	return &EntitlementResolver{store: s}
}

// HasFeature loads the user and plan and applies the override rule
func (r *EntitlementResolver) HasFeature(ctx context.Context, userID, feature string) (bool, error) {
	user, plan, err := loadUserAndPlan(ctx, r.store.Users(), r.store.Plans(), userID)
	if err != nil {
		return false, err
	}

	enabled := HasFeature(user, plan, feature)
	logging.FromContext(ctx).WithFields(map[string]interface{}{
		logging.FieldUserID: userID,
		"feature":           feature,
		"enabled":           enabled,
	}).Debug("Resolved feature entitlement")
	return enabled, nil
}
