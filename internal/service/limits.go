package service

import (
	"context"
	"fmt"

	apperrors "github.com/post-analyzer/internal/errors"
	"github.com/post-analyzer/internal/logging"
	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/store"
	"github.com/post-analyzer/internal/types"
)

// PlanLimitGuard compares a user's committed resource counts against the
// limits of their plan
type PlanLimitGuard struct {
	store store.Store
}

// NewPlanLimitGuard creates a plan limit guard
func NewPlanLimitGuard(s store.Store) *PlanLimitGuard {
	return &PlanLimitGuard{store: s}
}

// CanCreate reports whether the user may create one more resource of kind.
// When it may not, reason says why. The answer is advisory: it can be stale
// by the time the caller acts on it. Use EnforceTx when creating.
func (g *PlanLimitGuard) CanCreate(ctx context.Context, userID string, kind types.ResourceKind) (bool, string, error) {
	if _, ok := types.ParseResourceKind(string(kind)); !ok {
		return false, "", apperrors.NewInvalidParameterError("kind", fmt.Sprintf("unknown resource kind %q", kind))
	}

	_, plan, err := loadUserAndPlan(ctx, g.store.Users(), g.store.Plans(), userID)
	if err != nil {
		return false, "", err
	}
	return g.evaluate(ctx, g.store, userID, plan, kind)
}

// EnforceTx repeats the check inside tx after locking the user row, so two
// concurrent creates for the same user cannot both pass. It returns
// LIMIT_EXCEEDED when the limit is reached.
func (g *PlanLimitGuard) EnforceTx(ctx context.Context, tx store.Tx, userID string, kind types.ResourceKind) error {
	user, err := tx.Users().GetForUpdate(ctx, userID)
	if err != nil {
		return asPersistence("lock user", mapNotFound(err, "user", userID))
	}
	plan, err := g.store.Plans().GetByID(ctx, user.PlanID)
	if err != nil {
		return asPersistence("load plan", mapNotFound(err, "plan", user.PlanID))
	}

	allowed, reason, err := g.evaluate(ctx, tx, userID, plan, kind)
	if err != nil {
		return err
	}
	if !allowed {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			logging.FieldUserID: userID,
			"resource":          kind,
		}).Warn("Plan limit reached")
		return apperrors.NewLimitExceededError(kind, LimitFor(plan, kind), reason)
	}
	return nil
}

func (g *PlanLimitGuard) evaluate(ctx context.Context, tx store.Tx, userID string, plan *models.Plan, kind types.ResourceKind) (bool, string, error) {
	limit := LimitFor(plan, kind)
	if limit <= 0 {
		return false, fmt.Sprintf("the %s plan does not include any %s", plan.Name, kindLabel(kind)), nil
	}

	count, err := countResources(ctx, tx, userID, kind)
	if err != nil {
		return false, "", apperrors.NewPersistenceError("count resources", err)
	}
	if count >= limit {
		return false, fmt.Sprintf("the %s plan allows at most %d %s and %d already exist", plan.Name, limit, kindLabel(kind), count), nil
	}
	return true, "", nil
}

// LimitFor returns the plan's limit for kind
func LimitFor(plan *models.Plan, kind types.ResourceKind) int {
	switch kind {
	case types.ResourceIntegration:
		return plan.MaxIntegrations
	case types.ResourceTrackedKeyword:
		return plan.MaxTrackedKeywords
	case types.ResourceCompetitor:
		return plan.MaxCompetitors
	}
	return 0
}

func countResources(ctx context.Context, tx store.Tx, userID string, kind types.ResourceKind) (int, error) {
	if kind == types.ResourceIntegration {
		return tx.Integrations().CountActiveByUser(ctx, userID)
	}
	return tx.Resources().CountByUser(ctx, userID, kind)
}

func kindLabel(kind types.ResourceKind) string {
	switch kind {
	case types.ResourceIntegration:
		return "integrations"
	case types.ResourceTrackedKeyword:
		return "tracked keywords"
	case types.ResourceCompetitor:
		return "competitors"
	}
	return string(kind)
}
