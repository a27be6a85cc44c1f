// Package service implements the orchestration core: entitlements, credential
// resolution, plan limits, invitation tokens, task fan-out and signup.
package service

import (
	"context"
	"errors"

	apperrors "github.com/post-analyzer/internal/errors"
	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/store"
)

// asPersistence leaves categorized errors untouched and wraps everything else
// as PERSISTENCE_FAILURE
func asPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var catErr *apperrors.CategorizedError
	if errors.As(err, &catErr) {
		return err
	}
	return apperrors.NewPersistenceError(op, err)
}

// mapNotFound turns store.ErrNotFound into a NOT_FOUND error for resource
func mapNotFound(err error, resource, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewNotFoundError(resource, id)
	}
	return err
}

// loadUserAndPlan reads the user through users (pool- or tx-bound) and its plan
// through plans
func loadUserAndPlan(ctx context.Context, users store.UserRepository, plans store.PlanRepository, userID string) (*models.User, *models.Plan, error) {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, asPersistence("load user", mapNotFound(err, "user", userID))
	}

	plan, err := plans.GetByID(ctx, user.PlanID)
	if err != nil {
		return nil, nil, asPersistence("load plan", mapNotFound(err, "plan", user.PlanID))
	}
	return user, plan, nil
}
