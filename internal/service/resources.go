package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/post-analyzer/internal/errors"
	"github.com/post-analyzer/internal/logging"
	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/store"
	"github.com/post-analyzer/internal/types"
	"github.com/post-analyzer/internal/validator"
)

// ConnectIntegrationRequest carries the validation rules for ConnectIntegration
type ConnectIntegrationRequest struct {
	Provider     string `json:"provider" validate:"required,max=64"`
	AccessToken  string `json:"accessToken" validate:"required,max=4096"`
	RefreshToken string `json:"refreshToken" validate:"omitempty,max=4096"`
}

type trackedValue struct {
	Value string `json:"value" validate:"required,max=255"`
}

// ResourceService creates plan-bounded resources. Every create re-checks the
// plan limit inside its own transaction.
type ResourceService struct {
	store     store.Store
	guard     *PlanLimitGuard
	validator *validator.Validator
	newID     func() string
}

// NewResourceService creates a resource service
func NewResourceService(s store.Store, guard *PlanLimitGuard, v *validator.Validator) *ResourceService {
	return &ResourceService{
		store:     s,
		guard:     guard,
		validator: v,
		newID:     func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// ConnectIntegration stores an active integration for the user. A user holds
// at most one active integration per provider.
func (s *ResourceService) ConnectIntegration(ctx context.Context, userID string, req ConnectIntegrationRequest) (*models.Integration, error) {
	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if _, err := s.store.Providers().GetByName(ctx, req.Provider); err != nil {
		return nil, asPersistence("load provider", mapNotFound(err, "provider", req.Provider))
	}

	integration := &models.Integration{
		ID:           s.newID(),
		UserID:       userID,
		ProviderName: req.Provider,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		IsActive:     true,
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := s.guard.EnforceTx(ctx, tx, userID, types.ResourceIntegration); err != nil {
			existing, lookupErr := tx.Integrations().GetByUserAndProvider(ctx, userID, req.Provider)
			if lookupErr == nil && existing.IsActive {
				return integrationConflict(req.Provider)
			}
			return err
		}
		if err := tx.Integrations().Create(ctx, integration); err != nil {
			switch {
			case errors.Is(err, store.ErrConflict):
				return integrationConflict(req.Provider)
			case errors.Is(err, store.ErrNotFound):
				return apperrors.NewNotFoundError("provider", req.Provider)
			}
			return fmt.Errorf("create integration: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, asPersistence("connect integration", err)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		logging.FieldUserID:   userID,
		logging.FieldProvider: req.Provider,
	}).Info("Integration connected")
	return integration, nil
}

// RevokeIntegration deactivates the user's active integration for provider.
// Existing tasks keep their reference to it.
func (s *ResourceService) RevokeIntegration(ctx context.Context, userID, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))

	revoked, err := s.store.Integrations().Deactivate(ctx, userID, provider)
	if err != nil {
		return apperrors.NewPersistenceError("revoke integration", err)
	}
	if !revoked {
		return apperrors.NewNotFoundError("integration", provider)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		logging.FieldUserID:   userID,
		logging.FieldProvider: provider,
	}).Info("Integration revoked")
	return nil
}

// AddTrackedKeyword adds a keyword to the user's tracking list
func (s *ResourceService) AddTrackedKeyword(ctx context.Context, userID, keyword string) (*models.TrackedResource, error) {
	return s.addResource(ctx, userID, types.ResourceTrackedKeyword, strings.ToLower(strings.TrimSpace(keyword)))
}

// AddCompetitor adds a competitor handle to the user's list
func (s *ResourceService) AddCompetitor(ctx context.Context, userID, handle string) (*models.TrackedResource, error) {
	return s.addResource(ctx, userID, types.ResourceCompetitor, strings.TrimSpace(handle))
}

func (s *ResourceService) addResource(ctx context.Context, userID string, kind types.ResourceKind, value string) (*models.TrackedResource, error) {
	if err := s.validator.Validate(trackedValue{Value: value}); err != nil {
		return nil, err
	}

	resource := &models.TrackedResource{
		ID:     s.newID(),
		UserID: userID,
		Kind:   kind,
		Value:  value,
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := s.guard.EnforceTx(ctx, tx, userID, kind); err != nil {
			return err
		}
		if err := tx.Resources().Create(ctx, resource); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperrors.NewConflictError(fmt.Sprintf("%q is already in your %s", value, kindLabel(kind)))
			}
			return fmt.Errorf("create %s: %w", kind, err)
		}
		return nil
	})
	if err != nil {
		return nil, asPersistence("add "+string(kind), err)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		logging.FieldUserID: userID,
		"resource":          kind,
	}).Info("Tracked resource added")
	return resource, nil
}

func integrationConflict(provider string) error {
	return apperrors.NewConflictError(fmt.Sprintf("an active %s integration already exists", provider))
}
