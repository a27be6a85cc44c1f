package service

import (
	"context"
	"errors"
	"strings"

	"github.com/post-analyzer/internal/config"
	apperrors "github.com/post-analyzer/internal/errors"
	"github.com/post-analyzer/internal/logging"
	"github.com/post-analyzer/internal/store"
	"github.com/post-analyzer/internal/types"
)

// Credential is the access token to use for one provider call
type Credential struct {
	Provider    string
	AccessToken string
	Source      types.CredentialSource
	// IntegrationID is nil for the master fallback
	IntegrationID *string
}

// CredentialResolver picks the user's active integration over the shared
// master credential. It never writes.
type CredentialResolver struct {
	integrations store.IntegrationRepository
	source       config.Source
}

// NewCredentialResolver creates a credential resolver
func NewCredentialResolver(integrations store.IntegrationRepository, source config.Source) *CredentialResolver {
	return &CredentialResolver{integrations: integrations, source: source}
}

// ResolveCredential returns the credential for (userID, provider) or a
// NO_CREDENTIAL_AVAILABLE error. An inactive integration is treated as absent.
func (r *CredentialResolver) ResolveCredential(ctx context.Context, userID, provider string) (*Credential, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		logging.FieldUserID:   userID,
		logging.FieldProvider: provider,
	})

	integration, err := r.integrations.GetByUserAndProvider(ctx, userID, provider)
	switch {
	case err == nil && integration.IsActive:
		id := integration.ID
		logger.Debug("Using user integration credential")
		return &Credential{
			Provider:      provider,
			AccessToken:   integration.AccessToken,
			Source:        types.SourceUserIntegration,
			IntegrationID: &id,
		}, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, apperrors.NewPersistenceError("load integration", err)
	}

	if token, ok := r.source.Lookup(config.MasterTokenKey(provider)); ok {
		logger.Debug("Using master fallback credential")
		return &Credential{
			Provider:    provider,
			AccessToken: token,
			Source:      types.SourceMasterFallback,
		}, nil
	}

	logger.Warn("No credential available for provider")
	return nil, apperrors.NewNoCredentialError(provider)
}
