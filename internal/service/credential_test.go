package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/post-analyzer/internal/config"
	apperrors "github.com/post-analyzer/internal/errors"
	"github.com/post-analyzer/internal/store/memstore"
	"github.com/post-analyzer/internal/types"
)

func TestResolveCredential(t *testing.T) {
	ctx := quietContext()
	master := config.MapSource{"REDDIT_MASTER_ACCESS_TOKEN": "master-token"}

	t.Run("active integration wins over master", func(t *testing.T) {
		s := memstore.NewSeeded()
		createUser(t, s, "u1", memstore.PublicPlanID, nil)
		connectIntegration(t, s, "int-1", "u1", "reddit", "user-token")

		cred, err := NewCredentialResolver(s.Integrations(), master).ResolveCredential(ctx, "u1", "reddit")
		require.NoError(t, err)
		assert.Equal(t, "user-token", cred.AccessToken)
		assert.Equal(t, types.SourceUserIntegration, cred.Source)
		require.NotNil(t, cred.IntegrationID)
		assert.Equal(t, "int-1", *cred.IntegrationID)
	})

	t.Run("provider name is case insensitive", func(t *testing.T) {
		s := memstore.NewSeeded()
		createUser(t, s, "u1", memstore.PublicPlanID, nil)
		connectIntegration(t, s, "int-1", "u1", "reddit", "user-token")

		cred, err := NewCredentialResolver(s.Integrations(), master).ResolveCredential(ctx, "u1", " Reddit ")
		require.NoError(t, err)
		assert.Equal(t, types.SourceUserIntegration, cred.Source)
		assert.Equal(t, "reddit", cred.Provider)
	})

	t.Run("inactive integration falls back to master", func(t *testing.T) {
		s := memstore.NewSeeded()
		createUser(t, s, "u1", memstore.PublicPlanID, nil)
		connectIntegration(t, s, "int-1", "u1", "reddit", "user-token")
		revoked, err := s.Integrations().Deactivate(ctx, "u1", "reddit")
		require.NoError(t, err)
		require.True(t, revoked)

		cred, err := NewCredentialResolver(s.Integrations(), master).ResolveCredential(ctx, "u1", "reddit")
		require.NoError(t, err)
		assert.Equal(t, "master-token", cred.AccessToken)
		assert.Equal(t, types.SourceMasterFallback, cred.Source)
		assert.Nil(t, cred.IntegrationID)
	})

	t.Run("integration for another provider is ignored", func(t *testing.T) {
		s := memstore.NewSeeded()
		createUser(t, s, "u1", memstore.PublicPlanID, nil)
		connectIntegration(t, s, "int-1", "u1", "youtube", "yt-token")

		cred, err := NewCredentialResolver(s.Integrations(), master).ResolveCredential(ctx, "u1", "reddit")
		require.NoError(t, err)
		assert.Equal(t, types.SourceMasterFallback, cred.Source)
	})

	t.Run("nothing available", func(t *testing.T) {
		s := memstore.NewSeeded()
		createUser(t, s, "u1", memstore.PublicPlanID, nil)

		_, err := NewCredentialResolver(s.Integrations(), master).ResolveCredential(ctx, "u1", "youtube")
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrNoCredential)
		assert.Equal(t, "youtube", apperrors.Categorize(err).Details["provider"])
	})

	t.Run("empty master value counts as unset", func(t *testing.T) {
		s := memstore.NewSeeded()
		source := config.MapSource{"YOUTUBE_MASTER_ACCESS_TOKEN": ""}

		_, err := NewCredentialResolver(s.Integrations(), source).ResolveCredential(ctx, "u1", "youtube")
		assert.ErrorIs(t, err, apperrors.ErrNoCredential)
	})

	t.Run("store failure is not masked by the fallback", func(t *testing.T) {
		resolver := NewCredentialResolver(brokenIntegrations{}, master)

		_, err := resolver.ResolveCredential(ctx, "u1", "reddit")
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrPersistenceFailure)
		assert.True(t, apperrors.IsRetryable(err))
	})
}
