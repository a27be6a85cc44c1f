package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/store"
	"github.com/post-analyzer/internal/types"
)

// IntegrationRepository handles integration persistence
type IntegrationRepository struct {
	q querier
}

// Create inserts an integration for integration.ProviderName. A second active
// integration for the same user and provider fails with store.ErrConflict.
func (r *IntegrationRepository) Create(ctx context.Context, integration *models.Integration) error {
	if integration.ID == "" {
		integration.ID = uuid.Must(uuid.NewV7()).String()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	integration.CreatedAt = now
	integration.UpdatedAt = now

	query := `
		INSERT INTO integrations (id, user_id, provider_id, access_token, refresh_token, is_active, created_at, updated_at)
		SELECT $1, $2, p.id, $4, $5, $6, $7, $8
		FROM providers p WHERE p.name = $3
		RETURNING provider_id
	`
	err := r.q.QueryRow(ctx, query,
		integration.ID,
		integration.UserID,
		integration.ProviderName,
		integration.AccessToken,
		integration.RefreshToken,
		integration.IsActive,
		integration.CreatedAt,
		integration.UpdatedAt,
	).Scan(&integration.ProviderID)
	return mapError("create integration", err)
}

// GetByUserAndProvider prefers the active row, then the most recently updated
func (r *IntegrationRepository) GetByUserAndProvider(ctx context.Context, userID, providerName string) (*models.Integration, error) {
	query := `
		SELECT i.id, i.user_id, i.provider_id, p.name, i.access_token, i.refresh_token,
		       i.is_active, i.created_at, i.updated_at
		FROM integrations i
		JOIN providers p ON p.id = i.provider_id
		WHERE i.user_id = $1 AND p.name = $2
		ORDER BY i.is_active DESC, i.updated_at DESC
		LIMIT 1
	`
	var in models.Integration
	err := r.q.QueryRow(ctx, query, userID, providerName).Scan(
		&in.ID,
		&in.UserID,
		&in.ProviderID,
		&in.ProviderName,
		&in.AccessToken,
		&in.RefreshToken,
		&in.IsActive,
		&in.CreatedAt,
		&in.UpdatedAt,
	)
	if err != nil {
		return nil, mapError("get integration", err)
	}
	return &in, nil
}

// Deactivate revokes the active integration; rows are kept for task history
func (r *IntegrationRepository) Deactivate(ctx context.Context, userID, providerName string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE integrations i SET is_active = FALSE, updated_at = NOW()
		FROM providers p
		WHERE p.id = i.provider_id AND i.user_id = $1 AND p.name = $2 AND i.is_active
	`, userID, providerName)
	if err != nil {
		return false, mapError("deactivate integration", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CountActiveByUser counts committed active integrations
func (r *IntegrationRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM integrations WHERE user_id = $1 AND is_active`, userID).Scan(&n)
	if err != nil {
		return 0, mapError("count integrations", err)
	}
	return n, nil
}

// ResourceRepository handles tracked keywords and competitors
type ResourceRepository struct {
	q querier
}

// Create inserts a tracked resource
func (r *ResourceRepository) Create(ctx context.Context, resource *models.TrackedResource) error {
	if resource.ID == "" {
		resource.ID = uuid.Must(uuid.NewV7()).String()
	}
	resource.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	_, err := r.q.Exec(ctx, `
		INSERT INTO tracked_resources (id, user_id, kind, value, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, resource.ID, resource.UserID, string(resource.Kind), resource.Value, resource.CreatedAt)
	return mapError("create tracked resource", err)
}

// CountByUser counts the user's resources of one kind
func (r *ResourceRepository) CountByUser(ctx context.Context, userID string, kind types.ResourceKind) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM tracked_resources WHERE user_id = $1 AND kind = $2`,
		userID, string(kind)).Scan(&n)
	if err != nil {
		return 0, mapError("count tracked resources", err)
	}
	return n, nil
}

var _ store.IntegrationRepository = (*IntegrationRepository)(nil)
var _ store.ResourceRepository = (*ResourceRepository)(nil)
