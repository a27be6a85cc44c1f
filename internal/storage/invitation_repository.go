package storage

import (
	"context"
	"time"

	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/types"
)

// InvitationRepository handles invitation token persistence. Rows are never deleted.
type InvitationRepository struct {
	q querier
}

// Create inserts a token; a duplicate value fails with store.ErrConflict
func (r *InvitationRepository) Create(ctx context.Context, token *models.InvitationToken) error {
	token.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	if token.Status == "" {
		token.Status = types.TokenStatusPending
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO invitation_tokens (token, plan_to_assign_id, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, token.Token, token.PlanToAssignID, string(token.Status), token.ExpiresAt, token.CreatedAt)
	return mapError("create invitation token", err)
}

// GetByToken retrieves a token by its value
func (r *InvitationRepository) GetByToken(ctx context.Context, token string) (*models.InvitationToken, error) {
	var (
		t      models.InvitationToken
		status string
	)
	err := r.q.QueryRow(ctx, `
		SELECT token, plan_to_assign_id, status, expires_at, redeemed_by_user_id, redeemed_at, created_at
		FROM invitation_tokens WHERE token = $1
	`, token).Scan(
		&t.Token,
		&t.PlanToAssignID,
		&status,
		&t.ExpiresAt,
		&t.RedeemedByUserID,
		&t.RedeemedAt,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, mapError("get invitation token", err)
	}
	t.Status = types.TokenStatus(status)
	return &t, nil
}

// MarkUsed is the single conditional update that decides a redemption race.
// Exactly one concurrent caller sees true.
func (r *InvitationRepository) MarkUsed(ctx context.Context, token, userID string, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE invitation_tokens
		SET status = 'USED', redeemed_by_user_id = $2, redeemed_at = $3
		WHERE token = $1 AND status = 'PENDING'
	`, token, userID, at)
	if err != nil {
		return false, mapError("mark invitation token used", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireStale persists EXPIRED for pending tokens past their expiry
func (r *InvitationRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE invitation_tokens SET status = 'EXPIRED'
		WHERE status = 'PENDING' AND expires_at < $1
	`, now)
	if err != nil {
		return 0, mapError("expire invitation tokens", err)
	}
	return tag.RowsAffected(), nil
}
