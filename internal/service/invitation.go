package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/post-analyzer/internal/errors"
	"github.com/post-analyzer/internal/logging"
	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/store"
	"github.com/post-analyzer/internal/types"
)

// tokenBytes is the entropy of a generated invitation token
const tokenBytes = 32

// InvitationLedger issues and redeems single-use invitation tokens
type InvitationLedger struct {
	store      store.Store
	defaultTTL time.Duration
	now        func() time.Time
}

// NewInvitationLedger creates an invitation ledger. Tokens generated without
// an explicit TTL live for defaultTTL.
func NewInvitationLedger(s store.Store, defaultTTL time.Duration) *InvitationLedger {
	return &InvitationLedger{store: s, defaultTTL: defaultTTL, now: time.Now}
}

// Generate issues a PENDING token for planID
func (l *InvitationLedger) Generate(ctx context.Context, planID string, ttl time.Duration) (*models.InvitationToken, error) {
	if ttl <= 0 {
		ttl = l.defaultTTL
	}
	if _, err := l.store.Plans().GetByID(ctx, planID); err != nil {
		return nil, asPersistence("load plan", mapNotFound(err, "plan", planID))
	}

	value, err := newTokenValue()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to generate invitation token", err)
	}

	token := &models.InvitationToken{
		Token:          value,
		PlanToAssignID: planID,
		Status:         types.TokenStatusPending,
		ExpiresAt:      l.now().UTC().Add(ttl),
	}
	if err := l.store.Invitations().Create(ctx, token); err != nil {
		return nil, apperrors.NewPersistenceError("create invitation token", err)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"planId":    planID,
		"expiresAt": token.ExpiresAt,
	}).Info("Invitation token generated")
	return token, nil
}

// Inspect returns the token with its status as of now. A PENDING token past
// its expiry is reported as EXPIRED.
func (l *InvitationLedger) Inspect(ctx context.Context, token string) (*models.InvitationToken, error) {
	t, err := l.store.Invitations().GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewTokenNotFoundError()
		}
		return nil, apperrors.NewPersistenceError("load invitation token", err)
	}
	t.Status = t.EffectiveStatus(l.now())
	return t, nil
}

// Consume redeems token for userID and returns the plan it grants. It does
// not change the user's plan; see ConsumeInvitationToken.
func (l *InvitationLedger) Consume(ctx context.Context, token, userID string) (string, error) {
	return l.ConsumeIn(ctx, l.store, token, userID)
}

// ConsumeInvitationToken redeems token and moves userID onto the granted plan
// in one transaction
func (l *InvitationLedger) ConsumeInvitationToken(ctx context.Context, token, userID string) (string, error) {
	var planID string
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		planID, err = l.ConsumeIn(ctx, tx, token, userID)
		if err != nil {
			return err
		}
		if err := tx.Users().UpdatePlan(ctx, userID, planID); err != nil {
			return mapNotFound(err, "user", userID)
		}
		return nil
	})
	if err != nil {
		return "", asPersistence("consume invitation token", err)
	}
	return planID, nil
}

// ConsumeIn redeems token through tx. The status checks give precise errors;
// the conditional MarkUsed decides races, and losing one reads as
// TOKEN_ALREADY_USED. Rejections never modify the token.
func (l *InvitationLedger) ConsumeIn(ctx context.Context, tx store.Tx, token, userID string) (string, error) {
	logger := logging.FromContext(ctx).WithField(logging.FieldUserID, userID)

	t, err := tx.Invitations().GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("Invitation token not found")
			return "", apperrors.NewTokenNotFoundError()
		}
		return "", apperrors.NewPersistenceError("load invitation token", err)
	}

	now := l.now().UTC()
	switch {
	case t.Status == types.TokenStatusUsed:
		logger.Warn("Invitation token already used")
		return "", apperrors.NewTokenAlreadyUsedError()
	case t.Status == types.TokenStatusExpired || t.IsExpired(now):
		logger.Warn("Invitation token expired")
		return "", apperrors.NewTokenExpiredError()
	}

	won, err := tx.Invitations().MarkUsed(ctx, token, userID, now)
	if err != nil {
		return "", apperrors.NewPersistenceError("mark invitation token used", err)
	}
	if !won {
		logger.Warn("Invitation token redeemed concurrently")
		return "", apperrors.NewTokenAlreadyUsedError()
	}

	logger.WithField("planId", t.PlanToAssignID).Info("Invitation token consumed")
	return t.PlanToAssignID, nil
}

// ExpireStale persists EXPIRED on every pending token past its expiry
func (l *InvitationLedger) ExpireStale(ctx context.Context) (int64, error) {
	n, err := l.store.Invitations().ExpireStale(ctx, l.now().UTC())
	if err != nil {
		return 0, apperrors.NewPersistenceError("expire invitation tokens", err)
	}
	return n, nil
}

func newTokenValue() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
