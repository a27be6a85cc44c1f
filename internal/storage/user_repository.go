package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/post-analyzer/internal/logging"
	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/store"
)

// UserRepository handles user data persistence
type UserRepository struct {
	q querier
	// tx is set when q is a transaction, enabling row locks
	tx bool
}

const userColumns = `id, email, password_hash, plan_id, feature_flags, created_at, updated_at`

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.Must(uuid.NewV7()).String()
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	user.CreatedAt = now
	user.UpdatedAt = now

	flagsJSON, err := marshalFlags(user.FeatureFlags)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.q.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.PlanID,
		flagsJSON,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return mapError("create user", err)
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

// GetForUpdate retrieves a user and, inside a transaction, holds the row lock
// until commit so concurrent limit checks for the same user serialize
func (r *UserRepository) GetForUpdate(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if r.tx {
		query += ` FOR UPDATE`
	}
	return r.getOne(ctx, query, id)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	var flagsJSON []byte

	err := r.q.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.PlanID,
		&flagsJSON,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, mapError("get user", err)
	}

	// A non-boolean override is treated as absent so the plan value applies
	flags, ignored, err := decodeFlags(flagsJSON)
	if err != nil {
		return nil, err
	}
	if len(ignored) > 0 {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			logging.FieldUserID: user.ID,
			"flags":             ignored,
		}).Warn("Ignoring non-boolean feature flag overrides")
	}
	user.FeatureFlags = flags
	return &user, nil
}

// UpdatePlan moves the user onto another plan
func (r *UserRepository) UpdatePlan(ctx context.Context, userID, planID string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE users SET plan_id = $2, updated_at = NOW() WHERE id = $1`,
		userID, planID)
	if err != nil {
		return mapError("update user plan", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpdateFeatureFlags replaces the user's overrides. A nil map clears them.
func (r *UserRepository) UpdateFeatureFlags(ctx context.Context, userID string, flags map[string]bool) error {
	flagsJSON, err := marshalFlags(flags)
	if err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx,
		`UPDATE users SET feature_flags = $2, updated_at = NOW() WHERE id = $1`,
		userID, flagsJSON)
	if err != nil {
		return mapError("update feature flags", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// marshalFlags returns nil for a nil map so the column stores NULL
func marshalFlags(flags map[string]bool) ([]byte, error) {
	if flags == nil {
		return nil, nil
	}
	data, err := json.Marshal(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feature flags: %w", err)
	}
	return data, nil
}
