// Package store defines the transactional repository contract the services
// depend on. internal/storage implements it on Postgres and
// internal/store/memstore implements it in memory.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/types"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness rule
	ErrConflict = errors.New("record conflicts with an existing row")
)

// UserRepository handles user persistence
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetForUpdate reads the user and, inside a transaction, locks the row
	// until commit.
	GetForUpdate(ctx context.Context, id string) (*models.User, error)
	UpdatePlan(ctx context.Context, userID, planID string) error
	UpdateFeatureFlags(ctx context.Context, userID string, flags map[string]bool) error
}

// PlanRepository reads plan reference data
type PlanRepository interface {
	GetByID(ctx context.Context, id string) (*models.Plan, error)
	GetByName(ctx context.Context, name string) (*models.Plan, error)
}

// ProviderRepository reads provider reference data
type ProviderRepository interface {
	GetByName(ctx context.Context, name string) (*models.Provider, error)
}

// IntegrationRepository handles per-user provider integrations
type IntegrationRepository interface {
	Create(ctx context.Context, integration *models.Integration) error
	// GetByUserAndProvider returns the user's active integration for the
	// provider, or the most recently updated inactive one when none is active.
	GetByUserAndProvider(ctx context.Context, userID, providerName string) (*models.Integration, error)
	// Deactivate revokes the active integration and reports whether one existed
	Deactivate(ctx context.Context, userID, providerName string) (bool, error)
	CountActiveByUser(ctx context.Context, userID string) (int, error)
}

// ResourceRepository handles tracked keywords and competitors
type ResourceRepository interface {
	Create(ctx context.Context, resource *models.TrackedResource) error
	CountByUser(ctx context.Context, userID string, kind types.ResourceKind) (int, error)
}

// TaskRepository handles tasks and their subtasks
type TaskRepository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	CreateSubTask(ctx context.Context, subTask *models.SubTask) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	// GetTaskForUpdate locks the task row until the surrounding transaction ends
	GetTaskForUpdate(ctx context.Context, id string) (*models.Task, error)
	GetSubTask(ctx context.Context, id string) (*models.SubTask, error)
	ListSubTasks(ctx context.Context, taskID string) ([]*models.SubTask, error)
	// UpdateTaskStatus and UpdateSubTaskStatus move a row from one status to
	// another only while it is still in from and from is not terminal. They
	// report whether the row changed.
	UpdateTaskStatus(ctx context.Context, id string, from, to types.TaskStatus) (bool, error)
	UpdateSubTaskStatus(ctx context.Context, id string, from, to types.TaskStatus) (bool, error)
}

// InvitationRepository handles invitation tokens
type InvitationRepository interface {
	Create(ctx context.Context, token *models.InvitationToken) error
	GetByToken(ctx context.Context, token string) (*models.InvitationToken, error)
	// MarkUsed moves a PENDING token to USED in one conditional update and
	// reports whether exactly one row changed.
	MarkUsed(ctx context.Context, token, userID string, at time.Time) (bool, error)
	// ExpireStale persists EXPIRED for PENDING tokens past their expiry.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// Tx exposes the repositories bound to one transaction
type Tx interface {
	Users() UserRepository
	Integrations() IntegrationRepository
	Resources() ResourceRepository
	Tasks() TaskRepository
	Invitations() InvitationRepository
}

// Store is the full persistence boundary. The embedded Tx methods run outside
// any transaction; WithinTx commits when fn returns nil and rolls back otherwise.
type Store interface {
	Tx
	Plans() PlanRepository
	Providers() ProviderRepository
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
