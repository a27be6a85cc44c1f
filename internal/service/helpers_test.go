package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/post-analyzer/internal/config"
	"github.com/post-analyzer/internal/logging"
	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/store"
	"github.com/post-analyzer/internal/types"
	"github.com/post-analyzer/internal/urlparser"
)

// quietContext carries a logger that discards output
func quietContext() context.Context {
	logger := logging.NewLoggerWithOutput(logging.LevelError, logging.FormatJSON, io.Discard)
	return logging.WithLogger(context.Background(), logger)
}

func createUser(t *testing.T, s store.Store, id, planID string, flags map[string]bool) *models.User {
	t.Helper()
	user := &models.User{
		ID:           id,
		Email:        id + "@example.com",
		PasswordHash: "x",
		PlanID:       planID,
		FeatureFlags: flags,
	}
	require.NoError(t, s.Users().Create(context.Background(), user))
	return user
}

func connectIntegration(t *testing.T, s store.Store, id, userID, provider, token string) *models.Integration {
	t.Helper()
	integration := &models.Integration{
		ID:           id,
		UserID:       userID,
		ProviderName: provider,
		AccessToken:  token,
		IsActive:     true,
	}
	require.NoError(t, s.Integrations().Create(context.Background(), integration))
	return integration
}

// sequentialIDs returns a generator of predictable ids: prefix-1, prefix-2, ...
func sequentialIDs(prefix string) func() string {
	var n int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, atomic.AddInt64(&n, 1))
	}
}

func newTestOrchestrator(s store.Store, source config.Source) *TaskOrchestrator {
	o := NewTaskOrchestrator(s, urlparser.New(), NewCredentialResolver(s.Integrations(), source))
	o.newID = sequentialIDs("task")
	return o
}

// failingSubTaskStore fails every CreateSubTask of one type inside a
// transaction. Everything else passes through to the wrapped store.
type failingSubTaskStore struct {
	store.Store
	failOn types.SubTaskType
}

var errDiskFull = errors.New("disk full")

func (s *failingSubTaskStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, &failingTx{Tx: tx, failOn: s.failOn})
	})
}

type failingTx struct {
	store.Tx
	failOn types.SubTaskType
}

func (t *failingTx) Tasks() store.TaskRepository {
	return &failingTasks{TaskRepository: t.Tx.Tasks(), failOn: t.failOn}
}

type failingTasks struct {
	store.TaskRepository
	failOn types.SubTaskType
}

func (r *failingTasks) CreateSubTask(ctx context.Context, sub *models.SubTask) error {
	if sub.Type == r.failOn {
		return errDiskFull
	}
	return r.TaskRepository.CreateSubTask(ctx, sub)
}

// brokenIntegrations fails every lookup
type brokenIntegrations struct {
	store.IntegrationRepository
}

func (brokenIntegrations) GetByUserAndProvider(context.Context, string, string) (*models.Integration, error) {
	return nil, errors.New("connection reset")
}

// recordingStatusStore logs task repository calls made inside transactions
// and can make subtask status updates lose their compare-and-set.
type recordingStatusStore struct {
	store.Store
	staleSubTask bool
	calls        []string
}

func (s *recordingStatusStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, &recordingTx{Tx: tx, owner: s})
	})
}

type recordingTx struct {
	store.Tx
	owner *recordingStatusStore
}

func (t *recordingTx) Tasks() store.TaskRepository {
	return &recordingTasks{TaskRepository: t.Tx.Tasks(), owner: t.owner}
}

type recordingTasks struct {
	store.TaskRepository
	owner *recordingStatusStore
}

func (r *recordingTasks) GetTaskForUpdate(ctx context.Context, id string) (*models.Task, error) {
	r.owner.calls = append(r.owner.calls, "lock-task")
	return r.TaskRepository.GetTaskForUpdate(ctx, id)
}

func (r *recordingTasks) UpdateSubTaskStatus(ctx context.Context, id string, from, to types.TaskStatus) (bool, error) {
	r.owner.calls = append(r.owner.calls, "update-subtask")
	if r.owner.staleSubTask {
		return false, nil
	}
	return r.TaskRepository.UpdateSubTaskStatus(ctx, id, from, to)
}

func (r *recordingTasks) UpdateTaskStatus(ctx context.Context, id string, from, to types.TaskStatus) (bool, error) {
	r.owner.calls = append(r.owner.calls, "update-task")
	return r.TaskRepository.UpdateTaskStatus(ctx, id, from, to)
}
