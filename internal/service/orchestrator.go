package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	apperrors "github.com/post-analyzer/internal/errors"
	"github.com/post-analyzer/internal/logging"
	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/store"
	"github.com/post-analyzer/internal/types"
)

// URLParser detects the provider of a post URL and normalizes it
type URLParser interface {
	Parse(rawURL string) (provider string, normalized string, err error)
}

// TaskView is a task with its subtasks. Credentials are stripped from ExtraData.
type TaskView struct {
	*models.Task
	SubTasks []*models.SubTask `json:"subTasks"`
}

// TaskOrchestrator turns an analysis request into a task and its subtasks
type TaskOrchestrator struct {
	store       store.Store
	parser      URLParser
	credentials *CredentialResolver
	newID       func() string
}

// NewTaskOrchestrator creates a task orchestrator
func NewTaskOrchestrator(s store.Store, parser URLParser, credentials *CredentialResolver) *TaskOrchestrator {
	return &TaskOrchestrator{
		store:       s,
		parser:      parser,
		credentials: credentials,
		newID:       func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// CreateAnalysisTask validates the URL, the user and the credential without side effects,
// then creates the task and its subtasks in one transaction and returns the
// task id. DETECT_SPAM is added only when spam_detection resolves true at this
// moment; later entitlement changes do not touch existing tasks.
func (o *TaskOrchestrator) CreateAnalysisTask(ctx context.Context, userID, postURL string) (string, error) {
	logger := logging.FromContext(ctx).WithField(logging.FieldUserID, userID)

	provider, normalized, err := o.parser.Parse(postURL)
	if err != nil {
		logger.WithError(err).Warn("Rejected post url")
		return "", err
	}

	// An unknown user is NOT_FOUND regardless of which credentials exist
	if _, _, err := loadUserAndPlan(ctx, o.store.Users(), o.store.Plans(), userID); err != nil {
		logger.WithError(err).Warn("Could not load the user for a new task")
		return "", err
	}

	cred, err := o.credentials.ResolveCredential(ctx, userID, provider)
	if err != nil {
		return "", err
	}

	task := &models.Task{
		ID:            o.newID(),
		UserID:        userID,
		IntegrationID: cred.IntegrationID,
		Type:          types.TaskTypeAnalyzePost,
		Status:        types.TaskStatusPending,
		ExtraData: map[string]any{
			models.ExtraPostURL:          normalized,
			models.ExtraProvider:         provider,
			models.ExtraAccessToken:      cred.AccessToken,
			models.ExtraCredentialSource: string(cred.Source),
		},
	}

	var subTaskTypes []types.SubTaskType
	err = o.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		user, plan, err := loadUserAndPlan(ctx, tx.Users(), o.store.Plans(), userID)
		if err != nil {
			return err
		}

		if err := tx.Tasks().CreateTask(ctx, task); err != nil {
			return fmt.Errorf("create task: %w", err)
		}

		subTaskTypes = []types.SubTaskType{types.SubTaskAnalyzeContentSentiment}
		if HasFeature(user, plan, types.FeatureSpamDetection) {
			subTaskTypes = append(subTaskTypes, types.SubTaskDetectSpam)
		}

		for _, subType := range subTaskTypes {
			sub := &models.SubTask{
				ID:     o.newID(),
				TaskID: task.ID,
				Type:   subType,
				Status: types.TaskStatusPending,
			}
			if err := tx.Tasks().CreateSubTask(ctx, sub); err != nil {
				return fmt.Errorf("create %s subtask: %w", subType, err)
			}
		}
		return nil
	})
	if err != nil {
		err = asPersistence("create analysis task", err)
		logger.WithError(err).Error("Analysis task rolled back")
		return "", err
	}

	logger.WithFields(map[string]interface{}{
		logging.FieldTaskID:   task.ID,
		logging.FieldProvider: provider,
		"credentialSource":    cred.Source,
		"subTasks":            len(subTaskTypes),
	}).Info("Analysis task created")
	return task.ID, nil
}

// GetTask returns the user's task with its subtasks. Tasks of other users
// read as not found.
func (o *TaskOrchestrator) GetTask(ctx context.Context, userID, taskID string) (*TaskView, error) {
	task, err := o.store.Tasks().GetTask(ctx, taskID)
	if err != nil {
		return nil, asPersistence("load task", mapNotFound(err, "task", taskID))
	}
	if task.UserID != userID {
		return nil, apperrors.NewNotFoundError("task", taskID)
	}

	subTasks, err := o.store.Tasks().ListSubTasks(ctx, taskID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list subtasks", err)
	}
	return newTaskView(task, subTasks), nil
}

// TransitionSubTask applies a worker's status report to a subtask and rolls
// the parent task status up from its subtasks. Re-reporting the current
// status is a no-op; leaving a terminal status is a conflict.
func (o *TaskOrchestrator) TransitionSubTask(ctx context.Context, subTaskID string, next types.TaskStatus) (*TaskView, error) {
	if !next.IsValid() {
		return nil, apperrors.NewInvalidParameterError("status", fmt.Sprintf("unknown status %q", next))
	}

	var view *TaskView
	err := o.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		sub, err := tx.Tasks().GetSubTask(ctx, subTaskID)
		if err != nil {
			return mapNotFound(err, "subtask", subTaskID)
		}

		// The parent row lock orders every report for this task; the subtask
		// is re-read under it so the roll-up sees committed siblings.
		task, err := tx.Tasks().GetTaskForUpdate(ctx, sub.TaskID)
		if err != nil {
			return fmt.Errorf("lock task: %w", err)
		}
		if sub, err = tx.Tasks().GetSubTask(ctx, subTaskID); err != nil {
			return fmt.Errorf("reload subtask: %w", err)
		}

		if !sub.Status.CanTransitionTo(next) {
			return apperrors.NewConflictError(fmt.Sprintf("subtask cannot move from %s to %s", sub.Status, next))
		}
		if sub.Status != next {
			changed, err := tx.Tasks().UpdateSubTaskStatus(ctx, subTaskID, sub.Status, next)
			if err != nil {
				return fmt.Errorf("update subtask: %w", err)
			}
			if !changed {
				return apperrors.NewConflictError(fmt.Sprintf("subtask %s changed status concurrently", subTaskID))
			}
		}

		subTasks, err := tx.Tasks().ListSubTasks(ctx, sub.TaskID)
		if err != nil {
			return fmt.Errorf("list subtasks: %w", err)
		}

		rolled := RollUpStatus(subTasks)
		if rolled != task.Status && task.Status.CanTransitionTo(rolled) {
			changed, err := tx.Tasks().UpdateTaskStatus(ctx, task.ID, task.Status, rolled)
			if err != nil {
				return fmt.Errorf("update task: %w", err)
			}
			if !changed {
				return apperrors.NewConflictError(fmt.Sprintf("task %s changed status concurrently", task.ID))
			}
			task.Status = rolled
		}
		view = newTaskView(task, subTasks)
		return nil
	})
	if err != nil {
		return nil, asPersistence("transition subtask", err)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		logging.FieldTaskID: view.ID,
		"subTaskId":         subTaskID,
		"status":            next,
		"taskStatus":        view.Status,
	}).Info("Subtask status updated")
	return view, nil
}

// RollUpStatus derives a task status from its subtasks: any FAILED fails the
// task, all COMPLETED completes it, any progress makes it RUNNING.
func RollUpStatus(subTasks []*models.SubTask) types.TaskStatus {
	if len(subTasks) == 0 {
		return types.TaskStatusPending
	}

	completed := 0
	started := false
	for _, sub := range subTasks {
		switch sub.Status {
		case types.TaskStatusFailed:
			return types.TaskStatusFailed
		case types.TaskStatusCompleted:
			completed++
			started = true
		case types.TaskStatusRunning:
			started = true
		}
	}

	switch {
	case completed == len(subTasks):
		return types.TaskStatusCompleted
	case started:
		return types.TaskStatusRunning
	}
	return types.TaskStatusPending
}

func newTaskView(task *models.Task, subTasks []*models.SubTask) *TaskView {
	redacted := *task
	redacted.ExtraData = make(map[string]any, len(task.ExtraData))
	for k, v := range task.ExtraData {
		if k == models.ExtraAccessToken {
			continue
		}
		redacted.ExtraData[k] = v
	}
	if subTasks == nil {
		subTasks = []*models.SubTask{}
	}
	return &TaskView{Task: &redacted, SubTasks: subTasks}
}
