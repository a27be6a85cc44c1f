package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/store"
	"github.com/post-analyzer/internal/types"
)

// TaskRepository handles task and subtask persistence
type TaskRepository struct {
	q  querier
	tx bool
}

// CreateTask inserts a task. A nil IntegrationID is stored as NULL.
func (r *TaskRepository) CreateTask(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.Must(uuid.NewV7()).String()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.ExtraData == nil {
		task.ExtraData = map[string]any{}
	}

	extraJSON, err := json.Marshal(task.ExtraData)
	if err != nil {
		return fmt.Errorf("failed to marshal extra data: %w", err)
	}

	_, err = r.q.Exec(ctx, `
		INSERT INTO tasks (id, user_id, integration_id, type, status, extra_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)
	`,
		task.ID,
		task.UserID,
		task.IntegrationID,
		string(task.Type),
		string(task.Status),
		string(extraJSON),
		task.CreatedAt,
		task.UpdatedAt,
	)
	return mapError("create task", err)
}

// CreateSubTask inserts a subtask under an existing task
func (r *TaskRepository) CreateSubTask(ctx context.Context, subTask *models.SubTask) error {
	if subTask.ID == "" {
		subTask.ID = uuid.Must(uuid.NewV7()).String()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	subTask.CreatedAt = now
	subTask.UpdatedAt = now

	_, err := r.q.Exec(ctx, `
		INSERT INTO sub_tasks (id, task_id, type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		subTask.ID,
		subTask.TaskID,
		string(subTask.Type),
		string(subTask.Status),
		subTask.CreatedAt,
		subTask.UpdatedAt,
	)
	return mapError("create subtask", err)
}

const taskQuery = `
		SELECT id, user_id, integration_id, type, status, extra_data, created_at, updated_at
		FROM tasks WHERE id = $1`

// GetTask retrieves a task by ID
func (r *TaskRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return r.getTask(ctx, taskQuery, id)
}

// GetTaskForUpdate retrieves a task and, inside a transaction, holds the row
// lock until commit so status reports for sibling subtasks serialize
func (r *TaskRepository) GetTaskForUpdate(ctx context.Context, id string) (*models.Task, error) {
	query := taskQuery
	if r.tx {
		query += ` FOR UPDATE`
	}
	return r.getTask(ctx, query, id)
}

func (r *TaskRepository) getTask(ctx context.Context, query, id string) (*models.Task, error) {
	var (
		task      models.Task
		taskType  string
		status    string
		extraJSON []byte
	)
	err := r.q.QueryRow(ctx, query, id).Scan(
		&task.ID,
		&task.UserID,
		&task.IntegrationID,
		&taskType,
		&status,
		&extraJSON,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, mapError("get task", err)
	}

	task.Type = types.TaskType(taskType)
	task.Status = types.TaskStatus(status)
	if err := json.Unmarshal(extraJSON, &task.ExtraData); err != nil {
		task.ExtraData = map[string]any{}
	}
	return &task, nil
}

const subTaskColumns = `id, task_id, type, status, created_at, updated_at`

// GetSubTask retrieves a subtask by ID
func (r *TaskRepository) GetSubTask(ctx context.Context, id string) (*models.SubTask, error) {
	row := r.q.QueryRow(ctx, `SELECT `+subTaskColumns+` FROM sub_tasks WHERE id = $1`, id)
	sub, err := scanSubTask(row)
	if err != nil {
		return nil, mapError("get subtask", err)
	}
	return sub, nil
}

// ListSubTasks returns a task's subtasks in creation order
func (r *TaskRepository) ListSubTasks(ctx context.Context, taskID string) ([]*models.SubTask, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+subTaskColumns+` FROM sub_tasks WHERE task_id = $1 ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, mapError("list subtasks", err)
	}
	defer rows.Close()

	var subTasks []*models.SubTask
	for rows.Next() {
		sub, err := scanSubTask(rows)
		if err != nil {
			return nil, mapError("scan subtask", err)
		}
		subTasks = append(subTasks, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list subtasks", err)
	}
	return subTasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubTask(row rowScanner) (*models.SubTask, error) {
	var (
		sub     models.SubTask
		subType string
		status  string
	)
	if err := row.Scan(&sub.ID, &sub.TaskID, &subType, &status, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	sub.Type = types.SubTaskType(subType)
	sub.Status = types.TaskStatus(status)
	return &sub, nil
}

// UpdateTaskStatus moves a task from status from to status to. It reports
// false when the row is no longer in from.
func (r *TaskRepository) UpdateTaskStatus(ctx context.Context, id string, from, to types.TaskStatus) (bool, error) {
	return r.updateStatus(ctx, "tasks", id, from, to)
}

// UpdateSubTaskStatus moves a subtask from status from to status to. It
// reports false when the row is no longer in from.
func (r *TaskRepository) UpdateSubTaskStatus(ctx context.Context, id string, from, to types.TaskStatus) (bool, error) {
	return r.updateStatus(ctx, "sub_tasks", id, from, to)
}

// updateStatus is a compare-and-set on the status column. Terminal rows never
// move, whatever from says.
func (r *TaskRepository) updateStatus(ctx context.Context, table, id string, from, to types.TaskStatus) (bool, error) {
	if from.IsTerminal() {
		return false, nil
	}

	query := fmt.Sprintf(`
		UPDATE %s SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, table)

	tag, err := r.q.Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		return false, mapError("update "+table+" status", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// distinguish a missing row from one that moved on
	var exists bool
	err = r.q.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, table), id).Scan(&exists)
	if err != nil {
		return false, mapError("check "+table+" row", err)
	}
	if !exists {
		return false, store.ErrNotFound
	}
	return false, nil
}
