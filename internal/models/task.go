package models

import (
	"time"

	"github.com/post-analyzer/internal/types"
)

// Task is one user request to analyze a post.
// IntegrationID is nil when the shared fallback credential was used.
type Task struct {
	ID            string           `json:"id" db:"id"`
	UserID        string           `json:"userId" db:"user_id"`
	IntegrationID *string          `json:"integrationId,omitempty" db:"integration_id"`
	Type          types.TaskType   `json:"type" db:"type"`
	Status        types.TaskStatus `json:"status" db:"status"`
	ExtraData     map[string]any   `json:"extraData" db:"extra_data"`
	CreatedAt     time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time        `json:"updatedAt" db:"updated_at"`
}

// SubTask belongs to exactly one Task
type SubTask struct {
	ID        string            `json:"id" db:"id"`
	TaskID    string            `json:"taskId" db:"task_id"`
	Type      types.SubTaskType `json:"type" db:"type"`
	Status    types.TaskStatus  `json:"status" db:"status"`
	CreatedAt time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time         `json:"updatedAt" db:"updated_at"`
}

// Extra data keys carried on an ANALYZE_POST task
const (
	ExtraPostURL          = "post_url"
	ExtraProvider         = "provider"
	ExtraAccessToken      = "access_token"
	ExtraCredentialSource = "credential_source"
)
