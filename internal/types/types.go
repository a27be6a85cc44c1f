// Package types provides common type definitions for the post analyzer system.
package types

import "strings"

// TaskType represents the kind of work a task describes
type TaskType string

const (
	// TaskTypeAnalyzePost analyzes a single social-media post
	TaskTypeAnalyzePost TaskType = "ANALYZE_POST"
)

// SubTaskType represents one independently trackable unit of work under a task
type SubTaskType string

const (
	// SubTaskAnalyzeContentSentiment runs sentiment analysis over the post content
	SubTaskAnalyzeContentSentiment SubTaskType = "ANALYZE_CONTENT_SENTIMENT"
	// SubTaskDetectSpam runs spam detection over the post comments
	SubTaskDetectSpam SubTaskType = "DETECT_SPAM"
)

// TaskStatus is shared by tasks and subtasks
type TaskStatus string

const (
	// TaskStatusPending represents work that has not been picked up yet
	TaskStatusPending TaskStatus = "PENDING"
	// TaskStatusRunning represents work a worker is processing
	TaskStatusRunning TaskStatus = "RUNNING"
	// TaskStatusCompleted represents successfully finished work
	TaskStatusCompleted TaskStatus = "COMPLETED"
	// TaskStatusFailed represents work that ended in failure
	TaskStatusFailed TaskStatus = "FAILED"
)

// IsValid reports whether s is a known status
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed out of s
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle monotonic.
// Re-reporting the current non-terminal status is allowed.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if !next.IsValid() || s.IsTerminal() {
		return false
	}
	switch s {
	case TaskStatusPending:
		return true
	case TaskStatusRunning:
		return next != TaskStatusPending
	}
	return false
}

// TokenStatus represents the stored lifecycle state of an invitation token
type TokenStatus string

const (
	// TokenStatusPending represents a token that can still be redeemed
	TokenStatusPending TokenStatus = "PENDING"
	// TokenStatusUsed represents a redeemed token
	TokenStatusUsed TokenStatus = "USED"
	// TokenStatusExpired represents a token the sweep job marked as expired
	TokenStatusExpired TokenStatus = "EXPIRED"
)

// ResourceKind names a plan-bounded resource a user can create
type ResourceKind string

const (
	// ResourceIntegration is bounded by Plan.MaxIntegrations
	ResourceIntegration ResourceKind = "integration"
	// ResourceTrackedKeyword is bounded by Plan.MaxTrackedKeywords
	ResourceTrackedKeyword ResourceKind = "tracked_keyword"
	// ResourceCompetitor is bounded by Plan.MaxCompetitors
	ResourceCompetitor ResourceKind = "competitor"
)

// ParseResourceKind converts a user-supplied string into a ResourceKind
func ParseResourceKind(s string) (ResourceKind, bool) {
	switch ResourceKind(strings.ToLower(strings.TrimSpace(s))) {
	case ResourceIntegration:
		return ResourceIntegration, true
	case ResourceTrackedKeyword:
		return ResourceTrackedKeyword, true
	case ResourceCompetitor:
		return ResourceCompetitor, true
	}
	return "", false
}

// CredentialSource records where an outbound provider credential came from
type CredentialSource string

const (
	// SourceUserIntegration means the user's own active integration was used
	SourceUserIntegration CredentialSource = "user-integration"
	// SourceMasterFallback means the shared provider-level credential was used
	SourceMasterFallback CredentialSource = "master-fallback"
)

// Feature names resolved by the entitlement resolver
const (
	FeatureSpamDetection = "spam_detection"
)

// DefaultPlanName is the plan every new account starts on
const DefaultPlanName = "Public"

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
