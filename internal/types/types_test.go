package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to TaskStatus
		want     bool
	}{
		{TaskStatusPending, TaskStatusPending, true},
		{TaskStatusPending, TaskStatusRunning, true},
		{TaskStatusPending, TaskStatusCompleted, true},
		{TaskStatusPending, TaskStatusFailed, true},
		{TaskStatusRunning, TaskStatusPending, false},
		{TaskStatusRunning, TaskStatusRunning, true},
		{TaskStatusRunning, TaskStatusCompleted, true},
		{TaskStatusRunning, TaskStatusFailed, true},
		{TaskStatusCompleted, TaskStatusRunning, false},
		{TaskStatusCompleted, TaskStatusCompleted, false},
		{TaskStatusFailed, TaskStatusCompleted, false},
		{TaskStatusPending, TaskStatus("DONE"), false},
		{TaskStatus(""), TaskStatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTaskStatus_IsTerminal(t *testing.T) {
	assert.False(t, TaskStatusPending.IsTerminal())
	assert.False(t, TaskStatusRunning.IsTerminal())
	assert.True(t, TaskStatusCompleted.IsTerminal())
	assert.True(t, TaskStatusFailed.IsTerminal())
}

func TestParseResourceKind(t *testing.T) {
	tests := []struct {
		in     string
		want   ResourceKind
		wantOK bool
	}{
		{"integration", ResourceIntegration, true},
		{"Tracked_Keyword", ResourceTrackedKeyword, true},
		{" competitor ", ResourceCompetitor, true},
		{"competitors", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseResourceKind(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestServiceError(t *testing.T) {
	err := &ServiceError{Code: "LIMIT_EXCEEDED", Message: "limit reached"}
	assert.EqualError(t, err, "limit reached")
}
