package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/post-analyzer/internal/types"
)

func TestCategorizedErrors(t *testing.T) {
	cause := stderrors.New("connection reset")

	tests := []struct {
		name      string
		err       error
		sentinel  error
		code      string
		status    int
		userError bool
		retryable bool
	}{
		{"unsupported url", NewUnsupportedURLError("ftp://x"), ErrUnsupportedURL, CodeUnsupportedURL, http.StatusBadRequest, true, false},
		{"no credential", NewNoCredentialError("reddit"), ErrNoCredential, CodeNoCredential, http.StatusFailedDependency, true, false},
		{"token not found", NewTokenNotFoundError(), ErrTokenNotFound, CodeTokenNotFound, http.StatusNotFound, true, false},
		{"token used", NewTokenAlreadyUsedError(), ErrTokenAlreadyUsed, CodeTokenAlreadyUsed, http.StatusConflict, true, false},
		{"token expired", NewTokenExpiredError(), ErrTokenExpired, CodeTokenExpired, http.StatusGone, true, false},
		{"limit", NewLimitExceededError(types.ResourceCompetitor, 1, "max reached"), ErrLimitExceeded, CodeLimitExceeded, http.StatusForbidden, true, false},
		{"not found", NewNotFoundError("task", "t1"), ErrNotFound, CodeNotFound, http.StatusNotFound, true, false},
		{"conflict", NewConflictError("changed concurrently"), NewConflictError(""), CodeConflict, http.StatusConflict, true, false},
		{"persistence", NewPersistenceError("create task", cause), ErrPersistenceFailure, CodePersistenceFailure, http.StatusInternalServerError, false, true},
		{"wrapped", fmt.Errorf("handler: %w", NewNotFoundError("user", "u1")), ErrNotFound, CodeNotFound, http.StatusNotFound, true, false},
		{"plain error", cause, nil, CodeInternal, http.StatusInternalServerError, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.sentinel != nil {
				assert.ErrorIs(t, tt.err, tt.sentinel)
			}
			assert.Equal(t, tt.code, CodeOf(tt.err))
			assert.Equal(t, tt.code, Categorize(tt.err).Code)
			assert.Equal(t, tt.status, GetHTTPStatusCode(tt.err))
			assert.Equal(t, tt.userError, IsUserError(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestIs_ComparesCodesOnly(t *testing.T) {
	err := NewNotFoundError("task", "t1")

	assert.True(t, stderrors.Is(err, NewNotFoundError("user", "other")))
	assert.False(t, stderrors.Is(err, ErrTokenNotFound))
	assert.False(t, stderrors.Is(err, stderrors.New(CodeNotFound)))
}

func TestPersistenceErrorKeepsCause(t *testing.T) {
	cause := stderrors.New("deadlock detected")
	err := NewPersistenceError("transition subtask", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "deadlock detected")
}

func TestCategorize(t *testing.T) {
	assert.Nil(t, Categorize(nil))
	assert.Equal(t, "", CodeOf(nil))

	svcErr := &types.ServiceError{Code: "BAD_FIELD", Message: "bad field"}
	cat := Categorize(fmt.Errorf("wrap: %w", svcErr))
	assert.Equal(t, "BAD_FIELD", cat.Code)
	assert.Equal(t, http.StatusBadRequest, cat.StatusCode)
	assert.True(t, IsUserError(svcErr))

	internal := Categorize(stderrors.New("boom"))
	assert.Equal(t, CodeInternal, internal.Code)
	assert.Equal(t, CategorySystem, internal.Category)
}
