package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/post-analyzer/internal/errors"
)

type signupForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type statusForm struct {
	Status string `json:"status" validate:"required,task-status"`
	Kind   string `json:"kind" validate:"omitempty,resource-kind"`
}

func TestValidate_OK(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(signupForm{Email: "a@example.com", Password: "long-enough"}))
	assert.NoError(t, v.Validate(statusForm{Status: "RUNNING", Kind: "competitor"}))
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	v := New()
	err := v.Validate(signupForm{Email: "not-an-email", Password: "short"})
	require.Error(t, err)

	var catErr *apperrors.CategorizedError
	require.True(t, errors.As(err, &catErr))
	assert.Equal(t, apperrors.CodeInvalidParameter, catErr.Code)
	assert.Equal(t, 400, catErr.StatusCode)

	fields, ok := catErr.Details["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Must be a valid email address", fields["email"])
	assert.Equal(t, "Must be at least 8 characters long", fields["password"])
	assert.Equal(t, "invalid request: email, password", catErr.Message)
}

func TestValidate_CustomRules(t *testing.T) {
	v := New()

	err := v.Validate(statusForm{Status: "DONE"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidParameter, apperrors.CodeOf(err))

	err = v.Validate(statusForm{Status: "FAILED", Kind: "followers"})
	require.Error(t, err)
}
