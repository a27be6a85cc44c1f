package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/post-analyzer/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents rejected input (4xx)
	CategoryValidation ErrorCategory = "validation"
	// CategoryCredential represents a missing provider credential
	CategoryCredential ErrorCategory = "credential"
	// CategoryInvitation represents invitation token rejections
	CategoryInvitation ErrorCategory = "invitation"
	// CategoryLimit represents plan limit rejections
	CategoryLimit ErrorCategory = "limit"
	// CategoryAuthorization represents authorization errors
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConflict represents conflict errors
	CategoryConflict ErrorCategory = "conflict"
	// CategoryRateLimit represents request rate errors
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryPersistence represents a failed atomic unit against the store
	CategoryPersistence ErrorCategory = "persistence"
	// CategorySystem represents everything else (5xx)
	CategorySystem ErrorCategory = "system"
)

// Stable error codes. These are part of the HTTP contract.
const (
	CodeUnsupportedURL     = "UNSUPPORTED_URL"
	CodeNoCredential       = "NO_CREDENTIAL_AVAILABLE"
	CodeTokenNotFound      = "TOKEN_NOT_FOUND"
	CodeTokenAlreadyUsed   = "TOKEN_ALREADY_USED"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeLimitExceeded      = "LIMIT_EXCEEDED"
	CodePersistenceFailure = "PERSISTENCE_FAILURE"
	CodeInvalidParameter   = "INVALID_PARAMETER"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeConflict           = "CONFLICT"
	CodeRateLimit          = "RATE_LIMIT_EXCEEDED"
	CodeInternal           = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. Matching compares codes only.
var (
	ErrUnsupportedURL     = &CategorizedError{Code: CodeUnsupportedURL}
	ErrNoCredential       = &CategorizedError{Code: CodeNoCredential}
	ErrTokenNotFound      = &CategorizedError{Code: CodeTokenNotFound}
	ErrTokenAlreadyUsed   = &CategorizedError{Code: CodeTokenAlreadyUsed}
	ErrTokenExpired       = &CategorizedError{Code: CodeTokenExpired}
	ErrLimitExceeded      = &CategorizedError{Code: CodeLimitExceeded}
	ErrPersistenceFailure = &CategorizedError{Code: CodePersistenceFailure}
	ErrNotFound           = &CategorizedError{Code: CodeNotFound}
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code
func (e *CategorizedError) Is(target error) bool {
	t, ok := target.(*CategorizedError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// Analysis errors

// NewUnsupportedURLError creates an error for a URL no provider recognizes
func NewUnsupportedURLError(rawURL string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeUnsupportedURL,
		Message:    fmt.Sprintf("unsupported post url: %s", rawURL),
		Details: map[string]interface{}{
			"url": rawURL,
		},
	}
}

// NewNoCredentialError creates an error for a provider with neither an active
// integration nor a master credential
func NewNoCredentialError(provider string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCredential,
		StatusCode: http.StatusFailedDependency,
		Code:       CodeNoCredential,
		Message:    fmt.Sprintf("no credential available for provider %s", provider),
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// Invitation errors

// NewTokenNotFoundError creates an unknown invitation token error
func NewTokenNotFoundError() *CategorizedError {
	return &CategorizedError{
		Category:   CategoryInvitation,
		StatusCode: http.StatusNotFound,
		Code:       CodeTokenNotFound,
		Message:    "invitation token not found",
	}
}

// NewTokenAlreadyUsedError creates a spent invitation token error
func NewTokenAlreadyUsedError() *CategorizedError {
	return &CategorizedError{
		Category:   CategoryInvitation,
		StatusCode: http.StatusConflict,
		Code:       CodeTokenAlreadyUsed,
		Message:    "invitation token has already been used",
	}
}

// NewTokenExpiredError creates an expired invitation token error
func NewTokenExpiredError() *CategorizedError {
	return &CategorizedError{
		Category:   CategoryInvitation,
		StatusCode: http.StatusGone,
		Code:       CodeTokenExpired,
		Message:    "invitation token has expired",
	}
}

// Plan limit errors

// NewLimitExceededError creates a plan limit error
func NewLimitExceededError(kind types.ResourceKind, limit int, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryLimit,
		StatusCode: http.StatusForbidden,
		Code:       CodeLimitExceeded,
		Message:    reason,
		Details: map[string]interface{}{
			"resource": kind,
			"limit":    limit,
		},
	}
}

// Generic input and access errors

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidParameter,
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusUnauthorized,
		Code:       CodeUnauthorized,
		Message:    message,
	}
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusForbidden,
		Code:       CodeForbidden,
		Message:    message,
	}
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       CodeConflict,
		Message:    message,
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(retryAfter int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeRateLimit,
		Message:    "rate limit exceeded",
		Details: map[string]interface{}{
			"retryAfter": retryAfter,
		},
	}
}

// System errors

// NewPersistenceError creates an error for a store operation or atomic unit
// that did not commit
func NewPersistenceError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPersistence,
		StatusCode: http.StatusInternalServerError,
		Code:       CodePersistenceFailure,
		Message:    fmt.Sprintf("persistence failure during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternal,
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return &CategorizedError{
			Category:   CategoryValidation,
			StatusCode: http.StatusBadRequest,
			Code:       svcErr.Code,
			Message:    svcErr.Message,
			Details:    svcErr.Details,
		}
	}

	return NewInternalError("unexpected error", err)
}

// CodeOf returns the stable code carried by err, or "" for nil
func CodeOf(err error) string {
	if catErr := Categorize(err); catErr != nil {
		return catErr.Code
	}
	return ""
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil && catErr.StatusCode != 0 {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable reports whether the caller may safely repeat the whole call
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.Category == CategoryPersistence
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	status := GetHTTPStatusCode(err)
	return status >= 400 && status < 500
}
