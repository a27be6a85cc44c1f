// Package validator wraps go-playground/validator and reports failures as
// INVALID_PARAMETER errors keyed by JSON field name.
package validator

import (
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/post-analyzer/internal/errors"
	"github.com/post-analyzer/internal/types"
)

// Validator validates request DTOs
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with the custom rules registered
func New() *Validator {
	v := validator.New()

	// report JSON names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "task-status", validateTaskStatus)
	mustRegister(v, "resource-kind", validateResourceKind)

	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("failed to register validation tag %q: %v", tag, err))
	}
}

// Validate checks i and returns a categorized INVALID_PARAMETER error listing
// every failing field
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.NewInternalError("validation failed", err)
	}

	fields := make(map[string]interface{}, len(validationErrors))
	names := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields[fe.Field()] = errorMessage(fe)
		names = append(names, fe.Field())
	}
	sort.Strings(names)

	return &apperrors.CategorizedError{
		Category:   apperrors.CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       apperrors.CodeInvalidParameter,
		Message:    "invalid request: " + strings.Join(names, ", "),
		Details:    map[string]interface{}{"fields": fields},
	}
}

func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Must be at least %s characters long", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Must be at most %s characters long", fe.Param())
		}
		return fmt.Sprintf("Must be at most %s", fe.Param())
	case "url":
		return "Must be a valid URL"
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "task-status":
		return "Must be one of: PENDING, RUNNING, COMPLETED, FAILED"
	case "resource-kind":
		return "Must be one of: integration, tracked_keyword, competitor"
	default:
		return fmt.Sprintf("Invalid value (failed on '%s' tag)", fe.Tag())
	}
}

func validateTaskStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // 'required' handles empty values
	}
	return types.TaskStatus(value).IsValid()
}

func validateResourceKind(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, ok := types.ParseResourceKind(value)
	return ok
}
