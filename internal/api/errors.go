package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	apperrors "github.com/post-analyzer/internal/errors"
	"github.com/post-analyzer/internal/logging"
	"github.com/post-analyzer/internal/types"
)

// maxBodyBytes bounds every JSON request body
const maxBodyBytes = 1 << 20

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends the categorized form of err. Causes are logged, never
// returned to the client.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := apperrors.Categorize(err)
	status := apperrors.GetHTTPStatusCode(catErr)

	logger := logging.FromContext(r.Context()).WithError(err).WithField("code", catErr.Code)
	if apperrors.IsUserError(catErr) {
		logger.Debug("Request rejected")
	} else {
		logger.Error("Request failed")
	}

	if status == http.StatusTooManyRequests {
		if retryAfter, ok := catErr.Details["retryAfter"].(int); ok {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		}
	}

	respondJSON(w, status, ErrorResponse{Error: *catErr.ToServiceError()})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses a JSON request body into v, rejecting unknown fields
// and trailing data.
func parseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewInvalidParameterError("body", "request body is empty")
		}
		return apperrors.NewInvalidParameterError("body", fmt.Sprintf("malformed JSON: %v", err))
	}
	if decoder.More() {
		return apperrors.NewInvalidParameterError("body", "unexpected data after JSON object")
	}
	return nil
}
