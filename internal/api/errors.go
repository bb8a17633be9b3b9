package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	apperrors "github.com/babylon-scanner/internal/errors"
	"github.com/babylon-scanner/internal/logging"
	"github.com/babylon-scanner/internal/types"
)

// Envelope wraps every API response.
type Envelope struct {
	Success  bool                `json:"success"`
	Data     interface{}         `json:"data,omitempty"`
	Degraded bool                `json:"degraded"`
	Message  string              `json:"message,omitempty"`
	Error    *types.ServiceError `json:"error,omitempty"`
}

// Common error codes
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// respondData sends a success envelope.
func respondData(w http.ResponseWriter, statusCode int, data interface{}, degraded bool) {
	respondJSON(w, statusCode, Envelope{Success: true, Data: data, Degraded: degraded})
}

// respondError sends an error envelope.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	respondJSON(w, statusCode, Envelope{
		Success: false,
		Error: &types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// respondServiceError maps a service error onto its status and envelope.
// Internal failures are reported without their cause.
func respondServiceError(w http.ResponseWriter, err error) {
	catErr := apperrors.Categorize(err)
	if catErr.StatusCode >= http.StatusInternalServerError && catErr.Category == apperrors.CategorySystem {
		respondError(w, catErr.StatusCode, ErrCodeInternalError, "An internal error occurred", nil)
		return
	}
	if catErr.Category == apperrors.CategoryRateLimit {
		if retry, ok := catErr.Details["retryAfter"].(int); ok {
			w.Header().Set("Retry-After", strconv.Itoa(retry))
		}
	}
	respondJSON(w, catErr.StatusCode, Envelope{Success: false, Error: catErr.ToServiceError()})
}

// respondJSON sends a JSON response. The body is encoded before the status is written so an
// unencodable value becomes a 500 instead of an empty 200.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if data == nil {
		w.WriteHeader(statusCode)
		return
	}

	body, err := json.Marshal(data)
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Error("failed to encode response")
		w.WriteHeader(http.StatusInternalServerError)
		fallback, _ := json.Marshal(Envelope{
			Success: false,
			Error:   apperrors.NewInternalError("An internal error occurred", err).ToServiceError(),
		})
		_, _ = w.Write(append(fallback, '\n'))
		return
	}

	w.WriteHeader(statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return apperrors.NewInvalidParameterError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

// parseLimit reads ?limit=. A missing or unparsable value gives def and anything above max is capped.
func parseLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// parseID reads a positive integer path id.
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperrors.NewInvalidParameterError("id", "must be a positive integer")
	}
	return id, nil
}
