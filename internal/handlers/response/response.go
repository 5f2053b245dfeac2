// Package response writes the JSON envelopes shared by the cron and admin handlers.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/kevin07696/marketplace-ledger/internal/domain"
	"go.uber.org/zap"
)

// ErrorBody is the error envelope returned by every endpoint
type ErrorBody struct {
	Success   bool                   `json:"success"`
	Error     string                 `json:"error"`
	Code      string                 `json:"code,omitempty"`
	Retryable bool                   `json:"retryable,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// JSON writes v with the given status code
func JSON(w http.ResponseWriter, logger *zap.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Error writes an error envelope with a plain message
func Error(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	JSON(w, logger, status, ErrorBody{Success: false, Error: message})
}

// StatusFor maps an error to its HTTP status code
func StatusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return http.StatusBadRequest
	case domain.IsNotFoundError(err):
		return http.StatusNotFound
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case domain.IsStateError(err):
		return http.StatusConflict
	case domain.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromError writes the envelope for err. Internal errors are not echoed to the caller.
func FromError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := StatusFor(err)
	body := ErrorBody{
		Success:   false,
		Error:     err.Error(),
		Code:      string(domain.GetErrorCode(err)),
		Retryable: domain.IsRetryable(err),
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		body.Details = de.Details
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		body.Code = string(domain.ErrorCodeValidationFailed)
		body.Details = make(map[string]interface{}, len(verrs))
		for _, fe := range verrs {
			body.Details[fe.Field()] = fe.Tag()
		}
	}

	switch {
	case status == http.StatusInternalServerError:
		logger.Error("Request failed", zap.Error(err))
		body.Error = "internal error"
	case status == http.StatusServiceUnavailable:
		logger.Warn("Request failed with retryable error", zap.Error(err))
	case status == http.StatusConflict:
		logger.Error("Request rejected by state check", zap.Error(err))
	default:
		logger.Info("Request rejected", zap.Int("status", status), zap.Error(err))
	}

	JSON(w, logger, status, body)
}
