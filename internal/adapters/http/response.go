package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chattyhq/export-service/internal/domain"
)

type successEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type errorEnvelope struct {
	Status    string `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, successEnvelope{Status: "success", Data: data})
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, successEnvelope{Status: "success", Message: message})
}

// writeError echoes the request id so a support ticket quoting the error body
// can be matched against the request logs.
func writeError(ctx context.Context, w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorEnvelope{
		Status:    "error",
		Code:      code,
		Message:   message,
		RequestID: requestIDFromContext(ctx),
	})
}

// writeDomainError is the single place an application error turns into an
// HTTP response: map, log, write.
func writeDomainError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	statusCode, code, message := mapDomainError(err)
	logOperationFailure(ctx, operation, statusCode, code, err)
	writeError(ctx, w, statusCode, code, message)
}

func writeValidationError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	logOperationFailure(ctx, operation, http.StatusBadRequest, "VALIDATION_ERROR", err)
	writeError(ctx, w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
}

// mapDomainError translates export-flow sentinels into status/code/message.
// ErrInvalidCode is matched before the provider sentinels: a provider error
// during a code check is wrapped in ErrInvalidCode and must answer 400, not
// 502, so the caller retries the code rather than the whole export.
func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusBadRequest, "INVALID_TOKEN", "invalid export token"
	case errors.Is(err, domain.ErrWrongPurpose):
		return http.StatusBadRequest, "WRONG_PURPOSE", "token purpose is not export"
	case errors.Is(err, domain.ErrInvalidCode):
		return http.StatusBadRequest, "INVALID_CODE", "invalid verification code"
	case errors.Is(err, domain.ErrNotVerified):
		return http.StatusForbidden, "NOT_VERIFIED", "export session not verified"
	case errors.Is(err, domain.ErrAlreadyConsumed):
		return http.StatusForbidden, "ALREADY_DOWNLOADED", "export already downloaded"
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusNotFound, "TOKEN_EXPIRED", "export token expired"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED", "too many requests"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE", "verification provider not configured"
	case errors.Is(err, domain.ErrProviderTimeout):
		return http.StatusBadGateway, "PROVIDER_TIMEOUT", "verification provider timed out"
	case errors.Is(err, domain.ErrProviderFailure):
		return http.StatusBadGateway, "PROVIDER_FAILURE", "verification provider call failed"
	case errors.Is(err, domain.ErrDataUnavailable):
		return http.StatusServiceUnavailable, "DATA_UNAVAILABLE", "chat data source unavailable"
	case errors.Is(err, domain.ErrArchiveFailed), errors.Is(err, domain.ErrNotificationFailed):
		return http.StatusInternalServerError, "EXPORT_FAILED", "export request failed"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

func logOperationFailure(ctx context.Context, operation string, statusCode int, code string, err error) {
	fields := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", statusCode,
		"error_code", code,
		"request_id", requestIDFromContext(ctx),
	}
	if err != nil {
		fields = append(fields, "error", err.Error())
	}
	if statusCode >= 500 {
		httpLogger().ErrorContext(ctx, "export operation failed", fields...)
		return
	}
	httpLogger().WarnContext(ctx, "export operation failed", fields...)
}
