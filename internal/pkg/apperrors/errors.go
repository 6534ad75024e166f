package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrValidationReject ErrorType = "VALIDATION_REJECT"
	ErrRateLimited      ErrorType = "RATE_LIMITED"
	ErrRetryExhausted   ErrorType = "RETRY_EXHAUSTED"
	ErrPollExhausted    ErrorType = "POLL_EXHAUSTED"
	ErrExpired          ErrorType = "OPERATION_EXPIRED"
	ErrStorage          ErrorType = "STORAGE_ERROR"
	ErrAuthFailed       ErrorType = "AUTH_FAILED"
	ErrInvalidRequest   ErrorType = "INVALID_REQUEST"
	ErrInternal         ErrorType = "INTERNAL_ERROR"
	ErrNotFound         ErrorType = "NOT_FOUND"
	ErrUpstream         ErrorType = "UPSTREAM_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewValidationReject(msg string) *AppError {
	return New(ErrValidationReject, msg, nil)
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func NewRetryExhausted(cause error) *AppError {
	return New(ErrRetryExhausted, "maximum retry attempts exceeded", cause)
}

func NewPollExhausted(attempts int, cause error) *AppError {
	return New(ErrPollExhausted, fmt.Sprintf("max polling attempts (%d) exceeded", attempts), cause)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrValidationReject, ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrExpired:
		return http.StatusGone
	case ErrNotFound:
		return http.StatusNotFound
	case ErrRetryExhausted, ErrPollExhausted, ErrUpstream:
		return http.StatusBadGateway
	case ErrStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrValidationReject:
		return "Check swap parameters and retry with corrected input."
	case ErrRateLimited:
		return "Wait for the reported interval before retrying."
	case ErrRetryExhausted, ErrPollExhausted:
		return "Retry the operation or recover it via its recovery ID."
	case ErrExpired:
		return "The pending operation is too old to resume; start a new swap."
	case ErrAuthFailed:
		return "Check the API key."
	default:
		return ""
	}
}
