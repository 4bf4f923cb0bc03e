package models

import (
	"fmt"
	"net/http"
	"time"
)

// Error codes carried in the error envelope.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidBody        = "INVALID_REQUEST_BODY"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeNotFound           = "NOT_FOUND"
	CodeRateLimited        = "RATE_LIMITED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// APIError is an error that knows how it should be rendered over HTTP.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details any
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

func NewValidationError(message string, details any) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: CodeValidation, Message: message, Details: details}
}

func NewInvalidBodyError(err error) *APIError {
	return &APIError{Status: http.StatusUnprocessableEntity, Code: CodeInvalidBody, Message: "Request body could not be parsed", Err: err}
}

func NewSessionNotFoundError(id string) *APIError {
	return &APIError{Status: http.StatusNotFound, Code: CodeSessionNotFound, Message: "Session not found or expired", Details: map[string]string{"session_id": id}}
}

func NewUnavailableError(message string, err error) *APIError {
	return &APIError{Status: http.StatusServiceUnavailable, Code: CodeServiceUnavailable, Message: message, Err: err}
}

func NewInternalError(err error) *APIError {
	return &APIError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "An internal server error occurred", Err: err}
}

// ErrorEnvelope is the JSON body of every error response.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   any       `json:"details"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// CodeForStatus picks the envelope code for errors that carry only a status.
func CodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnprocessableEntity:
		return CodeInvalidBody
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusServiceUnavailable:
		return CodeServiceUnavailable
	}
	return CodeInternal
}
