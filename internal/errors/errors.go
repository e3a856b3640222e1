// Package errors defines the service error taxonomy shared by handlers,
// middleware and services.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error category across the API surface.
type Code string

const (
	CodeValidation   Code = "validation_error"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUpstream     Code = "upstream_failure"
	CodeDecode       Code = "decode_failure"
	CodeUnauthorized Code = "unauthorized"
	CodeTokenExpired Code = "token_expired"
	CodeInvalidToken Code = "invalid_token"
	CodePersistence  Code = "persistence_error"
	CodeRateLimited  Code = "rate_limit_exceeded"
	CodeInternal     Code = "internal_error"
)

// ServiceError carries an error category, an HTTP status and optional detail
// fields for the response body.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *ServiceError) Unwrap() error { return e.cause }

// WithDetails attaches a detail field and returns the error for chaining.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(code Code, status int, message string, cause error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, cause: cause}
}

// Validation reports a missing or malformed request field.
func Validation(message string) *ServiceError {
	return newError(CodeValidation, http.StatusBadRequest, message, nil)
}

// NotFound reports an absent resource.
func NotFound(message string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, message, nil)
}

// Conflict reports a resource that already exists.
func Conflict(message string) *ServiceError {
	return newError(CodeConflict, http.StatusConflict, message, nil)
}

// Upstream reports a classifier or generation engine failure. These are
// absorbed into fallback responses and never surfaced as request failures.
func Upstream(message string, cause error) *ServiceError {
	return newError(CodeUpstream, http.StatusOK, message, cause)
}

// Decode reports an image payload that could not be decoded. Like Upstream,
// it degrades the response rather than failing the request.
func Decode(message string, cause error) *ServiceError {
	return newError(CodeDecode, http.StatusOK, message, cause)
}

// Unauthorized reports a missing or unacceptable credential.
func Unauthorized(message string) *ServiceError {
	return newError(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

// TokenExpired reports an expired bearer token.
func TokenExpired(cause error) *ServiceError {
	return newError(CodeTokenExpired, http.StatusUnauthorized, "Token has expired", cause)
}

// InvalidToken reports a malformed or badly signed bearer token.
func InvalidToken(cause error) *ServiceError {
	return newError(CodeInvalidToken, http.StatusUnauthorized, "Invalid token", cause)
}

// Persistence reports an unreachable or failing store.
func Persistence(message string, cause error) *ServiceError {
	return newError(CodePersistence, http.StatusInternalServerError, message, cause)
}

// RateLimited reports a caller exceeding the per-client request rate.
func RateLimited(limit int, window string) *ServiceError {
	e := newError(CodeRateLimited, http.StatusTooManyRequests, "Rate limit exceeded", nil)
	return e.WithDetails("limit", limit).WithDetails("window", window)
}

// Internal reports an unexpected failure.
func Internal(message string, cause error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, message, cause)
}

// GetServiceError extracts a *ServiceError from err, or nil if none is
// present in the chain.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code Code) bool {
	svcErr := GetServiceError(err)
	return svcErr != nil && svcErr.Code == code
}
