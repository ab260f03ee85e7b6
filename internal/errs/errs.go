// SPDX-License-Identifier: MIT

// Package errs defines the service error taxonomy and its HTTP mapping.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error kind. Codes are stable API surface: they appear
// verbatim in error response bodies.
type Code string

const (
	CodeInvalidURL           Code = "INVALID_URL"
	CodeInvalidFormat        Code = "INVALID_FORMAT"
	CodeFileTooLarge         Code = "FILE_TOO_LARGE"
	CodeAuthFailed           Code = "AUTH_FAILED"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"
	CodeQueueFull            Code = "QUEUE_FULL"
	CodeVideoUnavailable     Code = "VIDEO_UNAVAILABLE"
	CodeFormatNotFound       Code = "FORMAT_NOT_FOUND"
	CodeMissingCookie        Code = "MISSING_COOKIE"
	CodeCookieExpired        Code = "COOKIE_EXPIRED"
	CodeDownloadFailed       Code = "DOWNLOAD_FAILED"
	CodeTranscodingFailed    Code = "TRANSCODING_FAILED"
	CodeStorageFull          Code = "STORAGE_FULL"
	CodeComponentUnavailable Code = "COMPONENT_UNAVAILABLE"
	CodeJobNotFound          Code = "JOB_NOT_FOUND"
	CodeConflict             Code = "CONFLICT"
	CodeInternal             Code = "INTERNAL_ERROR"
)

// Error is the service error value: a code from the taxonomy, a message safe
// for API consumers, optional details, and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause chain to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.cause }

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that carries cause in its chain.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// WithDetails attaches detail fields to the error and returns it.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// CodeOf extracts the taxonomy code from err, or CodeInternal for foreign
// errors.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error code to its HTTP response status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidURL, CodeInvalidFormat, CodeFileTooLarge:
		return http.StatusBadRequest
	case CodeAuthFailed:
		return http.StatusUnauthorized
	case CodeVideoUnavailable, CodeJobNotFound, CodeFormatNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case CodeQueueFull, CodeComponentUnavailable, CodeStorageFull, CodeMissingCookie, CodeCookieExpired:
		return http.StatusServiceUnavailable
	case CodeDownloadFailed, CodeTranscodingFailed, CodeInternal:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
