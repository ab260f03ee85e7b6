// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ytgate/ytgate/internal/errs"
	"github.com/ytgate/ytgate/internal/log"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	ErrorCode  string         `json:"error_code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  string         `json:"timestamp"`
	RequestID  string         `json:"request_id,omitempty"`
	Suggestion string         `json:"suggestion,omitempty"`
}

// suggestions give clients an actionable hint for recoverable failures.
var suggestions = map[errs.Code]string{
	errs.CodeRateLimitExceeded: "retry after the delay indicated by the Retry-After header",
	errs.CodeQueueFull:         "retry when queue capacity frees up",
	errs.CodeMissingCookie:     "provide a credential file for this provider",
	errs.CodeCookieExpired:     "refresh the provider credential and reload it",
	errs.CodeFileTooLarge:      "select a smaller format or raise storage.max_file_size",
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError renders err as the error body. Unknown errors collapse to
// INTERNAL_ERROR without leaking internals.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorStatus(w, r, err, 0)
}

// writeErrorStatus renders err with an explicit status; 0 means use the
// taxonomy mapping.
func writeErrorStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	code := errs.CodeInternal
	message := "internal error"
	var details map[string]any

	var se *errs.Error
	if errors.As(err, &se) {
		code = se.Code
		message = se.Message
		details = se.Details
	}
	if status == 0 {
		status = errs.HTTPStatus(code)
	}

	writeJSON(w, status, errorBody{
		ErrorCode:  string(code),
		Message:    message,
		Details:    details,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RequestID:  log.RequestIDFromContext(r.Context()),
		Suggestion: suggestions[code],
	})
}

// writeRateLimited renders the 429 with its Retry-After header.
func writeRateLimited(w http.ResponseWriter, r *http.Request, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	writeError(w, r, errs.New(errs.CodeRateLimitExceeded, "rate limit exceeded").
		WithDetails(map[string]any{"retry_after_seconds": retryAfterSeconds}))
}
