// SPDX-License-Identifier: MIT

package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCauseChain(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := Wrap(CodeDownloadFailed, "extractor failed", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeDownloadFailed, CodeOf(err))

	wrapped := fmt.Errorf("job abc: %w", err)
	assert.Equal(t, CodeDownloadFailed, CodeOf(wrapped))
}

func TestCodeOfForeignError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidURL:           http.StatusBadRequest,
		CodeInvalidFormat:        http.StatusBadRequest,
		CodeAuthFailed:           http.StatusUnauthorized,
		CodeVideoUnavailable:     http.StatusNotFound,
		CodeJobNotFound:          http.StatusNotFound,
		CodeRateLimitExceeded:    http.StatusTooManyRequests,
		CodeQueueFull:            http.StatusServiceUnavailable,
		CodeComponentUnavailable: http.StatusServiceUnavailable,
		CodeStorageFull:          http.StatusServiceUnavailable,
		CodeMissingCookie:        http.StatusServiceUnavailable,
		CodeDownloadFailed:       http.StatusInternalServerError,
		CodeTranscodingFailed:    http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatus(code), string(code))
	}
}
