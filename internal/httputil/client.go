package httputil

import (
	"net/http"
	"time"
)

const DefaultTimeout = 30 * time.Second

// NewClient returns an HTTP client with the given timeout, falling back to
// DefaultTimeout when timeout is not positive.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
	}
}

// IsRetryableStatus reports whether a response status is worth retrying.
func IsRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
