// Package retry interprets server hints on failed responses. The client makes
// a single attempt per call; these helpers only inform callers.
package retry

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Retryable reports whether a status code signals a transient failure:
// 408, 429 and 5xx other than 501 Not Implemented.
func Retryable(statusCode int) bool {
	switch {
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests:
		return true
	case statusCode == http.StatusNotImplemented:
		return false
	default:
		return statusCode >= http.StatusInternalServerError && statusCode <= 599
	}
}

// ParseRetryAfter parses the Retry-After HTTP header relative to now.
// The Retry-After header can contain either:
//   - Number of seconds (e.g., "120")
//   - HTTP-date (e.g., "Wed, 21 Oct 2015 07:28:00 GMT")
//
// Returns 0 if the header is empty, unparseable or in the past.
func ParseRetryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds < 0 {
			return 0
		}

		return time.Duration(seconds) * time.Second
	}

	at, err := http.ParseTime(header)
	if err != nil {
		return 0
	}

	if wait := at.Sub(now); wait > 0 {
		return wait
	}

	return 0
}
