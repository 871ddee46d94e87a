package fetch

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"

	"github.com/lexfrei/go-fetch/internal/retry"
)

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 1 << 20

// HTTPError is returned for non-2xx responses. The body has been read into
// Body; Response.Body replays the same bytes.
type HTTPError struct {
	StatusCode int
	Status     string
	Method     string
	URL        string
	Header     http.Header
	Body       []byte
	Response   *http.Response
}

func newHTTPError(resp *http.Response) *HTTPError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	drain(resp)
	resp.Body = io.NopCloser(bytes.NewReader(body))

	e := &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
		Response:   resp,
	}

	if resp.Request != nil {
		e.Method = resp.Request.Method
		e.URL = resp.Request.URL.String()
	}

	return e
}

func (e *HTTPError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}

	if e.Method == "" {
		return "http error: " + status
	}

	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, status)
}

// Text returns the error body as a string.
func (e *HTTPError) Text() string { return string(e.Body) }

// JSON decodes the error body into v.
func (e *HTTPError) JSON(v any) error {
	if err := sonic.Unmarshal(e.Body, v); err != nil {
		return errors.Wrap(err, "failed to decode error body")
	}

	return nil
}

// Retryable reports whether the status suggests a later attempt may succeed.
// The client itself never retries.
func (e *HTTPError) Retryable() bool { return retry.Retryable(e.StatusCode) }

// RetryAfter returns the wait requested by a Retry-After header, or 0.
func (e *HTTPError) RetryAfter() time.Duration {
	return retry.ParseRetryAfter(e.Header.Get("Retry-After"), time.Now())
}

// AsHTTPError reports whether err is or wraps an *HTTPError.
func AsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}

	return nil, false
}

// normalize passes err through the configured handler. The handler cannot
// swallow an error: a nil result keeps the original.
func (c *Client) normalize(err error) error {
	if err == nil {
		return nil
	}

	if _, isHTTP := AsHTTPError(err); isHTTP {
		c.metrics.RecordError("response", "HTTPError")
	}

	handler := c.errorHandler
	if handler == nil {
		handler = c.logError
	}

	if replaced := handler(err); replaced != nil {
		return replaced
	}

	return err
}

// logError is the default handler: one line, error returned unchanged.
func (c *Client) logError(err error) error {
	c.logger.Error("httpclient - " + err.Error())

	return err
}
