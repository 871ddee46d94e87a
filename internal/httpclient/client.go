// Package httpclient provides an HTTP client with middleware support.
//
// Each Client owns its own *http.Client and transport chain. A caller-supplied
// client is copied, never modified, so independent clients built over the same
// base cannot observe each other's middleware.
package httpclient

import (
	"net/http"
)

// Client is an HTTP client that supports middleware chaining.
type Client struct {
	base       *http.Client
	middleware []Middleware
	transport  http.RoundTripper
}

// Middleware wraps an http.RoundTripper to add behavior.
// Middleware is applied in order: first middleware is outermost.
type Middleware func(http.RoundTripper) http.RoundTripper

// New creates a new HTTP client with the given options.
// No timeout is set unless WithTimeout or WithHTTPClient provides one.
func New(opts ...Option) *Client {
	c := &Client{
		base:       &http.Client{},
		middleware: []Middleware{},
	}

	for _, opt := range opts {
		opt(c)
	}

	transport := c.base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	c.transport = transport

	// Apply middleware in reverse order so first middleware is outermost
	for i := len(c.middleware) - 1; i >= 0; i-- {
		transport = c.middleware[i](transport)
	}

	c.base.Transport = transport

	return c
}

// Do executes an HTTP request using the configured middleware chain.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	//nolint:wrapcheck // Transport errors are surfaced unchanged
	return c.base.Do(req)
}

// HTTPClient returns the underlying http.Client.
// This is useful when the client needs to be passed to code that expects *http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.base
}

// BaseTransport returns the transport underneath the middleware chain.
//
//nolint:ireturn // Exposes whatever transport was configured
func (c *Client) BaseTransport() http.RoundTripper {
	return c.transport
}
