package httpclient

import (
	"net/http"
	"time"
)

// Option is a functional option for configuring the HTTP client.
type Option func(*Client)

// WithHTTPClient uses a copy of client as the base. The copy keeps the
// timeout, redirect policy and transport; its Jar is dropped because cookies
// are handled by the credentials middleware.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client == nil {
			return
		}

		clone := *client
		clone.Jar = nil
		c.base = &clone
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.base.Timeout = timeout
	}
}

// WithTransport sets the HTTP transport.
// Note: If middleware is also configured, the transport will be wrapped.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) {
		if transport != nil {
			c.base.Transport = transport
		}
	}
}

// WithMiddleware adds middleware to the client.
// Middleware is applied in reverse order to create the chain:
// first middleware in the slice becomes the outermost layer.
//
// Example:
//
//	WithMiddleware(A, B, C) creates chain: A(B(C(transport)))
//	Request flow: A -> B -> C -> transport -> server
//	Response flow: server -> transport -> C -> B -> A
//
// Outer concerns such as rerouting and logging come first, followed by
// inner ones such as cookies and rate limiting.
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		for _, m := range middleware {
			if m != nil {
				c.middleware = append(c.middleware, m)
			}
		}
	}
}
