package middleware

import (
	"context"
	"maps"
	"net/http"
	"net/url"
	"strings"

	"github.com/lexfrei/go-fetch/observability"
)

// Credentials modes, mirroring the fetch credentials policy.
const (
	CredentialsOmit       = "omit"
	CredentialsSameOrigin = "same-origin"
	CredentialsInclude    = "include"
)

type credentialsKey struct{}

// WithCredentials returns a context carrying a per-request credentials mode.
func WithCredentials(ctx context.Context, mode string) context.Context {
	return context.WithValue(ctx, credentialsKey{}, mode)
}

// CredentialsFromContext returns the mode stored by WithCredentials.
func CredentialsFromContext(ctx context.Context) (string, bool) {
	mode, ok := ctx.Value(credentialsKey{}).(string)

	return mode, ok && mode != ""
}

// CredentialsConfig configures the credentials middleware.
type CredentialsConfig struct {
	Jar     http.CookieJar
	Origin  *url.URL // same-origin reference; nil means nothing is same-origin
	Default string   // used when the request context carries no mode
	Logger  observability.Logger
}

// Credentials returns a middleware that attaches cookies from Jar and stores
// cookies from responses according to the request's credentials mode.
// Without a jar it is a pass-through.
func Credentials(cfg CredentialsConfig) func(http.RoundTripper) http.RoundTripper {
	if cfg.Logger == nil {
		cfg.Logger = observability.NoopLogger()
	}
	if cfg.Default == "" {
		cfg.Default = CredentialsSameOrigin
	}

	return func(next http.RoundTripper) http.RoundTripper {
		if cfg.Jar == nil {
			return next
		}

		return &credentialsTransport{next: next, cfg: cfg}
	}
}

type credentialsTransport struct {
	next http.RoundTripper
	cfg  CredentialsConfig
}

func (t *credentialsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	mode, ok := CredentialsFromContext(req.Context())
	if !ok {
		mode = t.cfg.Default
	}

	if !t.allowed(mode, req.URL) {
		//nolint:wrapcheck // Middleware passes through errors from next handler in chain
		return t.next.RoundTrip(req)
	}

	if cookies := t.cfg.Jar.Cookies(req.URL); len(cookies) > 0 {
		req = cloneRequest(req)
		for _, c := range cookies {
			req.AddCookie(c)
		}

		t.cfg.Logger.Debug("attached cookies",
			observability.Field{Key: "count", Value: len(cookies)},
			observability.Field{Key: "host", Value: req.URL.Host},
		)
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		//nolint:wrapcheck // Middleware passes through errors from next handler in chain
		return nil, err
	}

	if cookies := resp.Cookies(); len(cookies) > 0 {
		t.cfg.Jar.SetCookies(req.URL, cookies)
	}

	return resp, nil
}

func (t *credentialsTransport) allowed(mode string, target *url.URL) bool {
	switch mode {
	case CredentialsInclude:
		return true
	case CredentialsSameOrigin:
		return sameOrigin(t.cfg.Origin, target)
	default:
		return false
	}
}

func sameOrigin(origin, target *url.URL) bool {
	if origin == nil || target == nil {
		return false
	}

	return strings.EqualFold(origin.Scheme, target.Scheme) && strings.EqualFold(origin.Host, target.Host)
}

// cloneRequest creates a shallow copy of the request with a cloned header map.
func cloneRequest(req *http.Request) *http.Request {
	r := new(http.Request)
	*r = *req
	r.Header = make(http.Header, len(req.Header))
	maps.Copy(r.Header, req.Header)
	return r
}
