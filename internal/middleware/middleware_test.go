package middleware_test

import (
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfrei/go-fetch/internal/middleware"
	"github.com/lexfrei/go-fetch/internal/testutil"
	"github.com/lexfrei/go-fetch/observability"
	"github.com/lexfrei/go-fetch/reroute"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestObservability(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	logger := testutil.NewRecordingLogger()
	metrics := testutil.NewRecordingMetrics()

	transport := middleware.Observability(logger, metrics)(http.DefaultTransport)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet,
		server.URL+"/api/users/550e8400-e29b-41d4-a716-446655440000", http.NoBody)
	require.NoError(t, err)

	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, []testutil.RequestRecord{
		{Method: http.MethodGet, Path: "/api/users/:id", StatusCode: http.StatusNotFound},
	}, metrics.Requests())
	assert.Equal(t, []string{"http request started", "http request completed"}, logger.Messages("debug"))
}

func TestObservabilityLabelsReroutedPath(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	logger := testutil.NewRecordingLogger()
	metrics := testutil.NewRecordingMetrics()

	table := reroute.Compile([]reroute.Rule{{From: `^/v1/orders/(\d+)$`, To: "/v2/orders/$1"}})
	transport := reroute.Middleware(table, nil, nil)(middleware.Observability(logger, metrics)(http.DefaultTransport))

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL+"/v1/orders/1234567", http.NoBody)
	require.NoError(t, err)

	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, []testutil.RequestRecord{
		{Method: http.MethodGet, Path: "/v2/orders/:id", StatusCode: http.StatusOK},
	}, metrics.Requests())

	from, ok := logger.Field("http request completed", "rerouted_from")
	require.True(t, ok)
	assert.Equal(t, "/v1/orders/1234567", from)

	plain, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL+"/health", http.NoBody)
	require.NoError(t, err)

	resp2, err := transport.RoundTrip(plain)
	require.NoError(t, err)
	resp2.Body.Close()

	entries := logger.Entries()
	last := entries[len(entries)-1]
	for _, f := range last.Fields {
		assert.NotEqual(t, "rerouted_from", f.Key)
	}
}

func TestObservabilityTransportError(t *testing.T) {
	t.Parallel()

	boom := errors.New("dial failed")
	metrics := testutil.NewRecordingMetrics()

	transport := middleware.Observability(nil, metrics)(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, boom
	}))

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "http://example.invalid/", http.NoBody)
	require.NoError(t, err)

	resp, err := transport.RoundTrip(req)
	if resp != nil {
		resp.Body.Close()
	}

	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"http_request:NetworkError"}, metrics.Errors())
}

func TestObservabilityWithNilParams(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := middleware.Observability(observability.NoopLogger(), nil)(http.DefaultTransport)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)

	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
}

func cookieServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()

	var seen []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Cookie"))
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	return server, &seen
}

func TestCredentialsModes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mode       string
		sameOrigin bool
		wantCookie bool
	}{
		{name: "include cross origin", mode: middleware.CredentialsInclude, wantCookie: true},
		{name: "same-origin matching", mode: middleware.CredentialsSameOrigin, sameOrigin: true, wantCookie: true},
		{name: "same-origin foreign", mode: middleware.CredentialsSameOrigin},
		{name: "omit", mode: middleware.CredentialsOmit, sameOrigin: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server, seen := cookieServer(t)

			jar, err := cookiejar.New(nil)
			require.NoError(t, err)

			origin, err := url.Parse("http://elsewhere.example")
			require.NoError(t, err)

			if tt.sameOrigin {
				origin, err = url.Parse(server.URL)
				require.NoError(t, err)
			}

			transport := middleware.Credentials(middleware.CredentialsConfig{
				Jar:    jar,
				Origin: origin,
			})(http.DefaultTransport)

			for range 2 {
				ctx := middleware.WithCredentials(t.Context(), tt.mode)
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, http.NoBody)
				require.NoError(t, err)

				resp, err := transport.RoundTrip(req)
				require.NoError(t, err)
				resp.Body.Close()
			}

			require.Len(t, *seen, 2)
			assert.Empty(t, (*seen)[0], "first request has nothing to send")

			if tt.wantCookie {
				assert.Equal(t, "session=abc", (*seen)[1])
			} else {
				assert.Empty(t, (*seen)[1])
			}
		})
	}
}

func TestCredentialsDefaultMode(t *testing.T) {
	t.Parallel()

	server, seen := cookieServer(t)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	transport := middleware.Credentials(middleware.CredentialsConfig{
		Jar:     jar,
		Default: middleware.CredentialsInclude,
	})(http.DefaultTransport)

	for range 2 {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, http.NoBody)
		require.NoError(t, err)

		resp, err := transport.RoundTrip(req)
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.Equal(t, "session=abc", (*seen)[1])
}

func TestCredentialsWithoutJarIsPassThrough(t *testing.T) {
	t.Parallel()

	next := roundTripFunc(func(*http.Request) (*http.Response, error) { return nil, nil })
	transport := middleware.Credentials(middleware.CredentialsConfig{})(next)

	_, isFunc := transport.(roundTripFunc)
	assert.True(t, isFunc)
}
