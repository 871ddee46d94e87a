package fetch_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fetch "github.com/lexfrei/go-fetch"
	"github.com/lexfrei/go-fetch/internal/testutil"
)

// recordingSaver captures Save calls.
type recordingSaver struct {
	mu    sync.Mutex
	calls []savedFile
}

type savedFile struct {
	filename string
	blob     fetch.Blob
}

func (s *recordingSaver) Save(_ context.Context, blob fetch.Blob, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, savedFile{filename: filename, blob: blob})

	return nil
}

func TestContentNegotiation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		status      int
		body        string
		want        any
	}{
		{name: "text", contentType: "text/plain", status: http.StatusOK, body: "hello", want: "hello"},
		{name: "html", contentType: "text/html; charset=utf-8", status: http.StatusOK, body: "<p>", want: "<p>"},
		{
			name:        "json",
			contentType: "application/json",
			status:      http.StatusOK,
			body:        `{"id":42,"tags":["a"]}`,
			want:        map[string]any{"id": float64(42), "tags": []any{"a"}},
		},
		{
			name:        "blob",
			contentType: "application/octet-stream",
			status:      http.StatusOK,
			body:        "\x00\x01",
			want:        fetch.Blob{Data: []byte{0, 1}, Type: "application/octet-stream"},
		},
		{
			name:        "sniffed blob",
			contentType: "",
			status:      http.StatusCreated,
			body:        "%PDF-1.4 minimal",
			want:        fetch.Blob{Data: []byte("%PDF-1.4 minimal"), Type: "application/pdf"},
		},
		{name: "no content", contentType: "application/json", status: http.StatusNoContent, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := testutil.NewMockServerWithHandler(t, func(w http.ResponseWriter, _ *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				} else {
					w.Header()["Content-Type"] = nil
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			t.Cleanup(server.Close)

			client, _ := newTestClient(t, server, fetch.Config{})

			resp, err := client.Get(t.Context(), "/", nil)
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.want, resp.Data)
		})
	}
}

func TestDecodedBodyIsReplayable(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServer(t, "/", "text/plain", "again", http.StatusOK)
	t.Cleanup(server.Close)

	client, _ := newTestClient(t, server, fetch.Config{})

	resp, err := client.Get(t.Context(), "/", nil)
	require.NoError(t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "again", string(data))
}

func TestRawBypass(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServer(t, "/", "application/json", `{"error":"x"}`, http.StatusInternalServerError)
	t.Cleanup(server.Close)

	saver := &recordingSaver{}
	client, logger := newTestClient(t, server, fetch.Config{Saver: saver})

	resp, err := client.Get(t.Context(), "/", &fetch.RequestConfig{Raw: true, DownloadAsFile: true})
	require.NoError(t, err, "raw responses are returned whatever the status")
	defer resp.Body.Close()

	assert.Nil(t, resp.Data)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, saver.calls)
	assert.Empty(t, logger.Messages("error"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"x"}`, string(data))
}

func TestDownloadAsFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		disposition  string
		wantFilename string
	}{
		{name: "quoted filename", disposition: `attachment; filename="file.csv"`, wantFilename: "file.csv"},
		{name: "extended filename", disposition: `attachment; filename*=UTF-8''na%C3%AFve.csv`, wantFilename: "naïve.csv"},
		{name: "no disposition", disposition: "", wantFilename: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := testutil.NewMockServerWithHandler(t, func(w http.ResponseWriter, _ *http.Request) {
				if tt.disposition != "" {
					w.Header().Set("Content-Disposition", tt.disposition)
				}
				w.Header().Set("Content-Type", "text/csv")
				_, _ = w.Write([]byte("a,b\n1,2\n"))
			})
			t.Cleanup(server.Close)

			saver := &recordingSaver{}
			client, _ := newTestClient(t, server, fetch.Config{Saver: saver})

			resp, err := client.Get(t.Context(), "/export", &fetch.RequestConfig{DownloadAsFile: true})
			require.NoError(t, err)

			assert.Nil(t, resp.Data)
			require.Len(t, saver.calls, 1)
			assert.Equal(t, tt.wantFilename, saver.calls[0].filename)
			assert.Equal(t, fetch.Blob{Data: []byte("a,b\n1,2\n"), Type: "text/csv"}, saver.calls[0].blob)
		})
	}
}

func TestDownloadAsFileByMethod(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServer(t, "/export", "text/plain", "body", http.StatusOK)
	t.Cleanup(server.Close)

	saver := &recordingSaver{}
	client, _ := newTestClient(t, server, fetch.Config{Saver: saver})

	download := &fetch.RequestConfig{DownloadAsFile: true}

	resp, err := client.Post(t.Context(), "/export", map[string]int{"n": 1}, download)
	require.NoError(t, err)
	assert.Nil(t, resp.Data)

	resp, err = client.PostMultipart(t.Context(), "/export", fetch.NewForm().AddField("k", "v"), download)
	require.NoError(t, err)
	assert.Nil(t, resp.Data)

	// Other verbs ignore the flag and decode as usual.
	resp, err = client.Put(t.Context(), "/export", nil, download)
	require.NoError(t, err)
	assert.Equal(t, "body", resp.Data)

	resp, err = client.PatchMultipart(t.Context(), "/export", fetch.NewForm(), download)
	require.NoError(t, err)
	assert.Equal(t, "body", resp.Data)

	assert.Len(t, saver.calls, 2)
}

func TestDownloadSaverError(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServer(t, "/", "text/plain", "body", http.StatusOK)
	t.Cleanup(server.Close)

	diskFull := errors.New("disk full")

	client, _ := newTestClient(t, server, fetch.Config{
		Saver: fetch.SaverFunc(func(context.Context, fetch.Blob, string) error { return diskFull }),
	})

	_, err := client.Get(t.Context(), "/", &fetch.RequestConfig{DownloadAsFile: true})
	require.ErrorIs(t, err, diskFull)
}

func TestOutputTransform(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServer(t, "/", "application/json", `{"id":7}`, http.StatusOK)
	t.Cleanup(server.Close)

	client, _ := newTestClient(t, server, fetch.Config{})

	resp, err := client.Get(t.Context(), "/", &fetch.RequestConfig{
		OutputTransform: func(r *http.Response) (any, error) {
			data, err := io.ReadAll(r.Body)
			return len(data), err
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 8, resp.Data)

	resp, err = client.Get(t.Context(), "/", &fetch.RequestConfig{
		OutputTransform: func(*http.Response) (any, error) { return nil, nil },
	})
	require.NoError(t, err)
	assert.Nil(t, resp.Data)

	type item struct {
		ID int `json:"id"`
	}

	resp, err = client.Get(t.Context(), "/", &fetch.RequestConfig{OutputTransform: fetch.JSONInto[item]()})
	require.NoError(t, err)
	assert.Equal(t, &item{ID: 7}, resp.Data)
}

func TestDecodeErrorsPropagate(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServer(t, "/", "application/json", `{"broken"`, http.StatusOK)
	t.Cleanup(server.Close)

	metrics := testutil.NewRecordingMetrics()
	client, logger := newTestClient(t, server, fetch.Config{Metrics: metrics})

	_, err := client.Get(t.Context(), "/", nil)
	require.Error(t, err)

	boom := errors.New("transform exploded")
	_, err = client.Get(t.Context(), "/", &fetch.RequestConfig{
		OutputTransform: func(*http.Response) (any, error) { return nil, boom },
	})
	require.ErrorIs(t, err, boom)

	assert.Len(t, logger.Messages("error"), 2)
	assert.Equal(t, []string{"decode:DecodeError", "decode:DecodeError"}, metrics.Errors())
}

func TestHTTPError(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServerWithHandler(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"maintenance"}`))
	})
	t.Cleanup(server.Close)

	client, logger := newTestClient(t, server, fetch.Config{})

	resp, err := client.Post(t.Context(), "/jobs", nil, nil)
	require.Error(t, err)
	assert.Nil(t, resp)

	httpErr, ok := fetch.AsHTTPError(err)
	require.True(t, ok)

	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, http.MethodPost, httpErr.Method)
	assert.Contains(t, httpErr.Error(), "503 Service Unavailable")
	assert.True(t, httpErr.Retryable())
	assert.Equal(t, int64(30), int64(httpErr.RetryAfter().Seconds()))

	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, httpErr.JSON(&body))
	assert.Equal(t, "maintenance", body.Message)

	replay, err := io.ReadAll(httpErr.Response.Body)
	require.NoError(t, err)
	assert.Equal(t, httpErr.Body, replay)

	assert.Equal(t, []string{"httpclient - " + httpErr.Error()}, logger.Messages("error"))
}

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServer(t, "/", "text/plain", "gone", http.StatusGone)
	t.Cleanup(server.Close)

	t.Run("observes once and keeps error", func(t *testing.T) {
		t.Parallel()

		var seen []error

		client, logger := newTestClient(t, server, fetch.Config{
			ErrorHandler: func(err error) error {
				seen = append(seen, err)
				return nil
			},
		})

		_, err := client.Get(t.Context(), "/", nil)
		require.Error(t, err)

		require.Len(t, seen, 1)
		assert.Same(t, seen[0], err)
		assert.Empty(t, logger.Messages("error"), "custom handler replaces the default log line")
	})

	t.Run("may replace error", func(t *testing.T) {
		t.Parallel()

		replacement := errors.New("domain error")

		client, _ := newTestClient(t, server, fetch.Config{
			ErrorHandler: func(error) error { return replacement },
		})

		_, err := client.Get(t.Context(), "/", nil)
		require.ErrorIs(t, err, replacement)
	})

	t.Run("default handler logs and keeps error", func(t *testing.T) {
		t.Parallel()

		client, logger := newTestClient(t, server, fetch.Config{})

		_, err := client.Get(t.Context(), "/", nil)

		httpErr, ok := fetch.AsHTTPError(err)
		require.True(t, ok, "the original *HTTPError is returned")
		assert.Equal(t, http.StatusGone, httpErr.StatusCode)
		assert.Equal(t, []string{"httpclient - " + err.Error()}, logger.Messages("error"))
	})
}

func TestTransportErrorReturnedAsIs(t *testing.T) {
	t.Parallel()

	dialErr := errors.New("connection refused")

	client, err := fetch.NewWithConfig(&fetch.Config{
		Origin:    "http://backend.invalid",
		Logger:    testutil.NewRecordingLogger(),
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) { return nil, dialErr }),
	})
	require.NoError(t, err)

	_, err = client.Get(t.Context(), "/", nil)
	require.ErrorIs(t, err, dialErr)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
