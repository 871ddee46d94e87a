package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"

	"github.com/lexfrei/go-fetch/internal/middleware"
	"github.com/lexfrei/go-fetch/internal/query"
)

// ErrUnsupportedParams is returned when RequestConfig.Params has an unknown shape.
var ErrUnsupportedParams = query.ErrUnsupported

// InputTransform encodes a request payload. Returning a nil reader falls
// back to the default JSON encoding.
type InputTransform func(body any) (io.Reader, error)

// OutputTransform decodes a successful response. A nil result leaves
// Response.Data unset. The body is closed by the client afterwards.
type OutputTransform func(resp *http.Response) (any, error)

// RequestConfig holds per-call options. It is read once and never retained.
type RequestConfig struct {
	// Params replaces the query string. See Encode in internal/query for the
	// accepted shapes: string, url.Values, map[string]string, map[string]any,
	// a struct, or ordered [][2]string pairs.
	Params any

	// Headers override instance-level headers key by key.
	Headers http.Header

	// Credentials overrides the client's default mode.
	Credentials Credentials

	// Raw returns the transport response untouched: no status check, no
	// decoding. The caller must close the body.
	Raw bool

	// DownloadAsFile hands the body to the client's Saver instead of decoding
	// it. Honored by Get, Post and PostMultipart.
	DownloadAsFile bool

	InputTransform  InputTransform
	OutputTransform OutputTransform
}

// FetchConfig configures the low-level Fetch call.
type FetchConfig struct {
	// Method defaults to GET.
	Method      string
	Body        io.Reader
	Params      any
	Headers     http.Header
	Credentials Credentials
}

var defaultHeaders = http.Header{"Content-Type": {"application/json"}}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, cfg *RequestConfig) (*Response, error) {
	return c.send(ctx, call{method: http.MethodGet, path: path, cfg: cfg, download: true})
}

// Post issues a POST request with body encoded by the input transform.
func (c *Client) Post(ctx context.Context, path string, body any, cfg *RequestConfig) (*Response, error) {
	return c.sendWithBody(ctx, http.MethodPost, path, body, cfg)
}

// Put issues a PUT request.
func (c *Client) Put(ctx context.Context, path string, body any, cfg *RequestConfig) (*Response, error) {
	return c.sendWithBody(ctx, http.MethodPut, path, body, cfg)
}

// Patch issues a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body any, cfg *RequestConfig) (*Response, error) {
	return c.sendWithBody(ctx, http.MethodPatch, path, body, cfg)
}

// Delete issues a DELETE request. A nil body sends no payload.
func (c *Client) Delete(ctx context.Context, path string, body any, cfg *RequestConfig) (*Response, error) {
	return c.sendWithBody(ctx, http.MethodDelete, path, body, cfg)
}

// PostMultipart posts form as multipart/form-data. The JSON Content-Type
// default is not applied.
func (c *Client) PostMultipart(ctx context.Context, path string, form *Form, cfg *RequestConfig) (*Response, error) {
	return c.sendMultipart(ctx, http.MethodPost, path, form, cfg, true)
}

// PatchMultipart patches with a multipart/form-data body.
func (c *Client) PatchMultipart(ctx context.Context, path string, form *Form, cfg *RequestConfig) (*Response, error) {
	return c.sendMultipart(ctx, http.MethodPatch, path, form, cfg, false)
}

// Fetch sends a request and returns the transport response without decoding.
// Non-2xx responses are returned as *HTTPError. On success the caller must
// close the body.
func (c *Client) Fetch(ctx context.Context, path string, cfg *FetchConfig) (*http.Response, error) {
	if cfg == nil {
		cfg = &FetchConfig{}
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodGet
	}

	st := c.state.Load()

	req, err := c.newRequest(ctx, st, method, path, cfg.Params, cfg.Body,
		layerHeaders(defaultHeaders, st.headers, cfg.Headers), cfg.Credentials)
	if err != nil {
		return nil, c.normalize(err)
	}

	resp, err := st.http.Do(req)
	if err != nil {
		return nil, c.normalize(err)
	}

	if !isSuccess(resp) {
		return nil, c.normalize(newHTTPError(resp))
	}

	return resp, nil
}

// call describes one builder invocation.
type call struct {
	method    string
	path      string
	body      io.Reader
	multipart string // boundary Content-Type, empty for JSON calls
	cfg       *RequestConfig
	download  bool // DownloadAsFile is honored
}

func (c *Client) sendWithBody(ctx context.Context, method, path string, body any, cfg *RequestConfig) (*Response, error) {
	var transform InputTransform
	if cfg != nil {
		transform = cfg.InputTransform
	}

	reader, err := encodeBody(body, transform)
	if err != nil {
		return nil, c.normalize(err)
	}

	return c.send(ctx, call{
		method:   method,
		path:     path,
		body:     reader,
		cfg:      cfg,
		download: method == http.MethodPost,
	})
}

func (c *Client) sendMultipart(
	ctx context.Context,
	method, path string,
	form *Form,
	cfg *RequestConfig,
	download bool,
) (*Response, error) {
	body, contentType, err := form.encode()
	if err != nil {
		return nil, c.normalize(err)
	}

	return c.send(ctx, call{
		method:    method,
		path:      path,
		body:      body,
		multipart: contentType,
		cfg:       cfg,
		download:  download,
	})
}

// encodeBody applies transform, falling back to JSON when it is nil or
// yields no reader.
func encodeBody(body any, transform InputTransform) (io.Reader, error) {
	if transform != nil {
		r, err := transform(body)
		if err != nil {
			return nil, errors.Wrap(err, "input transform failed")
		}

		if r != nil {
			return r, nil
		}
	}

	if body == nil {
		return http.NoBody, nil
	}

	data, err := sonic.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request body")
	}

	return bytes.NewReader(data), nil
}

func (c *Client) send(ctx context.Context, cl call) (*Response, error) {
	cfg := cl.cfg
	if cfg == nil {
		cfg = &RequestConfig{}
	}

	st := c.state.Load()

	var headers http.Header
	if cl.multipart != "" {
		headers = layerHeaders(st.headers, cfg.Headers)
		if headers.Get("Content-Type") == "" {
			headers.Set("Content-Type", cl.multipart)
		}
	} else {
		headers = layerHeaders(defaultHeaders, st.headers, cfg.Headers)
	}

	req, err := c.newRequest(ctx, st, cl.method, cl.path, cfg.Params, cl.body, headers, cfg.Credentials)
	if err != nil {
		return nil, c.normalize(err)
	}

	resp, err := st.http.Do(req)
	if err != nil {
		return nil, c.normalize(err)
	}

	return c.process(ctx, resp, cfg, cl.download && cfg.DownloadAsFile)
}

// newRequest resolves the URL and builds the outbound request.
func (c *Client) newRequest(
	ctx context.Context,
	st *state,
	method, path string,
	params any,
	body io.Reader,
	headers http.Header,
	credentials Credentials,
) (*http.Request, error) {
	if err := credentials.Validate(); err != nil {
		return nil, err
	}

	target, err := resolveURL(st, path, params)
	if err != nil {
		return nil, err
	}

	ctx = middleware.WithCredentials(ctx, string(resolveCredentials(credentials, st.credentials)))

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	req.Header = headers

	return req, nil
}

// resolveURL joins base path and path against the origin. Params, when
// present, replace any query already in path.
func resolveURL(st *state, path string, params any) (*url.URL, error) {
	ref, err := url.Parse(st.basePath + path)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid request path %q", st.basePath+path)
	}

	target := st.origin.ResolveReference(ref)

	if params != nil {
		encoded, err := query.Encode(params)
		if err != nil {
			return nil, err
		}

		target.RawQuery = encoded
	}

	return target, nil
}

func isSuccess(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}
