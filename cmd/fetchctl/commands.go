package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"

	fetch "github.com/lexfrei/go-fetch"
)

// RequestFlags are shared by every command that sends a request.
type RequestFlags struct {
	Param       []string `kong:"short='p',sep='none',help='Query parameter as key=value (repeatable, order kept).'"`
	Header      []string `kong:"short='H',sep='none',help='Request header as key=value (repeatable).'"`
	Credentials string   `kong:"help='Credentials mode: omit|same-origin|include (overrides config).'"`
	Raw         bool     `kong:"help='Print the raw response body without status check or decoding.'"`
}

func (f *RequestFlags) requestConfig() (*fetch.RequestConfig, error) {
	params, err := parsePairs(f.Param)
	if err != nil {
		return nil, errors.Wrap(err, "--param")
	}

	headers, err := parseHeaders(f.Header)
	if err != nil {
		return nil, errors.Wrap(err, "--header")
	}

	cfg := &fetch.RequestConfig{
		Headers:     headers,
		Credentials: fetch.Credentials(f.Credentials),
		Raw:         f.Raw,
	}

	if len(params) > 0 {
		cfg.Params = params
	}

	return cfg, nil
}

// RouteCmd prints where a request would be sent.
type RouteCmd struct {
	Method string `kong:"arg,help='HTTP method.'"`
	Path   string `kong:"arg,help='Request path, without base path.'"`
}

func (c *RouteCmd) Run(a *app) error {
	path := a.cfg.Client.BasePath + c.Path
	routed := a.client.Route(strings.ToUpper(c.Method), path)

	if routed == path {
		a.logger.Debug("no rerouting rule matched", zap.String("path", path))
	}

	_, err := fmt.Fprintln(a.out, routed)

	return err
}

// GetCmd sends a GET request.
type GetCmd struct {
	RequestFlags `embed:""`

	Path     string `kong:"arg,help='Request path.'"`
	Download bool   `kong:"short='d',help='Save the body to the download directory.'"`
}

func (c *GetCmd) Run(ctx context.Context, a *app) error {
	cfg, err := c.requestConfig()
	if err != nil {
		return err
	}

	cfg.DownloadAsFile = c.Download

	resp, err := a.client.Get(ctx, c.Path, cfg)
	if err != nil {
		return err
	}

	return a.print(resp, c.Raw)
}

// SendCmd sends a JSON body with POST, PUT, PATCH or DELETE, picked from the
// command name.
type SendCmd struct {
	RequestFlags `embed:""`

	Path     string `kong:"arg,help='Request path.'"`
	Data     string `kong:"help='JSON request body; @file reads it from a file.'"`
	Download bool   `kong:"short='d',help='Save the body to the download directory (POST only).'"`
}

func (c *SendCmd) Run(ctx context.Context, kctx *kong.Context, a *app) error {
	cfg, err := c.requestConfig()
	if err != nil {
		return err
	}

	body, err := readData(c.Data)
	if err != nil {
		return err
	}

	method := strings.ToUpper(kctx.Selected().Name)

	var resp *fetch.Response

	switch method {
	case http.MethodPost:
		cfg.DownloadAsFile = c.Download
		resp, err = a.client.Post(ctx, c.Path, body, cfg)
	case http.MethodPut:
		resp, err = a.client.Put(ctx, c.Path, body, cfg)
	case http.MethodPatch:
		resp, err = a.client.Patch(ctx, c.Path, body, cfg)
	case http.MethodDelete:
		resp, err = a.client.Delete(ctx, c.Path, body, cfg)
	default:
		return errors.Newf("unsupported method %q", method)
	}

	if err != nil {
		return err
	}

	return a.print(resp, c.Raw)
}

// UploadCmd sends a multipart form.
type UploadCmd struct {
	RequestFlags `embed:""`

	Path     string   `kong:"arg,help='Request path.'"`
	Field    []string `kong:"short='f',sep='none',help='Form field as key=value (repeatable).'"`
	File     []string `kong:"short='F',sep='none',help='File part as field=path (repeatable).'"`
	Patch    bool     `kong:"help='Use PATCH instead of POST.'"`
	Download bool     `kong:"short='d',help='Save the body to the download directory (POST only).'"`
}

func (c *UploadCmd) Run(ctx context.Context, a *app) error {
	cfg, err := c.requestConfig()
	if err != nil {
		return err
	}

	form, err := buildForm(c.Field, c.File)
	if err != nil {
		return err
	}

	var resp *fetch.Response

	if c.Patch {
		resp, err = a.client.PatchMultipart(ctx, c.Path, form, cfg)
	} else {
		cfg.DownloadAsFile = c.Download
		resp, err = a.client.PostMultipart(ctx, c.Path, form, cfg)
	}

	if err != nil {
		return err
	}

	return a.print(resp, c.Raw)
}

// save writes a download into the configured directory and remembers where.
func (a *app) save(ctx context.Context, blob fetch.Blob, filename string) error {
	path := fetch.DirSaver{Dir: a.cfg.Client.DownloadDir}.Path(blob, filename)

	err := fetch.DirSaver{Dir: filepath.Dir(path)}.Save(ctx, blob, filepath.Base(path))
	if err != nil {
		return err
	}

	a.saved = append(a.saved, path)
	a.logger.Info("file saved", zap.String("path", path), zap.Int("size", blob.Size()))

	return nil
}

// print writes the response to the output: saved paths for downloads, the body
// for raw calls, and the decoded data otherwise.
func (a *app) print(resp *fetch.Response, raw bool) error {
	if raw {
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			a.logger.Warn("non-success status", zap.Int("status", resp.StatusCode))
		}

		_, err := io.Copy(a.out, resp.Body)

		return err
	}

	if len(a.saved) > 0 {
		for _, path := range a.saved {
			fmt.Fprintln(a.out, path)
		}

		return nil
	}

	return writeData(a.out, resp.Data)
}

func writeData(w io.Writer, data any) error {
	switch v := data.(type) {
	case nil:
		return nil
	case string:
		_, err := io.WriteString(w, v)
		return err
	case fetch.Blob:
		_, err := w.Write(v.Data)
		return err
	default:
		out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
		if err != nil {
			return errors.Wrap(err, "encode output")
		}

		_, err = fmt.Fprintln(w, string(out))

		return err
	}
}

// readData decodes --data. An empty value means no body.
func readData(data string) (any, error) {
	if data == "" {
		return nil, nil
	}

	raw := []byte(data)

	if name, ok := strings.CutPrefix(data, "@"); ok {
		content, err := os.ReadFile(name)
		if err != nil {
			return nil, errors.Wrap(err, "read --data file")
		}

		raw = content
	}

	var body any
	if err := sonic.Unmarshal(raw, &body); err != nil {
		return nil, errors.Wrap(err, "--data is not valid JSON")
	}

	return body, nil
}

func buildForm(fields, files []string) (*fetch.Form, error) {
	form := fetch.NewForm()

	pairs, err := parsePairs(fields)
	if err != nil {
		return nil, errors.Wrap(err, "--field")
	}

	for _, p := range pairs {
		form.AddField(p[0], p[1])
	}

	filePairs, err := parsePairs(files)
	if err != nil {
		return nil, errors.Wrap(err, "--file")
	}

	for _, p := range filePairs {
		content, err := os.ReadFile(p[1])
		if err != nil {
			return nil, errors.Wrapf(err, "read --file %s", p[0])
		}

		var file openapi_types.File
		file.InitFromBytes(content, filepath.Base(p[1]))

		form.AddOpenAPIFile(p[0], file)
	}

	return form, nil
}

// parsePairs splits key=value arguments, keeping their order.
func parsePairs(args []string) ([][2]string, error) {
	out := make([][2]string, 0, len(args))

	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, errors.Newf("expected key=value, got %q", arg)
		}

		out = append(out, [2]string{key, value})
	}

	return out, nil
}

func parseHeaders(args []string) (http.Header, error) {
	pairs, err := parsePairs(args)
	if err != nil {
		return nil, err
	}

	if len(pairs) == 0 {
		return nil, nil
	}

	headers := make(http.Header, len(pairs))
	for _, p := range pairs {
		headers.Add(p[0], p[1])
	}

	return headers, nil
}
