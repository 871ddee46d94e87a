package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/gabriel-vasile/mimetype"

	"github.com/lexfrei/go-fetch/internal/response"
	"github.com/lexfrei/go-fetch/observability"
)

// Response is the transport response with the decoded body attached.
//
// Data is nil when nothing was decoded: 204 responses, file downloads, raw
// calls, and output transforms that return nil. Otherwise it holds a string
// (text/*), the JSON value (application/json), a Blob, or whatever the
// output transform returned. After the default decoding Body replays the
// bytes read.
type Response struct {
	*http.Response

	Data any
}

// JSONInto returns an OutputTransform decoding JSON bodies into a new T.
//
// Example:
//
//	resp, err := client.Get(ctx, "/users/1", &fetch.RequestConfig{
//	    OutputTransform: fetch.JSONInto[User](),
//	})
//	user := resp.Data.(*User)
func JSONInto[T any]() OutputTransform {
	return func(resp *http.Response) (any, error) {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read response body")
		}

		v := new(T)
		if err := sonic.Unmarshal(data, v); err != nil {
			return nil, errors.Wrap(err, "failed to decode JSON response")
		}

		return v, nil
	}
}

// process runs the response pipeline for a completed round trip.
func (c *Client) process(ctx context.Context, resp *http.Response, cfg *RequestConfig, download bool) (*Response, error) {
	if cfg.Raw {
		return &Response{Response: resp}, nil
	}

	if !isSuccess(resp) {
		return nil, c.normalize(newHTTPError(resp))
	}

	if resp.StatusCode == http.StatusNoContent {
		drain(resp)
		return &Response{Response: resp}, nil
	}

	if download {
		if err := c.download(ctx, resp); err != nil {
			return nil, c.normalize(err)
		}

		return &Response{Response: resp}, nil
	}

	data, err := decode(resp, cfg.OutputTransform)
	if err != nil {
		c.metrics.RecordError("decode", "DecodeError")
		return nil, c.normalize(err)
	}

	return &Response{Response: resp, Data: data}, nil
}

// download saves the body through the client's Saver.
func (c *Client) download(ctx context.Context, resp *http.Response) error {
	data, err := readBody(resp)
	if err != nil {
		return err
	}

	blob := newBlob(data, resp.Header.Get("Content-Type"))
	filename := response.Filename(resp.Header.Get("Content-Disposition"))

	c.logger.Debug("saving download",
		observability.Field{Key: "filename", Value: filename},
		observability.Field{Key: "size", Value: len(data)},
		observability.Field{Key: "type", Value: blob.Type},
	)

	if err := c.saver.Save(ctx, blob, filename); err != nil {
		return errors.Wrap(err, "failed to save download")
	}

	return nil
}

// decode materializes the body by output transform or Content-Type.
func decode(resp *http.Response, transform OutputTransform) (any, error) {
	if transform != nil {
		defer drain(resp)

		data, err := transform(resp)
		if err != nil {
			return nil, errors.Wrap(err, "output transform failed")
		}

		return data, nil
	}

	data, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")

	switch response.Classify(contentType) {
	case response.Text:
		return string(data), nil
	case response.JSON:
		var v any
		if err := sonic.Unmarshal(data, &v); err != nil {
			return nil, errors.Wrap(err, "failed to decode JSON response")
		}

		return v, nil
	default:
		return newBlob(data, contentType), nil
	}
}

// readBody reads and closes the body, leaving a replayable copy in its place.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	resp.Body = io.NopCloser(bytes.NewReader(data))

	return data, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// Blob is a binary response body.
type Blob struct {
	Data []byte
	// Type is the media type from Content-Type, or sniffed from Data.
	Type string
}

func newBlob(data []byte, contentType string) Blob {
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}

	return Blob{Data: data, Type: contentType}
}

// Size returns the length of the blob in bytes.
func (b Blob) Size() int { return len(b.Data) }

// Reader returns a reader over the blob's bytes.
func (b Blob) Reader() io.Reader { return bytes.NewReader(b.Data) }
