package fetch

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gabriel-vasile/mimetype"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// ErrNilForm is returned by the multipart builders when form is nil.
var ErrNilForm = errors.New("multipart form is nil")

// Form is a multipart/form-data payload. Parts are written in the order
// they were added.
type Form struct {
	parts []formPart
	err   error
}

type formPart struct {
	name     string
	filename string
	value    string
	file     io.Reader
	isFile   bool
}

// NewForm returns an empty form.
func NewForm() *Form {
	return &Form{}
}

// AddField appends a plain field.
func (f *Form) AddField(name, value string) *Form {
	f.parts = append(f.parts, formPart{name: name, value: value})
	return f
}

// AddFile appends a file part read from r when the form is sent. The part's
// Content-Type is detected from its content.
func (f *Form) AddFile(field, filename string, r io.Reader) *Form {
	f.parts = append(f.parts, formPart{name: field, filename: filename, file: r, isFile: true})
	return f
}

// AddOpenAPIFile appends a file held in an oapi-codegen runtime File, as used
// by generated request bodies.
func (f *Form) AddOpenAPIFile(field string, file openapi_types.File) *Form {
	data, err := file.Bytes()
	if err != nil {
		f.err = errors.Wrapf(err, "failed to read file for field %q", field)
		return f
	}

	return f.AddFile(field, file.Filename(), bytes.NewReader(data))
}

// encode renders the form and returns the body with its Content-Type.
func (f *Form) encode() (io.Reader, string, error) {
	if f == nil {
		return nil, "", ErrNilForm
	}

	if f.err != nil {
		return nil, "", f.err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, p := range f.parts {
		if err := writePart(w, p); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "failed to finish multipart body")
	}

	return &buf, w.FormDataContentType(), nil
}

func writePart(w *multipart.Writer, p formPart) error {
	if !p.isFile {
		if err := w.WriteField(p.name, p.value); err != nil {
			return errors.Wrapf(err, "failed to write field %q", p.name)
		}

		return nil
	}

	data, err := io.ReadAll(p.file)
	if err != nil {
		return errors.Wrapf(err, "failed to read file for field %q", p.name)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+escapeQuotes(p.name)+
		`"; filename="`+escapeQuotes(p.filename)+`"`)
	header.Set("Content-Type", mimetype.Detect(data).String())

	part, err := w.CreatePart(header)
	if err != nil {
		return errors.Wrapf(err, "failed to create part %q", p.name)
	}

	if _, err := part.Write(data); err != nil {
		return errors.Wrapf(err, "failed to write part %q", p.name)
	}

	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
