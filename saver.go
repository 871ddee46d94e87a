package fetch

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Saver receives downloaded files. filename is empty when the response named
// none.
type Saver interface {
	Save(ctx context.Context, blob Blob, filename string) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, blob Blob, filename string) error

// Save calls f.
func (f SaverFunc) Save(ctx context.Context, blob Blob, filename string) error {
	return f(ctx, blob, filename)
}

// DirSaver writes downloads into Dir, or the working directory when Dir is
// empty. Names are reduced to their base element; unnamed downloads get
// "download-<uuid>" plus an extension derived from the blob type.
type DirSaver struct {
	Dir string
}

// Save writes blob to disk.
func (s DirSaver) Save(ctx context.Context, blob Blob, filename string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "download canceled")
	}

	path := s.Path(blob, filename)

	if s.Dir != "" {
		if err := os.MkdirAll(s.Dir, 0o750); err != nil {
			return errors.Wrapf(err, "failed to create download directory %q", s.Dir)
		}
	}

	if err := os.WriteFile(path, blob.Data, 0o600); err != nil {
		return errors.Wrapf(err, "failed to write %q", path)
	}

	return nil
}

// Path returns where Save would write blob.
func (s DirSaver) Path(blob Blob, filename string) string {
	name := sanitizeFilename(filename)
	if name == "" {
		name = "download-" + uuid.NewString() + extension(blob)
	}

	return filepath.Join(s.Dir, name)
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}

	name = strings.TrimSpace(name)
	if name == "." || name == ".." {
		return ""
	}

	return name
}

func extension(blob Blob) string {
	if blob.Type != "" {
		if m := mimetype.Lookup(strings.TrimSpace(strings.Split(blob.Type, ";")[0])); m != nil {
			return m.Extension()
		}
	}

	return mimetype.Detect(blob.Data).Extension()
}
