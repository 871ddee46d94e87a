package response

import (
	"mime"
	"net/url"
	"strings"
)

var quoteStripper = strings.NewReplacer(`"`, "", "'", "")

// Filename extracts the file name from a Content-Disposition header value.
// Quoted, unquoted and RFC 5987 (filename*=) forms are accepted. An empty
// result means no usable name was found.
func Filename(contentDisposition string) string {
	if strings.TrimSpace(contentDisposition) == "" {
		return ""
	}

	if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
		if name := unquote(params["filename"]); name != "" {
			return name
		}
	}

	return lenientFilename(contentDisposition)
}

// lenientFilename handles headers mime.ParseMediaType rejects, such as
// unquoted names with spaces or a missing disposition type.
func lenientFilename(header string) string {
	m := filenamePattern.FindStringSubmatch(header)
	if m == nil {
		return ""
	}

	value := strings.TrimSpace(m[1])

	const extPrefix = "utf-8''"
	if len(value) > len(extPrefix) && strings.EqualFold(value[:len(extPrefix)], extPrefix) {
		if decoded, err := url.PathUnescape(value[len(extPrefix):]); err == nil {
			return decoded
		}
	}

	return strings.TrimSpace(quoteStripper.Replace(value))
}

// unquote removes single quotes around a value the MIME parser treated as a
// plain token.
func unquote(v string) string {
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		return v[1 : len(v)-1]
	}

	return v
}
