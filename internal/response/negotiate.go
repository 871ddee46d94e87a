// Package response decides how response bodies are materialized.
package response

import (
	"regexp"
)

// Kind is the decoding strategy chosen for a response body.
type Kind int

const (
	// Blob keeps the body as raw bytes.
	Blob Kind = iota
	// Text decodes the body as a string.
	Text
	// JSON decodes the body as a JSON document.
	JSON
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case JSON:
		return "json"
	default:
		return "blob"
	}
}

var (
	textPattern = regexp.MustCompile(`(?i)text/`)
	jsonPattern = regexp.MustCompile(`(?i)application/json`)

	filenamePattern = regexp.MustCompile(`(?i)filename\*?=([^;]+)`)
)

// Classify picks a Kind from a Content-Type header value. Anything that is
// neither text/* nor application/json, including an empty value, is a Blob.
func Classify(contentType string) Kind {
	switch {
	case contentType == "":
		return Blob
	case textPattern.MatchString(contentType):
		return Text
	case jsonPattern.MatchString(contentType):
		return JSON
	default:
		return Blob
	}
}
