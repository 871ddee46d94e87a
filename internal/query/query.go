// Package query turns the accepted parameter shapes into an encoded query string.
package query

import (
	"net/url"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/oapi-codegen/runtime"
)

// ErrUnsupported is returned for parameter values of an unknown shape.
var ErrUnsupported = errors.New("unsupported query parameters")

// Encode renders params as a query string without the leading '?'.
//
// Accepted shapes:
//   - string, with or without a leading '?'; pair order is kept
//   - url.Values and map[string]string, sorted by key
//   - [][2]string and [][]string pairs, order kept; inner slices must have length 2
//   - map[string]any or a struct (or pointer to one), form-exploded and sorted
//
// A nil value encodes to "".
func Encode(params any) (string, error) {
	switch p := params.(type) {
	case nil:
		return "", nil
	case string:
		return encodeString(p)
	case url.Values:
		return p.Encode(), nil
	case map[string]string:
		values := make(url.Values, len(p))
		for k, v := range p {
			values.Set(k, v)
		}

		return values.Encode(), nil
	case map[string][]string:
		return url.Values(p).Encode(), nil
	case [][2]string:
		return encodePairs(p), nil
	case [][]string:
		pairs := make([][2]string, 0, len(p))
		for i, kv := range p {
			if len(kv) != 2 {
				return "", errors.Wrapf(ErrUnsupported, "pair %d has %d elements, want 2", i, len(kv))
			}

			pairs = append(pairs, [2]string{kv[0], kv[1]})
		}

		return encodePairs(pairs), nil
	case map[string]any:
		if len(p) == 0 {
			return "", nil
		}

		return styleForm(p)
	default:
		if v, ok := structValue(params); ok {
			return styleForm(v)
		}

		return "", errors.Wrapf(ErrUnsupported, "type %T", params)
	}
}

// encodeString normalizes a raw query, keeping pair order.
func encodeString(raw string) (string, error) {
	raw = strings.TrimPrefix(raw, "?")
	if raw == "" {
		return "", nil
	}

	var pairs [][2]string

	for part := range strings.SplitSeq(raw, "&") {
		if part == "" {
			continue
		}

		key, value, _ := strings.Cut(part, "=")

		k, err := url.QueryUnescape(key)
		if err != nil {
			return "", errors.Wrapf(err, "invalid query key %q", key)
		}

		v, err := url.QueryUnescape(value)
		if err != nil {
			return "", errors.Wrapf(err, "invalid query value for %q", k)
		}

		pairs = append(pairs, [2]string{k, v})
	}

	return encodePairs(pairs), nil
}

func encodePairs(pairs [][2]string) string {
	var b strings.Builder

	for i, kv := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}

		b.WriteString(url.QueryEscape(kv[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[1]))
	}

	return b.String()
}

func styleForm(v any) (string, error) {
	out, err := runtime.StyleParamWithLocation("form", true, "params", runtime.ParamLocationQuery, v)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode query parameters")
	}

	return strings.TrimLeft(out, "?&"), nil
}

// structValue dereferences pointers and reports whether a struct remains.
func structValue(v any) (any, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}

		rv = rv.Elem()
	}

	if rv.Kind() != reflect.Struct {
		return nil, false
	}

	return rv.Interface(), true
}
