package query_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfrei/go-fetch/internal/query"
)

type listFilter struct {
	Page  int    `json:"page"`
	Query string `json:"q"`
}

func TestEncode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		params any
		want   string
	}{
		{name: "nil", params: nil, want: ""},
		{name: "string", params: "b=2&a=1", want: "b=2&a=1"},
		{name: "string with question mark", params: "?q=go", want: "q=go"},
		{name: "string re-encoded", params: "q=a b&x=%2F", want: "q=a+b&x=%2F"},
		{name: "string without value", params: "flag", want: "flag="},
		{name: "empty string", params: "", want: ""},
		{name: "url.Values", params: url.Values{"b": {"2"}, "a": {"1", "3"}}, want: "a=1&a=3&b=2"},
		{name: "map", params: map[string]string{"z": "1", "a": "x y"}, want: "a=x+y&z=1"},
		{name: "pairs", params: [][2]string{{"z", "1"}, {"a", "2"}, {"z", "3"}}, want: "z=1&a=2&z=3"},
		{name: "slice pairs", params: [][]string{{"k", "v"}, {"k", "w"}}, want: "k=v&k=w"},
		{name: "any map", params: map[string]any{"b": 1, "a": "x"}, want: "a=x&b=1"},
		{name: "empty any map", params: map[string]any{}, want: ""},
		{name: "struct", params: listFilter{Page: 2, Query: "go"}, want: "page=2&q=go"},
		{name: "struct pointer", params: &listFilter{Page: 3, Query: "x"}, want: "page=3&q=x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := query.Encode(tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeErrors(t *testing.T) {
	t.Parallel()

	var nilFilter *listFilter

	tests := []struct {
		name        string
		params      any
		unsupported bool
	}{
		{name: "int", params: 42, unsupported: true},
		{name: "nil struct pointer", params: nilFilter, unsupported: true},
		{name: "short pair", params: [][]string{{"k"}}, unsupported: true},
		{name: "bad escape", params: "a=%zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := query.Encode(tt.params)
			require.Error(t, err)

			if tt.unsupported {
				assert.ErrorIs(t, err, query.ErrUnsupported)
			}
		})
	}
}
