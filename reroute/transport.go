package reroute

import (
	"context"
	"net/http"
	"net/url"

	"github.com/lexfrei/go-fetch/observability"
)

// Transport returns a RoundTripper that reroutes request paths through table
// before delegating to next. A nil next uses http.DefaultTransport.
//
//nolint:ireturn // Returns the RoundTripper interface so it can be chained
func Transport(table *Table, next http.RoundTripper) http.RoundTripper {
	return Middleware(table, nil, nil)(next)
}

// Middleware returns a rerouting middleware in the shape used by the client's
// transport chain. Rewrites are logged at debug level and counted.
func Middleware(
	table *Table,
	logger observability.Logger,
	metrics observability.MetricsRecorder,
) func(http.RoundTripper) http.RoundTripper {
	if logger == nil {
		logger = observability.NoopLogger()
	}
	if metrics == nil {
		metrics = observability.NoopMetricsRecorder()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		if next == nil {
			next = http.DefaultTransport
		}

		return &rerouteTransport{
			next:    next,
			table:   table,
			logger:  logger,
			metrics: metrics,
		}
	}
}

type rerouteTransport struct {
	next    http.RoundTripper
	table   *Table
	logger  observability.Logger
	metrics observability.MetricsRecorder
}

func (t *rerouteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method == "" || req.URL == nil {
		//nolint:wrapcheck // Middleware passes through errors from next handler in chain
		return t.next.RoundTrip(req)
	}

	from := req.URL.EscapedPath()

	routed, ok := t.table.Match(req.Method, from)
	if !ok || routed == from {
		//nolint:wrapcheck // Middleware passes through errors from next handler in chain
		return t.next.RoundTrip(req)
	}

	t.logger.Debug("request rerouted",
		observability.Field{Key: "method", Value: req.Method},
		observability.Field{Key: "from", Value: from},
		observability.Field{Key: "to", Value: routed},
	)
	t.metrics.RecordReroute(req.Method)

	//nolint:wrapcheck // Middleware passes through errors from next handler in chain
	return t.next.RoundTrip(withPath(req, from, routed))
}

type originalPathKey struct{}

// OriginalPath returns the escaped path a rerouted request had before its
// rule was applied. ok is false for requests that were not rerouted.
func OriginalPath(ctx context.Context) (path string, ok bool) {
	path, ok = ctx.Value(originalPathKey{}).(string)
	return path, ok
}

// withPath returns a clone of req sent to the escaped path routed. Rules see
// and produce escaped paths, so an encoded slash captured by a group stays
// one segment. The caller's request is untouched.
func withPath(req *http.Request, from, routed string) *http.Request {
	r := req.Clone(context.WithValue(req.Context(), originalPathKey{}, from))

	if path, err := url.PathUnescape(routed); err == nil {
		r.URL.Path = path
		r.URL.RawPath = routed
	} else {
		r.URL.Path = routed
		r.URL.RawPath = ""
	}

	return r
}
