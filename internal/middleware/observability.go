package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lexfrei/go-fetch/observability"
	"github.com/lexfrei/go-fetch/reroute"
)

// Observability logs every round trip at debug level and records it with a
// bounded path label. It sits inside the rerouting layer, so the label is the
// path actually sent; rerouted requests also log the path the caller asked for.
func Observability(logger observability.Logger, metrics observability.MetricsRecorder) func(http.RoundTripper) http.RoundTripper {
	if logger == nil {
		logger = observability.NoopLogger()
	}
	if metrics == nil {
		metrics = observability.NoopMetricsRecorder()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return &observabilityTransport{
			next:    next,
			logger:  logger,
			metrics: metrics,
		}
	}
}

type observabilityTransport struct {
	next    http.RoundTripper
	logger  observability.Logger
	metrics observability.MetricsRecorder
}

func (t *observabilityTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	fields := requestFields(req)
	t.logger.Debug("http request started", fields...)

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	elapsed := time.Since(start)

	if err != nil {
		t.logger.Debug("http request failed", append(fields,
			observability.Field{Key: "duration", Value: elapsed},
			observability.Field{Key: "error", Value: err.Error()},
		)...)
		t.metrics.RecordError("http_request", "NetworkError")

		//nolint:wrapcheck // Observability middleware logs error but passes it through unchanged
		return nil, err
	}

	t.logger.Debug("http request completed", append(fields,
		observability.Field{Key: "status", Value: resp.StatusCode},
		observability.Field{Key: "duration", Value: elapsed},
	)...)
	t.metrics.RecordHTTPRequest(req.Method, pathLabel(req.URL.EscapedPath()), resp.StatusCode, elapsed)

	return resp, nil
}

func requestFields(req *http.Request) []observability.Field {
	fields := make([]observability.Field, 0, 5)
	fields = append(fields,
		observability.Field{Key: "method", Value: req.Method},
		observability.Field{Key: "url", Value: req.URL.Redacted()},
	)

	if from, ok := reroute.OriginalPath(req.Context()); ok {
		fields = append(fields, observability.Field{Key: "rerouted_from", Value: from})
	}

	return fields
}

// pathLabel replaces identifier segments with ":id" so metric labels stay
// bounded: UUIDs, 24-digit hex object IDs and numbers of five or more digits.
//
//   - /api/files/507f1f77bcf86cd799439011 → /api/files/:id
//   - /api/users/12345678/avatar → /api/users/:id/avatar
//   - /api/v2/page/3 → /api/v2/page/3
func pathLabel(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if isIdentifier(s) {
			segments[i] = ":id"
		}
	}

	return strings.Join(segments, "/")
}

func isIdentifier(segment string) bool {
	switch {
	case len(segment) >= 5 && strings.Trim(segment, "0123456789") == "":
		return true
	case len(segment) == 24 && strings.Trim(strings.ToLower(segment), "0123456789abcdef") == "":
		return true
	case len(segment) == 36:
		return uuid.Validate(segment) == nil
	default:
		return false
	}
}
