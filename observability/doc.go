// Package observability provides interfaces for logging and metrics collection
// in the go-fetch client.
//
// # Logger Interface
//
// The Logger interface supports structured logging with key-value pairs:
//
//	client, err := fetch.NewWithConfig(&fetch.Config{
//		BasePath: "/api",
//		Logger:   observability.NewSlogLogger(slog.Default()),
//	})
//
// Ready-made adapters exist for log/slog (NewSlogLogger) and go.uber.org/zap
// (NewZapLogger). NoopLogger discards everything.
//
// # MetricsRecorder Interface
//
// The MetricsRecorder interface tracks client metrics:
//   - HTTP request count, status codes, and duration
//   - Requests rewritten by rerouting rules
//   - Client-side rate limiting waits
//   - Error occurrences by type
//
// NewPrometheusRecorder registers Prometheus collectors on a registry of
// your choice.
//
// # Default Behavior
//
// Without a metrics recorder the client uses a no-op implementation. Without
// a logger the client logs through slog.Default(), which hides debug output.
package observability
