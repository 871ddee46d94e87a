package testutil

import (
	"slices"
	"sync"
	"time"

	"github.com/lexfrei/go-fetch/observability"
)

// LogEntry is one message captured by RecordingLogger.
type LogEntry struct {
	Level   string
	Message string
	Fields  []observability.Field
}

// RecordingLogger is an observability.Logger that keeps every entry in memory.
type RecordingLogger struct {
	mu      *sync.Mutex
	entries *[]LogEntry
	with    []observability.Field
}

// NewRecordingLogger returns an empty RecordingLogger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{mu: &sync.Mutex{}, entries: &[]LogEntry{}}
}

func (l *RecordingLogger) Debug(msg string, fields ...observability.Field) { l.add("debug", msg, fields) }
func (l *RecordingLogger) Info(msg string, fields ...observability.Field)  { l.add("info", msg, fields) }
func (l *RecordingLogger) Warn(msg string, fields ...observability.Field)  { l.add("warn", msg, fields) }
func (l *RecordingLogger) Error(msg string, fields ...observability.Field) { l.add("error", msg, fields) }

//nolint:ireturn // Method must return interface to satisfy Logger interface
func (l *RecordingLogger) With(fields ...observability.Field) observability.Logger {
	return &RecordingLogger{
		mu:      l.mu,
		entries: l.entries,
		with:    append(slices.Clone(l.with), fields...),
	}
}

func (l *RecordingLogger) add(level, msg string, fields []observability.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()

	*l.entries = append(*l.entries, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  append(slices.Clone(l.with), fields...),
	})
}

// Field returns the value of key on the first entry logged as msg.
func (l *RecordingLogger) Field(msg, key string) (any, bool) {
	for _, e := range l.Entries() {
		if e.Message != msg {
			continue
		}

		for _, f := range e.Fields {
			if f.Key == key {
				return f.Value, true
			}
		}

		return nil, false
	}

	return nil, false
}

// Entries returns a copy of everything logged so far.
func (l *RecordingLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Clone(*l.entries)
}

// Has reports whether a message was logged.
func (l *RecordingLogger) Has(msg string) bool {
	return slices.ContainsFunc(l.Entries(), func(e LogEntry) bool { return e.Message == msg })
}

// Messages returns logged messages at level, in order.
func (l *RecordingLogger) Messages(level string) []string {
	var out []string

	for _, e := range l.Entries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}

	return out
}

// RequestRecord is one RecordHTTPRequest call.
type RequestRecord struct {
	Method     string
	Path       string
	StatusCode int
}

// RecordingMetrics is an observability.MetricsRecorder that keeps calls in memory.
type RecordingMetrics struct {
	mu         sync.Mutex
	requests   []RequestRecord
	reroutes   []string
	rateLimits []string
	errors     []string
}

// NewRecordingMetrics returns an empty RecordingMetrics.
func NewRecordingMetrics() *RecordingMetrics {
	return &RecordingMetrics{}
}

func (m *RecordingMetrics) RecordHTTPRequest(method, path string, statusCode int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, RequestRecord{Method: method, Path: path, StatusCode: statusCode})
}

func (m *RecordingMetrics) RecordReroute(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reroutes = append(m.reroutes, method)
}

func (m *RecordingMetrics) RecordRateLimit(endpoint string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rateLimits = append(m.rateLimits, endpoint)
}

func (m *RecordingMetrics) RecordError(operation, errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errors = append(m.errors, operation+":"+errorType)
}

// Requests returns the recorded requests.
func (m *RecordingMetrics) Requests() []RequestRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.requests)
}

// Reroutes returns the methods of rerouted requests.
func (m *RecordingMetrics) Reroutes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.reroutes)
}

// RateLimits returns the endpoints that waited on the limiter.
func (m *RecordingMetrics) RateLimits() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.rateLimits)
}

// Errors returns recorded errors as "operation:type".
func (m *RecordingMetrics) Errors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.errors)
}
