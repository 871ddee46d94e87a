package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/lexfrei/go-fetch/observability"
)

// clientBucket names the shared bucket when limits are not kept per host.
const clientBucket = "client"

// RateLimitConfig configures the client-side rate limit.
type RateLimitConfig struct {
	// Limiter is shared by every request. Ignored when PerHost is set.
	Limiter *rate.Limiter

	// PerHost returns the bucket for a request host.
	PerHost func(host string) *rate.Limiter

	Logger  observability.Logger
	Metrics observability.MetricsRecorder
}

// RateLimit delays each request until its bucket has a token. Waits are
// logged and recorded under the bucket name: the request host in per-host
// mode, "client" otherwise. A canceled context ends the wait with ctx.Err().
func RateLimit(cfg RateLimitConfig) func(http.RoundTripper) http.RoundTripper {
	if cfg.Logger == nil {
		cfg.Logger = observability.NoopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetricsRecorder()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return &rateLimitTransport{next: next, cfg: cfg}
	}
}

type rateLimitTransport struct {
	next http.RoundTripper
	cfg  RateLimitConfig
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	limiter, bucket := t.bucket(req)
	if limiter == nil {
		//nolint:wrapcheck // Middleware passes through errors from next handler in chain
		return t.next.RoundTrip(req)
	}

	reservation := limiter.Reserve()
	if !reservation.OK() {
		return nil, errors.Newf("rate limit bucket %q admits no requests", bucket)
	}

	if delay := reservation.Delay(); delay > 0 {
		t.cfg.Logger.Debug("request delayed by rate limit",
			observability.Field{Key: "bucket", Value: bucket},
			observability.Field{Key: "host", Value: req.URL.Host},
			observability.Field{Key: "method", Value: req.Method},
			observability.Field{Key: "path", Value: req.URL.EscapedPath()},
			observability.Field{Key: "delay", Value: delay},
		)
		t.cfg.Metrics.RecordRateLimit(bucket, delay)

		if err := sleep(req.Context(), delay); err != nil {
			reservation.Cancel()
			return nil, err
		}
	}

	//nolint:wrapcheck // Middleware passes through errors from next handler in chain
	return t.next.RoundTrip(req)
}

func (t *rateLimitTransport) bucket(req *http.Request) (*rate.Limiter, string) {
	if t.cfg.PerHost == nil {
		return t.cfg.Limiter, clientBucket
	}

	host := req.URL.Host
	if host == "" {
		host = req.Host
	}

	return t.cfg.PerHost(host), host
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		//nolint:wrapcheck // Callers match on context.Canceled and DeadlineExceeded
		return ctx.Err()
	}
}
