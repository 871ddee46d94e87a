package fetch

import (
	"log/slog"
	"maps"
	"net/http"
	"net/textproto"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/lexfrei/go-fetch/internal/httpclient"
	"github.com/lexfrei/go-fetch/internal/middleware"
	"github.com/lexfrei/go-fetch/internal/ratelimit"
	"github.com/lexfrei/go-fetch/observability"
	"github.com/lexfrei/go-fetch/reroute"
)

// DefaultOrigin is used to resolve relative request paths when Config.Origin
// is empty.
const DefaultOrigin = "http://localhost"

// Config holds configuration for a Client.
type Config struct {
	// BasePath is prepended to every request path (e.g. "/api").
	BasePath string

	// Origin is the scheme and host relative paths resolve against.
	// Defaults to DefaultOrigin.
	Origin string

	// Headers are sent with every request and override the default
	// Content-Type: application/json.
	Headers http.Header

	// Credentials is the default credentials mode (defaults to same-origin).
	Credentials Credentials

	// ReroutingRules rewrite outbound request paths. See package reroute.
	ReroutingRules []reroute.Rule

	// Transport is the underlying transport (defaults to http.DefaultTransport).
	// It is wrapped, never modified.
	Transport http.RoundTripper

	// HTTPClient supplies timeout and redirect policy (optional). The client
	// works on a copy.
	HTTPClient *http.Client

	// Jar stores cookies according to the credentials mode (optional).
	Jar http.CookieJar

	// RateLimitPerMinute enables client-side rate limiting when positive.
	RateLimitPerMinute int

	// RateLimitPerHost keeps a separate rate limit bucket per host.
	RateLimitPerHost bool

	// Saver receives downloaded files. Defaults to DirSaver in the working directory.
	Saver Saver

	// ErrorHandler observes every error before it is returned. It may replace
	// the error; returning nil keeps the original. The default logs one line.
	ErrorHandler func(error) error

	// Logger for structured logging (optional, defaults to slog.Default()).
	Logger observability.Logger

	// Metrics recorder for collecting metrics (optional, defaults to no-op).
	Metrics observability.MetricsRecorder
}

// Client issues HTTP requests with rerouting, content negotiation and file
// downloads. It is safe for concurrent use; setters swap an immutable
// snapshot so in-flight calls are unaffected.
type Client struct {
	mu    sync.Mutex
	state atomic.Pointer[state]

	httpClient   *http.Client
	transport    http.RoundTripper
	jar          http.CookieJar
	rateLimit    func(http.RoundTripper) http.RoundTripper
	saver        Saver
	errorHandler func(error) error
	logger       observability.Logger
	metrics      observability.MetricsRecorder
}

// state is the immutable per-snapshot configuration.
type state struct {
	basePath    string
	origin      *url.URL
	headers     http.Header
	credentials Credentials
	rules       []reroute.Rule
	table       *reroute.Table
	http        *httpclient.Client
}

// New creates a client for basePath with default settings.
//
// Example:
//
//	client, err := fetch.New("/api")
//	resp, err := client.Get(ctx, "/users", nil)
func New(basePath string) (*Client, error) {
	return NewWithConfig(&Config{BasePath: basePath})
}

// NewWithConfig creates a client with custom configuration.
//
// Example:
//
//	client, err := fetch.NewWithConfig(&fetch.Config{
//	    BasePath: "/api",
//	    Origin:   "https://example.com",
//	    ReroutingRules: []reroute.Rule{
//	        {From: `^/api/v1/(.*)$`, To: "/api/v2/$1"},
//	    },
//	})
func NewWithConfig(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}

	originRaw := cfg.Origin
	if originRaw == "" {
		originRaw = DefaultOrigin
	}

	origin, err := parseOrigin(originRaw)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewSlogLogger(slog.Default())
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NoopMetricsRecorder()
	}

	c := &Client{
		httpClient:   cfg.HTTPClient,
		transport:    cfg.Transport,
		jar:          cfg.Jar,
		saver:        cfg.Saver,
		errorHandler: cfg.ErrorHandler,
		logger:       logger.With(observability.Field{Key: "component", Value: "fetch"}),
		metrics:      metrics,
	}

	if c.saver == nil {
		c.saver = DirSaver{}
	}

	if cfg.RateLimitPerMinute > 0 {
		rl := middleware.RateLimitConfig{Logger: c.logger, Metrics: metrics}
		if cfg.RateLimitPerHost {
			rl.PerHost = ratelimit.PerHost(cfg.RateLimitPerMinute)
		} else {
			rl.Limiter = ratelimit.NewRateLimiter(cfg.RateLimitPerMinute)
		}

		c.rateLimit = middleware.RateLimit(rl)
	}

	c.state.Store(c.build(state{
		basePath:    cfg.BasePath,
		origin:      origin,
		headers:     cloneHeader(cfg.Headers),
		credentials: cfg.Credentials,
		rules:       slices.Clone(cfg.ReroutingRules),
	}))

	return c, nil
}

func parseOrigin(raw string) (*url.URL, error) {
	origin, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid origin %q", raw)
	}

	if origin.Scheme == "" || origin.Host == "" {
		return nil, errors.Newf("origin %q must be an absolute URL", raw)
	}

	return &url.URL{Scheme: origin.Scheme, Host: origin.Host}, nil
}

// build compiles the rules and assembles a fresh transport chain for st.
// The chain is owned by this snapshot alone.
func (c *Client) build(st state) *state {
	st.table = reroute.Compile(st.rules)

	chain := []httpclient.Middleware{
		reroute.Middleware(st.table, c.logger, c.metrics),
		middleware.Observability(c.logger, c.metrics),
		middleware.Credentials(middleware.CredentialsConfig{
			Jar:     c.jar,
			Origin:  st.origin,
			Default: string(resolveCredentials(st.credentials, "")),
			Logger:  c.logger,
		}),
	}

	if c.rateLimit != nil {
		chain = append(chain, c.rateLimit)
	}

	st.http = httpclient.New(
		httpclient.WithHTTPClient(c.httpClient),
		httpclient.WithTransport(c.transport),
		httpclient.WithMiddleware(chain...),
	)

	return &st
}

// update applies fn to a copy of the current snapshot and publishes it.
func (c *Client) update(fn func(*state)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := *c.state.Load()
	fn(&next)

	c.state.Store(c.build(next))
}

// SetBasePath replaces the base path.
func (c *Client) SetBasePath(basePath string) {
	c.update(func(st *state) { st.basePath = basePath })
}

// SetHeaders replaces the instance-level headers.
func (c *Client) SetHeaders(headers http.Header) {
	headers = cloneHeader(headers)
	c.update(func(st *state) { st.headers = headers })
}

// SetCredentials replaces the default credentials mode.
func (c *Client) SetCredentials(credentials Credentials) error {
	if err := credentials.Validate(); err != nil {
		return err
	}

	c.update(func(st *state) { st.credentials = credentials })

	return nil
}

// SetReroutingRules recompiles the rerouting rules. Later calls use the new
// rules; calls already in flight keep the old ones.
func (c *Client) SetReroutingRules(rules []reroute.Rule) {
	rules = slices.Clone(rules)
	c.update(func(st *state) { st.rules = rules })
}

// BasePath returns the current base path.
func (c *Client) BasePath() string { return c.state.Load().basePath }

// Headers returns a copy of the instance-level headers.
func (c *Client) Headers() http.Header { return cloneHeader(c.state.Load().headers) }

// Credentials returns the effective default credentials mode.
func (c *Client) Credentials() Credentials {
	return resolveCredentials(c.state.Load().credentials, "")
}

// ReroutingRules returns a copy of the configured rules.
func (c *Client) ReroutingRules() []reroute.Rule { return slices.Clone(c.state.Load().rules) }

// CompiledRules returns the rules in match order, one per method.
func (c *Client) CompiledRules() []reroute.CompiledRule { return c.state.Load().table.Rules() }

// Route returns the path a request with method and path would be sent to.
func (c *Client) Route(method, path string) string {
	return c.state.Load().table.Route(method, path)
}

// HTTPClient returns the client's sandboxed *http.Client. Requests sent
// through it are rerouted and observed like the client's own.
func (c *Client) HTTPClient() *http.Client { return c.state.Load().http.HTTPClient() }

func cloneHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vs := range h {
		out[textproto.CanonicalMIMEHeaderKey(k)] = slices.Clone(vs)
	}

	return out
}

// layerHeaders merges headers left to right; later layers replace earlier
// values key by key.
func layerHeaders(layers ...http.Header) http.Header {
	out := make(http.Header)

	for _, layer := range layers {
		maps.Copy(out, cloneHeader(layer))
	}

	return out
}
