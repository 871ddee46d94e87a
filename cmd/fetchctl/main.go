// Command fetchctl issues requests through the go-fetch client from the
// command line.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	fetch "github.com/lexfrei/go-fetch"
	"github.com/lexfrei/go-fetch/internal/config"
	"github.com/lexfrei/go-fetch/observability"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI is the fetchctl command tree.
type CLI struct {
	config.Globals `embed:""`

	Version kong.VersionFlag `kong:"help='Print version and exit.'"`
	Metrics bool             `kong:"help='Print Prometheus metrics to stderr after the command.'"`

	Route  RouteCmd  `cmd:"" help:"Print the rerouted path for METHOD PATH without sending anything."`
	Get    GetCmd    `cmd:"" help:"Send a GET request."`
	Post   SendCmd   `cmd:"" help:"Send a POST request with a JSON body."`
	Put    SendCmd   `cmd:"" help:"Send a PUT request with a JSON body."`
	Patch  SendCmd   `cmd:"" help:"Send a PATCH request with a JSON body."`
	Delete SendCmd   `cmd:"" help:"Send a DELETE request with an optional JSON body."`
	Upload UploadCmd `cmd:"" help:"Send a multipart form (POST, or PATCH with --patch)."`
}

// app carries what every command needs.
type app struct {
	cfg      *config.Config
	client   *fetch.Client
	logger   *zap.Logger
	registry *prometheus.Registry
	saved    []string
	out      io.Writer
}

func main() {
	var cli CLI

	kctx := kong.Parse(&cli,
		kong.Name("fetchctl"),
		kong.Description("Issue HTTP requests with rerouting, content negotiation and downloads."),
		kong.UsageOnError(),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	a, err := newApp(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fetchctl:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	kctx.BindTo(ctx, (*context.Context)(nil))

	err = kctx.Run(a)

	stop()

	if cli.Metrics {
		writeMetrics(a.registry)
	}

	_ = a.logger.Sync()

	kctx.FatalIfErrorf(err)
}

func newApp(cli *CLI) (*app, error) {
	cfg, err := config.Load(&cli.Globals)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	if cfg.Path() != "" {
		logger.Debug("config loaded", zap.String("path", cfg.Path()))
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		out:      os.Stdout,
	}

	client, err := fetch.NewWithConfig(&fetch.Config{
		BasePath:           cfg.Client.BasePath,
		Origin:             cfg.Client.Origin,
		Headers:            cfg.Client.HTTPHeaders(),
		Credentials:        fetch.Credentials(cfg.Client.Credentials),
		ReroutingRules:     cfg.Rerouting,
		HTTPClient:         &http.Client{Timeout: cfg.Client.Timeout()},
		RateLimitPerMinute: cfg.Client.RateLimitPerMinute,
		RateLimitPerHost:   cfg.Client.RateLimitPerHost,
		Saver:              fetch.SaverFunc(a.save),
		Logger:             observability.NewZapLogger(logger),
		Metrics:            observability.NewPrometheusRecorder(a.registry),
	})
	if err != nil {
		return nil, err
	}

	a.client = client

	return a, nil
}

// newLogger builds a zap logger writing to stderr so stdout only carries
// response data.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var level zapcore.Level

	err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level)))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", cfg.Level)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	encoding := strings.ToLower(cfg.Format)
	if encoding == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	zapCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}

	return logger.Named("fetchctl"), nil
}

func writeMetrics(registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fetchctl: gather metrics:", err)
		return
	}

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stderr, mf); err != nil {
			fmt.Fprintln(os.Stderr, "fetchctl: write metrics:", err)
			return
		}
	}
}
