// Package app assembles a flowgraph process from configuration: the store,
// provider clients, the GitHub fetcher, metrics, tracing and the engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaiopt "github.com/openai/openai-go/option"

	"github.com/dshills/flowgraph/graph"
	"github.com/dshills/flowgraph/graph/emit"
	"github.com/dshills/flowgraph/graph/model"
	"github.com/dshills/flowgraph/graph/model/anthropic"
	"github.com/dshills/flowgraph/graph/model/google"
	"github.com/dshills/flowgraph/graph/model/openai"
	"github.com/dshills/flowgraph/graph/store"
	"github.com/dshills/flowgraph/graph/tool"
	"github.com/dshills/flowgraph/internal/config"
)

// Provider names accepted in text-generate and image-generate nodes.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
)

// App holds the long-lived components of a server or CLI process.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   store.Store
	Engine  *graph.Engine
	Metrics *graph.PrometheusMetrics

	// Registry is the Prometheus registry behind /metrics.
	Registry *prometheus.Registry

	tracer *sdktrace.TracerProvider
}

// Options adjusts how New assembles the process.
type Options struct {
	// TraceWriter receives stdouttrace output when tracing is enabled.
	TraceWriter io.Writer

	// Emitters are added to the engine next to the slog emitter.
	Emitters []emit.Emitter

	// Collaborators replaces the configured providers and fetcher; tests use
	// it to inject mocks.
	Collaborators *graph.Collaborators
}

// New builds an App. Close releases what it opened.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}

	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = st

	collab := opts.Collaborators
	if collab == nil {
		c, err := Collaborators(cfg, logger)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		collab = &c
	}

	emitters := []emit.Emitter{emit.NewSlogEmitter(logger)}
	if cfg.Telemetry.Tracing {
		tp, err := newTracerProvider(ctx, cfg.Telemetry.ServiceName, opts.TraceWriter)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		a.tracer = tp
		otel.SetTracerProvider(tp)
		emitters = append(emitters, emit.NewOTelEmitter(tp.Tracer("github.com/dshills/flowgraph")))
	}
	emitters = append(emitters, opts.Emitters...)

	engineOpts := []graph.Option{
		graph.WithMaxConcurrent(cfg.Engine.MaxConcurrent),
		graph.WithDefaultNodeTimeout(cfg.Engine.NodeTimeout),
		graph.WithRunWallClockBudget(cfg.Engine.RunBudget),
		graph.WithRetryPolicy(&graph.RetryPolicy{
			MaxAttempts: cfg.Engine.RetryAttempts,
			BaseDelay:   cfg.Engine.RetryBaseDelay,
			MaxDelay:    cfg.Engine.RetryMaxDelay,
		}),
	}
	if cfg.Engine.CostTracking {
		engineOpts = append(engineOpts, graph.WithCostTracking(nil))
	}
	if cfg.Telemetry.Metrics {
		a.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = graph.NewPrometheusMetrics(a.Registry)
		engineOpts = append(engineOpts, graph.WithMetrics(a.Metrics))
	}

	engine, err := graph.New(graph.NewRegistry(*collab), st, emit.NewMultiEmitter(emitters...), engineOpts...)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("engine: %w", err)
	}
	a.Engine = engine
	return a, nil
}

// OpenStore opens the backend named by cfg.Store.Driver.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case config.DriverMemory:
		st = store.NewMemStore()
	case config.DriverSQLite:
		st, err = store.NewSQLiteStore(cfg.Store.DSN)
	case config.DriverMySQL:
		st, err = store.NewMySQLStore(cfg.Store.DSN)
	case config.DriverPostgres:
		st, err = store.NewPostgresStore(ctx, cfg.Store.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	return st, nil
}

// Collaborators builds the provider clients that have an API key and the
// GitHub fetcher. Providers without a key are left out, so nodes naming
// them fail with UNKNOWN_PROVIDER.
func Collaborators(cfg *config.Config, logger *slog.Logger) (graph.Collaborators, error) {
	c := graph.Collaborators{
		Fetcher:     tool.NewGitHubFetcher(cfg.GitHub.APIBase, cfg.GitHub.Token),
		TextModels:  map[string]model.TextModel{},
		ImageModels: map[string]model.ImageModel{},
	}

	if key := cfg.Providers.Anthropic.APIKey; key != "" {
		var opts []anthropicopt.RequestOption
		if base := cfg.Providers.Anthropic.BaseURL; base != "" {
			opts = append(opts, anthropicopt.WithBaseURL(base))
		}
		m, err := anthropic.New(key, opts...)
		if err != nil {
			return c, fmt.Errorf("anthropic: %w", err)
		}
		c.TextModels[ProviderAnthropic] = m
	}

	if key := cfg.Providers.OpenAI.APIKey; key != "" {
		var opts []openaiopt.RequestOption
		if base := cfg.Providers.OpenAI.BaseURL; base != "" {
			opts = append(opts, openaiopt.WithBaseURL(base))
		}
		m, err := openai.New(key, opts...)
		if err != nil {
			return c, fmt.Errorf("openai: %w", err)
		}
		c.TextModels[ProviderOpenAI] = m
		c.ImageModels[ProviderOpenAI] = m
	}

	if key := cfg.Providers.Google.APIKey; key != "" {
		m, err := google.New(key)
		if err != nil {
			return c, fmt.Errorf("google: %w", err)
		}
		c.TextModels[ProviderGoogle] = m
	}

	names := make([]string, 0, len(c.TextModels))
	for name := range c.TextModels {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		logger.Warn("no model provider configured; text-generate and image-generate nodes will fail")
	} else {
		logger.Info("model providers enabled", "providers", names, "github_api", cfg.GitHub.APIBase)
	}
	return c, nil
}

func newTracerProvider(ctx context.Context, serviceName string, w io.Writer) (*sdktrace.TracerProvider, error) {
	var opts []stdouttrace.Option
	if w != nil {
		opts = append(opts, stdouttrace.WithWriter(w))
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", serviceName)))
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

// Execute runs g and, when workflowID is set, records the run in the store.
// The run is returned even when saving it fails.
func (a *App) Execute(ctx context.Context, g *graph.Graph, workflowID string) (*graph.Run, error) {
	run := a.Engine.Run(ctx, g, workflowID)
	if workflowID == "" {
		return run, nil
	}
	if err := a.Store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		a.Logger.Error("failed to save run", "run_id", run.ID, "workflow_id", workflowID, "error", err)
		return run, fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return run, nil
}

// Close flushes traces and closes the store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}
	return errors.Join(errs...)
}
