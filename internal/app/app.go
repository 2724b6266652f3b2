package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/printgraph/internal/ctxlog"
	"github.com/specialistvlad/printgraph/internal/engine"
	"github.com/specialistvlad/printgraph/internal/fetch"
	"github.com/specialistvlad/printgraph/internal/registry"
	"github.com/specialistvlad/printgraph/internal/storage"
	"github.com/specialistvlad/printgraph/internal/tracing"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	executor *engine.Executor
	sink     storage.Sink
	fetch    *fetch.Client
	cache    *TemplateCache

	modules         []registry.Module
	extraModules    []registry.Module
	shutdownTracing func(context.Context) error
}

// Option customizes an App during construction.
type Option func(*App)

// WithModules replaces the built-in processor modules.
func WithModules(mods ...registry.Module) Option {
	return func(a *App) { a.modules = mods }
}

// WithExtraModules registers mods in addition to the built-in modules.
func WithExtraModules(mods ...registry.Module) Option {
	return func(a *App) { a.extraModules = append(a.extraModules, mods...) }
}

// WithSink replaces the sink selected by Config.Storage.
func WithSink(s storage.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithFetchClient replaces the default data-fetch client.
func WithFetchClient(c *fetch.Client) Option {
	return func(a *App) { a.fetch = c }
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// The template itself is loaded lazily by Run.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config, opts ...Option) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	a := &App{outW: outW, logger: logger, config: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.sink == nil {
		sink, err := newSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to configure storage: %w", err)
		}
		a.sink = sink
	}
	logger.Debug("Storage configured.", "storage", cfg.Storage)

	if a.fetch == nil {
		a.fetch = fetch.New(fetch.DefaultConfig())
	}

	// Validate before tracing installs its global provider.
	engineCfg := engine.LoadConfig(cfg.Engine)
	if err := engineCfg.Validate(); err != nil {
		return nil, err
	}

	var execOpts []engine.Option
	if cfg.OTLPEndpoint != "" {
		tcfg := tracing.DefaultConfig("printgraph")
		tcfg.OTLPEndpoint = cfg.OTLPEndpoint
		tp, shutdown, err := tracing.Setup(ctx, tcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to set up tracing: %w", err)
		}
		a.shutdownTracing = shutdown
		execOpts = append(execOpts, engine.WithTracerProvider(tp))
	}

	a.registry = registry.New()
	if a.modules == nil {
		a.modules = a.coreModules()
	}
	a.registry.RegisterModules(a.modules...)
	a.registry.RegisterModules(a.extraModules...)
	logger.Debug("All Go modules registered.", "count", len(a.modules)+len(a.extraModules), "kinds", a.registry.Kinds())

	if engineCfg.Workers == 1 {
		a.executor = engine.NewSerial(engineCfg, execOpts...)
	} else {
		a.executor = engine.New(engineCfg, execOpts...)
	}
	logger.Debug("Executor configured.", "config", a.executor.Config().String())

	a.cache = NewTemplateCache(a.registry)
	return a, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Sink returns the storage sink rendered assets are written to.
func (a *App) Sink() storage.Sink {
	return a.sink
}

// Cache returns the compiled template cache.
func (a *App) Cache() *TemplateCache {
	return a.cache
}

// Close releases resources held by the App, flushing traces if tracing is on.
func (a *App) Close(ctx context.Context) error {
	if a.shutdownTracing == nil {
		return nil
	}
	return tracing.Shutdown(ctx, a.shutdownTracing)
}

func newSink(cfg *Config) (storage.Sink, error) {
	switch cfg.Storage {
	case StorageMemory:
		return storage.NewMemorySink(), nil
	case StorageAzure:
		sink, err := storage.NewAzureBlobSink(cfg.Azure)
		if err != nil {
			return nil, err
		}
		return sink, nil
	default:
		sink, err := storage.NewFileSink(cfg.StorageDir)
		if err != nil {
			return nil, err
		}
		return sink, nil
	}
}
