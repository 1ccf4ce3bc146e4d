package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/config"
	"github.com/aretw0/tendril/internal/pipelines/docindex"
	"github.com/aretw0/tendril/internal/presentation/tui"
	"github.com/aretw0/tendril/pkg/adapters/loam"
	"github.com/aretw0/tendril/pkg/adapters/redis"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/incremental"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/aretw0/tendril/pkg/persistence/middleware"
	"github.com/aretw0/tendril/pkg/ports"
)

// Options are the command-line settings shared by every command.
type Options struct {
	Dir        string
	ConfigPath string
	Debug      bool
	JSONLogs   bool
	Quiet      bool

	// OutDir receives the generated texts. Empty keeps them in memory only.
	OutDir string

	// Out receives pass reports (default: os.Stdout).
	Out io.Writer
}

// App wires the document feed, the docindex pipeline and the driver.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Feed     ports.InputFeed
	Pipeline *docindex.Pipeline
	Driver   *tendril.Driver
	Registry *prometheus.Registry
	Hooks    domain.LifecycleHooks

	out     io.Writer
	quiet   bool
	outDir  string
	written []string
	mu      sync.Mutex
	closers []func() error
}

// AppOption customizes an App before the driver is created.
type AppOption func(*App)

// WithHooks adds lifecycle hooks to the driver.
func WithHooks(h domain.LifecycleHooks) AppOption {
	return func(a *App) { a.Hooks = a.Hooks.Merge(h) }
}

// Open loads the configuration, applies the flags and opens the Loam feed of the document
// directory.
func Open(opts Options, appOpts ...AppOption) (*App, error) {
	cfgPath := opts.ConfigPath
	required := cfgPath != ""
	if cfgPath == "" {
		cfgPath = filepath.Join(opts.Dir, config.DefaultFile)
	}
	cfg, err := config.Load(cfgPath, required)
	if err != nil {
		return nil, err
	}
	if opts.Dir != "" {
		cfg.Dir = opts.Dir
	}

	logger, err := createLogger(cfg.LogLevel, opts.Debug, opts.JSONLogs)
	if err != nil {
		return nil, err
	}

	feed, err := loam.Open(cfg.Dir, cfg.Patterns...)
	if err != nil {
		return nil, err
	}
	return NewApp(cfg, feed, logger, opts, appOpts...)
}

// NewApp builds the driver over feed. Redis is used for artifacts and pass locking when
// configured.
func NewApp(cfg config.Config, feed ports.InputFeed, logger *slog.Logger, opts Options, appOpts ...AppOption) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Feed:     feed,
		Pipeline: docindex.New(),
		Registry: prometheus.NewRegistry(),
		out:      opts.Out,
		quiet:    opts.Quiet,
		outDir:   opts.OutDir,
	}
	if a.out == nil {
		a.out = os.Stdout
	}
	for _, opt := range appOpts {
		opt(a)
	}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	driverOpts := []tendril.Option{
		tendril.WithLogger(logger),
		tendril.WithMetrics(observability.NewMetrics(a.Registry)),
		tendril.WithLifecycleHooks(observability.LoggingHooks(logger)),
		tendril.WithLifecycleHooks(a.Hooks),
		tendril.WithConcurrency(cfg.Concurrency),
		tendril.WithSession(cfg.Session),
	}

	if cfg.Redis.Addr != "" {
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)

		sink, err := a.sink(client)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		driverOpts = append(driverOpts,
			tendril.WithSink(sink),
			tendril.WithLocker(redis.NewLocker(client, cfg.Redis.Prefix), cfg.Redis.LockTTL),
		)
		logger.Info("Redis enabled", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
	}

	drv, err := tendril.New(a.Pipeline.Pipeline, driverOpts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Driver = drv
	return a, nil
}

func (a *App) sink(client *backend.Client) (ports.ArtifactSink, error) {
	var mws []middleware.Middleware
	if len(a.Config.Redact) > 0 {
		for _, p := range a.Config.Redact {
			if _, err := regexp.Compile(p); err != nil {
				return nil, fmt.Errorf("invalid redact pattern %q: %w", p, err)
			}
		}
		mws = append(mws, middleware.NewPIIMiddleware(a.Config.Redact))
	}
	key, err := a.Config.Key()
	if err != nil {
		return nil, err
	}
	if key != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}

	opts := []redis.Option{redis.WithPrefix(a.Config.Redis.Prefix)}
	if a.Config.Redis.TTL > 0 {
		opts = append(opts, redis.WithTTL(a.Config.Redis.TTL))
	}
	return middleware.Chain(redis.NewFromClient(client, opts...), mws...), nil
}

// Pass loads the documents and runs one pass. Generated texts are written to the output
// directory and a report is printed unless the app is quiet.
func (a *App) Pass(ctx context.Context) (*incremental.PassResult, error) {
	docs, err := a.Feed.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	res, err := a.Driver.RunPass(ctx, a.Pipeline.Feed(docs))
	if err != nil {
		return nil, err
	}

	if a.outDir != "" {
		if err := a.writeArtifacts(res.Texts); err != nil {
			return res, err
		}
	}
	if !a.quiet {
		if err := tui.PrintReport(a.out, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// writeArtifacts mirrors texts into the output directory and removes the files of artifacts
// that are gone.
func (a *App) writeArtifacts(texts []domain.GeneratedText) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	current := make([]string, 0, len(texts))
	for _, t := range texts {
		path := filepath.Join(a.outDir, filepath.FromSlash(t.HintName))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("write %s: %w", t.HintName, err)
		}
		if err := os.WriteFile(path, []byte(t.Text), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", t.HintName, err)
		}
		current = append(current, t.HintName)
	}

	var errs []error
	for _, hint := range a.written {
		if slices.Contains(current, hint) {
			continue
		}
		err := os.Remove(filepath.Join(a.outDir, filepath.FromSlash(hint)))
		if err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	a.written = current
	return errors.Join(errs...)
}

// Close releases the connections opened by the app.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}
