package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/callpipe/internal/config"
	"github.com/tjfontaine/callpipe/internal/pipeline"
	"github.com/tjfontaine/callpipe/internal/proxy"
	"github.com/tjfontaine/callpipe/internal/storage"
	"github.com/tjfontaine/callpipe/internal/telemetry"
)

// app is the wiring shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    storage.InvocationStore
	metrics  *telemetry.Metrics
	pipeline *pipeline.Pipeline
	proxy    *proxy.Proxy
	deps     pipeline.Dependencies

	shutdownTracer func(context.Context) error
}

// newApp loads configuration and builds the pipeline around the demo target.
// Logs and spans go to logOut.
func newApp(flags *rootFlags, logOut io.Writer) (*app, error) {
	if flags.envFile != "" {
		if err := godotenv.Load(flags.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", flags.envFile, err)
		}
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, metrics: telemetry.NewMetrics()}

	if cfg.Telemetry.Tracing {
		shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, logOut, logger)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		a.shutdownTracer = shutdown
	}

	if a.store, err = storage.Open(cfg.Storage); err != nil {
		a.close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a.deps = pipeline.Dependencies{
		Logger:  logger,
		Tracer:  telemetry.Tracer(),
		Metrics: a.metrics,
		Store:   a.store,
	}
	a.pipeline, err = pipeline.NewFromConfig(cfg.Pipeline, a.deps)
	if err != nil {
		a.close()
		return nil, err
	}

	a.proxy, err = newDemoProxy(a.pipeline)
	if err != nil {
		a.close()
		return nil, err
	}

	logger.Debug("pipeline ready",
		slog.Int("behaviors", a.pipeline.Len()),
		slog.String("storage", cfg.Storage.Type),
	)
	return a, nil
}

// reloadPipeline swaps in the pipeline described by cfg. Only the pipeline
// section is applied; storage, logging and telemetry keep their startup values.
// An invalid pipeline is logged and the current one stays in place.
func (a *app) reloadPipeline(cfg *config.Config) {
	p, err := pipeline.NewFromConfig(cfg.Pipeline, a.deps)
	if err != nil {
		a.logger.Error("pipeline reload rejected", slog.String("error", err.Error()))
		return
	}
	a.proxy.SetPipeline(p)
	a.logger.Info("pipeline reloaded", slog.Int("behaviors", p.Len()))
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(context.Background()); err != nil {
			a.logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	switch cfg.Format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json", "":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (must be 'json' or 'text')", cfg.Format)
	}
}
