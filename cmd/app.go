package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Norgate-AV/pcs/internal/cache"
	"github.com/Norgate-AV/pcs/internal/compiler"
	"github.com/Norgate-AV/pcs/internal/config"
	"github.com/Norgate-AV/pcs/internal/logger"
	"github.com/Norgate-AV/pcs/internal/metrics"
	"github.com/Norgate-AV/pcs/internal/sdk"
	"github.com/Norgate-AV/pcs/internal/server"
	"github.com/Norgate-AV/pcs/internal/workspace"
)

// compileService is what the commands need from the orchestrator
type compileService interface {
	server.Compiler
	Warmup(ctx context.Context) workspace.FrameworkState
	Close() error
}

// app holds everything a long-running command wires together
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	deps     *cache.DependencyCache
	compiler compileService
}

// newApp loads configuration and builds the orchestrator. Tests replace it.
var newApp = func(cmd *cobra.Command) (*app, error) {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	version, err := sdk.Resolve(cfg.SDKVersion, cfg.SDKVersionFile, cfg.SDKPath)
	if err != nil {
		log.Warn("Toolchain version unknown, framework summaries and module URLs are disabled", zap.Error(err))
		version = ""
	}

	registry := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	store, err := cache.NewStore(cmd.Context(), cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to open dependency cache: %w", err)
	}

	deps := cache.New(store, cache.WithLogger(log), cache.WithRecorder(recorder))

	opts := compiler.OptionsFromConfig(cfg, version)
	opts.Cache = deps
	opts.Logger = log
	opts.Recorder = recorder

	orch, err := compiler.New(opts)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}

	log.Debug("Loaded configuration",
		zap.String("sdk_version", version),
		zap.Int("workers", cfg.Workers),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("workspace", orch.Workspace().Path()),
	)

	return &app{
		cfg:      cfg,
		log:      log,
		registry: registry,
		deps:     deps,
		compiler: orch,
	}, nil
}

// loadConfig loads configuration relative to the working directory and
// builds the logger
func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg, err := config.NewLoader().LoadForCommand(cmd, cwd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	return cfg, log, nil
}

// Close shuts down the orchestrator and the cache
func (a *app) Close() error {
	var err error
	if a.compiler != nil {
		err = multierr.Append(err, a.compiler.Close())
	}

	if a.deps != nil {
		err = multierr.Append(err, a.deps.Close())
	}

	_ = a.log.Sync()
	return err
}
