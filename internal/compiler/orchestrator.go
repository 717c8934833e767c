// Package compiler turns Dart source into JavaScript using either the batch
// build pipeline or a pool of incremental compiler workers.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Norgate-AV/pcs/internal/cache"
	"github.com/Norgate-AV/pcs/internal/config"
	"github.com/Norgate-AV/pcs/internal/imports"
	"github.com/Norgate-AV/pcs/internal/logger"
	"github.com/Norgate-AV/pcs/internal/metrics"
	"github.com/Norgate-AV/pcs/internal/sdk"
	"github.com/Norgate-AV/pcs/internal/worker"
	"github.com/Norgate-AV/pcs/internal/workspace"
)

// ErrClosed is returned by compiles issued after Close
var ErrClosed = errors.New("compiler closed")

const (
	outputJS        = "main.dart.js"
	outputSourceMap = "main.dart.js.map"
	sourceName      = "main.dart"
)

// WorkPool runs incremental compile requests
type WorkPool interface {
	DoWork(ctx context.Context, req worker.WorkRequest) (worker.WorkResponse, error)
	Terminate() error
}

// Options configures an Orchestrator
type Options struct {
	// Parent directory for the workspace and transient compile directories
	WorkDir string

	SDKPath         string
	SDKVersion      string
	ArtifactBaseURL string

	BuildCommand   []string
	ResolveCommand []string
	DDCCommand     []string

	Workers        int
	CompileTimeout time.Duration

	// Dependency snapshot cache; nil disables caching
	Cache workspace.DependencyCache

	Logger     *zap.Logger
	Recorder   metrics.Recorder
	Runner     Runner
	Pool       WorkPool
	Downloader workspace.Downloader
}

// OptionsFromConfig maps the loaded configuration onto Options.
// version is the resolved toolchain version, possibly empty.
func OptionsFromConfig(cfg *config.Config, version string) Options {
	return Options{
		WorkDir:         cfg.WorkDir,
		SDKPath:         cfg.SDKPath,
		SDKVersion:      version,
		ArtifactBaseURL: cfg.ArtifactBaseURL,
		BuildCommand:    cfg.BuildCommand,
		ResolveCommand:  cfg.ResolveCommand,
		DDCCommand:      cfg.DDCCommand,
		Workers:         cfg.Workers,
		CompileTimeout:  cfg.CompileTimeout,
	}
}

// Orchestrator owns one workspace and one worker pool and runs compiles
// against them
type Orchestrator struct {
	opts     Options
	ws       *workspace.Workspace
	pool     WorkPool
	runner   Runner
	builder  *CommandBuilder
	deps     workspace.DependencyCache
	log      *zap.Logger
	recorder metrics.Recorder

	// wsLock grants exclusive use of the workspace to a batch compile or to
	// framework initialization
	wsLock *semaphore.Weighted

	requestID atomic.Int64
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New creates the workspace and the worker pool
func New(opts Options) (*Orchestrator, error) {
	if len(opts.BuildCommand) == 0 {
		opts.BuildCommand = config.DefaultBuildCommand
	}

	if len(opts.ResolveCommand) == 0 {
		opts.ResolveCommand = config.DefaultResolveCommand
	}

	if len(opts.DDCCommand) == 0 {
		opts.DDCCommand = config.DefaultDDCCommand
	}

	if opts.ArtifactBaseURL == "" {
		opts.ArtifactBaseURL = config.DefaultArtifactBaseURL
	}

	o := &Orchestrator{
		opts:     opts,
		runner:   opts.Runner,
		builder:  NewCommandBuilder(opts.SDKPath),
		deps:     opts.Cache,
		log:      logger.OrNop(opts.Logger),
		recorder: opts.Recorder,
		wsLock:   semaphore.NewWeighted(1),
	}

	if o.runner == nil {
		o.runner = NewExecRunner()
	}

	if o.recorder == nil {
		o.recorder = metrics.NoopRecorder{}
	}

	wsOpts := []workspace.Option{
		workspace.WithLogger(o.log),
		workspace.WithResolver(NewCommandResolver(o.runner, o.builder, opts.ResolveCommand, o.log)),
		workspace.WithDownloader(opts.Downloader),
	}

	if opts.SDKVersion != "" {
		wsOpts = append(wsOpts, workspace.WithSummaryURL(sdk.SummaryURL(opts.ArtifactBaseURL, opts.SDKVersion)))
	}

	ws, err := workspace.New(opts.WorkDir, wsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	o.ws = ws

	o.pool = opts.Pool
	if o.pool == nil {
		ddc := o.builder.Build(opts.DDCCommand, ws.Path())
		o.pool = worker.NewPool(func() *exec.Cmd {
			cmd := exec.Command(ddc.Name, ddc.Args...)
			cmd.Dir = ddc.Dir
			return cmd
		}, opts.Workers, worker.WithLogger(o.log), worker.WithRecorder(o.recorder))
	}

	return o, nil
}

// Workspace returns the workspace compiles run in
func (o *Orchestrator) Workspace() *workspace.Workspace {
	return o.ws
}

// Compile compiles source with the batch build pipeline
func (o *Orchestrator) Compile(ctx context.Context, source string, returnSourceMap bool) (*Result, error) {
	if o.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	log := o.log.With(zap.String("compile_id", uuid.NewString()), zap.String("backend", metrics.BackendBatch))

	imps := imports.Parse(source)
	if uri, bad := imports.UnsupportedImport(imps); bad {
		log.Info("Rejected unsupported import", zap.String("import", uri))
		o.recorder.ObserveCompile(metrics.BackendBatch, metrics.OutcomeRejected, time.Since(start))
		return unsupportedImport(uri), nil
	}

	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	if err := o.wsLock.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire workspace: %w", err)
	}
	defer o.wsLock.Release(1)

	if o.closed.Load() {
		return nil, ErrClosed
	}

	if imports.UsesRestrictedFramework(imps) {
		o.ws.InitializeFramework(ctx)
	}

	res, err := o.compileBatch(ctx, log, source, returnSourceMap)
	o.observe(metrics.BackendBatch, res, err, start, log)

	return res, err
}

func (o *Orchestrator) compileBatch(ctx context.Context, log *zap.Logger, source string, returnSourceMap bool) (res *Result, err error) {
	defer func() {
		if rmErr := os.RemoveAll(o.ws.OutputDir()); rmErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to remove build output: %w", rmErr))
		}
	}()

	if o.deps != nil {
		if err := o.ws.RefreshDependencies(ctx, o.deps); err != nil {
			return nil, fmt.Errorf("failed to refresh dependencies: %w", err)
		}
	}

	if err := os.WriteFile(o.ws.EntryPoint(), []byte(source), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write entry point: %w", err)
	}

	res, err = o.runBuildTwiceForStalenessWorkaround(ctx, log)
	if err != nil || res != nil {
		return res, err
	}

	js, err := os.ReadFile(filepath.Join(o.ws.OutputDir(), outputJS))
	if err != nil {
		return nil, fmt.Errorf("failed to read compiled output: %w", err)
	}

	res = &Result{CompiledJS: string(js)}

	if returnSourceMap {
		if sm, err := os.ReadFile(filepath.Join(o.ws.OutputDir(), outputSourceMap)); err == nil {
			res.SourceMap = string(sm)
		}
	}

	if o.deps != nil {
		if err := o.ws.SnapshotDependencies(ctx, o.deps); err != nil {
			if errors.Is(err, cache.ErrCorrupt) || errors.Is(err, cache.ErrInvalidDirectory) {
				return nil, err
			}

			log.Warn("Failed to store dependency snapshot", zap.Error(err))
		}
	}

	return res, nil
}

// runBuildTwiceForStalenessWorkaround runs the build pipeline twice. The
// first run after the entry point changes can emit output from the previous
// source; the second run is always current. It returns a failure result when
// either run exits non-zero and nil when both succeed.
func (o *Orchestrator) runBuildTwiceForStalenessWorkaround(ctx context.Context, log *zap.Logger) (*Result, error) {
	for run := 1; run <= 2; run++ {
		code, stderr, err := o.runBuild(ctx, log)
		if err != nil {
			return nil, err
		}

		if !IsSuccess(code) {
			log.Info("Build failed",
				zap.Int("run", run),
				zap.Int("exit_code", code),
				zap.String("reason", GetErrorMessage(code)),
			)

			if stderr == "" {
				stderr = fmt.Sprintf("build failed with exit code %d: %s", code, GetErrorMessage(code))
			}

			return failure(stderr), nil
		}
	}

	return nil, nil
}

func (o *Orchestrator) runBuild(ctx context.Context, log *zap.Logger) (int, string, error) {
	var stderr []string

	code, err := o.runner.Run(ctx, o.builder.Build(o.opts.BuildCommand, o.ws.Path()), LineHandlers{
		Stdout: func(line string) { log.Info(line) },
		Stderr: func(line string) {
			log.Warn(line)
			stderr = append(stderr, line)
		},
	})
	if err != nil {
		return -1, "", fmt.Errorf("failed to run build: %w", err)
	}

	return code, strings.Join(stderr, "\n"), nil
}

// CompileDDC compiles source with an incremental compiler worker
func (o *Orchestrator) CompileDDC(ctx context.Context, source string) (*Result, error) {
	if o.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	log := o.log.With(zap.String("compile_id", uuid.NewString()), zap.String("backend", metrics.BackendIncremental))

	imps := imports.Parse(source)
	if uri, bad := imports.UnsupportedImport(imps); bad {
		log.Info("Rejected unsupported import", zap.String("import", uri))
		o.recorder.ObserveCompile(metrics.BackendIncremental, metrics.OutcomeRejected, time.Since(start))
		return unsupportedImport(uri), nil
	}

	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	res, err := o.compileDDC(ctx, log, source, imports.UsesRestrictedFramework(imps))
	o.observe(metrics.BackendIncremental, res, err, start, log)

	return res, err
}

func (o *Orchestrator) compileDDC(ctx context.Context, log *zap.Logger, source string, framework bool) (res *Result, err error) {
	in := DDCInput{PackagesFile: o.ws.PackagesFile()}

	if framework {
		o.initializeFramework(ctx, log)

		if _, err := os.Stat(o.ws.SummaryFile()); err == nil {
			in.Summary = o.ws.SummaryFile()
		}
	}

	tmp, err := os.MkdirTemp(o.opts.WorkDir, "pcs-ddc-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmp); rmErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to remove temp directory: %w", rmErr))
		}
	}()

	in.Source = filepath.Join(tmp, sourceName)
	in.Output = filepath.Join(tmp, outputJS)

	if err := os.WriteFile(in.Source, []byte(source), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write source: %w", err)
	}

	resp, err := o.pool.DoWork(ctx, worker.WorkRequest{
		Arguments: o.builder.DDCArgs(in),
		RequestID: int(o.requestID.Add(1)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run incremental compiler: %w", err)
	}

	if !IsSuccess(resp.ExitCode) {
		log.Info("Incremental compile failed",
			zap.Int("exit_code", resp.ExitCode),
			zap.String("reason", GetErrorMessage(resp.ExitCode)),
		)

		output := strings.TrimSpace(resp.Output)
		if output == "" {
			output = fmt.Sprintf("compile failed with exit code %d: %s", resp.ExitCode, GetErrorMessage(resp.ExitCode))
		}

		return failure(output), nil
	}

	js, err := os.ReadFile(in.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to read compiled output: %w", err)
	}

	res = &Result{CompiledJS: string(js)}
	if o.opts.SDKVersion != "" {
		res.ModulesBaseURL = sdk.ModulesBaseURL(o.opts.ArtifactBaseURL, o.opts.SDKVersion)
	}

	return res, nil
}

// Warmup initializes framework support ahead of the first framework compile
func (o *Orchestrator) Warmup(ctx context.Context) workspace.FrameworkState {
	o.initializeFramework(ctx, o.log)
	return o.ws.State()
}

// initializeFramework runs framework initialization outside a batch compile.
// It waits for any batch compile to leave the workspace first.
func (o *Orchestrator) initializeFramework(ctx context.Context, log *zap.Logger) {
	if o.ws.State() == workspace.FrameworkReady {
		return
	}

	if err := o.wsLock.Acquire(ctx, 1); err != nil {
		log.Warn("Framework initialization skipped", zap.Error(err))
		return
	}
	defer o.wsLock.Release(1)

	if o.closed.Load() {
		return
	}

	o.ws.InitializeFramework(ctx)
}

// Close terminates the worker pool and removes the workspace. It waits for
// an in-flight batch compile or framework initialization and is safe to call
// more than once.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() {
		o.closed.Store(true)

		// Acquire only fails on a done context
		_ = o.wsLock.Acquire(context.Background(), 1)
		defer o.wsLock.Release(1)

		o.closeErr = multierr.Combine(
			o.pool.Terminate(),
			o.ws.Dispose(),
		)
	})

	return o.closeErr
}

func (o *Orchestrator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.opts.CompileTimeout > 0 {
		return context.WithTimeout(ctx, o.opts.CompileTimeout)
	}

	return context.WithCancel(ctx)
}

func (o *Orchestrator) observe(backend string, res *Result, err error, start time.Time, log *zap.Logger) {
	d := time.Since(start)

	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
		log.Error("Compile error", zap.Error(err), zap.Duration("duration", d))
	case !res.Success():
		outcome = metrics.OutcomeFailure
		log.Info("Compile finished with problems", zap.Int("problems", len(res.Problems)), zap.Duration("duration", d))
	default:
		log.Info("Compile succeeded", zap.Int("bytes", len(res.CompiledJS)), zap.Duration("duration", d))
	}

	o.recorder.ObserveCompile(backend, outcome, d)
}
