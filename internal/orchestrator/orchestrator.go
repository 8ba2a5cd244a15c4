// Package orchestrator sequences the build resources and auxiliary processes
// of one slimpack run according to the selected Mode.
package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/slimpack/internal/config"
	ferrors "git.home.luguber.info/inful/slimpack/internal/foundation/errors"
	"git.home.luguber.info/inful/slimpack/internal/logfields"
	"git.home.luguber.info/inful/slimpack/internal/metrics"
	"git.home.luguber.info/inful/slimpack/internal/process"
	"git.home.luguber.info/inful/slimpack/internal/resource"
	"git.home.luguber.info/inful/slimpack/internal/shutdown"
	"git.home.luguber.info/inful/slimpack/internal/watch"
)

// Outcome is the result of a run. ExitCode is the status the process should
// exit with.
type Outcome struct {
	Mode     Mode
	ExitCode int
}

// ResourceFactory builds the client and server resources of a run.
type ResourceFactory interface {
	Client() (resource.Resource, error)
	Server() (resource.Resource, error)
}

// ChangeSource reports debounced source changes.
type ChangeSource interface {
	Changes() <-chan struct{}
	Run(ctx context.Context) error
}

// Orchestrator runs one mode recipe.
type Orchestrator struct {
	cfg   *config.Config
	flags Flags
	mode  Mode

	logger      *slog.Logger
	recorder    metrics.Recorder
	launcher    process.Launcher
	coordinator *shutdown.Coordinator
	stdout      io.Writer

	newResources func(resource.Options) ResourceFactory
	newCSS       func(watch bool) (process.CSSCompiler, error)
	newServices  func() process.Services
	newWatcher   func(root string) (ChangeSource, error)
	settle       func(ctx context.Context) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }

// WithLauncher sets the child process launcher.
func WithLauncher(l process.Launcher) Option { return func(o *Orchestrator) { o.launcher = l } }

// WithCoordinator sets the shutdown coordinator owning the run's hooks.
func WithCoordinator(c *shutdown.Coordinator) Option {
	return func(o *Orchestrator) { o.coordinator = c }
}

// WithOutput sets where terminal control sequences are written.
func WithOutput(w io.Writer) Option { return func(o *Orchestrator) { o.stdout = w } }

// WithResourceFactory replaces the esbuild-backed resource factory.
func WithResourceFactory(fn func(resource.Options) ResourceFactory) Option {
	return func(o *Orchestrator) { o.newResources = fn }
}

// WithCSSCompiler replaces the CSS compiler constructor.
func WithCSSCompiler(fn func(watch bool) (process.CSSCompiler, error)) Option {
	return func(o *Orchestrator) { o.newCSS = fn }
}

// WithServices replaces the dependency-service controller constructor.
func WithServices(fn func() process.Services) Option {
	return func(o *Orchestrator) { o.newServices = fn }
}

// WithWatcher replaces the source watcher used by the test mode.
func WithWatcher(fn func(root string) (ChangeSource, error)) Option {
	return func(o *Orchestrator) { o.newWatcher = fn }
}

// WithSettle replaces the wait between starting services and the first
// server rebuild.
func WithSettle(fn func(ctx context.Context) error) Option {
	return func(o *Orchestrator) { o.settle = fn }
}

// New returns an Orchestrator for cfg in the mode selected by flags.
func New(cfg *config.Config, flags Flags, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		flags:    flags,
		mode:     SelectMode(flags),
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		stdout:   os.Stdout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.launcher == nil {
		o.launcher = process.NewExecLauncher(o.logger)
	}
	if o.coordinator == nil {
		o.coordinator = shutdown.NewCoordinator(cfg.Shutdown.WatchGrace, o.logger)
	}
	if o.newResources == nil {
		o.newResources = func(ro resource.Options) ResourceFactory {
			ro.Recorder = o.recorder
			ro.Logger = o.logger
			return resource.NewFactory(o.cfg, ro)
		}
	}
	if o.newCSS == nil {
		o.newCSS = func(watch bool) (process.CSSCompiler, error) {
			return process.NewCSSCompiler(o.cfg, process.CSSOptions{
				Watch:    watch,
				Launcher: o.launcher,
				Recorder: o.recorder,
				Logger:   o.logger,
			})
		}
	}
	if o.newServices == nil {
		o.newServices = func() process.Services {
			return process.NewServices(o.cfg, process.ServicesOptions{
				Ignore:   o.flags.IgnoreServices,
				Launcher: o.launcher,
				Logger:   o.logger,
			})
		}
	}
	if o.newWatcher == nil {
		o.newWatcher = func(root string) (ChangeSource, error) {
			return watch.New(root, watch.WithLogger(o.logger))
		}
	}
	if o.settle == nil {
		o.settle = func(ctx context.Context) error {
			return process.WaitReady(ctx, o.cfg.Services, o.launcher, o.logger)
		}
	}
	return o
}

// Mode returns the selected mode.
func (o *Orchestrator) Mode() Mode { return o.mode }

// Run executes the mode recipe. ctx is the run's interruption signal.
func (o *Orchestrator) Run(ctx context.Context) (Outcome, error) {
	runID := uuid.NewString()
	o.logger = o.logger.With(logfields.RunID(runID), logfields.Mode(string(o.mode)))
	start := time.Now()
	defer func() { o.recorder.ObserveRunDuration(string(o.mode), time.Since(start)) }()

	o.logger.Info("Starting run")
	_ = o.cleanOutputs()

	factory := o.newResources(resource.Options{
		Dev:  o.mode == ModeDev,
		Test: o.mode == ModeTest,
	})

	var (
		out Outcome
		err error
	)
	if o.mode == ModeTest {
		out, err = o.runTestMode(ctx, factory)
	} else {
		out, err = o.runWithClient(ctx, factory)
	}
	out.Mode = o.mode

	o.logger.Info("Run finished", logfields.ExitCode(out.ExitCode),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return out, err
}

func (o *Orchestrator) runWithClient(ctx context.Context, factory ResourceFactory) (Outcome, error) {
	client, err := factory.Client()
	if err != nil {
		return failed(err)
	}
	server, err := factory.Server()
	if err != nil {
		_ = client.Dispose()
		return failed(err)
	}

	switch o.mode {
	case ModeDev:
		return o.runDev(ctx, client, server)
	case ModeWatch:
		return o.runWatch(ctx, client, server)
	default:
		return o.runBuild(ctx, client, server)
	}
}

// cleanOutputs removes the previous client and server output. Missing
// directories are ignored. Removal failures are logged as warnings and
// returned joined so the run can carry on.
func (o *Orchestrator) cleanOutputs() error {
	var errs []error
	for _, dir := range []string{o.cfg.ClientDist, o.cfg.ServerDist} {
		path := o.cfg.Path(dir)
		if !safeToRemove(o.cfg.BaseDir, path) {
			o.logger.Warn("Refusing to clean output directory containing the project", logfields.Path(dir))
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			cerr := ferrors.FileSystemError("failed to clean output directory").
				WithCause(err).
				Warning().
				WithContext("path", dir).
				Build()
			o.logger.Warn("Failed to clean output directory", logfields.Path(dir), logfields.Error(cerr))
			errs = append(errs, cerr)
			continue
		}
		o.logger.Debug("Cleaned output directory", logfields.Path(dir))
	}
	return errors.Join(errs...)
}

// safeToRemove rejects the project root and its ancestors.
func safeToRemove(baseDir, path string) bool {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absPath, absBase)
	if err != nil {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// waitForInterrupt blocks until ctx is done and runs the registered hooks.
func (o *Orchestrator) waitForInterrupt(ctx context.Context) (Outcome, error) {
	o.logger.Info("Waiting for changes, press Ctrl+C to stop")
	return settled(o.coordinator.Wait(ctx))
}

// abort runs the registered hooks after a failure or an early interruption.
func (o *Orchestrator) abort(ctx context.Context, err error) (Outcome, error) {
	shutdownErr := o.coordinator.Shutdown()
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return settled(shutdownErr)
	}
	return failed(err)
}

func settled(shutdownErr error) (Outcome, error) {
	if shutdownErr != nil {
		return failed(shutdownErr)
	}
	return Outcome{ExitCode: 0}, nil
}

func failed(err error) (Outcome, error) {
	return Outcome{ExitCode: 1}, err
}
