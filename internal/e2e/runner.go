package e2e

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"git.home.luguber.info/inful/slimpack/internal/config"
	ferrors "git.home.luguber.info/inful/slimpack/internal/foundation/errors"
	"git.home.luguber.info/inful/slimpack/internal/logfields"
	"git.home.luguber.info/inful/slimpack/internal/process"
	"git.home.luguber.info/inful/slimpack/internal/shutdown"
)

// Tool names used in exit-code errors.
const (
	ToolBuildScript = "build script"
	ToolCypress     = "cypress"
)

// Options configure a Runner.
type Options struct {
	// Watch opens the interactive cypress runner instead of a headless run.
	Watch          bool
	IgnoreServices bool

	Launcher    process.Launcher
	Coordinator *shutdown.Coordinator
	Logger      *slog.Logger
	Stdout      io.Writer
	// Services replaces the dependency-service controller.
	Services process.Services
}

// Runner executes one end-to-end session.
type Runner struct {
	cfg         *config.Config
	opts        Options
	launcher    process.Launcher
	coordinator *shutdown.Coordinator
	logger      *slog.Logger
	stdout      io.Writer
	services    process.Services
}

// New returns a Runner for the project described by cfg.
func New(cfg *config.Config, opts Options) *Runner {
	r := &Runner{
		cfg:         cfg,
		opts:        opts,
		launcher:    opts.Launcher,
		coordinator: opts.Coordinator,
		logger:      opts.Logger,
		stdout:      opts.Stdout,
		services:    opts.Services,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.stdout == nil {
		r.stdout = os.Stdout
	}
	if r.launcher == nil {
		r.launcher = process.NewExecLauncher(r.logger)
	}
	if r.coordinator == nil {
		r.coordinator = shutdown.NewCoordinator(cfg.Shutdown.DevGrace, r.logger)
	}
	if r.services == nil {
		r.services = process.NewServices(cfg, process.ServicesOptions{
			Ignore:   opts.IgnoreServices,
			Launcher: r.launcher,
			Logger:   r.logger,
		})
	}
	return r
}

// Run starts the services, builds and starts the application, runs cypress
// and returns its exit code. The server and the services are released on
// every path out of Run.
func (r *Runner) Run(ctx context.Context) (int, error) {
	cypressConfig, err := findCypressConfig(r.cfg)
	if err != nil {
		return 1, err
	}
	scripts, err := readScripts(r.cfg)
	if err != nil {
		return 1, err
	}
	r.logger.Debug("Found cypress configuration", logfields.Path(cypressConfig))

	r.coordinator.SetGrace(r.cfg.Shutdown.DevGrace)
	var (
		mu     sync.Mutex
		server process.Handle
	)
	hooks := r.coordinator.Hooks()
	hooks.Add("stop server", func(ctx context.Context) error {
		mu.Lock()
		h := server
		mu.Unlock()
		if h == nil {
			return nil
		}
		return h.Stop(ctx)
	})
	hooks.Add("services down", r.services.Down)

	if err := r.services.Up(ctx); err != nil {
		return r.abort(ctx, err)
	}

	code, err := process.Run(ctx, r.launcher, r.script(scripts.Build, nil))
	if err != nil {
		return r.abort(ctx, err)
	}
	if code != 0 {
		return r.abort(ctx, ferrors.NewExitCodeError(ToolBuildScript, code))
	}

	signal := newReadySignal(ReadyMarker)
	h, err := r.launcher.Start(r.script(scripts.Start, io.MultiWriter(r.stdout, signal)))
	if err != nil {
		return r.abort(ctx, err)
	}
	mu.Lock()
	server = h
	mu.Unlock()

	if err := r.waitForServer(ctx, h, signal); err != nil {
		return r.abort(ctx, err)
	}
	r.logger.Info("Application server ready", logfields.PID(h.PID()))

	mode := "run"
	if r.opts.Watch {
		mode = "open"
	}
	cypress := process.NewCommand([]string{cypressBin(r.cfg)}, mode)
	cypress.Dir = r.cfg.BaseDir
	code, err = process.Run(ctx, r.launcher, cypress)
	if err != nil {
		return r.abort(ctx, err)
	}
	r.logger.Info("Tests have finished", logfields.ExitCode(code))

	if err := r.coordinator.Shutdown(); err != nil {
		return 1, err
	}
	if code != 0 {
		return code, ferrors.NewExitCodeError(ToolCypress, code)
	}
	return 0, nil
}

// script runs a package.json script through the shell in the project root.
func (r *Runner) script(line string, stdout io.Writer) process.Command {
	cmd := process.NewCommand([]string{"sh", "-c"}, line)
	cmd.Dir = r.cfg.BaseDir
	cmd.Stdout = stdout
	return cmd
}

// waitForServer blocks until the server prints ReadyMarker. A server that
// exits first is a failure.
func (r *Runner) waitForServer(ctx context.Context, h process.Handle, signal *readySignal) error {
	waitCtx, stopWaiting := context.WithCancel(ctx)
	defer stopWaiting()

	exited := make(chan int, 1)
	go func() {
		if code, err := h.Wait(waitCtx); err == nil {
			exited <- code
		}
	}()

	select {
	case <-signal.Ready():
		return nil
	case code := <-exited:
		return ferrors.ProcessError("Application server exited before it was ready").
			WithContext("exit_code", code).
			Build()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// abort releases whatever was started. An interruption is not a failure.
func (r *Runner) abort(ctx context.Context, err error) (int, error) {
	shutdownErr := r.coordinator.Shutdown()
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		if shutdownErr != nil {
			return 1, shutdownErr
		}
		return 0, nil
	}
	if exitErr, ok := ferrors.AsExitCode(err); ok {
		return exitErr.Code, err
	}
	return 1, fmt.Errorf("e2e: %w", err)
}
