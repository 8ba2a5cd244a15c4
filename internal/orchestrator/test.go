package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	ferrors "git.home.luguber.info/inful/slimpack/internal/foundation/errors"
	"git.home.luguber.info/inful/slimpack/internal/logfields"
	"git.home.luguber.info/inful/slimpack/internal/process"
	"git.home.luguber.info/inful/slimpack/internal/resource"
)

// ToolTestRunner names the test runner in exit-code errors and metrics.
const ToolTestRunner = "test runner"

// clearScreen resets the terminal between test cycles.
const clearScreen = "\x1Bc"

// runTestMode rebuilds the server and runs the test runner against its
// output, once or on every change of the server sources.
func (o *Orchestrator) runTestMode(ctx context.Context, factory ResourceFactory) (Outcome, error) {
	server, err := factory.Server()
	if err != nil {
		return failed(err)
	}
	if !o.flags.Watch {
		return o.runTestOnce(ctx, server)
	}
	return o.runTestWatch(ctx, server)
}

func (o *Orchestrator) runTestOnce(ctx context.Context, server resource.Resource) (Outcome, error) {
	defer disposeAll(o, server)

	if err := server.Rebuild(); err != nil {
		return failed(ferrors.WrapError(err, ferrors.CategoryBuild, "Server build failed").Build())
	}
	code, err := o.runTests(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Outcome{ExitCode: ferrors.ExitInterrupted}, fmt.Errorf("tests interrupted: %w", err)
		}
		return failed(err)
	}
	if code != 0 {
		return Outcome{ExitCode: code}, ferrors.NewExitCodeError(ToolTestRunner, code)
	}
	return Outcome{ExitCode: 0}, nil
}

// runTestWatch runs one cycle up front and one per debounced change. Cycles
// run on this goroutine, so a cycle never starts before the previous test
// runner has exited; changes made during a cycle queue exactly one more.
func (o *Orchestrator) runTestWatch(ctx context.Context, server resource.Resource) (Outcome, error) {
	o.coordinator.SetGrace(o.cfg.Shutdown.WatchGrace)
	o.coordinator.Hooks().AddConcurrent("dispose resources", disposeHook(server))

	w, err := o.newWatcher(o.cfg.Path(o.cfg.ServerSrcDir))
	if err != nil {
		return o.abort(ctx, err)
	}

	var g errgroup.Group
	g.Go(func() error { return w.Run(ctx) })
	defer func() {
		if err := g.Wait(); err != nil {
			o.logger.Warn("Source watcher stopped", logfields.Error(err))
		}
	}()

	o.testCycle(ctx, server)
	for {
		select {
		case <-ctx.Done():
			return settled(o.coordinator.Shutdown())
		case <-w.Changes():
			if ctx.Err() != nil {
				continue
			}
			_, _ = io.WriteString(o.stdout, clearScreen)
			o.recorder.IncWatchCycle(string(ModeTest))
			o.testCycle(ctx, server)
		}
	}
}

// testCycle rebuilds the server and runs the tests. Failures are reported
// and the loop waits for the next change.
func (o *Orchestrator) testCycle(ctx context.Context, server resource.Resource) {
	start := time.Now()
	if err := server.Rebuild(); err != nil {
		o.logger.Error("Server build failed, waiting for changes", logfields.Error(err))
		return
	}
	code, err := o.runTests(ctx)
	switch {
	case err != nil && ctx.Err() != nil:
		return
	case err != nil:
		o.logger.Error("Test runner failed", logfields.Error(err))
	default:
		o.logger.Info("Test run finished", logfields.ExitCode(code),
			logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	}
}

// runTests spawns the test runner against the server output and waits for
// it to exit. An interrupted runner is stopped before returning.
func (o *Orchestrator) runTests(ctx context.Context) (int, error) {
	cmd := process.NewCommand(o.cfg.Commands.Test, o.cfg.ServerDist)
	cmd.Dir = o.cfg.BaseDir

	h, err := o.launcher.Start(cmd)
	if err != nil {
		return -1, ferrors.WrapError(err, ferrors.CategoryProcess, "failed to start test runner").
			WithContext("command", cmd.String()).
			Build()
	}
	code, err := h.Wait(ctx)
	if err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), o.cfg.Shutdown.WatchGrace)
		defer cancel()
		_ = h.Stop(stopCtx)
		return -1, err
	}
	o.recorder.IncProcessExit(ToolTestRunner, code)
	return code, nil
}
