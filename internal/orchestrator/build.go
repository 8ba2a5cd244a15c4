package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	ferrors "git.home.luguber.info/inful/slimpack/internal/foundation/errors"
	"git.home.luguber.info/inful/slimpack/internal/logfields"
	"git.home.luguber.info/inful/slimpack/internal/process"
	"git.home.luguber.info/inful/slimpack/internal/resource"
)

// runBuild rebuilds both targets while the CSS compiler runs once. Every
// member settles before the resources are disposed.
func (o *Orchestrator) runBuild(ctx context.Context, client, server resource.Resource) (Outcome, error) {
	css, err := o.newCSS(false)
	if err != nil {
		disposeAll(o, client, server)
		return failed(err)
	}

	var (
		g         errgroup.Group
		clientErr error
		serverErr error
		cssCode   int
		cssErr    error
	)
	g.Go(func() error {
		clientErr = client.Rebuild()
		return nil
	})
	g.Go(func() error {
		serverErr = server.Rebuild()
		return nil
	})
	g.Go(func() error {
		cssCode, cssErr = css.Wait(ctx)
		return nil
	})
	_ = g.Wait()

	disposeAll(o, client, server)

	if cssErr != nil {
		_ = css.Kill()
		if errors.Is(cssErr, context.Canceled) {
			return Outcome{ExitCode: ferrors.ExitInterrupted}, fmt.Errorf("build interrupted: %w", cssErr)
		}
		return failed(ferrors.WrapError(cssErr, ferrors.CategoryProcess, "CSS compiler did not finish").Build())
	}
	if cssCode != 0 {
		return Outcome{ExitCode: cssCode}, ferrors.NewExitCodeError(process.ToolTailwind, cssCode)
	}
	if err := errors.Join(clientErr, serverErr); err != nil {
		return failed(ferrors.WrapError(err, ferrors.CategoryBuild, "Build failed").Build())
	}
	o.logger.Info("Build complete")
	return Outcome{ExitCode: 0}, nil
}

// disposeAll releases every resource concurrently and waits for all of them.
func disposeAll(o *Orchestrator, resources ...resource.Resource) {
	var g errgroup.Group
	for _, r := range resources {
		r := r
		g.Go(func() error {
			if err := r.Dispose(); err != nil {
				o.logger.Warn("Dispose failed", logfields.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}
