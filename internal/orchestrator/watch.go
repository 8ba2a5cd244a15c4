package orchestrator

import (
	"context"
	"path"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/slimpack/internal/logfields"
	"git.home.luguber.info/inful/slimpack/internal/process"
	"git.home.luguber.info/inful/slimpack/internal/resource"
	"git.home.luguber.info/inful/slimpack/internal/shutdown"
)

// runWatch keeps the outputs current until interrupted.
func (o *Orchestrator) runWatch(ctx context.Context, client, server resource.Resource) (Outcome, error) {
	o.coordinator.SetGrace(o.cfg.Shutdown.WatchGrace)

	var css slot[process.CSSCompiler]
	hooks := o.coordinator.Hooks()
	hooks.Add("kill css", killCSSHook(&css))
	hooks.AddConcurrent("dispose resources", disposeHook(client), disposeHook(server))

	c, err := o.newCSS(true)
	if err != nil {
		return o.abort(ctx, err)
	}
	css.set(c)

	if err := watchAll(client, server); err != nil {
		return o.abort(ctx, err)
	}
	return o.waitForInterrupt(ctx)
}

// runDev starts the dependency services, the dev server and both watchers.
// The hooks are registered up front so an early failure or interruption
// releases whatever was started.
func (o *Orchestrator) runDev(ctx context.Context, client, server resource.Resource) (Outcome, error) {
	o.coordinator.SetGrace(o.cfg.Shutdown.DevGrace)

	var (
		devServer slot[process.Handle]
		css       slot[process.CSSCompiler]
	)
	services := o.newServices()

	hooks := o.coordinator.Hooks()
	hooks.Add("stop dev server", func(ctx context.Context) error {
		if h, ok := devServer.get(); ok {
			return h.Stop(ctx)
		}
		return nil
	})
	hooks.Add("kill css", killCSSHook(&css))
	hooks.Add("services down", services.Down)
	hooks.AddConcurrent("dispose resources", disposeHook(client), disposeHook(server))

	c, err := o.newCSS(true)
	if err != nil {
		return o.abort(ctx, err)
	}
	css.set(c)

	if err := services.Up(ctx); err != nil {
		return o.abort(ctx, err)
	}
	if err := o.settle(ctx); err != nil {
		return o.abort(ctx, err)
	}
	// The dev server runs the compiled entry point, so it must exist first.
	if err := server.Rebuild(); err != nil {
		return o.abort(ctx, err)
	}

	cmd := process.NewCommand(o.cfg.Commands.DevServer, path.Join(filepath.ToSlash(o.cfg.ServerDist), "index.js"))
	cmd.Dir = o.cfg.BaseDir
	if o.nodeCheckEnabled() {
		process.CheckNodeWatch(ctx, o.launcher, cmd.Name, o.logger)
	}
	h, err := o.launcher.Start(cmd)
	if err != nil {
		return o.abort(ctx, err)
	}
	devServer.set(h)
	o.logger.Info("Started dev server", logfields.Command(cmd.String()), logfields.PID(h.PID()))

	if err := watchAll(client, server); err != nil {
		return o.abort(ctx, err)
	}
	return o.waitForInterrupt(ctx)
}

func (o *Orchestrator) nodeCheckEnabled() bool {
	if o.cfg.Commands.NodeCheck != nil && !*o.cfg.Commands.NodeCheck {
		return false
	}
	if len(o.cfg.Commands.DevServer) == 0 {
		return false
	}
	return filepath.Base(o.cfg.Commands.DevServer[0]) == "node"
}

// watchAll puts every resource into watch mode concurrently and waits until
// each watch is established.
func watchAll(resources ...resource.Resource) error {
	var g errgroup.Group
	for _, r := range resources {
		g.Go(r.Watch)
	}
	return g.Wait()
}

func disposeHook(r resource.Resource) shutdown.HookFunc {
	return func(context.Context) error { return r.Dispose() }
}

func killCSSHook(css *slot[process.CSSCompiler]) shutdown.HookFunc {
	return func(context.Context) error {
		if c, ok := css.get(); ok {
			return c.Kill()
		}
		return nil
	}
}

// slot holds a value created after the hook that releases it was registered.
type slot[T any] struct {
	mu sync.Mutex
	v  T
	ok bool
}

func (s *slot[T]) set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v, s.ok = v, true
}

func (s *slot[T]) get() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v, s.ok
}
