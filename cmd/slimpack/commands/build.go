package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/slimpack/internal/config"
	ferrors "git.home.luguber.info/inful/slimpack/internal/foundation/errors"
	"git.home.luguber.info/inful/slimpack/internal/logfields"
	"git.home.luguber.info/inful/slimpack/internal/metrics"
	"git.home.luguber.info/inful/slimpack/internal/orchestrator"
	"git.home.luguber.info/inful/slimpack/internal/shutdown"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Watch               bool `help:"Rebuild on source changes"`
	Dev                 bool `help:"Start dependency services and the dev server, and watch"`
	Test                bool `help:"Build the server with the test profile and run the test runner"`
	IgnoreDockerCompose bool `name:"ignore-docker-compose" help:"Do not start or stop the docker compose services"`
}

// Flags converts the command-line switches into orchestrator flags.
func (b *BuildCmd) Flags() orchestrator.Flags {
	return orchestrator.Flags{
		Watch:          b.Watch,
		Dev:            b.Dev,
		Test:           b.Test,
		IgnoreServices: b.IgnoreDockerCompose,
	}
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	baseDir, err := projectRoot()
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}
	config.LoadEnvFiles(baseDir)
	cfg := config.Load(baseDir, root.Config)

	if b.Dev && b.Watch {
		g.Logger.Warn("--dev already watches the sources, --watch is redundant")
	}

	coordinator := shutdown.NewCoordinator(cfg.Shutdown.WatchGrace, g.Logger)
	ctx, stop := coordinator.Listen(context.Background())
	defer stop()

	return RunBuild(ctx, cfg, b.Flags(), coordinator, g.Logger)
}

// RunBuild runs one orchestrator recipe. Long-running modes expose metrics
// when a listen address is configured.
func RunBuild(ctx context.Context, cfg *config.Config, flags orchestrator.Flags, coordinator *shutdown.Coordinator, logger *slog.Logger) error {
	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithCoordinator(coordinator),
	}

	mode := orchestrator.SelectMode(flags)
	if cfg.Metrics.Listen != "" && mode.LongRunning(flags) {
		reg := prom.NewRegistry()
		opts = append(opts, orchestrator.WithRecorder(metrics.NewPrometheusRecorder(reg)))
		startMetrics(cfg.Metrics, reg, coordinator, logger)
	}

	out, err := orchestrator.New(cfg, flags, opts...).Run(ctx)
	if err == nil && out.ExitCode != 0 {
		return ferrors.NewExitCodeError("slimpack", out.ExitCode)
	}
	return err
}

// startMetrics serves reg until the shutdown hooks run.
func startMetrics(mc config.MetricsConfig, reg *prom.Registry, coordinator *shutdown.Coordinator, logger *slog.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- metrics.Serve(ctx, mc.Listen, mc.Path, reg) }()

	coordinator.Hooks().Add("stop metrics", func(hookCtx context.Context) error {
		cancel()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("Metrics listener failed", logfields.Error(err))
			}
			return nil
		case <-hookCtx.Done():
			return hookCtx.Err()
		}
	})
}
