package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/slimpack/internal/config"
	"git.home.luguber.info/inful/slimpack/internal/e2e"
	ferrors "git.home.luguber.info/inful/slimpack/internal/foundation/errors"
	"git.home.luguber.info/inful/slimpack/internal/shutdown"
)

// E2ECmd implements the 'e2e' command.
type E2ECmd struct {
	Watch               bool `help:"Open cypress in interactive mode"`
	IgnoreDockerCompose bool `name:"ignore-docker-compose" help:"Do not start or stop the docker compose services"`
}

func (c *E2ECmd) Run(g *Global, root *CLI) error {
	baseDir, err := projectRoot()
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}
	config.LoadEnvFiles(baseDir)
	cfg := config.Load(baseDir, root.Config)

	coordinator := shutdown.NewCoordinator(cfg.Shutdown.DevGrace, g.Logger)
	ctx, stop := coordinator.Listen(context.Background())
	defer stop()

	code, err := e2e.New(cfg, e2e.Options{
		Watch:          c.Watch,
		IgnoreServices: c.IgnoreDockerCompose,
		Coordinator:    coordinator,
		Logger:         g.Logger,
	}).Run(ctx)
	if err == nil && code != 0 {
		return ferrors.NewExitCodeError(e2e.ToolCypress, code)
	}
	return err
}
