package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/slimpack/internal/config"
)

// Global carries state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path, relative to the project root (default: slimpack.yaml)" placeholder:"PATH"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build BuildCmd `cmd:"" default:"withargs" help:"Build the client, server and CSS outputs (default command)"`
	E2E   E2ECmd   `cmd:"" name:"e2e" help:"Run the end-to-end tests using cypress"`
	Key   KeyCmd   `cmd:"" help:"Generate a session key and append it to an env file"`

	logger *slog.Logger `kong:"-"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	c.logger = config.NewLogger(os.Stderr, c.Verbose)
	slog.SetDefault(c.logger)
	return nil
}

// Logger returns the logger installed by AfterApply.
func (c *CLI) Logger() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// projectRoot is the directory slimpack was started in.
func projectRoot() (string, error) {
	return os.Getwd()
}
