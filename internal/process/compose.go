package process

import (
	"context"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/slimpack/internal/config"
	ferrors "git.home.luguber.info/inful/slimpack/internal/foundation/errors"
	"git.home.luguber.info/inful/slimpack/internal/logfields"
)

// Services controls the local dependency services declared in a compose manifest.
type Services interface {
	// Up starts the declared services and returns once the start command
	// has returned. It does not wait for the services to become healthy.
	Up(ctx context.Context) error
	// Down stops the services.
	Down(ctx context.Context) error
}

// ServicesOptions configure NewServices.
type ServicesOptions struct {
	// Ignore disables the controller (--ignore-docker-compose).
	Ignore   bool
	Launcher Launcher
	Logger   *slog.Logger
}

// NewServices returns the controller for the project's compose manifest, or
// an Absent controller when disabled or when no manifest exists.
func NewServices(cfg *config.Config, opts ServicesOptions) Services {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Ignore {
		logger.Warn("Skipping docker compose up/down commands")
		return AbsentServices{}
	}
	manifest := findManifest(cfg)
	if manifest == "" {
		logger.Debug("No compose manifest found, dependency services disabled", "files", cfg.Services.Files)
		return AbsentServices{}
	}

	launcher := opts.Launcher
	if launcher == nil {
		launcher = NewExecLauncher(logger)
	}
	return &composeServices{
		manifest: manifest,
		argv:     cfg.Services.Command,
		dir:      cfg.BaseDir,
		names:    serviceNames(cfg.Path(manifest)),
		launcher: launcher,
		logger:   logger,
	}
}

// AbsentServices is the controller of a project without dependency services.
type AbsentServices struct{}

func (AbsentServices) Up(context.Context) error   { return nil }
func (AbsentServices) Down(context.Context) error { return nil }

type composeServices struct {
	manifest string
	argv     []string
	dir      string
	names    []string
	launcher Launcher
	logger   *slog.Logger
}

func (s *composeServices) Up(ctx context.Context) error {
	s.logger.Info("Starting dependency services", logfields.Path(s.manifest), "services", s.names)
	return s.run(ctx, Run, "up", "-d")
}

// Down stops the services. When ctx ends first the compose command is left
// running so the services still get stopped after slimpack exits.
func (s *composeServices) Down(ctx context.Context) error {
	s.logger.Info("Stopping dependency services", logfields.Path(s.manifest))
	return s.run(ctx, Await, "down")
}

func (s *composeServices) run(ctx context.Context, wait func(context.Context, Launcher, Command) (int, error), args ...string) error {
	cmd := NewCommand(s.argv, append([]string{"-f", s.manifest}, args...)...)
	cmd.Dir = s.dir

	code, err := wait(ctx, s.launcher, cmd)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryServices, "compose command failed").
			WithContext("command", cmd.String()).
			Build()
	}
	if code != 0 {
		return ferrors.ServicesError("compose command failed").
			WithContext("command", cmd.String()).
			WithContext("exit_code", code).
			Build()
	}
	return nil
}

// findManifest returns the first configured manifest present in the project.
func findManifest(cfg *config.Config) string {
	for _, f := range cfg.Services.Files {
		if fileExists(cfg.Path(f)) {
			return f
		}
	}
	return ""
}

type composeManifest struct {
	Services map[string]yaml.Node `yaml:"services"`
}

// serviceNames lists the services declared in a manifest for logging.
// Unreadable manifests yield no names; compose reports the real error.
func serviceNames(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var m composeManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		slog.Debug("Could not parse compose manifest", logfields.Path(path), logfields.Error(err))
		return nil
	}
	names := make([]string, 0, len(m.Services))
	for name := range m.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
