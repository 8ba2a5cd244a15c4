package process

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"git.home.luguber.info/inful/slimpack/internal/config"
	ferrors "git.home.luguber.info/inful/slimpack/internal/foundation/errors"
	"git.home.luguber.info/inful/slimpack/internal/logfields"
	"git.home.luguber.info/inful/slimpack/internal/metrics"
)

// ToolTailwind names the CSS compiler in logs, metrics and exit-code errors.
const ToolTailwind = "tailwindcss"

// CSSCompiler is the CSS compiler process reduced to its exit observation
// and termination.
type CSSCompiler interface {
	// Wait blocks until the compiler exits and returns its exit code.
	Wait(ctx context.Context) (int, error)
	// Kill asks the compiler to terminate.
	Kill() error
}

// CSSOptions configure NewCSSCompiler.
type CSSOptions struct {
	// Watch runs the compiler in continuous mode.
	Watch    bool
	Launcher Launcher
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

// NewCSSCompiler starts the CSS compiler for cfg. When the project has no
// CSS compiler configuration file an Absent compiler is returned.
func NewCSSCompiler(cfg *config.Config, opts CSSOptions) (CSSCompiler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if !fileExists(cfg.Path(cfg.CSS.ConfigFile)) {
		logger.Warn("No CSS compiler configuration found, skipping CSS bundle",
			logfields.Path(cfg.CSS.ConfigFile))
		return AbsentCSS{}, nil
	}

	cmd := NewCommand(tailwindArgv(cfg),
		"-i", dotSlash(cfg.CSSEntryPoint),
		"-o", dotSlash(cfg.CSSDist),
		"--minify")
	if opts.Watch {
		cmd.Args = append(cmd.Args, "--watch")
	}
	cmd.Dir = cfg.BaseDir

	launcher := opts.Launcher
	if launcher == nil {
		launcher = NewExecLauncher(logger)
	}
	h, err := launcher.Start(cmd)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryProcess, "failed to start CSS compiler").
			WithContext("command", cmd.String()).
			Build()
	}
	logger.Info("Started CSS compiler", logfields.Command(cmd.String()), logfields.PID(h.PID()))

	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &cssProcess{handle: h, recorder: recorder, logger: logger}, nil
}

// AbsentCSS stands in for a project without CSS compilation. It reports a
// successful exit immediately.
type AbsentCSS struct{}

func (AbsentCSS) Wait(context.Context) (int, error) { return 0, nil }
func (AbsentCSS) Kill() error                       { return nil }

type cssProcess struct {
	handle   Handle
	recorder metrics.Recorder
	logger   *slog.Logger
}

func (c *cssProcess) Wait(ctx context.Context) (int, error) {
	code, err := c.handle.Wait(ctx)
	if err != nil {
		return code, err
	}
	c.recorder.IncProcessExit(ToolTailwind, code)
	if code != 0 {
		c.logger.Error("CSS compiler failed, see above for errors", logfields.ExitCode(code))
	}
	return code, nil
}

func (c *cssProcess) Kill() error {
	return c.handle.Kill()
}

// tailwindArgv resolves the compiler executable: the configured command, the
// project-local binary, or tailwindcss from PATH.
func tailwindArgv(cfg *config.Config) []string {
	if len(cfg.CSS.Command) > 0 {
		return cfg.CSS.Command
	}
	local := cfg.Path(filepath.Join("node_modules", ".bin", ToolTailwind))
	if fileExists(local) {
		return []string{local}
	}
	if p, err := exec.LookPath(ToolTailwind); err == nil {
		return []string{p}
	}
	return []string{ToolTailwind}
}

func dotSlash(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return "./" + filepath.ToSlash(filepath.Clean(p))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
