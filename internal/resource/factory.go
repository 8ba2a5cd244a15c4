package resource

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/slimpack/internal/config"
	ferrors "git.home.luguber.info/inful/slimpack/internal/foundation/errors"
	"git.home.luguber.info/inful/slimpack/internal/logfields"
	"git.home.luguber.info/inful/slimpack/internal/metrics"
)

// Options select the target defaults applied by a Factory.
type Options struct {
	Dev  bool
	Test bool

	Recorder metrics.Recorder
	Logger   *slog.Logger
}

// CompilerFunc creates the compiler session for one target.
type CompilerFunc func(target Target, opts api.BuildOptions) (Compiler, error)

// Factory builds the client and server resources of a run.
type Factory struct {
	cfg         *config.Config
	opts        Options
	newCompiler CompilerFunc
}

// NewFactory returns a Factory backed by esbuild contexts.
func NewFactory(cfg *config.Config, opts Options) *Factory {
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Factory{cfg: cfg, opts: opts, newCompiler: esbuildCompiler}
}

// WithCompiler replaces the compiler constructor.
func (f *Factory) WithCompiler(fn CompilerFunc) *Factory {
	f.newCompiler = fn
	return f
}

// Client returns the client resource. A missing client source directory
// yields a Noop resource.
func (f *Factory) Client() (Resource, error) {
	dir := f.cfg.Path(f.cfg.ClientSrcDir)
	if !dirExists(dir) {
		f.opts.Logger.Warn("Missing client source directory, skipping client build",
			logfields.Path(f.cfg.ClientSrcDir))
		return &Noop{}, nil
	}

	bo, err := f.ClientOptions()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid client build options").
			Fatal().
			Build()
	}
	return f.session(TargetClient, bo)
}

// Server returns the server resource. The server source directory is
// mandatory; its absence is a fatal configuration error.
func (f *Factory) Server() (Resource, error) {
	dir := f.cfg.Path(f.cfg.ServerSrcDir)
	if !dirExists(dir) {
		return nil, ferrors.ConfigError("Missing server source directory").
			WithContext("path", f.cfg.ServerSrcDir).
			Build()
	}

	bo, err := f.ServerOptions()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid server build options").
			Fatal().
			Build()
	}
	return f.session(TargetServer, bo)
}

// ClientOptions returns the resolved client build options.
func (f *Factory) ClientOptions() (api.BuildOptions, error) {
	return clientOptions(f.cfg, f.opts)
}

// ServerOptions returns the resolved server build options.
func (f *Factory) ServerOptions() (api.BuildOptions, error) {
	return serverOptions(f.cfg, f.opts)
}

func (f *Factory) session(target Target, bo api.BuildOptions) (Resource, error) {
	bo.Plugins = append(bo.Plugins, observePlugin(target, f.opts.Recorder, f.opts.Logger))

	compiler, err := f.newCompiler(target, bo)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryBuild, "failed to create build context").
			WithContext("target", string(target)).
			Build()
	}
	f.opts.Logger.Debug("Created build context",
		logfields.Target(string(target)),
		slog.String("entry_points", entryList(bo.EntryPoints)))
	return NewSession(target, compiler, f.opts.Logger), nil
}

func esbuildCompiler(target Target, bo api.BuildOptions) (Compiler, error) {
	ctx, ctxErr := api.Context(bo)
	if ctxErr != nil {
		if len(ctxErr.Errors) == 0 {
			return nil, errors.New("esbuild context creation failed")
		}
		return nil, newBuildError(target, ctxErr.Errors)
	}
	return ctx, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// entryList renders entry points for logs.
func entryList(entries []string) string {
	return strings.Join(entries, ", ")
}
