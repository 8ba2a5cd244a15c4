package resource

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/slimpack/internal/config"
	"git.home.luguber.info/inful/slimpack/internal/foundation/normalization"
)

// clientEngines is the browser compatibility baseline of client bundles.
var clientEngines = []api.Engine{
	{Name: api.EngineChrome, Version: "58"},
	{Name: api.EngineFirefox, Version: "57"},
	{Name: api.EngineSafari, Version: "11"},
	{Name: api.EngineEdge, Version: "16"},
}

var (
	formats = normalization.NewEnum("format", map[string]api.Format{
		"iife":     api.FormatIIFE,
		"cjs":      api.FormatCommonJS,
		"commonjs": api.FormatCommonJS,
		"esm":      api.FormatESModule,
	})
	platforms = normalization.NewEnum("platform", map[string]api.Platform{
		"browser": api.PlatformBrowser,
		"node":    api.PlatformNode,
		"neutral": api.PlatformNeutral,
	})
	logLevels = normalization.NewEnum("log level", map[string]api.LogLevel{
		"silent":  api.LogLevelSilent,
		"error":   api.LogLevelError,
		"warning": api.LogLevelWarning,
		"warn":    api.LogLevelWarning,
		"info":    api.LogLevelInfo,
		"debug":   api.LogLevelDebug,
		"verbose": api.LogLevelVerbose,
	})
	loaders = normalization.NewEnum("loader", map[string]api.Loader{
		"base64":     api.LoaderBase64,
		"binary":     api.LoaderBinary,
		"copy":       api.LoaderCopy,
		"css":        api.LoaderCSS,
		"dataurl":    api.LoaderDataURL,
		"default":    api.LoaderDefault,
		"empty":      api.LoaderEmpty,
		"file":       api.LoaderFile,
		"global-css": api.LoaderGlobalCSS,
		"js":         api.LoaderJS,
		"json":       api.LoaderJSON,
		"jsx":        api.LoaderJSX,
		"local-css":  api.LoaderLocalCSS,
		"text":       api.LoaderText,
		"ts":         api.LoaderTS,
		"tsx":        api.LoaderTSX,
	})
	languageTargets = normalization.NewEnum("target", map[string]api.Target{
		"esnext": api.ESNext,
		"es5":    api.ES5,
		"es6":    api.ES2015,
		"es2015": api.ES2015,
		"es2016": api.ES2016,
		"es2017": api.ES2017,
		"es2018": api.ES2018,
		"es2019": api.ES2019,
		"es2020": api.ES2020,
		"es2021": api.ES2021,
		"es2022": api.ES2022,
	})
	engineNames = normalization.NewEnum("engine", map[string]api.EngineName{
		"chrome":  api.EngineChrome,
		"deno":    api.EngineDeno,
		"edge":    api.EngineEdge,
		"firefox": api.EngineFirefox,
		"hermes":  api.EngineHermes,
		"ie":      api.EngineIE,
		"ios":     api.EngineIOS,
		"node":    api.EngineNode,
		"opera":   api.EngineOpera,
		"rhino":   api.EngineRhino,
		"safari":  api.EngineSafari,
	})
)

var engineVersion = regexp.MustCompile(`^([a-z]+)([0-9]+(?:\.[0-9]+)*)$`)

// clientOptions returns the client defaults: a minified browser bundle of
// every TypeScript file directly inside the client source directory.
func clientOptions(cfg *config.Config, opts Options) (api.BuildOptions, error) {
	entries, err := clientEntryPoints(cfg)
	if err != nil {
		return api.BuildOptions{}, err
	}

	bo := api.BuildOptions{
		AbsWorkingDir:     absDir(cfg.BaseDir),
		EntryPoints:       entries,
		Outdir:            cfg.ClientDist,
		Bundle:            true,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		Engines:           append([]api.Engine(nil), clientEngines...),
		Platform:          api.PlatformBrowser,
		Sourcemap:         sourceMap(opts.Dev || opts.Test),
		Tsconfig:          existingProfile(cfg, cfg.ClientTsConfig),
		SourceRoot:        cfg.ClientSrcDir,
		LogLevel:          api.LogLevelWarning,
		Write:             true,
	}
	if err := applyOverrides(&bo, cfg.Client.Resolve(opts.Dev)); err != nil {
		return api.BuildOptions{}, fmt.Errorf("client options: %w", err)
	}
	return bo, nil
}

// serverOptions returns the server defaults: per-file CommonJS output for node.
func serverOptions(cfg *config.Config, opts Options) (api.BuildOptions, error) {
	profile := cfg.ServerTsConfig
	if opts.Test {
		profile = cfg.TestTsConfig
	}

	src := filepath.ToSlash(cfg.ServerSrcDir)
	bo := api.BuildOptions{
		AbsWorkingDir: absDir(cfg.BaseDir),
		EntryPoints:   []string{src + "/**/*.ts", src + "/**/*.tsx"},
		Outdir:        cfg.ServerDist,
		Bundle:        false,
		Format:        api.FormatCommonJS,
		Platform:      api.PlatformNode,
		Sourcemap:     sourceMap(opts.Dev || opts.Test),
		Tsconfig:      existingProfile(cfg, profile),
		SourceRoot:    cfg.ServerSrcDir,
		LogLevel:      api.LogLevelError,
		Write:         true,
	}
	if err := applyOverrides(&bo, cfg.Server.Resolve(opts.Dev)); err != nil {
		return api.BuildOptions{}, fmt.Errorf("server options: %w", err)
	}
	return bo, nil
}

func clientEntryPoints(cfg *config.Config) ([]string, error) {
	dirents, err := os.ReadDir(cfg.Path(cfg.ClientSrcDir))
	if err != nil {
		return nil, fmt.Errorf("read client source directory: %w", err)
	}
	var entries []string
	for _, d := range dirents {
		name := d.Name()
		if d.IsDir() || strings.HasSuffix(name, ".d.ts") {
			continue
		}
		if strings.HasSuffix(name, ".ts") || strings.HasSuffix(name, ".tsx") {
			entries = append(entries, filepath.ToSlash(filepath.Join(cfg.ClientSrcDir, name)))
		}
	}
	return entries, nil
}

func sourceMap(enabled bool) api.SourceMap {
	if enabled {
		return api.SourceMapLinked
	}
	return api.SourceMapNone
}

// existingProfile returns rel when the compiler profile exists; esbuild
// rejects a tsconfig path it cannot open.
func existingProfile(cfg *config.Config, rel string) string {
	if rel == "" {
		return ""
	}
	if _, err := os.Stat(cfg.Path(rel)); err != nil {
		return ""
	}
	return rel
}

func absDir(dir string) string {
	if dir == "" {
		dir = "."
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

// applyOverrides layers caller overrides onto bo. Overrides always win.
func applyOverrides(bo *api.BuildOptions, o config.Overrides) error {
	if o.Bundle != nil {
		bo.Bundle = *o.Bundle
	}
	if o.Minify != nil {
		bo.MinifyWhitespace = *o.Minify
		bo.MinifyIdentifiers = *o.Minify
		bo.MinifySyntax = *o.Minify
	}
	if o.Sourcemap != nil {
		bo.Sourcemap = sourceMap(*o.Sourcemap)
	}
	if o.Splitting != nil {
		bo.Splitting = *o.Splitting
	}
	if o.Format != "" {
		v, err := formats.Parse(o.Format)
		if err != nil {
			return err
		}
		bo.Format = v
	}
	if o.Platform != "" {
		v, err := platforms.Parse(o.Platform)
		if err != nil {
			return err
		}
		bo.Platform = v
	}
	if o.LogLevel != "" {
		v, err := logLevels.Parse(o.LogLevel)
		if err != nil {
			return err
		}
		bo.LogLevel = v
	}
	if o.Tsconfig != "" {
		bo.Tsconfig = o.Tsconfig
	}
	if len(o.Target) > 0 {
		target, engines, err := parseTargets(o.Target)
		if err != nil {
			return err
		}
		bo.Target = target
		bo.Engines = engines
	}
	if len(o.External) > 0 {
		bo.External = append([]string(nil), o.External...)
	}
	if len(o.Define) > 0 {
		if bo.Define == nil {
			bo.Define = map[string]string{}
		}
		maps.Copy(bo.Define, o.Define)
	}
	if len(o.Alias) > 0 {
		if bo.Alias == nil {
			bo.Alias = map[string]string{}
		}
		maps.Copy(bo.Alias, o.Alias)
	}
	if len(o.Loader) > 0 {
		if bo.Loader == nil {
			bo.Loader = map[string]api.Loader{}
		}
		for ext, name := range o.Loader {
			v, err := loaders.Parse(name)
			if err != nil {
				return fmt.Errorf("loader for %q: %w", ext, err)
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			bo.Loader[ext] = v
		}
	}
	return nil
}

// parseTargets splits esbuild-style targets ("es2020", "node18", "chrome58")
// into a language target and an engine list.
func parseTargets(raw []string) (api.Target, []api.Engine, error) {
	var (
		target  api.Target
		engines []api.Engine
	)
	for _, r := range raw {
		name := normalization.Clean(r)
		if t, ok := languageTargets.Lookup(name); ok {
			target = t
			continue
		}
		m := engineVersion.FindStringSubmatch(name)
		if m == nil {
			return target, nil, fmt.Errorf("invalid target %q", r)
		}
		engine, err := engineNames.Parse(m[1])
		if err != nil {
			return target, nil, fmt.Errorf("invalid target %q: %w", r, err)
		}
		engines = append(engines, api.Engine{Name: engine, Version: m[2]})
	}
	return target, engines, nil
}
