// Package config resolves the slimpack project configuration.
//
// Resolution never fails: a missing or malformed slimpack.yaml, or an
// unreadable compiler profile, falls back to the built-in defaults so every
// recognized field of the returned Config is populated.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the project root when --config is not given.
const DefaultConfigFile = "slimpack.yaml"

// Config represents the resolved project configuration. It is immutable once
// Load returns.
type Config struct {
	// BaseDir is the project root every relative path is resolved against.
	BaseDir string `yaml:"-"`

	ServerDist     string `yaml:"server_dist"`
	ClientDist     string `yaml:"client_dist"`
	ClientSrcDir   string `yaml:"client_src_dir"`
	ServerSrcDir   string `yaml:"server_src_dir"`
	ServerTsConfig string `yaml:"server_tsconfig"`
	ClientTsConfig string `yaml:"client_tsconfig"`
	TestTsConfig   string `yaml:"test_tsconfig"`
	CSSEntryPoint  string `yaml:"css_entry_point"`
	CSSDist        string `yaml:"css_dist"`

	// Client and Server carry caller overrides merged on top of the
	// target defaults.
	Client TargetOptions `yaml:"client"`
	Server TargetOptions `yaml:"server"`

	CSS      CSSConfig      `yaml:"css"`
	Services ServicesConfig `yaml:"services"`
	Commands CommandsConfig `yaml:"commands"`
	Shutdown ShutdownConfig `yaml:"shutdown"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// CSSConfig configures the tailwindcss process.
type CSSConfig struct {
	// ConfigFile must exist in the project root for the CSS compiler to run.
	ConfigFile string `yaml:"config_file"`
	// Command overrides the compiler executable (and leading arguments).
	Command []string `yaml:"command,omitempty"`
}

// ServicesConfig configures the docker compose controller.
type ServicesConfig struct {
	// Files lists the compose manifests looked up in the project root; the first existing one wins.
	Files       []string      `yaml:"files,omitempty"`
	Command     []string      `yaml:"command,omitempty"`
	SettleDelay time.Duration `yaml:"settle_delay"`
	// ReadyCommand, when set, is polled after Up instead of waiting SettleDelay.
	ReadyCommand []string      `yaml:"ready_command,omitempty"`
	ReadyRetries int           `yaml:"ready_retries"`
	ReadyBackoff time.Duration `yaml:"ready_backoff"`
	// ReadyBackoffMode is one of fixed, linear or exponential.
	ReadyBackoffMode string        `yaml:"ready_backoff_mode"`
	ReadyMaxDelay    time.Duration `yaml:"ready_max_delay"`
}

// CommandsConfig configures the child processes spawned by the test and dev modes.
type CommandsConfig struct {
	Test      []string `yaml:"test,omitempty"`
	DevServer []string `yaml:"dev_server,omitempty"`
	// NodeCheck enables the node version preflight in dev mode.
	NodeCheck *bool `yaml:"node_check,omitempty"`
}

// ShutdownConfig bounds how long cleanup may take after an interruption.
type ShutdownConfig struct {
	DevGrace   time.Duration `yaml:"dev_grace"`
	WatchGrace time.Duration `yaml:"watch_grace"`
}

// MetricsConfig configures the optional Prometheus listener of long-running modes.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
}

// Load resolves the configuration for the project rooted at baseDir.
// configPath may be empty, relative to baseDir, or absolute.
func Load(baseDir, configPath string) *Config {
	if baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			baseDir = wd
		}
	}
	if configPath == "" {
		configPath = DefaultConfigFile
	}

	cfg, err := readFile(resolvePath(baseDir, configPath))
	if err != nil {
		slog.Debug("Using default configuration", "path", configPath, "error", err)
		cfg = &Config{}
	}
	cfg.BaseDir = baseDir

	applyProfiles(cfg)
	applyDefaults(cfg)
	return cfg
}

// readFile decodes a slimpack.yaml file. Environment variables are expanded
// before decoding.
func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Path resolves a project-relative path against BaseDir.
func (c *Config) Path(rel string) string {
	return resolvePath(c.BaseDir, rel)
}

func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}
