package config

import "time"

// Built-in defaults for every recognized field.
const (
	DefaultServerDist     = "dist"
	DefaultClientDist     = "public/dist"
	DefaultClientSrcDir   = "client"
	DefaultServerSrcDir   = "src"
	DefaultServerTsConfig = "tsconfig.app.json"
	DefaultClientTsConfig = "tsconfig.client.json"
	DefaultTestTsConfig   = "tsconfig.test.json"
	DefaultCSSEntryPoint  = "src/main.css"
	DefaultCSSDist        = "public/dist/main.css"
	DefaultCSSConfigFile  = "tailwind.config.js"
	DefaultMetricsPath    = "/metrics"

	DefaultSettleDelay      = time.Second
	DefaultReadyRetries     = 10
	DefaultReadyBackoff     = 500 * time.Millisecond
	DefaultReadyBackoffMode = "fixed"
	DefaultReadyMaxDelay    = 5 * time.Second
	DefaultDevGrace         = 500 * time.Millisecond
	DefaultWatchGrace       = 100 * time.Millisecond
)

// DefaultComposeFiles are the service manifests looked up in the project root.
var DefaultComposeFiles = []string{"docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml"}

// Defaults returns a fully populated configuration rooted at baseDir.
func Defaults(baseDir string) *Config {
	cfg := &Config{BaseDir: baseDir}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills every zero-valued field. Fields already set are kept.
func applyDefaults(cfg *Config) {
	setString(&cfg.ServerDist, DefaultServerDist)
	setString(&cfg.ClientDist, DefaultClientDist)
	setString(&cfg.ClientSrcDir, DefaultClientSrcDir)
	setString(&cfg.ServerSrcDir, DefaultServerSrcDir)
	setString(&cfg.ServerTsConfig, DefaultServerTsConfig)
	setString(&cfg.ClientTsConfig, DefaultClientTsConfig)
	setString(&cfg.TestTsConfig, DefaultTestTsConfig)
	setString(&cfg.CSSEntryPoint, DefaultCSSEntryPoint)
	setString(&cfg.CSSDist, DefaultCSSDist)

	setString(&cfg.CSS.ConfigFile, DefaultCSSConfigFile)

	if len(cfg.Services.Files) == 0 {
		cfg.Services.Files = append([]string(nil), DefaultComposeFiles...)
	}
	if len(cfg.Services.Command) == 0 {
		cfg.Services.Command = []string{"docker", "compose"}
	}
	if cfg.Services.SettleDelay <= 0 {
		cfg.Services.SettleDelay = DefaultSettleDelay
	}
	if cfg.Services.ReadyRetries <= 0 {
		cfg.Services.ReadyRetries = DefaultReadyRetries
	}
	if cfg.Services.ReadyBackoff <= 0 {
		cfg.Services.ReadyBackoff = DefaultReadyBackoff
	}
	if cfg.Services.ReadyBackoffMode == "" {
		cfg.Services.ReadyBackoffMode = DefaultReadyBackoffMode
	}
	if cfg.Services.ReadyMaxDelay <= 0 {
		cfg.Services.ReadyMaxDelay = DefaultReadyMaxDelay
	}

	if len(cfg.Commands.Test) == 0 {
		cfg.Commands.Test = []string{"node", "--test"}
	}
	if len(cfg.Commands.DevServer) == 0 {
		cfg.Commands.DevServer = []string{"node", "--watch"}
	}
	if cfg.Commands.NodeCheck == nil {
		enabled := true
		cfg.Commands.NodeCheck = &enabled
	}

	if cfg.Shutdown.DevGrace <= 0 {
		cfg.Shutdown.DevGrace = DefaultDevGrace
	}
	if cfg.Shutdown.WatchGrace <= 0 {
		cfg.Shutdown.WatchGrace = DefaultWatchGrace
	}

	setString(&cfg.Metrics.Path, DefaultMetricsPath)
}

func setString(field *string, def string) {
	if *field == "" {
		*field = def
	}
}
