package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/tidwall/jsonc"
)

// Profile is the subset of a tsconfig compiler profile slimpack inspects.
type Profile struct {
	CompilerOptions struct {
		RootDir string `json:"rootDir"`
		OutDir  string `json:"outDir"`
	} `json:"compilerOptions"`
}

// ReadProfile reads a tsconfig file. Comments and trailing commas are allowed.
func ReadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var p Profile
	if err := json.Unmarshal(jsonc.ToJSON(data), &p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &p, nil
}

// applyProfiles lets the server and client profiles override the source and
// output directories. Precedence: profile > slimpack.yaml > default.
func applyProfiles(cfg *Config) {
	server := loadProfile(cfg, cfg.ServerTsConfig, DefaultServerTsConfig)
	setFromProfile(&cfg.ServerSrcDir, server.CompilerOptions.RootDir)
	setFromProfile(&cfg.ServerDist, server.CompilerOptions.OutDir)

	client := loadProfile(cfg, cfg.ClientTsConfig, DefaultClientTsConfig)
	setFromProfile(&cfg.ClientSrcDir, client.CompilerOptions.RootDir)
	setFromProfile(&cfg.ClientDist, client.CompilerOptions.OutDir)
}

// loadProfile returns an empty profile when the file is absent or unreadable.
func loadProfile(cfg *Config, configured, def string) *Profile {
	path := configured
	if path == "" {
		path = def
	}
	p, err := ReadProfile(cfg.Path(path))
	if err != nil {
		slog.Debug("Compiler profile not used", "path", path, "error", err)
		return &Profile{}
	}
	return p
}

func setFromProfile(field *string, value string) {
	if value != "" {
		*field = value
	}
}
