package e2e

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"git.home.luguber.info/inful/slimpack/internal/config"
	ferrors "git.home.luguber.info/inful/slimpack/internal/foundation/errors"
)

// CypressConfigFiles are looked up in the project root.
var CypressConfigFiles = []string{"cypress.config.ts", "cypress.config.js"}

// Scripts are the package.json scripts the runner needs.
type Scripts struct {
	Build string `json:"build"`
	Start string `json:"start"`
}

type packageJSON struct {
	Scripts Scripts `json:"scripts"`
}

// findCypressConfig returns the first cypress config present in the project.
func findCypressConfig(cfg *config.Config) (string, error) {
	for _, name := range CypressConfigFiles {
		if _, err := os.Stat(cfg.Path(name)); err == nil {
			return name, nil
		}
	}
	return "", ferrors.ConfigError("No cypress.config.ts or cypress.config.js file found, make sure you have cypress configured in your project").
		WithContext("path", cfg.BaseDir).
		Build()
}

// readScripts reads the build and start scripts from package.json. Both are
// mandatory.
func readScripts(cfg *config.Config) (Scripts, error) {
	path := cfg.Path("package.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return Scripts{}, ferrors.WrapError(err, ferrors.CategoryConfig, "Failed to read package.json").
			Fatal().
			WithContext("path", path).
			Build()
	}

	var pkg packageJSON
	if err := json.Unmarshal(jsonc.ToJSON(data), &pkg); err != nil {
		return Scripts{}, ferrors.WrapError(err, ferrors.CategoryConfig, "Failed to parse package.json").
			Fatal().
			WithContext("path", path).
			Build()
	}
	if pkg.Scripts.Build == "" {
		return Scripts{}, ferrors.ConfigError("No build script found in package.json").
			WithContext("path", path).
			Build()
	}
	if pkg.Scripts.Start == "" {
		return Scripts{}, ferrors.ConfigError("No start script found in package.json").
			WithContext("path", path).
			Build()
	}
	return pkg.Scripts, nil
}

func cypressBin(cfg *config.Config) string {
	return filepath.Join(cfg.BaseDir, "node_modules", ".bin", "cypress")
}
