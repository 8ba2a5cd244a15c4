package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvFiles are loaded from the project root, most specific first. Variables
// already present in the process environment are never overwritten, so the
// first file defining a key wins.
var EnvFiles = []string{".env.local", ".env"}

// LoadEnvFiles loads the project's env files into the process environment so
// spawned child processes inherit them. It returns the files that were loaded.
func LoadEnvFiles(baseDir string) []string {
	var loaded []string
	for _, name := range EnvFiles {
		path := filepath.Join(baseDir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			slog.Warn("Failed to load env file", "path", path, "error", err)
			continue
		}
		loaded = append(loaded, name)
	}
	if len(loaded) > 0 {
		slog.Debug("Loaded environment variables", "files", loaded)
	}
	return loaded
}
