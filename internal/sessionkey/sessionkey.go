// Package sessionkey generates the cookie signing secret of a project and
// stores it in an env file.
package sessionkey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// Name is the environment variable holding the secret.
	Name = "COOKIE_SECRET"
	// DefaultEnvFile receives the secret when no file is given.
	DefaultEnvFile = ".env.local"
	// Size is the secret length in bytes before hex encoding.
	Size = 32
)

// Generate returns a hex encoded secret of Size random bytes read from r.
// A nil r uses crypto/rand.
func Generate(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, Size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("generate session key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Ensure appends a freshly generated secret to path unless the file already
// defines one. It reports whether a key was written.
func Ensure(path string, r io.Reader) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if hasKey(string(data)) {
		return false, nil
	}

	key, err := Generate(r)
	if err != nil {
		return false, err
	}

	line := Name + "=" + key + "\n"
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		line = "\n" + line
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("close %s: %w", path, err)
	}
	return true, nil
}

// hasKey parses content as an env file. Content godotenv cannot parse is
// searched for the variable name instead.
func hasKey(content string) bool {
	if content == "" {
		return false
	}
	env, err := godotenv.Unmarshal(content)
	if err != nil {
		return strings.Contains(content, Name)
	}
	_, ok := env[Name]
	return ok
}
