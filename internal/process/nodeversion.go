package process

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/mod/semver"
)

// MinNodeWatchVersion is the first node release supporting --watch.
const MinNodeWatchVersion = "v18.11.0"

// NodeVersion runs `<node> --version` and returns the canonical semver.
func NodeVersion(ctx context.Context, l Launcher, node string) (string, error) {
	var out bytes.Buffer
	cmd := NewCommand([]string{node}, "--version")
	cmd.Stdout = &out

	code, err := Run(ctx, l, cmd)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", fmt.Errorf("%s --version exited with code %d", node, code)
	}
	v := strings.TrimSpace(out.String())
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("unrecognized node version %q", strings.TrimSpace(out.String()))
	}
	return semver.Canonical(v), nil
}

// CheckNodeWatch warns when the node runtime is too old for --watch. It
// never fails the run.
func CheckNodeWatch(ctx context.Context, l Launcher, node string, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	v, err := NodeVersion(ctx, l, node)
	if err != nil {
		logger.Debug("Could not determine node version", "error", err)
		return
	}
	if semver.Compare(v, MinNodeWatchVersion) < 0 {
		logger.Warn("Node version does not support --watch, dev server will not restart on change",
			"version", v, "required", MinNodeWatchVersion)
	}
}
