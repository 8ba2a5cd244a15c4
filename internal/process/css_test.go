package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/slimpack/internal/config"
	ferrors "git.home.luguber.info/inful/slimpack/internal/foundation/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCSSCompilerAbsentWithoutConfig(t *testing.T) {
	cfg := config.Defaults(t.TempDir())
	l := &fakeLauncher{}

	css, err := NewCSSCompiler(cfg, CSSOptions{Launcher: l})
	require.NoError(t, err)
	assert.IsType(t, AbsentCSS{}, css)

	code, err := css.Wait(context.Background())
	require.NoError(t, err)
	assert.Zero(t, code)
	require.NoError(t, css.Kill())
	assert.Empty(t, l.commands())
}

func TestCSSCompilerCommand(t *testing.T) {
	tests := []struct {
		name  string
		watch bool
		want  string
	}{
		{"one-shot", false, "tw -i ./src/main.css -o ./public/dist/main.css --minify"},
		{"watch", true, "tw -i ./src/main.css -o ./public/dist/main.css --minify --watch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults(t.TempDir())
			cfg.CSS.Command = []string{"tw"}
			writeFile(t, cfg.Path("tailwind.config.js"), "module.exports = {}")
			l := &fakeLauncher{}

			_, err := NewCSSCompiler(cfg, CSSOptions{Launcher: l, Watch: tt.watch})
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, l.commands())
			assert.Equal(t, cfg.BaseDir, l.cmds[0].Dir)
		})
	}
}

func TestCSSCompilerPrefersProjectBinary(t *testing.T) {
	cfg := config.Defaults(t.TempDir())
	writeFile(t, cfg.Path("tailwind.config.js"), "")
	bin := cfg.Path(filepath.Join("node_modules", ".bin", "tailwindcss"))
	writeFile(t, bin, "#!/bin/sh\n")
	l := &fakeLauncher{}

	_, err := NewCSSCompiler(cfg, CSSOptions{Launcher: l})
	require.NoError(t, err)
	require.Len(t, l.cmds, 1)
	assert.Equal(t, bin, l.cmds[0].Name)
}

func TestCSSCompilerExitCodeAndKill(t *testing.T) {
	cfg := config.Defaults(t.TempDir())
	writeFile(t, cfg.Path("tailwind.config.js"), "")
	h := &fakeHandle{code: 2}
	l := &fakeLauncher{respond: func(Command) (*fakeHandle, error) { return h, nil }}

	css, err := NewCSSCompiler(cfg, CSSOptions{Launcher: l})
	require.NoError(t, err)

	code, err := css.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, code)

	require.NoError(t, css.Kill())
	assert.Equal(t, 1, h.kills)
}

func TestCSSCompilerStartFailure(t *testing.T) {
	cfg := config.Defaults(t.TempDir())
	writeFile(t, cfg.Path("tailwind.config.js"), "")
	l := &fakeLauncher{respond: func(Command) (*fakeHandle, error) { return nil, errors.New("exec format error") }}

	_, err := NewCSSCompiler(cfg, CSSOptions{Launcher: l})
	require.Error(t, err)
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryProcess, ce.Category())
}
