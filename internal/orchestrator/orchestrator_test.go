package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"git.home.luguber.info/inful/slimpack/internal/config"
	ferrors "git.home.luguber.info/inful/slimpack/internal/foundation/errors"
	"git.home.luguber.info/inful/slimpack/internal/process"
	"git.home.luguber.info/inful/slimpack/internal/resource"
	"git.home.luguber.info/inful/slimpack/internal/shutdown"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	cfg      *config.Config
	j        *journal
	factory  *fakeFactory
	css      *fakeCSS
	launcher *fakeLauncher
	source   *fakeSource
	out      *syncBuffer

	coordinator *shutdown.Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	j := &journal{}
	cfg := config.Defaults(t.TempDir())
	disabled := false
	cfg.Commands.NodeCheck = &disabled
	return &harness{
		cfg: cfg,
		j:   j,
		factory: &fakeFactory{
			client: &fakeResource{name: "client", j: j},
			server: &fakeResource{name: "server", j: j},
		},
		css:      &fakeCSS{j: j},
		launcher: &fakeLauncher{j: j},
		source:   newFakeSource(),
		out:      &syncBuffer{},
	}
}

func (h *harness) orchestrator(flags Flags) *Orchestrator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.coordinator = shutdown.NewCoordinator(time.Second, logger)
	return New(h.cfg, flags,
		WithLogger(logger),
		WithLauncher(h.launcher),
		WithCoordinator(h.coordinator),
		WithOutput(h.out),
		WithResourceFactory(func(opts resource.Options) ResourceFactory {
			h.factory.opts = opts
			return h.factory
		}),
		WithCSSCompiler(func(bool) (process.CSSCompiler, error) {
			h.j.add("css start")
			return h.css, nil
		}),
		WithServices(func() process.Services { return &fakeServices{j: h.j} }),
		WithWatcher(func(root string) (ChangeSource, error) {
			h.source.root = root
			return h.source, nil
		}),
		WithSettle(func(context.Context) error {
			h.j.add("settle")
			return nil
		}),
	)
}

type result struct {
	out Outcome
	err error
}

func runAsync(ctx context.Context, o *Orchestrator) <-chan result {
	done := make(chan result, 1)
	go func() {
		out, err := o.Run(ctx)
		done <- result{out, err}
	}()
	return done
}

func await(t *testing.T, done <-chan result) result {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
		return result{}
	}
}

func TestBuildSucceeds(t *testing.T) {
	h := newHarness(t)

	out, err := h.orchestrator(Flags{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Outcome{Mode: ModeBuild, ExitCode: 0}, out)
	assert.Equal(t, 1, h.factory.client.rebuildCount())
	assert.Equal(t, 1, h.factory.server.rebuildCount())
	assert.Equal(t, 1, h.factory.client.disposeCount())
	assert.Equal(t, 1, h.factory.server.disposeCount())
	assert.False(t, h.factory.opts.Dev)
	assert.False(t, h.factory.opts.Test)
}

func TestBuildPropagatesCSSExitCode(t *testing.T) {
	h := newHarness(t)
	h.css.code = 2

	out, err := h.orchestrator(Flags{}).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, out.ExitCode)

	exitErr, ok := ferrors.AsExitCode(err)
	require.True(t, ok)
	assert.Equal(t, process.ToolTailwind, exitErr.Tool)
	assert.Equal(t, 1, h.factory.client.disposeCount())
	assert.Equal(t, 1, h.factory.server.disposeCount())
}

func TestBuildFailureExitsOne(t *testing.T) {
	h := newHarness(t)
	h.factory.server.rebuildErr = errors.New("Expected \";\"")

	out, err := h.orchestrator(Flags{}).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, out.ExitCode)

	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryBuild, classified.Category())
	assert.Equal(t, 1, h.factory.client.disposeCount())
	assert.Equal(t, 1, h.factory.server.disposeCount())
}

func TestBuildInterrupted(t *testing.T) {
	h := newHarness(t)
	h.css.block = true

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, h.orchestrator(Flags{}))
	require.Eventually(t, func() bool { return h.factory.server.rebuildCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	r := await(t, done)
	require.ErrorIs(t, r.err, context.Canceled)
	assert.Equal(t, ferrors.ExitInterrupted, r.out.ExitCode)
	assert.Equal(t, 1, h.j.count("kill css"))
	assert.Equal(t, 1, h.factory.server.disposeCount())
}

func TestMissingServerDirExitsWithoutOutputs(t *testing.T) {
	base := t.TempDir()
	cfg := config.Defaults(base)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	o := New(cfg, Flags{}, WithLogger(logger), WithLauncher(&fakeLauncher{j: &journal{}}))
	out, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, out.ExitCode)

	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryConfig, classified.Category())

	assert.NoDirExists(t, filepath.Join(base, cfg.ServerDist))
	assert.NoDirExists(t, filepath.Join(base, cfg.ClientDist))
}

func TestCleanRemovesPreviousOutputOnly(t *testing.T) {
	h := newHarness(t)
	stale := filepath.Join(h.cfg.Path(h.cfg.ServerDist), "stale.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))

	fresh := filepath.Join(h.cfg.Path(h.cfg.ServerDist), "index.js")
	h.factory.server.onRebuild = func() {
		assert.NoFileExists(t, stale)
		assert.NoError(t, os.MkdirAll(filepath.Dir(fresh), 0o755))
		assert.NoError(t, os.WriteFile(fresh, []byte("new"), 0o600))
	}

	out, err := h.orchestrator(Flags{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
}

func TestCleanToleratesMissingOutputs(t *testing.T) {
	h := newHarness(t)
	require.NoDirExists(t, h.cfg.Path(h.cfg.ClientDist))

	out, err := h.orchestrator(Flags{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
}

func TestCleanFailureIsClassifiedWarning(t *testing.T) {
	h := newHarness(t)
	blocker := h.cfg.Path("blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	h.cfg.ServerDist = filepath.Join("blocker", "dist")

	var logs syncBuffer
	o := New(h.cfg, Flags{}, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	err := o.cleanOutputs()
	require.Error(t, err)

	var ce *ferrors.ClassifiedError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ferrors.CategoryFileSystem, ce.Category())
	assert.Equal(t, ferrors.SeverityWarning, ce.Severity())
	assert.True(t, ce.CanRetry())
	path, _ := ce.Context().GetString("path")
	assert.Equal(t, h.cfg.ServerDist, path)
	assert.Contains(t, logs.String(), "Failed to clean output directory")
}

func TestModesSetTheirGracePeriod(t *testing.T) {
	tests := []struct {
		name  string
		flags Flags
		want  func(*config.Config) time.Duration
	}{
		{"dev", Flags{Dev: true, Watch: true}, func(c *config.Config) time.Duration { return c.Shutdown.DevGrace }},
		{"watch", Flags{Watch: true}, func(c *config.Config) time.Duration { return c.Shutdown.WatchGrace }},
		{"test watch", Flags{Test: true, Watch: true}, func(c *config.Config) time.Duration { return c.Shutdown.WatchGrace }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.launcher.block = tt.flags.Dev
			h.cfg.Shutdown.DevGrace = 700 * time.Millisecond
			h.cfg.Shutdown.WatchGrace = 150 * time.Millisecond

			ctx, cancel := context.WithCancel(context.Background())
			o := h.orchestrator(tt.flags)
			done := runAsync(ctx, o)
			require.Eventually(t, func() bool { return h.coordinator.Grace() == tt.want(h.cfg) },
				time.Second, 5*time.Millisecond)
			cancel()

			r := await(t, done)
			require.NoError(t, r.err)
			assert.Equal(t, tt.want(h.cfg), h.coordinator.Grace())
		})
	}
}

func TestWatchModeDisposesOnInterrupt(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, h.orchestrator(Flags{Watch: true}))
	require.Eventually(t, func() bool {
		return h.j.count("watch client") == 1 && h.j.count("watch server") == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	r := await(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, Outcome{Mode: ModeWatch, ExitCode: 0}, r.out)
	assert.Equal(t, 1, h.j.count("kill css"))
	assert.Equal(t, 1, h.factory.client.disposeCount())
	assert.Equal(t, 1, h.factory.server.disposeCount())
	assert.Less(t, h.j.index("kill css"), h.j.index("dispose client"))
}

func TestWatchFailureReleasesResources(t *testing.T) {
	h := newHarness(t)
	h.factory.client.watchErr = errors.New("watch failed")

	out, err := h.orchestrator(Flags{Watch: true}).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, out.ExitCode)
	assert.Equal(t, 1, h.factory.client.disposeCount())
	assert.Equal(t, 1, h.factory.server.disposeCount())
	assert.Equal(t, 1, h.j.count("kill css"))
}

func TestDevModeOrdering(t *testing.T) {
	h := newHarness(t)
	h.launcher.block = true

	ctx, cancel := context.WithCancel(context.Background())
	o := h.orchestrator(Flags{Dev: true, Watch: true})
	done := runAsync(ctx, o)
	require.Eventually(t, func() bool { return h.j.count("watch server") == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	r := await(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, Outcome{Mode: ModeDev, ExitCode: 0}, r.out)
	assert.True(t, h.factory.opts.Dev)

	devStart := "start node --watch dist/index.js"
	up, settle, rebuild := h.j.index("services up"), h.j.index("settle"), h.j.index("rebuild server")
	require.NotEqual(t, -1, up)
	assert.Less(t, up, settle)
	assert.Less(t, settle, rebuild)
	assert.Less(t, rebuild, h.j.index(devStart))
	assert.Less(t, h.j.index("css start"), up)

	assert.Equal(t, 1, h.j.count("services down"))
	assert.Less(t, h.j.index("stop node"), h.j.index("services down"))
	assert.Less(t, h.j.index("services down"), h.j.index("dispose server"))
	assert.Equal(t, 1, h.factory.client.disposeCount())
	assert.Equal(t, 1, h.factory.server.disposeCount())
}

func TestDevModeRebuildFailureStopsServices(t *testing.T) {
	h := newHarness(t)
	h.factory.server.rebuildErr = errors.New("syntax error")

	out, err := h.orchestrator(Flags{Dev: true}).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, out.ExitCode)
	assert.Equal(t, 1, h.j.count("services down"))
	assert.Empty(t, h.launcher.starts())
	assert.Equal(t, 1, h.factory.server.disposeCount())
}

func TestTestModeRunsOnce(t *testing.T) {
	h := newHarness(t)
	h.launcher.code = 3

	out, err := h.orchestrator(Flags{Test: true, Dev: true}).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, Outcome{Mode: ModeTest, ExitCode: 3}, out)
	assert.Equal(t, []string{"node --test dist"}, h.launcher.starts())
	assert.True(t, h.factory.opts.Test)
	assert.False(t, h.factory.opts.Dev)
	assert.Equal(t, 0, h.factory.client.rebuildCount())
	assert.Equal(t, 1, h.factory.server.disposeCount())
}

func TestTestModePasses(t *testing.T) {
	h := newHarness(t)

	out, err := h.orchestrator(Flags{Test: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
}

func TestTestWatchCyclesDoNotOverlap(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, h.orchestrator(Flags{Test: true, Watch: true}))

	require.Eventually(t, func() bool { return len(h.launcher.starts()) == 1 }, time.Second, 5*time.Millisecond)
	for want := 2; want <= 4; want++ {
		h.source.trigger()
		require.Eventually(t, func() bool { return len(h.launcher.starts()) == want }, time.Second, 5*time.Millisecond)
	}
	cancel()

	r := await(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, 0, r.out.ExitCode)
	assert.Equal(t, 1, h.launcher.maxConcurrent())
	assert.Equal(t, 4, h.factory.server.rebuildCount())
	assert.Equal(t, 1, h.factory.server.disposeCount())
	assert.Equal(t, h.cfg.Path(h.cfg.ServerSrcDir), h.source.root)
	assert.Contains(t, h.out.String(), clearScreen)
}

func TestTestWatchSurvivesBuildFailure(t *testing.T) {
	h := newHarness(t)
	h.factory.server.rebuildErr = errors.New("syntax error")

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, h.orchestrator(Flags{Test: true, Watch: true}))

	require.Eventually(t, func() bool { return h.factory.server.rebuildCount() == 1 }, time.Second, 5*time.Millisecond)
	h.source.trigger()
	require.Eventually(t, func() bool { return h.factory.server.rebuildCount() == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	r := await(t, done)
	require.NoError(t, r.err)
	assert.Empty(t, h.launcher.starts())
}
