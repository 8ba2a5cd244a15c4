package resource

import (
	"log/slog"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/slimpack/internal/logfields"
	"git.home.luguber.info/inful/slimpack/internal/metrics"
)

// observePlugin reports every build of a context, explicit or watch-triggered.
func observePlugin(target Target, recorder metrics.Recorder, logger *slog.Logger) api.Plugin {
	var (
		mu      sync.Mutex
		started time.Time
	)
	return api.Plugin{
		Name: "slimpack-observe",
		Setup: func(build api.PluginBuild) {
			build.OnStart(func() (api.OnStartResult, error) {
				mu.Lock()
				started = time.Now()
				mu.Unlock()
				return api.OnStartResult{}, nil
			})
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				mu.Lock()
				elapsed := time.Since(started)
				mu.Unlock()

				label := metrics.ResultFor(len(result.Errors), len(result.Warnings))
				recorder.ObserveRebuildDuration(string(target), elapsed)
				recorder.IncRebuildResult(string(target), label)

				attrs := []any{
					logfields.Target(string(target)),
					logfields.DurationMS(float64(elapsed.Microseconds())/1000),
					logfields.Errors(len(result.Errors)),
					logfields.Warnings(len(result.Warnings)),
				}
				if label == metrics.ResultFailed {
					logger.Warn("Build failed", attrs...)
				} else {
					logger.Info("Build finished", attrs...)
				}
				return api.OnEndResult{}, nil
			})
		},
	}
}
