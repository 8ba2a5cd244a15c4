package metrics

import (
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	rebuildDuration *prom.HistogramVec
	rebuildResults  *prom.CounterVec
	processExits    *prom.CounterVec
	watchCycles     *prom.CounterVec
	runDuration     *prom.HistogramVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.rebuildDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "slimpack",
			Name:      "rebuild_duration_seconds",
			Help:      "Duration of client and server compilations",
			Buckets:   prom.DefBuckets,
		}, []string{"target"})
		pr.rebuildResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "slimpack",
			Name:      "rebuild_results_total",
			Help:      "Compilation results by target and outcome",
		}, []string{"target", "result"})
		pr.processExits = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "slimpack",
			Name:      "process_exits_total",
			Help:      "Child process exits by tool and exit code",
		}, []string{"tool", "code"})
		pr.watchCycles = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "slimpack",
			Name:      "watch_cycles_total",
			Help:      "Change-triggered cycles handled by long-running modes",
		}, []string{"mode"})
		pr.runDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "slimpack",
			Name:      "run_duration_seconds",
			Help:      "Total run duration by mode",
			Buckets:   prom.ExponentialBuckets(0.1, 4, 8),
		}, []string{"mode"})
		reg.MustRegister(pr.rebuildDuration, pr.rebuildResults, pr.processExits, pr.watchCycles, pr.runDuration)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveRebuildDuration(target string, d time.Duration) {
	if p == nil || p.rebuildDuration == nil {
		return
	}
	p.rebuildDuration.WithLabelValues(target).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRebuildResult(target string, result ResultLabel) {
	if p == nil || p.rebuildResults == nil {
		return
	}
	p.rebuildResults.WithLabelValues(target, string(result)).Inc()
}

func (p *PrometheusRecorder) IncProcessExit(tool string, code int) {
	if p == nil || p.processExits == nil {
		return
	}
	p.processExits.WithLabelValues(tool, strconv.Itoa(code)).Inc()
}

func (p *PrometheusRecorder) IncWatchCycle(mode string) {
	if p == nil || p.watchCycles == nil {
		return
	}
	p.watchCycles.WithLabelValues(mode).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(mode string, d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.WithLabelValues(mode).Observe(d.Seconds())
}
