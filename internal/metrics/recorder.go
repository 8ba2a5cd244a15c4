package metrics

import "time"

// ResultLabel enumerates rebuild result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// ResultFor picks the label for a finished compilation from its message counts.
func ResultFor(errors, warnings int) ResultLabel {
	switch {
	case errors > 0:
		return ResultFailed
	case warnings > 0:
		return ResultWarning
	default:
		return ResultSuccess
	}
}

// Recorder defines observability hooks for slimpack runs. Implementations
// must be safe for concurrent use: client and server compilations report
// from separate goroutines.
type Recorder interface {
	ObserveRebuildDuration(target string, d time.Duration)
	IncRebuildResult(target string, result ResultLabel)
	IncProcessExit(tool string, code int)
	IncWatchCycle(mode string)
	ObserveRunDuration(mode string, d time.Duration)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveRebuildDuration(string, time.Duration) {}
func (NoopRecorder) IncRebuildResult(string, ResultLabel)         {}
func (NoopRecorder) IncProcessExit(string, int)                   {}
func (NoopRecorder) IncWatchCycle(string)                         {}
func (NoopRecorder) ObserveRunDuration(string, time.Duration)     {}
