package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ErrGraceExpired is returned when the cleanup hooks did not settle within
// the grace period. The run must then terminate with a failure status.
var ErrGraceExpired = errors.New("shutdown grace period expired")

// Coordinator installs the process signal handler and runs the hook set of
// the active mode once on interruption, bounded by a grace period.
type Coordinator struct {
	hooks  *HookSet
	grace  time.Duration
	logger *slog.Logger

	mu   sync.Mutex
	stop context.CancelFunc
}

// NewCoordinator returns a Coordinator with an empty hook set.
func NewCoordinator(grace time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		hooks:  NewHookSet(logger),
		grace:  grace,
		logger: logger,
	}
}

// Listen returns a context canceled on SIGINT or SIGTERM. Once the context
// is done a second signal terminates the process immediately.
func (c *Coordinator) Listen(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	c.mu.Lock()
	c.stop = stop
	c.mu.Unlock()
	return ctx, stop
}

// SetGrace changes the grace period. Modes call it before registering hooks.
func (c *Coordinator) SetGrace(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grace = d
}

// Grace returns the current grace period.
func (c *Coordinator) Grace() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.grace
}

// Hooks returns the hook set of the run.
func (c *Coordinator) Hooks() *HookSet {
	return c.hooks
}

// Wait blocks until ctx is done and then shuts down.
func (c *Coordinator) Wait(ctx context.Context) error {
	<-ctx.Done()
	c.logger.Info("Interrupted, cleaning up")
	return c.Shutdown()
}

// Shutdown runs the hook set and waits for it at most the grace period.
// Hook failures are logged by the hook set and do not fail the shutdown.
func (c *Coordinator) Shutdown() error {
	c.mu.Lock()
	grace := c.grace
	if c.stop != nil {
		c.stop()
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = c.hooks.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		c.logger.Error("Cleanup did not finish in time, forcing exit", slog.Duration("grace", grace))
		return ErrGraceExpired
	}
}
