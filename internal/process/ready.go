package process

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/slimpack/internal/config"
	ferrors "git.home.luguber.info/inful/slimpack/internal/foundation/errors"
	"git.home.luguber.info/inful/slimpack/internal/logfields"
	"git.home.luguber.info/inful/slimpack/internal/retry"
)

// WaitReady blocks until freshly started services are assumed reachable.
// Without a ready command it waits the fixed settle delay. With one, the
// command is polled until it exits 0 or the retries are exhausted. A ready
// command that cannot be started is not retried.
func WaitReady(ctx context.Context, cfg config.ServicesConfig, l Launcher, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.ReadyCommand) == 0 {
		return Sleep(ctx, cfg.SettleDelay)
	}

	cmd := NewCommand(cfg.ReadyCommand)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	policy := retry.NewPolicy(retry.Mode(cfg.ReadyBackoffMode), cfg.ReadyBackoff, cfg.ReadyMaxDelay, cfg.ReadyRetries)
	if err := policy.Validate(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid services readiness policy").
			Fatal().
			UserAction().
			Build()
	}
	start := time.Now()
	err := policy.Do(ctx, func(ctx context.Context) error {
		code, err := Run(ctx, l, cmd)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryProcess, "ready command could not start").
				WithContext("command", cmd.String()).
				Build()
		}
		if code != 0 {
			return ferrors.ProcessError(fmt.Sprintf("ready command exited with code %d", code)).
				Retryable().
				WithContext("exit_code", code).
				Build()
		}
		return nil
	}, func(attempt int, err error) {
		logger.Debug("Dependency services not ready yet", "attempt", attempt, logfields.Error(err))
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return ferrors.ServicesError("dependency services not ready").
			WithCause(err).
			WithContext("command", cmd.String()).
			Build()
	}
	logger.Info("Dependency services ready",
		logfields.Command(cmd.String()),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return nil
}

// Sleep waits d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
