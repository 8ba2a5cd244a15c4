// Package shutdown owns signal handling and the cleanup hooks of a run.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/slimpack/internal/logfields"
)

// HookFunc is one cleanup step. It must be idempotent.
type HookFunc func(ctx context.Context) error

type hook struct {
	name string
	fn   HookFunc
}

// HookSet is an ordered collection of cleanup steps executed at most once,
// collectively. A failing step never prevents later steps from running.
type HookSet struct {
	logger *slog.Logger

	mu    sync.Mutex
	hooks []hook
	once  sync.Once
	err   error
}

// NewHookSet returns an empty HookSet.
func NewHookSet(logger *slog.Logger) *HookSet {
	if logger == nil {
		logger = slog.Default()
	}
	return &HookSet{logger: logger}
}

// Add appends a step.
func (s *HookSet) Add(name string, fn HookFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook{name: name, fn: fn})
}

// AddConcurrent appends a step that runs fns concurrently and settles once
// all of them have returned.
func (s *HookSet) AddConcurrent(name string, fns ...HookFunc) {
	s.Add(name, func(ctx context.Context) error {
		var g errgroup.Group
		errs := make([]error, len(fns))
		for i, fn := range fns {
			i, fn := i, fn
			g.Go(func() error {
				errs[i] = safeCall(ctx, fn)
				return nil
			})
		}
		_ = g.Wait()
		return errors.Join(errs...)
	})
}

// Len reports the number of registered steps.
func (s *HookSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hooks)
}

// Run executes every step in registration order. Only the first call does
// any work; later calls return the first call's result.
func (s *HookSet) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.mu.Lock()
		hooks := append([]hook(nil), s.hooks...)
		s.mu.Unlock()

		var errs []error
		for _, h := range hooks {
			start := time.Now()
			err := safeCall(ctx, h.fn)
			attrs := []any{logfields.Hook(h.name), logfields.DurationMS(float64(time.Since(start).Milliseconds()))}
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
				s.logger.Warn("Shutdown hook failed", append(attrs, logfields.Error(err))...)
				continue
			}
			s.logger.Debug("Shutdown hook finished", attrs...)
		}
		s.err = errors.Join(errs...)
	})
	return s.err
}

func safeCall(ctx context.Context, fn HookFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
