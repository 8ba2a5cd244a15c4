package resource

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/slimpack/internal/logfields"
)

// Compiler is the part of an esbuild build context a Session drives.
// api.BuildContext satisfies it.
type Compiler interface {
	Rebuild() api.BuildResult
	Watch(options api.WatchOptions) error
	Dispose()
}

// Session is the Resource backed by an esbuild build context.
type Session struct {
	target   Target
	compiler Compiler
	logger   *slog.Logger

	mu       sync.Mutex
	idle     *sync.Cond // signaled when active drops to zero
	active   int        // in-flight Rebuild calls
	watching bool
	disposed bool
}

var _ Resource = (*Session)(nil)

// NewSession binds compiler to target. The session starts ready.
func NewSession(target Target, compiler Compiler, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		target:   target,
		compiler: compiler,
		logger:   logger.With(logfields.Target(string(target))),
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Rebuild runs one build. Compiler errors are returned as *BuildError.
func (s *Session) Rebuild() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	s.active++
	s.mu.Unlock()

	result := s.compiler.Rebuild()

	s.mu.Lock()
	s.active--
	if s.active == 0 {
		s.idle.Broadcast()
	}
	s.mu.Unlock()

	if len(result.Errors) > 0 {
		return newBuildError(s.target, result.Errors)
	}
	return nil
}

// Watch puts the context into watch mode. Calling it again is a no-op.
func (s *Session) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	if s.watching {
		return nil
	}
	if err := s.compiler.Watch(api.WatchOptions{}); err != nil {
		return fmt.Errorf("%s watch: %w", s.target, err)
	}
	s.watching = true
	s.logger.Info("Watching for changes")
	return nil
}

// Dispose releases the esbuild context. New rebuilds are refused at once;
// a rebuild already in flight is allowed to finish first.
func (s *Session) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	for s.active > 0 {
		s.idle.Wait()
	}
	s.mu.Unlock()

	s.compiler.Dispose()
	s.logger.Debug("Disposed build context")
	return nil
}

// State reports the current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.disposed:
		return StateDisposed
	case s.active > 0:
		return StateRebuilding
	case s.watching:
		return StateWatching
	default:
		return StateReady
	}
}
