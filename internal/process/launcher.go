package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"git.home.luguber.info/inful/slimpack/internal/logfields"
)

// Command describes one child process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env is appended to the parent environment.
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// NewCommand builds a Command from an argv slice and extra arguments.
func NewCommand(argv []string, args ...string) Command {
	if len(argv) == 0 {
		return Command{Args: args}
	}
	return Command{
		Name: argv[0],
		Args: append(append([]string(nil), argv[1:]...), args...),
	}
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Handle is a started child process.
type Handle interface {
	PID() int
	// Wait blocks until the process exits and returns its exit code. A
	// process terminated by a signal reports 128+signal.
	Wait(ctx context.Context) (int, error)
	// Kill asks the process to terminate without waiting for it.
	Kill() error
	// Stop asks the process to terminate and waits for it to exit. When
	// ctx is done first the process is killed.
	Stop(ctx context.Context) error
}

// Launcher starts child processes.
type Launcher interface {
	Start(cmd Command) (Handle, error)
}

// Run starts cmd and waits for it to exit. The process is signaled when ctx
// is done first.
func Run(ctx context.Context, l Launcher, cmd Command) (int, error) {
	h, err := l.Start(cmd)
	if err != nil {
		return -1, err
	}
	code, err := h.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		_ = h.Kill()
	}
	return code, err
}

// Await starts cmd and waits for it to exit. Unlike Run it leaves the
// process running when ctx is done first.
func Await(ctx context.Context, l Launcher, cmd Command) (int, error) {
	h, err := l.Start(cmd)
	if err != nil {
		return -1, err
	}
	return h.Wait(ctx)
}

// ExecLauncher starts processes with os/exec. Output is inherited from the
// parent unless the Command overrides it.
type ExecLauncher struct {
	logger *slog.Logger
}

// NewExecLauncher returns an ExecLauncher logging through logger.
func NewExecLauncher(logger *slog.Logger) *ExecLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecLauncher{logger: logger}
}

// Start spawns cmd.
func (l *ExecLauncher) Start(c Command) (Handle, error) {
	if c.Name == "" {
		return nil, errors.New("empty command")
	}
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = c.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = c.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.Name, err)
	}
	l.logger.Debug("Started process", logfields.Command(c.String()), logfields.PID(cmd.Process.Pid))

	h := &execHandle{cmd: cmd, done: make(chan struct{})}
	go h.reap()
	return h, nil
}

type execHandle struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu   sync.Mutex
	code int
	err  error
}

func (h *execHandle) reap() {
	code, err := exitStatus(h.cmd.Wait())
	h.mu.Lock()
	h.code, h.err = code, err
	h.mu.Unlock()
	close(h.done)
}

func (h *execHandle) PID() int { return h.cmd.Process.Pid }

func (h *execHandle) Wait(ctx context.Context) (int, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.code, h.err
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

func (h *execHandle) Kill() error {
	select {
	case <-h.done:
		return nil
	default:
	}
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return h.cmd.Process.Kill()
	}
	return nil
}

func (h *execHandle) Stop(ctx context.Context) error {
	if err := h.Kill(); err != nil {
		return err
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
		return ctx.Err()
	}
}

// exitStatus converts the result of exec.Cmd.Wait into an exit code.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal()), nil
		}
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
