package e2e

import (
	"context"
	"io"
	"strings"
	"sync"

	"git.home.luguber.info/inful/slimpack/internal/process"
)

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type fakeServices struct{ j *journal }

func (s fakeServices) Up(context.Context) error   { s.j.add("services up"); return nil }
func (s fakeServices) Down(context.Context) error { s.j.add("services down"); return nil }

// fakeHandle exits with code immediately unless it is long-running, in
// which case it runs until stopped.
type fakeHandle struct {
	j           *journal
	name        string
	code        int
	longRunning bool
	stopped     chan struct{}
	once        sync.Once
}

func (h *fakeHandle) PID() int { return 7 }

func (h *fakeHandle) Wait(ctx context.Context) (int, error) {
	if !h.longRunning {
		return h.code, nil
	}
	select {
	case <-ctx.Done():
		return -1, ctx.Err()
	case <-h.stopped:
		return 143, nil
	}
}

func (h *fakeHandle) Kill() error {
	h.once.Do(func() { close(h.stopped) })
	return nil
}

func (h *fakeHandle) Stop(context.Context) error {
	h.j.add("stop " + h.name)
	return h.Kill()
}

// script describes how the fake launcher answers a command whose string
// form contains match.
type script struct {
	match       string
	code        int
	output      string
	longRunning bool
}

type fakeLauncher struct {
	j       *journal
	scripts []script
}

func (l *fakeLauncher) Start(cmd process.Command) (process.Handle, error) {
	line := cmd.String()
	l.j.add("start " + line)

	h := &fakeHandle{j: l.j, name: line, stopped: make(chan struct{})}
	for _, s := range l.scripts {
		if !strings.Contains(line, s.match) {
			continue
		}
		h.code = s.code
		h.longRunning = s.longRunning
		if s.output != "" && cmd.Stdout != nil {
			_, _ = io.WriteString(cmd.Stdout, s.output)
		}
		break
	}
	return h, nil
}
