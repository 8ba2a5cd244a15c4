package process

import (
	"context"
	"io"
	"sync"
)

type fakeHandle struct {
	mu     sync.Mutex
	code   int
	kills  int
	stops  int
	output string
}

func (h *fakeHandle) PID() int { return 4242 }

func (h *fakeHandle) Wait(context.Context) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.code, nil
}

func (h *fakeHandle) Kill() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.kills++
	return nil
}

func (h *fakeHandle) Stop(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stops++
	return nil
}

// fakeLauncher records commands and answers each Start from respond.
type fakeLauncher struct {
	mu      sync.Mutex
	cmds    []Command
	respond func(Command) (*fakeHandle, error)
}

func (l *fakeLauncher) Start(cmd Command) (Handle, error) {
	l.mu.Lock()
	l.cmds = append(l.cmds, cmd)
	respond := l.respond
	l.mu.Unlock()

	h := &fakeHandle{}
	if respond != nil {
		var err error
		h, err = respond(cmd)
		if err != nil {
			return nil, err
		}
	}
	if h.output != "" && cmd.Stdout != nil {
		_, _ = io.WriteString(cmd.Stdout, h.output)
	}
	return h, nil
}

func (l *fakeLauncher) commands() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.cmds))
	for i, c := range l.cmds {
		out[i] = c.String()
	}
	return out
}
