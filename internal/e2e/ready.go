package e2e

import (
	"bytes"
	"sync"
)

// ReadyMarker is printed by the application server once it accepts requests.
const ReadyMarker = "Server listening on"

// readySignal is an io.Writer that closes Ready the first time marker
// appears in the written stream, also when it spans two writes.
type readySignal struct {
	marker []byte

	mu    sync.Mutex
	tail  []byte
	fired bool
	ready chan struct{}
}

func newReadySignal(marker string) *readySignal {
	return &readySignal{marker: []byte(marker), ready: make(chan struct{})}
}

func (r *readySignal) Ready() <-chan struct{} { return r.ready }

func (r *readySignal) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fired {
		return len(p), nil
	}

	buf := append(r.tail, p...)
	if bytes.Contains(buf, r.marker) {
		r.fired = true
		r.tail = nil
		close(r.ready)
		return len(p), nil
	}
	keep := len(r.marker) - 1
	if len(buf) > keep {
		buf = buf[len(buf)-keep:]
	}
	r.tail = append([]byte(nil), buf...)
	return len(p), nil
}
