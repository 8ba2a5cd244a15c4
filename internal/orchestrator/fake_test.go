package orchestrator

import (
	"bytes"
	"context"
	"sync"

	"git.home.luguber.info/inful/slimpack/internal/process"
	"git.home.luguber.info/inful/slimpack/internal/resource"
)

// journal records the order in which fakes are driven.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func (j *journal) count(entry string) int {
	n := 0
	for _, e := range j.list() {
		if e == entry {
			n++
		}
	}
	return n
}

func (j *journal) index(entry string) int {
	for i, e := range j.list() {
		if e == entry {
			return i
		}
	}
	return -1
}

type fakeResource struct {
	name       string
	j          *journal
	rebuildErr error
	watchErr   error
	onRebuild  func()

	mu       sync.Mutex
	rebuilds int
	disposes int
}

func (r *fakeResource) Rebuild() error {
	r.mu.Lock()
	r.rebuilds++
	r.mu.Unlock()
	r.j.add("rebuild " + r.name)
	if r.onRebuild != nil {
		r.onRebuild()
	}
	return r.rebuildErr
}

func (r *fakeResource) Watch() error {
	r.j.add("watch " + r.name)
	return r.watchErr
}

func (r *fakeResource) Dispose() error {
	r.mu.Lock()
	r.disposes++
	r.mu.Unlock()
	r.j.add("dispose " + r.name)
	return nil
}

func (r *fakeResource) disposeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposes
}

func (r *fakeResource) rebuildCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rebuilds
}

type fakeFactory struct {
	client    *fakeResource
	server    *fakeResource
	serverErr error
	opts      resource.Options
}

func (f *fakeFactory) Client() (resource.Resource, error) { return f.client, nil }

func (f *fakeFactory) Server() (resource.Resource, error) {
	if f.serverErr != nil {
		return nil, f.serverErr
	}
	return f.server, nil
}

type fakeCSS struct {
	j    *journal
	code int
	// block holds Wait until ctx is done.
	block bool
}

func (c *fakeCSS) Wait(ctx context.Context) (int, error) {
	if c.block {
		<-ctx.Done()
		return -1, ctx.Err()
	}
	return c.code, nil
}

func (c *fakeCSS) Kill() error {
	c.j.add("kill css")
	return nil
}

type fakeServices struct {
	j *journal
}

func (s *fakeServices) Up(context.Context) error {
	s.j.add("services up")
	return nil
}

func (s *fakeServices) Down(context.Context) error {
	s.j.add("services down")
	return nil
}

type fakeHandle struct {
	j       *journal
	name    string
	code    int
	block   bool
	stopped chan struct{}
	once    sync.Once
	done    func()
}

func (h *fakeHandle) PID() int { return 1000 }

func (h *fakeHandle) Wait(ctx context.Context) (int, error) {
	defer h.done()
	if !h.block {
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
	h.once.Do(func() { close(h.stopped) })
	return nil
}

// fakeLauncher starts fake handles and tracks how many of them are waited
// on at the same time.
type fakeLauncher struct {
	j     *journal
	code  int
	block bool

	mu        sync.Mutex
	started   []string
	running   int
	maxRunning int
}

func (l *fakeLauncher) Start(cmd process.Command) (process.Handle, error) {
	l.mu.Lock()
	l.started = append(l.started, cmd.String())
	l.running++
	if l.running > l.maxRunning {
		l.maxRunning = l.running
	}
	l.mu.Unlock()
	l.j.add("start " + cmd.String())

	var once sync.Once
	return &fakeHandle{
		j:       l.j,
		name:    cmd.Name,
		code:    l.code,
		block:   l.block,
		stopped: make(chan struct{}),
		done: func() {
			once.Do(func() {
				l.mu.Lock()
				l.running--
				l.mu.Unlock()
			})
		},
	}, nil
}

func (l *fakeLauncher) starts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.started...)
}

func (l *fakeLauncher) maxConcurrent() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxRunning
}

// fakeSource emits changes on demand.
type fakeSource struct {
	changes chan struct{}
	root    string
}

func newFakeSource() *fakeSource {
	return &fakeSource{changes: make(chan struct{}, 1)}
}

func (s *fakeSource) Changes() <-chan struct{} { return s.changes }

func (s *fakeSource) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *fakeSource) trigger() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// syncBuffer is a bytes.Buffer safe for the run goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
