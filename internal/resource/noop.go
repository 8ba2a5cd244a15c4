package resource

import "sync/atomic"

// Noop stands in for a target whose source directory does not exist.
type Noop struct {
	disposed atomic.Bool
}

var _ Resource = (*Noop)(nil)

func (n *Noop) Rebuild() error {
	if n.disposed.Load() {
		return ErrDisposed
	}
	return nil
}

func (n *Noop) Watch() error {
	if n.disposed.Load() {
		return ErrDisposed
	}
	return nil
}

func (n *Noop) Dispose() error {
	n.disposed.Store(true)
	return nil
}

// State reports StateReady until the resource is disposed.
func (n *Noop) State() State {
	if n.disposed.Load() {
		return StateDisposed
	}
	return StateReady
}
