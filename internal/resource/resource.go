package resource

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Target names the compilation a resource is bound to.
type Target string

const (
	TargetClient Target = "client"
	TargetServer Target = "server"
)

// Resource is one compiler session bound to a source and an output directory.
type Resource interface {
	// Rebuild performs a full build and returns once it has finished.
	Rebuild() error
	// Watch switches the session into continuous mode and returns once the
	// watch is established. Rebuilds triggered by the watcher are not
	// reported to the caller.
	Watch() error
	// Dispose releases the session and its watchers. It is idempotent.
	Dispose() error
}

// ErrDisposed is returned by Rebuild and Watch once a resource has been disposed.
var ErrDisposed = errors.New("resource disposed")

// State reports the lifecycle position of a resource.
type State int

const (
	StateReady State = iota
	StateRebuilding
	StateWatching
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRebuilding:
		return "rebuilding"
	case StateWatching:
		return "watching"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// BuildError reports a compilation that finished with errors.
type BuildError struct {
	Target   Target
	Messages []string
}

func (e *BuildError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s build failed with %d error(s)", e.Target, len(e.Messages))
	for _, m := range e.Messages {
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(m, "\n"))
	}
	return b.String()
}

func newBuildError(target Target, msgs []api.Message) *BuildError {
	return &BuildError{
		Target:   target,
		Messages: api.FormatMessages(msgs, api.FormatMessagesOptions{Kind: api.ErrorMessage}),
	}
}
