package orchestrator

// Mode is one of the four mutually exclusive run recipes.
type Mode string

const (
	ModeBuild Mode = "build"
	ModeWatch Mode = "watch"
	ModeDev   Mode = "dev"
	ModeTest  Mode = "test"
)

// Flags are the command-line switches that select a Mode.
type Flags struct {
	Watch bool
	Dev   bool
	Test  bool
	// IgnoreServices disables the dependency-service controller.
	IgnoreServices bool
}

// SelectMode picks the mode for flags. Priority is test, dev, watch, build.
func SelectMode(f Flags) Mode {
	switch {
	case f.Test:
		return ModeTest
	case f.Dev:
		return ModeDev
	case f.Watch:
		return ModeWatch
	default:
		return ModeBuild
	}
}

// LongRunning reports whether a run in mode m waits for an interruption.
func (m Mode) LongRunning(f Flags) bool {
	switch m {
	case ModeDev, ModeWatch:
		return true
	case ModeTest:
		return f.Watch
	default:
		return false
	}
}
