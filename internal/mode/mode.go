// Package mode implements the editor's operating modes and the registry
// that switches between them.
//
// A mode bundles the actions shown on the button bar with the workspace and
// device resources they use. Exactly one mode is active at a time; leaving
// a mode releases whatever device channel it held.
package mode

import (
	"errors"

	"github.com/dshills/microstorm/internal/logging"
	"github.com/dshills/microstorm/internal/view"
)

// Mode names.
const (
	ModePython   = "python"
	ModeMicroBit = "microbit"
)

// ErrUnknownMode is returned for a name no mode was registered under.
var ErrUnknownMode = errors.New("unknown mode")

// Mode is one operating mode.
type Mode interface {
	// Name returns the unique mode identifier (e.g., "python").
	Name() string

	// DisplayName returns a human-readable name for the status line.
	DisplayName() string

	Description() string
	Icon() string

	// SupportsDebugger reports whether the mode offers a debugger.
	SupportsDebugger() bool

	// WorkspaceDir is where the mode loads and saves scripts.
	WorkspaceDir() string

	// Actions returns the mode's buttons in display order.
	Actions() []view.Action

	// Exit is called when the registry switches away from the mode. It
	// releases device channels and child processes the mode holds.
	Exit()
}

// Info returns the display description of m.
func Info(m Mode) view.ModeInfo {
	return view.ModeInfo{
		Name:        m.Name(),
		DisplayName: m.DisplayName(),
		Description: m.Description(),
		Icon:        m.Icon(),
	}
}

// Base holds what every mode shares.
type Base struct {
	View      view.View
	Workspace func() string
	Logger    *logging.Logger
}

// WorkspaceDir implements Mode.
func (b *Base) WorkspaceDir() string {
	if b.Workspace == nil {
		return ""
	}
	return b.Workspace()
}

func (b *Base) logger() *logging.Logger {
	if b.Logger == nil {
		return logging.Discard()
	}
	return b.Logger
}
