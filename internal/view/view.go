// Package view defines the boundary between the editor core and its user
// interface.
//
// The core never draws anything. It asks a View to open tabs, show
// messages, prompt for paths and render annotations, and it binds handlers
// to the View's ButtonBar whenever the mode changes. internal/view/term is
// the terminal implementation; tests use hand-written fakes.
package view

import (
	"io"

	"github.com/dshills/microstorm/internal/device"
	"github.com/dshills/microstorm/internal/lint"
)

// Tab is an open editor buffer.
type Tab interface {
	// Path is the file the tab is saved to, or "" for an unsaved buffer.
	Path() string
	SetPath(path string)

	// Label is the name shown on the tab.
	Label() string

	// Text returns the buffer content.
	Text() string

	Modified() bool
	SetModified(modified bool)
}

// Action is a named command shown on the button bar.
type Action struct {
	Name        string
	Description string
	Shortcut    string
	Handler     func()
}

// ButtonBar is the control surface. It is rebound on every mode change.
type ButtonBar interface {
	// Reset removes every button.
	Reset()

	// Connect adds a button for action.
	Connect(action Action)
}

// CloseEvent is the window system's request to close the application.
type CloseEvent interface {
	// Ignore cancels the close.
	Ignore()
}

// ModeInfo describes a mode for display and selection.
type ModeInfo struct {
	Name        string
	DisplayName string
	Description string
	Icon        string
}

// Severity tags annotations for rendering.
type Severity = lint.Severity

// View is everything the editor core needs from the user interface.
//
// It embeds device.Surface so the device mediator can attach and detach
// the REPL and file system panes directly.
type View interface {
	device.Surface

	// AddTab opens a tab. An empty path creates an unsaved buffer.
	AddTab(path, text string) Tab
	FocusTab(tab Tab)

	// Tabs returns the open tabs in display order.
	Tabs() []Tab
	TabCount() int

	// CurrentTab returns the active tab, or nil.
	CurrentTab() Tab

	// Modified reports whether any tab has unsaved changes.
	Modified() bool

	// ShowConfirmation asks the user to confirm message. False means
	// cancel.
	ShowConfirmation(message string) bool

	// GetLoadPath, GetSavePath and GetDevicePath prompt the user for a
	// path starting in dir. An empty result means the user declined.
	GetLoadPath(dir string) string
	GetSavePath(dir string) string
	GetDevicePath(dir string) string

	ZoomIn()
	ZoomOut()
	SetTheme(theme string)

	// ResetAnnotations clears every annotation.
	ResetAnnotations()
	// AnnotateCode renders a check report.
	AnnotateCode(report lint.Report, severity Severity)

	// ButtonBar returns the control surface.
	ButtonBar() ButtonBar

	// ChangeMode updates the chrome (title, icons, status) for mode.
	ChangeMode(mode ModeInfo)

	// SelectMode asks the user to pick one of modes. It returns "" if the
	// user cancelled.
	SelectMode(modes []ModeInfo, current string) string

	// ShowLogs displays the log file content.
	ShowLogs(text string)

	// AttachRunner shows the output of a running script and forwards user
	// input to it.
	AttachRunner(title string, conn io.ReadWriter)
	// DetachRunner removes the runner pane.
	DetachRunner()
}
