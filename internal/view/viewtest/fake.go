// Package viewtest provides an in-memory view.View for tests.
package viewtest

import (
	"io"

	"github.com/dshills/microstorm/internal/lint"
	"github.com/dshills/microstorm/internal/view"
)

// Tab is an in-memory view.Tab.
type Tab struct {
	path     string
	text     string
	modified bool
}

// NewTab creates a tab.
func NewTab(path, text string) *Tab {
	return &Tab{path: path, text: text}
}

func (t *Tab) Path() string        { return t.path }
func (t *Tab) SetPath(path string) { t.path = path }
func (t *Tab) Text() string        { return t.text }
func (t *Tab) Modified() bool      { return t.modified }
func (t *Tab) SetModified(m bool)  { t.modified = m }

// SetText replaces the content and marks the tab modified.
func (t *Tab) SetText(text string) {
	t.text = text
	t.modified = true
}

// Label implements view.Tab.
func (t *Tab) Label() string {
	if t.path == "" {
		return "untitled"
	}
	return t.path
}

// Message is a recorded ShowMessage call.
type Message struct {
	Text string
	Info string
}

// Annotation is a recorded AnnotateCode call.
type Annotation struct {
	Report   lint.Report
	Severity lint.Severity
}

// ButtonBar records bound actions.
type ButtonBar struct {
	Actions []view.Action
	Resets  int
}

// Reset implements view.ButtonBar.
func (b *ButtonBar) Reset() {
	b.Actions = nil
	b.Resets++
}

// Connect implements view.ButtonBar.
func (b *ButtonBar) Connect(a view.Action) {
	b.Actions = append(b.Actions, a)
}

// Names returns the bound action names in order.
func (b *ButtonBar) Names() []string {
	names := make([]string, len(b.Actions))
	for i, a := range b.Actions {
		names[i] = a.Name
	}
	return names
}

// Press runs the handler bound to name and reports whether one was found.
func (b *ButtonBar) Press(name string) bool {
	for _, a := range b.Actions {
		if a.Name == name {
			a.Handler()
			return true
		}
	}
	return false
}

// View records every call made by the editor core. Answers to prompts are
// configured through the exported fields.
type View struct {
	TabList []*Tab
	Current *Tab

	Messages      []Message
	Confirmations []string
	Annotations   []Annotation
	AnnotResets   int
	Theme         string
	Zoom          int
	Mode          view.ModeInfo
	ModeChanges   int
	Logs          string
	Bar           ButtonBar

	// Prompt answers.
	Confirm    bool
	LoadPath   string
	SavePath   string
	DevicePath string
	ModeChoice string

	// Prompt requests, by directory.
	LoadPrompts   []string
	SavePrompts   []string
	DevicePrompts []string

	Repl        io.ReadWriter
	ReplPort    string
	ReplErr     error
	Filesystem  io.ReadWriter
	FSHome      string
	MountErr    error
	Runner      io.ReadWriter
	RunnerTitle string
}

var _ view.View = (*View)(nil)

// New creates an empty fake view.
func New() *View {
	return &View{}
}

func (v *View) ShowMessage(text, info string) {
	v.Messages = append(v.Messages, Message{Text: text, Info: info})
}

func (v *View) AttachRepl(port string, conn io.ReadWriter) error {
	if v.ReplErr != nil {
		return v.ReplErr
	}
	v.Repl, v.ReplPort = conn, port
	return nil
}

func (v *View) DetachRepl() { v.Repl, v.ReplPort = nil, "" }

func (v *View) MountFilesystem(conn io.ReadWriter, home string) error {
	if v.MountErr != nil {
		return v.MountErr
	}
	v.Filesystem, v.FSHome = conn, home
	return nil
}

func (v *View) UnmountFilesystem() { v.Filesystem, v.FSHome = nil, "" }

func (v *View) AddTab(path, text string) view.Tab {
	t := NewTab(path, text)
	v.TabList = append(v.TabList, t)
	v.Current = t
	return t
}

func (v *View) FocusTab(tab view.Tab) {
	for _, t := range v.TabList {
		if view.Tab(t) == tab {
			v.Current = t
		}
	}
}

func (v *View) Tabs() []view.Tab {
	tabs := make([]view.Tab, len(v.TabList))
	for i, t := range v.TabList {
		tabs[i] = t
	}
	return tabs
}

func (v *View) TabCount() int { return len(v.TabList) }

func (v *View) CurrentTab() view.Tab {
	if v.Current == nil {
		return nil
	}
	return v.Current
}

func (v *View) Modified() bool {
	for _, t := range v.TabList {
		if t.modified {
			return true
		}
	}
	return false
}

func (v *View) ShowConfirmation(message string) bool {
	v.Confirmations = append(v.Confirmations, message)
	return v.Confirm
}

func (v *View) GetLoadPath(dir string) string {
	v.LoadPrompts = append(v.LoadPrompts, dir)
	return v.LoadPath
}

func (v *View) GetSavePath(dir string) string {
	v.SavePrompts = append(v.SavePrompts, dir)
	return v.SavePath
}

func (v *View) GetDevicePath(dir string) string {
	v.DevicePrompts = append(v.DevicePrompts, dir)
	return v.DevicePath
}

func (v *View) ZoomIn()               { v.Zoom++ }
func (v *View) ZoomOut()              { v.Zoom-- }
func (v *View) SetTheme(theme string) { v.Theme = theme }
func (v *View) ResetAnnotations() {
	v.Annotations = nil
	v.AnnotResets++
}

func (v *View) AnnotateCode(report lint.Report, severity lint.Severity) {
	v.Annotations = append(v.Annotations, Annotation{Report: report, Severity: severity})
}

func (v *View) ButtonBar() view.ButtonBar { return &v.Bar }

func (v *View) ChangeMode(mode view.ModeInfo) {
	v.Mode = mode
	v.ModeChanges++
}

func (v *View) SelectMode(_ []view.ModeInfo, _ string) string { return v.ModeChoice }

func (v *View) ShowLogs(text string) { v.Logs = text }

func (v *View) AttachRunner(title string, conn io.ReadWriter) {
	v.Runner, v.RunnerTitle = conn, title
}

func (v *View) DetachRunner() { v.Runner, v.RunnerTitle = nil, "" }
