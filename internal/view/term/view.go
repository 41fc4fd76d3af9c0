// Package term is a terminal user interface for the editor, built on tcell.
//
// View implements view.View. Every method must be called from the goroutine
// running Run; action handlers bound to the button bar run there too, so
// prompts can poll the screen directly. Pane output arrives on background
// goroutines and is handed over through interrupt events.
package term

import (
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/microstorm/internal/lint"
	"github.com/dshills/microstorm/internal/logging"
	"github.com/dshills/microstorm/internal/view"
)

// stopEvent wakes Run after Stop. The stopped flag is what ends it: the
// event is dropped when the queue is full.
type stopEvent struct{}

// View is the terminal user interface.
type View struct {
	screen tcell.Screen
	logger *logging.Logger

	tabs    []*Tab
	current int

	bar    buttonBar
	theme  string
	colors palette
	zoom   int
	mode   view.ModeInfo

	message string
	info    string

	panes     []*pane
	paneFocus bool

	stopped atomic.Bool
}

var _ view.View = (*View)(nil)

// Option configures a View.
type Option func(*View)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(v *View) {
		v.logger = l
	}
}

// New initializes screen and returns a view drawing on it. Use
// tcell.NewScreen for a real terminal and tcell.NewSimulationScreen in
// tests.
func New(screen tcell.Screen, opts ...Option) (*View, error) {
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}
	screen.EnablePaste()

	v := &View{
		screen:  screen,
		logger:  logging.Discard(),
		current: -1,
		theme:   "day",
		colors:  dayPalette,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.WithComponent("term")
	return v, nil
}

// Run processes terminal events until Stop is called.
func (v *View) Run() {
	v.draw()
	for !v.stopped.Load() {
		ev := v.screen.PollEvent()
		if ev == nil || v.stopped.Load() {
			return
		}
		v.handle(ev)
		v.draw()
	}
}

// Stop makes Run return. It is safe to call from any goroutine.
func (v *View) Stop() {
	v.stopped.Store(true)
	if err := v.screen.PostEvent(tcell.NewEventInterrupt(stopEvent{})); err != nil {
		v.logger.Debug("stop event not queued: %v", err)
	}
}

// Close restores the terminal.
func (v *View) Close() {
	v.screen.Fini()
}

func (v *View) handle(ev tcell.Event) {
	switch e := ev.(type) {
	case *tcell.EventResize:
		v.screen.Sync()
	case *tcell.EventInterrupt:
		v.drainPanes()
	case *tcell.EventKey:
		v.handleKey(e)
	}
}

func (v *View) handleKey(ev *tcell.EventKey) {
	v.drainPanes()
	v.message, v.info = "", ""

	c := chordOf(ev)
	if a, ok := v.bar.lookup(c); ok {
		if a.Handler != nil {
			a.Handler()
		}
		return
	}

	switch {
	case c.key == tcell.KeyCtrlT:
		v.paneFocus = !v.paneFocus && len(v.panes) > 0
		return
	case ev.Key() == tcell.KeyPgDn && ev.Modifiers()&tcell.ModCtrl != 0:
		v.cycleTab(1)
		return
	case ev.Key() == tcell.KeyPgUp && ev.Modifiers()&tcell.ModCtrl != 0:
		v.cycleTab(-1)
		return
	}

	if v.paneFocus {
		v.paneKey(ev)
		return
	}
	v.editKey(ev)
}

func (v *View) editKey(ev *tcell.EventKey) {
	t := v.currentTab()
	if t == nil {
		return
	}
	switch ev.Key() {
	case tcell.KeyRune:
		t.insert(ev.Rune())
	case tcell.KeyTab:
		for i := 0; i < 4; i++ {
			t.insert(' ')
		}
	case tcell.KeyEnter:
		t.newline()
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		t.backspace()
	case tcell.KeyUp:
		t.move(-1, 0)
	case tcell.KeyDown:
		t.move(1, 0)
	case tcell.KeyLeft:
		t.move(0, -1)
	case tcell.KeyRight:
		t.move(0, 1)
	case tcell.KeyHome:
		t.col = 0
	case tcell.KeyEnd:
		t.col = len(t.line())
	}
}

func (v *View) paneKey(ev *tcell.EventKey) {
	p := v.activePane()
	if p == nil {
		v.paneFocus = false
		return
	}
	switch ev.Key() {
	case tcell.KeyRune:
		p.input = append(p.input, ev.Rune())
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(p.input) > 0 {
			p.input = p.input[:len(p.input)-1]
		}
	case tcell.KeyEnter:
		if err := p.send(); err != nil {
			v.logger.Warn("write to %s: %v", p.title, err)
			p.appendText("\n[" + err.Error() + "]\n")
		}
	}
}

func (v *View) cycleTab(delta int) {
	if len(v.tabs) == 0 {
		return
	}
	v.current = (v.current + delta + len(v.tabs)) % len(v.tabs)
}

func (v *View) currentTab() *Tab {
	if v.current < 0 || v.current >= len(v.tabs) {
		return nil
	}
	return v.tabs[v.current]
}

// ShowMessage shows message on the status line and information below it
// until the next key press.
func (v *View) ShowMessage(message, information string) {
	v.logger.Debug("message: %s", message)
	v.message, v.info = message, information
	v.draw()
}

// AddTab implements view.View.
func (v *View) AddTab(path, text string) view.Tab {
	t := newTab(path, text)
	v.tabs = append(v.tabs, t)
	v.current = len(v.tabs) - 1
	return t
}

// FocusTab implements view.View.
func (v *View) FocusTab(tab view.Tab) {
	for i, t := range v.tabs {
		if view.Tab(t) == tab {
			v.current = i
			return
		}
	}
}

// Tabs implements view.View.
func (v *View) Tabs() []view.Tab {
	tabs := make([]view.Tab, len(v.tabs))
	for i, t := range v.tabs {
		tabs[i] = t
	}
	return tabs
}

func (v *View) TabCount() int { return len(v.tabs) }

// CurrentTab implements view.View.
func (v *View) CurrentTab() view.Tab {
	if t := v.currentTab(); t != nil {
		return t
	}
	return nil
}

// Modified implements view.View.
func (v *View) Modified() bool {
	for _, t := range v.tabs {
		if t.modified {
			return true
		}
	}
	return false
}

// ZoomIn and ZoomOut track a zoom level. A terminal cannot scale its font,
// so the level is only shown on the status line.
func (v *View) ZoomIn()  { v.zoom++ }
func (v *View) ZoomOut() { v.zoom-- }

// SetTheme implements view.View.
func (v *View) SetTheme(theme string) {
	v.theme = theme
	v.colors = paletteFor(theme)
}

// ResetAnnotations implements view.View.
func (v *View) ResetAnnotations() {
	for _, t := range v.tabs {
		clear(t.annotations)
	}
}

// AnnotateCode marks the report's lines on the current tab.
func (v *View) AnnotateCode(report lint.Report, _ view.Severity) {
	t := v.currentTab()
	if t == nil {
		return
	}
	for line, anns := range report {
		t.annotations[line] = append(t.annotations[line], anns...)
	}
}

// ButtonBar implements view.View.
func (v *View) ButtonBar() view.ButtonBar { return &v.bar }

// ChangeMode implements view.View.
func (v *View) ChangeMode(mode view.ModeInfo) {
	v.mode = mode
}

// ShowLogs opens the log pane.
func (v *View) ShowLogs(text string) {
	p := newPane(paneLogs, "logs", nil)
	p.appendText(text)
	v.setPane(p)
}

// AttachRepl implements device.Surface.
func (v *View) AttachRepl(port string, conn io.ReadWriter) error {
	v.attach(newPane(paneRepl, "REPL "+port, conn))
	return nil
}

// DetachRepl implements device.Surface.
func (v *View) DetachRepl() { v.removePane(paneRepl) }

// MountFilesystem implements device.Surface.
func (v *View) MountFilesystem(conn io.ReadWriter, home string) error {
	v.attach(newPane(paneFiles, "files: "+filepath.Base(home), conn))
	return nil
}

// UnmountFilesystem implements device.Surface.
func (v *View) UnmountFilesystem() { v.removePane(paneFiles) }

// AttachRunner implements view.View.
func (v *View) AttachRunner(title string, conn io.ReadWriter) {
	v.attach(newPane(paneRunner, "running "+title, conn))
}

// DetachRunner implements view.View.
func (v *View) DetachRunner() { v.removePane(paneRunner) }

func (v *View) attach(p *pane) {
	v.setPane(p)
	go p.pump(v.screen)
}

// setPane replaces the pane of the same kind and shows p.
func (v *View) setPane(p *pane) {
	v.removePane(p.kind)
	v.panes = append(v.panes, p)
}

func (v *View) removePane(kind paneKind) {
	for i, p := range v.panes {
		if p.kind == kind {
			v.panes = append(v.panes[:i], v.panes[i+1:]...)
			break
		}
	}
	if len(v.panes) == 0 {
		v.paneFocus = false
	}
}

// activePane is the most recently attached pane.
func (v *View) activePane() *pane {
	if len(v.panes) == 0 {
		return nil
	}
	return v.panes[len(v.panes)-1]
}

func (v *View) drainPanes() {
	for _, p := range v.panes {
		p.drain()
	}
}
