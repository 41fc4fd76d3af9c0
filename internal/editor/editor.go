// Package editor is the facade the user interface talks to. It owns the
// tab operations (new, load, save), session restore and quit, code checks,
// and the mode-independent buttons, delegating to the session store, the
// mode registry and the code checker.
package editor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/browser"

	"github.com/dshills/microstorm/internal/device/hexfile"
	"github.com/dshills/microstorm/internal/lint"
	"github.com/dshills/microstorm/internal/logging"
	"github.com/dshills/microstorm/internal/mode"
	"github.com/dshills/microstorm/internal/session"
	"github.com/dshills/microstorm/internal/vfs"
	"github.com/dshills/microstorm/internal/view"
)

const (
	// StarterScript fills the tab opened when nothing else is.
	StarterScript = "from microbit import *\n\n# Write your code here :-)"

	msgUnsaved = "There is un-saved work, exiting the application will cause you to lose it."

	msgSaveFailed  = "Could not save file."
	infoSaveFailed = "Error saving file to disk. Ensure you have permission to write the " +
		"file and sufficient disk space."

	untitled = "untitled"

	defaultCheckTimeout = 30 * time.Second
)

// SessionStore persists the session.
type SessionStore interface {
	Load() session.Session
	Save(sess session.Session) error
}

// CodeChecker runs the code checks.
type CodeChecker interface {
	CheckUndefinedNames(ctx context.Context, filename, source string) (lint.Report, error)
	CheckStyle(ctx context.Context, source string) (lint.Report, error)
}

// RuntimeHolder keeps the user's micro:bit runtime image override.
type RuntimeHolder interface {
	RuntimeOverride() string
	SetRuntimeOverride(path string)
}

// Editor is the application facade.
//
// Editor is not safe for concurrent use; its methods run on the user
// interface's event loop.
type Editor struct {
	view    view.View
	modes   *mode.Registry
	store   SessionStore
	checker CodeChecker
	fs      vfs.VFS
	logger  *logging.Logger

	runtime RuntimeHolder
	exit    func(code int)
	openURL func(url string) error

	helpURL      string
	version      string
	logFile      string
	checkTimeout time.Duration

	theme session.Theme
}

// Option configures an Editor.
type Option func(*Editor)

// WithFS sets the file system tabs are loaded from and saved to.
func WithFS(fsys vfs.VFS) Option {
	return func(e *Editor) {
		e.fs = fsys
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Editor) {
		e.logger = l
	}
}

// WithExit sets the function that ends the process after a confirmed quit.
func WithExit(fn func(code int)) Option {
	return func(e *Editor) {
		e.exit = fn
	}
}

// WithBrowser replaces the function that opens help in a web browser.
func WithBrowser(fn func(url string) error) Option {
	return func(e *Editor) {
		e.openURL = fn
	}
}

// WithHelp sets the help base URL and the version appended to it.
func WithHelp(baseURL, version string) Option {
	return func(e *Editor) {
		e.helpURL = strings.TrimSuffix(baseURL, "/")
		e.version = version
	}
}

// WithLogFile sets the file shown by ShowLogs.
func WithLogFile(path string) Option {
	return func(e *Editor) {
		e.logFile = path
	}
}

// WithRuntime sets the holder of the micro:bit runtime override, which is
// restored from and persisted to the session.
func WithRuntime(r RuntimeHolder) Option {
	return func(e *Editor) {
		e.runtime = r
	}
}

// WithCheckTimeout bounds each code check.
func WithCheckTimeout(d time.Duration) Option {
	return func(e *Editor) {
		e.checkTimeout = d
	}
}

// New creates the editor and installs its buttons on the registry.
func New(v view.View, modes *mode.Registry, store SessionStore, checker CodeChecker, opts ...Option) *Editor {
	e := &Editor{
		view:         v,
		modes:        modes,
		store:        store,
		checker:      checker,
		fs:           vfs.NewOSFS(),
		logger:       logging.Discard(),
		exit:         func(int) {},
		openURL:      browser.OpenURL,
		helpURL:      "https://codewith.mu/help",
		version:      "dev",
		checkTimeout: defaultCheckTimeout,
		theme:        session.ThemeDay,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("editor")

	leading, trailing := e.fixedActions()
	modes.SetFixedActions(leading, trailing)
	return e
}

// fixedActions are the buttons shown in every mode, before and after the
// mode's own.
func (e *Editor) fixedActions() (leading, trailing []view.Action) {
	leading = []view.Action{
		{Name: "new", Description: "Create a new script.", Shortcut: "Ctrl+N", Handler: e.New},
		{Name: "load", Description: "Load a script.", Shortcut: "Ctrl+O", Handler: e.Load},
		{Name: "save", Description: "Save the current script.", Shortcut: "Ctrl+S", Handler: e.Save},
	}
	trailing = []view.Action{
		{Name: "zoom-in", Description: "Zoom in.", Handler: e.ZoomIn},
		{Name: "zoom-out", Description: "Zoom out.", Handler: e.ZoomOut},
		{Name: "theme", Description: "Toggle day and night themes.", Handler: e.ToggleTheme},
		{Name: "check", Description: "Check your code for mistakes.", Shortcut: "Ctrl+K", Handler: e.CheckCode},
		{Name: "help", Description: "Show help in a browser.", Handler: e.ShowHelp},
		{Name: "quit", Description: "Quit the editor.", Shortcut: "Ctrl+Q", Handler: func() { e.Quit(nil) }},
		{Name: "modes", Description: "Change mode.", Shortcut: "Ctrl+E", Handler: e.SelectMode},
		{Name: "logs", Description: "Show the log file.", Handler: e.ShowLogs},
	}
	return leading, trailing
}

// Theme returns the current theme.
func (e *Editor) Theme() session.Theme {
	return e.theme
}

// workspace is the active mode's workspace directory.
func (e *Editor) workspace() string {
	if m := e.modes.Current(); m != nil {
		return m.WorkspaceDir()
	}
	return ""
}

// New opens an empty unsaved tab.
func (e *Editor) New() {
	e.logger.Info("added a new tab")
	e.view.AddTab("", "")
}

// Load asks for a file in the workspace and opens it.
func (e *Editor) Load() {
	path := e.view.GetLoadPath(e.workspace())
	if path == "" {
		e.logger.Debug("load cancelled")
		return
	}
	e.DirectLoad(path)
}

// DirectLoad opens path in a new tab. A .py file opens with its path; any
// other file is read as a runtime image and its embedded script opens as
// an unsaved buffer. A file that is already open is focused instead.
func (e *Editor) DirectLoad(path string) {
	e.logger.Info("loading script from: %s", path)

	if tab := e.findTab(path); tab != nil {
		e.logger.Info("script already open")
		e.view.ShowMessage(fmt.Sprintf("The file \"%s\" is already open", filepath.Base(path)), "")
		e.view.FocusTab(tab)
		return
	}

	tabPath, text, err := e.read(path)
	if err != nil {
		if vfs.IsNotExist(err) {
			e.logger.Warn("could not load %s", path)
			return
		}
		e.logger.Error("%v", err)
		e.view.ShowMessage(fmt.Sprintf("Could not load %q.", filepath.Base(path)), err.Error())
		return
	}
	e.view.AddTab(tabPath, text)
}

func (e *Editor) read(path string) (tabPath, text string, err error) {
	data, err := e.fs.ReadFile(path)
	if err != nil {
		return "", "", NewOperationError("load", path, err)
	}
	if isPython(path) {
		return path, string(data), nil
	}
	script, err := hexfile.Extract(data)
	if err != nil {
		return "", "", NewOperationError("extract script", path, err)
	}
	return "", script, nil
}

// findTab returns the tab saved at path, or nil.
func (e *Editor) findTab(path string) view.Tab {
	want := e.abs(path)
	for _, tab := range e.view.Tabs() {
		if tab.Path() == "" {
			continue
		}
		if e.abs(tab.Path()) == want {
			return tab
		}
	}
	return nil
}

func (e *Editor) abs(path string) string {
	if p, err := e.fs.Abs(path); err == nil {
		return p
	}
	return filepath.Clean(path)
}

func isPython(path string) bool {
	return strings.HasSuffix(filepath.Base(path), ".py")
}

// Save writes the current tab. An unsaved buffer first asks for a path;
// ".py" is appended when the name lacks it.
func (e *Editor) Save() {
	tab := e.view.CurrentTab()
	if tab == nil {
		return
	}
	if tab.Path() == "" {
		path := e.view.GetSavePath(e.workspace())
		if path == "" {
			e.logger.Debug("save cancelled")
			return
		}
		tab.SetPath(path)
	}
	if !isPython(tab.Path()) {
		tab.SetPath(tab.Path() + ".py")
	}

	if err := e.write(tab); err != nil {
		e.logger.Error("%v", err)
		e.view.ShowMessage(msgSaveFailed, infoSaveFailed)
		return
	}
	tab.SetModified(false)
}

func (e *Editor) write(tab view.Tab) error {
	e.logger.Info("saving script to: %s", tab.Path())
	if err := e.fs.WriteFile(tab.Path(), []byte(tab.Text()), 0o644); err != nil {
		return NewOperationError("save", tab.Path(), err)
	}
	return nil
}

// ZoomIn makes the text bigger.
func (e *Editor) ZoomIn() {
	e.logger.Info("zoom in")
	e.view.ZoomIn()
}

// ZoomOut makes the text smaller.
func (e *Editor) ZoomOut() {
	e.logger.Info("zoom out")
	e.view.ZoomOut()
}

// ToggleTheme switches between the day and night themes.
func (e *Editor) ToggleTheme() {
	e.theme = e.theme.Toggle()
	e.logger.Info("toggle theme to: %s", e.theme)
	e.view.SetTheme(string(e.theme))
}

// CheckCode replaces the current tab's annotations with fresh check
// results. A checker that cannot run is logged and skipped.
func (e *Editor) CheckCode() {
	e.logger.Info("checking code")
	e.view.ResetAnnotations()
	tab := e.view.CurrentTab()
	if tab == nil {
		return
	}

	filename := tab.Path()
	if filename == "" {
		filename = untitled
	}
	source := tab.Text()

	ctx, cancel := context.WithTimeout(context.Background(), e.checkTimeout)
	defer cancel()

	flakes, err := e.checker.CheckUndefinedNames(ctx, filename, source)
	if err != nil {
		e.logger.Error("undefined names check: %v", err)
	} else if flakes.Len() > 0 {
		e.logger.Info("%d problems found", flakes.Len())
		e.view.AnnotateCode(flakes, lint.SeverityError)
	}

	style, err := e.checker.CheckStyle(ctx, source)
	if err != nil {
		e.logger.Error("style check: %v", err)
	} else if style.Len() > 0 {
		e.logger.Info("%d style issues found", style.Len())
		e.view.AnnotateCode(style, lint.SeverityStyle)
	}
}

// ShowHelp opens the help pages for this version in a web browser.
func (e *Editor) ShowHelp() {
	url := e.helpURL + "/" + e.version
	e.logger.Info("showing help: %s", url)
	if err := e.openURL(url); err != nil {
		e.logger.Error("open browser: %v", err)
		e.view.ShowMessage("Could not open a web browser.", "Visit "+url+" for help.")
	}
}

// ShowLogs displays the log file.
func (e *Editor) ShowLogs() {
	e.logger.Info("showing logs from %s", e.logFile)
	data, err := e.fs.ReadFile(e.logFile)
	if err != nil {
		e.logger.Error("read log file: %v", err)
		e.view.ShowMessage("Could not read the log file.", err.Error())
		return
	}
	e.view.ShowLogs(string(data))
}

// SelectMode asks the user for a mode and switches to it.
func (e *Editor) SelectMode() {
	current := e.modes.CurrentName()
	e.logger.Info("showing available modes: %v", e.modes.Names())
	name := e.view.SelectMode(e.modes.Infos(), current)
	if name == "" || name == current {
		return
	}
	if err := e.ChangeMode(name); err != nil {
		e.logger.Error("%v", err)
	}
}

// ChangeMode activates the named mode.
func (e *Editor) ChangeMode(name string) error {
	if err := e.modes.Activate(name); err != nil {
		return NewOperationError("change mode", name, err)
	}
	return nil
}

// RestoreSession recreates the previous run's tabs. passed is a file named
// on the command line, or ""; it is opened last so it ends up focused.
func (e *Editor) RestoreSession(passed string) {
	sess := e.store.Load()
	e.theme = sess.Theme

	if err := e.ChangeMode(sess.ActiveMode); err != nil {
		e.logger.Error("%v", err)
		if err := e.ChangeMode(session.DefaultMode); err != nil {
			e.logger.Error("%v", err)
		}
	}
	if e.runtime != nil && sess.RuntimeOverride != "" {
		e.runtime.SetRuntimeOverride(sess.RuntimeOverride)
	}

	skip := ""
	if passed != "" {
		skip = e.abs(passed)
	}
	for _, path := range sess.OpenPaths {
		if skip != "" && e.abs(path) == skip {
			continue
		}
		e.DirectLoad(path)
	}
	e.logger.Info("loaded files")

	if passed != "" {
		e.logger.Info("passed-in filename: %s", passed)
		e.DirectLoad(passed)
	}

	if e.view.TabCount() == 0 {
		e.view.AddTab("", StarterScript)
		e.logger.Info("starting with blank file")
	}
	e.view.SetTheme(string(e.theme))
}

// Quit saves the session and exits. Unsaved work must be confirmed first;
// if the user cancels, ev is ignored and nothing else happens. ev may be
// nil when quit comes from a button.
func (e *Editor) Quit(ev view.CloseEvent) {
	if e.view.Modified() && !e.view.ShowConfirmation(msgUnsaved) {
		if ev != nil {
			ev.Ignore()
		}
		return
	}

	if err := e.SaveSession(); err != nil {
		e.logger.Error("%v", err)
	}
	e.modes.Shutdown()
	e.logger.Info("quitting")
	e.exit(0)
}

// SaveSession persists the open paths, theme, mode, workspace and runtime
// override.
func (e *Editor) SaveSession() error {
	sess := e.Snapshot()
	e.logger.Debug("session: %+v", sess)
	if err := e.store.Save(sess); err != nil {
		return NewOperationError("save session", "", err)
	}
	return nil
}

// Snapshot returns the session as it would be persisted now.
func (e *Editor) Snapshot() session.Session {
	paths := make([]string, 0, e.view.TabCount())
	for _, tab := range e.view.Tabs() {
		if tab.Path() != "" {
			paths = append(paths, tab.Path())
		}
	}

	sess := session.Session{
		Theme:             e.theme,
		ActiveMode:        e.modes.CurrentName(),
		OpenPaths:         paths,
		WorkspaceOverride: e.workspace(),
	}
	if sess.ActiveMode == "" {
		sess.ActiveMode = session.DefaultMode
	}
	if e.runtime != nil {
		sess.RuntimeOverride = e.runtime.RuntimeOverride()
	}
	return sess
}
