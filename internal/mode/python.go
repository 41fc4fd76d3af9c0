package mode

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/dshills/microstorm/internal/process"
	"github.com/dshills/microstorm/internal/view"
)

var (
	// ErrReplRunning is returned when starting a second REPL.
	ErrReplRunning = errors.New("repl already running")

	// ErrReplNotRunning is returned when stopping a REPL that is not
	// running.
	ErrReplNotRunning = errors.New("repl not running")
)

// stopTimeout is how long a child gets to exit after SIGTERM.
const stopTimeout = 2 * time.Second

// Launcher starts and stops child processes.
type Launcher interface {
	Start(name string, cmd *exec.Cmd) (*process.Process, error)
	Stop(id string, timeout time.Duration) error
}

// PythonMode runs scripts with the local Python 3 interpreter and offers
// an interactive interpreter as its REPL.
type PythonMode struct {
	Base

	launcher Launcher
	python   string
	save     func()

	// mu guards the child IDs and their output pipes; ProcessExited runs
	// on the supervisor's goroutine.
	mu     sync.Mutex
	runner string
	repl   string
	output map[string]*pipe
}

// pipe carries a child's merged stdout and stderr to the view.
type pipe struct {
	r *io.PipeReader
	w *io.PipeWriter
}

// NewPythonMode creates the Python 3 mode. save is called to name an
// unsaved tab before it is run.
func NewPythonMode(base Base, launcher Launcher, python string, save func()) *PythonMode {
	if python == "" {
		python = "python3"
	}
	return &PythonMode{
		Base:     base,
		launcher: launcher,
		python:   python,
		save:     save,
		output:   make(map[string]*pipe),
	}
}

func (m *PythonMode) Name() string           { return ModePython }
func (m *PythonMode) DisplayName() string    { return "Python 3" }
func (m *PythonMode) Description() string    { return "Create code using standard Python 3." }
func (m *PythonMode) Icon() string           { return "python" }
func (m *PythonMode) SupportsDebugger() bool { return true }

// Actions implements Mode.
func (m *PythonMode) Actions() []view.Action {
	return []view.Action{
		{Name: "run", Description: "Run your Python script.", Handler: m.Run},
		{Name: "repl", Description: "Use the REPL for live coding.", Handler: func() {
			if err := m.ToggleRepl(); err != nil {
				m.logger().Error("toggle repl: %v", err)
			}
		}},
	}
}

// Run saves the current tab if it has no path yet, then runs it in the
// workspace. A previous run still in progress is stopped first.
func (m *PythonMode) Run() {
	tab := m.View.CurrentTab()
	if tab == nil {
		return
	}
	if tab.Path() == "" && m.save != nil {
		m.save()
	}
	path := tab.Path()
	if path == "" {
		return
	}

	m.stop(m.take(&m.runner))
	m.logger().Info("running script: %s", path)

	cmd := exec.Command(m.python, "-u", path)
	cmd.Dir = m.WorkspaceDir()
	conn, err := m.start("run "+filepath.Base(path), cmd, &m.runner)
	if err != nil {
		m.logger().Error("run %s: %v", path, err)
		m.View.ShowMessage("Could not run your script.", err.Error())
		return
	}
	m.View.AttachRunner(filepath.Base(path), conn)
}

// ToggleRepl starts or stops the interactive interpreter. An interpreter
// that has exited on its own counts as stopped.
func (m *PythonMode) ToggleRepl() error {
	if m.get(&m.repl) == "" {
		m.logger().Info("toggle REPL on")
		return m.AddRepl()
	}
	m.logger().Info("toggle REPL off")
	return m.RemoveRepl()
}

// AddRepl starts an interactive interpreter in the REPL pane.
func (m *PythonMode) AddRepl() error {
	if m.get(&m.repl) != "" {
		return ErrReplRunning
	}

	cmd := exec.Command(m.python, "-i", "-u")
	cmd.Dir = m.WorkspaceDir()
	conn, err := m.start("repl", cmd, &m.repl)
	if err != nil {
		m.View.ShowMessage("Could not start the Python REPL.", err.Error())
		return nil
	}
	if err := m.View.AttachRepl(m.python, conn); err != nil {
		m.stop(m.take(&m.repl))
		return fmt.Errorf("attach repl: %w", err)
	}
	return nil
}

// RemoveRepl stops the interactive interpreter.
func (m *PythonMode) RemoveRepl() error {
	id := m.take(&m.repl)
	m.View.DetachRepl()
	if id == "" {
		return ErrReplNotRunning
	}
	m.stop(id)
	return nil
}

// Exit implements Mode. Panes of children that already finished are
// closed too.
func (m *PythonMode) Exit() {
	m.View.DetachRepl()
	m.View.DetachRunner()
	m.stop(m.take(&m.repl))
	m.stop(m.take(&m.runner))
}

// ProcessExited closes the output stream of a finished child. It is
// installed as the supervisor's exit callback.
func (m *PythonMode) ProcessExited(p *process.Process) {
	m.mu.Lock()
	out := m.output[p.ID]
	delete(m.output, p.ID)
	if m.repl == p.ID {
		m.repl = ""
	}
	if m.runner == p.ID {
		m.runner = ""
	}
	m.mu.Unlock()

	if out != nil {
		_ = out.w.Close()
	}
	m.logger().Debug("%s exited with status %d", p.Name, p.ExitCode())
}

func (m *PythonMode) get(slot *string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *slot
}

// take clears slot and returns the ID it held.
func (m *PythonMode) take(slot *string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := *slot
	*slot = ""
	return id
}

// start launches cmd with stdout and stderr merged into one stream and
// records its ID in slot.
func (m *PythonMode) start(name string, cmd *exec.Cmd, slot *string) (io.ReadWriter, error) {
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	// Hold the lock across Start so ProcessExited always finds the pipe
	// and the slot.
	m.mu.Lock()
	defer m.mu.Unlock()

	proc, err := m.launcher.Start(name, cmd)
	if err != nil {
		_ = pw.Close()
		return nil, err
	}
	m.output[proc.ID] = &pipe{r: pr, w: pw}
	*slot = proc.ID

	return childConn{Reader: pr, Writer: proc.Stdin}, nil
}

// stop terminates a child. Its output reader is closed first so a child
// blocked writing to a detached pane can exit.
func (m *PythonMode) stop(id string) {
	if id == "" {
		return
	}

	m.mu.Lock()
	out := m.output[id]
	m.mu.Unlock()
	if out != nil {
		_ = out.r.Close()
	}

	if err := m.launcher.Stop(id, stopTimeout); err != nil && !errors.Is(err, process.ErrProcessNotFound) {
		m.logger().Warn("stop %s: %v", id, err)
	}
}

// childConn joins a child's merged output with its stdin.
type childConn struct {
	io.Reader
	io.Writer
}
