package process

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"
)

// State represents the state of a process.
type State int

const (
	// StateCreated indicates the process has been created but not started.
	StateCreated State = iota
	// StateRunning indicates the process is currently running.
	StateRunning
	// StateExited indicates the process has exited normally or with an error.
	StateExited
	// StateKilled indicates the process was killed by a signal.
	StateKilled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Process is a child started by a Supervisor. The REPL and the script
// runner talk to it through the pipes.
type Process struct {
	ID   string
	Name string
	Cmd  *exec.Cmd

	// Stdin, Stdout and Stderr are the pipes created by the Supervisor.
	// Each is nil when the caller configured that stream on Cmd.
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	Stderr io.ReadCloser

	done     chan struct{}
	state    atomic.Int32
	exitCode atomic.Int32
}

// NewProcess wraps cmd, which must not have been started.
func NewProcess(id, name string, cmd *exec.Cmd) *Process {
	p := &Process{ID: id, Name: name, Cmd: cmd, done: make(chan struct{})}
	p.state.Store(int32(StateCreated))
	p.exitCode.Store(-1)
	return p
}

// State returns the current process state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// ExitCode returns the exit status, or -1 before exit or when the child
// could not be waited on.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// IsRunning reports whether the process has started and not yet exited.
func (p *Process) IsRunning() bool {
	return p.State() == StateRunning
}

// HasExited reports whether the process exited or was killed.
func (p *Process) HasExited() bool {
	s := p.State()
	return s == StateExited || s == StateKilled
}

// Kill sends SIGKILL.
func (p *Process) Kill() error {
	if !p.IsRunning() {
		return ErrProcessNotStarted
	}
	return p.Cmd.Process.Kill()
}

// Terminate sends SIGTERM.
func (p *Process) Terminate() error {
	if !p.IsRunning() {
		return ErrProcessNotStarted
	}
	return p.Cmd.Process.Signal(syscall.SIGTERM)
}

// stop terminates the process and kills it if it outlives timeout.
func (p *Process) stop(timeout time.Duration) {
	if !p.IsRunning() {
		return
	}
	_ = p.Terminate()

	select {
	case <-p.done:
	case <-time.After(timeout):
		_ = p.Kill()
		<-p.done
	}
}

func (p *Process) start() error {
	if p.State() != StateCreated {
		return ErrProcessAlreadyStarted
	}
	if err := p.Cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.Name, err)
	}
	p.state.Store(int32(StateRunning))
	go p.wait()
	return nil
}

func (p *Process) wait() {
	err := p.Cmd.Wait()

	code, state := 0, StateExited
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		code = exitErr.ExitCode()
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			state = StateKilled
		}
	default:
		code = -1
	}

	p.exitCode.Store(int32(code))
	p.state.Store(int32(state))
	close(p.done)
}

// Close closes the pipes created for the process. It does not kill it.
func (p *Process) Close() error {
	var errs []error
	for _, c := range []io.Closer{p.Stdin, p.Stdout, p.Stderr} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	// ErrProcessNotStarted is returned when a signal is sent to a process
	// that is not running.
	ErrProcessNotStarted = errors.New("process not started")

	// ErrProcessAlreadyStarted is returned when starting a process twice.
	ErrProcessAlreadyStarted = errors.New("process already started")
)
