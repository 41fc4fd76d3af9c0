package process

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Supervisor manages child processes with lifecycle tracking and cleanup.
type Supervisor struct {
	mu        sync.RWMutex
	processes map[string]*Process

	closed atomic.Bool

	onProcessExit func(p *Process)
}

// SupervisorOption configures a Supervisor instance.
type SupervisorOption func(*Supervisor)

// WithProcessExitCallback sets a callback for when processes exit.
func WithProcessExitCallback(fn func(p *Process)) SupervisorOption {
	return func(s *Supervisor) {
		s.onProcessExit = fn
	}
}

// NewSupervisor creates a new process supervisor.
func NewSupervisor(opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		processes: make(map[string]*Process),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts a new managed process under a fresh ID.
//
// Stdin, stdout and stderr are piped unless already configured on cmd.
func (s *Supervisor) Start(name string, cmd *exec.Cmd) (*Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, ErrSupervisorShutdown
	}

	proc := NewProcess(uuid.NewString(), name, cmd)

	var created []interface{ Close() error }
	cleanup := func() {
		for _, p := range created {
			_ = p.Close()
		}
	}

	if cmd.Stdin == nil {
		pipe, err := cmd.StdinPipe()
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("create stdin pipe: %w", err)
		}
		proc.Stdin = pipe
		created = append(created, pipe)
	}

	if cmd.Stdout == nil {
		pipe, err := cmd.StdoutPipe()
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("create stdout pipe: %w", err)
		}
		proc.Stdout = pipe
		created = append(created, pipe)
	}

	if cmd.Stderr == nil {
		pipe, err := cmd.StderrPipe()
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("create stderr pipe: %w", err)
		}
		proc.Stderr = pipe
		created = append(created, pipe)
	}

	if err := proc.start(); err != nil {
		cleanup()
		return nil, err
	}

	s.processes[proc.ID] = proc
	go s.monitorProcess(proc)

	return proc, nil
}

func (s *Supervisor) monitorProcess(proc *Process) {
	<-proc.Done()

	if s.onProcessExit != nil {
		s.onProcessExit(proc)
	}

	s.mu.Lock()
	delete(s.processes, proc.ID)
	s.mu.Unlock()
}

// Get returns a process by ID, or nil.
func (s *Supervisor) Get(id string) *Process {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processes[id]
}

// Count returns the number of running managed processes.
func (s *Supervisor) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.processes)
}

// Stop terminates a process by ID and waits up to timeout before killing it.
func (s *Supervisor) Stop(id string, timeout time.Duration) error {
	proc := s.Get(id)
	if proc == nil {
		return ErrProcessNotFound
	}
	proc.stop(timeout)
	return nil
}

// Shutdown terminates all processes, killing any that outlive timeout.
// Subsequent Start calls fail with ErrSupervisorShutdown.
func (s *Supervisor) Shutdown(timeout time.Duration) {
	if s.closed.Swap(true) {
		return
	}

	s.mu.RLock()
	procs := make([]*Process, 0, len(s.processes))
	for _, p := range s.processes {
		procs = append(procs, p)
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, p := range procs {
		wg.Add(1)
		go func(p *Process) {
			defer wg.Done()
			p.stop(timeout)
		}(p)
	}
	wg.Wait()
}

// Sentinel errors.
var (
	// ErrProcessNotFound is returned when a process ID is not found.
	ErrProcessNotFound = errors.New("process not found")

	// ErrSupervisorShutdown is returned when the supervisor is shutting down.
	ErrSupervisorShutdown = errors.New("supervisor is shutting down")
)
