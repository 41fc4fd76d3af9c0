package device

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"syscall"

	"go.bug.st/serial"

	"github.com/dshills/microstorm/internal/logging"
)

// Channel contract errors. These indicate a logic error in the caller, not
// a runtime condition, and are never shown to the user.
var (
	// ErrChannelConflict is returned when activating one channel while the
	// other is active.
	ErrChannelConflict = errors.New("repl and file system cannot be active at the same time")

	// ErrChannelActive is returned when activating a channel that is
	// already active.
	ErrChannelActive = errors.New("channel already active")

	// ErrChannelNotActive is returned when removing a channel that is not
	// active.
	ErrChannelNotActive = errors.New("channel not active")
)

// User-facing messages.
const (
	msgConflict      = "REPL and file system cannot work at the same time."
	infoConflictRepl = "The REPL and file system both use the same USB serial connection. " +
		"Only one can be active at any time. Toggle the file system off and try again."
	infoConflictFS = "The REPL and file system both use the same USB serial connection. " +
		"Only one can be active at any time. Toggle the REPL off and try again."

	msgNotFound  = "Could not find an attached device."
	infoNotFound = "Please make sure the device is plugged into this computer.\n\n" +
		"It must have a version of MicroPython flashed onto it before the REPL will work.\n\n" +
		"Finally, press the device's reset button and wait a few seconds before trying again."

	msgFSNotFound  = "Could not find an attached BBC micro:bit."
	infoFSNotFound = "Please make sure the device is plugged into this computer.\n\n" +
		"The device must have MicroPython flashed onto it before the file system will work.\n\n" +
		"Finally, press the device's reset button and wait a few seconds before trying again."

	infoIOError = "Click the device's reset button, wait a few seconds and then try again."
)

// State is the device channel state.
type State int

const (
	// Idle means no channel holds the serial connection.
	Idle State = iota
	// ReplActive means the interactive REPL holds the connection.
	ReplActive
	// FilesystemActive means the file system view holds the connection.
	FilesystemActive
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ReplActive:
		return "repl"
	case FilesystemActive:
		return "filesystem"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Surface is the part of the user interface the mediator drives.
type Surface interface {
	// ShowMessage reports a problem to the user.
	ShowMessage(message, information string)

	// AttachRepl shows a live REPL over conn.
	AttachRepl(port string, conn io.ReadWriter) error

	// DetachRepl removes the REPL view.
	DetachRepl()

	// MountFilesystem shows the device file system next to home.
	MountFilesystem(conn io.ReadWriter, home string) error

	// UnmountFilesystem removes the file system view.
	UnmountFilesystem()
}

// Locator finds the port of an attached board.
type Locator interface {
	Find() (string, error)
}

// Opener opens a serial connection to port.
type Opener func(port string) (io.ReadWriteCloser, error)

// DefaultBaudRate is the MicroPython REPL speed.
const DefaultBaudRate = 115200

// SerialOpener opens ports with go.bug.st/serial at baud.
func SerialOpener(baud int) Opener {
	return func(port string) (io.ReadWriteCloser, error) {
		return serial.Open(port, &serial.Mode{BaudRate: baud})
	}
}

// Mediator owns the board's serial connection and hands it to at most one
// channel at a time.
//
// Mediator is not safe for concurrent use; it is driven from the UI event
// loop.
type Mediator struct {
	locator   Locator
	open      Opener
	surface   Surface
	workspace func() string
	logger    *logging.Logger

	state State
	conn  io.ReadWriteCloser
	port  string
}

// MediatorOption configures a Mediator.
type MediatorOption func(*Mediator)

// WithOpener replaces the serial opener.
func WithOpener(open Opener) MediatorOption {
	return func(m *Mediator) {
		m.open = open
	}
}

// WithWorkspace sets the directory shown beside the device file system.
func WithWorkspace(dir func() string) MediatorOption {
	return func(m *Mediator) {
		m.workspace = dir
	}
}

// WithMediatorLogger sets the logger.
func WithMediatorLogger(l *logging.Logger) MediatorOption {
	return func(m *Mediator) {
		m.logger = l
	}
}

// NewMediator creates an idle Mediator.
func NewMediator(locator Locator, surface Surface, opts ...MediatorOption) *Mediator {
	m := &Mediator{
		locator:   locator,
		open:      SerialOpener(DefaultBaudRate),
		surface:   surface,
		workspace: func() string { return "" },
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("device")
	return m
}

// State returns the current channel state.
func (m *Mediator) State() State {
	return m.state
}

// Port returns the port of the active channel, or "".
func (m *Mediator) Port() string {
	return m.port
}

// AddRepl connects the REPL to the attached board.
//
// It returns ErrChannelConflict if the file system is active and
// ErrChannelActive if the REPL already is. A missing board or an I/O
// failure is reported to the user and leaves the mediator Idle; those
// return nil.
func (m *Mediator) AddRepl() error {
	switch m.state {
	case FilesystemActive:
		return ErrChannelConflict
	case ReplActive:
		return ErrChannelActive
	}

	port, err := m.locator.Find()
	if err != nil {
		if !errors.Is(err, ErrDeviceNotFound) {
			m.logger.Error("device discovery: %v", err)
		}
		m.surface.ShowMessage(msgNotFound, infoNotFound)
		return nil
	}

	conn, err := m.open(port)
	if err != nil {
		m.reportConnectError(port, err)
		return nil
	}
	if err := m.surface.AttachRepl(port, conn); err != nil {
		_ = conn.Close()
		m.reportConnectError(port, err)
		return nil
	}

	m.activate(ReplActive, port, conn)
	return nil
}

// RemoveRepl disconnects the REPL.
func (m *Mediator) RemoveRepl() error {
	if m.state != ReplActive {
		return fmt.Errorf("remove repl: %w", ErrChannelNotActive)
	}
	m.surface.DetachRepl()
	m.release()
	return nil
}

// ToggleRepl adds or removes the REPL. While the file system is active the
// user is told why nothing happened.
func (m *Mediator) ToggleRepl() error {
	switch m.state {
	case FilesystemActive:
		m.surface.ShowMessage(msgConflict, infoConflictRepl)
		return nil
	case ReplActive:
		return m.RemoveRepl()
	default:
		return m.AddRepl()
	}
}

// AddFilesystem opens the board's serial connection and mounts its file
// system. Errors follow AddRepl.
func (m *Mediator) AddFilesystem() error {
	switch m.state {
	case ReplActive:
		return ErrChannelConflict
	case FilesystemActive:
		return ErrChannelActive
	}

	port, err := m.locator.Find()
	if err != nil {
		if !errors.Is(err, ErrDeviceNotFound) {
			m.logger.Error("device discovery: %v", err)
		}
		m.surface.ShowMessage(msgFSNotFound, infoFSNotFound)
		return nil
	}

	conn, err := m.open(port)
	if err != nil {
		m.logger.Error("open %s: %v", port, err)
		m.surface.ShowMessage(msgFSNotFound, infoFSNotFound)
		return nil
	}
	if err := m.surface.MountFilesystem(conn, m.workspace()); err != nil {
		_ = conn.Close()
		m.reportConnectError(port, err)
		return nil
	}

	m.activate(FilesystemActive, port, conn)
	return nil
}

// RemoveFilesystem unmounts the file system.
func (m *Mediator) RemoveFilesystem() error {
	if m.state != FilesystemActive {
		return fmt.Errorf("remove filesystem: %w", ErrChannelNotActive)
	}
	m.surface.UnmountFilesystem()
	m.release()
	return nil
}

// ToggleFilesystem adds or removes the file system. While the REPL is
// active the user is told why nothing happened.
func (m *Mediator) ToggleFilesystem() error {
	switch m.state {
	case ReplActive:
		m.surface.ShowMessage(msgConflict, infoConflictFS)
		return nil
	case FilesystemActive:
		return m.RemoveFilesystem()
	default:
		return m.AddFilesystem()
	}
}

// Reset removes whichever channel is active.
func (m *Mediator) Reset() {
	switch m.state {
	case ReplActive:
		_ = m.RemoveRepl()
	case FilesystemActive:
		_ = m.RemoveFilesystem()
	}
}

func (m *Mediator) activate(state State, port string, conn io.ReadWriteCloser) {
	m.state = state
	m.port = port
	m.conn = conn
	m.logger.Info("%s channel active on %s", state, port)
}

func (m *Mediator) release() {
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.logger.Warn("close %s: %v", m.port, err)
		}
	}
	m.logger.Info("%s channel closed on %s", m.state, m.port)
	m.state = Idle
	m.port = ""
	m.conn = nil
}

// reportConnectError shows I/O failures to the user and logs anything else.
func (m *Mediator) reportConnectError(port string, err error) {
	m.logger.Error("connect %s: %v", port, err)
	if IsIOError(err) {
		m.surface.ShowMessage(err.Error(), infoIOError)
	}
}

// IsIOError reports whether err is a transient device I/O failure, such as
// a board that is still booting, as opposed to a programming error.
func IsIOError(err error) bool {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		return true
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
