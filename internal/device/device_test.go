package device

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

type message struct {
	text, info string
}

type fakeSurface struct {
	messages  []message
	repl      io.ReadWriter
	replPort  string
	fs        io.ReadWriter
	fsHome    string
	attachErr error
	mountErr  error
}

func (s *fakeSurface) ShowMessage(text, info string) {
	s.messages = append(s.messages, message{text, info})
}

func (s *fakeSurface) AttachRepl(port string, conn io.ReadWriter) error {
	if s.attachErr != nil {
		return s.attachErr
	}
	s.repl, s.replPort = conn, port
	return nil
}

func (s *fakeSurface) DetachRepl() { s.repl, s.replPort = nil, "" }

func (s *fakeSurface) MountFilesystem(conn io.ReadWriter, home string) error {
	if s.mountErr != nil {
		return s.mountErr
	}
	s.fs, s.fsHome = conn, home
	return nil
}

func (s *fakeSurface) UnmountFilesystem() { s.fs, s.fsHome = nil, "" }

type fakeLocator struct {
	port string
	err  error
}

func (l fakeLocator) Find() (string, error) { return l.port, l.err }

type fakeConn struct {
	bytes.Buffer
	closed bool
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type openRecorder struct {
	conns []*fakeConn
	err   error
}

func (o *openRecorder) open(string) (io.ReadWriteCloser, error) {
	if o.err != nil {
		return nil, o.err
	}
	c := &fakeConn{}
	o.conns = append(o.conns, c)
	return c, nil
}

func newTestMediator(loc Locator) (*Mediator, *fakeSurface, *openRecorder) {
	s := &fakeSurface{}
	o := &openRecorder{}
	m := NewMediator(loc, s,
		WithOpener(o.open),
		WithWorkspace(func() string { return "/home/ada/mu_code" }),
	)
	return m, s, o
}

func TestFinder_Find(t *testing.T) {
	ports := []*enumerator.PortDetails{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001"},
		{Name: "ttyACM0", IsUSB: true, VID: "0d28", PID: "0204"},
		{Name: "ttyACM1", IsUSB: true, VID: "0D28", PID: "0204"},
	}
	f := NewFinder(DefaultBoards(),
		WithPortLister(func() ([]*enumerator.PortDetails, error) { return ports, nil }),
		WithGOOS("linux"),
	)

	port, err := f.Find()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", port)
}

func TestFinder_NotFound(t *testing.T) {
	tests := []struct {
		name  string
		ports []*enumerator.PortDetails
	}{
		{"no ports", nil},
		{"unknown board", []*enumerator.PortDetails{{Name: "COM3", IsUSB: true, VID: "03E7", PID: "029A"}}},
		{"bad ids", []*enumerator.PortDetails{{Name: "COM3", IsUSB: true, VID: "zz", PID: ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFinder(DefaultBoards(), WithPortLister(func() ([]*enumerator.PortDetails, error) {
				return tt.ports, nil
			}))
			_, err := f.Find()
			assert.ErrorIs(t, err, ErrDeviceNotFound)
		})
	}
}

func TestFinder_ExtraBoards(t *testing.T) {
	pico := Board{Name: "pico", VendorID: 0x2E8A, ProductID: 0x0005}
	f := NewFinder(append(DefaultBoards(), pico),
		WithPortLister(func() ([]*enumerator.PortDetails, error) {
			return []*enumerator.PortDetails{{Name: "COM7", IsUSB: true, VID: "2E8A", PID: "0005"}}, nil
		}),
		WithGOOS("windows"),
	)

	port, err := f.Find()
	require.NoError(t, err)
	assert.Equal(t, "COM7", port)
	assert.Len(t, f.Boards(), 2)
}

func TestFinder_ListError(t *testing.T) {
	f := NewFinder(DefaultBoards(), WithPortLister(func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("no sysfs")
	}))
	_, err := f.Find()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDeviceNotFound)
}

func TestPortName(t *testing.T) {
	assert.Equal(t, "/dev/ttyACM0", PortName("ttyACM0", "linux"))
	assert.Equal(t, "/dev/cu.usbmodem1", PortName("/dev/cu.usbmodem1", "darwin"))
	assert.Equal(t, "COM0", PortName("COM0", "windows"))
}

func TestMediator_ReplLifecycle(t *testing.T) {
	m, s, o := newTestMediator(fakeLocator{port: "/dev/ttyACM0"})

	require.NoError(t, m.AddRepl())
	assert.Equal(t, ReplActive, m.State())
	assert.Equal(t, "/dev/ttyACM0", s.replPort)
	assert.Equal(t, "/dev/ttyACM0", m.Port())
	assert.Empty(t, s.messages)

	assert.ErrorIs(t, m.AddRepl(), ErrChannelActive)
	assert.ErrorIs(t, m.AddFilesystem(), ErrChannelConflict)

	require.NoError(t, m.RemoveRepl())
	assert.Equal(t, Idle, m.State())
	assert.Nil(t, s.repl)
	require.Len(t, o.conns, 1)
	assert.True(t, o.conns[0].closed)

	assert.ErrorIs(t, m.RemoveRepl(), ErrChannelNotActive)
}

func TestMediator_AddReplNoDevice(t *testing.T) {
	m, s, o := newTestMediator(fakeLocator{err: ErrDeviceNotFound})

	require.NoError(t, m.AddRepl())
	assert.Equal(t, Idle, m.State())
	require.Len(t, s.messages, 1)
	assert.Equal(t, "Could not find an attached device.", s.messages[0].text)
	assert.Empty(t, o.conns)
}

func TestMediator_AddReplIOError(t *testing.T) {
	m, s, o := newTestMediator(fakeLocator{port: "COM0"})
	o.err = &fs.PathError{Op: "open", Path: "COM0", Err: errors.New("BOOM")}

	require.NoError(t, m.AddRepl())
	assert.Equal(t, Idle, m.State())
	require.Len(t, s.messages, 1)
	assert.Equal(t, o.err.Error(), s.messages[0].text)
}

func TestMediator_AddReplUnexpectedError(t *testing.T) {
	m, s, o := newTestMediator(fakeLocator{port: "COM0"})
	s.attachErr = errors.New("widget exploded")

	require.NoError(t, m.AddRepl())
	assert.Equal(t, Idle, m.State())
	assert.Empty(t, s.messages)
	require.Len(t, o.conns, 1)
	assert.True(t, o.conns[0].closed)
}

func TestMediator_FilesystemLifecycle(t *testing.T) {
	m, s, _ := newTestMediator(fakeLocator{port: "/dev/ttyACM0"})

	require.NoError(t, m.AddFilesystem())
	assert.Equal(t, FilesystemActive, m.State())
	assert.Equal(t, "/home/ada/mu_code", s.fsHome)

	assert.ErrorIs(t, m.AddRepl(), ErrChannelConflict)
	assert.ErrorIs(t, m.AddFilesystem(), ErrChannelActive)

	require.NoError(t, m.RemoveFilesystem())
	assert.Equal(t, Idle, m.State())
	assert.ErrorIs(t, m.RemoveFilesystem(), ErrChannelNotActive)
}

func TestMediator_AddFilesystemOpenFailure(t *testing.T) {
	m, s, o := newTestMediator(fakeLocator{port: "/dev/ttyACM0"})
	o.err = errors.New("BOOM")

	require.NoError(t, m.AddFilesystem())
	assert.Equal(t, Idle, m.State())
	require.Len(t, s.messages, 1)
	assert.Equal(t, "Could not find an attached BBC micro:bit.", s.messages[0].text)
	assert.Nil(t, s.fs)
}

func TestMediator_ToggleConflicts(t *testing.T) {
	m, s, _ := newTestMediator(fakeLocator{port: "/dev/ttyACM0"})

	require.NoError(t, m.ToggleFilesystem())
	require.NoError(t, m.ToggleRepl())
	assert.Equal(t, FilesystemActive, m.State())
	require.Len(t, s.messages, 1)
	assert.Equal(t, "REPL and file system cannot work at the same time.", s.messages[0].text)

	require.NoError(t, m.ToggleFilesystem())
	require.NoError(t, m.ToggleRepl())
	assert.Equal(t, ReplActive, m.State())
	require.NoError(t, m.ToggleFilesystem())
	assert.Equal(t, ReplActive, m.State())
	assert.Len(t, s.messages, 2)

	require.NoError(t, m.ToggleRepl())
	assert.Equal(t, Idle, m.State())
}

func TestMediator_NeverBothActive(t *testing.T) {
	m, s, _ := newTestMediator(fakeLocator{port: "/dev/ttyACM0"})
	ops := []func() error{
		m.AddRepl, m.AddFilesystem, m.ToggleRepl, m.ToggleFilesystem,
		m.RemoveRepl, m.RemoveFilesystem,
	}

	// Walk every sequence of three operations.
	for _, a := range ops {
		for _, b := range ops {
			for _, c := range ops {
				m.Reset()
				for _, op := range []func() error{a, b, c} {
					_ = op()
					replShown := s.repl != nil
					fsShown := s.fs != nil
					assert.False(t, replShown && fsShown)
					assert.Equal(t, m.State() == ReplActive, replShown)
					assert.Equal(t, m.State() == FilesystemActive, fsShown)
				}
			}
		}
	}
}

func TestMediator_Reset(t *testing.T) {
	m, s, _ := newTestMediator(fakeLocator{port: "/dev/ttyACM0"})
	require.NoError(t, m.AddRepl())

	m.Reset()
	assert.Equal(t, Idle, m.State())
	assert.Nil(t, s.repl)

	m.Reset()
	assert.Equal(t, Idle, m.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "repl", ReplActive.String())
	assert.Equal(t, "filesystem", FilesystemActive.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestIsIOError(t *testing.T) {
	assert.True(t, IsIOError(io.ErrUnexpectedEOF))
	assert.True(t, IsIOError(&fs.PathError{Op: "open", Path: "x", Err: fs.ErrPermission}))
	assert.False(t, IsIOError(errors.New("plain")))
}
