package mode

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/marcinbor85/gohex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/microstorm/internal/device/hexfile"
	"github.com/dshills/microstorm/internal/process"
	"github.com/dshills/microstorm/internal/vfs"
	"github.com/dshills/microstorm/internal/view"
	"github.com/dshills/microstorm/internal/view/viewtest"
)

// stubMode is a minimal Mode that counts exits.
type stubMode struct {
	name    string
	actions []view.Action
	exits   int
}

func (m *stubMode) Name() string            { return m.name }
func (m *stubMode) DisplayName() string     { return strings.ToUpper(m.name) }
func (m *stubMode) Description() string     { return "" }
func (m *stubMode) Icon() string            { return m.name }
func (m *stubMode) SupportsDebugger() bool  { return false }
func (m *stubMode) WorkspaceDir() string    { return "/ws" }
func (m *stubMode) Actions() []view.Action  { return m.actions }
func (m *stubMode) Exit()                   { m.exits++ }

func named(names ...string) []view.Action {
	out := make([]view.Action, len(names))
	for i, n := range names {
		out[i] = view.Action{Name: n, Handler: func() {}}
	}
	return out
}

func newTestRegistry(v *viewtest.View) *Registry {
	return NewRegistry(v, WithFixedActions(
		named("new", "load", "save"),
		named("zoom-in", "zoom-out", "theme", "check", "help", "quit"),
	))
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := newTestRegistry(viewtest.New())
	_, err := r.Get("lisp")
	assert.ErrorIs(t, err, ErrUnknownMode)
	assert.ErrorIs(t, r.Activate("lisp"), ErrUnknownMode)
	assert.Nil(t, r.Current())
}

func TestRegistry_ActivateBindsActions(t *testing.T) {
	v := viewtest.New()
	r := newTestRegistry(v)
	py := &stubMode{name: "python", actions: named("run", "repl")}
	r.Register(py, &stubMode{name: "microbit"})

	require.NoError(t, r.Activate("python"))

	assert.Equal(t, []string{
		"new", "load", "save", "run", "repl",
		"zoom-in", "zoom-out", "theme", "check", "help", "quit",
	}, v.Bar.Names())
	assert.Equal(t, "python", v.Mode.Name)
	assert.Equal(t, "PYTHON", v.Mode.DisplayName)
	assert.Equal(t, "python", r.CurrentName())
	assert.Equal(t, []string{"microbit", "python"}, r.Names())
}

func TestRegistry_SwitchExitsPrevious(t *testing.T) {
	v := viewtest.New()
	r := newTestRegistry(v)
	py := &stubMode{name: "python", actions: named("run")}
	mb := &stubMode{name: "microbit", actions: named("flash")}
	r.Register(py, mb)

	var changes [][2]string
	r.OnChange(func(from, to Mode) {
		fromName := ""
		if from != nil {
			fromName = from.Name()
		}
		changes = append(changes, [2]string{fromName, to.Name()})
	})

	require.NoError(t, r.Activate("python"))
	require.NoError(t, r.Activate("microbit"))

	assert.Equal(t, 1, py.exits)
	assert.Equal(t, 0, mb.exits)
	assert.Contains(t, v.Bar.Names(), "flash")
	assert.NotContains(t, v.Bar.Names(), "run")
	assert.Equal(t, [][2]string{{"", "python"}, {"python", "microbit"}}, changes)
}

func TestRegistry_ReactivateRebinds(t *testing.T) {
	v := viewtest.New()
	r := newTestRegistry(v)
	py := &stubMode{name: "python"}
	r.Register(py)

	require.NoError(t, r.Activate("python"))
	require.NoError(t, r.Activate("python"))

	assert.Equal(t, 0, py.exits)
	assert.Equal(t, 2, v.Bar.Resets)
	assert.Equal(t, 2, v.ModeChanges)

	r.Shutdown()
	assert.Equal(t, 1, py.exits)
}

func TestRegistry_Infos(t *testing.T) {
	r := newTestRegistry(viewtest.New())
	r.Register(&stubMode{name: "python"}, &stubMode{name: "microbit"})

	infos := r.Infos()
	require.Len(t, infos, 2)
	assert.Equal(t, "microbit", infos[0].Name)
	assert.Equal(t, "python", infos[1].Icon)
}

// fakeLauncher hands out unstarted processes and records stops.
type fakeLauncher struct {
	started []*exec.Cmd
	stopped []string
	err     error
}

func (l *fakeLauncher) Start(name string, cmd *exec.Cmd) (*process.Process, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.started = append(l.started, cmd)
	p := process.NewProcess(name+"-"+string(rune('0'+len(l.started))), name, cmd)
	p.Stdin = nopWriteCloser{}
	return p, nil
}

func (l *fakeLauncher) Stop(id string, _ time.Duration) error {
	l.stopped = append(l.stopped, id)
	return nil
}

type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }

func newPythonMode(v *viewtest.View, l *fakeLauncher, save func()) *PythonMode {
	return NewPythonMode(Base{View: v, Workspace: func() string { return "/home/ada/mu_code" }}, l, "python3", save)
}

func TestPythonMode_Descriptor(t *testing.T) {
	m := newPythonMode(viewtest.New(), &fakeLauncher{}, nil)

	assert.Equal(t, "python", m.Name())
	assert.Equal(t, "Python 3", m.DisplayName())
	assert.True(t, m.SupportsDebugger())
	assert.Equal(t, "/home/ada/mu_code", m.WorkspaceDir())
	assert.Equal(t, []string{"run", "repl"}, []string{m.Actions()[0].Name, m.Actions()[1].Name})
}

func TestPythonMode_RunNoTab(t *testing.T) {
	l := &fakeLauncher{}
	m := newPythonMode(viewtest.New(), l, nil)

	m.Run()
	assert.Empty(t, l.started)
}

func TestPythonMode_RunSavesUnnamedTab(t *testing.T) {
	v := viewtest.New()
	tab := v.AddTab("", "print('hi')")
	l := &fakeLauncher{}
	m := newPythonMode(v, l, func() { tab.SetPath("/home/ada/mu_code/hi.py") })

	m.Run()

	require.Len(t, l.started, 1)
	assert.Equal(t, []string{"python3", "-u", "/home/ada/mu_code/hi.py"}, l.started[0].Args)
	assert.Equal(t, "/home/ada/mu_code", l.started[0].Dir)
	assert.Equal(t, "hi.py", v.RunnerTitle)
	assert.NotNil(t, v.Runner)
}

func TestPythonMode_RunCancelledSave(t *testing.T) {
	v := viewtest.New()
	v.AddTab("", "print('hi')")
	l := &fakeLauncher{}
	m := newPythonMode(v, l, func() {})

	m.Run()
	assert.Empty(t, l.started)
}

func TestPythonMode_RunStopsPrevious(t *testing.T) {
	v := viewtest.New()
	v.AddTab("/a.py", "")
	l := &fakeLauncher{}
	m := newPythonMode(v, l, nil)

	m.Run()
	m.Run()

	require.Len(t, l.started, 2)
	assert.Equal(t, []string{"run a.py-1"}, l.stopped)
}

func TestPythonMode_RunStartFailure(t *testing.T) {
	v := viewtest.New()
	v.AddTab("/a.py", "")
	m := newPythonMode(v, &fakeLauncher{err: errors.New("no python3")}, nil)

	m.Run()
	require.Len(t, v.Messages, 1)
	assert.Equal(t, "no python3", v.Messages[0].Info)
	assert.Nil(t, v.Runner)
}

func TestPythonMode_Repl(t *testing.T) {
	v := viewtest.New()
	l := &fakeLauncher{}
	m := newPythonMode(v, l, nil)

	assert.ErrorIs(t, m.RemoveRepl(), ErrReplNotRunning)

	require.NoError(t, m.ToggleRepl())
	require.Len(t, l.started, 1)
	assert.Equal(t, []string{"python3", "-i", "-u"}, l.started[0].Args)
	assert.Equal(t, "python3", v.ReplPort)
	assert.ErrorIs(t, m.AddRepl(), ErrReplRunning)

	require.NoError(t, m.ToggleRepl())
	assert.Nil(t, v.Repl)
	assert.Equal(t, []string{"repl-1"}, l.stopped)
}

func TestPythonMode_ReplExitedOnItsOwn(t *testing.T) {
	v := viewtest.New()
	l := &fakeLauncher{}
	m := newPythonMode(v, l, nil)

	require.NoError(t, m.ToggleRepl())
	m.ProcessExited(process.NewProcess("repl-1", "repl", nil))

	require.NoError(t, m.ToggleRepl())
	require.Len(t, l.started, 2, "one toggle starts a fresh interpreter")
	assert.Empty(t, l.stopped)
	assert.NotNil(t, v.Repl)
}

func TestPythonMode_RunAfterScriptFinished(t *testing.T) {
	v := viewtest.New()
	v.AddTab("/a.py", "")
	l := &fakeLauncher{}
	m := newPythonMode(v, l, nil)

	m.Run()
	m.ProcessExited(process.NewProcess("run a.py-1", "run a.py", nil))
	m.Run()

	assert.Len(t, l.started, 2)
	assert.Empty(t, l.stopped)
}

func TestPythonMode_ExitStopsChildren(t *testing.T) {
	v := viewtest.New()
	v.AddTab("/a.py", "")
	l := &fakeLauncher{}
	m := newPythonMode(v, l, nil)

	m.Run()
	require.NoError(t, m.AddRepl())
	m.Exit()

	assert.ElementsMatch(t, []string{"run a.py-1", "repl-2"}, l.stopped)
	assert.Nil(t, v.Repl)
	assert.Nil(t, v.Runner)
}

func TestPythonMode_ProcessExitedClosesOutput(t *testing.T) {
	v := viewtest.New()
	v.AddTab("/a.py", "")
	l := &fakeLauncher{}
	m := newPythonMode(v, l, nil)
	m.Run()

	p := process.NewProcess("run a.py-1", "run a.py", nil)
	m.ProcessExited(p)

	buf := make([]byte, 8)
	_, err := v.Runner.Read(buf)
	assert.Error(t, err, "output stream ends once the child exits")
}

type fakeChannels struct {
	repl, fs, resets int
}

func (c *fakeChannels) ToggleRepl() error       { c.repl++; return nil }
func (c *fakeChannels) ToggleFilesystem() error { c.fs++; return nil }
func (c *fakeChannels) Reset()                  { c.resets++ }

type fakeVolumes struct {
	found   string
	dirs    map[string]bool
	written map[string][]byte
	err     error
}

func (f *fakeVolumes) Find(context.Context) (string, error) {
	if f.found == "" {
		return "", errors.New("not mounted")
	}
	return f.found, nil
}

func (f *fakeVolumes) Exists(dir string) bool { return f.dirs[dir] }

func (f *fakeVolumes) Write(image []byte, dir string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.written == nil {
		f.written = make(map[string][]byte)
	}
	f.written[dir] = image
	return dir + "/micropython.hex", nil
}

func runtimeHex(t *testing.T) string {
	t.Helper()
	mem := gohex.NewMemory()
	require.NoError(t, mem.AddBinary(0, bytes.Repeat([]byte{0x42}, 32)))
	var buf bytes.Buffer
	require.NoError(t, mem.DumpIntelHex(&buf, 16))
	return buf.String()
}

func newMicroBit(t *testing.T, v *viewtest.View, vols *fakeVolumes) (*MicroBitMode, *fakeChannels) {
	t.Helper()
	fsys := vfs.NewMemFS()
	require.NoError(t, fsys.AddFile("/data/firmware/microbit.hex", runtimeHex(t)))
	ch := &fakeChannels{}
	m := NewMicroBitMode(Base{View: v}, MicroBitConfig{
		Channels:       ch,
		Volumes:        vols,
		Files:          fsys,
		DefaultRuntime: "/data/firmware/microbit.hex",
		HomeDir:        "/home/ada",
	})
	return m, ch
}

func TestMicroBitMode_Actions(t *testing.T) {
	v := viewtest.New()
	m, ch := newMicroBit(t, v, &fakeVolumes{})
	r := newTestRegistry(v)
	r.Register(m)
	require.NoError(t, r.Activate(ModeMicroBit))

	assert.True(t, v.Bar.Press("files"))
	assert.True(t, v.Bar.Press("repl"))
	assert.False(t, v.Bar.Press("run"))
	assert.Equal(t, 1, ch.fs)
	assert.Equal(t, 1, ch.repl)
	assert.False(t, m.SupportsDebugger())

	m.Exit()
	assert.Equal(t, 1, ch.resets)
}

func TestMicroBitMode_RuntimeHexPath(t *testing.T) {
	m, _ := newMicroBit(t, viewtest.New(), &fakeVolumes{})

	assert.Equal(t, "/data/firmware/microbit.hex", m.RuntimeHexPath())
	m.SetRuntimeOverride("/home/ada/custom.hex")
	assert.Equal(t, "/home/ada/custom.hex", m.RuntimeHexPath())
	assert.Equal(t, "/home/ada/custom.hex", m.RuntimeOverride())
	m.SetRuntimeOverride("")
	assert.Equal(t, "/data/firmware/microbit.hex", m.RuntimeHexPath())
}

func TestMicroBitMode_FlashAttached(t *testing.T) {
	v := viewtest.New()
	v.AddTab("/home/ada/mu_code/blink.py", "display.scroll('hi')\n")
	vols := &fakeVolumes{found: "/media/MICROBIT", dirs: map[string]bool{"/media/MICROBIT": true}}
	m, _ := newMicroBit(t, v, vols)

	m.Flash()

	require.Len(t, v.Messages, 1)
	assert.Contains(t, v.Messages[0].Text, "Flashing")
	script, err := hexfile.Extract(vols.written["/media/MICROBIT"])
	require.NoError(t, err)
	assert.Equal(t, "display.scroll('hi')\n", script)
	assert.Empty(t, v.DevicePrompts)
}

func TestMicroBitMode_FlashAsksForDevice(t *testing.T) {
	v := viewtest.New()
	v.AddTab("", "x = 1\n")
	v.DevicePath = "/mnt/mb"
	vols := &fakeVolumes{dirs: map[string]bool{"/mnt/mb": true}}
	m, _ := newMicroBit(t, v, vols)

	m.Flash()
	m.Flash()

	assert.Equal(t, []string{"/home/ada"}, v.DevicePrompts, "the chosen path is remembered")
	assert.Contains(t, vols.written, "/mnt/mb")
	assert.Len(t, v.Messages, 2)
}

func TestMicroBitMode_FlashRememberedPathGone(t *testing.T) {
	v := viewtest.New()
	v.AddTab("", "x = 1\n")
	v.DevicePath = "/mnt/mb"
	vols := &fakeVolumes{dirs: map[string]bool{"/mnt/mb": true}}
	m, _ := newMicroBit(t, v, vols)
	m.Flash()

	vols.dirs = nil
	v.Messages = nil
	m.Flash()

	require.Len(t, v.Messages, 1)
	assert.Equal(t, msgBoardNotFound, v.Messages[0].Text)
	assert.Len(t, v.DevicePrompts, 1)
}

func TestMicroBitMode_FlashNoDevice(t *testing.T) {
	v := viewtest.New()
	v.AddTab("", "x = 1\n")
	vols := &fakeVolumes{}
	m, _ := newMicroBit(t, v, vols)

	m.Flash()

	require.Len(t, v.Messages, 1)
	assert.Equal(t, msgBoardNotFound, v.Messages[0].Text)
	assert.Equal(t, infoBoardNotFound, v.Messages[0].Info)
	assert.Empty(t, vols.written)
}

func TestMicroBitMode_FlashTooLong(t *testing.T) {
	v := viewtest.New()
	v.AddTab("/a.py", strings.Repeat("x", hexfile.MaxScriptSize+1))
	m, _ := newMicroBit(t, v, &fakeVolumes{})

	m.Flash()

	require.Len(t, v.Messages, 1)
	assert.Equal(t, `Unable to flash "/a.py"`, v.Messages[0].Text)
	assert.Equal(t, "Your script is too long!", v.Messages[0].Info)
}

func TestMicroBitMode_FlashMissingRuntime(t *testing.T) {
	v := viewtest.New()
	v.AddTab("/a.py", "x = 1\n")
	m, _ := newMicroBit(t, v, &fakeVolumes{})
	m.SetRuntimeOverride("/nowhere.hex")

	m.Flash()

	require.Len(t, v.Messages, 1)
	assert.Contains(t, v.Messages[0].Info, "/nowhere.hex")
}

func TestMicroBitMode_FlashNoTab(t *testing.T) {
	v := viewtest.New()
	m, _ := newMicroBit(t, v, &fakeVolumes{})
	m.Flash()
	assert.Empty(t, v.Messages)
}
