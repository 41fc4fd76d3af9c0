package mode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/microstorm/internal/device/hexfile"
	"github.com/dshills/microstorm/internal/view"
)

const (
	msgBoardNotFound  = "Could not find an attached BBC micro:bit."
	infoBoardNotFound = "Please ensure you leave enough time for the BBC micro:bit to be " +
		"attached and configured correctly by your computer. This may take several seconds. " +
		"Alternatively, try removing and re-attaching the device or saving your work and " +
		"restarting the editor if the device remains unfound."

	infoFlashing = "When the yellow LED stops flashing the device will restart and your " +
		"script will run. If there is an error, you'll see a helpful error message scroll " +
		"across the device's display."
)

// flashTimeout bounds the search for the board volume.
const flashTimeout = 5 * time.Second

// Channels is the device channel mediator as seen by the micro:bit mode.
type Channels interface {
	ToggleRepl() error
	ToggleFilesystem() error
	Reset()
}

// Volumes finds the board's mass storage volume and writes images to it.
type Volumes interface {
	Find(ctx context.Context) (string, error)
	Exists(dir string) bool
	Write(image []byte, dir string) (string, error)
}

// FileReader reads the runtime image.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// MicroBitMode flashes scripts onto a BBC micro:bit and talks to it over
// its serial link.
type MicroBitMode struct {
	Base

	channels Channels
	volumes  Volumes
	files    FileReader

	defaultRuntime  string
	runtimeOverride string

	// devicePath is the volume the user pointed at when discovery failed.
	devicePath string
	home       string
}

// MicroBitConfig carries the micro:bit mode's collaborators.
type MicroBitConfig struct {
	Channels Channels
	Volumes  Volumes
	Files    FileReader

	// DefaultRuntime is the runtime image used without an override.
	DefaultRuntime string

	// HomeDir is where the device path prompt starts.
	HomeDir string
}

// NewMicroBitMode creates the micro:bit mode.
func NewMicroBitMode(base Base, cfg MicroBitConfig) *MicroBitMode {
	return &MicroBitMode{
		Base:           base,
		channels:       cfg.Channels,
		volumes:        cfg.Volumes,
		files:          cfg.Files,
		defaultRuntime: cfg.DefaultRuntime,
		home:           cfg.HomeDir,
	}
}

func (m *MicroBitMode) Name() string           { return ModeMicroBit }
func (m *MicroBitMode) DisplayName() string    { return "BBC micro:bit" }
func (m *MicroBitMode) Description() string    { return "Write MicroPython for the BBC micro:bit." }
func (m *MicroBitMode) Icon() string           { return "microbit" }
func (m *MicroBitMode) SupportsDebugger() bool { return false }

// Actions implements Mode.
func (m *MicroBitMode) Actions() []view.Action {
	return []view.Action{
		{Name: "flash", Description: "Flash your code onto the micro:bit.", Handler: m.Flash},
		{Name: "files", Description: "Access the file system on the micro:bit.", Handler: func() {
			if err := m.channels.ToggleFilesystem(); err != nil {
				m.logger().Error("toggle file system: %v", err)
			}
		}},
		{Name: "repl", Description: "Use the REPL to live-code on the micro:bit.", Handler: func() {
			if err := m.channels.ToggleRepl(); err != nil {
				m.logger().Error("toggle repl: %v", err)
			}
		}},
	}
}

// Exit implements Mode.
func (m *MicroBitMode) Exit() {
	m.channels.Reset()
}

// RuntimeHexPath returns the runtime image flashed with each script: the
// user's override if set, otherwise the bundled default.
func (m *MicroBitMode) RuntimeHexPath() string {
	if m.runtimeOverride != "" {
		return m.runtimeOverride
	}
	return m.defaultRuntime
}

// RuntimeOverride returns the user's runtime image, or "".
func (m *MicroBitMode) RuntimeOverride() string {
	return m.runtimeOverride
}

// SetRuntimeOverride sets the user's runtime image. "" restores the
// default.
func (m *MicroBitMode) SetRuntimeOverride(path string) {
	m.runtimeOverride = path
}

// Flash embeds the current tab's script in the runtime image and copies
// the result onto the board.
func (m *MicroBitMode) Flash() {
	tab := m.View.CurrentTab()
	if tab == nil {
		return
	}

	image, err := m.buildImage(tab.Text())
	if err != nil {
		if errors.Is(err, hexfile.ErrScriptTooLong) {
			m.View.ShowMessage(fmt.Sprintf("Unable to flash \"%s\"", tab.Label()), "Your script is too long!")
			return
		}
		m.logger().Error("build image: %v", err)
		m.View.ShowMessage("Could not prepare the micro:bit runtime.", err.Error())
		return
	}

	dir := m.findVolume()
	if dir == "" || !m.volumes.Exists(dir) {
		m.View.ShowMessage(msgBoardNotFound, infoBoardNotFound)
		return
	}

	path, err := m.volumes.Write(image, dir)
	if err != nil {
		m.logger().Error("flash %s: %v", dir, err)
		m.View.ShowMessage("Could not flash the micro:bit.", err.Error())
		return
	}
	m.logger().Info("flashed %s", path)
	m.View.ShowMessage(fmt.Sprintf("Flashing \"%s\" onto the micro:bit.", tab.Label()), infoFlashing)
}

func (m *MicroBitMode) buildImage(script string) ([]byte, error) {
	if len(script) > hexfile.MaxScriptSize {
		return nil, hexfile.ErrScriptTooLong
	}
	runtime, err := m.files.ReadFile(m.RuntimeHexPath())
	if err != nil {
		return nil, fmt.Errorf("read runtime: %w", err)
	}
	return hexfile.Embed(runtime, script)
}

// findVolume returns the board volume. When discovery fails it falls back
// to the path the user gave earlier, or asks for one. A remembered path
// that no longer exists is forgotten without asking again.
func (m *MicroBitMode) findVolume() string {
	ctx, cancel := context.WithTimeout(context.Background(), flashTimeout)
	defer cancel()

	dir, err := m.volumes.Find(ctx)
	if err == nil {
		return dir
	}
	m.logger().Debug("volume discovery: %v", err)

	if m.devicePath != "" {
		if m.volumes.Exists(m.devicePath) {
			return m.devicePath
		}
		m.devicePath = ""
		return ""
	}

	m.devicePath = m.View.GetDevicePath(m.home)
	return m.devicePath
}
