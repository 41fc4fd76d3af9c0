// Package config holds everything microstorm derives from the host
// environment: the directories it reads and writes (Paths) and the optional
// user preferences file (Preferences), with a watcher for live reload.
//
// Paths are computed once at startup and are immutable afterwards. They are
// passed explicitly to the session store and the modes instead of living in
// package-level variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
)

const (
	// AppName names the per-user data and log directories.
	AppName = "microstorm"

	// WorkspaceName is the directory under the home directory used as the
	// default workspace for scripts.
	WorkspaceName = "mu_code"

	// SettingsFileName is the name of the persisted session file.
	SettingsFileName = "settings.json"
)

// Paths describes the directories the editor uses.
type Paths struct {
	// HomeDir is the user's home directory.
	HomeDir string

	// DataDir holds settings.json, preferences and the default runtime image.
	DataDir string

	// LogDir holds the rotating log file.
	LogDir string

	// AppDir is the directory of the running executable. A settings file
	// placed here takes precedence over the one in DataDir.
	AppDir string
}

// DefaultPaths resolves Paths from the host environment.
func DefaultPaths() (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve home directory: %w", err)
	}

	appDir, err := executableDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve executable directory: %w", err)
	}

	return Paths{
		HomeDir: home,
		DataDir: filepath.Join(xdg.DataHome, AppName),
		LogDir:  filepath.Join(xdg.StateHome, AppName, "logs"),
		AppDir:  appDir,
	}, nil
}

// DefaultWorkspace returns <home>/mu_code.
func (p Paths) DefaultWorkspace() string {
	return filepath.Join(p.HomeDir, WorkspaceName)
}

// AppSettingsPath is the settings file colocated with the executable.
func (p Paths) AppSettingsPath() string {
	return filepath.Join(p.AppDir, SettingsFileName)
}

// DataSettingsPath is the settings file in the per-user data directory.
func (p Paths) DataSettingsPath() string {
	return filepath.Join(p.DataDir, SettingsFileName)
}

// DefaultRuntimeHex is where the micro:bit runtime image is expected when
// the user has not overridden it.
func (p Paths) DefaultRuntimeHex() string {
	return filepath.Join(p.DataDir, "firmware", "microbit.hex")
}

// executableDir returns the directory of the running binary. On macOS an
// application bundle places the binary three levels below the bundle's
// parent directory (Foo.app/Contents/MacOS/foo).
func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	dir := filepath.Dir(exe)
	if runtime.GOOS == "darwin" && filepath.Base(dir) == "MacOS" {
		dir = filepath.Dir(filepath.Dir(filepath.Dir(dir)))
	}
	return dir, nil
}
