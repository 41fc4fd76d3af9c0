package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Preference file names, in lookup order.
const (
	PreferencesTOML = "preferences.toml"
	PreferencesYAML = "preferences.yaml"
)

// Board is an extra USB vendor/product pair accepted by device discovery.
type Board struct {
	Name      string `toml:"name" yaml:"name"`
	VendorID  uint16 `toml:"vendor_id" yaml:"vendor_id"`
	ProductID uint16 `toml:"product_id" yaml:"product_id"`
}

// Preferences are optional user settings that are not part of the session.
type Preferences struct {
	// LogLevel is the minimum level written to the log file.
	LogLevel string `toml:"log_level" yaml:"log_level"`

	// Python is the interpreter used for linters, the runner and the REPL.
	Python string `toml:"python" yaml:"python"`

	// StyleModule names the Python module used for style checks.
	StyleModule string `toml:"style_module" yaml:"style_module"`

	// Boards extends the built-in device allow-list.
	Boards []Board `toml:"boards" yaml:"boards"`

	// HelpURL is the base URL for the help action.
	HelpURL string `toml:"help_url" yaml:"help_url"`
}

// DefaultPreferences returns the preferences used when no file exists.
func DefaultPreferences() Preferences {
	return Preferences{
		LogLevel:    "info",
		Python:      "python3",
		StyleModule: "pycodestyle",
		HelpURL:     "https://codewith.mu/help",
	}
}

// ParseError represents an error while parsing a preferences file.
type ParseError struct {
	Path    string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// PreferencesPath returns the first preferences file that exists in dir,
// or the TOML path if neither does.
func PreferencesPath(dir string) string {
	for _, name := range []string{PreferencesTOML, PreferencesYAML} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, PreferencesTOML)
}

// LoadPreferences reads the preferences file at path. A missing file is not
// an error: the defaults are returned. Values present in the file override
// the defaults; absent keys keep them.
func LoadPreferences(path string) (Preferences, error) {
	prefs := DefaultPreferences()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return prefs, nil
		}
		return prefs, fmt.Errorf("reading preferences %s: %w", path, err)
	}

	if err := parsePreferences(path, data, &prefs); err != nil {
		return DefaultPreferences(), err
	}
	prefs.fillDefaults()
	return prefs, nil
}

func parsePreferences(path string, data []byte, prefs *Preferences) error {
	var err error
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, prefs)
	default:
		err = toml.Unmarshal(data, prefs)
	}
	if err != nil {
		return &ParseError{Path: path, Message: err.Error(), Err: err}
	}
	return nil
}

// fillDefaults restores defaults for keys explicitly set to empty values.
func (p *Preferences) fillDefaults() {
	def := DefaultPreferences()
	if p.LogLevel == "" {
		p.LogLevel = def.LogLevel
	}
	if p.Python == "" {
		p.Python = def.Python
	}
	if p.StyleModule == "" {
		p.StyleModule = def.StyleModule
	}
	if p.HelpURL == "" {
		p.HelpURL = def.HelpURL
	}
}
