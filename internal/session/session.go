// Package session persists the editor's session between runs: the open
// files, the active mode, the theme and the user's directory overrides.
//
// The session lives in a single JSON document (settings.json). It is read
// once at startup and written once at shutdown; in between, the editor owns
// the in-memory Session value.
package session

// Theme is the editor's visual theme.
type Theme string

const (
	// ThemeDay is the light theme.
	ThemeDay Theme = "day"
	// ThemeNight is the dark theme.
	ThemeNight Theme = "night"
)

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDay {
		return ThemeNight
	}
	return ThemeDay
}

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeDay || t == ThemeNight
}

// DefaultMode is the mode used when no session names one.
const DefaultMode = "python"

// Session is the persisted editor state.
//
// OpenPaths only ever holds saved files: a tab without a path is an unsaved
// buffer and is not restored.
type Session struct {
	Theme      Theme    `json:"theme"`
	ActiveMode string   `json:"mode"`
	OpenPaths  []string `json:"paths"`

	// WorkspaceOverride is the user's workspace directory, if any.
	WorkspaceOverride string `json:"workspace,omitempty"`

	// RuntimeOverride is a user-supplied micro:bit runtime image, if any.
	RuntimeOverride string `json:"microbit_runtime_hex,omitempty"`
}

// Default returns the session used when nothing was persisted.
func Default() Session {
	return Session{
		Theme:      ThemeDay,
		ActiveMode: DefaultMode,
	}
}
