package term

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dshills/microstorm/internal/lint"
)

// Tab is an open buffer in the terminal view.
type Tab struct {
	id       string
	path     string
	lines    []string
	modified bool

	// Cursor position, 0-based, in runes.
	row, col int

	// top is the first line shown.
	top int

	annotations map[int][]lint.Annotation
}

func newTab(path, text string) *Tab {
	return &Tab{
		id:          uuid.NewString(),
		path:        path,
		lines:       strings.Split(text, "\n"),
		annotations: make(map[int][]lint.Annotation),
	}
}

// ID identifies the tab for the lifetime of the view.
func (t *Tab) ID() string { return t.id }

func (t *Tab) Path() string        { return t.path }
func (t *Tab) SetPath(path string) { t.path = path }
func (t *Tab) Modified() bool      { return t.modified }
func (t *Tab) SetModified(m bool)  { t.modified = m }

// Label is the base name of the file, or "untitled".
func (t *Tab) Label() string {
	if t.path == "" {
		return "untitled"
	}
	return filepath.Base(t.path)
}

// Text returns the buffer content.
func (t *Tab) Text() string {
	return strings.Join(t.lines, "\n")
}

// Cursor returns the 0-based cursor line and column.
func (t *Tab) Cursor() (row, col int) {
	return t.row, t.col
}

func (t *Tab) line() []rune {
	return []rune(t.lines[t.row])
}

func (t *Tab) insert(r rune) {
	line := t.line()
	line = append(line[:t.col], append([]rune{r}, line[t.col:]...)...)
	t.lines[t.row] = string(line)
	t.col++
	t.modified = true
}

func (t *Tab) newline() {
	line := t.line()
	head, tail := string(line[:t.col]), string(line[t.col:])
	t.lines[t.row] = head
	t.lines = append(t.lines[:t.row+1], append([]string{tail}, t.lines[t.row+1:]...)...)
	t.row++
	t.col = 0
	t.modified = true
}

func (t *Tab) backspace() {
	switch {
	case t.col > 0:
		line := t.line()
		t.lines[t.row] = string(append(line[:t.col-1], line[t.col:]...))
		t.col--
	case t.row > 0:
		prev := []rune(t.lines[t.row-1])
		t.lines[t.row-1] = string(prev) + t.lines[t.row]
		t.lines = append(t.lines[:t.row], t.lines[t.row+1:]...)
		t.row--
		t.col = len(prev)
	default:
		return
	}
	t.modified = true
}

func (t *Tab) move(drow, dcol int) {
	t.row = clamp(t.row+drow, 0, len(t.lines)-1)
	if dcol != 0 {
		t.col += dcol
	}
	t.col = clamp(t.col, 0, len(t.line()))
}

// scroll keeps the cursor inside a window of height lines.
func (t *Tab) scroll(height int) {
	if height <= 0 {
		return
	}
	if t.row < t.top {
		t.top = t.row
	}
	if t.row >= t.top+height {
		t.top = t.row - height + 1
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
