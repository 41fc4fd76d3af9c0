package term

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
)

// chord is a key as the button bar binds it.
type chord struct {
	key tcell.Key
	mod tcell.ModMask
}

func (c chord) String() string {
	switch {
	case c.key >= tcell.KeyCtrlA && c.key <= tcell.KeyCtrlZ:
		return "^" + string(rune('A'+c.key-tcell.KeyCtrlA))
	case c.key >= tcell.KeyF1 && c.key <= tcell.KeyF12:
		return fmt.Sprintf("F%d", c.key-tcell.KeyF1+1)
	default:
		return "?"
	}
}

// parseShortcut reads "Ctrl+S" or "F5".
func parseShortcut(s string) (chord, bool) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "ctrl+"); ok {
		if len(rest) != 1 || rest[0] < 'a' || rest[0] > 'z' {
			return chord{}, false
		}
		return chord{key: tcell.KeyCtrlA + tcell.Key(rest[0]-'a'), mod: tcell.ModCtrl}, true
	}
	if len(s) >= 2 && (s[0] == 'F' || s[0] == 'f') {
		n, err := strconv.Atoi(s[1:])
		if err != nil || n < 1 || n > 12 {
			return chord{}, false
		}
		return chord{key: tcell.KeyF1 + tcell.Key(n-1)}, true
	}
	return chord{}, false
}

// chordOf normalizes a key event. Some terminals report Ctrl+letter as a
// rune with the Ctrl modifier instead of a control key.
func chordOf(ev *tcell.EventKey) chord {
	key, mod := ev.Key(), ev.Modifiers()
	if key == tcell.KeyRune && mod&tcell.ModCtrl != 0 {
		r := ev.Rune()
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		if r >= 'a' && r <= 'z' {
			return chord{key: tcell.KeyCtrlA + tcell.Key(r-'a'), mod: tcell.ModCtrl}
		}
	}
	if key >= tcell.KeyCtrlA && key <= tcell.KeyCtrlZ {
		return chord{key: key, mod: tcell.ModCtrl}
	}
	return chord{key: key}
}
