package term

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/microstorm/internal/view"
)

// nextKey polls until a key arrives, keeping panes and the screen live in
// the meantime. It returns nil if the view is stopping.
func (v *View) nextKey(redraw func()) *tcell.EventKey {
	for {
		redraw()
		ev := v.screen.PollEvent()
		if v.stopped.Load() {
			return nil
		}
		switch e := ev.(type) {
		case nil:
			return nil
		case *tcell.EventInterrupt:
			v.drainPanes()
		case *tcell.EventResize:
			v.screen.Sync()
		case *tcell.EventKey:
			return e
		}
	}
}

// readLine edits one line of input at the bottom of the screen. The second
// result is false if the user pressed Escape.
func (v *View) readLine(label, initial string) (string, bool) {
	input := []rune(initial)
	for {
		ev := v.nextKey(func() {
			v.draw()
			l := v.layout()
			v.fillRow(l.info, l.width, v.colors.prompt)
			x := v.drawText(0, l.info, l.width, label, v.colors.prompt.Bold(true))
			x = v.drawText(x, l.info, l.width, string(input), v.colors.prompt)
			v.screen.ShowCursor(x, l.info)
			v.screen.Show()
		})
		if ev == nil {
			return "", false
		}
		switch ev.Key() {
		case tcell.KeyEnter:
			return string(input), true
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return "", false
		case tcell.KeyBackspace, tcell.KeyBackspace2:
			if len(input) > 0 {
				input = input[:len(input)-1]
			}
		case tcell.KeyCtrlU:
			input = input[:0]
		case tcell.KeyRune:
			input = append(input, ev.Rune())
		}
	}
}

// ShowConfirmation implements view.View.
func (v *View) ShowConfirmation(message string) bool {
	for {
		ev := v.nextKey(func() {
			v.draw()
			l := v.layout()
			v.fillRow(l.info, l.width, v.colors.prompt)
			v.drawText(0, l.info, l.width, message+" [y/N] ", v.colors.prompt.Bold(true))
			v.screen.Show()
		})
		if ev == nil {
			return false
		}
		switch {
		case ev.Key() == tcell.KeyRune && (ev.Rune() == 'y' || ev.Rune() == 'Y'):
			return true
		case ev.Key() == tcell.KeyRune && (ev.Rune() == 'n' || ev.Rune() == 'N'),
			ev.Key() == tcell.KeyEnter, ev.Key() == tcell.KeyEscape:
			return false
		}
	}
}

// GetLoadPath implements view.View.
func (v *View) GetLoadPath(dir string) string {
	return v.askPath("Open: ", dir)
}

// GetSavePath implements view.View.
func (v *View) GetSavePath(dir string) string {
	return v.askPath("Save as: ", dir)
}

// GetDevicePath implements view.View.
func (v *View) GetDevicePath(dir string) string {
	return v.askPath("Where is the micro:bit mounted? ", dir)
}

// askPath prompts for a path pre-filled with dir. A bare directory or an
// empty answer means the user declined. Relative answers are taken
// relative to dir.
func (v *View) askPath(label, dir string) string {
	prefix := ""
	if dir != "" {
		prefix = strings.TrimSuffix(dir, string(os.PathSeparator)) + string(os.PathSeparator)
	}
	answer, ok := v.readLine(label, prefix)
	answer = strings.TrimSpace(answer)
	if !ok || answer == "" || answer == prefix {
		return ""
	}
	if !filepath.IsAbs(answer) && dir != "" {
		answer = filepath.Join(dir, answer)
	}
	return filepath.Clean(answer)
}

// SelectMode shows the modes as a list and returns the chosen name.
func (v *View) SelectMode(modes []view.ModeInfo, current string) string {
	if len(modes) == 0 {
		return ""
	}
	sel := 0
	for i, m := range modes {
		if m.Name == current {
			sel = i
		}
	}

	for {
		ev := v.nextKey(func() {
			v.draw()
			v.drawModeList(modes, sel)
			v.screen.Show()
		})
		if ev == nil {
			return ""
		}
		switch ev.Key() {
		case tcell.KeyUp:
			sel = (sel - 1 + len(modes)) % len(modes)
		case tcell.KeyDown:
			sel = (sel + 1) % len(modes)
		case tcell.KeyEnter:
			return modes[sel].Name
		case tcell.KeyEscape:
			return ""
		}
	}
}

func (v *View) drawModeList(modes []view.ModeInfo, sel int) {
	l := v.layout()
	top := l.editTop + 1
	v.fillRow(top, l.width, v.colors.paneTitle)
	v.drawText(1, top, l.width, "Select mode (Enter to choose, Esc to cancel)", v.colors.paneTitle)
	for i, m := range modes {
		y := top + 1 + i
		if y >= l.status {
			break
		}
		style := v.colors.pane
		marker := "  "
		if i == sel {
			style = v.colors.prompt
			marker = "> "
		}
		v.fillRow(y, l.width, style)
		v.drawText(1, y, l.width, fmt.Sprintf("%s%-16s %s", marker, m.DisplayName, m.Description), style)
	}
}
