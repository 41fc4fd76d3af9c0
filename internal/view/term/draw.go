package term

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"

	"github.com/dshills/microstorm/internal/lint"
)

const (
	gutterWidth = 5
	paneHeight  = 8
)

// layout splits the screen into rows.
type layout struct {
	width, height int
	bar, tabs     int
	editTop       int
	editRows      int
	paneTop       int
	status, info  int
}

func (v *View) layout() layout {
	w, h := v.screen.Size()
	l := layout{width: w, height: h, bar: 0, tabs: 1, editTop: 2, status: h - 2, info: h - 1}
	l.editRows = l.status - l.editTop
	l.paneTop = -1
	if len(v.panes) > 0 && l.editRows > paneHeight+2 {
		l.editRows -= paneHeight
		l.paneTop = l.editTop + l.editRows
	}
	return l
}

func (v *View) draw() {
	l := v.layout()
	if l.height < 4 {
		return
	}
	v.screen.SetStyle(v.colors.text)
	v.screen.Clear()

	v.drawBar(l)
	v.drawTabs(l)
	v.drawEditor(l)
	if l.paneTop >= 0 {
		v.drawPane(l)
	}
	v.drawStatus(l)
	v.screen.Show()
}

// drawText writes s at (x, y) clipped to maxX and returns the next column.
func (v *View) drawText(x, y, maxX int, s string, style tcell.Style) int {
	for _, r := range s {
		w := uniseg.StringWidth(string(r))
		if w == 0 {
			w = 1
		}
		if x+w > maxX {
			break
		}
		v.screen.SetContent(x, y, r, nil, style)
		x += w
	}
	return x
}

func (v *View) fillRow(y, width int, style tcell.Style) {
	for x := 0; x < width; x++ {
		v.screen.SetContent(x, y, ' ', nil, style)
	}
}

func (v *View) drawBar(l layout) {
	v.fillRow(l.bar, l.width, v.colors.bar)
	x := 0
	for _, btn := range v.bar.buttons {
		if btn.chord != (chord{}) {
			x = v.drawText(x, l.bar, l.width, btn.chord.String(), v.colors.barKey)
			x = v.drawText(x, l.bar, l.width, " ", v.colors.bar)
		}
		x = v.drawText(x, l.bar, l.width, btn.action.Name+"  ", v.colors.bar)
	}
}

func (v *View) drawTabs(l layout) {
	v.fillRow(l.tabs, l.width, v.colors.tab)
	x := 0
	for i, t := range v.tabs {
		style := v.colors.tab
		if i == v.current {
			style = v.colors.activeTab
		}
		label := " " + t.Label()
		if t.modified {
			label += " *"
		}
		x = v.drawText(x, l.tabs, l.width, label+" ", style)
		x = v.drawText(x, l.tabs, l.width, "|", v.colors.tab)
	}
}

func (v *View) drawEditor(l layout) {
	t := v.currentTab()
	if t == nil {
		return
	}
	t.scroll(l.editRows)
	for row := 0; row < l.editRows; row++ {
		n := t.top + row
		if n >= len(t.lines) {
			break
		}
		y := l.editTop + row
		gutter, style := fmt.Sprintf("%4d ", n+1), v.colors.gutter
		if anns := t.annotations[n]; len(anns) > 0 {
			gutter, style = fmt.Sprintf("%4d!", n+1), v.markStyle(anns)
		}
		v.drawText(0, y, gutterWidth, gutter, style)
		v.drawText(gutterWidth, y, l.width, t.lines[n], v.colors.text)
	}
	if !v.paneFocus {
		x := gutterWidth + uniseg.StringWidth(string(t.line()[:t.col]))
		v.screen.ShowCursor(x, l.editTop+t.row-t.top)
	}
}

// markStyle picks the gutter style for a line: errors win over style.
func (v *View) markStyle(anns []lint.Annotation) tcell.Style {
	for _, a := range anns {
		if a.Severity == lint.SeverityError {
			return v.colors.errorMark
		}
	}
	return v.colors.styleMark
}

func (v *View) drawPane(l layout) {
	p := v.activePane()
	title := " " + p.title
	if p.isClosed() {
		title += " (finished)"
	}
	if v.paneFocus {
		title += "  [^T editor]"
	} else {
		title += "  [^T focus]"
	}
	v.fillRow(l.paneTop, l.width, v.colors.paneTitle)
	v.drawText(0, l.paneTop, l.width, title, v.colors.paneTitle)

	rows := paneHeight - 1
	lines := append([]string(nil), p.lines...)
	lines[len(lines)-1] += string(p.input)
	if len(lines) > rows {
		lines = lines[len(lines)-rows:]
	}
	for i := 0; i < rows; i++ {
		y := l.paneTop + 1 + i
		v.fillRow(y, l.width, v.colors.pane)
		if i < len(lines) {
			v.drawText(0, y, l.width, lines[i], v.colors.pane)
		}
	}
	if v.paneFocus {
		last := min(len(lines), rows) - 1
		v.screen.ShowCursor(uniseg.StringWidth(lines[last]), l.paneTop+1+last)
	}
}

func (v *View) drawStatus(l layout) {
	v.fillRow(l.status, l.width, v.colors.status)
	left := " " + v.mode.DisplayName
	if v.zoom != 0 {
		left += fmt.Sprintf("  zoom %+d", v.zoom)
	}
	x := v.drawText(0, l.status, l.width, left, v.colors.status)
	if v.message != "" {
		v.drawText(x+2, l.status, l.width, v.message, v.colors.status.Bold(true))
	}

	v.fillRow(l.info, l.width, v.colors.text)
	v.drawText(1, l.info, l.width, v.infoLine(), v.colors.message)
}

// infoLine is the message detail, or the annotations on the cursor line.
func (v *View) infoLine() string {
	if v.info != "" {
		return v.info
	}
	t := v.currentTab()
	if t == nil {
		return ""
	}
	anns := t.annotations[t.row]
	msgs := make([]string, len(anns))
	for i, a := range anns {
		msgs[i] = a.Message
	}
	return strings.Join(msgs, "; ")
}
