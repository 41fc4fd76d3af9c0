package term

import (
	"github.com/gdamore/tcell/v2"

	"github.com/dshills/microstorm/internal/view"
)

// button is an action bound to a key.
type button struct {
	action view.Action
	chord  chord
}

// buttonBar implements view.ButtonBar. Actions without a usable shortcut
// get the next free function key.
type buttonBar struct {
	buttons []button
}

// Reset implements view.ButtonBar.
func (b *buttonBar) Reset() {
	b.buttons = nil
}

// Connect implements view.ButtonBar.
func (b *buttonBar) Connect(a view.Action) {
	c, ok := parseShortcut(a.Shortcut)
	if !ok || b.taken(c) {
		c, ok = b.freeFunctionKey()
	}
	if !ok {
		c = chord{}
	}
	b.buttons = append(b.buttons, button{action: a, chord: c})
}

func (b *buttonBar) taken(c chord) bool {
	_, ok := b.lookup(c)
	return ok
}

func (b *buttonBar) freeFunctionKey() (chord, bool) {
	for k := tcell.KeyF1; k <= tcell.KeyF12; k++ {
		c := chord{key: k}
		if !b.taken(c) {
			return c, true
		}
	}
	return chord{}, false
}

func (b *buttonBar) lookup(c chord) (view.Action, bool) {
	if c == (chord{}) {
		return view.Action{}, false
	}
	for _, btn := range b.buttons {
		if btn.chord == c {
			return btn.action, true
		}
	}
	return view.Action{}, false
}
