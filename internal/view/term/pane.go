package term

import (
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
)

// maxPaneLines bounds the scrollback kept per pane.
const maxPaneLines = 1000

type paneKind int

const (
	paneRunner paneKind = iota
	paneRepl
	paneFiles
	paneLogs
)

// pane is an output area below the editor. Output from its connection is
// read on a background goroutine into pending and moved into lines by the
// event loop.
type pane struct {
	id    string
	kind  paneKind
	title string
	conn  io.ReadWriter

	lines []string
	input []rune

	mu      sync.Mutex
	pending strings.Builder
	closed  bool

	// woken is set while a wake event is queued and not yet drained.
	woken atomic.Bool
}

func newPane(kind paneKind, title string, conn io.ReadWriter) *pane {
	return &pane{
		id:    uuid.NewString(),
		kind:  kind,
		title: title,
		conn:  conn,
		lines: []string{""},
	}
}

// wakeEvent asks the event loop to drain pane output.
type wakeEvent struct{}

// wake posts at most one wake event per drain, so a chatty child cannot
// fill the screen's event queue.
func (p *pane) wake(screen tcell.Screen) {
	if !p.woken.CompareAndSwap(false, true) {
		return
	}
	if err := screen.PostEvent(tcell.NewEventInterrupt(wakeEvent{})); err != nil {
		p.woken.Store(false)
	}
}

// pump copies conn into pending until it fails, waking the event loop.
// A dropped wake is harmless; the next event drains everything.
func (p *pane) pump(screen tcell.Screen) {
	buf := make([]byte, 4096)
	for {
		n, err := p.conn.Read(buf)
		if n > 0 {
			p.mu.Lock()
			p.pending.Write(buf[:n])
			p.mu.Unlock()
			p.wake(screen)
		}
		if err != nil {
			p.mu.Lock()
			p.closed = true
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				p.pending.WriteString("\n[" + err.Error() + "]\n")
			}
			p.mu.Unlock()
			p.wake(screen)
			return
		}
	}
}

// drain moves pending output into lines and reports whether anything
// changed.
func (p *pane) drain() bool {
	p.woken.Store(false)
	p.mu.Lock()
	text := p.pending.String()
	p.pending.Reset()
	p.mu.Unlock()

	if text == "" {
		return false
	}
	p.appendText(text)
	return true
}

func (p *pane) appendText(text string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	p.lines[len(p.lines)-1] += parts[0]
	p.lines = append(p.lines, parts[1:]...)
	if over := len(p.lines) - maxPaneLines; over > 0 {
		p.lines = p.lines[over:]
	}
}

// send writes the typed line to the connection.
func (p *pane) send() error {
	line := string(p.input) + "\n"
	p.input = p.input[:0]
	if p.conn == nil {
		return nil
	}
	_, err := io.WriteString(p.conn, line)
	return err
}

func (p *pane) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
