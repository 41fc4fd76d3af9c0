// Package device discovers attached boards and mediates access to their
// single serial connection.
//
// A board's serial link carries either an interactive REPL or the file
// system protocol, never both. Mediator enforces that with an explicit
// channel State.
package device

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"go.bug.st/serial/enumerator"
)

// ErrDeviceNotFound is returned when no allow-listed board is attached.
var ErrDeviceNotFound = errors.New("device not found")

// Board is a USB vendor/product pair known to run MicroPython.
type Board struct {
	Name      string
	VendorID  uint16
	ProductID uint16
}

// String formats the board as "name (vid:pid)".
func (b Board) String() string {
	return fmt.Sprintf("%s (%04X:%04X)", b.Name, b.VendorID, b.ProductID)
}

// MicroBit is the BBC micro:bit's DAPLink interface.
var MicroBit = Board{Name: "BBC micro:bit", VendorID: 0x0D28, ProductID: 0x0204}

// DefaultBoards is the built-in allow-list.
func DefaultBoards() []Board {
	return []Board{MicroBit}
}

// PortLister enumerates serial ports.
type PortLister func() ([]*enumerator.PortDetails, error)

// Finder locates the first attached board from an allow-list.
type Finder struct {
	boards []Board
	list   PortLister
	goos   string
}

// FinderOption configures a Finder.
type FinderOption func(*Finder)

// WithPortLister replaces the serial port enumeration.
func WithPortLister(list PortLister) FinderOption {
	return func(f *Finder) {
		f.list = list
	}
}

// WithGOOS overrides the platform used for port naming.
func WithGOOS(goos string) FinderOption {
	return func(f *Finder) {
		f.goos = goos
	}
}

// NewFinder creates a Finder for boards.
func NewFinder(boards []Board, opts ...FinderOption) *Finder {
	f := &Finder{
		boards: boards,
		list:   enumerator.GetDetailedPortsList,
		goos:   runtime.GOOS,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Boards returns the allow-list.
func (f *Finder) Boards() []Board {
	out := make([]Board, len(f.boards))
	copy(out, f.boards)
	return out
}

// Find returns the platform port name of the first attached port whose
// VID/PID pair is allow-listed, or ErrDeviceNotFound.
func (f *Finder) Find() (string, error) {
	ports, err := f.list()
	if err != nil {
		return "", fmt.Errorf("enumerate serial ports: %w", err)
	}

	for _, p := range ports {
		if p == nil || !p.IsUSB {
			continue
		}
		vid, ok := parseID(p.VID)
		if !ok {
			continue
		}
		pid, ok := parseID(p.PID)
		if !ok {
			continue
		}
		if f.allowed(vid, pid) {
			return PortName(p.Name, f.goos), nil
		}
	}
	return "", ErrDeviceNotFound
}

func (f *Finder) allowed(vid, pid uint16) bool {
	for _, b := range f.boards {
		if b.VendorID == vid && b.ProductID == pid {
			return true
		}
	}
	return false
}

// parseID parses an enumerator VID or PID, a hex string such as "0d28".
func parseID(s string) (uint16, bool) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}

// PortName returns the name a serial port is opened by. On POSIX systems
// a bare device name ("ttyACM0") lives under /dev; Windows names ("COM3")
// are used as is.
func PortName(name, goos string) string {
	if goos == "windows" || strings.HasPrefix(name, "/") {
		return name
	}
	return "/dev/" + name
}
