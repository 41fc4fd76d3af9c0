package mode

import (
	"fmt"
	"sort"

	"github.com/dshills/microstorm/internal/logging"
	"github.com/dshills/microstorm/internal/view"
)

// ChangeCallback is called after a mode becomes active.
type ChangeCallback func(from, to Mode)

// Registry holds the modes and tracks the active one.
//
// Registry is not safe for concurrent use; it is driven from the UI event
// loop.
type Registry struct {
	modes   map[string]Mode
	current Mode

	view     view.View
	leading  []view.Action
	trailing []view.Action

	callbacks []ChangeCallback
	logger    *logging.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithFixedActions sets the mode-independent buttons bound before and after
// each mode's own actions.
func WithFixedActions(leading, trailing []view.Action) RegistryOption {
	return func(r *Registry) {
		r.leading = leading
		r.trailing = trailing
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates an empty registry bound to v.
func NewRegistry(v view.View, opts ...RegistryOption) *Registry {
	r := &Registry{
		modes:  make(map[string]Mode),
		view:   v,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("mode")
	return r
}

// SetFixedActions replaces the mode-independent buttons. They take effect
// on the next activation.
func (r *Registry) SetFixedActions(leading, trailing []view.Action) {
	r.leading = leading
	r.trailing = trailing
}

// Register adds modes. A mode with the same name is replaced.
func (r *Registry) Register(modes ...Mode) {
	for _, m := range modes {
		r.modes[m.Name()] = m
	}
	r.logger.Info("available modes: %v", r.Names())
}

// Get returns the mode registered under name.
func (r *Registry) Get(name string) (Mode, error) {
	m, ok := r.modes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, name)
	}
	return m, nil
}

// Current returns the active mode, or nil before the first activation.
func (r *Registry) Current() Mode {
	return r.current
}

// CurrentName returns the active mode's name, or "".
func (r *Registry) CurrentName() string {
	if r.current == nil {
		return ""
	}
	return r.current.Name()
}

// Names returns the registered mode names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.modes))
	for name := range r.modes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Infos describes the registered modes, sorted by name.
func (r *Registry) Infos() []view.ModeInfo {
	infos := make([]view.ModeInfo, 0, len(r.modes))
	for _, name := range r.Names() {
		infos = append(infos, Info(r.modes[name]))
	}
	return infos
}

// OnChange registers a callback invoked after every activation.
func (r *Registry) OnChange(cb ChangeCallback) {
	r.callbacks = append(r.callbacks, cb)
}

// Activate makes name the active mode.
//
// The previous mode's Exit releases its channels, then the button bar is
// rebound to the fixed actions around the new mode's own. Activating the
// current mode skips Exit but still rebinds, so the view can refresh.
func (r *Registry) Activate(name string) error {
	next, err := r.Get(name)
	if err != nil {
		return err
	}

	prev := r.current
	if prev != nil && prev != next {
		prev.Exit()
	}

	r.bind(next)
	r.current = next
	r.logger.Info("mode %s, workspace directory: %s", next.Name(), next.WorkspaceDir())

	for _, cb := range r.callbacks {
		cb(prev, next)
	}
	return nil
}

// Shutdown exits the active mode.
func (r *Registry) Shutdown() {
	if r.current != nil {
		r.current.Exit()
	}
}

func (r *Registry) bind(m Mode) {
	r.view.ChangeMode(Info(m))

	bar := r.view.ButtonBar()
	bar.Reset()
	for _, a := range r.leading {
		bar.Connect(a)
	}
	for _, a := range m.Actions() {
		bar.Connect(a)
	}
	for _, a := range r.trailing {
		bar.Connect(a)
	}
}
