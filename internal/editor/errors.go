package editor

import "fmt"

// OperationError is a failed editor operation on a file, such as loading a
// script or saving the session.
type OperationError struct {
	Op     string // "load", "save", "extract script", "change mode"...
	Target string // path or mode name; may be empty
	Err    error
}

// NewOperationError wraps err with the operation and its target.
func NewOperationError(op, target string, err error) *OperationError {
	return &OperationError{Op: op, Target: target, Err: err}
}

func (e *OperationError) Error() string {
	msg := e.Op
	if e.Target != "" {
		msg += " " + e.Target
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
