// Package vfs provides the file system abstraction used by the editor core.
//
// The VFS interface lets the session store and the editor facade run against
// the real disk in production and an in-memory file system in tests. Every
// write goes through WriteFile, which OSFS implements as an atomic replace so
// a reader never observes a truncated file.
package vfs

import (
	"errors"
	"fmt"
	"io/fs"
)

// VFS is a virtual file system abstraction.
type VFS interface {
	// ReadFile reads the entire file content.
	ReadFile(path string) ([]byte, error)

	// WriteFile replaces the content of path with data. Implementations
	// must never leave a partially written file visible under path.
	WriteFile(path string, data []byte, perm fs.FileMode) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm fs.FileMode) error

	// Abs returns the absolute path.
	Abs(path string) (string, error)

	// Exists returns true if the path exists.
	Exists(path string) bool

	// IsDir returns true if the path is a directory.
	IsDir(path string) bool

	// IsRegular returns true if the path is a regular file.
	IsRegular(path string) bool
}

// ErrNotFound is matched by errors.Is for missing paths from any VFS.
var ErrNotFound = fs.ErrNotExist

// PathError represents an error associated with a file path.
type PathError struct {
	Op   string // Operation that failed (read, write, mkdir...)
	Path string // File path
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error {
	return e.Err
}

// NewPathError creates a new PathError.
func NewPathError(op, path string, err error) *PathError {
	return &PathError{Op: op, Path: path, Err: err}
}

// IsNotExist reports whether err means a path does not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
