// Package errors defines the error taxonomy for the file persistence layer.
//
// Operations wrap OS failures in a PathError carrying the operation name and
// the path involved. Sentinel errors classify the failure kind so callers
// can branch with errors.Is or the helper predicates.
package errors

import (
	"errors"
	"io/fs"
)

// Sentinel errors for the file persistence layer.
var (
	// ErrNotFound indicates a path does not exist where existence was required.
	ErrNotFound = errors.New("not found")

	// ErrPermission indicates the OS denied read or write access.
	ErrPermission = errors.New("permission denied")

	// ErrDecodeFailed indicates content could not be decoded under the
	// chosen encoding.
	ErrDecodeFailed = errors.New("content does not decode under encoding")

	// ErrBinaryFile indicates a text-mode open was requested for a file
	// classified as binary.
	ErrBinaryFile = errors.New("not a text file")

	// ErrInvalidPath indicates a path failed validation.
	ErrInvalidPath = errors.New("invalid path")

	// ErrEncodingUnsupported indicates an unknown encoding name.
	ErrEncodingUnsupported = errors.New("unsupported encoding")
)

// PathError wraps an error with the operation and path that produced it.
type PathError struct {
	Op   string
	Path string
	Err  error
}

// NewPathError creates a PathError.
func NewPathError(op, path string, err error) *PathError {
	return &PathError{Op: op, Path: path, Err: err}
}

// Error returns the formatted error string.
func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error {
	return e.Err
}

// Classify maps an OS-level error onto the layer's sentinel kinds.
// Errors that are neither not-exist nor permission failures pass through
// unchanged and count as generic I/O failures.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermission
	default:
		return err
	}
}

// IsNotFound returns true if err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPermission returns true if err is or wraps ErrPermission.
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermission)
}

// IsDecodeFailed returns true if err is or wraps ErrDecodeFailed.
func IsDecodeFailed(err error) bool {
	return errors.Is(err, ErrDecodeFailed)
}

// IsBinaryFile returns true if err is or wraps ErrBinaryFile.
func IsBinaryFile(err error) bool {
	return errors.Is(err, ErrBinaryFile)
}

// IsInvalidPath returns true if err is or wraps ErrInvalidPath.
func IsInvalidPath(err error) bool {
	return errors.Is(err, ErrInvalidPath)
}
