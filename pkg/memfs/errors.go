package memfs

import "errors"

// FSError is a domain error returned by file service operations.
//
// These are ordinary outcomes (missing file, table full, wrong mode) rather
// than infrastructure failures. The protocol layer translates the Code into
// the integer status sent to the client.
type FSError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable description
	Message string

	// Name is the file the error refers to, if any
	Name string
}

// Error implements the error interface.
func (e *FSError) Error() string {
	if e.Name != "" {
		return e.Message + ": " + e.Name
	}
	return e.Message
}

// ErrorCode is the category of an FSError.
type ErrorCode int

const (
	// ErrFileAlreadyExists indicates create or rename targeted a taken name
	ErrFileAlreadyExists ErrorCode = iota + 1

	// ErrFileDoesntExist indicates the named file is not in the table
	ErrFileDoesntExist

	// ErrPermissionDenied indicates the requested access is incompatible
	// with the file's owner permission
	ErrPermissionDenied

	// ErrReachedMaxOpenFiles indicates every handle slot is in use
	ErrReachedMaxOpenFiles

	// ErrFileNotOpen indicates the descriptor does not address a live handle
	ErrFileNotOpen

	// ErrFileAlreadyOpen indicates the file already has a live handle
	ErrFileAlreadyOpen

	// ErrOpenInInvalidMode indicates the handle lacks the access the
	// operation needs (read on a write-only handle, or the reverse)
	ErrOpenInInvalidMode

	// ErrMiscellaneous covers argument errors: descriptor outside the table,
	// read length past the end of content, empty names
	ErrMiscellaneous
)

var codeNames = map[ErrorCode]string{
	ErrFileAlreadyExists:   "FileAlreadyExists",
	ErrFileDoesntExist:     "FileDoesntExist",
	ErrPermissionDenied:    "PermissionDenied",
	ErrReachedMaxOpenFiles: "ReachedMaxOpenFiles",
	ErrFileNotOpen:         "FileNotOpen",
	ErrFileAlreadyOpen:     "FileAlreadyOpen",
	ErrOpenInInvalidMode:   "OpenInInvalidMode",
	ErrMiscellaneous:       "MiscellaneousError",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "Unknown"
}

func newError(code ErrorCode, message, name string) *FSError {
	return &FSError{Code: code, Message: message, Name: name}
}

// CodeOf extracts the ErrorCode from err.
//
// The second return value is false when err is nil or not an FSError.
func CodeOf(err error) (ErrorCode, bool) {
	var fsErr *FSError
	if errors.As(err, &fsErr) {
		return fsErr.Code, true
	}
	return 0, false
}

// IsCode reports whether err is an FSError with the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
