package storage

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFilePath = errors.New("invalid file path")
	ErrCorruptSaveFile = errors.New("corrupt save file")
)

// InvalidFilePathError reports a save file that cannot be read or written.
type InvalidFilePathError struct {
	Path string
	Err  error
}

func (e *InvalidFilePathError) Error() string {
	return fmt.Sprintf("%s: cannot use %s as a save file", ErrInvalidFilePath, e.Path)
}

// Unwrap exposes both the kind and the underlying os error.
func (e *InvalidFilePathError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidFilePath}
	}
	return []error{ErrInvalidFilePath, e.Err}
}

// CorruptSaveFileError reports a save file that does not follow the format.
type CorruptSaveFileError struct {
	Path   string
	Line   int
	Reason string
}

func (e *CorruptSaveFileError) Error() string {
	where := e.Path
	if where == "" {
		where = "input"
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s line %d: %s", ErrCorruptSaveFile, where, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrCorruptSaveFile, where, e.Reason)
}

func (e *CorruptSaveFileError) Unwrap() error { return ErrCorruptSaveFile }
