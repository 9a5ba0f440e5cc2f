package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrKeyConflict is returned by commits that hit a client key stored by
// another writer after the existing keys were loaded. Nothing is committed.
var ErrKeyConflict = errors.New("client key already stored")

// FileFormatError reports a file that cannot be opened or whose header does
// not carry the template's required columns. No records are returned with it.
type FileFormatError struct {
	Path    string
	Row     int      // Header row, 0 when the file could not be read
	Missing []string // Required columns absent from the header
	Reason  string
	Err     error
}

func (e *FileFormatError) Error() string {
	var b strings.Builder
	b.WriteString("invalid file format")
	if e.Path != "" {
		b.WriteString(" " + e.Path)
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, " (row %d)", e.Row)
	}
	if e.Reason != "" {
		b.WriteString(": " + e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *FileFormatError) Unwrap() error { return e.Err }

// EmptyFileError reports a file without data rows after the header.
type EmptyFileError struct {
	Path      string
	HeaderRow int // 0 when the file had no non-blank row at all
}

func (e *EmptyFileError) Error() string {
	if e.HeaderRow > 0 {
		return fmt.Sprintf("empty file %s: no data rows after header row %d", e.Path, e.HeaderRow)
	}
	return fmt.Sprintf("empty file %s: no rows", e.Path)
}

// WriteError reports a template that could not be written. The target path is
// left untouched.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write template %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IsStructural reports whether err is one of the fatal file-level errors.
func IsStructural(err error) bool {
	var ff *FileFormatError
	var ef *EmptyFileError
	var we *WriteError
	return errors.As(err, &ff) || errors.As(err, &ef) || errors.As(err, &we)
}
