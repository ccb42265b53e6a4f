package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrParse marks input that is not valid JSON.
	ErrParse = errors.New("malformed JSON")
	// ErrIO marks failures opening, reading or writing a file.
	ErrIO = errors.New("i/o failure")
	// ErrNotObject marks a document root (or record) that is not a JSON object.
	ErrNotObject = errors.New("not a JSON object")
)

// ParseError reports malformed JSON input. Offset is the byte offset reported
// by the decoder, or -1 when unknown.
type ParseError struct {
	Path   string
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	src := e.Path
	if src == "" {
		src = "input"
	}
	if e.Offset >= 0 {
		return fmt.Sprintf("parse %s: %v (offset %d)", src, e.Err, e.Offset)
	}
	return fmt.Sprintf("parse %s: %v", src, e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }

// IOError reports a file operation failure.
type IOError struct {
	Op   string // "read" | "write"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error { return []error{ErrIO, e.Err} }
