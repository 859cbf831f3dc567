package errors

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"os"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig   Category = "config"
	CategoryNotation Category = "notation"
	CategoryScenario Category = "scenario"
	CategoryProtocol Category = "protocol"
	CategorySnapshot Category = "snapshot"
	CategoryCLI      Category = "cli"
)

// Location represents a source location.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Error is a structured error with source location and suggestions.
type Error struct {
	// Code is a unique error identifier (e.g., "E200").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is the source location where the error occurred.
	Location *Location

	// Context contains surrounding source lines, starting at line
	// ContextStart.
	Context      []string
	ContextStart int

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code != "" && t.Code == e.Code
}

// WithLocation adds a file location to the error and reads the lines around
// it for display.
func (e *Error) WithLocation(file string, line, column int) *Error {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.ContextStart = max(1, line-1)
	e.Context = readContextLines(file, e.ContextStart, line+1)
	return e
}

// WithSource adds a location inside an in-memory source, such as a notation
// string given on the command line. Line and column are 1-based.
func (e *Error) WithSource(name, src string, line, column int) *Error {
	e.Location = &Location{File: name, Line: line, Column: column}
	e.Context = []string{src}
	e.ContextStart = line
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// readContextLines reads lines startLine through endLine from a file.
func readContextLines(filename string, startLine, endLine int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}

	return lines
}

// New creates an Error from a registered error code.
func New(code string) *Error {
	template, ok := registry[code]
	if !ok {
		return &Error{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &Error{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
	}
}

// Newf creates a new Error with a formatted message (no code).
func Newf(category Category, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in an Error. Errors that already are, or
// wrap, an *Error are returned as that *Error.
func FromError(err error, code string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return New(code).Wrap(err)
}

// HasCode reports whether err is or wraps an *Error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	for err != nil {
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Wrapped
	}
	return false
}
