package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	red    = color.New(color.FgRed).SprintFunc()
	redB   = color.New(color.FgRed, color.Bold).SprintFunc()
	whiteB = color.New(color.FgWhite, color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

// DisableColors disables ANSI color output.
func DisableColors() {
	color.NoColor = true
}

// EnableColors enables ANSI color output.
func EnableColors() {
	color.NoColor = false
}

// Format returns a formatted error message for terminal display.
func (e *Error) Format() string {
	var b strings.Builder

	// Header line
	b.WriteString("\n")
	if e.Code != "" {
		b.WriteString(redB("ERROR "))
		b.WriteString(whiteB(e.Code + ": "))
	} else {
		b.WriteString(redB("ERROR: "))
	}
	b.WriteString(e.Message)
	b.WriteString("\n\n")

	if e.Location != nil {
		b.WriteString("  ")
		b.WriteString(cyan(e.Location.String()))
		b.WriteString("\n\n")

		for i, line := range e.Context {
			lineNum := e.ContextStart + i
			if lineNum != e.Location.Line {
				fmt.Fprintf(&b, "    %4d%s%s\n", lineNum, gray(" │ "), line)
				continue
			}
			fmt.Fprintf(&b, "  %s%4d%s%s\n", red("→ "), lineNum, gray(" │ "), line)
			if e.Location.Column > 0 {
				b.WriteString("       ")
				b.WriteString(gray("│ "))
				b.WriteString(strings.Repeat(" ", e.Location.Column-1))
				b.WriteString(red("^"))
				b.WriteString("\n")
			}
		}
		if len(e.Context) > 0 {
			b.WriteString("\n")
		}
	}

	if e.Detail != "" {
		for _, line := range wrapText(e.Detail, 70) {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if e.Wrapped != nil {
		b.WriteString("  ")
		b.WriteString(gray("Cause: "))
		b.WriteString(e.Wrapped.Error())
		b.WriteString("\n\n")
	}

	if e.Suggestion != "" {
		b.WriteString("  ")
		b.WriteString(cyan("Hint: "))
		b.WriteString(e.Suggestion)
		b.WriteString("\n\n")
	}

	return b.String()
}

// FormatCompact returns a compact single-line error format.
func (e *Error) FormatCompact() string {
	var b strings.Builder
	if e.Location != nil {
		b.WriteString(e.Location.String())
		b.WriteString(": ")
	}
	b.WriteString(e.Error())
	return b.String()
}

type jsonLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

type jsonError struct {
	Code       string        `json:"code,omitempty"`
	Category   Category      `json:"category"`
	Message    string        `json:"message"`
	Detail     string        `json:"detail,omitempty"`
	Location   *jsonLocation `json:"location,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
	Cause      string        `json:"cause,omitempty"`
}

// FormatJSON returns the error as a JSON object.
func (e *Error) FormatJSON() string {
	je := jsonError{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Suggestion: e.Suggestion,
	}
	if e.Location != nil {
		je.Location = &jsonLocation{File: e.Location.File, Line: e.Location.Line, Column: e.Location.Column}
	}
	if e.Wrapped != nil {
		je.Cause = e.Wrapped.Error()
	}
	data, _ := json.Marshal(je)
	return string(data)
}

// wrapText wraps text to the specified width.
func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= width {
		return []string{text}
	}

	var lines []string
	words := strings.Fields(text)
	var current strings.Builder

	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}

	if current.Len() > 0 {
		lines = append(lines, current.String())
	}

	return lines
}

// PrintError prints a formatted error to stderr.
func PrintError(err error) {
	Fprint(os.Stderr, err)
}

// Fprint writes a formatted error to w.
func Fprint(w io.Writer, err error) {
	var e *Error
	if stderrors.As(err, &e) {
		fmt.Fprint(w, e.Format())
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", redB("ERROR:"), err.Error())
}
