package hls

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by this package is an *Error whose Kind is
// one of these, so callers can use errors.Is(err, hls.ErrMissingAttribute).
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrMissingAttribute    = errors.New("missing attribute")
	ErrUnexpectedAttribute = errors.New("unexpected attribute")
	ErrUnexpectedTag       = errors.New("unexpected tag")
	ErrCustom              = errors.New("invalid playlist")
)

// Error describes a parse or validation failure.
type Error struct {
	// Kind is one of the Err* sentinels above.
	Kind error
	// Name is the attribute or tag the error is about, if any.
	Name string
	// Line is the 1-based input line, or 0 when not parsing text.
	Line int
	// Detail is a human-readable explanation.
	Detail string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("hls: ")
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	b.WriteString(e.Kind.Error())
	if e.Name != "" {
		b.WriteString(" ")
		b.WriteString(e.Name)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func invalidInput(format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidInput, Detail: fmt.Sprintf(format, args...)}
}

func invalidValue(name string, err error) *Error {
	return &Error{Kind: ErrInvalidInput, Name: name, Detail: "invalid value", Err: err}
}

func missingAttribute(name string) *Error {
	return &Error{Kind: ErrMissingAttribute, Name: name}
}

func unexpectedAttribute(name string) *Error {
	return &Error{Kind: ErrUnexpectedAttribute, Name: name}
}

func unexpectedTag(t Tag) *Error {
	return &Error{Kind: ErrUnexpectedTag, Name: tagName(t)}
}

func custom(format string, args ...any) *Error {
	return &Error{Kind: ErrCustom, Detail: fmt.Sprintf(format, args...)}
}

// atLine stamps a line number on err if it is an *Error without one.
func atLine(err error, line int) error {
	var e *Error
	if errors.As(err, &e) && e.Line == 0 {
		cp := *e
		cp.Line = line
		return &cp
	}
	return err
}
