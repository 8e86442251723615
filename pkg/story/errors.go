package story

import (
	"errors"
	"fmt"
)

// ErrorKind classifies generation failures.
type ErrorKind string

const (
	KindOutlineTimeout ErrorKind = "OutlineTimeout"
	KindOutlineFailure ErrorKind = "OutlineFailure"
	KindSegmentTimeout ErrorKind = "SegmentTimeout"
	KindSegmentFailure ErrorKind = "SegmentFailure"
	// KindNoRouteOrStory is a precondition miss. It is never surfaced to the user.
	KindNoRouteOrStory ErrorKind = "NoRouteOrStory"
)

var (
	// ErrStoryActive is returned by StartStory while another story is buffering.
	ErrStoryActive = errors.New("a story is already active; reset first")
	// ErrInvalidRoute is returned when a route cannot carry a story.
	ErrInvalidRoute = errors.New("invalid route")
	// ErrCursorOutOfRange is returned when jumping past the buffered segments.
	ErrCursorOutOfRange = errors.New("cursor index outside buffered segments")
	// ErrStopped is returned when the controller is not running.
	ErrStopped = errors.New("story controller stopped")
)

// Error is a classified generation failure. Message is shown to the user as-is.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors of the same kind so callers can test against a template.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// KindOf returns the kind of a classified error, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// classify wraps a raw collaborator error as the given failure kind,
// leaving already classified errors (timeouts) untouched.
func classify(err error, kind ErrorKind, format string, args ...any) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	msg := err.Error()
	if format != "" {
		msg = fmt.Sprintf(format, args...) + ": " + msg
	}
	return newError(kind, msg, err)
}

// ErrorInfo is the displayable form of the last error.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) info() *ErrorInfo {
	if e == nil {
		return nil
	}
	return &ErrorInfo{Kind: e.Kind, Message: e.Error()}
}
