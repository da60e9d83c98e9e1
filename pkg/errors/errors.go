// Package errors defines the error kinds surfaced by the bundling proxy.
//
// Every kind is a prototype *Error. Builders such as With and Message return
// copies, so the package level kinds are never mutated and can be matched with
// errors.Is regardless of the inner error they wrap.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	Config                = &Error{kind: "config", synopsis: "configuration error", httpStatus: http.StatusInternalServerError}
	Fetch                 = &Error{kind: "fetch", synopsis: "fetch error", httpStatus: http.StatusInternalServerError}
	RedirectLimitExceeded = &Error{kind: "redirect_limit_exceeded", parent: Fetch, synopsis: "redirect limit exceeded", httpStatus: http.StatusInternalServerError}
	TemplateRead          = &Error{kind: "template_read", synopsis: "error template unreadable", httpStatus: http.StatusInternalServerError}
)

type Error struct {
	kind       string
	parent     *Error
	httpStatus int
	inner      error
	message    string
	synopsis   string
}

// Message returns a copy of e carrying msg as its detail.
func (e *Error) Message(msg string) *Error {
	err := *e
	err.message = msg
	return &err
}

// With returns a copy of e wrapping inner.
func (e *Error) With(inner error) *Error {
	err := *e
	err.inner = inner
	return &err
}

func (e *Error) Error() string {
	msg := e.synopsis
	if e.message != "" {
		msg += ": " + e.message
	}
	if e.inner != nil {
		msg += ": " + e.inner.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.inner
}

// Is reports whether target is the kind of e or one of its parent kinds.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	for k := e; k != nil; k = k.parent {
		if k.kind == t.kind {
			return true
		}
	}
	return false
}

func (e *Error) Kind() string {
	return e.kind
}

func (e *Error) HTTPStatus() int {
	return e.httpStatus
}

// Status returns the HTTP status to answer with for err.
func Status(err error) int {
	var e *Error
	if errors.As(err, &e) && e.httpStatus != 0 {
		return e.httpStatus
	}
	return http.StatusInternalServerError
}

// Stack renders the chain of wrapped errors, outermost first, one per line.
func Stack(err error) string {
	var lines []string
	for err != nil {
		lines = append(lines, typeName(err)+": "+err.Error())
		err = errors.Unwrap(err)
	}
	return strings.Join(lines, "\n")
}

func typeName(err error) string {
	if e, ok := err.(*Error); ok {
		return e.kind
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

// Is and As are re-exported so callers importing this package under its
// natural name keep access to the standard helpers.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
