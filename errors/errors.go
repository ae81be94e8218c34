// Package errors defines the error taxonomy the fatfs engine raises.
//
// Every fault is a sentinel [DiskoError] value so callers can match against
// it with the standard library's errors.Is even after WithMessage or Wrap
// has attached extra context.
package errors

import "fmt"

// DiskoError is a sentinel error value. The string is its default message.
type DiskoError string

func (e DiskoError) Error() string {
	return string(e)
}

// WithMessage returns an error reading "<sentinel>: <message>" that still
// satisfies errors.Is against e.
func (e DiskoError) WithMessage(message string) error {
	return &wrappedError{
		message: fmt.Sprintf("%s: %s", string(e), message),
		parent:  e,
	}
}

// Wrap returns an error reading "<sentinel>: <err>" that satisfies errors.Is
// against both e and err.
func (e DiskoError) Wrap(err error) error {
	return &wrappedError{
		message: fmt.Sprintf("%s: %s", string(e), err.Error()),
		parent:  e,
		cause:   err,
	}
}

type wrappedError struct {
	message string
	parent  DiskoError
	cause   error
}

func (e *wrappedError) Error() string {
	return e.message
}

// Unwrap exposes both the sentinel and, if present, the wrapped cause so
// errors.Is/errors.As can find either.
func (e *wrappedError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.parent, e.cause}
	}
	return []error{e.parent}
}
