// Package multierror combines multiple errors into one.
//
// The combined error works with errors.Is and errors.As: it matches if any
// of the wrapped errors matches.
package multierror

import (
	"strings"
)

const Seperator = "\n "

type MultiError []error

var (
	_ error                         = MultiError{}
	_ interface{ Unwrap() []error } = MultiError{}
)

// New creates an error from a list of errors.
//
// nil errors in the list are skipped. Returns nil if no error is left,
// the error itself if only one is left.
func New(errs []error) error {
	var result MultiError
	for _, err := range errs {
		if err != nil {
			result = append(result, err)
		}
	}
	switch len(result) {
	case 0:
		return nil
	case 1:
		return result[0]
	}
	return result
}

func Wrap(ers ...error) error {
	return New(ers)
}

// NewOr is just like New, but returns fallback if the list of errors is empty.
func NewOr(errs []error, fallback error) error {
	if err := New(errs); err != nil {
		return err
	}
	return fallback
}

func (multi MultiError) Unwrap() []error {
	return multi
}

func (multi MultiError) Error() string {
	var messages []string
	for _, err := range multi {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, Seperator)
}
