package types

import "strings"

// MultiError collects independent validation failures so they can be reported together.
type MultiError struct {
	Errors []error
}

func (e *MultiError) Error() string {
	var errs []string
	for _, err := range e.Errors {
		errs = append(errs, err.Error())
	}

	return strings.Join(errs, "; ")
}

// Unwrap allows errors.Is and errors.As to inspect every collected error.
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// Add appends err if it is not nil.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// ErrorOrNil returns nil when nothing was collected so callers can return the result directly.
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}
