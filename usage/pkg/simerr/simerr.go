// Package simerr defines the error kinds a simulation can fail with. Every error returned by the
// usage packages wraps exactly one of the sentinels so the driver can classify it with
// errors.Is.
package simerr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration means invalid or missing model or global parameters. It is only ever
	// returned while constructing a model, never once operations are being produced.
	ErrConfiguration = errors.New("configuration error")
	// ErrPlaybook means malformed playbook text. The whole playbook is rejected.
	ErrPlaybook = errors.New("playbook error")
	// ErrSimulation means a runtime precondition failed while building or executing one
	// operation. These are never retried.
	ErrSimulation = errors.New("simulation error")
)

// Configuration returns an ErrConfiguration with the given context.
func Configuration(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, a...))
}

// Simulation returns an ErrSimulation with the given context.
func Simulation(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrSimulation, fmt.Sprintf(format, a...))
}

// PlaybookError describes why a single playbook line could not be parsed. LineNo is 1-based and
// zero when the line did not come from a file.
type PlaybookError struct {
	LineNo int
	Line   string
	Token  string
	Reason string
}

func (e *PlaybookError) Error() string {
	msg := e.Reason
	if e.Token != "" {
		msg = fmt.Sprintf("%s (token %q)", msg, e.Token)
	}
	if e.LineNo > 0 {
		return fmt.Sprintf("%s: line %d %q: %s", ErrPlaybook, e.LineNo, e.Line, msg)
	}
	return fmt.Sprintf("%s: %q: %s", ErrPlaybook, e.Line, msg)
}

func (e *PlaybookError) Unwrap() error {
	return ErrPlaybook
}
