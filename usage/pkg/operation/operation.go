// Package operation defines the closed set of file system operations a simulation performs and
// their playbook codec. Operations are immutable values: they are built by a usage model or
// parsed from a playbook line, executed exactly once against an Env, and can be serialized back
// to a field map (AsDict) or a playbook line that Parse reads back to an equal operation.
package operation

import (
	"context"
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/thinkparq/fsstrata/common/filesystem"
	"github.com/thinkparq/fsstrata/usage/pkg/simerr"
	"go.uber.org/zap"
)

// Command is the playbook token identifying an operation kind.
type Command string

const (
	CopyCommand     Command = "cp"
	MoveCommand     Command = "mv"
	RemoveCommand   Command = "rm"
	MkdirCommand    Command = "mkdir"
	WriteCommand    Command = "write"
	ExtendCommand   Command = "extend"
	ShrinkCommand   Command = "shrink"
	SleepCommand    Command = "sleep"
	SetClockCommand Command = "time"
)

// Operation is implemented by Copy, Move, Remove, Mkdir, Write, Extend, Shrink, Sleep and
// SetClock only.
type Operation interface {
	Command() Command
	// Execute performs the operation. Failed preconditions are returned as simerr.ErrSimulation.
	Execute(ctx context.Context, env *Env) error
	// AsDict returns the canonical field map. Two operations are equal if their maps are.
	AsDict() map[string]any
	// PlaybookLine returns the textual encoding accepted by Parse.
	PlaybookLine() string
	// Target is the path the operation mutates, or "" if it does not touch the file system.
	Target() string
	sealed()
}

// Env is everything an operation needs to execute. It replaces any global notion of the current
// mount point.
type Env struct {
	Mount filesystem.Provider
	Clock Clock
	Log   *zap.Logger
	// MaxChunkSize bounds a single write call for unchunked writes. Zero means MaxChunkSize.
	MaxChunkSize int64
}

// NewEnv returns an Env using the host clock.
func NewEnv(mount filesystem.Provider, log *zap.Logger) *Env {
	return &Env{Mount: mount, Clock: SystemClock{}, Log: log}
}

func (e *Env) maxChunkSize() int64 {
	if e.MaxChunkSize > 0 {
		return e.MaxChunkSize
	}
	return MaxChunkSize
}

func (e *Env) log() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

// NormalizePath roots p at the simulated file system root. It is idempotent.
func NormalizePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path must not be empty")
	}
	if strings.ContainsFunc(p, unicode.IsSpace) {
		return "", fmt.Errorf("path %q must not contain whitespace", p)
	}
	return path.Clean("/" + p), nil
}

func simulationError(op Command, p string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", simerr.ErrSimulation, op, p, err)
}
