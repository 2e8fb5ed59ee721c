package model

import (
	"errors"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/thinkparq/fsstrata/usage/pkg/operation"
	"github.com/thinkparq/fsstrata/usage/pkg/playbook"
)

const PlaybookName = "Playbook"

var playbookDescriptor = Descriptor{
	Name: PlaybookName,
	Description: "Replays the operations listed in the file \"" + playbook.InputName + "\" in the " +
		"simulation directory. The whole playbook is validated before the first operation runs.",
	factory: func(cfg Config) (Model, error) { return NewReplay(cfg) },
}

// Replay returns the operations of a playbook in order. It uses no randomness.
type Replay struct {
	ops  []operation.Operation
	next int
}

func NewReplay(cfg Config) (*Replay, error) {
	var none struct{}
	if err := decodeParameters(PlaybookName, cfg.Parameters, &none); err != nil {
		return nil, err
	}
	input := filepath.Join(cfg.SimulationDir, playbook.InputName)
	exists, err := afero.Exists(cfg.fs(), input)
	if err != nil {
		return nil, configError(PlaybookName, err)
	}
	if !exists {
		return nil, configError(PlaybookName, errors.New("required input playbook "+input+" is missing"))
	}
	ops, err := playbook.ReadFile(cfg.fs(), input)
	if err != nil {
		return nil, err
	}
	return &Replay{ops: ops}, nil
}

func (m *Replay) Name() string { return PlaybookName }
func (m *Replay) Steps() int   { return len(m.ops) }

func (m *Replay) Next() (operation.Operation, bool, error) {
	if m.next >= len(m.ops) {
		return nil, false, nil
	}
	op := m.ops[m.next]
	m.next++
	return op, true, nil
}
