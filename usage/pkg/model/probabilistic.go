package model

import (
	"fmt"
	"path"
	"strings"

	"github.com/thinkparq/fsstrata/common/types"
	"github.com/thinkparq/fsstrata/usage/pkg/operation"
	"github.com/thinkparq/fsstrata/usage/pkg/random"
	"github.com/thinkparq/fsstrata/usage/pkg/simerr"
	"github.com/thinkparq/fsstrata/usage/pkg/vfs"
)

const (
	ProbabilisticName = "Probabilistic"
	// existingDestinationProbability is the chance that a write, copy or move targets a path
	// that already exists.
	existingDestinationProbability = 0.5
)

var probabilisticDescriptor = Descriptor{
	Name: ProbabilisticName,
	Description: "Chooses every step uniformly among the operations the current file system state " +
		"allows: write and mkdir on an empty file system, cp, mv, rm and write once there is no " +
		"free space left, all of write, mkdir, cp, mv, rm and extend otherwise. Writes, copies and " +
		"moves reuse an existing destination half of the time.",
	Parameters: []Parameter{
		{Key: "steps", Type: "int", Description: "number of operations", Example: 1000},
		{Key: "file_size_min", Type: "size", Description: "smallest file written", Example: "1KiB"},
		{Key: "file_size_max", Type: "size", Description: "largest file written or extended", Example: "1MiB"},
	},
	factory: func(cfg Config) (Model, error) { return NewProbabilistic(cfg) },
}

type probabilisticParams struct {
	Steps       int   `mapstructure:"steps"`
	FileSizeMin int64 `mapstructure:"file_size_min"`
	FileSizeMax int64 `mapstructure:"file_size_max"`
}

func (p probabilisticParams) validate() error {
	errs := &types.MultiError{}
	if p.Steps < 1 {
		errs.Add(fmt.Errorf("steps must be greater than 0 (got %d)", p.Steps))
	}
	if p.FileSizeMin < 1 {
		errs.Add(fmt.Errorf("file_size_min must be greater than 0 (got %d)", p.FileSizeMin))
	}
	if p.FileSizeMax < p.FileSizeMin {
		errs.Add(fmt.Errorf("file_size_max must not be smaller than file_size_min (got %d < %d)", p.FileSizeMax, p.FileSizeMin))
	}
	return errs.ErrorOrNil()
}

// Probabilistic picks operations uniformly at random from the set the file system state allows.
type Probabilistic struct {
	vfs    *vfs.VFS
	params probabilisticParams
	step   int
}

func NewProbabilistic(cfg Config) (*Probabilistic, error) {
	if err := requireVFS(ProbabilisticName, cfg); err != nil {
		return nil, err
	}
	var p probabilisticParams
	if err := decodeParameters(ProbabilisticName, cfg.Parameters, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, configError(ProbabilisticName, err)
	}
	return &Probabilistic{vfs: cfg.VFS, params: p}, nil
}

func (m *Probabilistic) Name() string { return ProbabilisticName }
func (m *Probabilistic) Steps() int   { return m.params.Steps }

func (m *Probabilistic) Next() (operation.Operation, bool, error) {
	if m.step >= m.params.Steps {
		return nil, false, nil
	}
	m.step++

	candidates, err := m.candidates()
	if err != nil {
		return nil, false, simulationError(err)
	}
	cmd := candidates[random.IntN(len(candidates))]

	var op operation.Operation
	switch cmd {
	case operation.CopyCommand, operation.MoveCommand:
		op, err = m.copyOrMove(cmd)
	case operation.ExtendCommand:
		op, err = m.extend()
	case operation.MkdirCommand:
		op, err = m.mkdir()
	case operation.RemoveCommand:
		op, err = m.remove()
	case operation.WriteCommand:
		op, err = m.write()
	}
	if err != nil {
		return nil, false, fmt.Errorf("step %d (%s): %w", m.step, cmd, simulationError(err))
	}
	return op, true, nil
}

// candidates narrows the command set to what the current state allows.
func (m *Probabilistic) candidates() ([]operation.Command, error) {
	empty, err := m.vfs.Empty()
	if err != nil {
		return nil, err
	}
	if empty {
		return []operation.Command{operation.WriteCommand, operation.MkdirCommand}, nil
	}
	free, err := m.vfs.FreeSpace()
	if err != nil {
		return nil, err
	}
	if free <= 0 {
		return []operation.Command{operation.CopyCommand, operation.MoveCommand, operation.RemoveCommand, operation.WriteCommand}, nil
	}
	cmds := []operation.Command{
		operation.WriteCommand, operation.MkdirCommand, operation.CopyCommand, operation.MoveCommand, operation.RemoveCommand,
	}
	regular, err := m.vfs.Count(vfs.Filter{Type: vfs.Regular})
	if err != nil {
		return nil, err
	}
	if regular > 0 {
		cmds = append(cmds, operation.ExtendCommand)
	}
	return cmds, nil
}

func (m *Probabilistic) remove() (operation.Operation, error) {
	e, err := m.vfs.RandomFile(vfs.Filter{})
	if err != nil {
		return nil, err
	}
	return build(operation.NewRemove(e.Path))
}

func (m *Probabilistic) mkdir() (operation.Operation, error) {
	p, err := m.vfs.NonexistentPath()
	if err != nil {
		return nil, err
	}
	return build(operation.NewMkdir(p))
}

func (m *Probabilistic) write() (operation.Operation, error) {
	free, err := m.vfs.FreeSpace()
	if err != nil {
		return nil, err
	}
	regular, err := m.vfs.Count(vfs.Filter{Type: vfs.Regular})
	if err != nil {
		return nil, err
	}

	var target string
	switch {
	case free < m.params.FileSizeMin:
		// No room for a new file of the minimum size, so an existing one is overwritten.
		target, err = m.randomRegular()
	case regular == 0:
		target, err = m.vfs.NonexistentPath()
	case random.Float64() < existingDestinationProbability:
		target, err = m.randomRegular()
	default:
		target, err = m.vfs.NonexistentPath()
	}
	if err != nil {
		return nil, err
	}

	upper := max(1, min(free, m.params.FileSizeMax))
	return build(operation.NewWrite(target, random.Int64Range(m.params.FileSizeMin, upper)))
}

func (m *Probabilistic) randomRegular() (string, error) {
	e, err := m.vfs.RandomFile(vfs.Filter{Type: vfs.Regular})
	return e.Path, err
}

func (m *Probabilistic) extend() (operation.Operation, error) {
	e, err := m.vfs.RandomFile(vfs.Filter{Type: vfs.Regular})
	if err != nil {
		return nil, err
	}
	free, err := m.vfs.FreeSpace()
	if err != nil {
		return nil, err
	}
	upper := min(m.params.FileSizeMax-e.Size, free)
	if upper < 1 {
		return nil, simerr.Simulation("no room to extend %s (size %d, free %d)", e.Path, e.Size, free)
	}
	return build(operation.NewExtend(e.Path, random.Int64Range(1, upper)))
}

func (m *Probabilistic) copyOrMove(cmd operation.Command) (operation.Operation, error) {
	src, err := m.vfs.RandomFile(vfs.Filter{})
	if err != nil {
		return nil, err
	}

	if cmd == operation.CopyCommand {
		need, err := m.sizeOf(src)
		if err != nil {
			return nil, err
		}
		free, err := m.vfs.FreeSpace()
		if err != nil {
			return nil, err
		}
		if free < need {
			// A copy that cannot fit is replaced by removing its source.
			return build(operation.NewRemove(src.Path))
		}
	}

	dst := ""
	if random.Float64() < existingDestinationProbability {
		if dst, err = m.existingDestination(src); err != nil {
			return nil, err
		}
	}
	if dst == "" {
		var opts []vfs.PathOption
		if src.Type == vfs.Directory {
			opts = append(opts, vfs.WithSkipDir(src.Path))
		}
		if dst, err = m.vfs.NonexistentPath(opts...); err != nil {
			return nil, err
		}
	}

	if cmd == operation.CopyCommand {
		return build(operation.NewCopy(src.Path, dst))
	}
	return build(operation.NewMove(src.Path, dst))
}

// sizeOf returns the number of bytes a copy of e allocates.
func (m *Probabilistic) sizeOf(e vfs.Entry) (int64, error) {
	if e.Type != vfs.Directory {
		return e.Size, nil
	}
	prefix := e.Path + "/"
	files, err := m.vfs.Files(vfs.Filter{
		Type:      vfs.Regular,
		Predicate: vfs.PredicateFunc(func(f vfs.Entry) bool { return strings.HasPrefix(f.Path, prefix) }),
	})
	if err != nil {
		return 0, err
	}
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total, nil
}

// existingDestination picks an existing destination for src, or "" if there is none. Files are
// replaced by other files. Directories are moved into other directories, which must not be src
// itself, below it, its current parent or already hold an entry of the same name.
func (m *Probabilistic) existingDestination(src vfs.Entry) (string, error) {
	filter := vfs.Filter{Type: vfs.Regular, Exclude: []string{src.Path}}
	if src.Type == vfs.Directory {
		existing, err := m.vfs.PathSet()
		if err != nil {
			return "", err
		}
		base := path.Base(src.Path)
		filter = vfs.Filter{
			Type:         vfs.Directory,
			Exclude:      []string{path.Dir(src.Path)},
			ExcludeTrees: []string{src.Path},
			Predicate: vfs.PredicateFunc(func(e vfs.Entry) bool {
				_, taken := existing[path.Join(e.Path, base)]
				return !taken
			}),
		}
	}
	e, err := m.vfs.RandomFile(filter)
	if vfs.IsNoQualifyingEntry(err) {
		return "", nil
	}
	return e.Path, err
}
