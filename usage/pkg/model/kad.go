package model

import (
	"fmt"

	"github.com/thinkparq/fsstrata/common/types"
	"github.com/thinkparq/fsstrata/usage/pkg/operation"
	"github.com/thinkparq/fsstrata/usage/pkg/random"
	"github.com/thinkparq/fsstrata/usage/pkg/simerr"
	"github.com/thinkparq/fsstrata/usage/pkg/vfs"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	KADName = "KAD"
	// diskFullThreshold is the free space below which the disk counts as full.
	diskFullThreshold = 512
)

var kadDescriptor = Descriptor{
	Name: KADName,
	Description: "Keeps the disk usage between configurable limits. Below write_limit.start only " +
		"files are written until write_limit.stop is reached, above delete_limit.start only " +
		"entries are removed until delete_limit.stop is reached. In between the operations " +
		"write, rm, extend and shrink are drawn according to operation_factors. Sizes are " +
		"chunk_size times a weighted size factor times a random multiplier.",
	Parameters: []Parameter{
		{Key: "steps", Type: "int", Description: "number of operations", Example: 1000},
		{Key: "chunk_size", Type: "size", Description: "granularity of all sizes and chunked writes", Example: 4096},
		{Key: "operation_factors", Type: "map", Description: "relative weights of write, delete, increase and decrease",
			Example: map[string]any{"write": 10, "delete": 9, "increase": 11, "decrease": 10}},
		{Key: "size_factors", Type: "list", Description: "size multipliers with weights",
			Example: []any{map[string]any{"size": 1, "weight": 8}, map[string]any{"size": 256, "weight": 2}}},
		{Key: "random_range", Type: "map", Description: "inclusive range of the random size multiplier",
			Example: map[string]any{"min": 1, "max": 10}},
		{Key: "write_limit", Type: "map", Description: "usage ratios that start and stop write only mode",
			Example: map[string]any{"start": 0.1, "stop": 0.3}},
		{Key: "delete_limit", Type: "map", Description: "usage ratios that start and stop delete only mode",
			Example: map[string]any{"start": 0.9, "stop": 0.7}},
	},
	factory: func(cfg Config) (Model, error) { return NewKAD(cfg) },
}

type limits struct {
	Start float64 `mapstructure:"start"`
	Stop  float64 `mapstructure:"stop"`
}

type sizeFactor struct {
	Size   int64   `mapstructure:"size"`
	Weight float64 `mapstructure:"weight"`
}

type kadParams struct {
	Steps            int   `mapstructure:"steps"`
	ChunkSize        int64 `mapstructure:"chunk_size"`
	OperationFactors struct {
		Write    float64 `mapstructure:"write"`
		Delete   float64 `mapstructure:"delete"`
		Increase float64 `mapstructure:"increase"`
		Decrease float64 `mapstructure:"decrease"`
	} `mapstructure:"operation_factors"`
	SizeFactors []sizeFactor `mapstructure:"size_factors"`
	RandomRange struct {
		Min int64 `mapstructure:"min"`
		Max int64 `mapstructure:"max"`
	} `mapstructure:"random_range"`
	WriteLimit  limits `mapstructure:"write_limit"`
	DeleteLimit limits `mapstructure:"delete_limit"`
}

func (p kadParams) validate() error {
	errs := &types.MultiError{}
	if p.Steps < 1 {
		errs.Add(fmt.Errorf("steps must be greater than 0 (got %d)", p.Steps))
	}
	if p.ChunkSize < 1 {
		errs.Add(fmt.Errorf("chunk_size must be greater than 0 (got %d)", p.ChunkSize))
	}

	factors := p.factors()
	for cmd, f := range factors {
		if f < 0 {
			errs.Add(fmt.Errorf("operation factor for %s must not be negative (got %g)", cmd, f))
		}
	}
	if p.OperationFactors.Write <= 0 && p.OperationFactors.Delete <= 0 &&
		p.OperationFactors.Increase <= 0 && p.OperationFactors.Decrease <= 0 {
		errs.Add(fmt.Errorf("at least one operation factor must be greater than 0"))
	}

	if len(p.SizeFactors) == 0 {
		errs.Add(fmt.Errorf("size_factors must not be empty"))
	}
	var totalWeight float64
	for i, f := range p.SizeFactors {
		if f.Size <= 0 {
			errs.Add(fmt.Errorf("size_factors[%d].size must be greater than 0 (got %d)", i, f.Size))
		}
		if f.Weight < 0 {
			errs.Add(fmt.Errorf("size_factors[%d].weight must not be negative (got %g)", i, f.Weight))
		}
		totalWeight += max(0, f.Weight)
	}
	if len(p.SizeFactors) > 0 && totalWeight <= 0 {
		errs.Add(fmt.Errorf("at least one size factor weight must be greater than 0"))
	}

	if p.RandomRange.Min < 0 {
		errs.Add(fmt.Errorf("random_range.min must not be negative (got %d)", p.RandomRange.Min))
	}
	if p.RandomRange.Max < 1 {
		errs.Add(fmt.Errorf("random_range.max must be greater than 0 (got %d)", p.RandomRange.Max))
	}
	if p.RandomRange.Min > p.RandomRange.Max {
		errs.Add(fmt.Errorf("random_range.min must not exceed random_range.max"))
	}

	for name, v := range map[string]float64{
		"write_limit.start":  p.WriteLimit.Start,
		"write_limit.stop":   p.WriteLimit.Stop,
		"delete_limit.start": p.DeleteLimit.Start,
		"delete_limit.stop":  p.DeleteLimit.Stop,
	} {
		if v < 0 || v > 1 {
			errs.Add(fmt.Errorf("%s must be between 0 and 1 (got %g)", name, v))
		}
	}
	if p.WriteLimit.Start > p.WriteLimit.Stop {
		errs.Add(fmt.Errorf("write_limit.start must not exceed write_limit.stop"))
	}
	if p.DeleteLimit.Start < p.DeleteLimit.Stop {
		errs.Add(fmt.Errorf("delete_limit.start must not be below delete_limit.stop"))
	}
	if p.WriteLimit.Stop >= p.DeleteLimit.Stop {
		errs.Add(fmt.Errorf("write_limit.stop must be below delete_limit.stop"))
	}
	if p.WriteLimit.Start >= p.DeleteLimit.Start {
		errs.Add(fmt.Errorf("write_limit.start must be below delete_limit.start"))
	}
	return errs.ErrorOrNil()
}

func (p kadParams) factors() map[operation.Command]float64 {
	return map[operation.Command]float64{
		operation.WriteCommand:  p.OperationFactors.Write,
		operation.RemoveCommand: p.OperationFactors.Delete,
		operation.ExtendCommand: p.OperationFactors.Increase,
		operation.ShrinkCommand: p.OperationFactors.Decrease,
	}
}

type kadState int

const (
	stateRegular kadState = iota
	statePreventEmptyDisk
	statePreventFilledDisk
)

func (s kadState) String() string {
	switch s {
	case statePreventEmptyDisk:
		return "prevent-empty-disk"
	case statePreventFilledDisk:
		return "prevent-filled-disk"
	default:
		return "regular"
	}
}

var kadCommands = []operation.Command{
	operation.WriteCommand, operation.RemoveCommand, operation.ExtendCommand, operation.ShrinkCommand,
}

// KAD keeps the disk usage within a band using a three state machine with hysteresis.
type KAD struct {
	vfs    *vfs.VFS
	log    *zap.Logger
	params kadParams
	step   int
	state  kadState
	// biases are the normalized operation factors.
	biases      map[operation.Command]float64
	sizeFactors []int64
	sizeDist    distuv.Categorical
}

// NewKAD decodes and validates the parameters in cfg and returns a model in the regular state.
// Operation factors are normalized to sum 1. Invalid parameters are simerr.ErrConfiguration.
func NewKAD(cfg Config) (*KAD, error) {
	if err := requireVFS(KADName, cfg); err != nil {
		return nil, err
	}
	var p kadParams
	if err := decodeParameters(KADName, cfg.Parameters, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, configError(KADName, err)
	}

	weights := make([]float64, len(kadCommands))
	factors := p.factors()
	for i, cmd := range kadCommands {
		weights[i] = factors[cmd]
	}
	floats.Scale(1/floats.Sum(weights), weights)
	biases := make(map[operation.Command]float64, len(kadCommands))
	for i, cmd := range kadCommands {
		biases[cmd] = weights[i]
	}

	sizes := make([]int64, len(p.SizeFactors))
	sizeWeights := make([]float64, len(p.SizeFactors))
	for i, f := range p.SizeFactors {
		sizes[i] = f.Size
		sizeWeights[i] = f.Weight
	}

	m := &KAD{
		vfs:         cfg.VFS,
		log:         cfg.log().With(zap.String("component", "kad")),
		params:      p,
		state:       stateRegular,
		biases:      biases,
		sizeFactors: sizes,
		sizeDist:    distuv.NewCategorical(sizeWeights, random.Source()),
	}
	m.log.Debug("operation biases", zap.Any("biases", biases))
	return m, nil
}

func (m *KAD) Name() string { return KADName }
func (m *KAD) Steps() int   { return m.params.Steps }

func (m *KAD) Next() (operation.Operation, bool, error) {
	if m.step >= m.params.Steps {
		return nil, false, nil
	}
	m.step++

	ratio, err := m.vfs.UsageRatio()
	if err != nil {
		return nil, false, simulationError(err)
	}
	m.updateState(ratio)

	var cmd operation.Command
	switch m.state {
	case statePreventEmptyDisk:
		cmd = operation.WriteCommand
	case statePreventFilledDisk:
		cmd = operation.RemoveCommand
	default:
		if cmd, err = m.chooseRegular(); err != nil {
			return nil, false, fmt.Errorf("step %d: %w", m.step, simulationError(err))
		}
	}

	var op operation.Operation
	switch cmd {
	case operation.WriteCommand:
		op, err = m.write()
	case operation.RemoveCommand:
		op, err = m.remove()
	case operation.ExtendCommand:
		op, err = m.extend()
	case operation.ShrinkCommand:
		op, err = m.shrink()
	}
	if err != nil {
		return nil, false, fmt.Errorf("step %d (%s): %w", m.step, cmd, simulationError(err))
	}
	return op, true, nil
}

// updateState applies the hysteresis rules. Between the thresholds the previous state is kept.
func (m *KAD) updateState(ratio float64) {
	prev := m.state
	switch {
	case ratio < m.params.WriteLimit.Start:
		m.state = statePreventEmptyDisk
	case ratio > m.params.DeleteLimit.Start:
		m.state = statePreventFilledDisk
	}
	if m.params.WriteLimit.Stop <= ratio && ratio <= m.params.DeleteLimit.Stop {
		m.state = stateRegular
	}
	if m.state != prev {
		m.log.Debug("state changed", zap.Int("step", m.step), zap.Stringer("from", prev),
			zap.Stringer("to", m.state), zap.Float64("usage", ratio))
	}
}

// chooseRegular draws the next command in the regular state. A full disk only allows rm and
// shrink, an empty one only write. A drawn command without a qualifying file fails later on.
func (m *KAD) chooseRegular() (operation.Command, error) {
	free, err := m.vfs.FreeSpace()
	if err != nil {
		return "", err
	}
	empty, err := m.vfs.Empty()
	if err != nil {
		return "", err
	}

	var cmds []operation.Command
	switch {
	case free < diskFullThreshold:
		cmds = []operation.Command{operation.RemoveCommand, operation.ShrinkCommand}
	case empty:
		return operation.WriteCommand, nil
	default:
		cmds = kadCommands
	}

	var allowed []operation.Command
	var weights []float64
	for _, cmd := range cmds {
		if m.biases[cmd] > 0 {
			allowed = append(allowed, cmd)
			weights = append(weights, m.biases[cmd])
		}
	}
	if len(allowed) == 0 {
		return "", simerr.Simulation("none of %v has a positive operation factor (free %d bytes)", cmds, free)
	}
	dist := distuv.NewCategorical(weights, random.Source())
	return allowed[int(dist.Rand())], nil
}

func (m *KAD) shrinkFilter() vfs.Filter {
	return vfs.Filter{Type: vfs.Regular, MinSize: 2 * m.params.ChunkSize}
}

// operationSize returns chunk_size * size factor * random multiplier, rounded down to a multiple
// of chunk_size not above upper and raised to at least one chunk.
func (m *KAD) operationSize(upper int64) int64 {
	chunk := m.params.ChunkSize
	factor := m.sizeFactors[int(m.sizeDist.Rand())]
	size := chunk * factor * random.Int64Range(m.params.RandomRange.Min, m.params.RandomRange.Max)
	if size > upper {
		size = upper / chunk * chunk
	}
	return max(size, chunk)
}

func (m *KAD) write() (operation.Operation, error) {
	p, err := m.vfs.NonexistentPath()
	if err != nil {
		return nil, err
	}
	free, err := m.vfs.FreeSpace()
	if err != nil {
		return nil, err
	}
	return build(operation.NewWrite(p, m.operationSize(free), operation.Chunked(m.params.ChunkSize)))
}

func (m *KAD) remove() (operation.Operation, error) {
	e, err := m.vfs.RandomFile(vfs.Filter{})
	if err != nil {
		return nil, err
	}
	return build(operation.NewRemove(e.Path))
}

func (m *KAD) extend() (operation.Operation, error) {
	e, err := m.vfs.RandomFile(vfs.Filter{Type: vfs.Regular})
	if err != nil {
		return nil, err
	}
	free, err := m.vfs.FreeSpace()
	if err != nil {
		return nil, err
	}
	return build(operation.NewExtend(e.Path, m.operationSize(free), operation.Chunked(m.params.ChunkSize)))
}

func (m *KAD) shrink() (operation.Operation, error) {
	e, err := m.vfs.RandomFile(m.shrinkFilter())
	if err != nil {
		return nil, err
	}
	return build(operation.NewShrink(e.Path, m.operationSize(e.Size-1)))
}
