// Package simulation drives a run: it pulls operations from a usage model one at a time, executes
// each against the mounted file system, waits for it to reach the disk and records it. Production
// and execution strictly alternate so the model always sees the effect of the previous operation.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/thinkparq/fsstrata/common/filesystem"
	"github.com/thinkparq/fsstrata/usage/pkg/model"
	"github.com/thinkparq/fsstrata/usage/pkg/operation"
	"github.com/thinkparq/fsstrata/usage/pkg/playbook"
	"github.com/thinkparq/fsstrata/usage/pkg/simerr"
	"go.uber.org/zap"
)

// Config configures a Simulation. Model and Env are required.
type Config struct {
	Model model.Model
	Env   *operation.Env
	// Playbook receives every executed operation when set.
	Playbook io.Writer
	// Seed is recorded in the playbook header when the shared random stream was seeded.
	Seed *uint64
	// Progress receives a single updating status line. It is only used if it is a terminal.
	Progress io.Writer
	Log      *zap.Logger
}

type Simulation struct {
	id       uuid.UUID
	model    model.Model
	env      *operation.Env
	playbook io.Writer
	seed     *uint64
	progress *progress
	log      *zap.Logger
}

func New(cfg Config) (*Simulation, error) {
	if cfg.Model == nil {
		return nil, simerr.Configuration("no usage model configured")
	}
	if cfg.Env == nil || cfg.Env.Mount == nil {
		return nil, simerr.Configuration("no execution environment configured")
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.New()
	if cfg.Env.Log == nil {
		cfg.Env.Log = log
	}
	return &Simulation{
		id:       id,
		model:    cfg.Model,
		env:      cfg.Env,
		playbook: cfg.Playbook,
		seed:     cfg.Seed,
		progress: newProgress(cfg.Progress, cfg.Model.Steps()),
		log:      log.With(zap.String("component", "simulation"), zap.Stringer("run", id)),
	}, nil
}

// ID identifies the run in logs and the recorded playbook.
func (s *Simulation) ID() uuid.UUID {
	return s.id
}

// Summary describes a finished or aborted run.
type Summary struct {
	RunID    uuid.UUID
	Model    string
	Started  time.Time
	Duration time.Duration
	// Executed counts successfully executed operations per command.
	Executed map[operation.Command]int
	// Recorded is the number of operations written to the output playbook.
	Recorded int
	Before   filesystem.Usage
	After    filesystem.Usage
}

// Total returns the number of executed operations.
func (s Summary) Total() int {
	total := 0
	for _, n := range s.Executed {
		total += n
	}
	return total
}

// Commands returns the executed commands in sorted order.
func (s Summary) Commands() []operation.Command {
	return slices.Sorted(maps.Keys(s.Executed))
}

// Run executes the model until its sequence ends, ctx is cancelled or an operation fails. The
// summary is valid in every case. Cancellation is only checked between operations.
func (s *Simulation) Run(ctx context.Context) (Summary, error) {
	sum := Summary{
		RunID:    s.id,
		Model:    s.model.Name(),
		Started:  time.Now(),
		Executed: map[operation.Command]int{},
	}
	before, err := s.env.Mount.Usage()
	if err != nil {
		return sum, fmt.Errorf("unable to determine file system usage: %w", err)
	}
	sum.Before, sum.After = before, before

	var recorder *playbook.Writer
	if s.playbook != nil {
		recorder, err = playbook.NewWriter(s.playbook, playbook.Header{
			RunID: s.id, Model: s.model.Name(), Seed: s.seed, Started: sum.Started,
		})
		if err != nil {
			return sum, err
		}
	}

	s.log.Info("starting simulation", zap.String("model", s.model.Name()), zap.Int("steps", s.model.Steps()),
		zap.Int64("total", before.Total), zap.Int64("free", before.Free))

	err = s.loop(ctx, &sum, recorder)
	if recorder != nil {
		sum.Recorded = recorder.Count()
		if flushErr := recorder.Flush(); flushErr != nil {
			err = errors.Join(err, fmt.Errorf("unable to write playbook: %w", flushErr))
		}
	}
	s.progress.done()
	sum.Duration = time.Since(sum.Started)
	if after, usageErr := s.env.Mount.Usage(); usageErr == nil {
		sum.After = after
	}

	if err != nil {
		s.log.Error("simulation failed", zap.Error(err), zap.Int("executed", sum.Total()))
		return sum, err
	}
	s.log.Info("simulation finished", zap.Int("executed", sum.Total()), zap.Int("recorded", sum.Recorded), zap.Duration("duration", sum.Duration),
		zap.Int64("free", sum.After.Free))
	return sum, nil
}

func (s *Simulation) loop(ctx context.Context, sum *Summary, recorder *playbook.Writer) error {
	for step := 1; ; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		op, ok, err := s.model.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if err := op.Execute(ctx, s.env); err != nil {
			return fmt.Errorf("operation %d %q: %w", step, op.PlaybookLine(), err)
		}
		if err := s.env.Mount.Sync(); err != nil {
			return fmt.Errorf("%w: unable to flush after operation %d: %w", simerr.ErrSimulation, step, err)
		}
		if recorder != nil {
			if err := recorder.Write(op); err != nil {
				return err
			}
		}
		sum.Executed[op.Command()]++
		s.log.Debug("executed operation", zap.Int("step", step), zap.String("command", string(op.Command())),
			zap.String("target", op.Target()))
		s.progress.update(step, op)
	}
}
