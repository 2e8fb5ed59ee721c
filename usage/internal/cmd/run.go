package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thinkparq/fsstrata/common/logger"
	"github.com/thinkparq/fsstrata/common/units"
	"github.com/thinkparq/fsstrata/usage/internal/cmdfmt"
	"github.com/thinkparq/fsstrata/usage/internal/config"
	"github.com/thinkparq/fsstrata/usage/pkg/model"
	"github.com/thinkparq/fsstrata/usage/pkg/operation"
	"github.com/thinkparq/fsstrata/usage/pkg/playbook"
	"github.com/thinkparq/fsstrata/usage/pkg/random"
	"github.com/thinkparq/fsstrata/usage/pkg/simulation"
	"go.uber.org/zap"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <simulation-dir>",
		Short: "Run the simulation configured in a simulation directory.",
		Long: fmt.Sprintf(`Run the simulation configured in a simulation directory.

Settings are merged from (highest to lowest precedence) flags, %sKEY environment variables,
%s in the simulation directory and defaults. For environment variables write the flag name
in capitals replacing hyphens with a double underscore and dots with an underscore, for example
%sUSAGE__MODEL_TYPE=KAD.

Sending SIGHUP while the simulation runs reloads the configuration. Only log settings can change.`,
			config.EnvVarPrefix, config.ConfigFileName, config.EnvVarPrefix),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			sum, err := runSimulation(ctx, cmd.Flags(), args[0], os.Stdout)
			if sum != nil {
				printSummary(cmd.OutOrStdout(), *sum)
			}
			return err
		},
	}
	config.InitFlags(cmd.Flags())
	return cmd
}

// runSimulation runs the simulation in dir. The summary is returned whenever the run started,
// also if it failed.
func runSimulation(ctx context.Context, flags *pflag.FlagSet, dir string, progress io.Writer) (*simulation.Summary, error) {
	simDir, err := simulationDir(dir)
	if err != nil {
		return nil, err
	}
	cfgMgr, cfg, err := loadConfig(flags, simDir)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.LogConfig(simDir))
	if err != nil {
		return nil, fmt.Errorf("unable to initialize logger: %w", err)
	}
	defer log.Sync()
	cfgMgr.AddListener(log)
	go cfgMgr.Manage(ctx, log.Logger)
	log.Debug("start-of-day", zap.String("version", Version), zap.String("commit", Commit), zap.String("simulation", simDir))

	seed := cfg.SeedValue()
	if seed != nil {
		random.Seed(*seed)
	}

	mount, fs, err := openVFS(cfg, simDir)
	if err != nil {
		return nil, err
	}
	m, err := model.New(cfg.UsageModel.Type, model.Config{
		Parameters:    cfg.UsageModel.Parameters,
		VFS:           fs,
		SimulationDir: simDir,
		Log:           log.Logger,
	})
	if err != nil {
		log.Error("unable to set up usage model", zap.Error(err))
		return nil, err
	}

	var recorded *os.File
	simCfg := simulation.Config{
		Model:    m,
		Env:      operation.NewEnv(mount, log.Logger),
		Seed:     seed,
		Progress: progress,
		Log:      log.Logger,
	}
	if cfg.WritePlaybook {
		recorded, err = os.Create(filepath.Join(simDir, playbook.OutputName))
		if err != nil {
			return nil, fmt.Errorf("unable to create output playbook: %w", err)
		}
		simCfg.Playbook = recorded
	}

	sim, err := simulation.New(simCfg)
	if err != nil {
		if recorded != nil {
			recorded.Close()
		}
		return nil, err
	}
	sum, err := sim.Run(ctx)
	if recorded != nil {
		if closeErr := recorded.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("unable to close output playbook: %w", closeErr))
		}
	}
	return &sum, err
}

func printSummary(w io.Writer, sum simulation.Summary) {
	cmdfmt.Printf("run %s: %d operations of model %s in %s\n", sum.RunID, sum.Total(), sum.Model, sum.Duration.Round(time.Millisecond))
	if sum.Recorded > 0 {
		cmdfmt.Printf("recorded %d operations to %s\n", sum.Recorded, playbook.OutputName)
	}
	cmdfmt.Printf("used %s -> %s of %s\n", units.FormatSize(sum.Before.Used()), units.FormatSize(sum.After.Used()), units.FormatSize(sum.After.Total))
	p := cmdfmt.NewPrintomatic(w, []string{"command", "count"}, []string{"command", "count"}, cmdfmt.OptionsFromViper())
	for _, c := range sum.Commands() {
		p.AddItem(string(c), sum.Executed[c])
	}
	p.Flush()
}
