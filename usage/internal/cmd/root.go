// Package cmd implements the fsstrata command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/thinkparq/fsstrata/usage/internal/cmdfmt"
	"github.com/thinkparq/fsstrata/usage/pkg/simerr"
)

// ExitCode tells scripts which kind of error ended a command.
type ExitCode int

const (
	Success ExitCode = iota
	GeneralError
	ConfigurationError
	PlaybookError
	SimulationError
)

func (c ExitCode) String() string {
	switch c {
	case Success:
		return "Success"
	case GeneralError:
		return "General Error"
	case ConfigurationError:
		return "Configuration Error"
	case PlaybookError:
		return "Playbook Error"
	case SimulationError:
		return "Simulation Error"
	default:
		return "Unknown"
	}
}

// exitCodeFor classifies err by the error kind it wraps.
func exitCodeFor(err error) ExitCode {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, simerr.ErrConfiguration):
		return ConfigurationError
	case errors.Is(err, simerr.ErrPlaybook):
		return PlaybookError
	case errors.Is(err, simerr.ErrSimulation):
		return SimulationError
	default:
		return GeneralError
	}
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return int(exitCodeFor(newRootCmd().ExecuteContext(context.Background())))
}

func newRootCmd() *cobra.Command {
	longHelpHeader := fmt.Sprintf("fsstrata: %s", Version)
	cmd := &cobra.Command{
		Use:   BinaryName,
		Short: "Simulate realistic file system usage.",
		Long: fmt.Sprintf(`%s
%s
Drives a file system through a sequence of create, write, copy, move and delete operations chosen
by a usage model, and records every executed operation so the run can be replayed.

* Create a simulation directory with "init", then start it with "run".
* View help for specific commands with "<command> --help".
`, longHelpHeader, strings.Repeat("=", len(longHelpHeader))),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cmdfmt.OptionsFromViper().Validate()
		},
	}

	cmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ToLower(name))
	})

	cmd.PersistentFlags().String(cmdfmt.OutputKey, string(cmdfmt.OutputTable), fmt.Sprintf("How structured output is printed %v.", cmdfmt.OutputTypes))
	cmd.PersistentFlags().StringSlice(cmdfmt.ColumnsKey, []string{}, "The table columns to print. Specify 'all' to print all available columns.")
	cmd.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
		viper.BindPFlag(flag.Name, flag)
	})

	cmd.AddCommand(
		versionCmd,
		newRunCmd(),
		newInitCmd(),
		newCleanCmd(),
		newPlaybookCmd(),
		newModelsCmd(),
		newQueryCmd(),
	)
	return cmd
}
