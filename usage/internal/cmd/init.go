package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/thinkparq/fsstrata/usage/internal/config"
	"github.com/thinkparq/fsstrata/usage/pkg/model"
)

func newInitCmd() *cobra.Command {
	var modelName string
	cmd := &cobra.Command{
		Use:   "init <simulation-dir>",
		Short: "Create a new simulation directory.",
		Long: fmt.Sprintf(`Create a new simulation directory containing a %s template for the chosen usage model
and an empty "%s" directory to mount the simulated volume on. The directory must not exist yet.`,
			config.ConfigFileName, config.DefaultMountPoint),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initSimulationDir(afero.NewOsFs(), args[0], modelName); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized simulation directory %q.\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&modelName, "model", model.ProbabilisticName, fmt.Sprintf("Create a template for the given usage model (one of: %s).", strings.Join(model.Names(), ", ")))
	return cmd
}

func initSimulationDir(fsys afero.Fs, dir string, modelName string) error {
	if _, ok := model.Describe(modelName); !ok {
		return fmt.Errorf("unknown usage model %q (one of: %s)", modelName, strings.Join(model.Names(), ", "))
	}
	exists, err := afero.Exists(fsys, dir)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("refusing to initialize %s: the path already exists", dir)
	}
	if err := fsys.MkdirAll(filepath.Join(dir, config.DefaultMountPoint), 0o755); err != nil {
		return fmt.Errorf("unable to create simulation directory: %w", err)
	}
	return config.WriteTemplate(fsys, filepath.Join(dir, config.ConfigFileName), modelName)
}
