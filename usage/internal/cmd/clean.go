package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/thinkparq/fsstrata/usage/internal/config"
	"github.com/thinkparq/fsstrata/usage/pkg/playbook"
)

func newCleanCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clean <simulation-dir>",
		Short: "Reset a simulation directory.",
		Long: fmt.Sprintf(`Reset a simulation directory so it can be run again.

Everything created by a previous run is removed, including the contents of the mounted volume if it
lives inside the simulation directory. %s and the replay input "%s" are always kept, the
output playbook and logs are only removed with --all.`, config.ConfigFileName, playbook.InputName),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			simDir, err := simulationDir(args[0])
			if err != nil {
				return err
			}
			_, cfg, err := loadConfig(cmd.Flags(), simDir)
			if err != nil {
				return err
			}
			mountPoint := ""
			if cfg.FileSystem.Type == config.MountType {
				mountPoint = cfg.MountPath(simDir)
			}
			removed, err := cleanSimulationDir(afero.NewOsFs(), simDir, mountPoint, all)
			for _, p := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", p)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Also remove the output playbook and logs.")
	config.InitFlags(cmd.Flags())
	return cmd
}

// cleanSimulationDir removes run artifacts from simDir and empties mountPoint if it is a direct
// child of simDir. It returns the removed paths.
func cleanSimulationDir(fsys afero.Fs, simDir string, mountPoint string, all bool) ([]string, error) {
	keep := []string{config.ConfigFileName, playbook.InputName}
	isResult := func(name string) bool {
		return name == playbook.OutputName ||
			strings.HasPrefix(name, strings.TrimSuffix(config.LogFileName, ".log")) && strings.HasSuffix(name, ".log")
	}

	entries, err := afero.ReadDir(fsys, simDir)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, e := range entries {
		p := filepath.Join(simDir, e.Name())
		switch {
		case slices.Contains(keep, e.Name()):
			continue
		case !all && isResult(e.Name()):
			continue
		case e.IsDir() && p == filepath.Clean(mountPoint):
			r, err := emptyDir(fsys, p)
			removed = append(removed, r...)
			if err != nil {
				return removed, err
			}
			continue
		}
		if err := fsys.RemoveAll(p); err != nil {
			return removed, fmt.Errorf("unable to remove %s: %w", p, err)
		}
		removed = append(removed, p)
	}
	return removed, nil
}

// emptyDir removes the contents of dir but keeps dir itself, it may be a mount point.
func emptyDir(fsys afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var removed []string
	for _, e := range entries {
		// Created by mkfs on most Linux file systems.
		if e.Name() == "lost+found" {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := fsys.RemoveAll(p); err != nil {
			return removed, fmt.Errorf("unable to remove %s: %w", p, err)
		}
		removed = append(removed, p)
	}
	return removed, nil
}
