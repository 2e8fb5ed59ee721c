package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/thinkparq/fsstrata/common/configmgr"
	"github.com/thinkparq/fsstrata/common/filesystem"
	"github.com/thinkparq/fsstrata/usage/internal/config"
	"github.com/thinkparq/fsstrata/usage/pkg/vfs"
)

// simulationDir resolves dir and checks it is a directory.
func simulationDir(dir string) (string, error) {
	simDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(simDir)
	if err != nil {
		return "", fmt.Errorf("unable to access simulation directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("simulation directory %s is not a directory", simDir)
	}
	return simDir, nil
}

// loadConfig loads the configuration of the simulation in simDir. Unless --cfg-file is given the
// configuration file inside simDir is used, environment variables still take precedence over it.
func loadConfig(flags *pflag.FlagSet, simDir string) (*configmgr.ConfigManager, *config.AppConfig, error) {
	if f := flags.Lookup(configmgr.CfgFileKey); f != nil && !f.Changed {
		// Setting the value without marking the flag changed keeps it at default precedence.
		if err := f.Value.Set(filepath.Join(simDir, config.ConfigFileName)); err != nil {
			return nil, nil, err
		}
	}
	return config.Load(flags)
}

// openVFS returns the configured file system and the query layer over it.
func openVFS(cfg *config.AppConfig, simDir string) (filesystem.Provider, *vfs.VFS, error) {
	mount, err := cfg.Mount(simDir)
	if err != nil {
		return nil, nil, err
	}
	var opts []vfs.Option
	if p := cfg.Immutable(); p != nil {
		opts = append(opts, vfs.WithImmutable(p))
	}
	return mount, vfs.New(vfs.NewMountSource(mount), opts...), nil
}
