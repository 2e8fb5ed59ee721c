// Package config holds the global simulation configuration read from simulation.yml, flags and
// FSSTRATA_ environment variables.
package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"slices"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/thinkparq/fsstrata/common/configmgr"
	"github.com/thinkparq/fsstrata/common/filesystem"
	"github.com/thinkparq/fsstrata/common/logger"
	"github.com/thinkparq/fsstrata/common/types"
	"github.com/thinkparq/fsstrata/common/units"
	"github.com/thinkparq/fsstrata/usage/pkg/model"
	"github.com/thinkparq/fsstrata/usage/pkg/simerr"
	"github.com/thinkparq/fsstrata/usage/pkg/vfs"
)

const (
	// ConfigFileName is looked up inside the simulation directory.
	ConfigFileName = "simulation.yml"
	EnvVarPrefix   = "FSSTRATA_"
	// MountType uses a volume that is already mounted at file-system.mount-point.
	MountType = "mount"
	// Unseeded leaves the shared random stream seeded from the operating system.
	Unseeded int64 = -1
	// DefaultMountPoint is resolved against the simulation directory.
	DefaultMountPoint = "mount"
	LogFileName       = "simulation.log"
)

var _ configmgr.Configurable = &AppConfig{}
var _ logger.Configurer = &AppConfig{}

type AppConfig struct {
	Seed          int64            `mapstructure:"seed"`
	WritePlaybook bool             `mapstructure:"write-playbook"`
	Log           logger.Config    `mapstructure:"log"`
	FileSystem    FileSystemConfig `mapstructure:"file-system"`
	// Exclude lists glob patterns of paths the usage model must never touch.
	Exclude    []string         `mapstructure:"exclude"`
	UsageModel UsageModelConfig `mapstructure:"usage-model"`
	Developer  struct {
		DumpConfig bool `mapstructure:"dump-config"`
	} `mapstructure:"developer"`
}

type FileSystemConfig struct {
	Type string `mapstructure:"type"`
	// MountPoint is relative to the simulation directory unless absolute.
	MountPoint string `mapstructure:"mount-point"`
	// Capacity of the in-memory file system.
	Capacity int64 `mapstructure:"capacity"`
}

type UsageModelConfig struct {
	Type string `mapstructure:"type"`
	// Parameters are validated by the model itself.
	Parameters map[string]any `mapstructure:"parameters"`
}

// InitFlags registers every setting on flags. The flag defaults are the configuration defaults.
func InitFlags(flags *pflag.FlagSet) {
	flags.String(configmgr.CfgFileKey, "", "Path to the simulation configuration (defaults to "+ConfigFileName+" in the simulation directory).")
	flags.Int64("seed", Unseeded, "Seed for the shared random stream. A seeded run with the same starting state produces the same playbook (-1 seeds from the operating system).")
	flags.Bool("write-playbook", true, "Record every executed operation to the output playbook in the simulation directory.")
	flags.String("file-system.type", MountType, fmt.Sprintf("Where operations are executed ('%s' or '%s').", MountType, filesystem.MemoryFSIdentifier))
	flags.String("file-system.mount-point", DefaultMountPoint, "Path of the mounted volume when file-system.type is 'mount'.")
	flags.String("file-system.capacity", "1GiB", "Capacity of the in-memory file system.")
	flags.StringSlice("exclude", nil, "Glob patterns of paths inside the file system that are never modified.")
	flags.String("usage-model.type", "", fmt.Sprintf("The usage model to run (one of: %v).", model.Names()))
	flags.String("log.type", string(logger.StdErr), fmt.Sprintf("Where log messages should be sent %v.", logger.SupportedLogTypes))
	flags.String("log.file", LogFileName, "The path to the log file when log.type is 'logfile' (relative to the simulation directory unless absolute).")
	flags.Int8("log.level", 3, "Adjust the logging level (1=Warn, 3=Info, 5=Debug).")
	flags.Int("log.max-size", 1000, "When log.type is 'logfile' the maximum size of the log.file in megabytes before it is rotated.")
	flags.Int("log.num-rotated-files", 5, "When log.type is 'logfile' the maximum number of old log files to keep.")
	flags.Bool("log.developer", false, "Enable developer logging including stack traces and setting the equivalent of log.level=5.")
	flags.Bool("developer.dump-config", false, "Dump the merged configuration before it is decoded.")
	flags.MarkHidden("developer.dump-config")
}

// Load merges flags, environment variables and the configuration file into an AppConfig.
func Load(flags *pflag.FlagSet) (*configmgr.ConfigManager, *AppConfig, error) {
	cfgMgr, err := configmgr.New(flags, EnvVarPrefix, &AppConfig{}, units.SizeHook)
	if err != nil {
		return nil, nil, err
	}
	cfg, ok := cfgMgr.Get().(*AppConfig)
	if !ok {
		return nil, nil, fmt.Errorf("configuration manager returned invalid configuration (expected simulation configuration)")
	}
	return cfgMgr, cfg, nil
}

func (c *AppConfig) NewEmptyInstance() configmgr.Configurable {
	return new(AppConfig)
}

// UpdateAllowed only accepts changes to logging. Everything else shapes the run that is already in
// progress.
func (c *AppConfig) UpdateAllowed(newConfig configmgr.Configurable) error {
	n, ok := newConfig.(*AppConfig)
	if !ok {
		return fmt.Errorf("unexpected configuration type %T", newConfig)
	}
	current, updated := *c, *n
	current.Log, updated.Log = logger.Config{}, logger.Config{}
	current.Developer, updated.Developer = n.Developer, n.Developer
	if !reflect.DeepEqual(current, updated) {
		return fmt.Errorf("rejecting configuration update: only log settings can be changed while a simulation is running")
	}
	return nil
}

func (c *AppConfig) ValidateConfig() error {
	multiErr := &types.MultiError{}
	if c.Seed < Unseeded {
		multiErr.Add(fmt.Errorf("seed must be a non-negative integer or %d (got %d)", Unseeded, c.Seed))
	}
	if !slices.Contains(logger.SupportedLogTypes, c.Log.Type) {
		multiErr.Add(fmt.Errorf("unsupported log.type %q (must be one of %v)", c.Log.Type, logger.SupportedLogTypes))
	}
	switch c.FileSystem.Type {
	case MountType:
		if c.FileSystem.MountPoint == "" {
			multiErr.Add(fmt.Errorf("file-system.mount-point is required when file-system.type is %q", MountType))
		}
	case filesystem.MemoryFSIdentifier:
		if c.FileSystem.Capacity < 1 {
			multiErr.Add(fmt.Errorf("file-system.capacity must be at least one byte (got %d)", c.FileSystem.Capacity))
		}
	default:
		multiErr.Add(fmt.Errorf("unsupported file-system.type %q (must be %q or %q)", c.FileSystem.Type, MountType, filesystem.MemoryFSIdentifier))
	}
	if _, err := vfs.NewGlobPredicate(c.Exclude...); err != nil {
		multiErr.Add(fmt.Errorf("exclude: %w", err))
	}
	if c.UsageModel.Type == "" {
		multiErr.Add(fmt.Errorf("usage-model.type is required (one of: %v)", model.Names()))
	} else if _, ok := model.Describe(c.UsageModel.Type); !ok {
		multiErr.Add(fmt.Errorf("unknown usage-model.type %q (one of: %v)", c.UsageModel.Type, model.Names()))
	}
	if err := multiErr.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", simerr.ErrConfiguration, err)
	}
	return nil
}

func (c *AppConfig) GetLoggingConfig() logger.Config {
	return c.Log
}

// Mount returns the file system operations are executed against.
func (c *AppConfig) Mount(simDir string) (filesystem.Provider, error) {
	if c.FileSystem.Type == filesystem.MemoryFSIdentifier {
		return filesystem.NewMockFS(c.FileSystem.Capacity), nil
	}
	return filesystem.NewFromMountPoint(c.MountPath(simDir))
}

// MountPath returns the configured mount point, relative paths are taken relative to simDir.
func (c *AppConfig) MountPath(simDir string) string {
	if filepath.IsAbs(c.FileSystem.MountPoint) {
		return c.FileSystem.MountPoint
	}
	return filepath.Join(simDir, c.FileSystem.MountPoint)
}

// LogConfig returns the log settings with the log file resolved against simDir.
func (c *AppConfig) LogConfig(simDir string) logger.Config {
	l := c.Log
	if l.File != "" && !filepath.IsAbs(l.File) {
		l.File = filepath.Join(simDir, l.File)
	}
	return l
}

// Immutable returns the predicate matching excluded paths, or nil if nothing is excluded.
func (c *AppConfig) Immutable() vfs.Predicate {
	if len(c.Exclude) == 0 {
		return nil
	}
	// Validated in ValidateConfig.
	g, _ := vfs.NewGlobPredicate(c.Exclude...)
	return g
}

// SeedValue returns the configured seed, or nil for an unseeded run.
func (c *AppConfig) SeedValue() *uint64 {
	if c.Seed == Unseeded {
		return nil
	}
	s := uint64(c.Seed)
	return &s
}

// WriteTemplate writes a configuration skeleton for the named model to path. An existing file is
// never overwritten.
func WriteTemplate(fsys afero.Fs, path string, modelName string) error {
	d, ok := model.Describe(modelName)
	if !ok {
		return simerr.Configuration("unknown usage model %q (valid models: %v)", modelName, model.Names())
	}
	v := viper.New()
	v.SetFs(fsys)
	v.Set("seed", Unseeded)
	v.Set("write-playbook", true)
	v.Set("file-system.type", MountType)
	v.Set("file-system.mount-point", DefaultMountPoint)
	v.Set("exclude", []string{})
	v.Set("usage-model.type", d.Name)
	v.Set("usage-model.parameters", d.Template())
	if err := v.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("unable to write configuration template %s: %w", path, err)
	}
	return nil
}
