// Package configmgr merges command line flags, environment variables and a configuration file
// into an application defined Configurable.
package configmgr

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"reflect"
	"strings"
	"sync"
	"syscall"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/thinkparq/fsstrata/common/types"
	"go.uber.org/zap"
)

const (
	// CfgFileKey is the flag (and environment variable suffix) naming the configuration file.
	CfgFileKey = "cfg-file"
	// DumpConfigKey prints the merged settings before they are decoded.
	DumpConfigKey = "developer.dump-config"
)

// Configurable is implemented by application configuration so one ConfigManager can load and
// validate it without knowing the concrete type.
type Configurable interface {
	// NewEmptyInstance returns a zero-valued instance of the receiver's type that shares no
	// state with it. The merged settings are decoded into it.
	NewEmptyInstance() Configurable
	// UpdateAllowed rejects a reloaded configuration that changes settings which are
	// immutable once the application started.
	UpdateAllowed(Configurable) error
	// ValidateConfig checks all criteria and constraints of the configuration.
	ValidateConfig() error
}

// ConfigManager loads configuration from flags, environment variables and an optional
// configuration file, in that order of precedence. Defaults come from the flag definitions.
// Calling Manage() additionally reloads the configuration whenever the process receives SIGHUP
// and notifies every registered Listener.
type ConfigManager struct {
	initialFlags *pflag.FlagSet
	// Environment variables starting with this prefix are mapped to configuration keys.
	envVarPrefix  string
	listeners     []Listener
	currentConfig Configurable
	updateSignal  chan os.Signal
	// Serializes reloads so repeated SIGHUPs cannot interleave.
	updateInProgress *sync.RWMutex
	// Once set, UpdateAllowed() is enforced for every reload.
	initialCfgSet   bool
	decodeHookFuncs []mapstructure.DecodeHookFuncType
}

// New loads the initial configuration into config and returns an error if it cannot be parsed
// or does not validate, so the application never starts with bad configuration. Custom decode
// hooks can be provided for fields that need special parsing.
func New(flags *pflag.FlagSet, envVarPrefix string, config Configurable, decodeHookFuncs ...mapstructure.DecodeHookFuncType) (*ConfigManager, error) {

	var mutex sync.RWMutex

	cfgMgr := &ConfigManager{
		initialFlags:     flags,
		envVarPrefix:     envVarPrefix,
		currentConfig:    config,
		updateSignal:     make(chan os.Signal, 1),
		updateInProgress: &mutex,
		decodeHookFuncs:  decodeHookFuncs,
	}

	if err := cfgMgr.updateConfiguration(); err != nil {
		return nil, err
	}

	signal.Notify(cfgMgr.updateSignal, syscall.SIGHUP)
	return cfgMgr, nil
}

// Listener is a component that supports configuration updates after startup, for example the
// logger. Listeners receive the whole application configuration as "any" and are expected to
// use a narrow interface (like logger.Configurer) to pull out the part they understand, which
// avoids import cycles with the application's config package. A listener that cannot apply an
// update returns a meaningful error and keeps running with its previous settings.
type Listener interface {
	UpdateConfiguration(any) error
}

// AddListener registers a Listener. Only add listeners once the component is initialized.
func (cm *ConfigManager) AddListener(listener Listener) {
	cm.listeners = append(cm.listeners, listener)
}

// UpdateListeners pushes the current configuration to all listeners. Errors are aggregated, the
// configuration is not rolled back.
func (cm *ConfigManager) UpdateListeners() error {
	multiErr := &types.MultiError{}
	for _, listener := range cm.listeners {
		multiErr.Add(listener.UpdateConfiguration(cm.currentConfig))
	}
	if len(multiErr.Errors) > 0 {
		multiErr.Errors = append([]error{fmt.Errorf("WARNING: configuration partially updated")}, multiErr.Errors...)
		return multiErr
	}
	return nil
}

// Get returns the current configuration. Use a type assertion to access the actual values.
func (cm *ConfigManager) Get() Configurable {
	cm.updateInProgress.RLock()
	defer cm.updateInProgress.RUnlock()
	return cm.currentConfig
}

// Manage reloads configuration on SIGHUP until ctx is cancelled. The logger is passed in
// because the ConfigManager itself configures logging.
func (cm *ConfigManager) Manage(ctx context.Context, log *zap.Logger) {

	log = log.With(zap.String("component", path.Base(reflect.TypeOf(ConfigManager{}).PkgPath())))

	for {
		select {
		case <-ctx.Done():
			signal.Stop(cm.updateSignal)
			log.Debug("no longer watching for configuration updates")
			return
		case <-cm.updateSignal:
			log.Info("reloading configuration")
			if err := cm.updateConfiguration(); err != nil {
				log.Warn("one or more errors occurred updating the configuration", zap.Error(err))
			}
		}
	}
}

// envKeyToViperKey maps FSSTRATA_USAGE__MODEL_TYPE style names to usage-model.type. A double
// underscore stands for a hyphen, a single underscore for a level of nesting.
func envKeyToViperKey(key string, prefix string) string {
	k := strings.ToLower(strings.TrimPrefix(key, prefix))
	k = strings.ReplaceAll(k, "__", "-")
	return strings.ReplaceAll(k, "_", ".")
}

// updateConfiguration merges (1) command line flags, (2) environment variables, (3) the
// configuration file and (4) flag defaults, then decodes the result into a new instance of the
// Configurable. The new configuration only replaces the current one after ValidateConfig() and,
// for reloads, UpdateAllowed() accept it. Listeners are notified afterwards.
func (cm *ConfigManager) updateConfiguration() error {

	cm.updateInProgress.Lock()
	defer cm.updateInProgress.Unlock()

	// Viper is only used to merge sources, the decoded Configurable is the source of truth.
	v := viper.New()

	if err := v.BindPFlags(cm.initialFlags); err != nil {
		return fmt.Errorf("rejecting configuration update: unable to parse command line flags: %w", err)
	}

	// viper.AutomaticEnv() would re-read the environment on every Get(). Explicitly binding the
	// variables present right now keeps every update going through validation.
	if cm.envVarPrefix != "" {
		for _, envVar := range os.Environ() {
			key, _, _ := strings.Cut(envVar, "=")
			if !strings.HasPrefix(key, cm.envVarPrefix) {
				continue
			}
			if err := v.BindEnv(envKeyToViperKey(key, cm.envVarPrefix), key); err != nil {
				return err
			}
		}
	}

	// Done last because the file itself may be named by a flag or environment variable.
	if cfgFile := v.GetString(CfgFileKey); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.MergeInConfig(); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("rejecting configuration update: configuration file at '%s' was not found (check it exists and permissions are set correctly)", cfgFile)
			}
			return fmt.Errorf("rejecting configuration update: unable to read configuration file '%s': %w", cfgFile, err)
		}
	}

	if v.GetBool(DumpConfigKey) {
		fmt.Printf("Dumping final merged configuration from Viper: \n\n%s\n\n", v.AllSettings())
	}

	var decoderOpts []viper.DecoderConfigOption
	for _, hookFunc := range cm.decodeHookFuncs {
		decoderOpts = append(decoderOpts, viper.DecodeHook(hookFunc))
	}

	newConfig := cm.currentConfig.NewEmptyInstance()
	if err := v.Unmarshal(newConfig, decoderOpts...); err != nil {
		return fmt.Errorf("rejecting configuration update: unable to parse configuration (check if the configuration valid): %w", err)
	}

	if err := newConfig.ValidateConfig(); err != nil {
		return err
	}

	// Checked here rather than in UpdateListeners() so a rejected update is never partially
	// applied.
	if cm.initialCfgSet {
		if err := cm.currentConfig.UpdateAllowed(newConfig); err != nil {
			return err
		}
	} else {
		cm.initialCfgSet = true
	}

	cm.currentConfig = newConfig
	return cm.UpdateListeners()
}
