// Package model implements the usage models. A usage model decides which operation a simulation
// performs next, based on its parameters and the current state of the file system as seen through
// the query layer. Models are single pass: once Next reports the end of the sequence it keeps
// doing so and there is no way to restart a model.
package model

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"github.com/thinkparq/fsstrata/common/units"
	"github.com/thinkparq/fsstrata/usage/pkg/operation"
	"github.com/thinkparq/fsstrata/usage/pkg/simerr"
	"github.com/thinkparq/fsstrata/usage/pkg/vfs"
	"go.uber.org/zap"
)

// Model produces the operations of one simulation run.
type Model interface {
	Name() string
	// Steps is the number of steps the model performs. Most models produce one operation per
	// step, models simulating a series of actions per step say so in their description.
	Steps() int
	// Next returns the next operation. It returns false once the sequence is exhausted. Callers
	// must execute the returned operation before calling Next again because the next decision
	// depends on its effect. A returned error wraps simerr.ErrSimulation and ends the run.
	Next() (operation.Operation, bool, error)
}

// All adapts m to a range-over-func sequence. The sequence stops after the first error.
func All(m Model) iter.Seq2[operation.Operation, error] {
	return func(yield func(operation.Operation, error) bool) {
		for {
			op, ok, err := m.Next()
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok || !yield(op, nil) {
				return
			}
		}
	}
}

// Config is everything a model is constructed from.
type Config struct {
	// Parameters are the model specific settings from the usage-model section of the simulation
	// configuration.
	Parameters map[string]any
	VFS        *vfs.VFS
	// SimulationDir holds model inputs such as the replay playbook.
	SimulationDir string
	// Fs is used to read model inputs. Defaults to the host file system.
	Fs  afero.Fs
	Log *zap.Logger
}

func (c Config) fs() afero.Fs {
	if c.Fs == nil {
		return afero.NewOsFs()
	}
	return c.Fs
}

func (c Config) log() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

// Parameter documents one key of a model's parameter map.
type Parameter struct {
	Key         string
	Type        string
	Description string
	// Default is nil for required parameters.
	Default any
	// Example is used for templates when there is no default.
	Example any
}

func (p Parameter) Required() bool {
	return p.Default == nil
}

// Descriptor is the static description of a model kind.
type Descriptor struct {
	Name        string
	Description string
	Parameters  []Parameter
	factory     func(Config) (Model, error)
}

// Template returns a parameter map with defaults and examples filled in, suitable for writing a
// configuration skeleton.
func (d Descriptor) Template() map[string]any {
	t := make(map[string]any, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Default != nil {
			t[p.Key] = p.Default
		} else {
			t[p.Key] = p.Example
		}
	}
	return t
}

var registry = map[string]Descriptor{
	ProbabilisticName: probabilisticDescriptor,
	KADName:           kadDescriptor,
	CaseyName:         caseyDescriptor,
	PlaybookName:      playbookDescriptor,
}

// Names returns the registered model names in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(registry))
}

// Describe looks up a model by name. Names are matched case-insensitively.
func Describe(name string) (Descriptor, bool) {
	if d, ok := registry[name]; ok {
		return d, true
	}
	for n, d := range registry {
		if strings.EqualFold(n, name) {
			return d, true
		}
	}
	return Descriptor{}, false
}

// New constructs the named model. All parameter validation happens here, so any error wraps
// simerr.ErrConfiguration (or simerr.ErrPlaybook for a malformed replay playbook) and no model is
// ever returned in a state where it could fail because of its parameters later on.
func New(name string, cfg Config) (Model, error) {
	d, ok := Describe(name)
	if !ok {
		return nil, simerr.Configuration("unknown usage model %q (valid models: %s)", name, strings.Join(Names(), ", "))
	}
	return d.factory(cfg)
}

// decodeParameters decodes params into out, rejecting unknown keys and reporting every required
// key that is missing. Keys listed in optional keep the value already present in out.
func decodeParameters(model string, params map[string]any, out any, optional ...string) error {
	if params == nil {
		params = map[string]any{}
	}
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.DecodeHookFuncType(units.SizeHook),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Metadata:         &md,
		Result:           out,
	})
	if err != nil {
		return configError(model, err)
	}
	if err := decoder.Decode(params); err != nil {
		return configError(model, err)
	}
	var missing []string
	for _, key := range md.Unset {
		if !slices.Contains(optional, key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return configError(model, fmt.Errorf("missing required parameters: %s", strings.Join(missing, ", ")))
	}
	return nil
}

func configError(model string, err error) error {
	return fmt.Errorf("%w: usage model %s: %w", simerr.ErrConfiguration, model, err)
}

func requireVFS(model string, cfg Config) error {
	if cfg.VFS == nil {
		return configError(model, errors.New("no file system query layer configured"))
	}
	return nil
}

// simulationError marks a failure to build an operation as a simulation error.
func simulationError(err error) error {
	if err == nil || errors.Is(err, simerr.ErrSimulation) {
		return err
	}
	return fmt.Errorf("%w: %w", simerr.ErrSimulation, err)
}

// build passes through the result of an operation constructor.
func build[T operation.Operation](op T, err error) (operation.Operation, error) {
	if err != nil {
		return nil, simulationError(err)
	}
	return op, nil
}
