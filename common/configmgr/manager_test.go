package configmgr

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name  string `mapstructure:"name"`
	Seed  uint64 `mapstructure:"seed"`
	Model struct {
		Type       string         `mapstructure:"type"`
		Parameters map[string]any `mapstructure:"parameters"`
	} `mapstructure:"usage-model"`
}

func (c *testConfig) NewEmptyInstance() Configurable { return &testConfig{} }

func (c *testConfig) UpdateAllowed(newConfig Configurable) error {
	if c.Seed != newConfig.(*testConfig).Seed {
		return errors.New("seed cannot change")
	}
	return nil
}

func (c *testConfig) ValidateConfig() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

type countingListener struct {
	calls int
	err   error
}

func (l *countingListener) UpdateConfiguration(any) error {
	l.calls++
	return l.err
}

func testFlags(args ...string) *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("name", "", "")
	flags.Uint64("seed", 0, "")
	flags.String(CfgFileKey, "", "")
	if err := flags.Parse(args); err != nil {
		panic(err)
	}
	return flags
}

func TestNewFromFlags(t *testing.T) {
	cfgMgr, err := New(testFlags("--name=from-flag", "--seed=7"), "FSSTRATA_TEST_", &testConfig{})
	require.NoError(t, err)
	cfg := cfgMgr.Get().(*testConfig)
	assert.Equal(t, "from-flag", cfg.Name)
	assert.Equal(t, uint64(7), cfg.Seed)
}

func TestNewValidationFails(t *testing.T) {
	_, err := New(testFlags(), "FSSTRATA_TEST_", &testConfig{})
	assert.ErrorContains(t, err, "name is required")
}

func TestNewFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "simulation.yml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
name: from-file
seed: 3
usage-model:
  type: kad
  parameters:
    steps: 10
    chunk_size: 512
`), 0644))

	t.Setenv("FSSTRATA_TEST_USAGE__MODEL_TYPE", "casey")
	cfgMgr, err := New(testFlags("--"+CfgFileKey+"="+cfgFile), "FSSTRATA_TEST_", &testConfig{})
	require.NoError(t, err)
	cfg := cfgMgr.Get().(*testConfig)
	assert.Equal(t, "from-file", cfg.Name)
	assert.Equal(t, uint64(3), cfg.Seed)
	assert.Equal(t, "casey", cfg.Model.Type)
	assert.EqualValues(t, 10, cfg.Model.Parameters["steps"])
}

func TestMissingConfigFile(t *testing.T) {
	_, err := New(testFlags("--"+CfgFileKey+"=/nonexistent/simulation.yml", "--name=x"), "FSSTRATA_TEST_", &testConfig{})
	assert.Error(t, err)
}

func TestUpdateListenersAndUpdateAllowed(t *testing.T) {
	cfgMgr, err := New(testFlags("--name=a", "--seed=1"), "FSSTRATA_TEST_", &testConfig{})
	require.NoError(t, err)

	ok := &countingListener{}
	failing := &countingListener{err: errors.New("boom")}
	cfgMgr.AddListener(ok)
	cfgMgr.AddListener(failing)

	err = cfgMgr.UpdateListeners()
	assert.ErrorContains(t, err, "partially updated")
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, failing.calls)

	// A reload that would change the seed is rejected as a whole.
	cfgMgr.initialFlags = testFlags("--name=a", "--seed=2")
	assert.ErrorContains(t, cfgMgr.updateConfiguration(), "seed cannot change")
	assert.Equal(t, uint64(1), cfgMgr.Get().(*testConfig).Seed)
	assert.Equal(t, 1, ok.calls)
}

func TestEnvKeyToViperKey(t *testing.T) {
	assert.Equal(t, "log.level", envKeyToViperKey("FSSTRATA_LOG_LEVEL", "FSSTRATA_"))
	assert.Equal(t, "write-playbook", envKeyToViperKey("FSSTRATA_WRITE__PLAYBOOK", "FSSTRATA_"))
	assert.Equal(t, "usage-model.type", envKeyToViperKey("FSSTRATA_USAGE__MODEL_TYPE", "FSSTRATA_"))
}
