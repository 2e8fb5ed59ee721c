package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/fsstrata/common/filesystem"
	"github.com/thinkparq/fsstrata/usage/pkg/operation"
	"github.com/thinkparq/fsstrata/usage/pkg/simerr"
	"github.com/thinkparq/fsstrata/usage/pkg/vfs"
)

// fixture is a non-empty, half full file system.
func fixture() *vfs.Fake {
	return &vfs.Fake{
		Items: []vfs.Entry{
			vfs.FakeDir("/a"),
			vfs.FakeDir("/b"),
			vfs.FakeDir("/c"),
			vfs.FakeFile("/a/f1", 100<<10),
			vfs.FakeFile("/b/f2", 200<<10),
			vfs.FakeFile("/c/f3", 300<<10),
			vfs.FakeFile("/f4", 50<<10),
		},
		Capacity: filesystem.Usage{Total: 1 << 30, Free: 1 << 29},
	}
}

func existingPaths(t *testing.T, src vfs.Source) map[string]bool {
	t.Helper()
	entries, err := src.Entries()
	require.NoError(t, err)
	set := map[string]bool{}
	for _, e := range entries {
		set[e.Path] = true
	}
	return set
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"Casey", "KAD", "Playbook", "Probabilistic"}, Names())

	d, ok := Describe("kad")
	require.True(t, ok)
	assert.Equal(t, KADName, d.Name)
	assert.NotEmpty(t, d.Description)

	_, ok = Describe("nope")
	assert.False(t, ok)
	_, err := New("nope", Config{})
	assert.ErrorIs(t, err, simerr.ErrConfiguration)
}

// Every template must construct the model it belongs to.
func TestTemplatesAreValid(t *testing.T) {
	for _, name := range []string{ProbabilisticName, KADName, CaseyName} {
		d, _ := Describe(name)
		m, err := New(name, Config{Parameters: d.Template(), VFS: vfs.New(fixture())})
		require.NoError(t, err, name)
		assert.Equal(t, name, m.Name())
		assert.Positive(t, m.Steps())
	}

	d, _ := Describe(CaseyName)
	tmpl := d.Template()
	assert.Equal(t, 8, tmpl["bit_depth"])
	for _, p := range d.Parameters {
		assert.Equal(t, p.Key != "bit_depth" && p.Key != "channel_num", p.Required(), p.Key)
	}
}

func TestDecodeParameters(t *testing.T) {
	v := vfs.New(fixture())

	_, err := NewProbabilistic(Config{VFS: v, Parameters: map[string]any{"steps": 1, "file_size_min": 1}})
	require.ErrorIs(t, err, simerr.ErrConfiguration)
	assert.Contains(t, err.Error(), "file_size_max")

	_, err = NewProbabilistic(Config{VFS: v, Parameters: map[string]any{
		"steps": 1, "file_size_min": 1, "file_size_max": 2, "colour": "blue",
	}})
	require.ErrorIs(t, err, simerr.ErrConfiguration)
	assert.Contains(t, err.Error(), "colour")

	_, err = NewProbabilistic(Config{VFS: v, Parameters: map[string]any{
		"steps": 1, "file_size_min": "1 parsec", "file_size_max": 2,
	}})
	assert.ErrorIs(t, err, simerr.ErrConfiguration)

	m, err := NewProbabilistic(Config{VFS: v, Parameters: map[string]any{
		"steps": "10", "file_size_min": "1KiB", "file_size_max": "1MB",
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(1024), m.params.FileSizeMin)
	assert.Equal(t, int64(1000000), m.params.FileSizeMax)
	assert.Equal(t, 10, m.Steps())

	_, err = NewProbabilistic(Config{Parameters: map[string]any{"steps": 1, "file_size_min": 1, "file_size_max": 2}})
	assert.ErrorIs(t, err, simerr.ErrConfiguration)
}

type stubModel struct {
	ops []operation.Operation
	err error
}

func (s *stubModel) Name() string { return "stub" }
func (s *stubModel) Steps() int   { return len(s.ops) }

func (s *stubModel) Next() (operation.Operation, bool, error) {
	if len(s.ops) == 0 {
		if s.err != nil {
			return nil, false, s.err
		}
		return nil, false, nil
	}
	op := s.ops[0]
	s.ops = s.ops[1:]
	return op, true, nil
}

func TestAll(t *testing.T) {
	mk, _ := operation.NewMkdir("/x")
	rm, _ := operation.NewRemove("/x")

	var got []operation.Command
	for op, err := range All(&stubModel{ops: []operation.Operation{mk, rm}}) {
		require.NoError(t, err)
		got = append(got, op.Command())
	}
	assert.Equal(t, []operation.Command{operation.MkdirCommand, operation.RemoveCommand}, got)

	var errs []error
	for _, err := range All(&stubModel{ops: []operation.Operation{mk}, err: simerr.Simulation("boom")}) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 2)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], simerr.ErrSimulation)

	// Breaking out early must be possible.
	for range All(&stubModel{ops: []operation.Operation{mk, rm}}) {
		break
	}
}
