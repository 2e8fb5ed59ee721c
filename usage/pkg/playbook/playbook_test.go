package playbook

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/fsstrata/usage/pkg/operation"
	"github.com/thinkparq/fsstrata/usage/pkg/simerr"
)

const sample = `# comment
mkdir /a

write /a/f size=1KiB chunked=yes chunk_size=100
   # indented comment
extend /a/f extend_size=10 pattern=xyz
shrink /a/f shrink_size=5
cp /a /b
mv /b/f /c
sleep 1 min
time 2021-01-02T03:04:05Z
rm /c
`

func TestRead(t *testing.T) {
	ops, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, ops, 9)

	var cmds []operation.Command
	for _, op := range ops {
		cmds = append(cmds, op.Command())
	}
	assert.Equal(t, []operation.Command{
		operation.MkdirCommand, operation.WriteCommand, operation.ExtendCommand, operation.ShrinkCommand,
		operation.CopyCommand, operation.MoveCommand, operation.SleepCommand, operation.SetClockCommand,
		operation.RemoveCommand,
	}, cmds)
	assert.Equal(t, int64(1024), ops[1].(*operation.Write).Size())
}

func TestReadRejectsWholeFile(t *testing.T) {
	input := "mkdir /a\nwrite /a/f size=10\nwrite /a/g sise=10\nrm /a\n"
	ops, err := Read(strings.NewReader(input))
	require.Error(t, err)
	assert.Nil(t, ops)
	assert.True(t, errors.Is(err, simerr.ErrPlaybook))

	var pbErr *simerr.PlaybookError
	require.True(t, errors.As(err, &pbErr))
	assert.Equal(t, 3, pbErr.LineNo)
	assert.Equal(t, "sise=10", pbErr.Token)
	assert.Contains(t, err.Error(), "line 3")
}

func TestReadRejectsEmpty(t *testing.T) {
	for _, input := range []string{"", "\n\n", "# only\n  \n#another\n"} {
		_, err := Read(strings.NewReader(input))
		assert.ErrorIs(t, err, simerr.ErrPlaybook, "%q", input)
	}
}

func TestReadFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	_, err := ReadFile(fsys, "/sim/playbook")
	assert.ErrorIs(t, err, simerr.ErrPlaybook)

	require.NoError(t, afero.WriteFile(fsys, "/sim/playbook", []byte(sample), 0o644))
	ops, err := ReadFile(fsys, "/sim/playbook")
	require.NoError(t, err)
	assert.Len(t, ops, 9)
}

func TestWriterRoundTrip(t *testing.T) {
	ops, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	var buf bytes.Buffer
	seed := uint64(42)
	w, err := NewWriter(&buf, Header{
		RunID:   uuid.New(),
		Model:   "Playbook",
		Seed:    &seed,
		Started: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	for _, op := range ops {
		require.NoError(t, w.Write(op))
	}
	require.NoError(t, w.Flush())
	assert.Equal(t, len(ops), w.Count())
	assert.True(t, strings.HasPrefix(buf.String(), "# fsstrata playbook\n# run: "))
	assert.Contains(t, buf.String(), "# seed: 42\n")

	again, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, again, len(ops))
	for i := range ops {
		assert.Equal(t, ops[i].AsDict(), again[i].AsDict())
	}
}
