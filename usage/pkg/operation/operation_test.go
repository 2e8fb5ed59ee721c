package operation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/fsstrata/common/filesystem"
	"github.com/thinkparq/fsstrata/usage/pkg/datagen"
	"github.com/thinkparq/fsstrata/usage/pkg/simerr"
	"go.uber.org/zap"
)

func testEnv(t *testing.T) (*Env, afero.Fs, *FakeClock) {
	t.Helper()
	mount := filesystem.NewMockFS(1 << 30)
	clock := &FakeClock{}
	return &Env{Mount: mount, Clock: clock, Log: zap.NewNop()}, mount.Fs(), clock
}

func must[T Operation](t *testing.T) func(op T, err error) T {
	return func(op T, err error) T {
		t.Helper()
		require.NoError(t, err)
		return op
	}
}

func allKinds(t *testing.T) []Operation {
	pattern := datagen.PatternSpec(64, "%f_%c_%S", "ab")
	return []Operation{
		must[*Copy](t)(NewCopy("/a", "/b")),
		must[*Move](t)(NewMove("a/b", "/c")),
		must[*Remove](t)(NewRemove("/a")),
		must[*Mkdir](t)(NewMkdir("/a/b/c")),
		must[*Write](t)(NewWrite("/f", 1000)),
		must[*Write](t)(NewWrite("/f", 1<<20, Chunked(4096), WithGenerator(pattern))),
		must[*Write](t)(NewWrite("/f", 10, WithChunkSize(7), WithGenerator(datagen.StaticSpec("xyz")))),
		must[*Extend](t)(NewExtend("/f", 77, Chunked(10))),
		must[*Extend](t)(NewExtend("/f", 3, WithGenerator(datagen.StaticSpec("A")))),
		must[*Shrink](t)(NewShrink("/f", 12)),
		must[*Sleep](t)(NewSleep(90 * time.Second)),
		must[*Sleep](t)(NewSleep(1500 * time.Millisecond)),
		NewSetClock(time.Date(2021, 3, 4, 5, 6, 7, 800, time.UTC)),
		NewSetClock(time.Date(2021, 3, 4, 5, 6, 7, 0, time.FixedZone("", 2*3600))),
	}
}

func TestPlaybookRoundTrip(t *testing.T) {
	for _, op := range allKinds(t) {
		parsed, err := Parse(op.PlaybookLine())
		require.NoError(t, err, op.PlaybookLine())
		assert.Equal(t, op.AsDict(), parsed.AsDict(), op.PlaybookLine())
		assert.Equal(t, op.Command(), parsed.Command())

		fromDict, err := FromDict(op.AsDict())
		require.NoError(t, err, op.PlaybookLine())
		assert.Equal(t, op.AsDict(), fromDict.AsDict())
	}
}

// randomOperations builds an operation of every kind with values drawn from r.
func randomOperations(t *testing.T, r *rand.Rand) []Operation {
	path := func() string {
		return fmt.Sprintf("/d%d/f%d", r.IntN(100), r.IntN(100000))
	}
	size := func() int64 { return 1 + r.Int64N(1<<50) }
	generators := []datagen.Spec{
		datagen.RandomSpec(),
		datagen.StaticSpec(fmt.Sprintf("s%d", r.IntN(1000))),
		datagen.PatternSpec(16+r.IntN(256), "%f_%c", "xy"),
	}
	contentOpts := func() []ContentOption {
		opts := []ContentOption{WithGenerator(generators[r.IntN(len(generators))])}
		switch r.IntN(3) {
		case 0:
			opts = append(opts, Chunked(1+r.Int64N(1<<20)))
		case 1:
			opts = append(opts, WithChunkSize(1+r.Int64N(1<<20)))
		}
		return opts
	}
	zone := time.FixedZone("", (r.IntN(25)-12)*3600+r.IntN(2)*1800)
	return []Operation{
		must[*Copy](t)(NewCopy(path(), path())),
		must[*Move](t)(NewMove(path(), path())),
		must[*Remove](t)(NewRemove(path())),
		must[*Mkdir](t)(NewMkdir(path())),
		must[*Write](t)(NewWrite(path(), size(), contentOpts()...)),
		must[*Extend](t)(NewExtend(path(), size(), contentOpts()...)),
		must[*Shrink](t)(NewShrink(path(), size())),
		must[*Sleep](t)(NewSleep(time.Duration(r.Int64N(int64(24 * time.Hour))))),
		must[*Sleep](t)(NewSleep(time.Duration(r.Int64N(100000)) * time.Millisecond)),
		NewSetClock(time.Unix(r.Int64N(4e9), r.Int64N(1e9)).In(zone)),
	}
}

func TestPlaybookRoundTripRandomized(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for range 2000 {
		for _, op := range randomOperations(t, r) {
			line := op.PlaybookLine()
			parsed, err := Parse(line)
			require.NoError(t, err, line)
			require.Equal(t, op.AsDict(), parsed.AsDict(), line)
			require.Equal(t, line, parsed.PlaybookLine())

			fromDict, err := FromDict(op.AsDict())
			require.NoError(t, err, line)
			require.Equal(t, op.AsDict(), fromDict.AsDict(), line)
		}
	}
}

func TestParseRejectsZeroSizesByToken(t *testing.T) {
	for line, token := range map[string]string{
		"write /f size=0":                 "size=0",
		"write /f size=0B chunked=true":   "size=0B",
		"extend /f extend_size=0":         "extend_size=0",
		"write /f size=1KiB chunk_size=0": "chunk_size=0",
		"shrink /f shrink_size=0KiB":      "shrink_size=0KiB",
	} {
		_, err := Parse(line)
		var pbErr *simerr.PlaybookError
		require.ErrorAs(t, err, &pbErr, line)
		assert.ErrorIs(t, err, simerr.ErrPlaybook)
		assert.Equal(t, token, pbErr.Token, line)
		assert.Contains(t, err.Error(), token)
	}
}

func TestRegistryCoversEveryCommand(t *testing.T) {
	assert.ElementsMatch(t, []Command{CopyCommand, MoveCommand, RemoveCommand, MkdirCommand, WriteCommand,
		ExtendCommand, ShrinkCommand, SleepCommand, SetClockCommand}, Commands())
	for _, cmd := range Commands() {
		usage, ok := Usage(cmd)
		assert.True(t, ok)
		assert.Contains(t, usage, string(cmd))
	}
}

func TestParseVariants(t *testing.T) {
	tests := []struct {
		line     string
		expected map[string]any
	}{
		{"cp a b", map[string]any{"command": "cp", "src": "/a", "dst": "/b"}},
		{"sleep 1 min", map[string]any{"command": "sleep", "duration": 60.0}},
		{"sleep 2h", map[string]any{"command": "sleep", "duration": 7200.0}},
		{"time 2020-01-02", map[string]any{"command": "time", "time": "2020-01-02T00:00:00Z"}},
		{"time 2020-01-02T10:11:12.5", map[string]any{"command": "time", "time": "2020-01-02T10:11:12.5Z"}},
		{"write /x chunk_size=1KiB size=1MB chunked=yes", map[string]any{"command": "write", "path": "/x",
			"size": int64(1000000), "chunked": true, "chunk_size": int64(1024), "data_generator": "random()"}},
		{"extend /x extend_size=5 pattern=AB", map[string]any{"command": "extend", "path": "/x",
			"extend_size": int64(5), "chunked": false, "chunk_size": int64(512), "data_generator": "static(AB)"}},
		{"shrink x shrink_size=1k", map[string]any{"command": "shrink", "path": "/x", "shrink_size": int64(1000)}},
		{"rm /dir=with=equals", map[string]any{"command": "rm", "path": "/dir=with=equals"}},
	}
	for _, tt := range tests {
		op, err := Parse(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.expected, op.AsDict(), tt.line)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		line  string
		token string
	}{
		{"", ""},
		{"touch /a", "touch"},
		{"cp /a", ""},
		{"cp /a /b /c", ""},
		{"rm", ""},
		{"write /a", ""},
		{"write /a size=10 colour=red", "colour=red"},
		{"write /a size=ten", "size=ten"},
		{"write /a size=0", "size=0"},
		{"write /a size=10 chunked=maybe", "chunked=maybe"},
		{"write /a size=10 chunk_size=0", "chunk_size=0"},
		{"write /a size=10 size=11", "size=11"},
		{"write /a size=", "size="},
		{"write /a size=10 data_generator=nope()", "data_generator=nope()"},
		{"write size=10 /a", "/a"},
		{"extend /a extend_size=1 pattern=x data_generator=random()", "pattern=x"},
		{"shrink /a shrink_size=0", "shrink_size=0"},
		{"sleep", ""},
		{"sleep 5 days", "5 days"},
		{"time yesterday", "yesterday"},
	}
	for _, tt := range tests {
		_, err := Parse(tt.line)
		require.Error(t, err, tt.line)
		assert.ErrorIs(t, err, simerr.ErrPlaybook, tt.line)
		var pbErr *simerr.PlaybookError
		require.True(t, errors.As(err, &pbErr), tt.line)
		assert.Equal(t, tt.line, pbErr.Line)
		assert.Equal(t, tt.token, pbErr.Token, tt.line)
	}
}

func TestFromDictErrors(t *testing.T) {
	for _, dict := range []map[string]any{
		{"command": "nope"},
		{"command": "rm"},
		{"command": "write", "path": "/a"},
		{"command": "write", "path": "/a", "size": int64(1), "bogus": 1},
	} {
		_, err := FromDict(dict)
		assert.ErrorIs(t, err, simerr.ErrPlaybook)
	}
}

func TestPathNormalization(t *testing.T) {
	for in, expected := range map[string]string{"a": "/a", "/a": "/a", "a/b/": "/a/b", "//a//b": "/a/b"} {
		op, err := NewRemove(in)
		require.NoError(t, err)
		assert.Equal(t, expected, op.Target())
		again, err := NewRemove(op.Target())
		require.NoError(t, err)
		assert.Equal(t, op.Target(), again.Target())
	}
	_, err := NewMkdir("")
	assert.Error(t, err)
	_, err = NewMkdir("/with space")
	assert.Error(t, err)
}

type countingWriter struct {
	calls []int
	buf   bytes.Buffer
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.calls = append(w.calls, len(p))
	return w.buf.Write(p)
}

func TestWriteChunks(t *testing.T) {
	gen, err := datagen.StaticSpec("0123456789").New("")
	require.NoError(t, err)

	w := &countingWriter{}
	calls, err := writeChunks(w, gen, 1000, 300)
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []int{300, 300, 300, 100}, w.calls)
	assert.Equal(t, 1000, w.buf.Len())

	w = &countingWriter{}
	calls, err = writeChunks(w, gen, 900, 300)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 900, w.buf.Len())

	w = &countingWriter{}
	calls, err = writeChunks(w, gen, 5, MaxChunkSize)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []int{5}, w.calls)
}

func TestWriteExecute(t *testing.T) {
	env, fsys, _ := testEnv(t)
	ctx := context.Background()

	w := must[*Write](t)(NewWrite("/f", 25, Chunked(10), WithGenerator(datagen.PatternSpec(10, "%f%c%S", "-"))))
	require.NoError(t, w.Execute(ctx, env))
	data, err := afero.ReadFile(fsys, "/f")
	require.NoError(t, err)
	assert.Equal(t, "f0--------f1--------f2---", string(data))

	// Overwrite truncates.
	w = must[*Write](t)(NewWrite("/f", 3, WithGenerator(datagen.StaticSpec("z"))))
	require.NoError(t, w.Execute(ctx, env))
	data, err = afero.ReadFile(fsys, "/f")
	require.NoError(t, err)
	assert.Equal(t, "zzz", string(data))

	// Unchunked writes are bounded by the maximum single call size.
	env.MaxChunkSize = 4
	w = must[*Write](t)(NewWrite("/g", 10))
	require.NoError(t, w.Execute(ctx, env))
	info, err := fsys.Stat("/g")
	require.NoError(t, err)
	assert.Equal(t, int64(10), info.Size())

	require.NoError(t, fsys.Mkdir("/dir", 0755))
	w = must[*Write](t)(NewWrite("/dir", 1))
	assert.ErrorIs(t, w.Execute(ctx, env), simerr.ErrSimulation)

	w = must[*Write](t)(NewWrite("/missing/parent", 1))
	assert.ErrorIs(t, w.Execute(ctx, env), simerr.ErrSimulation)

	_, err = NewWrite("/f", 0)
	assert.Error(t, err)
	_, err = NewWrite("/f", 1, Chunked(0))
	assert.Error(t, err)
}

func TestExtendExecute(t *testing.T) {
	env, fsys, _ := testEnv(t)
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(fsys, "/f", []byte("abc"), 0644))

	e := must[*Extend](t)(NewExtend("/f", 4, Chunked(3), WithGenerator(datagen.StaticSpec("xy"))))
	require.NoError(t, e.Execute(ctx, env))
	data, err := afero.ReadFile(fsys, "/f")
	require.NoError(t, err)
	assert.Equal(t, "abcxyxy", string(data))

	e = must[*Extend](t)(NewExtend("/missing", 4))
	assert.ErrorIs(t, e.Execute(ctx, env), simerr.ErrSimulation)

	require.NoError(t, fsys.Mkdir("/dir", 0755))
	e = must[*Extend](t)(NewExtend("/dir", 4))
	assert.ErrorIs(t, e.Execute(ctx, env), simerr.ErrSimulation)
}

func TestShrinkExecute(t *testing.T) {
	env, fsys, _ := testEnv(t)
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(fsys, "/f", make([]byte, 100), 0644))

	s := must[*Shrink](t)(NewShrink("/f", 30))
	require.NoError(t, s.Execute(ctx, env))
	info, err := fsys.Stat("/f")
	require.NoError(t, err)
	assert.Equal(t, int64(70), info.Size())

	// n >= S fails and leaves the file alone.
	for _, n := range []int64{70, 71} {
		s = must[*Shrink](t)(NewShrink("/f", n))
		assert.ErrorIs(t, s.Execute(ctx, env), simerr.ErrSimulation)
	}
	info, err = fsys.Stat("/f")
	require.NoError(t, err)
	assert.Equal(t, int64(70), info.Size())

	_, err = NewShrink("/f", 0)
	assert.Error(t, err)

	s = must[*Shrink](t)(NewShrink("/missing", 1))
	assert.ErrorIs(t, s.Execute(ctx, env), simerr.ErrSimulation)
	require.NoError(t, fsys.Mkdir("/dir", 0755))
	s = must[*Shrink](t)(NewShrink("/dir", 1))
	assert.ErrorIs(t, s.Execute(ctx, env), simerr.ErrSimulation)
}

func setupTree(t *testing.T, fsys afero.Fs) {
	t.Helper()
	require.NoError(t, fsys.MkdirAll("/src/sub", 0755))
	require.NoError(t, afero.WriteFile(fsys, "/src/a", []byte("a"), 0644))
	require.NoError(t, afero.WriteFile(fsys, "/src/sub/b", []byte("bb"), 0644))
	require.NoError(t, fsys.Mkdir("/existing", 0755))
	require.NoError(t, afero.WriteFile(fsys, "/file", []byte("file"), 0644))
}

func exists(fsys afero.Fs, p string) bool {
	ok, _ := afero.Exists(fsys, p)
	return ok
}

func TestCopyExecute(t *testing.T) {
	env, fsys, _ := testEnv(t)
	ctx := context.Background()
	setupTree(t, fsys)

	require.NoError(t, must[*Copy](t)(NewCopy("/src/a", "/file")).Execute(ctx, env))
	data, err := afero.ReadFile(fsys, "/file")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	require.NoError(t, must[*Copy](t)(NewCopy("/src/a", "/existing")).Execute(ctx, env))
	assert.True(t, exists(fsys, "/existing/a"))

	require.NoError(t, must[*Copy](t)(NewCopy("/src", "/new/copy")).Execute(ctx, env))
	data, err = afero.ReadFile(fsys, "/new/copy/sub/b")
	require.NoError(t, err)
	assert.Equal(t, "bb", string(data))

	require.NoError(t, must[*Copy](t)(NewCopy("/src", "/existing")).Execute(ctx, env))
	assert.True(t, exists(fsys, "/existing/src/sub/b"))
	assert.True(t, exists(fsys, "/src/sub/b"))

	assert.ErrorIs(t, must[*Copy](t)(NewCopy("/src", "/existing")).Execute(ctx, env), simerr.ErrSimulation)
	assert.ErrorIs(t, must[*Copy](t)(NewCopy("/src", "/file")).Execute(ctx, env), simerr.ErrSimulation)
	assert.ErrorIs(t, must[*Copy](t)(NewCopy("/src", "/src/sub/inner")).Execute(ctx, env), simerr.ErrSimulation)
	assert.ErrorIs(t, must[*Copy](t)(NewCopy("/missing", "/x")).Execute(ctx, env), simerr.ErrSimulation)
}

func TestMoveExecute(t *testing.T) {
	env, fsys, _ := testEnv(t)
	ctx := context.Background()
	setupTree(t, fsys)

	require.NoError(t, must[*Move](t)(NewMove("/src/a", "/file")).Execute(ctx, env))
	assert.False(t, exists(fsys, "/src/a"))
	data, err := afero.ReadFile(fsys, "/file")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	assert.ErrorIs(t, must[*Move](t)(NewMove("/src", "/file")).Execute(ctx, env), simerr.ErrSimulation)
	assert.ErrorIs(t, must[*Move](t)(NewMove("/src", "/src/sub")).Execute(ctx, env), simerr.ErrSimulation)

	require.NoError(t, must[*Move](t)(NewMove("/src", "/existing")).Execute(ctx, env))
	assert.False(t, exists(fsys, "/src"))
	assert.True(t, exists(fsys, "/existing/src/sub/b"))

	require.NoError(t, must[*Move](t)(NewMove("/existing/src", "/renamed")).Execute(ctx, env))
	assert.True(t, exists(fsys, "/renamed/sub/b"))

	assert.ErrorIs(t, must[*Move](t)(NewMove("/missing", "/x")).Execute(ctx, env), simerr.ErrSimulation)
}

func TestRemoveAndMkdirExecute(t *testing.T) {
	env, fsys, _ := testEnv(t)
	ctx := context.Background()
	setupTree(t, fsys)

	require.NoError(t, must[*Remove](t)(NewRemove("/file")).Execute(ctx, env))
	require.NoError(t, must[*Remove](t)(NewRemove("/existing")).Execute(ctx, env))
	require.NoError(t, must[*Remove](t)(NewRemove("/src")).Execute(ctx, env))
	assert.False(t, exists(fsys, "/src/sub/b"))
	assert.ErrorIs(t, must[*Remove](t)(NewRemove("/src")).Execute(ctx, env), simerr.ErrSimulation)
	assert.ErrorIs(t, must[*Remove](t)(NewRemove("/")).Execute(ctx, env), simerr.ErrSimulation)

	require.NoError(t, must[*Mkdir](t)(NewMkdir("/a/b/c")).Execute(ctx, env))
	isDir, err := afero.IsDir(fsys, "/a/b/c")
	require.NoError(t, err)
	assert.True(t, isDir)
	assert.ErrorIs(t, must[*Mkdir](t)(NewMkdir("/a/b")).Execute(ctx, env), simerr.ErrSimulation)
	require.NoError(t, afero.WriteFile(fsys, "/a/f", nil, 0644))
	assert.ErrorIs(t, must[*Mkdir](t)(NewMkdir("/a/f")).Execute(ctx, env), simerr.ErrSimulation)
}

func TestClockOperations(t *testing.T) {
	env, _, clock := testEnv(t)
	ctx := context.Background()

	require.NoError(t, must[*Sleep](t)(NewSleep(2*time.Second)).Execute(ctx, env))
	assert.Equal(t, 2*time.Second, clock.Slept)

	ts := time.Date(2019, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, NewSetClock(ts).Execute(ctx, env))
	assert.True(t, ts.Equal(clock.Now))

	_, err := NewSleep(-time.Second)
	assert.Error(t, err)
	assert.Empty(t, NewSetClock(ts).Target())
}

func TestSystemClockSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SystemClock{}.Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, SystemClock{}.Sleep(context.Background(), time.Millisecond))
}
